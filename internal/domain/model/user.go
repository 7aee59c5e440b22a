package model

import (
	"strings"
	"time"

	"telegram-start-bot/internal/domain"
)

// Profile is the set of sender fields captured from an inbound Telegram
// message. Empty strings mean the field was absent on the message.
type Profile struct {
	TelegramID   int64
	Username     string
	FirstName    string
	LastName     string
	LanguageCode string
}

func NewProfile(tgID int64, username, firstName, lastName, languageCode string) (*Profile, error) {
	if tgID <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &Profile{
		TelegramID:   tgID,
		Username:     strings.TrimSpace(username),
		FirstName:    strings.TrimSpace(firstName),
		LastName:     strings.TrimSpace(lastName),
		LanguageCode: strings.TrimSpace(languageCode),
	}, nil
}

// DisplayName picks the friendliest available name for greetings.
func (p *Profile) DisplayName() string {
	switch {
	case p == nil:
		return "there"
	case p.FirstName != "":
		return p.FirstName
	case p.Username != "":
		return p.Username
	default:
		return "there"
	}
}

// User is a persisted row of the users table. The store owns its lifetime;
// nothing keeps a copy between requests.
type User struct {
	ID           int64
	TelegramID   int64
	Username     string
	FirstName    string
	LastName     string
	LanguageCode string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastActiveAt time.Time
}
