package main

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"telegram-start-bot/internal/infra/logging"
	red "telegram-start-bot/internal/infra/redis"
	tele "telegram-start-bot/internal/infra/telegram"
)

func TestExitCode(t *testing.T) {
	log := logging.Nop()

	cases := []struct {
		name    string
		pollErr error
		cause   error
		want    int
	}{
		{"signal", nil, context.Canceled, 0},
		{"conflict", fmt.Errorf("poll: %w", tele.ErrPollingConflict), nil, 0},
		{"lease lost", nil, red.ErrLeaseLost, 0},
		{"fatal", errors.New("unauthorized"), nil, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, exitCode(log, tc.pollErr, tc.cause))
		})
	}
}
