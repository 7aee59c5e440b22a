package postgres

import (
	"context"

	"telegram-start-bot/internal/infra/metrics"
)

// PoolStatsJob samples the connector's pool into the db_pool_stats gauge.
type PoolStatsJob struct {
	conn *Connector
}

func NewPoolStatsJob(conn *Connector) *PoolStatsJob {
	return &PoolStatsJob{conn: conn}
}

func (j *PoolStatsJob) Name() string { return "db_pool_stats" }

func (j *PoolStatsJob) Run(ctx context.Context) error {
	pool := j.conn.Pool()
	if pool == nil {
		metrics.SetDBPoolStats(0, 0, 0)
		return nil
	}
	st := pool.Stat()
	metrics.SetDBPoolStats(st.TotalConns(), st.IdleConns(), st.AcquiredConns())
	return nil
}
