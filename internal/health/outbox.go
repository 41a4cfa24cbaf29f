package health

import (
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// OutboxStatsSource: источник статистики outbox.
type OutboxStatsSource interface {
	Stats() (domain.OutboxStats, error)
}

// OutboxChecker помечает сервис как degraded, когда backlog outbox растёт или стареет.
type OutboxChecker struct {
	name       string
	source     OutboxStatsSource
	maxPending int
	maxAge     time.Duration
	now        func() time.Time
}

// NewOutboxChecker создаёт проверку; нулевые пороги отключают соответствующее условие.
func NewOutboxChecker(name string, source OutboxStatsSource, maxPending int, maxAge time.Duration) *OutboxChecker {
	return &OutboxChecker{
		name:       name,
		source:     source,
		maxPending: maxPending,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

func (c *OutboxChecker) Check() Check {
	start := time.Now()
	check := Check{Name: c.name, Status: StatusHealthy}

	stats, err := c.source.Stats()
	switch {
	case err != nil:
		check.Status = StatusUnhealthy
		check.Message = err.Error()
	case c.maxPending > 0 && stats.PendingCount > c.maxPending:
		check.Status = StatusDegraded
		check.Message = fmt.Sprintf("%d pending messages (limit %d)", stats.PendingCount, c.maxPending)
	case c.maxAge > 0 && !stats.OldestPendingAt.IsZero() && c.now().Sub(stats.OldestPendingAt) > c.maxAge:
		check.Status = StatusDegraded
		check.Message = fmt.Sprintf("oldest pending message is older than %s", c.maxAge)
	}

	check.DurationMs = time.Since(start).Milliseconds()
	return check
}
