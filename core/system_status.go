package core

import (
	"context"
	"time"
)

// Pinger reports backend reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingerFunc adapts a function to Pinger.
type PingerFunc func(ctx context.Context) error

func (f PingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// SystemStatus is the aggregated health payload served on /healthz.
type SystemStatus struct {
	Status        string       `json:"status"`
	Database      string       `json:"database"`
	Cache         string       `json:"cache"`
	Auth          AuthCounters `json:"auth"`
	UptimeSeconds int64        `json:"uptime_seconds"`
}

// CollectSystemStatus pings the database and cache (best-effort, short
// timeout) and reads the auth counters. A nil pinger reports "unknown".
func CollectSystemStatus(ctx context.Context, db, cache Pinger, metrics *AuthMetrics, startedAt time.Time) SystemStatus {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	st := SystemStatus{
		Status:   "ok",
		Database: pingStatus(ctx, db),
		Cache:    pingStatus(ctx, cache),
	}
	if st.Database == "unreachable" || st.Cache == "unreachable" {
		st.Status = "degraded"
	}

	if counters, err := metrics.Snapshot(ctx); err == nil {
		st.Auth = counters
	}

	if !startedAt.IsZero() {
		st.UptimeSeconds = int64(time.Since(startedAt).Seconds())
	}
	return st
}

func pingStatus(ctx context.Context, p Pinger) string {
	if p == nil {
		return "unknown"
	}
	if err := p.Ping(ctx); err != nil {
		return "unreachable"
	}
	return "ok"
}
