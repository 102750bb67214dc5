// Package heartbeat publishes a periodic liveness beat so observers can
// tell a wedged firmware from a quiet one.
package heartbeat

import (
	"context"
	"time"

	"supermini-go/bus"
	"supermini-go/x/timex"
)

const DefaultInterval = 5 * time.Second

type Beat struct {
	Seq      uint32 `json:"seq"`
	UptimeMs int64  `json:"uptime_ms"`
	TSms     int64  `json:"ts_ms"`
}

type Options struct {
	ID       string
	Interval time.Duration
}

// Run publishes retained beats on hb/<id> until ctx ends.
func Run(ctx context.Context, conn *bus.Connection, opts Options) {
	if opts.ID == "" {
		opts.ID = "board"
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	topic := bus.T("hb", opts.ID)
	start := timex.NowMs()
	var seq uint32

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()
	for {
		seq++
		now := timex.NowMs()
		conn.Publish(conn.NewMessage(topic, Beat{Seq: seq, UptimeMs: now - start, TSms: now}, true))
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
