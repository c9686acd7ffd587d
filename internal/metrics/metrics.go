package metrics

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Metrics holds server counters. All fields are safe for concurrent use.
type Metrics struct {
	startTime time.Time

	TotalConnections  atomic.Int64 // connections accepted over any transport
	ActiveConnections atomic.Int64
	TotalDisconnects  atomic.Int64

	Registrations   atomic.Int64
	SuccessfulAuths atomic.Int64 // register and login successes
	FailedAuths     atomic.Int64

	ChannelMessages   atomic.Int64
	PrivateMessages   atomic.Int64
	GlobalMessages    atomic.Int64
	DroppedDeliveries atomic.Int64 // frames not queued because a recipient was full or gone
	MalformedRequests atomic.Int64
	RateLimited       atomic.Int64
}

// New creates metrics with the start time set to now.
func New() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	Uptime        string `json:"uptime"`
	UptimeSeconds int64  `json:"uptime_seconds"`

	ActiveConnections int64 `json:"active_connections"`
	TotalConnections  int64 `json:"total_connections"`
	TotalDisconnects  int64 `json:"total_disconnects"`

	Registrations   int64 `json:"registrations"`
	SuccessfulAuths int64 `json:"successful_auths"`
	FailedAuths     int64 `json:"failed_auths"`

	ChannelMessages   int64 `json:"channel_messages"`
	PrivateMessages   int64 `json:"private_messages"`
	GlobalMessages    int64 `json:"global_messages"`
	DroppedDeliveries int64 `json:"dropped_deliveries"`
	MalformedRequests int64 `json:"malformed_requests"`
	RateLimited       int64 `json:"rate_limited"`
}

// Snapshot reads every counter.
func (m *Metrics) Snapshot() Snapshot {
	uptime := time.Since(m.startTime)
	return Snapshot{
		Uptime:            uptime.Truncate(time.Second).String(),
		UptimeSeconds:     int64(uptime.Seconds()),
		ActiveConnections: m.ActiveConnections.Load(),
		TotalConnections:  m.TotalConnections.Load(),
		TotalDisconnects:  m.TotalDisconnects.Load(),
		Registrations:     m.Registrations.Load(),
		SuccessfulAuths:   m.SuccessfulAuths.Load(),
		FailedAuths:       m.FailedAuths.Load(),
		ChannelMessages:   m.ChannelMessages.Load(),
		PrivateMessages:   m.PrivateMessages.Load(),
		GlobalMessages:    m.GlobalMessages.Load(),
		DroppedDeliveries: m.DroppedDeliveries.Load(),
		MalformedRequests: m.MalformedRequests.Load(),
		RateLimited:       m.RateLimited.Load(),
	}
}

// LogSummary writes one info line with the main counters.
func (m *Metrics) LogSummary(logger *zerolog.Logger) {
	s := m.Snapshot()
	logger.Info().
		Str("uptime", s.Uptime).
		Int64("connections", s.ActiveConnections).
		Int64("total_connections", s.TotalConnections).
		Int64("channel_msgs", s.ChannelMessages).
		Int64("private_msgs", s.PrivateMessages).
		Int64("dropped", s.DroppedDeliveries).
		Msg("metrics")
}

// StartPeriodicLog logs a summary every interval until ctx is done.
// A non-positive interval disables it.
func (m *Metrics) StartPeriodicLog(ctx context.Context, interval time.Duration, logger *zerolog.Logger) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.LogSummary(logger)
			}
		}
	}()
}

// WritePrometheus writes all counters in Prometheus text exposition format.
func (m *Metrics) WritePrometheus(w io.Writer) error {
	s := m.Snapshot()
	var werr error
	write := func(name, help, mtype string, value int64) {
		if werr != nil {
			return
		}
		_, werr = fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %d\n", name, help, name, mtype, name, value)
	}

	write("linechat_uptime_seconds", "Server uptime in seconds.", "gauge", s.UptimeSeconds)
	write("linechat_connections_active", "Current live connections.", "gauge", s.ActiveConnections)
	write("linechat_connections_total", "Connections accepted.", "counter", s.TotalConnections)
	write("linechat_disconnects_total", "Connections closed.", "counter", s.TotalDisconnects)
	write("linechat_registrations_total", "Accounts created.", "counter", s.Registrations)
	write("linechat_auth_success_total", "Successful register or login attempts.", "counter", s.SuccessfulAuths)
	write("linechat_auth_failed_total", "Failed register or login attempts.", "counter", s.FailedAuths)
	write("linechat_channel_messages_total", "Channel messages relayed.", "counter", s.ChannelMessages)
	write("linechat_private_messages_total", "Private messages relayed.", "counter", s.PrivateMessages)
	write("linechat_global_messages_total", "Global messages relayed.", "counter", s.GlobalMessages)
	write("linechat_dropped_deliveries_total", "Frames dropped for slow or closed recipients.", "counter", s.DroppedDeliveries)
	write("linechat_malformed_requests_total", "Undecodable request lines.", "counter", s.MalformedRequests)
	write("linechat_rate_limited_total", "Chat lines refused by the per-connection rate limit.", "counter", s.RateLimited)
	return werr
}
