// Package membership checks that a user belongs to every required channel.
package membership

import (
	"context"
	"time"

	"go.uber.org/zap"

	"refbot/internal/logging"
	"refbot/internal/monitoring"
)

type Status string

const (
	StatusActive  Status = "active"
	StatusLeft    Status = "left"
	StatusKicked  Status = "kicked"
	StatusUnknown Status = "unknown"
)

// Lookup asks the messaging platform for a user's status in one channel.
type Lookup interface {
	MemberStatus(ctx context.Context, channel string, userID int64) (Status, error)
}

// Gate answers whether a user may reach the ledger.
type Gate interface {
	IsMember(ctx context.Context, userID int64, channels []string) bool
}

const DefaultTimeout = 5 * time.Second

// PlatformGate is a fail-closed Gate: lookup errors and timeouts count as
// not joined. It keeps no state between calls.
type PlatformGate struct {
	lookup  Lookup
	timeout time.Duration
	log     *zap.Logger
}

func NewPlatformGate(lookup Lookup, timeout time.Duration, log *zap.Logger) *PlatformGate {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &PlatformGate{lookup: lookup, timeout: timeout, log: logging.OrNop(log)}
}

func (g *PlatformGate) IsMember(ctx context.Context, userID int64, channels []string) bool {
	for _, ch := range channels {
		status, err := g.check(ctx, ch, userID)
		if err != nil {
			monitoring.MembershipChecksTotal.WithLabelValues("error").Inc()
			g.log.Warn("Membership lookup failed",
				zap.Int64("user_id", userID),
				zap.String("channel", ch),
				zap.Error(err))
			return false
		}
		if status != StatusActive {
			monitoring.MembershipChecksTotal.WithLabelValues("not_member").Inc()
			return false
		}
	}
	monitoring.MembershipChecksTotal.WithLabelValues("member").Inc()
	return true
}

func (g *PlatformGate) check(ctx context.Context, channel string, userID int64) (Status, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	type result struct {
		status Status
		err    error
	}
	done := make(chan result, 1)
	go func() {
		s, err := g.lookup.MemberStatus(ctx, channel, userID)
		done <- result{s, err}
	}()

	select {
	case r := <-done:
		return r.status, r.err
	case <-ctx.Done():
		return StatusUnknown, ctx.Err()
	}
}

// AllowAll is a Gate for deployments without required channels.
type AllowAll struct{}

func (AllowAll) IsMember(context.Context, int64, []string) bool { return true }
