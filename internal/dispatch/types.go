// Package dispatch implements the push fan-out pipeline:
//
//	Resolve -> LookUp -> Dispatch -> Aggregate -> Log (fire-and-forget) -> Respond
//
// Every request is processed independently. Failures of individual gateway
// calls are captured as outcomes and never abort sibling calls; the delivery
// log is written off the response path.
package dispatch

import (
	"context"
	"encoding/json"
	"time"

	"campuspush/internal/types"
)

// Directory resolves a campus to its members.
type Directory interface {
	MembersOf(ctx context.Context, campus string) ([]types.RecipientID, error)
}

// TokenStore resolves recipients to their registered device tokens.
type TokenStore interface {
	EndpointsFor(ctx context.Context, ids []types.RecipientID) ([]types.PushEndpoint, error)
}

// LogStore persists delivery records.
type LogStore interface {
	InsertBatch(ctx context.Context, entries []types.NotificationLogEntry) error
}

// Gateway sends one message to one device.
type Gateway interface {
	Send(ctx context.Context, msg types.PushMessage, endpoint types.PushEndpoint) (json.RawMessage, error)
}

// BatchGuard is implemented by gateways that gate a whole batch, for
// example behind a circuit breaker. Guard either runs fn once and returns
// its error, or rejects the batch without running fn.
type BatchGuard interface {
	Guard(fn func() error) error
}

// Metrics receives dispatch telemetry. Implementations must not block.
type Metrics interface {
	RecordDispatch(ctx context.Context, mode types.AudienceMode, success bool)
	RecordDispatchLatency(ctx context.Context, mode types.AudienceMode, d time.Duration)
	RecordLogWrite(ctx context.Context, entries int, err error)
}

type nopMetrics struct{}

func (nopMetrics) RecordDispatch(context.Context, types.AudienceMode, bool) {}

func (nopMetrics) RecordDispatchLatency(context.Context, types.AudienceMode, time.Duration) {}

func (nopMetrics) RecordLogWrite(context.Context, int, error) {}

// Request is a validated dispatch request.
type Request struct {
	Audience types.Audience
	Title    string
	Body     string
	Data     map[string]any
}

// Result is the aggregated outcome of a fan-out request.
type Result struct {
	Audience types.Audience
	// Recipients is the number of users the audience resolved to.
	Recipients int
	// Endpoints is the number of device tokens dispatched to.
	Endpoints int
	Outcomes  []types.DispatchOutcome
	Summary   types.DispatchSummary
}
