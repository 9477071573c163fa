package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"campuspush/internal/types"
)

// Engine performs one gateway call per endpoint, all in a single wave.
type Engine struct {
	gateway Gateway
	// limit caps concurrent gateway calls; zero means unbounded.
	limit   int
	logger  *slog.Logger
	metrics Metrics
}

// NewEngine creates an Engine. A limit of zero or less means every endpoint
// is dispatched at once.
func NewEngine(gateway Gateway, limit int, logger *slog.Logger, metrics Metrics) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Engine{gateway: gateway, limit: limit, logger: logger, metrics: metrics}
}

// Dispatch sends msg to every endpoint and returns exactly one outcome per
// endpoint, in endpoint order. Gateway errors and panics become failed
// outcomes; they never cancel sibling calls. Cancellation of ctx (for
// example a client disconnect) does not abort in-flight calls: each call is
// bounded by the gateway client's own timeout instead.
//
// When the gateway is a BatchGuard the whole batch is admitted or rejected
// up front. A batch in which no endpoint succeeds counts as one failure.
func (e *Engine) Dispatch(ctx context.Context, mode types.AudienceMode, msg types.PushMessage, endpoints []types.PushEndpoint) ([]types.DispatchOutcome, error) {
	if len(endpoints) == 0 {
		return nil, types.NewAppError(types.ErrCodeNotFoundEndpoints, "no endpoints to dispatch", nil)
	}

	sendCtx := context.WithoutCancel(ctx)
	outcomes := make([]types.DispatchOutcome, len(endpoints))

	guard, ok := e.gateway.(BatchGuard)
	if !ok {
		e.fanOut(sendCtx, mode, msg, endpoints, outcomes)
		return outcomes, nil
	}

	ran := false
	err := guard.Guard(func() error {
		ran = true
		e.fanOut(sendCtx, mode, msg, endpoints, outcomes)
		if Summarize(outcomes).Successful == 0 {
			return errBatchFailed
		}
		return nil
	})
	if !ran {
		e.logger.Warn("push batch rejected by gateway guard",
			"mode", mode,
			"endpoints", len(endpoints),
			"request_id", types.GetRequestID(ctx),
			"error", err,
		)
		for i, ep := range endpoints {
			outcomes[i] = types.DispatchOutcome{Recipient: ep.Recipient, Error: err.Error()}
			e.metrics.RecordDispatch(sendCtx, mode, false)
		}
	}
	return outcomes, nil
}

var errBatchFailed = errors.New("every endpoint in the batch failed")

func (e *Engine) fanOut(ctx context.Context, mode types.AudienceMode, msg types.PushMessage, endpoints []types.PushEndpoint, outcomes []types.DispatchOutcome) {
	// A plain Group: WithContext would cancel siblings on the first error,
	// and tasks never return one anyway.
	var g errgroup.Group
	if e.limit > 0 {
		g.SetLimit(e.limit)
	}

	for i, ep := range endpoints {
		g.Go(func() error {
			outcomes[i] = e.send(ctx, mode, msg, ep)
			return nil
		})
	}
	_ = g.Wait()
}

func (e *Engine) send(ctx context.Context, mode types.AudienceMode, msg types.PushMessage, ep types.PushEndpoint) (outcome types.DispatchOutcome) {
	outcome.Recipient = ep.Recipient
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			outcome = types.DispatchOutcome{
				Recipient: ep.Recipient,
				Error:     fmt.Sprintf("panic during dispatch: %v", rec),
			}
			e.logger.Error("gateway call panicked",
				"user_id", ep.Recipient,
				"platform", ep.Platform,
				"panic", rec,
			)
		}
		e.metrics.RecordDispatchLatency(ctx, mode, time.Since(start))
		e.metrics.RecordDispatch(ctx, mode, outcome.Success)
	}()

	resp, err := e.gateway.Send(ctx, msg, ep)
	if err != nil {
		e.logger.Warn("push dispatch failed",
			"user_id", ep.Recipient,
			"platform", ep.Platform,
			"request_id", types.GetRequestID(ctx),
			"error", err,
		)
		outcome.Error = err.Error()
		return outcome
	}

	outcome.Success = true
	outcome.Response = resp
	return outcome
}
