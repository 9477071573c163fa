// Package metrics provides the telemetry backends for the service. Each
// backend records HTTP request metrics for the core middleware and dispatch
// metrics for the fan-out pipeline.
package metrics

import (
	"context"
	"time"

	"campuspush/internal/types"
)

// Metric names shared by all backends.
const (
	MetricAPIRequestCount = "APIRequestCount"
	MetricAPILatency      = "APILatency"
	MetricDispatchAttempt = "DispatchAttempt"
	MetricDispatchLatency = "DispatchLatency"
	MetricLogWrite        = "NotificationLogWrite"
	MetricLogWriteEntries = "NotificationLogEntries"

	resultSuccess = "success"
	resultFailure = "failure"
)

// Recorder is implemented by every backend.
type Recorder interface {
	RecordRequest(method, endpoint, status string, duration time.Duration)
	RecordDispatch(ctx context.Context, mode types.AudienceMode, success bool)
	RecordDispatchLatency(ctx context.Context, mode types.AudienceMode, d time.Duration)
	RecordLogWrite(ctx context.Context, entries int, err error)
}

func resultLabel(success bool) string {
	if success {
		return resultSuccess
	}
	return resultFailure
}

// Nop discards everything.
type Nop struct{}

var _ Recorder = Nop{}

func (Nop) RecordRequest(string, string, string, time.Duration) {}

func (Nop) RecordDispatch(context.Context, types.AudienceMode, bool) {}

func (Nop) RecordDispatchLatency(context.Context, types.AudienceMode, time.Duration) {}

func (Nop) RecordLogWrite(context.Context, int, error) {}
