package dispatch

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"campuspush/internal/types"
)

// Service runs the full pipeline for the three request modes.
type Service struct {
	resolver *Resolver
	lookup   *Lookup
	engine   *Engine
	logs     *LogWriter
	logger   *slog.Logger
	now      func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithClock overrides the time source used to stamp device payloads.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// NewService wires the pipeline stages together.
func NewService(resolver *Resolver, lookup *Lookup, engine *Engine, logs *LogWriter, logger *slog.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		resolver: resolver,
		lookup:   lookup,
		engine:   engine,
		logs:     logs,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SendSingle delivers to every device of one user. The reply is the
// gateway response of the first device when all sends succeed. If any
// device fails, the first failure is returned as an error, after the log
// entries have been scheduled.
func (s *Service) SendSingle(ctx context.Context, userID types.RecipientID, title, body string, data map[string]any) (json.RawMessage, error) {
	res, err := s.run(ctx, Request{
		Audience: types.SingleUser(userID),
		Title:    title,
		Body:     body,
		Data:     data,
	})
	if err != nil {
		return nil, err
	}

	for _, outcome := range res.Outcomes {
		if !outcome.Success {
			return nil, types.NewAppErrorWithDetails(
				types.ErrCodeUpstreamGateway,
				"Failed to send FCM notification",
				nil,
				map[string]any{
					"gateway_error": outcome.Error,
					"failed":        res.Summary.Failed,
					"total":         res.Summary.Total,
				},
			)
		}
	}
	return res.Outcomes[0].Response, nil
}

// SendBulk delivers to every endpoint of every listed user.
func (s *Service) SendBulk(ctx context.Context, userIDs []types.RecipientID, title, body string, data map[string]any) (*Result, error) {
	return s.run(ctx, Request{
		Audience: types.UserList(userIDs),
		Title:    title,
		Body:     body,
		Data:     data,
	})
}

// SendCampus delivers to every endpoint of every member of campus.
func (s *Service) SendCampus(ctx context.Context, campus, title, body string, data map[string]any) (*Result, error) {
	return s.run(ctx, Request{
		Audience: types.CampusAudience(campus),
		Title:    title,
		Body:     body,
		Data:     data,
	})
}

// Dispatch runs an arbitrary request through the pipeline.
func (s *Service) Dispatch(ctx context.Context, req Request) (*Result, error) {
	return s.run(ctx, req)
}

func (s *Service) run(ctx context.Context, req Request) (*Result, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	recipients, err := s.resolver.Resolve(ctx, req.Audience)
	if err != nil {
		return nil, err
	}

	endpoints, err := s.lookup.Endpoints(ctx, req.Audience.Mode, recipients)
	if err != nil {
		return nil, err
	}

	shaped := Augment(req.Data, augmentationFor(req.Audience, s.now()))
	msg := types.PushMessage{Title: req.Title, Body: req.Body, Data: shaped.Message}

	outcomes, err := s.engine.Dispatch(ctx, req.Audience.Mode, msg, endpoints)
	if err != nil {
		return nil, err
	}

	s.logs.Write(ctx, logEntries(endpoints, req, shaped))

	summary := Summarize(outcomes)
	s.logger.Info("push dispatch complete",
		"audience", req.Audience.String(),
		"recipients", len(recipients),
		"endpoints", len(endpoints),
		"successful", summary.Successful,
		"failed", summary.Failed,
		"request_id", types.GetRequestID(ctx),
	)

	return &Result{
		Audience:   req.Audience,
		Recipients: len(recipients),
		Endpoints:  len(endpoints),
		Outcomes:   outcomes,
		Summary:    summary,
	}, nil
}

// logEntries builds one record per dispatched endpoint, independent of the
// gateway outcome.
func logEntries(endpoints []types.PushEndpoint, req Request, shaped Shaped) []types.NotificationLogEntry {
	entries := make([]types.NotificationLogEntry, len(endpoints))
	for i, ep := range endpoints {
		entries[i] = types.NotificationLogEntry{
			Recipient: ep.Recipient,
			Title:     req.Title,
			Body:      req.Body,
			Data:      shaped.Record,
			Type:      shaped.Type,
		}
	}
	return entries
}

func (r Request) validate() error {
	var missing []string
	switch r.Audience.Mode {
	case types.AudienceSingle:
		if r.Audience.UserID == "" {
			missing = append(missing, "user_id")
		}
	case types.AudienceList:
		if len(r.Audience.UserIDs) == 0 {
			missing = append(missing, "user_ids")
		}
	case types.AudienceCampus:
		if r.Audience.Campus == "" {
			missing = append(missing, "campus")
		}
	}
	if r.Title == "" {
		missing = append(missing, "title")
	}
	if r.Body == "" {
		missing = append(missing, "body")
	}
	if len(missing) == 0 {
		return nil
	}
	return types.NewAppErrorWithDetails(
		types.ErrCodeValidationMissingField,
		"Missing required fields: "+strings.Join(missing, ", "),
		nil,
		map[string]any{"fields": missing},
	)
}
