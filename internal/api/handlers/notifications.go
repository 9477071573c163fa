// Package handlers contains the HTTP handlers of the push API.
//
// Each handler decodes and validates its request DTO, delegates to the
// dispatch service, and shapes the result into the response body clients
// of the service already parse.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"campuspush/internal/core"
	"campuspush/internal/dispatch"
	"campuspush/internal/types"
)

// NotificationService is the subset of dispatch.Service the handlers use.
type NotificationService interface {
	SendSingle(ctx context.Context, userID types.RecipientID, title, body string, data map[string]any) (json.RawMessage, error)
	SendBulk(ctx context.Context, userIDs []types.RecipientID, title, body string, data map[string]any) (*dispatch.Result, error)
	SendCampus(ctx context.Context, campus, title, body string, data map[string]any) (*dispatch.Result, error)
}

// --- Request/Response Models ---

// SendRequest is the body of POST /v1/notifications/send.
type SendRequest struct {
	UserID string         `json:"user_id" validate:"required"`
	Title  string         `json:"title" validate:"required"`
	Body   string         `json:"body" validate:"required"`
	Data   map[string]any `json:"data,omitempty"`
}

// BulkRequest is the body of POST /v1/notifications/bulk.
type BulkRequest struct {
	UserIDs []string       `json:"user_ids" validate:"required,min=1,dive,required"`
	Title   string         `json:"title" validate:"required"`
	Body    string         `json:"body" validate:"required"`
	Data    map[string]any `json:"data,omitempty"`
}

// CampusRequest is the body of POST /v1/notifications/campus.
type CampusRequest struct {
	Campus string         `json:"campus" validate:"required"`
	Title  string         `json:"title" validate:"required"`
	Body   string         `json:"body" validate:"required"`
	Data   map[string]any `json:"data,omitempty"`
}

// SendResponse returns the raw gateway reply for a single delivery.
type SendResponse struct {
	Success     bool            `json:"success"`
	Message     string          `json:"message"`
	FCMResponse json.RawMessage `json:"fcm_response"`
}

// BulkResponse reports per-endpoint outcomes of a list fan-out.
type BulkResponse struct {
	Success bool                    `json:"success"`
	Message string                  `json:"message"`
	Results []types.DispatchOutcome `json:"results"`
	Summary types.DispatchSummary   `json:"summary"`
}

// CampusSummary distinguishes campus members from the endpoints they own.
type CampusSummary struct {
	TotalUsers  int `json:"total_users"`
	TotalTokens int `json:"total_tokens"`
	Successful  int `json:"successful"`
	Failed      int `json:"failed"`
}

// CampusResponse reports per-endpoint outcomes of a campus broadcast.
type CampusResponse struct {
	Success bool                    `json:"success"`
	Message string                  `json:"message"`
	Campus  string                  `json:"campus"`
	Results []types.DispatchOutcome `json:"results"`
	Summary CampusSummary           `json:"summary"`
}

// --- Handler ---

// NotificationHandler serves the three delivery modes.
type NotificationHandler struct {
	svc       NotificationService
	validator *core.Validator
	logger    *slog.Logger
}

// NewNotificationHandler creates a NotificationHandler.
func NewNotificationHandler(svc NotificationService, v *core.Validator, l *slog.Logger) *NotificationHandler {
	if l == nil {
		l = slog.Default()
	}
	if v == nil {
		v = core.NewValidator()
	}
	return &NotificationHandler{svc: svc, validator: v, logger: l}
}

// RegisterRoutes mounts the notification routes onto the /v1 router.
func (h *NotificationHandler) RegisterRoutes(r chi.Router) {
	r.Route("/notifications", func(r chi.Router) {
		r.Post("/send", h.Send)
		r.Post("/bulk", h.Bulk)
		r.Post("/campus", h.Campus)
	})
}

// Send handles POST /v1/notifications/send.
func (h *NotificationHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req SendRequest
	if !h.decode(w, r, &req) {
		return
	}

	reply, err := h.svc.SendSingle(r.Context(), types.RecipientID(req.UserID), req.Title, req.Body, req.Data)
	if err != nil {
		h.fail(w, r, "send", err)
		return
	}

	core.JSON(w, r, http.StatusOK, SendResponse{
		Success:     true,
		Message:     "Notification sent successfully",
		FCMResponse: reply,
	})
}

// Bulk handles POST /v1/notifications/bulk.
func (h *NotificationHandler) Bulk(w http.ResponseWriter, r *http.Request) {
	var req BulkRequest
	if !h.decode(w, r, &req) {
		return
	}

	ids := make([]types.RecipientID, len(req.UserIDs))
	for i, id := range req.UserIDs {
		ids[i] = types.RecipientID(id)
	}

	res, err := h.svc.SendBulk(r.Context(), ids, req.Title, req.Body, req.Data)
	if err != nil {
		h.fail(w, r, "bulk", err)
		return
	}

	core.JSON(w, r, http.StatusOK, BulkResponse{
		Success: true,
		Message: fmt.Sprintf("Bulk notification sent: %d successful, %d failed", res.Summary.Successful, res.Summary.Failed),
		Results: res.Outcomes,
		Summary: res.Summary,
	})
}

// Campus handles POST /v1/notifications/campus.
func (h *NotificationHandler) Campus(w http.ResponseWriter, r *http.Request) {
	var req CampusRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.svc.SendCampus(r.Context(), req.Campus, req.Title, req.Body, req.Data)
	if err != nil {
		h.fail(w, r, "campus", err)
		return
	}

	core.JSON(w, r, http.StatusOK, CampusResponse{
		Success: true,
		Message: fmt.Sprintf("Campus notification sent to %s: %d successful, %d failed", req.Campus, res.Summary.Successful, res.Summary.Failed),
		Campus:  req.Campus,
		Results: res.Outcomes,
		Summary: CampusSummary{
			TotalUsers:  res.Recipients,
			TotalTokens: res.Endpoints,
			Successful:  res.Summary.Successful,
			Failed:      res.Summary.Failed,
		},
	})
}

// decode reads and validates dst, writing the error response itself when
// either step fails.
func (h *NotificationHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := core.DecodeJSON(w, r, dst); err != nil {
		core.Error(w, r, err)
		return false
	}
	if err := h.validator.ValidateStruct(dst); err != nil {
		core.Error(w, r, err)
		return false
	}
	return true
}

func (h *NotificationHandler) fail(w http.ResponseWriter, r *http.Request, mode string, err error) {
	var appErr *types.AppError
	if !errors.As(err, &appErr) || appErr.HTTPStatus() >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "notification request failed",
			"mode", mode,
			"error", err,
			"request_id", types.GetRequestID(r.Context()),
		)
	}
	core.Error(w, r, err)
}
