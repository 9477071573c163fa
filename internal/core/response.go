package core

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"campuspush/internal/types"
)

const maxRequestBodySize = 1 << 20 // 1 MB

const genericErrorMessage = "Internal server error"

// ErrorResponse is the envelope written for every failed request. Error
// carries the human message clients display; Code is the machine code.
type ErrorResponse struct {
	Error     string         `json:"error"`
	Code      string         `json:"code"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
}

// JSON writes data with the given status. A marshal failure degrades to the
// generic 500 envelope.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, ErrorResponse{
			Error: genericErrorMessage,
			Code:  string(types.ErrCodeInternalUnexpected),
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// Error writes err as the error envelope. An *types.AppError anywhere in
// the chain selects the status and message; anything else becomes a generic
// 500 so internal details never leak.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		writeError(w, r, appErr.HTTPStatus(), ErrorResponse{
			Error:   appErr.Message,
			Code:    string(appErr.Code),
			Details: appErr.Details,
		})
		return
	}

	writeError(w, r, http.StatusInternalServerError, ErrorResponse{
		Error: genericErrorMessage,
		Code:  string(types.ErrCodeInternalUnexpected),
	})
}

func writeError(w http.ResponseWriter, r *http.Request, status int, resp ErrorResponse) {
	resp.RequestID = types.GetRequestID(r.Context())
	body, err := json.Marshal(resp)
	if err != nil {
		// Details held something unencodable; drop them.
		resp.Details = nil
		body, _ = json.Marshal(resp)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// DecodeJSON reads a single JSON object from the body into dst. Unknown
// fields are ignored. Bodies over 1 MB, empty bodies and malformed JSON
// yield a validation_invalid_body AppError.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return mapDecodeError(err)
	}
	return nil
}

func mapDecodeError(err error) *types.AppError {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return types.NewAppError(types.ErrCodeValidationInvalidBody, "Request body must not exceed 1MB", err)
	}

	var unmarshalTypeErr *json.UnmarshalTypeError
	if errors.As(err, &unmarshalTypeErr) {
		return types.NewAppErrorWithDetails(
			types.ErrCodeValidationInvalidBody,
			"Invalid value for field "+unmarshalTypeErr.Field,
			err,
			map[string]any{
				"field":    unmarshalTypeErr.Field,
				"expected": unmarshalTypeErr.Type.String(),
			},
		)
	}

	if errors.Is(err, io.EOF) {
		return types.NewAppError(types.ErrCodeValidationInvalidBody, "Request body must not be empty", err)
	}

	return types.NewAppError(types.ErrCodeValidationInvalidBody, "Invalid JSON in request body", err)
}
