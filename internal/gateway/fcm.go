package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"campuspush/internal/types"
)

// DefaultFCMEndpoint is the legacy FCM HTTP send endpoint.
const DefaultFCMEndpoint = "https://fcm.googleapis.com/fcm/send"

// maxResponseBytes bounds how much of a gateway reply is kept.
const maxResponseBytes = 1 << 20

// Error is returned when the gateway answers with a non-2xx status.
type Error struct {
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("fcm returned %d", e.StatusCode)
	}
	return fmt.Sprintf("fcm returned %d: %s", e.StatusCode, e.Body)
}

// FCM sends push messages through the legacy FCM HTTP API. It holds only
// read-only state and is safe for concurrent use.
type FCM struct {
	base      *BaseClient
	endpoint  string
	serverKey types.SecretString
}

// NewFCM creates an FCM gateway. An empty endpoint selects DefaultFCMEndpoint.
func NewFCM(base *BaseClient, endpoint string, serverKey types.SecretString) *FCM {
	if endpoint == "" {
		endpoint = DefaultFCMEndpoint
	}
	return &FCM{base: base, endpoint: endpoint, serverKey: serverKey}
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Sound string `json:"sound"`
}

type fcmAndroidNotification struct {
	Sound    string `json:"sound"`
	Priority string `json:"priority"`
}

type fcmAndroid struct {
	Priority     string                 `json:"priority"`
	Notification fcmAndroidNotification `json:"notification"`
}

type fcmAps struct {
	Sound string `json:"sound"`
	Badge int    `json:"badge"`
}

type fcmApnsPayload struct {
	Aps fcmAps `json:"aps"`
}

type fcmApns struct {
	Payload fcmApnsPayload `json:"payload"`
}

type fcmRequest struct {
	To           string          `json:"to"`
	Notification fcmNotification `json:"notification"`
	Data         map[string]any  `json:"data"`
	Android      fcmAndroid      `json:"android"`
	Apns         fcmApns         `json:"apns"`
}

func buildRequest(msg types.PushMessage, token string) fcmRequest {
	data := msg.Data
	if data == nil {
		data = map[string]any{}
	}
	return fcmRequest{
		To: token,
		Notification: fcmNotification{
			Title: msg.Title,
			Body:  msg.Body,
			Sound: "default",
		},
		Data: data,
		Android: fcmAndroid{
			Priority: "high",
			Notification: fcmAndroidNotification{
				Sound:    "default",
				Priority: "high",
			},
		},
		Apns: fcmApns{
			Payload: fcmApnsPayload{Aps: fcmAps{Sound: "default", Badge: 1}},
		},
	}
}

// Guard runs one dispatch batch under the client's circuit breaker.
func (f *FCM) Guard(fn func() error) error {
	return f.base.Guard(fn)
}

// Send delivers msg to one device token and returns the gateway's reply.
// A non-2xx status yields *Error carrying the reply text.
func (f *FCM) Send(ctx context.Context, msg types.PushMessage, endpoint types.PushEndpoint) (json.RawMessage, error) {
	payload, err := json.Marshal(buildRequest(msg, endpoint.Token))
	if err != nil {
		return nil, fmt.Errorf("encoding fcm request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building fcm request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+f.serverKey.Unmask())

	resp, err := f.base.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading fcm response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
	}

	return asJSON(body), nil
}

// asJSON returns body unchanged when it is valid JSON and as a JSON string
// otherwise, so callers can always embed it in a response.
func asJSON(body []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return json.RawMessage(`{}`)
	}
	if json.Valid(trimmed) {
		return json.RawMessage(trimmed)
	}
	quoted, _ := json.Marshal(string(trimmed))
	return json.RawMessage(quoted)
}
