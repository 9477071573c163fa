package types

import (
	"encoding/json"
	"fmt"
)

// AudienceMode selects how a dispatch request names its recipients.
type AudienceMode string

const (
	AudienceSingle AudienceMode = "single"
	AudienceList   AudienceMode = "list"
	AudienceCampus AudienceMode = "campus"
)

// Default notification types per mode, applied when the caller's data
// does not carry its own "type".
const (
	NotificationTypeGeneral            = "general"
	NotificationTypeCampusAnnouncement = "campus_announcement"
)

// RecipientID identifies a user. It is opaque to the dispatcher.
type RecipientID string

// Audience is the recipient selector of a dispatch request. Exactly one of
// UserID, UserIDs or Campus is meaningful, according to Mode.
type Audience struct {
	Mode    AudienceMode
	UserID  RecipientID
	UserIDs []RecipientID
	Campus  string
}

// SingleUser builds an audience addressing one user.
func SingleUser(id RecipientID) Audience {
	return Audience{Mode: AudienceSingle, UserID: id}
}

// UserList builds an audience addressing an explicit set of users.
func UserList(ids []RecipientID) Audience {
	return Audience{Mode: AudienceList, UserIDs: ids}
}

// CampusAudience builds an audience addressing every member of a campus.
func CampusAudience(name string) Audience {
	return Audience{Mode: AudienceCampus, Campus: name}
}

// DefaultType returns the notification type used when the request data
// does not specify one.
func (a Audience) DefaultType() string {
	if a.Mode == AudienceCampus {
		return NotificationTypeCampusAnnouncement
	}
	return NotificationTypeGeneral
}

func (a Audience) String() string {
	switch a.Mode {
	case AudienceSingle:
		return fmt.Sprintf("single(%s)", a.UserID)
	case AudienceList:
		return fmt.Sprintf("list(%d)", len(a.UserIDs))
	case AudienceCampus:
		return fmt.Sprintf("campus(%s)", a.Campus)
	default:
		return "unknown"
	}
}

// PushEndpoint is one registered device token owned by a recipient.
type PushEndpoint struct {
	Recipient RecipientID
	Token     string
	Platform  string
}

// PushMessage is the payload sent to every endpoint of one request.
// It is built once and shared read-only by all dispatch tasks.
type PushMessage struct {
	Title string
	Body  string
	Data  map[string]any
}

// DispatchOutcome records the result of a single gateway call.
// Response holds the gateway's JSON reply on success; Error holds the
// failure text otherwise.
type DispatchOutcome struct {
	Recipient RecipientID     `json:"user_id"`
	Success   bool            `json:"success"`
	Response  json.RawMessage `json:"response,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// DispatchSummary is derived from a set of outcomes and never stored.
type DispatchSummary struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// NotificationLogEntry is the durable record written per resolved endpoint.
type NotificationLogEntry struct {
	Recipient RecipientID
	Title     string
	Body      string
	Data      map[string]any
	Type      string
}
