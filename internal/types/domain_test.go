package types

import (
	"encoding/json"
	"testing"
)

func TestAudience_DefaultType(t *testing.T) {
	tests := []struct {
		name     string
		audience Audience
		want     string
	}{
		{"single", SingleUser("u1"), NotificationTypeGeneral},
		{"list", UserList([]RecipientID{"u1", "u2"}), NotificationTypeGeneral},
		{"campus", CampusAudience("north"), NotificationTypeCampusAnnouncement},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.audience.DefaultType(); got != tt.want {
				t.Errorf("DefaultType() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAudience_String(t *testing.T) {
	if got := CampusAudience("north").String(); got != "campus(north)" {
		t.Errorf("String() = %q", got)
	}
	if got := UserList([]RecipientID{"a", "b", "a"}).String(); got != "list(3)" {
		t.Errorf("String() = %q", got)
	}
}

// TestDispatchOutcome_JSON verifies successful outcomes carry "response" and
// failed ones carry "error", never both.
func TestDispatchOutcome_JSON(t *testing.T) {
	ok := DispatchOutcome{Recipient: "u1", Success: true, Response: json.RawMessage(`{"success":1}`)}
	out, err := json.Marshal(ok)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(out) != `{"user_id":"u1","success":true,"response":{"success":1}}` {
		t.Errorf("unexpected JSON: %s", out)
	}

	failed := DispatchOutcome{Recipient: "u2", Error: "fcm returned 401"}
	out, err = json.Marshal(failed)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(out) != `{"user_id":"u2","success":false,"error":"fcm returned 401"}` {
		t.Errorf("unexpected JSON: %s", out)
	}
}
