package db

import (
	"context"
	"encoding/json"

	"campuspush/internal/types"
)

// NotificationLogRepository appends delivery records to the notifications
// table. Rows are written once and never updated by this service.
type NotificationLogRepository struct {
	db DBTX
}

// NewNotificationLogRepository creates a NotificationLogRepository backed by
// the given connection.
func NewNotificationLogRepository(db DBTX) *NotificationLogRepository {
	return &NotificationLogRepository{db: db}
}

// InsertBatch writes all entries in a single statement. Column arrays are
// unnested server-side so a campus broadcast costs one round trip.
func (r *NotificationLogRepository) InsertBatch(ctx context.Context, entries []types.NotificationLogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	var (
		userIDs = make([]string, len(entries))
		titles  = make([]string, len(entries))
		bodies  = make([]string, len(entries))
		data    = make([]string, len(entries))
		kinds   = make([]string, len(entries))
	)
	for i, e := range entries {
		payload := e.Data
		if payload == nil {
			payload = map[string]any{}
		}
		encoded, err := json.Marshal(payload)
		if err != nil {
			return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode notification data", err)
		}

		userIDs[i] = string(e.Recipient)
		titles[i] = e.Title
		bodies[i] = e.Body
		data[i] = string(encoded)
		kinds[i] = e.Type
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO notifications (user_id, title, body, data, type)
		 SELECT u, t, b, d::jsonb, k
		 FROM unnest($1::text[], $2::text[], $3::text[], $4::text[], $5::text[]) AS x(u, t, b, d, k)`,
		userIDs, titles, bodies, data, kinds,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to insert notification log entries", err)
	}
	return nil
}
