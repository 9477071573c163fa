package db

import (
	"context"

	"campuspush/internal/types"
)

// TokenRepository reads registered device tokens from user_tokens.
type TokenRepository struct {
	db DBTX
}

// NewTokenRepository creates a TokenRepository backed by the given connection.
func NewTokenRepository(db DBTX) *TokenRepository {
	return &TokenRepository{db: db}
}

// EndpointsFor returns every endpoint owned by any of the given users.
// Rows come back in store order; recipients without a token are simply
// absent from the result.
func (r *TokenRepository) EndpointsFor(ctx context.Context, ids []types.RecipientID) ([]types.PushEndpoint, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = string(id)
	}

	rows, err := r.db.Query(ctx,
		`SELECT user_id, fcm_token, COALESCE(platform, '')
		 FROM user_tokens
		 WHERE user_id = ANY($1)`,
		raw,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query device tokens", err)
	}
	defer rows.Close()

	var endpoints []types.PushEndpoint
	for rows.Next() {
		var (
			userID string
			ep     types.PushEndpoint
		)
		if err := rows.Scan(&userID, &ep.Token, &ep.Platform); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan device token", err)
		}
		ep.Recipient = types.RecipientID(userID)
		endpoints = append(endpoints, ep)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate device tokens", err)
	}

	return endpoints, nil
}
