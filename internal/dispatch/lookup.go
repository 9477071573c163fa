package dispatch

import (
	"context"

	"campuspush/internal/types"
)

// Lookup resolves recipients to device endpoints.
type Lookup struct {
	tokens TokenStore
}

// NewLookup creates a Lookup over the token store.
func NewLookup(tokens TokenStore) *Lookup {
	return &Lookup{tokens: tokens}
}

// Endpoints returns every endpoint owned by ids. It fails with a not-found
// error when no recipient has a registered token; the message depends on
// the audience mode.
func (l *Lookup) Endpoints(ctx context.Context, mode types.AudienceMode, ids []types.RecipientID) ([]types.PushEndpoint, error) {
	endpoints, err := l.tokens.EndpointsFor(ctx, ids)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamTokenStore, "Failed to fetch FCM tokens", err)
	}
	if len(endpoints) == 0 {
		return nil, types.NewAppError(types.ErrCodeNotFoundEndpoints, noEndpointsMessage(mode), nil)
	}
	return endpoints, nil
}

func noEndpointsMessage(mode types.AudienceMode) string {
	switch mode {
	case types.AudienceSingle:
		return "FCM token not found for user"
	case types.AudienceCampus:
		return "No FCM tokens found for users in this campus"
	default:
		return "No FCM tokens found for the specified users"
	}
}
