package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campuspush/internal/types"
)

func TestLookup_Endpoints(t *testing.T) {
	tokens := newFakeTokens(ep("u1", "a"), ep("u1", "b"), ep("u2", "c"))
	endpoints, err := NewLookup(tokens).Endpoints(context.Background(), types.AudienceList, []types.RecipientID{"u1", "u2", "u3"})

	require.NoError(t, err)
	assert.Len(t, endpoints, 3)
}

func TestLookup_NoEndpointsMessages(t *testing.T) {
	tests := []struct {
		mode types.AudienceMode
		want string
	}{
		{types.AudienceSingle, "FCM token not found for user"},
		{types.AudienceList, "No FCM tokens found for the specified users"},
		{types.AudienceCampus, "No FCM tokens found for users in this campus"},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			_, err := NewLookup(newFakeTokens()).Endpoints(context.Background(), tt.mode, []types.RecipientID{"u1"})

			var appErr *types.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, types.ErrCodeNotFoundEndpoints, appErr.Code)
			assert.Equal(t, tt.want, appErr.Message)
		})
	}
}

func TestLookup_StoreError(t *testing.T) {
	tokens := newFakeTokens()
	tokens.err = errors.New("timeout")

	_, err := NewLookup(tokens).Endpoints(context.Background(), types.AudienceList, []types.RecipientID{"u1"})

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeUpstreamTokenStore, appErr.Code)
	assert.Equal(t, "Failed to fetch FCM tokens", appErr.Message)
	assert.Equal(t, 1, tokens.calls, "no retry")
}
