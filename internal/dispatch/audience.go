package dispatch

import (
	"context"
	"fmt"

	"campuspush/internal/types"
)

// Resolver expands an audience into recipient ids.
type Resolver struct {
	directory Directory
}

// NewResolver creates a Resolver. directory is only consulted for campus
// audiences.
func NewResolver(directory Directory) *Resolver {
	return &Resolver{directory: directory}
}

// Resolve returns the recipients of aud. Single and list audiences are
// returned as given, without checking that the ids exist and without
// de-duplication.
func (r *Resolver) Resolve(ctx context.Context, aud types.Audience) ([]types.RecipientID, error) {
	switch aud.Mode {
	case types.AudienceSingle:
		return []types.RecipientID{aud.UserID}, nil

	case types.AudienceList:
		ids := make([]types.RecipientID, len(aud.UserIDs))
		copy(ids, aud.UserIDs)
		return ids, nil

	case types.AudienceCampus:
		members, err := r.directory.MembersOf(ctx, aud.Campus)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeUpstreamDirectory, "Failed to fetch users from campus", err)
		}
		if len(members) == 0 {
			return nil, types.NewAppError(types.ErrCodeNotFoundAudience, "No users found for the specified campus", nil)
		}
		return members, nil

	default:
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, fmt.Sprintf("unknown audience mode %q", aud.Mode), nil)
	}
}
