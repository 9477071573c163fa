package db

import (
	"context"

	"campuspush/internal/types"
)

// DirectoryRepository reads campus membership from the profiles table.
type DirectoryRepository struct {
	db DBTX
}

// NewDirectoryRepository creates a DirectoryRepository backed by the given
// connection (pool or transaction).
func NewDirectoryRepository(db DBTX) *DirectoryRepository {
	return &DirectoryRepository{db: db}
}

// MembersOf returns the ids of every profile whose campus equals name.
// An empty result is not an error; callers decide what an empty campus means.
func (r *DirectoryRepository) MembersOf(ctx context.Context, campus string) ([]types.RecipientID, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id FROM profiles WHERE campus = $1`,
		campus,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query campus members", err)
	}
	defer rows.Close()

	var members []types.RecipientID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan campus member", err)
		}
		members = append(members, types.RecipientID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate campus members", err)
	}

	return members, nil
}
