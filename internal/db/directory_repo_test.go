package db

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"campuspush/internal/types"
)

func TestDirectoryRepository_MembersOf(t *testing.T) {
	db := new(mockDBTX)
	repo := NewDirectoryRepository(db)
	ctx := context.Background()

	rows := newMockRows([]string{"u1"}, []string{"u2"}, []string{"u3"})
	db.On("Query", ctx, `SELECT id FROM profiles WHERE campus = $1`, []any{"north"}).Return(rows, nil)

	members, err := repo.MembersOf(ctx, "north")
	require.NoError(t, err)
	assert.Equal(t, []types.RecipientID{"u1", "u2", "u3"}, members)
	assert.True(t, rows.closed, "rows must be closed")
	db.AssertExpectations(t)
}

func TestDirectoryRepository_MembersOf_Empty(t *testing.T) {
	db := new(mockDBTX)
	repo := NewDirectoryRepository(db)
	ctx := context.Background()

	db.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).Return(newMockRows(), nil)

	members, err := repo.MembersOf(ctx, "ghost-campus")
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestDirectoryRepository_MembersOf_QueryError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewDirectoryRepository(db)
	ctx := context.Background()

	db.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(nil, errors.New("connection reset"))

	_, err := repo.MembersOf(ctx, "north")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

func TestDirectoryRepository_MembersOf_IterationError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewDirectoryRepository(db)
	ctx := context.Background()

	rows := newMockRows([]string{"u1"})
	rows.errVal = errors.New("stream broken")
	db.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).Return(rows, nil)

	_, err := repo.MembersOf(ctx, "north")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to iterate campus members")
}
