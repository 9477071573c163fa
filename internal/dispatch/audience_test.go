package dispatch

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campuspush/internal/types"
)

func TestResolver_Single(t *testing.T) {
	dir := &fakeDirectory{}
	ids, err := NewResolver(dir).Resolve(context.Background(), types.SingleUser("u1"))

	require.NoError(t, err)
	assert.Equal(t, []types.RecipientID{"u1"}, ids)
	assert.Zero(t, dir.calls, "single audiences never touch the directory")
}

func TestResolver_ListKeepsDuplicates(t *testing.T) {
	in := []types.RecipientID{"u1", "u2", "u1"}
	ids, err := NewResolver(&fakeDirectory{}).Resolve(context.Background(), types.UserList(in))

	require.NoError(t, err)
	assert.Equal(t, in, ids)

	// The result is a copy.
	ids[0] = "changed"
	assert.Equal(t, types.RecipientID("u1"), in[0])
}

func TestResolver_Campus(t *testing.T) {
	dir := &fakeDirectory{members: map[string][]types.RecipientID{"north": {"u1", "u2"}}}
	ids, err := NewResolver(dir).Resolve(context.Background(), types.CampusAudience("north"))

	require.NoError(t, err)
	assert.Equal(t, []types.RecipientID{"u1", "u2"}, ids)
}

func TestResolver_CampusEmpty(t *testing.T) {
	dir := &fakeDirectory{members: map[string][]types.RecipientID{}}
	_, err := NewResolver(dir).Resolve(context.Background(), types.CampusAudience("ghost"))

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeNotFoundAudience, appErr.Code)
	assert.Equal(t, http.StatusNotFound, appErr.HTTPStatus())
	assert.Equal(t, "No users found for the specified campus", appErr.Message)
}

func TestResolver_CampusDirectoryError(t *testing.T) {
	cause := errors.New("connection refused")
	dir := &fakeDirectory{err: cause}
	_, err := NewResolver(dir).Resolve(context.Background(), types.CampusAudience("north"))

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeUpstreamDirectory, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.HTTPStatus())
	assert.ErrorIs(t, err, cause)
}

func TestResolver_UnknownMode(t *testing.T) {
	_, err := NewResolver(&fakeDirectory{}).Resolve(context.Background(), types.Audience{Mode: "region"})
	require.Error(t, err)
}
