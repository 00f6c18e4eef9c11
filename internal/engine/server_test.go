package engine

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	srv, err := NewServer(zerolog.Nop(), Params{}, nil)
	require.NoError(t, err)
	return srv
}

func TestConnect_DefaultUser(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	id, err := srv.Connect(ctx, DefaultUser, DefaultPassword, "mapd")
	require.NoError(t, err)
	assert.NotEqual(t, InvalidSessionID, id)
	assert.Equal(t, 1, srv.SessionCount())
}

func TestConnect_WrongPassword(t *testing.T) {
	srv := newTestServer(t)

	id, err := srv.Connect(context.Background(), DefaultUser, "wrong", "mapd")
	assert.ErrorIs(t, err, ErrInvalidUser)
	assert.Equal(t, InvalidSessionID, id)
	assert.Equal(t, 0, srv.SessionCount())
}

func TestConnect_UnknownUser(t *testing.T) {
	srv := newTestServer(t)

	_, err := srv.Connect(context.Background(), "nobody", "pw", "mapd")
	assert.ErrorIs(t, err, ErrInvalidUser)
}

func TestConnectElevated_BypassesPassword(t *testing.T) {
	srv := newTestServer(t)

	// No password is presented and the user need not exist in the catalog;
	// only the act of connecting is elevated.
	id, err := srv.ConnectElevated(context.Background(), "warmup_user", "sales")
	require.NoError(t, err)
	assert.NotEqual(t, InvalidSessionID, id)
}

func TestDisconnect(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	id, err := srv.ConnectElevated(ctx, "a", "db")
	require.NoError(t, err)

	require.NoError(t, srv.Disconnect(ctx, id))
	assert.Equal(t, 0, srv.SessionCount())

	assert.ErrorIs(t, srv.Disconnect(ctx, id), ErrInvalidSession)
}

func TestExecuteQuery(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	id, err := srv.ConnectElevated(ctx, "a", "db")
	require.NoError(t, err)

	result, err := srv.ExecuteQuery(ctx, id, "SELECT 1;")
	require.NoError(t, err)
	assert.NotNil(t, result)
}

func TestExecuteQuery_InvalidSession(t *testing.T) {
	srv := newTestServer(t)

	_, err := srv.ExecuteQuery(context.Background(), SessionID("bogus"), "SELECT 1;")
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestAddUser(t *testing.T) {
	srv := newTestServer(t)
	require.NoError(t, srv.AddUser("alice", "secret"))

	_, err := srv.Connect(context.Background(), "alice", "secret", "db")
	assert.NoError(t, err)

	_, err = srv.Connect(context.Background(), "alice", "not-secret", "db")
	assert.ErrorIs(t, err, ErrInvalidUser)
}
