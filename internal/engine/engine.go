// Package engine is the boundary to the query engine: session admission,
// query dispatch, and the elevation rules around connect. Query planning and
// execution live behind the Executor seam.
package engine

import (
	"context"
	"errors"
	"time"
)

// SessionID is an opaque session handle issued by Connect.
type SessionID string

// InvalidSessionID is the reserved sentinel for "no session".
const InvalidSessionID SessionID = ""

var (
	ErrInvalidSession  = errors.New("invalid session")
	ErrInvalidUser     = errors.New("invalid credentials")
	ErrUnknownDatabase = errors.New("database does not exist")
)

// QueryResult is the engine's answer to a statement. Warm-up discards it.
type QueryResult struct {
	ExecutionTime time.Duration
	RowCount      int64
}

// Handler is the request-processing contract both front-ends and the warm-up
// replayer share.
//
// ConnectElevated bypasses credential verification; the elevation is scoped
// to the connect call itself, so the resulting session carries no privileges
// beyond what Connect grants.
type Handler interface {
	Connect(ctx context.Context, user, password, database string) (SessionID, error)
	ConnectElevated(ctx context.Context, user, database string) (SessionID, error)
	Disconnect(ctx context.Context, id SessionID) error
	ExecuteQuery(ctx context.Context, id SessionID, statement string) (*QueryResult, error)
}

// Executor runs a single statement on behalf of a session. The execution core
// is external to this layer; it is responsible for its own thread safety
// under concurrent sessions.
type Executor interface {
	Execute(ctx context.Context, session *Session, statement string) (*QueryResult, error)
}
