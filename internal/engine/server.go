package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/edvin/mapd/internal/cluster"
	"github.com/edvin/mapd/internal/config"
)

// DefaultUser and DefaultPassword are the credentials seeded by initdb.
const (
	DefaultUser     = "mapd"
	DefaultPassword = "HyperInteractive"
)

// Params carries the startup parameters the engine consumes.
type Params struct {
	BasePath string
	Device   string
	ReadOnly bool

	DbLeaves     []cluster.LeafHost
	StringLeaves []cluster.LeafHost

	CPUBufferMemBytes uint64
	ReservedGPUMem    uint64
	NumGPUs           int
	StartGPU          int
	NumReaderThreads  uint64
	StartEpoch        int

	EnableWatchdog             bool
	EnableDynamicWatchdog      bool
	DynamicWatchdogTimeLimitMS uint64

	ConvertDir string
}

// ParamsFromConfig maps the server config and resolved topology onto engine
// startup parameters.
func ParamsFromConfig(cfg *config.Config, topo cluster.Topology) Params {
	return Params{
		BasePath:                   cfg.Data,
		Device:                     cfg.Device,
		ReadOnly:                   cfg.ReadOnly,
		DbLeaves:                   topo.DbLeaves,
		StringLeaves:               topo.StringLeaves,
		CPUBufferMemBytes:          cfg.CPUBufferMemBytes,
		ReservedGPUMem:             cfg.ReservedGPUMem,
		NumGPUs:                    cfg.NumGPUs,
		StartGPU:                   cfg.StartGPU,
		NumReaderThreads:           cfg.NumReaderThreads,
		StartEpoch:                 cfg.StartEpoch,
		EnableWatchdog:             cfg.EnableWatchdog,
		EnableDynamicWatchdog:      cfg.EnableDynamicWatchdog,
		DynamicWatchdogTimeLimitMS: cfg.DynamicWatchdogTimeLimitMS,
		ConvertDir:                 cfg.DBConvertDir,
	}
}

// Session is one open connection to the engine.
type Session struct {
	ID       SessionID
	User     string
	Database string
	Started  time.Time
}

// Server implements Handler: it admits sessions against the user catalog and
// dispatches statements to the executor.
type Server struct {
	logger zerolog.Logger
	params Params
	exec   Executor

	mu       sync.Mutex
	sessions map[SessionID]*Session
	users    map[string][]byte // user -> bcrypt hash
}

// NewServer builds the engine boundary. A nil executor gets the no-op
// executor. The default superuser is always present.
func NewServer(logger zerolog.Logger, params Params, exec Executor) (*Server, error) {
	if exec == nil {
		exec = NoopExecutor{}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("seed default user: %w", err)
	}
	return &Server{
		logger:   logger.With().Str("component", "engine").Logger(),
		params:   params,
		exec:     exec,
		sessions: make(map[SessionID]*Session),
		users:    map[string][]byte{DefaultUser: hash},
	}, nil
}

// AddUser registers a user with a bcrypt hash of password.
func (s *Server) AddUser(user, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user] = hash
	return nil
}

// Connect verifies credentials and opens a session on database.
func (s *Server) Connect(ctx context.Context, user, password, database string) (SessionID, error) {
	s.mu.Lock()
	hash, ok := s.users[user]
	s.mu.Unlock()
	if !ok {
		return InvalidSessionID, ErrInvalidUser
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return InvalidSessionID, ErrInvalidUser
	}
	return s.openSession(user, database)
}

// ConnectElevated opens a session without credential verification. Only the
// connect itself is elevated; the session is an ordinary one.
func (s *Server) ConnectElevated(ctx context.Context, user, database string) (SessionID, error) {
	return s.openSession(user, database)
}

func (s *Server) openSession(user, database string) (SessionID, error) {
	if err := s.checkDatabase(database); err != nil {
		return InvalidSessionID, err
	}
	session := &Session{
		ID:       SessionID(uuid.NewString()),
		User:     user,
		Database: database,
		Started:  time.Now(),
	}
	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()
	s.logger.Debug().Str("user", user).Str("db", database).Msg("session opened")
	return session.ID, nil
}

// Disconnect closes the session.
func (s *Server) Disconnect(ctx context.Context, id SessionID) error {
	s.mu.Lock()
	session, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.mu.Unlock()
	if !ok {
		return ErrInvalidSession
	}
	s.logger.Debug().Str("user", session.User).Str("db", session.Database).Msg("session closed")
	return nil
}

// ExecuteQuery runs one statement synchronously on an open session.
func (s *Server) ExecuteQuery(ctx context.Context, id SessionID, statement string) (*QueryResult, error) {
	s.mu.Lock()
	session, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		return nil, ErrInvalidSession
	}
	return s.exec.Execute(ctx, session, statement)
}

// SessionCount reports the number of open sessions.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// checkDatabase verifies the database exists in the catalog store. An empty
// base path (tests) skips the check.
func (s *Server) checkDatabase(database string) error {
	if s.params.BasePath == "" || database == "" {
		return nil
	}
	path := filepath.Join(s.params.BasePath, config.CatalogsDirName, database)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: %s", ErrUnknownDatabase, database)
	}
	return nil
}
