// Package warmup replays a script of administrative queries against the
// query engine before the node is considered warm. Replay is best-effort:
// it never prevents the node from becoming ready.
package warmup

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/edvin/mapd/internal/engine"
	"github.com/edvin/mapd/internal/metrics"
)

// headerKeyword opens a warm-up block: "USER <username> <database>".
const headerKeyword = "USER"

// Replayer executes warm-up scripts against an engine handler.
type Replayer struct {
	logger  zerolog.Logger
	handler engine.Handler
}

// New builds a Replayer around the given engine handler.
func New(logger zerolog.Logger, handler engine.Handler) *Replayer {
	return &Replayer{
		logger:  logger.With().Str("component", "warmup").Logger(),
		handler: handler,
	}
}

// Run replays the script at path. An empty path is a no-op. Any failure is
// logged as a warning and swallowed; warm-up runs for its cache side effects
// and must never block startup.
func (r *Replayer) Run(ctx context.Context, path string) {
	if path == "" {
		return
	}
	r.logger.Info().Str("path", path).Msg("running DB warm-up with queries from script")
	if err := r.replay(ctx, path); err != nil {
		r.logger.Warn().Err(err).
			Msg("error while executing warm-up queries, warm-up may not be fully completed, proceeding nevertheless")
	}
}

// replay scans the script block by block. The deferred cleanup disconnects
// any live session and closes the file on every exit path.
func (r *Replayer) replay(ctx context.Context, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open warm-up script: %w", err)
	}

	session := engine.InvalidSessionID
	defer func() {
		if session != engine.InvalidSessionID {
			if derr := r.handler.Disconnect(ctx, session); derr != nil {
				r.logger.Warn().Err(derr).Msg("disconnect warm-up session")
			}
		}
		file.Close()
	}()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		header := strings.TrimSpace(scanner.Text())
		if header == "" {
			continue
		}

		fields := strings.Fields(header)
		if fields[0] != headerKeyword || len(fields) < 3 {
			r.logger.Warn().Str("line", header).Str("path", path).
				Msg("syntax error in warm-up script: expected block header 'USER <user> <database>', line ignored")
			continue
		}
		user, database := fields[1], fields[2]

		id, err := r.handler.ConnectElevated(ctx, user, database)
		if err != nil {
			return fmt.Errorf("connect as %s to %s: %w", user, database, err)
		}
		session = id

		if err := r.replayBlock(ctx, scanner, session); err != nil {
			return err
		}

		derr := r.handler.Disconnect(ctx, session)
		session = engine.InvalidSessionID
		if derr != nil {
			return fmt.Errorf("disconnect warm-up session: %w", derr)
		}
		metrics.WarmupBlocks.Inc()
	}
	return scanner.Err()
}

// replayBlock executes statement lines in order until the "}" terminator or
// end of file, discarding results.
func (r *Replayer) replayBlock(ctx context.Context, scanner *bufio.Scanner, session engine.SessionID) error {
	for scanner.Scan() {
		statement := strings.TrimSpace(scanner.Text())
		if statement == "" {
			continue
		}
		if statement == "}" {
			return nil
		}
		if _, err := r.handler.ExecuteQuery(ctx, session, statement); err != nil {
			return fmt.Errorf("execute warm-up statement %q: %w", statement, err)
		}
		metrics.WarmupStatements.Inc()
	}
	return scanner.Err()
}
