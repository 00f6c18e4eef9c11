// Package logging builds the server's structured logger, writing to stderr
// and to a log file under the data directory.
package logging

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/edvin/mapd/internal/config"
)

const logFileName = "mapd-server.log"

// fileBufferSize is used when --flush-log=false buffers file writes.
const fileBufferSize = 64 * 1024

// Closer flushes and closes the log file. The signal path calls Close before
// terminating so buffered log writes reach disk.
type Closer struct {
	buf  *bufio.Writer
	file *os.File
}

// Close flushes any buffered writes and closes the log file.
func (c *Closer) Close() error {
	if c == nil {
		return nil
	}
	if c.buf != nil {
		if err := c.buf.Flush(); err != nil {
			return err
		}
	}
	if c.file != nil {
		return c.file.Close()
	}
	return nil
}

// New creates the log directory if absent and returns a zerolog.Logger that
// writes to stderr and <data>/mapd_log/mapd-server.log. When cfg.FlushLog is
// false, file writes go through a buffer flushed only on Close.
func New(cfg *config.Config) (zerolog.Logger, *Closer, error) {
	dir := cfg.LogDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("create log directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, logFileName)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("open log file %s: %w", path, err)
	}

	closer := &Closer{file: file}
	var fileWriter io.Writer = file
	if !cfg.FlushLog {
		closer.buf = bufio.NewWriterSize(file, fileBufferSize)
		fileWriter = closer.buf
	}

	logger := zerolog.New(io.MultiWriter(os.Stderr, fileWriter)).With().
		Timestamp().
		Str("service", "mapd-server").
		Logger()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	return logger.Level(level), closer, nil
}
