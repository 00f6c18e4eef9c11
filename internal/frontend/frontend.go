// Package frontend runs the node's two request-serving endpoints: a binary
// protocol socket and an HTTP/JSON server, sharing one bounded worker pool.
package frontend

import (
	"fmt"
	"sync"

	"github.com/apache/thrift/lib/go/thrift"
	"github.com/rs/zerolog"
)

// Options configures the front-end.
type Options struct {
	Port     int
	HTTPPort int
	PoolSize int
}

// Frontend supervises the two endpoint loops. A failure in one loop is logged
// and ends only that loop; the process is running as long as either survives.
type Frontend struct {
	logger zerolog.Logger
	pool   *Pool
	binary *BinaryServer
	http   *HTTPServer
	wg     sync.WaitGroup
}

// New wires both endpoints around the shared processor and worker pool.
func New(logger zerolog.Logger, processor thrift.TProcessor, opts Options) (*Frontend, error) {
	pool := NewPool(opts.PoolSize)

	binary, err := NewBinaryServer(logger, processor, pool, opts.Port)
	if err != nil {
		return nil, fmt.Errorf("binary endpoint: %w", err)
	}

	return &Frontend{
		logger: logger.With().Str("component", "frontend").Logger(),
		pool:   pool,
		binary: binary,
		http:   NewHTTPServer(logger, processor, pool, opts.HTTPPort),
	}, nil
}

// Start launches both endpoint loops on their own goroutines and returns
// immediately.
func (f *Frontend) Start() {
	f.wg.Add(2)
	go f.supervise("binary", f.binary.Serve)
	go f.supervise("http", f.http.Serve)
}

func (f *Frontend) supervise(name string, serve func() error) {
	defer f.wg.Done()
	if err := serve(); err != nil {
		f.logger.Error().Err(err).Str("endpoint", name).Msg("endpoint terminated")
		return
	}
	f.logger.Info().Str("endpoint", name).Msg("endpoint stopped")
}

// Wait blocks until both endpoint loops have exited.
func (f *Frontend) Wait() {
	f.wg.Wait()
}

// Stop closes both listeners, ending their loops.
func (f *Frontend) Stop() {
	f.binary.Stop()
	f.http.Stop()
}
