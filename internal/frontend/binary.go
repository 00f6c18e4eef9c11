package frontend

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/apache/thrift/lib/go/thrift"
	"github.com/rs/zerolog"
)

// BinaryServer is the primary endpoint: a buffered binary-protocol socket
// whose accepted connections are dispatched onto the shared worker pool.
type BinaryServer struct {
	logger           zerolog.Logger
	addr             string
	socket           *thrift.TServerSocket
	processor        thrift.TProcessor
	transportFactory thrift.TTransportFactory
	protocolFactory  thrift.TProtocolFactory
	pool             *Pool
	stopped          atomic.Bool
}

// NewBinaryServer builds the binary-protocol endpoint on port.
func NewBinaryServer(logger zerolog.Logger, processor thrift.TProcessor, pool *Pool, port int) (*BinaryServer, error) {
	addr := fmt.Sprintf(":%d", port)
	socket, err := thrift.NewTServerSocket(addr)
	if err != nil {
		return nil, fmt.Errorf("binary endpoint socket %s: %w", addr, err)
	}
	return &BinaryServer{
		logger:           logger.With().Str("component", "binary-endpoint").Logger(),
		addr:             addr,
		socket:           socket,
		processor:        processor,
		transportFactory: thrift.NewTBufferedTransportFactory(8192),
		protocolFactory:  thrift.NewTBinaryProtocolFactoryDefault(),
		pool:             pool,
	}, nil
}

// Serve runs the accept/dispatch loop. It returns nil after Stop and an error
// on an unrecoverable transport failure; either way only this loop exits.
func (s *BinaryServer) Serve() error {
	if err := s.socket.Listen(); err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	s.logger.Info().Str("addr", s.addr).Msg("binary protocol endpoint listening")

	for {
		client, err := s.socket.Accept()
		if err != nil {
			if s.stopped.Load() {
				return nil
			}
			return fmt.Errorf("accept on %s: %w", s.addr, err)
		}
		conn := client
		if err := s.pool.Submit(context.Background(), "binary", func() { s.handle(conn) }); err != nil {
			conn.Close()
			return nil
		}
	}
}

// Stop interrupts the accept loop and closes the listener.
func (s *BinaryServer) Stop() {
	s.stopped.Store(true)
	s.socket.Interrupt()
	s.socket.Close()
}

// handle serves one connection: process messages until the peer disconnects
// or an error ends the connection.
func (s *BinaryServer) handle(client thrift.TTransport) {
	trans, err := s.transportFactory.GetTransport(client)
	if err != nil {
		s.logger.Warn().Err(err).Msg("wrap client transport")
		client.Close()
		return
	}
	defer trans.Close()

	in := s.protocolFactory.GetProtocol(trans)
	out := s.protocolFactory.GetProtocol(trans)
	ctx := context.Background()

	for {
		ok, exc := s.processor.Process(ctx, in, out)
		if exc != nil {
			if tte, isTransport := exc.(thrift.TTransportException); isTransport && tte.TypeId() == thrift.END_OF_FILE {
				return
			}
			s.logger.Debug().Err(exc).Msg("connection ended")
			return
		}
		if !ok {
			return
		}
	}
}
