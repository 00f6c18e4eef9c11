package frontend

import (
	"context"

	"github.com/apache/thrift/lib/go/thrift"
	"github.com/rs/zerolog"

	"github.com/edvin/mapd/internal/engine"
)

// Method names shared by the binary and HTTP transports.
const (
	methodConnect    = "connect"
	methodDisconnect = "disconnect"
	methodSQLExecute = "sql_execute"
)

// Processor decodes method calls from a thrift protocol and dispatches them
// onto the engine handler. Both endpoints share one Processor instance.
type Processor struct {
	logger  zerolog.Logger
	handler engine.Handler
}

// NewProcessor builds the shared request processor.
func NewProcessor(logger zerolog.Logger, handler engine.Handler) *Processor {
	return &Processor{
		logger:  logger.With().Str("component", "processor").Logger(),
		handler: handler,
	}
}

// Process handles one message from in and writes the reply to out. It returns
// false only when the connection is no longer usable.
func (p *Processor) Process(ctx context.Context, in, out thrift.TProtocol) (bool, thrift.TException) {
	name, _, seqID, err := in.ReadMessageBegin()
	if err != nil {
		return false, err
	}

	switch name {
	case methodConnect:
		return p.processConnect(ctx, seqID, in, out)
	case methodDisconnect:
		return p.processDisconnect(ctx, seqID, in, out)
	case methodSQLExecute:
		return p.processSQLExecute(ctx, seqID, in, out)
	default:
		if err := in.Skip(thrift.STRUCT); err != nil {
			return false, err
		}
		if err := in.ReadMessageEnd(); err != nil {
			return false, err
		}
		p.logger.Warn().Str("method", name).Msg("unknown method")
		exc := thrift.NewTApplicationException(thrift.UNKNOWN_METHOD, "unknown method "+name)
		if err := writeException(ctx, out, name, seqID, exc); err != nil {
			return false, err
		}
		return true, nil
	}
}

func (p *Processor) processConnect(ctx context.Context, seqID int32, in, out thrift.TProtocol) (bool, thrift.TException) {
	var user, password, database string
	if err := readStringArgs(in, map[int16]*string{1: &user, 2: &password, 3: &database}); err != nil {
		return false, err
	}

	session, err := p.handler.Connect(ctx, user, password, database)
	if err != nil {
		return p.reply(ctx, out, methodConnect, seqID, func(thrift.TProtocol) error { return nil }, err)
	}
	return p.reply(ctx, out, methodConnect, seqID, func(prot thrift.TProtocol) error {
		return writeStringField(prot, "success", 0, string(session))
	}, nil)
}

func (p *Processor) processDisconnect(ctx context.Context, seqID int32, in, out thrift.TProtocol) (bool, thrift.TException) {
	var session string
	if err := readStringArgs(in, map[int16]*string{1: &session}); err != nil {
		return false, err
	}

	err := p.handler.Disconnect(ctx, engine.SessionID(session))
	return p.reply(ctx, out, methodDisconnect, seqID, func(thrift.TProtocol) error { return nil }, err)
}

func (p *Processor) processSQLExecute(ctx context.Context, seqID int32, in, out thrift.TProtocol) (bool, thrift.TException) {
	var session, query string
	if err := readStringArgs(in, map[int16]*string{1: &session, 2: &query}); err != nil {
		return false, err
	}

	result, err := p.handler.ExecuteQuery(ctx, engine.SessionID(session), query)
	if err != nil {
		return p.reply(ctx, out, methodSQLExecute, seqID, func(thrift.TProtocol) error { return nil }, err)
	}
	return p.reply(ctx, out, methodSQLExecute, seqID, func(prot thrift.TProtocol) error {
		return writeResultStruct(prot, result)
	}, nil)
}

// reply writes either a success envelope (via writeSuccess) or an application
// exception when callErr is set. Handler errors do not tear down the
// connection.
func (p *Processor) reply(ctx context.Context, out thrift.TProtocol, name string, seqID int32, writeSuccess func(thrift.TProtocol) error, callErr error) (bool, thrift.TException) {
	if callErr != nil {
		p.logger.Debug().Err(callErr).Str("method", name).Msg("request failed")
		exc := thrift.NewTApplicationException(thrift.INTERNAL_ERROR, callErr.Error())
		if err := writeException(ctx, out, name, seqID, exc); err != nil {
			return false, err
		}
		return true, nil
	}
	if err := writeReply(ctx, out, name, seqID, writeSuccess); err != nil {
		return false, err
	}
	return true, nil
}

// readStringArgs consumes an args struct whose fields of interest are all
// strings, storing each by field id and skipping anything else, then reads
// the message end.
func readStringArgs(in thrift.TProtocol, dst map[int16]*string) error {
	if _, err := in.ReadStructBegin(); err != nil {
		return err
	}
	for {
		_, fieldType, fieldID, err := in.ReadFieldBegin()
		if err != nil {
			return err
		}
		if fieldType == thrift.STOP {
			break
		}
		if ptr, ok := dst[fieldID]; ok && fieldType == thrift.STRING {
			value, err := in.ReadString()
			if err != nil {
				return err
			}
			*ptr = value
		} else if err := in.Skip(fieldType); err != nil {
			return err
		}
		if err := in.ReadFieldEnd(); err != nil {
			return err
		}
	}
	if err := in.ReadStructEnd(); err != nil {
		return err
	}
	return in.ReadMessageEnd()
}

func writeReply(ctx context.Context, out thrift.TProtocol, name string, seqID int32, writeSuccess func(thrift.TProtocol) error) error {
	if err := out.WriteMessageBegin(name, thrift.REPLY, seqID); err != nil {
		return err
	}
	if err := out.WriteStructBegin(name + "_result"); err != nil {
		return err
	}
	if err := writeSuccess(out); err != nil {
		return err
	}
	if err := out.WriteFieldStop(); err != nil {
		return err
	}
	if err := out.WriteStructEnd(); err != nil {
		return err
	}
	if err := out.WriteMessageEnd(); err != nil {
		return err
	}
	return out.Flush(ctx)
}

func writeException(ctx context.Context, out thrift.TProtocol, name string, seqID int32, exc thrift.TApplicationException) error {
	if err := out.WriteMessageBegin(name, thrift.EXCEPTION, seqID); err != nil {
		return err
	}
	if err := exc.Write(out); err != nil {
		return err
	}
	if err := out.WriteMessageEnd(); err != nil {
		return err
	}
	return out.Flush(ctx)
}

func writeStringField(out thrift.TProtocol, name string, id int16, value string) error {
	if err := out.WriteFieldBegin(name, thrift.STRING, id); err != nil {
		return err
	}
	if err := out.WriteString(value); err != nil {
		return err
	}
	return out.WriteFieldEnd()
}

// writeResultStruct encodes a query result as the success field of an
// sql_execute reply.
func writeResultStruct(out thrift.TProtocol, result *engine.QueryResult) error {
	if err := out.WriteFieldBegin("success", thrift.STRUCT, 0); err != nil {
		return err
	}
	if err := out.WriteStructBegin("QueryResult"); err != nil {
		return err
	}
	if err := out.WriteFieldBegin("execution_time_ms", thrift.I64, 1); err != nil {
		return err
	}
	if err := out.WriteI64(result.ExecutionTime.Milliseconds()); err != nil {
		return err
	}
	if err := out.WriteFieldEnd(); err != nil {
		return err
	}
	if err := out.WriteFieldBegin("row_count", thrift.I64, 2); err != nil {
		return err
	}
	if err := out.WriteI64(result.RowCount); err != nil {
		return err
	}
	if err := out.WriteFieldEnd(); err != nil {
		return err
	}
	if err := out.WriteFieldStop(); err != nil {
		return err
	}
	if err := out.WriteStructEnd(); err != nil {
		return err
	}
	return out.WriteFieldEnd()
}
