package minerapi

import (
	"context"
	"encoding/hex"
	"fmt"
	"net"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/chainforge/nodecore/internal/chaintypes"
	"github.com/chainforge/nodecore/internal/chainvalidate"
	"github.com/chainforge/nodecore/internal/chainwriter"
	"github.com/chainforge/nodecore/internal/difficulty"
	"github.com/chainforge/nodecore/internal/metrics"
)

// TxCodec decodes a submitted transaction's hex payload.
type TxCodec interface {
	Decode(hexPayload string) (chaintypes.Transaction, error)
}

// PendingStore is the narrow surface a push_transaction call needs.
type PendingStore interface {
	AddPendingTransaction(ctx context.Context, entry chaintypes.PendingEntry) error
	GetPendingTransactionsLimit(ctx context.Context, n int) ([]chaintypes.PendingEntry, error)
}

// Server accepts miner connections and dispatches get_mining_info,
// submit_block and push_transaction requests, one per line, against
// the chain core. It rate-limits submissions per connection so a
// misbehaving miner cannot monopolize the validator.
type Server struct {
	listener  net.Listener
	validator *chainvalidate.Validator
	writer    *chainwriter.Writer
	cache     *difficulty.Cache
	reader    difficulty.ChainReader
	pending   PendingStore
	codec     TxCodec
	limiter   func() *rate.Limiter
	logger    *zap.Logger
}

// NewServer builds a Server listening on addr. submissionsPerSec
// bounds the rate of submit_block/push_transaction calls accepted per
// connection, via a fresh token bucket handed to every connection.
func NewServer(addr string, validator *chainvalidate.Validator, writer *chainwriter.Writer, cache *difficulty.Cache, reader difficulty.ChainReader, pending PendingStore, codec TxCodec, submissionsPerSec float64, logger *zap.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("minerapi: listen: %w", err)
	}
	return &Server{
		listener:  ln,
		validator: validator,
		writer:    writer,
		cache:     cache,
		reader:    reader,
		pending:   pending,
		codec:     codec,
		limiter:   func() *rate.Limiter { return rate.NewLimiter(rate.Limit(submissionsPerSec), 1) },
		logger:    logger,
	}, nil
}

// Serve accepts connections until ctx is cancelled or Close is called.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go s.handleConn(ctx, conn)
	}
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	return s.listener.Close()
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	codec := NewCodec(conn)
	limiter := s.limiter()

	for {
		req, err := codec.ReadRequest()
		if err != nil {
			return
		}

		var resp Response

		switch req.Method {
		case MethodGetMiningInfo:
			resp = s.handleGetMiningInfo(ctx, req)
		case MethodSubmitBlock:
			if !limiter.Allow() {
				resp.Error = "rate limit exceeded"
				break
			}
			resp = s.handleSubmitBlock(ctx, req)
		case MethodSubmitTransaction:
			if !limiter.Allow() {
				resp.Error = "rate limit exceeded"
				break
			}
			resp = s.handleSubmitTransaction(ctx, req)
		default:
			resp.Error = "unknown method: " + req.Method
		}
		resp.ID = req.ID

		if err := codec.SendResponse(&resp); err != nil {
			s.logger.Warn("minerapi: failed to send response", zap.Error(err))
			return
		}
	}
}

func (s *Server) handleGetMiningInfo(ctx context.Context, req *Request) Response {
	d, last, err := s.cache.Get(ctx, s.reader)
	if err != nil {
		return Response{Error: err.Error()}
	}
	pending, err := s.pending.GetPendingTransactionsLimit(ctx, 1000)
	if err != nil {
		return Response{Error: err.Error()}
	}
	return Response{Result: MiningInfo{
		LastBlockHash: last.Hash,
		Difficulty:    fmt.Sprintf("%.1f", d.Float64()),
		PendingCount:  len(pending),
	}}
}

func (s *Server) handleSubmitBlock(ctx context.Context, req *Request) Response {
	var params SubmitBlockParams
	if err := unmarshalParams(req.Params, &params); err != nil {
		return Response{Error: err.Error()}
	}
	headerBytes, err := hex.DecodeString(params.HeaderHex)
	if err != nil {
		return Response{Error: "bad header_hex: " + err.Error()}
	}

	entries := make([]interface{}, 0, len(params.EntryHex))
	for _, h := range params.EntryHex {
		tx, err := s.codec.Decode(h)
		if err != nil {
			entries = append(entries, h)
			continue
		}
		entries = append(entries, tx)
	}

	d, last, err := s.cache.Get(ctx, s.reader)
	if err != nil {
		return Response{Error: err.Error()}
	}

	ok, err := s.validator.Validate(ctx, headerBytes, entries, d, last)
	if err != nil {
		metrics.BlocksRejected.WithLabelValues("submit_block").Inc()
		return Response{Error: err.Error()}
	}
	if !ok {
		return Response{Error: "block rejected"}
	}

	header, err := decodeHeaderForCommit(headerBytes)
	if err != nil {
		return Response{Error: err.Error()}
	}
	kept := make([]chaintypes.Transaction, 0, len(entries))
	for _, e := range entries {
		if tx, ok := e.(chaintypes.Transaction); ok {
			kept = append(kept, tx)
		}
	}

	block, err := s.writer.Commit(ctx, headerBytes, header, kept)
	if err != nil {
		return Response{Error: err.Error()}
	}
	return Response{Result: block.Hash}
}

func (s *Server) handleSubmitTransaction(ctx context.Context, req *Request) Response {
	var params SubmitTransactionParams
	if err := unmarshalParams(req.Params, &params); err != nil {
		return Response{Error: err.Error()}
	}
	tx, err := s.codec.Decode(params.TxHex)
	if err != nil {
		return Response{Error: "bad tx_hex: " + err.Error()}
	}
	ok, err := tx.Verify(false)
	if err != nil || !ok {
		return Response{Error: "transaction failed verification"}
	}
	entry := chaintypes.PendingEntry{TxHash: tx.Hash(), TxHex: params.TxHex, Fees: tx.Fees()}
	if err := s.pending.AddPendingTransaction(ctx, entry); err != nil {
		return Response{Error: err.Error()}
	}
	return Response{Result: tx.Hash()}
}
