// Package rpc serves the fact store over a Unix domain socket using
// newline-delimited JSON-RPC 2.0. The query method streams its chunked
// answer as multiple responses; everything else is request/response.
package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wbrown/janus-kgstore/kg/service"
	"github.com/wbrown/janus-kgstore/kg/storage"
)

const (
	// scannerInitBufSize is the initial per-connection scanner buffer (1 MB).
	scannerInitBufSize = 1024 * 1024
	// scannerMaxTokenSize caps a single request line (16 MB); insert
	// payloads ride inside one line.
	scannerMaxTokenSize = 16 * 1024 * 1024
)

// Server exposes a service.Service over a Unix domain socket.
type Server struct {
	socketPath string
	svc        *service.Service
	listener   net.Listener
	wg         sync.WaitGroup
	quit       chan struct{}
	stopOnce   sync.Once
}

// NewServer creates a socket RPC server for the given service.
func NewServer(socketPath string, svc *service.Service) *Server {
	return &Server{
		socketPath: socketPath,
		svc:        svc,
		quit:       make(chan struct{}),
	}
}

// Start begins listening on the socket and accepting connections.
func (s *Server) Start() error {
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0755); err != nil {
		return fmt.Errorf("rpc: mkdir: %w", err)
	}

	// Remove a stale socket left behind by a dead process.
	if _, err := os.Stat(s.socketPath); err == nil {
		conn, dialErr := net.DialTimeout("unix", s.socketPath, 500*time.Millisecond)
		if dialErr != nil {
			os.Remove(s.socketPath)
		} else {
			conn.Close()
			return fmt.Errorf("rpc: another server is already listening on %s", s.socketPath)
		}
	}

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("rpc: listen: %w", err)
	}
	s.listener = ln

	s.wg.Add(1)
	go s.acceptLoop()

	log.Printf("rpc: listening on %s", s.socketPath)
	return nil
}

// Stop closes the listener, drains connections and removes the socket.
// Safe to call more than once.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.quit)
		if s.listener != nil {
			s.listener.Close()
		}
		s.wg.Wait()
		os.Remove(s.socketPath)
	})
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return
			default:
				log.Printf("rpc: accept error: %v", err)
				continue
			}
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	connID := uuid.NewString()[:8]

	sc := bufio.NewScanner(conn)
	sc.Buffer(make([]byte, scannerInitBufSize), scannerMaxTokenSize)
	enc := json.NewEncoder(conn)

	for sc.Scan() {
		select {
		case <-s.quit:
			return
		default:
		}
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			writeError(enc, 0, -32700, "parse error: "+err.Error())
			continue
		}
		if err := s.dispatch(&req, enc); err != nil {
			log.Printf("rpc: conn %s: %s failed: %v", connID, req.Method, err)
			return
		}
	}
}

// dispatch handles one request. A returned error means the connection is
// unusable (write failure) and should be dropped; application failures
// are reported in-band.
func (s *Server) dispatch(req *Request, enc *json.Encoder) error {
	ctx := context.Background()

	switch req.Method {
	case "query":
		return s.handleQuery(ctx, req, enc)

	case "insert":
		var params service.InsertRequest
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return writeError(enc, req.ID, -32602, "invalid params: "+err.Error())
		}
		res, err := s.svc.Insert(ctx, params)
		if err != nil {
			return writeError(enc, req.ID, -32000, err.Error())
		}
		return writeResult(enc, req.ID, res)

	case "wipe":
		var params service.WipeRequest
		if len(req.Params) > 0 {
			if err := json.Unmarshal(req.Params, &params); err != nil {
				return writeError(enc, req.ID, -32602, "invalid params: "+err.Error())
			}
		}
		res, err := s.svc.Wipe(ctx, params)
		if err != nil {
			return writeError(enc, req.ID, -32000, err.Error())
		}
		return writeResult(enc, req.ID, res)

	case "queryFacts", "lookupSP", "lookupPO":
		return s.handleFacts(ctx, req, enc)

	case "status":
		st, err := s.svc.Stats()
		if err != nil {
			return writeError(enc, req.ID, -32000, err.Error())
		}
		return writeResult(enc, req.ID, st)

	default:
		return writeError(enc, req.ID, -32601, "method not found: "+req.Method)
	}
}

func (s *Server) handleQuery(ctx context.Context, req *Request, enc *json.Encoder) error {
	var params service.QueryRequest
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return writeError(enc, req.ID, -32602, "invalid params: "+err.Error())
	}

	var writeErr error
	err := s.svc.Query(ctx, params, func(chunk service.QueryResult) error {
		writeErr = writeResult(enc, req.ID, QueryChunk{Chunk: &chunk})
		return writeErr
	})
	if writeErr != nil {
		return writeErr
	}
	if err != nil {
		msg := err.Error()
		if stage, ok := service.FailedStage(err); ok {
			msg = fmt.Sprintf("%s: %v", stage, errors.Unwrap(err))
		}
		return writeError(enc, req.ID, -32000, msg)
	}
	return writeResult(enc, req.ID, QueryChunk{Done: true})
}

func (s *Server) handleFacts(ctx context.Context, req *Request, enc *json.Encoder) error {
	var params FactsParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return writeError(enc, req.ID, -32602, "invalid params: "+err.Error())
	}

	var (
		res *service.FactsResult
		err error
	)
	switch req.Method {
	case "lookupSP":
		if params.Subject == nil || params.Predicate == nil {
			return writeError(enc, req.ID, -32602, "lookupSP needs subject and predicate")
		}
		res, err = s.svc.LookupSP(ctx, params.Index, *params.Subject, *params.Predicate)
	case "lookupPO":
		if params.Predicate == nil || params.Object == nil {
			return writeError(enc, req.ID, -32602, "lookupPO needs predicate and object")
		}
		res, err = s.svc.LookupPO(ctx, params.Index, *params.Predicate, *params.Object)
	default:
		res, err = s.svc.QueryFacts(ctx, params.Index, storage.Pattern{
			Subject:   params.Subject,
			Predicate: params.Predicate,
			Object:    params.Object,
		})
	}
	if err != nil {
		return writeError(enc, req.ID, -32000, err.Error())
	}
	return writeResult(enc, req.ID, res)
}

func writeResult(enc *json.Encoder, id int, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return writeError(enc, id, -32603, "internal error: "+err.Error())
	}
	return enc.Encode(Response{JSONRPC: "2.0", ID: id, Result: raw})
}

func writeError(enc *json.Encoder, id, code int, msg string) error {
	return enc.Encode(Response{JSONRPC: "2.0", ID: id, Error: &RPCError{Code: code, Message: msg}})
}
