package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"dgenerate/core/runtime"
	"dgenerate/core/types"
	"dgenerate/crypto"
	"dgenerate/index"
	"dgenerate/native/reward"
	"dgenerate/native/token"
	"dgenerate/observability"
	"dgenerate/observability/logging"
)

const (
	jsonRPCVersion         = "2.0"
	defaultMaxRequestBytes = 1 << 20
	shutdownTimeout        = 10 * time.Second
)

// Node is the ledger runtime as seen by the RPC layer.
type Node interface {
	Execute(ctx context.Context, tx *types.Transaction) (*runtime.Receipt, error)
	Height() uint64
	Params() reward.Params
	GameAuthority() (crypto.Identity, uint8, error)
	Ledger(id crypto.Identity) (*reward.Ledger, error)
	Mint(id crypto.Identity) (*token.Mint, error)
	TokenAccount(id crypto.Identity) (*token.Account, error)
	Subscribe(name string, buffer int) (<-chan *runtime.Receipt, func())
}

// History answers reward history queries. It is optional.
type History interface {
	History(ctx context.Context, recipient crypto.Identity, limit int) ([]index.RewardRecord, error)
	Leaderboard(ctx context.Context, ledger crypto.Identity, limit int) ([]index.LeaderboardEntry, error)
}

// Config tunes the server.
type Config struct {
	JWTSecret         string
	JWTIssuer         string
	RequestsPerMinute int
	Burst             int
	MaxBodyBytes      int64
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
}

type handlerFunc func(ctx context.Context, req *RPCRequest) (interface{}, error)

type method struct {
	module string
	write  bool
	fn     handlerFunc
}

type Server struct {
	node    Node
	history History
	cfg     Config
	logger  *slog.Logger

	auth    *authenticator
	limiter *rateLimiter
	methods map[string]method

	serverMu   sync.Mutex
	httpServer *http.Server
}

func NewServer(node Node, history History, cfg Config, logger *slog.Logger) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxRequestBytes
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		node:    node,
		history: history,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "rpc")),
		auth:    newAuthenticator(cfg.JWTSecret, cfg.JWTIssuer),
		limiter: newRateLimiter(cfg.RequestsPerMinute, cfg.Burst),
	}
	s.methods = map[string]method{
		"reward_sendTransaction": {module: "reward", write: true, fn: s.handleSendTransaction},
		"reward_getLedger":       {module: "reward", fn: s.handleGetLedger},
		"reward_getAuthority":    {module: "reward", fn: s.handleGetAuthority},
		"reward_getSchedule":     {module: "reward", fn: s.handleGetSchedule},
		"reward_getHistory":      {module: "reward", fn: s.handleGetHistory},
		"reward_getLeaderboard":  {module: "reward", fn: s.handleGetLeaderboard},
		"token_getMint":          {module: "token", fn: s.handleGetMint},
		"token_getAccount":       {module: "token", fn: s.handleGetAccount},
	}
	return s
}

// Handler returns the HTTP surface: JSON-RPC on POST /, plus health, metrics
// and the receipt stream.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", s.handleReceiptsWS)
	r.Post("/", s.handle)
	return otelhttp.NewHandler(r, "dgenerate-rpc")
}

// Serve listens on addr until ctx is cancelled, then drains in-flight
// requests.
func (s *Server) Serve(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.ServeListener(ctx, listener)
}

func (s *Server) ServeListener(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      s.cfg.WriteTimeout,
	}
	s.serverMu.Lock()
	s.httpServer = srv
	s.serverMu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("JSON-RPC server listening", slog.String("addr", listener.Addr().String()))
		errCh <- srv.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	errObj := &RPCError{Code: code, Message: message, Data: data}
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj})
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "ok",
		"height": s.node.Height(),
	})
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	defer func() {
		_ = reader.Close()
	}()

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", s.cfg.MaxBodyBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	m, ok := s.methods[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
		return
	}

	metrics := observability.ModuleMetrics()
	start := time.Now()
	if m.write {
		source := clientSource(r)
		if !s.limiter.allow(source) {
			metrics.RecordThrottle(m.module, "rate_limit")
			writeError(w, http.StatusTooManyRequests, req.ID, codeRateLimited, "rate limit exceeded", source)
			return
		}
		if authErr := s.auth.verify(r); authErr != nil {
			metrics.RecordThrottle(m.module, "auth")
			s.logger.Warn("unauthenticated write rejected",
				slog.String("method", req.Method),
				slog.String("reason", authErr.Message),
				slog.String("client", clientSource(r)),
				logging.MaskField("authorization", r.Header.Get("Authorization")))
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
	}

	result, err := m.fn(r.Context(), req)
	if err != nil {
		status, rpcErr := classify(err)
		metrics.Observe(m.module, req.Method, rpcErr.Code, time.Since(start))
		writeError(w, status, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	metrics.Observe(m.module, req.Method, 0, time.Since(start))
	writeResult(w, req.ID, result)
}

func classify(err error) (int, *RPCError) {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return http.StatusBadRequest, rpcErr
	}
	return errorFor(err)
}

func invalidParams(message string, data interface{}) *RPCError {
	return &RPCError{Code: codeInvalidParams, Message: message, Data: data}
}

// decodeParam decodes the single object parameter most methods take.
func decodeParam(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return invalidParams("parameter object required", nil)
	}
	decoder := json.NewDecoder(bytes.NewReader(req.Params[0]))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return invalidParams("invalid parameter object", err.Error())
	}
	return nil
}

// decodeIdentity accepts either {"id": "..."} or a bare identity string.
func decodeIdentity(req *RPCRequest) (crypto.Identity, error) {
	if len(req.Params) != 1 {
		return crypto.ZeroIdentity, invalidParams("identity parameter required", nil)
	}
	raw := bytes.TrimSpace(req.Params[0])
	if len(raw) > 0 && raw[0] == '"' {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return crypto.ZeroIdentity, invalidParams("invalid identity", err.Error())
		}
		id, err := crypto.ParseIdentity(strings.TrimSpace(text))
		if err != nil {
			return crypto.ZeroIdentity, invalidParams("invalid identity", err.Error())
		}
		return id, nil
	}
	var param IdentityParam
	if err := decodeParam(req, &param); err != nil {
		return crypto.ZeroIdentity, err
	}
	if param.ID.IsZero() {
		return crypto.ZeroIdentity, invalidParams("id required", nil)
	}
	return param.ID, nil
}
