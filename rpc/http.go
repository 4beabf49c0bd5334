package rpc

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/netutil"

	"curiochain/core"
	"curiochain/observability"
	"curiochain/rpc/modules"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
	rpcTokenEnv     = "CURIO_RPC_TOKEN"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeRateLimited    = -32020
	codeNothingToClaim = -32030
)

type rateLimiter struct {
	count       int
	windowStart time.Time
}

// ServerConfig carries the operational knobs the daemon resolves from its
// configuration file.
type ServerConfig struct {
	AuthToken         string
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxConns          int
	WriteRateWindow   time.Duration
	MaxWritesPerBurst int
}

// Server exposes the node operations over JSON-RPC plus a websocket event
// stream. Queries are open; mutating methods require the bearer token.
type Server struct {
	node *core.Node
	cfg  ServerConfig

	mu           sync.Mutex
	rateLimiters map[string]*rateLimiter
	authToken    string
	rewards      *modules.RewardsModule

	serverMu   sync.Mutex
	httpServer *http.Server
}

func NewServer(node *core.Node, cfg ServerConfig) *Server {
	token := strings.TrimSpace(cfg.AuthToken)
	if token == "" {
		token = strings.TrimSpace(os.Getenv(rpcTokenEnv))
	}
	if cfg.WriteRateWindow <= 0 {
		cfg.WriteRateWindow = time.Minute
	}
	if cfg.MaxWritesPerBurst <= 0 {
		cfg.MaxWritesPerBurst = 32
	}
	return &Server{
		node:         node,
		cfg:          cfg,
		rateLimiters: make(map[string]*rateLimiter),
		authToken:    token,
		rewards:      modules.NewRewardsModule(node),
	}
}

// Start listens on addr and serves until the listener fails or Shutdown is
// called. The connection count is capped so a misbehaving client cannot
// exhaust file descriptors.
func (s *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	if s.cfg.MaxConns > 0 {
		listener = netutil.LimitListener(listener, s.cfg.MaxConns)
	}
	return s.Serve(listener)
}

// Serve runs the HTTP server on the supplied listener.
func (s *Server) Serve(listener net.Listener) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	mux.HandleFunc("/ws/events", s.handleEventsWS)
	mux.HandleFunc("/healthz", s.handleHealth)

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
	}
	s.serverMu.Lock()
	s.httpServer = srv
	s.serverMu.Unlock()
	return srv.Serve(listener)
}

// Shutdown gracefully stops the HTTP server if it is running.
func (s *Server) Shutdown(ctx context.Context) error {
	s.serverMu.Lock()
	srv := s.httpServer
	s.serverMu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// statusWriter remembers the HTTP status written to the response so the
// request metrics see the same outcome the client did.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeModuleError(w http.ResponseWriter, id interface{}, modErr *modules.ModuleError) {
	if modErr == nil {
		writeError(w, http.StatusInternalServerError, id, codeServerError, "module error missing", nil)
		return
	}
	writeError(w, modErr.HTTPStatus, id, modErr.Code, modErr.Message, modErr.Data)
}

// handle is the main request handler that routes to specific handlers.
func (s *Server) handle(rw http.ResponseWriter, r *http.Request) {
	w := &statusWriter{ResponseWriter: rw, status: http.StatusOK}
	started := time.Now()
	method := "unknown"
	defer func() {
		observability.ModuleMetrics().Observe(observability.ModuleForMethod(method), method, w.status, time.Since(started))
	}()

	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
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
	method = req.Method

	if writeMethods[req.Method] {
		if authErr := s.requireAuth(r); authErr != nil {
			observability.ModuleMetrics().RecordThrottle(observability.ModuleForMethod(req.Method), "auth_failed")
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		source := clientSource(r)
		if !s.allowSource(source, time.Now()) {
			observability.ModuleMetrics().RecordThrottle(observability.ModuleForMethod(req.Method), "rate_limit")
			writeError(w, http.StatusTooManyRequests, req.ID, codeRateLimited, "write rate limit exceeded", source)
			return
		}
	}

	switch req.Method {
	case "registry_publish":
		s.handleRegistryPublish(w, r, req)
	case "registry_createBundle":
		s.handleRegistryCreateBundle(w, r, req)
	case "registry_getContent":
		s.handleRegistryGetContent(w, r, req)
	case "registry_getBundle":
		s.handleRegistryGetBundle(w, r, req)
	case "registry_getUnit":
		s.handleRegistryGetUnit(w, r, req)
	case "registry_rentalStatus":
		s.handleRegistryRentalStatus(w, r, req)
	case "router_mint":
		s.handleRouterMint(w, r, req)
	case "router_rent":
		s.handleRouterRent(w, r, req)
	case "router_patronTick":
		s.handleRouterPatronTick(w, r, req)
	case "router_ecosystemTick":
		s.handleRouterEcosystemTick(w, r, req)
	case "rewards_claimContent":
		s.handleRewardsClaim(w, r, req, modules.ClaimScopeContent)
	case "rewards_claimBundle":
		s.handleRewardsClaim(w, r, req, modules.ClaimScopeBundle)
	case "rewards_claimPatron":
		s.handleRewardsClaim(w, r, req, modules.ClaimScopePatron)
	case "rewards_claimCreator":
		s.handleRewardsClaimCreator(w, r, req)
	case "rewards_poolInfo":
		s.handleRewardsPoolInfo(w, r, req)
	case "rewards_creatorInfo":
		s.handleRewardsCreatorInfo(w, r, req)
	case "rewards_treasuryInfo":
		s.handleRewardsTreasuryInfo(w, r, req)
	case "rewards_epochInfo":
		s.handleRewardsEpochInfo(w, r, req)
	case "rewards_settlements":
		s.handleRewardsSettlements(w, r, req)
	case "rewards_setEpochDuration":
		s.handleRewardsSetEpochDuration(w, r, req)
	case "curio_getBalance":
		s.handleGetBalance(w, r, req)
	case "curio_transferUnit":
		s.handleTransferUnit(w, r, req)
	case "curio_fundAccount":
		s.handleFundAccount(w, r, req)
	case "curio_grantRole":
		s.handleGrantRole(w, r, req)
	case "curio_revokeRole":
		s.handleRevokeRole(w, r, req)
	case "curio_roleMembers":
		s.handleRoleMembers(w, r, req)
	case "curio_recentEvents":
		s.handleRecentEvents(w, r, req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("unknown method %s", req.Method), nil)
	}
}

// writeMethods gates every state-changing method behind bearer auth and the
// per-source write limiter.
var writeMethods = map[string]bool{
	"registry_publish":         true,
	"registry_createBundle":    true,
	"router_mint":              true,
	"router_rent":              true,
	"router_patronTick":        true,
	"router_ecosystemTick":     true,
	"rewards_claimContent":     true,
	"rewards_claimBundle":      true,
	"rewards_claimPatron":      true,
	"rewards_claimCreator":     true,
	"rewards_setEpochDuration": true,
	"curio_transferUnit":       true,
	"curio_fundAccount":        true,
	"curio_grantRole":          true,
	"curio_revokeRole":         true,
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return &RPCError{Code: codeUnauthorized, Message: "RPC authentication token not configured"}
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials"}
	}
	return nil
}

func (s *Server) allowSource(source string, now time.Time) bool {
	if source == "" {
		source = "unknown"
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	limiter, ok := s.rateLimiters[source]
	if !ok {
		limiter = &rateLimiter{windowStart: now}
		s.rateLimiters[source] = limiter
	}
	if now.Sub(limiter.windowStart) >= s.cfg.WriteRateWindow {
		limiter.windowStart = now
		limiter.count = 0
	}
	if limiter.count >= s.cfg.MaxWritesPerBurst {
		return false
	}
	limiter.count++
	return true
}

func clientSource(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			candidate := strings.TrimSpace(parts[0])
			if candidate != "" {
				return candidate
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
