// Package routes exposes the gateway's REST surface. Handlers bridge HTTP
// requests onto curiod JSON-RPC calls through the node client, with
// Idempotency-Key replay and audit logging on every mutating route.
package routes

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"curiochain/gateway/middleware"
	"curiochain/gateway/node"
	"curiochain/gateway/store"
)

const (
	headerIdempotencyKey = "Idempotency-Key"
	maxRequestBody       = 1 << 20 // 1 MiB
)

type Config struct {
	Node          node.Client
	Store         *store.Store
	Authenticator *middleware.Authenticator
	RateLimiter   *middleware.RateLimiter
	Observability *middleware.Observability
	CORS          middleware.CORSConfig
	Logger        *slog.Logger
	NodeTimeout   time.Duration
}

// Server holds the REST handlers and their collaborators.
type Server struct {
	node    node.Client
	store   *store.Store
	auth    *middleware.Authenticator
	limiter *middleware.RateLimiter
	obs     *middleware.Observability
	cors    middleware.CORSConfig
	logger  *slog.Logger
	timeout time.Duration
	nowFn   func() time.Time
}

func New(cfg Config) (*Server, error) {
	if cfg.Node == nil {
		return nil, errors.New("node client required")
	}
	if cfg.Store == nil {
		return nil, errors.New("store required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.NodeTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Server{
		node:    cfg.Node,
		store:   cfg.Store,
		auth:    cfg.Authenticator,
		limiter: cfg.RateLimiter,
		obs:     cfg.Observability,
		cors:    cfg.CORS,
		logger:  logger,
		timeout: timeout,
		nowFn:   time.Now,
	}, nil
}

// Router assembles the chi handler tree. Route groups carry their own rate
// limit class, scope requirement and metrics label.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.CORS(s.cors))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if s.obs != nil {
		r.Handle("/metrics", s.obs.MetricsHandler())
	}

	r.Route("/v1", func(v1 chi.Router) {
		v1.Group(func(g chi.Router) {
			s.protect(g, "reads", "catalog")
			g.Get("/content/{contentID}", s.getContent)
			g.Get("/bundles/{bundleID}", s.getBundle)
			g.Get("/units/{unitID}", s.getUnit)
			g.Get("/rentals/{contentID}/{renter}", s.rentalStatus)
		})
		v1.Group(func(g chi.Router) {
			s.protect(g, "writes", "catalog", "content:write")
			g.Post("/content", s.idempotent(s.publishContent))
			g.Post("/bundles", s.idempotent(s.createBundle))
		})
		v1.Group(func(g chi.Router) {
			s.protect(g, "writes", "settlement", "settlement:write")
			g.Post("/mints", s.idempotent(s.mintUnit))
			g.Post("/rentals", s.idempotent(s.rentContent))
			g.Post("/patronage", s.idempotent(s.patronTick))
			g.Post("/ecosystem", s.idempotent(s.ecosystemTick))
		})
		v1.Group(func(g chi.Router) {
			s.protect(g, "reads", "rewards")
			g.Get("/pools/{poolID}", s.getPool)
			g.Get("/creators/{address}", s.getCreator)
			g.Get("/treasuries/{treasuryID}", s.getTreasury)
			g.Get("/epoch", s.getEpoch)
			g.Get("/settlements", s.listSettlements)
		})
		v1.Group(func(g chi.Router) {
			s.protect(g, "writes", "rewards", "claims:write")
			g.Post("/claims", s.idempotent(s.submitClaim))
		})
		v1.Group(func(g chi.Router) {
			s.protect(g, "writes", "rewards", "admin")
			g.Put("/epoch", s.audited(s.setEpochDuration))
		})
		v1.Group(func(g chi.Router) {
			s.protect(g, "reads", "accounts")
			g.Get("/balances/{address}", s.getBalance)
			g.Get("/events", s.listEvents)
		})
		v1.Group(func(g chi.Router) {
			s.protect(g, "writes", "webhooks", "webhooks:manage")
			g.Post("/webhooks", s.idempotent(s.createWebhook))
			g.Get("/webhooks", s.listWebhooks)
			g.Get("/webhooks/{webhookID}", s.getWebhook)
			g.Delete("/webhooks/{webhookID}", s.audited(s.deleteWebhook))
		})
	})

	return r
}

func (s *Server) protect(g chi.Router, limitClass, metricsRoute string, scopes ...string) {
	if s.limiter != nil {
		g.Use(s.limiter.Middleware(limitClass))
	}
	if s.auth != nil {
		g.Use(s.auth.Middleware(scopes...))
	}
	if s.obs != nil {
		g.Use(s.obs.Middleware(metricsRoute))
	}
}

func (s *Server) nodeContext(parent context.Context) (context.Context, context.CancelFunc) {
	timeout := s.timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return context.WithTimeout(parent, timeout)
}

func (s *Server) audit(r *http.Request, subject string, requestBody []byte, status int, responseBody []byte) {
	entry := store.AuditEntry{
		RequestID:      uuid.NewString(),
		Subject:        subject,
		Method:         r.Method,
		Path:           r.URL.Path,
		RequestBody:    append([]byte(nil), requestBody...),
		ResponseStatus: status,
		ResponseBody:   append([]byte(nil), responseBody...),
		Timestamp:      s.nowFn().UTC(),
	}
	if err := s.store.InsertAuditLog(r.Context(), entry); err != nil {
		s.logger.Warn("audit write failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
}

func readRequestBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	limited := io.LimitReader(r.Body, maxRequestBody+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}
	if len(data) > maxRequestBody {
		return nil, fmt.Errorf("request body exceeds %d bytes", maxRequestBody)
	}
	return data, nil
}

func decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	data, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		return fmt.Errorf("read request body: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return errors.New("request body is empty")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

func hashRequest(method, path string, body []byte) string {
	sum := sha256.Sum256([]byte(strings.Join([]string{strings.ToUpper(method), path, string(body)}, "\n")))
	return fmt.Sprintf("%x", sum[:])
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		writeInternalError(w, fmt.Errorf("marshal response: %w", err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	message := strings.TrimSpace(err.Error())
	if message == "" {
		message = http.StatusText(status)
	}
	payload, marshalErr := json.Marshal(map[string]string{"error": message})
	if marshalErr != nil {
		payload = []byte(`{"error":"internal error"}`)
	}
	_, _ = w.Write(payload)
}

func writeBadRequest(w http.ResponseWriter, err error) {
	writeJSONError(w, http.StatusBadRequest, err)
}

func writeInternalError(w http.ResponseWriter, err error) {
	writeJSONError(w, http.StatusInternalServerError, err)
}

// writeNodeError passes the node's HTTP status through for structured RPC
// errors so conflicts and not-found responses keep their meaning. Anything
// else counts as an upstream failure.
func (s *Server) writeNodeError(w http.ResponseWriter, err error) {
	if rpcErr, ok := node.AsRPCError(err); ok {
		status := rpcErr.Status
		if status < http.StatusBadRequest {
			status = http.StatusBadGateway
		}
		message := rpcErr.Message
		if rpcErr.Data != "" {
			message = message + ": " + rpcErr.Data
		}
		writeJSONError(w, status, errors.New(message))
		return
	}
	writeJSONError(w, http.StatusBadGateway, fmt.Errorf("node request failed: %w", err))
}
