package routes

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"

	"curiochain/gateway/middleware"
	"curiochain/gateway/store"
)

// responseBuffer captures a handler's response so it can be persisted before
// anything reaches the client.
type responseBuffer struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newResponseBuffer() *responseBuffer {
	return &responseBuffer{header: make(http.Header), status: http.StatusOK}
}

func (b *responseBuffer) Header() http.Header { return b.header }

func (b *responseBuffer) WriteHeader(status int) { b.status = status }

func (b *responseBuffer) Write(p []byte) (int, error) { return b.body.Write(p) }

func (b *responseBuffer) flush(w http.ResponseWriter) {
	for key, values := range b.header {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	w.WriteHeader(b.status)
	_, _ = w.Write(b.body.Bytes())
}

// idempotent wraps a mutating handler with Idempotency-Key replay. Successful
// responses are cached per subject and key and replayed verbatim on retry;
// reusing a key with a different request body is rejected with a conflict.
// Every pass through the wrapper lands in the audit log.
func (s *Server) idempotent(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := readRequestBody(r)
		if err != nil {
			writeBadRequest(w, err)
			return
		}
		subject := middleware.Subject(r.Context())
		key := strings.TrimSpace(r.Header.Get(headerIdempotencyKey))
		if key == "" {
			writeBadRequest(w, errors.New("missing Idempotency-Key header"))
			s.audit(r, subject, body, http.StatusBadRequest, nil)
			return
		}
		requestHash := hashRequest(r.Method, r.URL.Path, body)
		cached, err := s.store.LookupIdempotency(r.Context(), subject, key, requestHash)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, store.ErrIdempotencyMismatch) {
				status = http.StatusConflict
			}
			writeJSONError(w, status, err)
			s.audit(r, subject, body, status, nil)
			return
		}
		if cached != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(cached.Status)
			_, _ = w.Write(cached.Body)
			s.audit(r, subject, body, cached.Status, cached.Body)
			return
		}

		buffer := newResponseBuffer()
		r.Body = io.NopCloser(bytes.NewReader(body))
		next(buffer, r)

		if buffer.status >= 200 && buffer.status < 300 {
			if err := s.store.SaveIdempotency(r.Context(), subject, key, requestHash, buffer.status, buffer.body.Bytes()); err != nil {
				writeInternalError(w, err)
				s.audit(r, subject, body, http.StatusInternalServerError, nil)
				return
			}
		}
		buffer.flush(w)
		s.audit(r, subject, body, buffer.status, buffer.body.Bytes())
	}
}

// audited wraps mutating handlers that need the audit trail but not replay
// caching, such as last-write-wins configuration updates.
func (s *Server) audited(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := readRequestBody(r)
		if err != nil {
			writeBadRequest(w, err)
			return
		}
		buffer := newResponseBuffer()
		r.Body = io.NopCloser(bytes.NewReader(body))
		next(buffer, r)
		buffer.flush(w)
		s.audit(r, middleware.Subject(r.Context()), body, buffer.status, buffer.body.Bytes())
	}
}
