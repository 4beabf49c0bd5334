package routes

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"curiochain/gateway/node"
)

func (s *Server) getBalance(w http.ResponseWriter, r *http.Request) {
	address := strings.TrimSpace(chi.URLParam(r, "address"))
	if address == "" {
		writeBadRequest(w, errors.New("address is required"))
		return
	}
	ctx, cancel := s.nodeContext(r.Context())
	defer cancel()
	balance, err := s.node.Balance(ctx, address)
	if err != nil {
		s.writeNodeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balance)
}

// listEvents exposes the node's committed event stream. The after cursor is
// the last sequence the caller has seen; clients page forward by passing the
// highest sequence from the previous response.
func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	var after uint64
	if raw := strings.TrimSpace(query.Get("after")); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeBadRequest(w, fmt.Errorf("invalid after cursor %q", raw))
			return
		}
		after = parsed
	}
	limit := 0
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeBadRequest(w, fmt.Errorf("invalid limit %q", raw))
			return
		}
		limit = parsed
	}
	ctx, cancel := s.nodeContext(r.Context())
	defer cancel()
	events, err := s.node.Events(ctx, strings.TrimSpace(query.Get("type")), after, limit)
	if err != nil {
		s.writeNodeError(w, err)
		return
	}
	if events == nil {
		events = []node.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}
