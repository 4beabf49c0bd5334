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

type claimRequest struct {
	Scope   string `json:"scope"`
	UnitID  string `json:"unitId,omitempty"`
	Creator string `json:"creator,omitempty"`
}

type epochUpdateRequest struct {
	Caller          string `json:"caller"`
	DurationSeconds int64  `json:"durationSeconds"`
}

// submitClaim dispatches on scope: unit-level scopes pay out a single unit's
// accrued rewards, the creator scope sweeps the creator treasury.
func (s *Server) submitClaim(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	ctx, cancel := s.nodeContext(r.Context())
	defer cancel()
	scope := strings.ToLower(strings.TrimSpace(req.Scope))
	switch scope {
	case "content", "bundle", "patron":
		if strings.TrimSpace(req.UnitID) == "" {
			writeBadRequest(w, errors.New("unitId is required for unit claims"))
			return
		}
		claim, err := s.node.ClaimUnit(ctx, scope, req.UnitID)
		if err != nil {
			s.writeNodeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, claim)
	case "creator":
		if strings.TrimSpace(req.Creator) == "" {
			writeBadRequest(w, errors.New("creator is required for creator claims"))
			return
		}
		claim, err := s.node.ClaimCreator(ctx, req.Creator)
		if err != nil {
			s.writeNodeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, claim)
	default:
		writeBadRequest(w, fmt.Errorf("unsupported claim scope %q", req.Scope))
	}
}

func (s *Server) getPool(w http.ResponseWriter, r *http.Request) {
	poolID := strings.TrimSpace(chi.URLParam(r, "poolID"))
	if poolID == "" {
		writeBadRequest(w, errors.New("pool id is required"))
		return
	}
	ctx, cancel := s.nodeContext(r.Context())
	defer cancel()
	pool, err := s.node.PoolInfo(ctx, poolID)
	if err != nil {
		s.writeNodeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pool)
}

func (s *Server) getCreator(w http.ResponseWriter, r *http.Request) {
	address := strings.TrimSpace(chi.URLParam(r, "address"))
	if address == "" {
		writeBadRequest(w, errors.New("creator address is required"))
		return
	}
	ctx, cancel := s.nodeContext(r.Context())
	defer cancel()
	stats, err := s.node.CreatorInfo(ctx, address)
	if err != nil {
		s.writeNodeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) getTreasury(w http.ResponseWriter, r *http.Request) {
	treasuryID := strings.TrimSpace(chi.URLParam(r, "treasuryID"))
	if treasuryID == "" {
		writeBadRequest(w, errors.New("treasury id is required"))
		return
	}
	ctx, cancel := s.nodeContext(r.Context())
	defer cancel()
	treasury, err := s.node.TreasuryInfo(ctx, treasuryID)
	if err != nil {
		s.writeNodeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, treasury)
}

func (s *Server) getEpoch(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.nodeContext(r.Context())
	defer cancel()
	status, err := s.node.EpochInfo(ctx)
	if err != nil {
		s.writeNodeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) setEpochDuration(w http.ResponseWriter, r *http.Request) {
	var req epochUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	if strings.TrimSpace(req.Caller) == "" {
		writeBadRequest(w, errors.New("caller is required"))
		return
	}
	if req.DurationSeconds <= 0 {
		writeBadRequest(w, errors.New("durationSeconds must be positive"))
		return
	}
	ctx, cancel := s.nodeContext(r.Context())
	defer cancel()
	if err := s.node.SetEpochDuration(ctx, req.Caller, req.DurationSeconds); err != nil {
		s.writeNodeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, node.EpochStatus{DurationSeconds: req.DurationSeconds})
}

func (s *Server) listSettlements(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
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
	settlements, err := s.node.Settlements(ctx, strings.TrimSpace(query.Get("treasury")), limit)
	if err != nil {
		s.writeNodeError(w, err)
		return
	}
	if settlements == nil {
		settlements = []node.Settlement{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"settlements": settlements})
}
