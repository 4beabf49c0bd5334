package routes

import (
	"errors"
	"net/http"
	"strings"

	"curiochain/gateway/node"
)

func (s *Server) mintUnit(w http.ResponseWriter, r *http.Request) {
	var req node.MintRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := validateMint(req); err != nil {
		writeBadRequest(w, err)
		return
	}
	ctx, cancel := s.nodeContext(r.Context())
	defer cancel()
	outcome, err := s.node.MintUnit(ctx, req)
	if err != nil {
		s.writeNodeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, outcome)
}

func (s *Server) rentContent(w http.ResponseWriter, r *http.Request) {
	var req node.RentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := validateRent(req); err != nil {
		writeBadRequest(w, err)
		return
	}
	ctx, cancel := s.nodeContext(r.Context())
	defer cancel()
	outcome, err := s.node.RentContent(ctx, req)
	if err != nil {
		s.writeNodeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, outcome)
}

func (s *Server) patronTick(w http.ResponseWriter, r *http.Request) {
	var req node.TickRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := validateTick(req, true); err != nil {
		writeBadRequest(w, err)
		return
	}
	ctx, cancel := s.nodeContext(r.Context())
	defer cancel()
	if err := s.node.PatronTick(ctx, req); err != nil {
		s.writeNodeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "credited"})
}

func (s *Server) ecosystemTick(w http.ResponseWriter, r *http.Request) {
	var req node.TickRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := validateTick(req, false); err != nil {
		writeBadRequest(w, err)
		return
	}
	ctx, cancel := s.nodeContext(r.Context())
	defer cancel()
	if err := s.node.EcosystemTick(ctx, req); err != nil {
		s.writeNodeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "credited"})
}

func validateMint(req node.MintRequest) error {
	if strings.TrimSpace(req.Caller) == "" {
		return errors.New("caller is required")
	}
	if strings.TrimSpace(req.Payer) == "" {
		return errors.New("payer is required")
	}
	if strings.TrimSpace(req.UnitID) == "" {
		return errors.New("unitId is required")
	}
	content := strings.TrimSpace(req.ContentID) != ""
	bundle := strings.TrimSpace(req.BundleID) != ""
	if content == bundle {
		return errors.New("exactly one of contentId or bundleId is required")
	}
	return nil
}

func validateRent(req node.RentRequest) error {
	if strings.TrimSpace(req.Caller) == "" {
		return errors.New("caller is required")
	}
	if strings.TrimSpace(req.Renter) == "" {
		return errors.New("renter is required")
	}
	if strings.TrimSpace(req.ContentID) == "" {
		return errors.New("contentId is required")
	}
	if req.DurationSeconds <= 0 {
		return errors.New("durationSeconds must be positive")
	}
	return nil
}

func validateTick(req node.TickRequest, requireCreator bool) error {
	if strings.TrimSpace(req.Caller) == "" {
		return errors.New("caller is required")
	}
	if strings.TrimSpace(req.Payer) == "" {
		return errors.New("payer is required")
	}
	if requireCreator && strings.TrimSpace(req.Creator) == "" {
		return errors.New("creator is required")
	}
	if strings.TrimSpace(req.Amount) == "" {
		return errors.New("amount is required")
	}
	return nil
}
