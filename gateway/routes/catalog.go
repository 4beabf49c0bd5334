package routes

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"curiochain/gateway/node"
)

func (s *Server) publishContent(w http.ResponseWriter, r *http.Request) {
	var req node.PublishContentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := validatePublishContent(req); err != nil {
		writeBadRequest(w, err)
		return
	}
	ctx, cancel := s.nodeContext(r.Context())
	defer cancel()
	content, err := s.node.PublishContent(ctx, req)
	if err != nil {
		s.writeNodeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, content)
}

func (s *Server) createBundle(w http.ResponseWriter, r *http.Request) {
	var req node.CreateBundleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := validateCreateBundle(req); err != nil {
		writeBadRequest(w, err)
		return
	}
	ctx, cancel := s.nodeContext(r.Context())
	defer cancel()
	bundle, err := s.node.CreateBundle(ctx, req)
	if err != nil {
		s.writeNodeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, bundle)
}

func (s *Server) getContent(w http.ResponseWriter, r *http.Request) {
	contentID := strings.TrimSpace(chi.URLParam(r, "contentID"))
	if contentID == "" {
		writeBadRequest(w, errors.New("content id is required"))
		return
	}
	ctx, cancel := s.nodeContext(r.Context())
	defer cancel()
	content, err := s.node.GetContent(ctx, contentID)
	if err != nil {
		s.writeNodeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, content)
}

func (s *Server) getBundle(w http.ResponseWriter, r *http.Request) {
	bundleID := strings.TrimSpace(chi.URLParam(r, "bundleID"))
	if bundleID == "" {
		writeBadRequest(w, errors.New("bundle id is required"))
		return
	}
	ctx, cancel := s.nodeContext(r.Context())
	defer cancel()
	bundle, err := s.node.GetBundle(ctx, bundleID)
	if err != nil {
		s.writeNodeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bundle)
}

func (s *Server) getUnit(w http.ResponseWriter, r *http.Request) {
	unitID := strings.TrimSpace(chi.URLParam(r, "unitID"))
	if unitID == "" {
		writeBadRequest(w, errors.New("unit id is required"))
		return
	}
	ctx, cancel := s.nodeContext(r.Context())
	defer cancel()
	unit, err := s.node.GetUnit(ctx, unitID)
	if err != nil {
		s.writeNodeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, unit)
}

func (s *Server) rentalStatus(w http.ResponseWriter, r *http.Request) {
	contentID := strings.TrimSpace(chi.URLParam(r, "contentID"))
	renter := strings.TrimSpace(chi.URLParam(r, "renter"))
	if contentID == "" || renter == "" {
		writeBadRequest(w, errors.New("content id and renter are required"))
		return
	}
	ctx, cancel := s.nodeContext(r.Context())
	defer cancel()
	rental, err := s.node.RentalStatus(ctx, contentID, renter)
	if err != nil {
		s.writeNodeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rental)
}

func validatePublishContent(req node.PublishContentRequest) error {
	if strings.TrimSpace(req.Caller) == "" {
		return errors.New("caller is required")
	}
	if strings.TrimSpace(req.Creator) == "" {
		return errors.New("creator is required")
	}
	if strings.TrimSpace(req.ID) == "" {
		return errors.New("id is required")
	}
	if strings.TrimSpace(req.URI) == "" {
		return errors.New("uri is required")
	}
	if strings.TrimSpace(req.MintPrice) == "" {
		return errors.New("mintPrice is required")
	}
	return nil
}

func validateCreateBundle(req node.CreateBundleRequest) error {
	if strings.TrimSpace(req.Caller) == "" {
		return errors.New("caller is required")
	}
	if strings.TrimSpace(req.Creator) == "" {
		return errors.New("creator is required")
	}
	if strings.TrimSpace(req.ID) == "" {
		return errors.New("id is required")
	}
	if len(req.Members) == 0 {
		return errors.New("members are required")
	}
	if strings.TrimSpace(req.MintPrice) == "" {
		return errors.New("mintPrice is required")
	}
	return nil
}
