package routes

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"curiochain/gateway/middleware"
	"curiochain/gateway/store"
)

type webhookRequest struct {
	URL       string `json:"url"`
	Secret    string `json:"secret"`
	EventType string `json:"eventType,omitempty"`
	RateLimit int    `json:"rateLimit,omitempty"`
}

func (s *Server) createWebhook(w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := validateWebhook(req); err != nil {
		writeBadRequest(w, err)
		return
	}
	sub := store.Subscription{
		Subject:   middleware.Subject(r.Context()),
		URL:       strings.TrimSpace(req.URL),
		Secret:    req.Secret,
		EventType: strings.TrimSpace(req.EventType),
		RateLimit: req.RateLimit,
	}
	created, err := s.store.CreateSubscription(r.Context(), sub)
	if err != nil {
		writeInternalError(w, fmt.Errorf("create subscription: %w", err))
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) listWebhooks(w http.ResponseWriter, r *http.Request) {
	subs, err := s.store.ListSubscriptions(r.Context(), middleware.Subject(r.Context()))
	if err != nil {
		writeInternalError(w, fmt.Errorf("list subscriptions: %w", err))
		return
	}
	if subs == nil {
		subs = []store.Subscription{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"webhooks": subs})
}

func (s *Server) getWebhook(w http.ResponseWriter, r *http.Request) {
	sub, ok := s.lookupOwnedWebhook(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (s *Server) deleteWebhook(w http.ResponseWriter, r *http.Request) {
	sub, ok := s.lookupOwnedWebhook(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteSubscription(r.Context(), sub.ID); err != nil {
		if errors.Is(err, store.ErrSubscriptionNotFound) {
			writeJSONError(w, http.StatusNotFound, errors.New("webhook not found"))
			return
		}
		writeInternalError(w, fmt.Errorf("delete subscription: %w", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// lookupOwnedWebhook resolves the path id and hides other subjects'
// subscriptions behind a not-found response.
func (s *Server) lookupOwnedWebhook(w http.ResponseWriter, r *http.Request) (store.Subscription, bool) {
	id := strings.TrimSpace(chi.URLParam(r, "webhookID"))
	if id == "" {
		writeBadRequest(w, errors.New("webhook id is required"))
		return store.Subscription{}, false
	}
	sub, err := s.store.GetSubscription(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrSubscriptionNotFound) {
			writeJSONError(w, http.StatusNotFound, errors.New("webhook not found"))
			return store.Subscription{}, false
		}
		writeInternalError(w, fmt.Errorf("load subscription: %w", err))
		return store.Subscription{}, false
	}
	if sub.Subject != middleware.Subject(r.Context()) {
		writeJSONError(w, http.StatusNotFound, errors.New("webhook not found"))
		return store.Subscription{}, false
	}
	return sub, true
}

func validateWebhook(req webhookRequest) error {
	target := strings.TrimSpace(req.URL)
	if target == "" {
		return errors.New("url is required")
	}
	parsed, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("unsupported url scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return errors.New("url host is required")
	}
	if strings.TrimSpace(req.Secret) == "" {
		return errors.New("secret is required")
	}
	if req.RateLimit < 0 {
		return errors.New("rateLimit must not be negative")
	}
	return nil
}
