package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"nhooyr.io/websocket"

	"curiochain/core/types"
)

const (
	wsWriteTimeout    = 10 * time.Second
	wsSubscribeBuffer = 64
)

// handleEventsWS streams committed node events to the client. The recent
// buffer is replayed first so a reconnecting consumer can resynchronise after
// falling behind, then live events follow until either side closes. An
// "after" query parameter skips replayed events at or below that sequence.
func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	if s == nil || s.node == nil {
		http.Error(w, "node unavailable", http.StatusServiceUnavailable)
		return
	}
	typeFilter := strings.TrimSpace(r.URL.Query().Get("type"))
	var after uint64
	if raw := strings.TrimSpace(r.URL.Query().Get("after")); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			http.Error(w, "invalid after cursor", http.StatusBadRequest)
			return
		}
		after = parsed
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")
	if err := s.streamEvents(r.Context(), conn, typeFilter, after); err != nil {
		if status := websocket.CloseStatus(err); status == -1 {
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func (s *Server) streamEvents(ctx context.Context, conn *websocket.Conn, typeFilter string, after uint64) error {
	id, updates := s.node.SubscribeEvents(wsSubscribeBuffer)
	defer s.node.UnsubscribeEvents(id)

	for _, evt := range s.node.EventsAfter(after) {
		if err := writeEvent(ctx, conn, evt, typeFilter); err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-updates:
			if !ok {
				return nil
			}
			if evt != nil && evt.Sequence <= after {
				continue
			}
			if err := writeEvent(ctx, conn, evt, typeFilter); err != nil {
				return err
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, evt *types.Event, typeFilter string) error {
	if evt == nil {
		return nil
	}
	if typeFilter != "" && evt.Type != typeFilter {
		return nil
	}
	payload := EventResult{Sequence: evt.Sequence, Type: evt.Type, Attributes: evt.Attributes}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
