package node

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type rpcCall struct {
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
	Auth   string            `json:"-"`
}

func stubNode(t *testing.T, handler func(call rpcCall) (int, string)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var call rpcCall
		if err := json.NewDecoder(r.Body).Decode(&call); err != nil {
			t.Errorf("decode rpc request: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		call.Auth = r.Header.Get("Authorization")
		status, body := handler(call)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if _, err := w.Write([]byte(body)); err != nil {
			t.Errorf("write rpc response: %v", err)
		}
	}))
}

func TestClientDecodesResult(t *testing.T) {
	srv := stubNode(t, func(call rpcCall) (int, string) {
		if call.Method != "registry_getContent" {
			t.Errorf("method = %q, want registry_getContent", call.Method)
		}
		if call.Auth != "" {
			t.Errorf("read call should not carry Authorization, got %q", call.Auth)
		}
		return http.StatusOK, `{"jsonrpc":"2.0","id":1,"result":{"id":"content-1","creator":"curio1xyz","title":"Skyline","mintPrice":"1000","minted":3}}`
	})
	defer srv.Close()

	client := NewRPCClient(srv.URL, "", time.Second)
	content, err := client.GetContent(context.Background(), "content-1")
	if err != nil {
		t.Fatalf("get content: %v", err)
	}
	if content.ID != "content-1" || content.Title != "Skyline" || content.Minted != 3 {
		t.Fatalf("unexpected content: %+v", content)
	}
}

func TestClientSendsBearerToken(t *testing.T) {
	srv := stubNode(t, func(call rpcCall) (int, string) {
		if call.Auth != "Bearer node-token" {
			t.Errorf("Authorization = %q, want Bearer node-token", call.Auth)
		}
		return http.StatusOK, `{"jsonrpc":"2.0","id":1,"result":{"unit":{"id":"unit-1","creator":"curio1c","owner":"curio1o","rarity":"rare","weight":"4000000000000","mintedAt":9,"totalClaimed":"0"},"receipt":{"price":"1000","creatorPaid":"800","holderDeposited":"120","platformFee":"50","ecosystemFee":"30"}}}`
	})
	defer srv.Close()

	client := NewRPCClient(srv.URL, "node-token", time.Second)
	minted, err := client.MintUnit(context.Background(), MintRequest{
		Caller: "curio1admin",
		Payer:  "curio1payer",
		UnitID: "unit-1",
		Rarity: "rare",
	})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if minted.Unit.ID != "unit-1" || minted.Receipt.CreatorPaid != "800" {
		t.Fatalf("unexpected mint outcome: %+v", minted)
	}
}

func TestClientSurfacesRPCError(t *testing.T) {
	srv := stubNode(t, func(call rpcCall) (int, string) {
		return http.StatusConflict, `{"jsonrpc":"2.0","id":1,"error":{"code":-32030,"message":"nothing to claim"}}`
	})
	defer srv.Close()

	client := NewRPCClient(srv.URL, "", time.Second)
	_, err := client.ClaimUnit(context.Background(), "content", "unit-1")
	if err == nil {
		t.Fatalf("expected claim error")
	}
	rpcErr, ok := AsRPCError(err)
	if !ok {
		t.Fatalf("expected RPCError, got %T: %v", err, err)
	}
	if rpcErr.Status != http.StatusConflict || rpcErr.Code != -32030 {
		t.Fatalf("unexpected rpc error: %+v", rpcErr)
	}
	if rpcErr.Message != "nothing to claim" {
		t.Fatalf("message = %q", rpcErr.Message)
	}
}

func TestClientRejectsUnknownClaimScope(t *testing.T) {
	client := NewRPCClient("http://localhost:0", "", time.Second)
	if _, err := client.ClaimUnit(context.Background(), "holder", "unit-1"); err == nil {
		t.Fatalf("expected error for unknown scope")
	}
}

func TestClientFetchEventsParams(t *testing.T) {
	srv := stubNode(t, func(call rpcCall) (int, string) {
		if call.Method != "curio_recentEvents" {
			t.Errorf("method = %q", call.Method)
		}
		if len(call.Params) != 1 {
			t.Fatalf("expected one parameter object, got %d", len(call.Params))
		}
		var params struct {
			After *uint64 `json:"after"`
			Limit *int    `json:"limit"`
		}
		if err := json.Unmarshal(call.Params[0], &params); err != nil {
			t.Fatalf("decode params: %v", err)
		}
		if params.After == nil || *params.After != 42 {
			t.Errorf("after = %v, want 42", params.After)
		}
		if params.Limit == nil || *params.Limit != 10 {
			t.Errorf("limit = %v, want 10", params.Limit)
		}
		return http.StatusOK, `{"jsonrpc":"2.0","id":1,"result":[{"sequence":43,"type":"rewards.claim.paid","attributes":{"unitId":"unit-1"}}]}`
	})
	defer srv.Close()

	client := NewRPCClient(srv.URL, "", time.Second)
	events, err := client.FetchEvents(context.Background(), 42, 10)
	if err != nil {
		t.Fatalf("fetch events: %v", err)
	}
	if len(events) != 1 || events[0].Sequence != 43 {
		t.Fatalf("unexpected events: %+v", events)
	}
	if events[0].Attributes["unitId"] != "unit-1" {
		t.Fatalf("attributes = %+v", events[0].Attributes)
	}
}
