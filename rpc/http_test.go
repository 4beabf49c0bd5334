package rpc

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"curiochain/core"
	"curiochain/native/registry"
	"curiochain/native/router"
	"curiochain/storage"
)

func rpcTestAddr(b byte) [20]byte {
	var addr [20]byte
	addr[19] = b
	return addr
}

var (
	rpcAdminAddr    = rpcTestAddr(0x11)
	rpcMinterAddr   = rpcTestAddr(0x12)
	rpcPlatformAddr = rpcTestAddr(0x13)
	rpcCreatorAddr  = rpcTestAddr(0x14)
	rpcPayerAddr    = rpcTestAddr(0x15)
	rpcBuyerAddr    = rpcTestAddr(0x16)
)

const rpcTestToken = "test-rpc-token"

func newRPCTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := core.NodeConfig{
		EpochDurationSeconds:    3_600,
		SweepGlobalBps:          5_000,
		TreasuryReserveLamports: 1_000,
		MintSplit:               router.DefaultMintSplit(),
		RentalSplit:             router.DefaultRentalSplit(),
		WeightTable:             registry.DefaultWeightTable(),
		RollTable:               registry.DefaultRollTable(),
		PlatformAccount:         rpcPlatformAddr,
		Genesis: core.Genesis{
			Admins:     [][20]byte{rpcAdminAddr},
			Treasurers: [][20]byte{rpcAdminAddr},
			Minters:    [][20]byte{rpcMinterAddr},
			Accounts: []core.GenesisAccount{
				{Address: rpcPayerAddr, Balance: big.NewInt(1_000_000_000)},
				{Address: rpcBuyerAddr, Balance: big.NewInt(1_000_000_000)},
			},
		},
	}
	node, err := core.NewNode(storage.NewMemDB(), cfg)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	return NewServer(node, ServerConfig{AuthToken: rpcTestToken})
}

// rpcEnvelope mirrors RPCResponse but keeps the result raw so tests can
// decode it into the concrete result type.
type rpcEnvelope struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

func postRPC(t *testing.T, url, token, method string, params ...interface{}) (int, rpcEnvelope) {
	t.Helper()
	rawParams := make([]json.RawMessage, 0, len(params))
	for _, param := range params {
		encoded, err := json.Marshal(param)
		if err != nil {
			t.Fatalf("marshal param: %v", err)
		}
		rawParams = append(rawParams, encoded)
	}
	body, err := json.Marshal(RPCRequest{JSONRPC: jsonRPCVersion, Method: method, Params: rawParams, ID: 1})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("call %s: %v", method, err)
	}
	defer resp.Body.Close()
	var envelope rpcEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode %s response: %v", method, err)
	}
	return resp.StatusCode, envelope
}

func decodeResult(t *testing.T, envelope rpcEnvelope, out interface{}) {
	t.Helper()
	if envelope.Error != nil {
		t.Fatalf("unexpected rpc error: %d %s", envelope.Error.Code, envelope.Error.Message)
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		t.Fatalf("decode result: %v", err)
	}
}

func TestClientSourcePrefersForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "10.0.0.5:1234"
	req.Header.Set("X-Forwarded-For", " 203.0.113.9 , 10.0.0.5")

	if source := clientSource(req); source != "203.0.113.9" {
		t.Fatalf("expected forwarded client, got %q", source)
	}
}

func TestClientSourceFallsBackToRemoteAddr(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "10.0.0.5:1234"

	if source := clientSource(req); source != "10.0.0.5" {
		t.Fatalf("expected remote host, got %q", source)
	}
}

func TestAllowSourceEnforcesBurstWindow(t *testing.T) {
	server := NewServer(nil, ServerConfig{WriteRateWindow: time.Minute, MaxWritesPerBurst: 3})
	now := time.Now()

	for i := 0; i < 3; i++ {
		if !server.allowSource("198.51.100.7", now) {
			t.Fatalf("request %d should be allowed", i)
		}
	}
	if server.allowSource("198.51.100.7", now) {
		t.Fatal("expected burst limit to reject the fourth write")
	}
	if !server.allowSource("198.51.100.8", now) {
		t.Fatal("distinct source should have its own window")
	}
	if !server.allowSource("198.51.100.7", now.Add(time.Minute)) {
		t.Fatal("expected a fresh window after the rate interval")
	}
}

func TestHandleRejectsEmptyBody(t *testing.T) {
	server := newRPCTestServer(t)
	recorder := httptest.NewRecorder()
	server.handle(recorder, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("  ")))

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", recorder.Code)
	}
	var resp RPCResponse
	if err := json.NewDecoder(recorder.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != codeInvalidRequest {
		t.Fatalf("expected invalid request error, got %+v", resp.Error)
	}
}

func TestHandleRejectsMalformedJSON(t *testing.T) {
	server := newRPCTestServer(t)
	recorder := httptest.NewRecorder()
	server.handle(recorder, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{not json")))

	var resp RPCResponse
	if err := json.NewDecoder(recorder.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != codeParseError {
		t.Fatalf("expected parse error, got %+v", resp.Error)
	}
}

func TestHandleRejectsOversizedBody(t *testing.T) {
	server := newRPCTestServer(t)
	payload := strings.Repeat("a", maxRequestBytes+1)
	recorder := httptest.NewRecorder()
	server.handle(recorder, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(payload)))

	if recorder.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected status 413, got %d", recorder.Code)
	}
}

func TestHandleUnknownMethod(t *testing.T) {
	server := newRPCTestServer(t)
	recorder := httptest.NewRecorder()
	body := `{"jsonrpc":"2.0","method":"registry_doesNotExist","id":1}`
	server.handle(recorder, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))

	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", recorder.Code)
	}
	var resp RPCResponse
	if err := json.NewDecoder(recorder.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != codeMethodNotFound {
		t.Fatalf("expected method not found, got %+v", resp.Error)
	}
}

func TestWriteMethodRequiresBearerToken(t *testing.T) {
	server := newRPCTestServer(t)
	ts := httptest.NewServer(http.HandlerFunc(server.handle))
	defer ts.Close()

	params := map[string]string{"caller": formatAddress(rpcMinterAddr)}

	status, envelope := postRPC(t, ts.URL, "", "registry_publish", params)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected status 401 without token, got %d", status)
	}
	if envelope.Error == nil || envelope.Error.Code != codeUnauthorized {
		t.Fatalf("expected unauthorized error, got %+v", envelope.Error)
	}

	status, envelope = postRPC(t, ts.URL, "wrong-token", "registry_publish", params)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected status 401 with bad token, got %d", status)
	}
	if envelope.Error == nil || envelope.Error.Code != codeUnauthorized {
		t.Fatalf("expected unauthorized error, got %+v", envelope.Error)
	}

	// Queries stay open: a missing catalogue entry is a 404, not a 401.
	status, envelope = postRPC(t, ts.URL, "", "registry_getContent", map[string]string{"id": "missing"})
	if status != http.StatusNotFound {
		t.Fatalf("expected status 404 for missing content, got %d", status)
	}
	if envelope.Error == nil {
		t.Fatal("expected not found error")
	}
}

func TestHandleGetBalanceRejectsMalformedAddress(t *testing.T) {
	server := newRPCTestServer(t)
	recorder := httptest.NewRecorder()
	req := &RPCRequest{ID: 7, Params: []json.RawMessage{json.RawMessage(`{"address":"not-a-valid-address"}`)}}

	server.handleGetBalance(recorder, nil, req)

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected bad request status, got %d", recorder.Code)
	}
	var resp RPCResponse
	if err := json.NewDecoder(recorder.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != codeInvalidParams {
		t.Fatalf("expected invalid params error, got %+v", resp.Error)
	}
}

func TestPublishMintClaimFlow(t *testing.T) {
	server := newRPCTestServer(t)
	ts := httptest.NewServer(http.HandlerFunc(server.handle))
	defer ts.Close()

	minter := formatAddress(rpcMinterAddr)
	creator := formatAddress(rpcCreatorAddr)
	payer := formatAddress(rpcPayerAddr)
	buyer := formatAddress(rpcBuyerAddr)

	status, envelope := postRPC(t, ts.URL, rpcTestToken, "registry_publish", map[string]string{
		"caller":      minter,
		"creator":     creator,
		"id":          "content-1",
		"title":       "Test Drop",
		"uri":         "ipfs://content-1",
		"fingerprint": strings.Repeat("ab", 32),
		"mintPrice":   "1000000",
	})
	if status != http.StatusOK {
		t.Fatalf("publish status = %d, error = %+v", status, envelope.Error)
	}
	var content ContentResult
	decodeResult(t, envelope, &content)
	if content.ID != "content-1" || content.Creator != creator {
		t.Fatalf("unexpected content result: %+v", content)
	}

	// First mint: the content pool carries no weight yet, so the holder
	// share falls back to the creator.
	status, envelope = postRPC(t, ts.URL, rpcTestToken, "router_mint", map[string]interface{}{
		"caller":    minter,
		"payer":     payer,
		"unitId":    "unit-1",
		"contentId": "content-1",
		"rarity":    "common",
	})
	if status != http.StatusOK {
		t.Fatalf("first mint status = %d, error = %+v", status, envelope.Error)
	}
	var first MintResult
	decodeResult(t, envelope, &first)
	if first.Receipt.CreatorPaid != "920000" {
		t.Fatalf("first mint creator paid = %s, want 920000", first.Receipt.CreatorPaid)
	}
	if first.Unit.Owner != payer {
		t.Fatalf("unit owner = %s, want payer", first.Unit.Owner)
	}

	// Second mint routes the holder share into the content pool where
	// unit-1 holds all the weight.
	status, envelope = postRPC(t, ts.URL, rpcTestToken, "router_mint", map[string]interface{}{
		"caller":    minter,
		"payer":     buyer,
		"unitId":    "unit-2",
		"contentId": "content-1",
		"rarity":    "common",
	})
	if status != http.StatusOK {
		t.Fatalf("second mint status = %d, error = %+v", status, envelope.Error)
	}
	var second MintResult
	decodeResult(t, envelope, &second)
	if second.Receipt.HolderDeposited != "120000" {
		t.Fatalf("second mint holder deposit = %s, want 120000", second.Receipt.HolderDeposited)
	}

	status, envelope = postRPC(t, ts.URL, rpcTestToken, "rewards_claimContent", map[string]string{"unitId": "unit-1"})
	if status != http.StatusOK {
		t.Fatalf("claim status = %d, error = %+v", status, envelope.Error)
	}
	var claim ClaimResult
	decodeResult(t, envelope, &claim)
	if claim.Amount != "120000" {
		t.Fatalf("claim amount = %s, want 120000", claim.Amount)
	}
	if claim.Payee != payer {
		t.Fatalf("claim payee = %s, want payer", claim.Payee)
	}

	// A drained unit reports conflict rather than paying zero.
	status, envelope = postRPC(t, ts.URL, rpcTestToken, "rewards_claimContent", map[string]string{"unitId": "unit-1"})
	if status != http.StatusConflict {
		t.Fatalf("repeat claim status = %d, want 409", status)
	}
	if envelope.Error == nil || envelope.Error.Code != codeNothingToClaim {
		t.Fatalf("expected nothing-to-claim error, got %+v", envelope.Error)
	}

	status, envelope = postRPC(t, ts.URL, "", "curio_getBalance", map[string]string{"address": payer})
	if status != http.StatusOK {
		t.Fatalf("balance status = %d, error = %+v", status, envelope.Error)
	}
	var balance BalanceResult
	decodeResult(t, envelope, &balance)
	if balance.Balance != "999120000" {
		t.Fatalf("payer balance = %s, want 999120000", balance.Balance)
	}
}

func TestRouterMintRarityRollExclusive(t *testing.T) {
	server := newRPCTestServer(t)
	ts := httptest.NewServer(http.HandlerFunc(server.handle))
	defer ts.Close()

	roll := uint32(0)
	status, envelope := postRPC(t, ts.URL, rpcTestToken, "router_mint", map[string]interface{}{
		"caller":    formatAddress(rpcMinterAddr),
		"payer":     formatAddress(rpcPayerAddr),
		"unitId":    "unit-1",
		"contentId": "content-1",
		"rarity":    "common",
		"roll":      roll,
	})
	if status != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", status)
	}
	if envelope.Error == nil || envelope.Error.Code != codeInvalidParams {
		t.Fatalf("expected invalid params error, got %+v", envelope.Error)
	}
}

func TestEpochDurationRoundTrip(t *testing.T) {
	server := newRPCTestServer(t)
	ts := httptest.NewServer(http.HandlerFunc(server.handle))
	defer ts.Close()

	status, envelope := postRPC(t, ts.URL, "", "rewards_epochInfo")
	if status != http.StatusOK {
		t.Fatalf("epoch info status = %d, error = %+v", status, envelope.Error)
	}
	var info map[string]int64
	decodeResult(t, envelope, &info)
	if info["durationSeconds"] != 3_600 {
		t.Fatalf("epoch duration = %d, want 3600", info["durationSeconds"])
	}

	status, envelope = postRPC(t, ts.URL, rpcTestToken, "rewards_setEpochDuration", map[string]interface{}{
		"caller":  formatAddress(rpcAdminAddr),
		"seconds": 7_200,
	})
	if status != http.StatusOK {
		t.Fatalf("set duration status = %d, error = %+v", status, envelope.Error)
	}

	_, envelope = postRPC(t, ts.URL, "", "rewards_epochInfo")
	decodeResult(t, envelope, &info)
	if info["durationSeconds"] != 7_200 {
		t.Fatalf("epoch duration = %d, want 7200", info["durationSeconds"])
	}
}

func TestSetEpochDurationRequiresAdminRole(t *testing.T) {
	server := newRPCTestServer(t)
	ts := httptest.NewServer(http.HandlerFunc(server.handle))
	defer ts.Close()

	status, envelope := postRPC(t, ts.URL, rpcTestToken, "rewards_setEpochDuration", map[string]interface{}{
		"caller":  formatAddress(rpcMinterAddr),
		"seconds": 7_200,
	})
	if status != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", status)
	}
	if envelope.Error == nil || envelope.Error.Code != codeUnauthorized {
		t.Fatalf("expected unauthorized error, got %+v", envelope.Error)
	}
}

func TestRecentEventsFilterAndLimit(t *testing.T) {
	server := newRPCTestServer(t)
	ts := httptest.NewServer(http.HandlerFunc(server.handle))
	defer ts.Close()

	minter := formatAddress(rpcMinterAddr)
	creator := formatAddress(rpcCreatorAddr)
	_, envelope := postRPC(t, ts.URL, rpcTestToken, "registry_publish", map[string]string{
		"caller":      minter,
		"creator":     creator,
		"id":          "content-1",
		"title":       "Drop",
		"uri":         "ipfs://content-1",
		"fingerprint": strings.Repeat("cd", 32),
		"mintPrice":   "1000000",
	})
	if envelope.Error != nil {
		t.Fatalf("publish failed: %+v", envelope.Error)
	}
	_, envelope = postRPC(t, ts.URL, rpcTestToken, "router_mint", map[string]interface{}{
		"caller":    minter,
		"payer":     formatAddress(rpcPayerAddr),
		"unitId":    "unit-1",
		"contentId": "content-1",
		"rarity":    "common",
	})
	if envelope.Error != nil {
		t.Fatalf("mint failed: %+v", envelope.Error)
	}

	status, envelope := postRPC(t, ts.URL, "", "curio_recentEvents", map[string]interface{}{
		"type": "registry.content.published",
	})
	if status != http.StatusOK {
		t.Fatalf("recent events status = %d, error = %+v", status, envelope.Error)
	}
	var events []EventResult
	decodeResult(t, envelope, &events)
	if len(events) != 1 {
		t.Fatalf("filtered events = %d, want 1", len(events))
	}
	if events[0].Attributes["contentId"] != "content-1" {
		t.Fatalf("unexpected event attributes: %+v", events[0].Attributes)
	}

	status, envelope = postRPC(t, ts.URL, "", "curio_recentEvents", map[string]interface{}{"limit": 1})
	if status != http.StatusOK {
		t.Fatalf("recent events status = %d, error = %+v", status, envelope.Error)
	}
	decodeResult(t, envelope, &events)
	if len(events) != 1 {
		t.Fatalf("limited events = %d, want 1", len(events))
	}
}
