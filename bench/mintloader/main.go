package main

import (
	"bytes"
	"context"
	cryptorand "crypto/rand"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	curiocrypto "curiochain/crypto"

	"nhooyr.io/websocket"
)

const (
	defaultDuration = 2 * time.Minute
	defaultRate     = 600 // mints per minute
	mintPrice       = 100_000
)

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      int           `json:"id"`
}

type rpcError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
	ID      int             `json:"id"`
}

type mintedFrame struct {
	Sequence   uint64            `json:"sequence"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

type latencyTracker struct {
	mu        sync.Mutex
	pending   map[string]time.Time
	latencies []time.Duration
}

func newLatencyTracker() *latencyTracker {
	return &latencyTracker{pending: make(map[string]time.Time)}
}

func (lt *latencyTracker) track(unitID string, at time.Time) {
	lt.mu.Lock()
	lt.pending[unitID] = at
	lt.mu.Unlock()
}

func (lt *latencyTracker) finalize(unitID string, at time.Time) {
	lt.mu.Lock()
	start, ok := lt.pending[unitID]
	if ok {
		lt.latencies = append(lt.latencies, at.Sub(start))
		delete(lt.pending, unitID)
	}
	lt.mu.Unlock()
}

func (lt *latencyTracker) snapshot() (latencies []time.Duration, pending int) {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	latencies = append([]time.Duration(nil), lt.latencies...)
	pending = len(lt.pending)
	return latencies, pending
}

func (lt *latencyTracker) waitForEmpty(ctx context.Context) bool {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		lt.mu.Lock()
		remaining := len(lt.pending)
		lt.mu.Unlock()
		if remaining == 0 {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

func main() {
	var (
		rpcURL       string
		authority    string
		mintRate     int
		durationFlag time.Duration
		unitPrefix   string
	)
	flag.StringVar(&rpcURL, "rpc", "http://127.0.0.1:8545", "RPC endpoint for submitting mints")
	flag.StringVar(&authority, "authority", "", "bech32 address holding ROLE_MINTER and ROLE_TREASURER (overrides MINTLOADER_AUTHORITY)")
	flag.IntVar(&mintRate, "rate", defaultRate, "target rate of mint settlements per minute")
	flag.DurationVar(&durationFlag, "duration", defaultDuration, "load duration")
	flag.StringVar(&unitPrefix, "unit-prefix", "bench-unit", "prefix for generated unit identifiers")
	flag.Parse()

	if authority == "" {
		authority = os.Getenv("MINTLOADER_AUTHORITY")
	}
	authority = strings.TrimSpace(authority)
	if authority == "" {
		log.Fatal("missing authority: provide --authority or MINTLOADER_AUTHORITY")
	}
	if _, err := curiocrypto.DecodeAddress(authority); err != nil {
		log.Fatalf("decode authority address: %v", err)
	}

	token := strings.TrimSpace(os.Getenv("CURIO_RPC_TOKEN"))
	if token == "" {
		log.Fatal("missing CURIO_RPC_TOKEN for RPC authentication")
	}
	parsed, err := url.Parse(rpcURL)
	if err != nil {
		log.Fatalf("parse rpc url: %v", err)
	}
	if parsed.Scheme == "" {
		parsed.Scheme = "http"
	}

	if mintRate <= 0 {
		log.Fatalf("rate must be positive, got %d", mintRate)
	}
	if durationFlag <= 0 {
		durationFlag = defaultDuration
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	httpClient := &http.Client{Timeout: 10 * time.Second}
	tracker := newLatencyTracker()

	creatorKey, err := curiocrypto.GeneratePrivateKey()
	if err != nil {
		log.Fatalf("generate creator key: %v", err)
	}
	payerKey, err := curiocrypto.GeneratePrivateKey()
	if err != nil {
		log.Fatalf("generate payer key: %v", err)
	}
	creator := creatorKey.PubKey().Address().String()
	payer := payerKey.PubKey().Address().String()

	planned := int(durationFlag.Minutes()*float64(mintRate)) + mintRate
	budget := new(big.Int).Mul(big.NewInt(mintPrice), big.NewInt(int64(planned)))
	if err := fundPayer(ctx, httpClient, parsed, token, authority, payer, budget); err != nil {
		log.Fatalf("fund payer: %v", err)
	}

	contentID := unitPrefix + "-content"
	if err := publishContent(ctx, httpClient, parsed, token, authority, creator, contentID); err != nil {
		log.Fatalf("publish content: %v", err)
	}

	wsURL := *parsed
	switch strings.ToLower(parsed.Scheme) {
	case "https":
		wsURL.Scheme = "wss"
	default:
		wsURL.Scheme = "ws"
	}
	wsURL.Path = "/ws/events"
	wsURL.RawQuery = "type=registry.unit.minted"

	wsCtx, wsCancel := context.WithTimeout(ctx, 5*time.Second)
	conn, _, err := websocket.Dial(wsCtx, wsURL.String(), nil)
	wsCancel()
	if err != nil {
		log.Fatalf("connect event stream: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "load complete")

	mintedCtx, mintedCancel := context.WithCancel(ctx)
	defer mintedCancel()
	go consumeMinted(mintedCtx, conn, tracker)

	interval := time.Minute / time.Duration(mintRate)
	if interval <= 0 {
		interval = time.Millisecond
	}
	deadline := time.Now().Add(durationFlag)
	var seq uint64
	var submitted int
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			log.Printf("context cancelled: %v", ctx.Err())
			return
		default:
		}
		unitID, err := submitMint(ctx, httpClient, parsed, token, authority, payer, contentID, unitPrefix, seq)
		if err != nil {
			log.Printf("submit mint %d failed: %v", seq, err)
		} else {
			tracker.track(unitID, time.Now())
			submitted++
		}
		seq++
		time.Sleep(interval)
	}

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer waitCancel()
	if !tracker.waitForEmpty(waitCtx) {
		log.Printf("pending settlement for %d mints", trackerPending(tracker))
	}

	mintedCancel()

	latencies, pending := tracker.snapshot()
	reportLoadSummary(latencies, pending, submitted)
}

func callRPC(ctx context.Context, client *http.Client, rpcURL *url.URL, token, method string, params interface{}) (json.RawMessage, error) {
	payload := rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  []interface{}{params},
		ID:      1,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rpcURL.String(), bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rpc call: %w", err)
	}
	defer resp.Body.Close()

	var decoded rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if decoded.Error != nil {
		return nil, fmt.Errorf("rpc error %d: %s", decoded.Error.Code, decoded.Error.Message)
	}
	return decoded.Result, nil
}

func fundPayer(ctx context.Context, client *http.Client, rpcURL *url.URL, token, authority, payer string, amount *big.Int) error {
	params := struct {
		Caller string `json:"caller"`
		Target string `json:"target"`
		Amount string `json:"amount"`
	}{Caller: authority, Target: payer, Amount: amount.String()}
	_, err := callRPC(ctx, client, rpcURL, token, "curio_fundAccount", params)
	return err
}

func publishContent(ctx context.Context, client *http.Client, rpcURL *url.URL, token, authority, creator, contentID string) error {
	fingerprint := make([]byte, 32)
	if _, err := cryptorand.Read(fingerprint); err != nil {
		return fmt.Errorf("generate fingerprint: %w", err)
	}
	params := struct {
		Caller      string `json:"caller"`
		Creator     string `json:"creator"`
		ID          string `json:"id"`
		Title       string `json:"title"`
		URI         string `json:"uri"`
		Fingerprint string `json:"fingerprint"`
		MintPrice   string `json:"mintPrice"`
	}{
		Caller:      authority,
		Creator:     creator,
		ID:          contentID,
		Title:       "Mint load probe",
		URI:         "ipfs://bench/mint-load",
		Fingerprint: hex.EncodeToString(fingerprint),
		MintPrice:   big.NewInt(mintPrice).String(),
	}
	_, err := callRPC(ctx, client, rpcURL, token, "registry_publish", params)
	return err
}

func submitMint(ctx context.Context, client *http.Client, rpcURL *url.URL, token, authority, payer, contentID, prefix string, seq uint64) (string, error) {
	unitID := fmt.Sprintf("%s-%d", prefix, seq)
	// Spread rolls over the full 32-bit space so mints land on every tier.
	roll := uint32(seq * 2654435761)
	params := struct {
		Caller    string `json:"caller"`
		Payer     string `json:"payer"`
		UnitID    string `json:"unitId"`
		ContentID string `json:"contentId"`
		Roll      uint32 `json:"roll"`
	}{
		Caller:    authority,
		Payer:     payer,
		UnitID:    unitID,
		ContentID: contentID,
		Roll:      roll,
	}
	if _, err := callRPC(ctx, client, rpcURL, token, "router_mint", params); err != nil {
		return "", err
	}
	return unitID, nil
}

func consumeMinted(ctx context.Context, conn *websocket.Conn, tracker *latencyTracker) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var payload mintedFrame
		if err := json.Unmarshal(data, &payload); err != nil {
			log.Printf("decode minted frame: %v", err)
			continue
		}
		unitID := payload.Attributes["unitId"]
		if unitID == "" {
			continue
		}
		tracker.finalize(unitID, time.Now())
	}
}

func trackerPending(t *latencyTracker) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

func reportLoadSummary(latencies []time.Duration, pending int, submitted int) {
	var max time.Duration
	var total time.Duration
	for _, latency := range latencies {
		if latency > max {
			max = latency
		}
		total += latency
	}
	avg := time.Duration(0)
	if len(latencies) > 0 {
		avg = time.Duration(int64(total) / int64(len(latencies)))
	}
	log.Printf("Mint loader submitted %d mints", submitted)
	log.Printf("Settled %d mints (pending: %d)", len(latencies), pending)
	log.Printf("Latency avg=%s max=%s", avg, max)
}
