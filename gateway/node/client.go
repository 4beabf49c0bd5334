// Package node is a thin JSON-RPC client for curiod used by the gateway and
// other off-node services. Result types mirror the node's wire JSON so
// consumers never import node internals.
package node

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

// Client is the surface the gateway needs from curiod.
type Client interface {
	PublishContent(ctx context.Context, req PublishContentRequest) (*Content, error)
	CreateBundle(ctx context.Context, req CreateBundleRequest) (*Bundle, error)
	MintUnit(ctx context.Context, req MintRequest) (*MintOutcome, error)
	RentContent(ctx context.Context, req RentRequest) (*RentOutcome, error)
	PatronTick(ctx context.Context, req TickRequest) error
	EcosystemTick(ctx context.Context, req TickRequest) error
	ClaimUnit(ctx context.Context, scope, unitID string) (*Claim, error)
	ClaimCreator(ctx context.Context, creator string) (*Claim, error)
	GetContent(ctx context.Context, id string) (*Content, error)
	GetBundle(ctx context.Context, id string) (*Bundle, error)
	GetUnit(ctx context.Context, id string) (*Unit, error)
	RentalStatus(ctx context.Context, contentID, renter string) (*Rental, error)
	PoolInfo(ctx context.Context, poolID string) (*Pool, error)
	CreatorInfo(ctx context.Context, creator string) (*CreatorStats, error)
	TreasuryInfo(ctx context.Context, treasuryID string) (*Treasury, error)
	EpochInfo(ctx context.Context) (*EpochStatus, error)
	SetEpochDuration(ctx context.Context, caller string, seconds int64) error
	Settlements(ctx context.Context, treasury string, limit int) ([]Settlement, error)
	Balance(ctx context.Context, address string) (*Balance, error)
	Events(ctx context.Context, eventType string, after uint64, limit int) ([]Event, error)
	FetchEvents(ctx context.Context, after uint64, limit int) ([]Event, error)
}

// RPCError carries the node's HTTP status alongside the JSON-RPC error so the
// gateway can pass conflict and not-found responses through instead of
// flattening everything to 502.
type RPCError struct {
	Status  int
	Code    int
	Message string
	Data    string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("node rpc error %d: %s", e.Code, e.Message)
}

// AsRPCError unwraps err into an RPCError when the node produced it.
func AsRPCError(err error) (*RPCError, bool) {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr, true
	}
	return nil, false
}

// RPCClient implements Client against the curiod JSON-RPC server.
type RPCClient struct {
	baseURL   string
	authToken string
	http      *http.Client
	nextID    atomic.Int64
}

func NewRPCClient(baseURL, authToken string, timeout time.Duration) *RPCClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &RPCClient{
		baseURL:   baseURL,
		authToken: authToken,
		http:      &http.Client{Timeout: timeout},
	}
}

type jsonRPCRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
	ID      int64       `json:"id"`
}

type jsonRPCResponse struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      int64            `json:"id"`
	Result  json.RawMessage  `json:"result"`
	Error   *jsonRPCErrorObj `json:"error"`
}

type jsonRPCErrorObj struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *RPCClient) PublishContent(ctx context.Context, req PublishContentRequest) (*Content, error) {
	var result Content
	if err := c.call(ctx, "registry_publish", []interface{}{req}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *RPCClient) CreateBundle(ctx context.Context, req CreateBundleRequest) (*Bundle, error) {
	var result Bundle
	if err := c.call(ctx, "registry_createBundle", []interface{}{req}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *RPCClient) MintUnit(ctx context.Context, req MintRequest) (*MintOutcome, error) {
	var result MintOutcome
	if err := c.call(ctx, "router_mint", []interface{}{req}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *RPCClient) RentContent(ctx context.Context, req RentRequest) (*RentOutcome, error) {
	var result RentOutcome
	if err := c.call(ctx, "router_rent", []interface{}{req}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *RPCClient) PatronTick(ctx context.Context, req TickRequest) error {
	return c.call(ctx, "router_patronTick", []interface{}{req}, nil)
}

func (c *RPCClient) EcosystemTick(ctx context.Context, req TickRequest) error {
	return c.call(ctx, "router_ecosystemTick", []interface{}{req}, nil)
}

func claimMethod(scope string) (string, error) {
	switch strings.TrimSpace(strings.ToLower(scope)) {
	case "content":
		return "rewards_claimContent", nil
	case "bundle":
		return "rewards_claimBundle", nil
	case "patron":
		return "rewards_claimPatron", nil
	default:
		return "", fmt.Errorf("unknown claim scope %q", scope)
	}
}

func (c *RPCClient) ClaimUnit(ctx context.Context, scope, unitID string) (*Claim, error) {
	method, err := claimMethod(scope)
	if err != nil {
		return nil, err
	}
	var result Claim
	if err := c.call(ctx, method, []interface{}{map[string]string{"unitId": unitID}}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *RPCClient) ClaimCreator(ctx context.Context, creator string) (*Claim, error) {
	var result Claim
	if err := c.call(ctx, "rewards_claimCreator", []interface{}{map[string]string{"creator": creator}}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *RPCClient) GetContent(ctx context.Context, id string) (*Content, error) {
	var result Content
	if err := c.call(ctx, "registry_getContent", []interface{}{map[string]string{"id": id}}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *RPCClient) GetBundle(ctx context.Context, id string) (*Bundle, error) {
	var result Bundle
	if err := c.call(ctx, "registry_getBundle", []interface{}{map[string]string{"id": id}}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *RPCClient) GetUnit(ctx context.Context, id string) (*Unit, error) {
	var result Unit
	if err := c.call(ctx, "registry_getUnit", []interface{}{map[string]string{"unitId": id}}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *RPCClient) RentalStatus(ctx context.Context, contentID, renter string) (*Rental, error) {
	params := map[string]string{"contentId": contentID, "renter": renter}
	var result Rental
	if err := c.call(ctx, "registry_rentalStatus", []interface{}{params}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *RPCClient) PoolInfo(ctx context.Context, poolID string) (*Pool, error) {
	var result Pool
	if err := c.call(ctx, "rewards_poolInfo", []interface{}{map[string]string{"poolId": poolID}}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *RPCClient) CreatorInfo(ctx context.Context, creator string) (*CreatorStats, error) {
	var result CreatorStats
	if err := c.call(ctx, "rewards_creatorInfo", []interface{}{map[string]string{"creator": creator}}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *RPCClient) TreasuryInfo(ctx context.Context, treasuryID string) (*Treasury, error) {
	var result Treasury
	if err := c.call(ctx, "rewards_treasuryInfo", []interface{}{map[string]string{"treasuryId": treasuryID}}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *RPCClient) EpochInfo(ctx context.Context) (*EpochStatus, error) {
	var result EpochStatus
	if err := c.call(ctx, "rewards_epochInfo", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *RPCClient) SetEpochDuration(ctx context.Context, caller string, seconds int64) error {
	params := map[string]interface{}{"caller": caller, "seconds": seconds}
	return c.call(ctx, "rewards_setEpochDuration", []interface{}{params}, nil)
}

func (c *RPCClient) Settlements(ctx context.Context, treasury string, limit int) ([]Settlement, error) {
	params := map[string]interface{}{}
	if trimmed := strings.TrimSpace(treasury); trimmed != "" {
		params["treasury"] = trimmed
	}
	if limit > 0 {
		params["limit"] = limit
	}
	var result []Settlement
	if err := c.call(ctx, "rewards_settlements", []interface{}{params}, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *RPCClient) Balance(ctx context.Context, address string) (*Balance, error) {
	var result Balance
	if err := c.call(ctx, "curio_getBalance", []interface{}{map[string]string{"address": address}}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *RPCClient) Events(ctx context.Context, eventType string, after uint64, limit int) ([]Event, error) {
	params := map[string]interface{}{"after": after}
	if eventType != "" {
		params["type"] = eventType
	}
	if limit > 0 {
		params["limit"] = limit
	}
	var result []Event
	if err := c.call(ctx, "curio_recentEvents", []interface{}{params}, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// FetchEvents is the cursor-only variant used by the webhook watcher.
func (c *RPCClient) FetchEvents(ctx context.Context, after uint64, limit int) ([]Event, error) {
	return c.Events(ctx, "", after, limit)
}

func (c *RPCClient) call(ctx context.Context, method string, params interface{}, out interface{}) error {
	id := c.nextID.Add(1)
	if params == nil {
		params = []interface{}{}
	}
	buf, err := json.Marshal(jsonRPCRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      id,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(c.authToken) != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	var rpcResp jsonRPCResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("node rpc %s failed: status=%d body=%s", method, resp.StatusCode, string(body))
		}
		return err
	}
	if rpcResp.Error != nil {
		rpcErr := &RPCError{
			Status:  resp.StatusCode,
			Code:    rpcResp.Error.Code,
			Message: rpcResp.Error.Message,
		}
		if len(rpcResp.Error.Data) > 0 {
			var data string
			if err := json.Unmarshal(rpcResp.Error.Data, &data); err == nil {
				rpcErr.Data = data
			} else {
				rpcErr.Data = string(rpcResp.Error.Data)
			}
		}
		return rpcErr
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("node rpc %s failed: status=%d", method, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if len(rpcResp.Result) == 0 {
		return errors.New("node rpc returned empty result")
	}
	return json.Unmarshal(rpcResp.Result, out)
}
