package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestClaimCommandRoutesScopes(t *testing.T) {
	cases := []struct {
		args       []string
		wantMethod string
	}{
		{args: []string{"content", "unit-1"}, wantMethod: "rewards_claimContent"},
		{args: []string{"bundle", "unit-2"}, wantMethod: "rewards_claimBundle"},
		{args: []string{"patron", "unit-3"}, wantMethod: "rewards_claimPatron"},
	}
	for _, tc := range cases {
		t.Run(tc.wantMethod, func(t *testing.T) {
			stdout := &bytes.Buffer{}
			stderr := &bytes.Buffer{}
			original := rewardsRPCCall
			rewardsRPCCall = func(method string, param interface{}, requireAuth bool) (json.RawMessage, *rpcError, error) {
				if method != tc.wantMethod {
					t.Fatalf("unexpected method %s", method)
				}
				if !requireAuth {
					t.Fatal("claims must be authenticated")
				}
				if diff := diffParams(param, map[string]interface{}{"unitId": tc.args[1]}); diff != "" {
					t.Fatalf("unexpected params diff: %s", diff)
				}
				return json.RawMessage(`{"amount":"120000"}`), nil, nil
			}
			defer func() { rewardsRPCCall = original }()

			exit := runClaimCommand(tc.args, stdout, stderr)
			if exit != 0 {
				t.Fatalf("unexpected exit code: %d (stderr: %s)", exit, stderr.String())
			}
			if !strings.Contains(stdout.String(), "120000") {
				t.Fatalf("unexpected stdout: %q", stdout.String())
			}
		})
	}
}

func TestClaimCommandRejectsMissingUnit(t *testing.T) {
	original := rewardsRPCCall
	rewardsRPCCall = func(method string, param interface{}, requireAuth bool) (json.RawMessage, *rpcError, error) {
		t.Fatalf("unexpected RPC call for method %s", method)
		return nil, nil, nil
	}
	defer func() { rewardsRPCCall = original }()

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	exit := runClaimCommand([]string{"content"}, stdout, stderr)
	if exit != 1 {
		t.Fatalf("unexpected exit code: %d", exit)
	}
	if !strings.Contains(stderr.String(), "unit id argument is required") {
		t.Fatalf("unexpected stderr: %q", stderr.String())
	}
}

func TestClaimCreatorUsesFlagAddress(t *testing.T) {
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	original := rewardsRPCCall
	rewardsRPCCall = func(method string, param interface{}, requireAuth bool) (json.RawMessage, *rpcError, error) {
		if method != "rewards_claimCreator" {
			t.Fatalf("unexpected method %s", method)
		}
		if diff := diffParams(param, map[string]interface{}{"creator": "curio1creator"}); diff != "" {
			t.Fatalf("unexpected params diff: %s", diff)
		}
		return json.RawMessage(`{"scope":"creator","amount":"8000000"}`), nil, nil
	}
	defer func() { rewardsRPCCall = original }()

	exit := runClaimCommand([]string{"creator", "--creator", "curio1creator"}, stdout, stderr)
	if exit != 0 {
		t.Fatalf("unexpected exit code: %d (stderr: %s)", exit, stderr.String())
	}
	if !strings.Contains(stdout.String(), "8000000") {
		t.Fatalf("unexpected stdout: %q", stdout.String())
	}
}

func TestRewardsSettlementsOmitsEmptyFilter(t *testing.T) {
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	original := rewardsRPCCall
	rewardsRPCCall = func(method string, param interface{}, requireAuth bool) (json.RawMessage, *rpcError, error) {
		if method != "rewards_settlements" {
			t.Fatalf("unexpected method %s", method)
		}
		if param != nil {
			t.Fatalf("expected no parameter object, got %v", param)
		}
		return json.RawMessage(`[]`), nil, nil
	}
	defer func() { rewardsRPCCall = original }()

	exit := runRewardsCommand([]string{"settlements"}, stdout, stderr)
	if exit != 0 {
		t.Fatalf("unexpected exit code: %d (stderr: %s)", exit, stderr.String())
	}
}

func TestRewardsSettlementsForwardsFilter(t *testing.T) {
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	original := rewardsRPCCall
	rewardsRPCCall = func(method string, param interface{}, requireAuth bool) (json.RawMessage, *rpcError, error) {
		expected := map[string]interface{}{"treasury": "treasury:global", "limit": int64(5)}
		if diff := diffParams(param, expected); diff != "" {
			t.Fatalf("unexpected params diff: %s", diff)
		}
		return json.RawMessage(`[]`), nil, nil
	}
	defer func() { rewardsRPCCall = original }()

	exit := runRewardsCommand([]string{"settlements", "--treasury", "treasury:global", "--limit", "5"}, stdout, stderr)
	if exit != 0 {
		t.Fatalf("unexpected exit code: %d (stderr: %s)", exit, stderr.String())
	}
}

func TestRewardsSetEpochValidatesSeconds(t *testing.T) {
	original := rewardsRPCCall
	rewardsRPCCall = func(method string, param interface{}, requireAuth bool) (json.RawMessage, *rpcError, error) {
		t.Fatalf("unexpected RPC call for method %s", method)
		return nil, nil, nil
	}
	defer func() { rewardsRPCCall = original }()

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	exit := runRewardsCommand([]string{"set-epoch", "--caller", "curio1admin", "--seconds", "0"}, stdout, stderr)
	if exit != 1 {
		t.Fatalf("unexpected exit code: %d", exit)
	}
	if !strings.Contains(stderr.String(), "--seconds must be positive") {
		t.Fatalf("unexpected stderr: %q", stderr.String())
	}
}

func TestFormatLamports(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{input: "0", want: "0"},
		{input: "999", want: "999"},
		{input: "1000000", want: "1,000,000"},
		{input: "50000000", want: "50,000,000"},
		{input: "", want: "0"},
		{input: "12ab", want: "12ab"},
	}
	for _, tc := range cases {
		if got := formatLamports(tc.input); got != tc.want {
			t.Fatalf("formatLamports(%q): got %q, want %q", tc.input, got, tc.want)
		}
	}
}
