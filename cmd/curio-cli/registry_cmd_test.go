package main

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func diffParams(actual interface{}, expected map[string]interface{}) string {
	raw, err := json.Marshal(actual)
	if err != nil {
		return "failed to marshal actual params"
	}
	var actualMap map[string]interface{}
	if err := json.Unmarshal(raw, &actualMap); err != nil {
		return "actual params are not an object"
	}
	for key, want := range expected {
		got, exists := actualMap[key]
		if !exists {
			return "missing key " + key
		}
		switch wantTyped := want.(type) {
		case string:
			gotStr, ok := got.(string)
			if !ok || gotStr != wantTyped {
				return "value mismatch for " + key
			}
		case int64:
			gotNum, ok := got.(float64)
			if !ok || int64(gotNum) != wantTyped {
				return "value mismatch for " + key
			}
		default:
			return "unsupported expected type"
		}
	}
	return ""
}

func TestRegistryCommandArgValidation(t *testing.T) {
	original := registryRPCCall
	registryRPCCall = func(method string, param interface{}, requireAuth bool) (json.RawMessage, *rpcError, error) {
		t.Fatalf("unexpected RPC call for method %s", method)
		return nil, nil, nil
	}
	defer func() { registryRPCCall = original }()

	cases := []struct {
		name    string
		args    []string
		wantMsg string
	}{
		{
			name:    "publish_missing_caller",
			args:    []string{"publish", "--id", "content-1", "--mint-price", "1000000"},
			wantMsg: "address or key file required",
		},
		{
			name:    "publish_missing_id",
			args:    []string{"publish", "--caller", "curio1abc", "--mint-price", "1000000"},
			wantMsg: "--id is required",
		},
		{
			name:    "publish_missing_fingerprint",
			args:    []string{"publish", "--caller", "curio1abc", "--id", "content-1", "--mint-price", "1000000"},
			wantMsg: "--fingerprint or --file is required",
		},
		{
			name:    "create_bundle_missing_members",
			args:    []string{"create-bundle", "--caller", "curio1abc", "--id", "bundle-1", "--mint-price", "50000000"},
			wantMsg: "--members is required",
		},
		{
			name:    "rental_missing_renter",
			args:    []string{"rental", "--content", "content-1"},
			wantMsg: "--renter is required",
		},
		{
			name:    "content_missing_id",
			args:    []string{"content"},
			wantMsg: "identifier argument is required",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stdout := &bytes.Buffer{}
			stderr := &bytes.Buffer{}
			exit := runRegistryCommand(tc.args, stdout, stderr)
			if exit != 1 {
				t.Fatalf("unexpected exit code: got %d, want 1", exit)
			}
			if stdout.Len() != 0 {
				t.Fatalf("expected empty stdout, got %q", stdout.String())
			}
			if !strings.Contains(stderr.String(), tc.wantMsg) {
				t.Fatalf("expected stderr to mention %q, got %q", tc.wantMsg, stderr.String())
			}
		})
	}
}

func TestRegistryPublishHashesLocalFile(t *testing.T) {
	master := filepath.Join(t.TempDir(), "track.flac")
	payload := []byte("four minutes of synthwave")
	if err := os.WriteFile(master, payload, 0o600); err != nil {
		t.Fatalf("failed to write master file: %v", err)
	}
	digest := sha256.Sum256(payload)
	wantFingerprint := hex.EncodeToString(digest[:])

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	original := registryRPCCall
	registryRPCCall = func(method string, param interface{}, requireAuth bool) (json.RawMessage, *rpcError, error) {
		if method != "registry_publish" {
			t.Fatalf("unexpected method %s", method)
		}
		if !requireAuth {
			t.Fatal("expected authenticated call")
		}
		expected := map[string]interface{}{
			"caller":      "curio1minter",
			"creator":     "curio1minter",
			"id":          "content-1",
			"fingerprint": wantFingerprint,
			"mintPrice":   "1000000",
		}
		if diff := diffParams(param, expected); diff != "" {
			t.Fatalf("unexpected params diff: %s", diff)
		}
		return json.RawMessage(`{"id":"content-1"}`), nil, nil
	}
	defer func() { registryRPCCall = original }()

	exit := runRegistryCommand([]string{
		"publish",
		"--caller", "curio1minter",
		"--id", "content-1",
		"--file", master,
		"--mint-price", "1000000",
	}, stdout, stderr)
	if exit != 0 {
		t.Fatalf("unexpected exit code: %d (stderr: %s)", exit, stderr.String())
	}
	if stderr.Len() != 0 {
		t.Fatalf("expected empty stderr, got %q", stderr.String())
	}
	if stdout.String() != "{\"id\":\"content-1\"}\n" {
		t.Fatalf("unexpected stdout: %q", stdout.String())
	}
}

func TestContentFingerprintRejectsShortDigest(t *testing.T) {
	if _, err := contentFingerprint("abcd", ""); err == nil {
		t.Fatal("expected error for short fingerprint")
	}
	full := strings.Repeat("ab", 32)
	got, err := contentFingerprint("0x"+full, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != full {
		t.Fatalf("unexpected fingerprint: %s", got)
	}
}

func TestRegistryLookupPassesIdentifier(t *testing.T) {
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	original := registryRPCCall
	registryRPCCall = func(method string, param interface{}, requireAuth bool) (json.RawMessage, *rpcError, error) {
		if method != "registry_getBundle" {
			t.Fatalf("unexpected method %s", method)
		}
		if requireAuth {
			t.Fatal("lookups must not require auth")
		}
		if diff := diffParams(param, map[string]interface{}{"id": "bundle-1"}); diff != "" {
			t.Fatalf("unexpected params diff: %s", diff)
		}
		return json.RawMessage(`{"id":"bundle-1","members":["content-1"]}`), nil, nil
	}
	defer func() { registryRPCCall = original }()

	exit := runRegistryCommand([]string{"bundle", "bundle-1"}, stdout, stderr)
	if exit != 0 {
		t.Fatalf("unexpected exit code: %d", exit)
	}
	if !strings.Contains(stdout.String(), "bundle-1") {
		t.Fatalf("unexpected stdout: %q", stdout.String())
	}
}

func TestRegistryCommandSurfacesRPCError(t *testing.T) {
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	original := registryRPCCall
	registryRPCCall = func(method string, param interface{}, requireAuth bool) (json.RawMessage, *rpcError, error) {
		return nil, &rpcError{Code: -32000, Message: "content not found"}, nil
	}
	defer func() { registryRPCCall = original }()

	exit := runRegistryCommand([]string{"content", "missing"}, stdout, stderr)
	if exit != 1 {
		t.Fatalf("unexpected exit code: %d", exit)
	}
	if !strings.Contains(stderr.String(), "RPC error -32000: content not found") {
		t.Fatalf("unexpected stderr: %q", stderr.String())
	}
}
