package main

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"curiochain/crypto"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	os.Stdout = w
	resultCh := make(chan struct {
		data string
		err  error
	})
	go func() {
		data, err := io.ReadAll(r)
		resultCh <- struct {
			data string
			err  error
		}{data: string(data), err: err}
	}()
	fn()
	if err := w.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}
	os.Stdout = old
	result := <-resultCh
	if err := r.Close(); err != nil {
		t.Fatalf("failed to close reader: %v", err)
	}
	if result.err != nil {
		t.Fatalf("failed to read stdout: %v", result.err)
	}
	return result.data
}

func TestGetBalanceDialErrorIncludesEndpointAndCause(t *testing.T) {
	originalEndpoint := rpcEndpoint
	rpcEndpoint = "http://test.invalid"
	defer func() { rpcEndpoint = originalEndpoint }()

	originalClient := http.DefaultClient
	http.DefaultClient = &http.Client{Transport: roundTripperFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("dial tcp 127.0.0.1:8545: connect: connection refused (test stub)")
	})}
	defer func() { http.DefaultClient = originalClient }()

	output := captureStdout(t, func() {
		getBalance("curio1testaddress")
	})

	if !strings.Contains(output, "POST http://test.invalid") {
		t.Fatalf("expected output to include endpoint, got %q", output)
	}
	if !strings.Contains(output, "connection refused (test stub)") {
		t.Fatalf("expected output to include underlying error, got %q", output)
	}
}

func TestApplyGlobalFlagsOverridesEndpoint(t *testing.T) {
	originalEndpoint := rpcEndpoint
	defer func() { rpcEndpoint = originalEndpoint }()

	args, err := applyGlobalFlags([]string{"--rpc", "http://node:9000", "balance", "curio1abc"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rpcEndpoint != "http://node:9000" {
		t.Fatalf("unexpected endpoint: %s", rpcEndpoint)
	}
	if len(args) != 2 || args[0] != "balance" || args[1] != "curio1abc" {
		t.Fatalf("unexpected remaining args: %v", args)
	}

	args, err = applyGlobalFlags([]string{"--rpc=http://node:9001", "events"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rpcEndpoint != "http://node:9001" {
		t.Fatalf("unexpected endpoint: %s", rpcEndpoint)
	}
	if len(args) != 1 || args[0] != "events" {
		t.Fatalf("unexpected remaining args: %v", args)
	}

	if _, err := applyGlobalFlags([]string{"--rpc"}); err == nil {
		t.Fatal("expected error for missing --rpc value")
	}
}

func TestResolveActorFromKeyFile(t *testing.T) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	path := filepath.Join(t.TempDir(), "wallet.key")
	if err := os.WriteFile(path, key.Bytes(), 0o600); err != nil {
		t.Fatalf("failed to write key file: %v", err)
	}

	actor, err := resolveActor("", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if actor != key.PubKey().Address().String() {
		t.Fatalf("unexpected actor address: %s", actor)
	}
	if !strings.HasPrefix(actor, "curio1") {
		t.Fatalf("expected a curio bech32 address, got %s", actor)
	}
}

func TestResolveActorValidation(t *testing.T) {
	if _, err := resolveActor("", ""); err == nil {
		t.Fatal("expected error when neither address nor key file is given")
	}
	if _, err := resolveActor("curio1abc", "wallet.key"); err == nil {
		t.Fatal("expected error when both address and key file are given")
	}
	actor, err := resolveActor("  curio1abc  ", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if actor != "curio1abc" {
		t.Fatalf("unexpected actor: %q", actor)
	}
}

func TestLoadPrivateKeyMissingFileMentionsGenerateKey(t *testing.T) {
	_, err := loadPrivateKey(filepath.Join(t.TempDir(), "absent.key"))
	if err == nil {
		t.Fatal("expected error for missing key file")
	}
	if !strings.Contains(err.Error(), "generate-key") {
		t.Fatalf("expected actionable error, got %v", err)
	}
}
