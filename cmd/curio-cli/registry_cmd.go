package main

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
)

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

var registryRPCCall = callModuleRPC

func runRegistryCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, registryUsage())
		return 1
	}
	switch args[0] {
	case "publish":
		return runRegistryPublish(args[1:], stdout, stderr)
	case "create-bundle":
		return runRegistryCreateBundle(args[1:], stdout, stderr)
	case "content":
		return runRegistryLookup("registry_getContent", args[1:], stdout, stderr)
	case "bundle":
		return runRegistryLookup("registry_getBundle", args[1:], stdout, stderr)
	case "unit":
		return runRegistryUnit(args[1:], stdout, stderr)
	case "rental":
		return runRegistryRental(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown registry subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, registryUsage())
		return 1
	}
}

func registryUsage() string {
	return strings.TrimSpace(`Usage:
  curio-cli registry <command> [flags]

Commands:
  publish        Publish a content entry into the catalogue
  create-bundle  Group published entries into a bundle
  content        Fetch a content entry by id
  bundle         Fetch a bundle by id
  unit           Fetch a minted unit with its pending rewards
  rental         Check the rental window for a renter on an entry
`)
}

func newRegistryFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, registryUsage())
	}
	return fs
}

// contentFingerprint accepts either an explicit 32-byte hex digest or hashes a
// local master file when only a path was supplied.
func contentFingerprint(fingerprint, filePath string) (string, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(fingerprint), "0x")
	if trimmed != "" {
		raw, err := hex.DecodeString(trimmed)
		if err != nil {
			return "", fmt.Errorf("invalid --fingerprint: %w", err)
		}
		if len(raw) != sha256.Size {
			return "", fmt.Errorf("--fingerprint must be %d hex-encoded bytes", sha256.Size)
		}
		return hex.EncodeToString(raw), nil
	}
	path := strings.TrimSpace(filePath)
	if path == "" {
		return "", fmt.Errorf("--fingerprint or --file is required")
	}
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func runRegistryPublish(args []string, stdout, stderr io.Writer) int {
	fs := newRegistryFlagSet("registry publish", stderr)
	var (
		caller      string
		keyFile     string
		creator     string
		id          string
		title       string
		uri         string
		fingerprint string
		file        string
		mintPrice   string
		rentalFee   string
	)
	fs.StringVar(&caller, "caller", "", "bech32 address of the minter role holder")
	fs.StringVar(&keyFile, "key", "", "derive the caller address from a local key file")
	fs.StringVar(&creator, "creator", "", "bech32 address credited as the creator")
	fs.StringVar(&id, "id", "", "catalogue identifier for the entry")
	fs.StringVar(&title, "title", "", "human readable title")
	fs.StringVar(&uri, "uri", "", "where the content itself lives")
	fs.StringVar(&fingerprint, "fingerprint", "", "sha-256 digest of the master file (hex)")
	fs.StringVar(&file, "file", "", "hash this local file instead of passing --fingerprint")
	fs.StringVar(&mintPrice, "mint-price", "", "mint price in lamports")
	fs.StringVar(&rentalFee, "rental-fee", "", "optional rental fee in lamports")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(stderr, "Error: unexpected positional arguments")
		return 1
	}
	actor, err := resolveActor(caller, keyFile)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if strings.TrimSpace(creator) == "" {
		creator = actor
	}
	if strings.TrimSpace(id) == "" {
		fmt.Fprintln(stderr, "Error: --id is required")
		return 1
	}
	if strings.TrimSpace(mintPrice) == "" {
		fmt.Fprintln(stderr, "Error: --mint-price is required")
		return 1
	}
	digest, err := contentFingerprint(fingerprint, file)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	params := map[string]interface{}{
		"caller":      actor,
		"creator":     strings.TrimSpace(creator),
		"id":          strings.TrimSpace(id),
		"title":       strings.TrimSpace(title),
		"uri":         strings.TrimSpace(uri),
		"fingerprint": digest,
		"mintPrice":   strings.TrimSpace(mintPrice),
	}
	if strings.TrimSpace(rentalFee) != "" {
		params["rentalFee"] = strings.TrimSpace(rentalFee)
	}
	result, rpcErr, err := registryRPCCall("registry_publish", params, true)
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	writeRPCResult(stdout, result)
	return 0
}

func runRegistryCreateBundle(args []string, stdout, stderr io.Writer) int {
	fs := newRegistryFlagSet("registry create-bundle", stderr)
	var (
		caller    string
		keyFile   string
		creator   string
		id        string
		title     string
		members   string
		mintPrice string
	)
	fs.StringVar(&caller, "caller", "", "bech32 address of the minter role holder")
	fs.StringVar(&keyFile, "key", "", "derive the caller address from a local key file")
	fs.StringVar(&creator, "creator", "", "bech32 address credited as the creator")
	fs.StringVar(&id, "id", "", "bundle identifier")
	fs.StringVar(&title, "title", "", "human readable title")
	fs.StringVar(&members, "members", "", "comma separated content ids")
	fs.StringVar(&mintPrice, "mint-price", "", "bundle mint price in lamports")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(stderr, "Error: unexpected positional arguments")
		return 1
	}
	actor, err := resolveActor(caller, keyFile)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if strings.TrimSpace(creator) == "" {
		creator = actor
	}
	if strings.TrimSpace(id) == "" {
		fmt.Fprintln(stderr, "Error: --id is required")
		return 1
	}
	memberIDs := splitMembers(members)
	if len(memberIDs) == 0 {
		fmt.Fprintln(stderr, "Error: --members is required")
		return 1
	}
	if strings.TrimSpace(mintPrice) == "" {
		fmt.Fprintln(stderr, "Error: --mint-price is required")
		return 1
	}
	params := map[string]interface{}{
		"caller":    actor,
		"creator":   strings.TrimSpace(creator),
		"id":        strings.TrimSpace(id),
		"title":     strings.TrimSpace(title),
		"members":   memberIDs,
		"mintPrice": strings.TrimSpace(mintPrice),
	}
	result, rpcErr, err := registryRPCCall("registry_createBundle", params, true)
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	writeRPCResult(stdout, result)
	return 0
}

func splitMembers(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func runRegistryLookup(method string, args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		fmt.Fprintln(stderr, "Error: an identifier argument is required")
		return 1
	}
	params := map[string]string{"id": strings.TrimSpace(args[0])}
	result, rpcErr, err := registryRPCCall(method, params, false)
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	writeRPCResult(stdout, result)
	return 0
}

func runRegistryUnit(args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		fmt.Fprintln(stderr, "Error: a unit id argument is required")
		return 1
	}
	params := map[string]string{"unitId": strings.TrimSpace(args[0])}
	result, rpcErr, err := registryRPCCall("registry_getUnit", params, false)
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	writeRPCResult(stdout, result)
	return 0
}

func runRegistryRental(args []string, stdout, stderr io.Writer) int {
	fs := newRegistryFlagSet("registry rental", stderr)
	var (
		contentID string
		renter    string
	)
	fs.StringVar(&contentID, "content", "", "content identifier")
	fs.StringVar(&renter, "renter", "", "bech32 address of the renter")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(stderr, "Error: unexpected positional arguments")
		return 1
	}
	if strings.TrimSpace(contentID) == "" {
		fmt.Fprintln(stderr, "Error: --content is required")
		return 1
	}
	if strings.TrimSpace(renter) == "" {
		fmt.Fprintln(stderr, "Error: --renter is required")
		return 1
	}
	params := map[string]string{
		"contentId": strings.TrimSpace(contentID),
		"renter":    strings.TrimSpace(renter),
	}
	result, rpcErr, err := registryRPCCall("registry_rentalStatus", params, false)
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	writeRPCResult(stdout, result)
	return 0
}

func handleRPCError(w io.Writer, err *rpcError) int {
	if err == nil {
		return 0
	}
	fmt.Fprintf(w, "RPC error %d: %s\n", err.Code, err.Message)
	return 1
}

func handleRPCCallError(w io.Writer, err error) int {
	if err == nil {
		return 0
	}
	fmt.Fprintf(w, "RPC call failed: %v\n", err)
	return 1
}

func writeRPCResult(w io.Writer, result json.RawMessage) {
	if len(result) == 0 {
		fmt.Fprintln(w, "null")
		return
	}
	if _, err := w.Write(result); err == nil {
		if len(result) == 0 || result[len(result)-1] != '\n' {
			fmt.Fprintln(w)
		}
	}
}
