package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	"curiochain/cmd/internal/passphrase"
	"curiochain/crypto"
)

const keystorePassphraseEnv = "CURIO_KEYSTORE_PASSPHRASE"

var rpcEndpoint = defaultRPCEndpoint() // Defaults to localhost, can be overridden via RPC_URL or --rpc flag
var rpcAuthToken = os.Getenv("CURIO_RPC_TOKEN")

var keystorePassphrase = passphrase.NewSource(keystorePassphraseEnv)

func main() {
	args := os.Args[1:]
	var err error
	rpcEndpoint = defaultRPCEndpoint()
	args, err = applyGlobalFlags(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if len(args) < 1 {
		printUsage()
		return
	}

	command := args[0]
	switch command {
	case "generate-key":
		generateKey(args[1:])
	case "balance":
		if len(args) < 2 {
			fmt.Println("Error: Please provide an address.")
			printUsage()
			return
		}
		getBalance(args[1])
	case "registry":
		code := runRegistryCommand(args[1:], os.Stdout, os.Stderr)
		if code != 0 {
			os.Exit(code)
		}
		return
	case "mint":
		code := runMintCommand(args[1:], os.Stdout, os.Stderr)
		if code != 0 {
			os.Exit(code)
		}
		return
	case "rent":
		code := runRentCommand(args[1:], os.Stdout, os.Stderr)
		if code != 0 {
			os.Exit(code)
		}
		return
	case "tick":
		code := runTickCommand(args[1:], os.Stdout, os.Stderr)
		if code != 0 {
			os.Exit(code)
		}
		return
	case "claim":
		code := runClaimCommand(args[1:], os.Stdout, os.Stderr)
		if code != 0 {
			os.Exit(code)
		}
		return
	case "rewards":
		code := runRewardsCommand(args[1:], os.Stdout, os.Stderr)
		if code != 0 {
			os.Exit(code)
		}
		return
	case "transfer-unit":
		code := runTransferUnitCommand(args[1:], os.Stdout, os.Stderr)
		if code != 0 {
			os.Exit(code)
		}
		return
	case "admin":
		code := runAdminCommand(args[1:], os.Stdout, os.Stderr)
		if code != 0 {
			os.Exit(code)
		}
		return
	case "events":
		code := runEventsCommand(args[1:], os.Stdout, os.Stderr)
		if code != 0 {
			os.Exit(code)
		}
		return
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
	}
}

func defaultRPCEndpoint() string {
	if v := strings.TrimSpace(os.Getenv("RPC_URL")); v != "" {
		return v
	}
	return "http://localhost:8545"
}

func applyGlobalFlags(args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--rpc" {
			if i+1 >= len(args) {
				return nil, fmt.Errorf("missing value for --rpc")
			}
			rpcEndpoint = args[i+1]
			i++
			continue
		}
		if strings.HasPrefix(arg, "--rpc=") {
			rpcEndpoint = strings.TrimPrefix(arg, "--rpc=")
			continue
		}
		out = append(out, arg)
	}
	return out, nil
}

func generateKey(args []string) {
	fs := flag.NewFlagSet("generate-key", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var keystorePath string
	fs.StringVar(&keystorePath, "keystore", "", "encrypt the key into a keystore file instead of writing wallet.key")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		panic(err)
	}

	if strings.TrimSpace(keystorePath) != "" {
		pass, err := keystorePassphrase.Get()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error resolving passphrase: %v\n", err)
			os.Exit(1)
		}
		if err := crypto.SaveToKeystore(keystorePath, key, pass); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write keystore %s: %v\n", keystorePath, err)
			os.Exit(1)
		}
		fmt.Printf("Generated new key and saved encrypted keystore to %s\n", keystorePath)
		fmt.Printf("Your public address is: %s\n", key.PubKey().Address().String())
		return
	}

	fileName := "wallet.key"
	if err := os.WriteFile(fileName, key.Bytes(), 0600); err != nil {
		panic(fmt.Sprintf("Failed to save key to %s: %v", fileName, err))
	}

	fmt.Printf("Generated new key and saved to %s\n", fileName)
	fmt.Printf("Your public address is: %s\n", key.PubKey().Address().String())
	fmt.Println("Store this file securely. The address is how the node attributes roles and payouts.")
}

func getBalance(addr string) {
	account, err := fetchAccount(addr)
	if err != nil {
		fmt.Printf("Error fetching balance: %v\n", err)
		return
	}

	fmt.Printf("State for: %s\n", account.Address)
	fmt.Printf("  Balance: %s lamports\n", formatLamports(account.Balance))
	fmt.Printf("  Nonce:   %d\n", account.Nonce)
}

// --- RPC HELPER FUNCTIONS ---

type balanceResponse struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
	Nonce   uint64 `json:"nonce"`
}

func fetchAccount(addr string) (*balanceResponse, error) {
	payload, _ := json.Marshal(map[string]interface{}{
		"id": 1, "method": "curio_getBalance", "params": []interface{}{map[string]string{"address": addr}},
	})

	resp, err := doRPCRequest(payload, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var rpcResp struct {
		Result balanceResponse `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("failed to decode response from node")
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("error from node: %s", rpcResp.Error.Message)
	}
	return &rpcResp.Result, nil
}

func doRPCRequest(payload []byte, requireAuth bool) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodPost, rpcEndpoint, bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if requireAuth {
		if rpcAuthToken == "" {
			return nil, fmt.Errorf("privileged RPC call requires CURIO_RPC_TOKEN to be set")
		}
		req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(rpcAuthToken))
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", rpcEndpoint, err)
	}
	return resp, nil
}

func loadPrivateKey(path string) (*crypto.PrivateKey, error) {
	keyBytes, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("key file %s not found. run ./curio-cli generate-key first", path)
		}
		return nil, fmt.Errorf("failed to read key file %s: %w", path, err)
	}
	if len(keyBytes) == 0 {
		return nil, fmt.Errorf("key file %s is empty. run ./curio-cli generate-key first", path)
	}
	if bytes.HasPrefix(bytes.TrimSpace(keyBytes), []byte("{")) {
		// Encrypted keystore files are JSON; raw wallet.key files are not.
		pass, passErr := keystorePassphrase.Get()
		if passErr != nil {
			return nil, passErr
		}
		return crypto.LoadFromKeystore(path, pass)
	}
	privKey, err := crypto.PrivateKeyFromBytes(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key in %s: %w", path, err)
	}
	return privKey, nil
}

// resolveActor turns either an explicit bech32 address or a local key file into
// the address the node should treat as the caller. Exactly one of the two must
// be supplied.
func resolveActor(addr, keyFile string) (string, error) {
	trimmedAddr := strings.TrimSpace(addr)
	trimmedKey := strings.TrimSpace(keyFile)
	switch {
	case trimmedAddr != "" && trimmedKey != "":
		return "", fmt.Errorf("provide either an address or a key file, not both")
	case trimmedAddr != "":
		return trimmedAddr, nil
	case trimmedKey != "":
		privKey, err := loadPrivateKey(trimmedKey)
		if err != nil {
			return "", err
		}
		return privKey.PubKey().Address().String(), nil
	default:
		return "", fmt.Errorf("address or key file required")
	}
}

func callModuleRPC(method string, param interface{}, requireAuth bool) (json.RawMessage, *rpcError, error) {
	payload := map[string]interface{}{"id": 1, "method": method}
	if param != nil {
		payload["params"] = []interface{}{param}
	} else {
		payload["params"] = []interface{}{}
	}
	body, _ := json.Marshal(payload)
	resp, err := doRPCRequest(body, requireAuth)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	var rpcResp struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, nil, fmt.Errorf("failed to decode response from node")
	}
	return rpcResp.Result, rpcResp.Error, nil
}

func printJSONResult(result json.RawMessage) {
	if len(result) == 0 {
		fmt.Println("No result.")
		return
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, result, "", "  "); err != nil {
		fmt.Println(string(result))
		return
	}
	fmt.Println(buf.String())
}

func printUsage() {
	fmt.Println("Usage: curio-cli <command> [arguments]")
	fmt.Println()
	fmt.Println("Write commands talk to a privileged node endpoint; export CURIO_RPC_TOKEN first.")
	fmt.Println("The node address defaults to http://localhost:8545 (override with RPC_URL or --rpc).")
	fmt.Println("Commands:")
	fmt.Println("  generate-key [--keystore <path>]  - Generates a new key (wallet.key or encrypted keystore)")
	fmt.Println("  balance <address>                 - Shows the lamport balance and nonce of an address")
	fmt.Println("  registry                          - Catalogue subcommands (publish, bundles, lookups)")
	fmt.Println("  mint                              - Mints a unit and routes the deposit splits")
	fmt.Println("  rent                              - Opens a rental window on a content entry")
	fmt.Println("  tick                              - Patron and ecosystem contribution subcommands")
	fmt.Println("  claim                             - Settles pending rewards for a unit or creator")
	fmt.Println("  rewards                           - Pool, treasury, epoch and settlement queries")
	fmt.Println("  transfer-unit                     - Moves a unit to a new owner")
	fmt.Println("  admin                             - Treasury funding and role management")
	fmt.Println("  events                            - Tails recent ledger events")
}
