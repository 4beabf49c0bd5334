package main

import (
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

var routerRPCCall = callModuleRPC

func runMintCommand(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("mint", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		caller    string
		keyFile   string
		payer     string
		unitID    string
		contentID string
		bundleID  string
		rarity    string
		roll      string
	)
	fs.StringVar(&caller, "caller", "", "bech32 address of the minter role holder")
	fs.StringVar(&keyFile, "key", "", "derive the caller address from a local key file")
	fs.StringVar(&payer, "payer", "", "bech32 address paying the mint price")
	fs.StringVar(&unitID, "unit", "", "identifier for the freshly minted unit")
	fs.StringVar(&contentID, "content", "", "mint against this content entry")
	fs.StringVar(&bundleID, "bundle", "", "mint against this bundle instead")
	fs.StringVar(&rarity, "rarity", "", "explicit rarity tier (common, rare, epic, legendary)")
	fs.StringVar(&roll, "roll", "", "32-bit randomness roll mapped through the odds table")
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
	if strings.TrimSpace(payer) == "" {
		fmt.Fprintln(stderr, "Error: --payer is required")
		return 1
	}
	if strings.TrimSpace(unitID) == "" {
		fmt.Fprintln(stderr, "Error: --unit is required")
		return 1
	}
	hasContent := strings.TrimSpace(contentID) != ""
	hasBundle := strings.TrimSpace(bundleID) != ""
	if hasContent == hasBundle {
		fmt.Fprintln(stderr, "Error: exactly one of --content or --bundle is required")
		return 1
	}
	params := map[string]interface{}{
		"caller": actor,
		"payer":  strings.TrimSpace(payer),
		"unitId": strings.TrimSpace(unitID),
	}
	if hasContent {
		params["contentId"] = strings.TrimSpace(contentID)
	} else {
		params["bundleId"] = strings.TrimSpace(bundleID)
	}
	trimmedRarity := strings.TrimSpace(rarity)
	trimmedRoll := strings.TrimSpace(roll)
	switch {
	case trimmedRarity != "" && trimmedRoll != "":
		fmt.Fprintln(stderr, "Error: --rarity and --roll are mutually exclusive")
		return 1
	case trimmedRarity != "":
		params["rarity"] = trimmedRarity
	case trimmedRoll != "":
		value, parseErr := strconv.ParseUint(trimmedRoll, 10, 32)
		if parseErr != nil {
			fmt.Fprintf(stderr, "Error: invalid --roll: %v\n", parseErr)
			return 1
		}
		params["roll"] = uint32(value)
	default:
		fmt.Fprintln(stderr, "Error: --rarity or --roll is required")
		return 1
	}
	result, rpcErr, err := routerRPCCall("router_mint", params, true)
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	writeRPCResult(stdout, result)
	return 0
}

// parseRentDuration accepts either plain seconds or a Go duration string such
// as "72h".
func parseRentDuration(value string) (int64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, fmt.Errorf("--duration is required")
	}
	if seconds, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return seconds, nil
	}
	duration, err := time.ParseDuration(trimmed)
	if err != nil {
		return 0, fmt.Errorf("invalid --duration: %w", err)
	}
	return int64(duration / time.Second), nil
}

func runRentCommand(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("rent", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		caller    string
		keyFile   string
		renter    string
		contentID string
		duration  string
	)
	fs.StringVar(&caller, "caller", "", "bech32 address of the minter role holder")
	fs.StringVar(&keyFile, "key", "", "derive the caller address from a local key file")
	fs.StringVar(&renter, "renter", "", "bech32 address paying the rental fee")
	fs.StringVar(&contentID, "content", "", "content entry to rent")
	fs.StringVar(&duration, "duration", "", "rental window, in seconds or as a duration like 72h")
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
	if strings.TrimSpace(renter) == "" {
		fmt.Fprintln(stderr, "Error: --renter is required")
		return 1
	}
	if strings.TrimSpace(contentID) == "" {
		fmt.Fprintln(stderr, "Error: --content is required")
		return 1
	}
	seconds, err := parseRentDuration(duration)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if seconds <= 0 {
		fmt.Fprintln(stderr, "Error: --duration must be positive")
		return 1
	}
	params := map[string]interface{}{
		"caller":          actor,
		"renter":          strings.TrimSpace(renter),
		"contentId":       strings.TrimSpace(contentID),
		"durationSeconds": seconds,
	}
	result, rpcErr, err := routerRPCCall("router_rent", params, true)
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	writeRPCResult(stdout, result)
	return 0
}

func runTickCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, tickUsage())
		return 1
	}
	switch args[0] {
	case "patron":
		return runTick("router_patronTick", true, args[1:], stdout, stderr)
	case "ecosystem":
		return runTick("router_ecosystemTick", false, args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown tick subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, tickUsage())
		return 1
	}
}

func tickUsage() string {
	return strings.TrimSpace(`Usage:
  curio-cli tick <command> [flags]

Commands:
  patron     Credit a patron contribution to a creator's supporters
  ecosystem  Credit an ecosystem contribution to the global treasury
`)
}

func runTick(method string, wantCreator bool, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet(method, flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		caller  string
		keyFile string
		payer   string
		creator string
		amount  string
	)
	fs.StringVar(&caller, "caller", "", "bech32 address of the minter role holder")
	fs.StringVar(&keyFile, "key", "", "derive the caller address from a local key file")
	fs.StringVar(&payer, "payer", "", "bech32 address funding the contribution")
	if wantCreator {
		fs.StringVar(&creator, "creator", "", "creator whose patron pool receives the deposit")
	}
	fs.StringVar(&amount, "amount", "", "contribution in lamports")
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
	if strings.TrimSpace(payer) == "" {
		fmt.Fprintln(stderr, "Error: --payer is required")
		return 1
	}
	if wantCreator && strings.TrimSpace(creator) == "" {
		fmt.Fprintln(stderr, "Error: --creator is required")
		return 1
	}
	if strings.TrimSpace(amount) == "" {
		fmt.Fprintln(stderr, "Error: --amount is required")
		return 1
	}
	params := map[string]interface{}{
		"caller": actor,
		"payer":  strings.TrimSpace(payer),
		"amount": strings.TrimSpace(amount),
	}
	if wantCreator {
		params["creator"] = strings.TrimSpace(creator)
	}
	result, rpcErr, err := routerRPCCall(method, params, true)
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	writeRPCResult(stdout, result)
	return 0
}
