package main

import (
	"flag"
	"fmt"
	"io"
	"strings"
)

var rewardsRPCCall = callModuleRPC

func runClaimCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, claimUsage())
		return 1
	}
	switch args[0] {
	case "content":
		return runClaimUnit("rewards_claimContent", args[1:], stdout, stderr)
	case "bundle":
		return runClaimUnit("rewards_claimBundle", args[1:], stdout, stderr)
	case "patron":
		return runClaimUnit("rewards_claimPatron", args[1:], stdout, stderr)
	case "creator":
		return runClaimCreator(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown claim subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, claimUsage())
		return 1
	}
}

func claimUsage() string {
	return strings.TrimSpace(`Usage:
  curio-cli claim <command> [arguments]

Commands:
  content <unitId>  Settle the holder rewards a unit accrued from sibling mints
  bundle <unitId>   Settle the bundle-level rewards of a bundle unit
  patron <unitId>   Settle the patron rewards routed to a unit
  creator           Settle a creator's share of the distribution pool
`)
}

func runClaimUnit(method string, args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		fmt.Fprintln(stderr, "Error: a unit id argument is required")
		return 1
	}
	params := map[string]string{"unitId": strings.TrimSpace(args[0])}
	result, rpcErr, err := rewardsRPCCall(method, params, true)
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	writeRPCResult(stdout, result)
	return 0
}

func runClaimCreator(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("claim creator", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		creator string
		keyFile string
	)
	fs.StringVar(&creator, "creator", "", "bech32 address of the creator")
	fs.StringVar(&keyFile, "key", "", "derive the creator address from a local key file")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(stderr, "Error: unexpected positional arguments")
		return 1
	}
	actor, err := resolveActor(creator, keyFile)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	params := map[string]string{"creator": actor}
	result, rpcErr, err := rewardsRPCCall("rewards_claimCreator", params, true)
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	writeRPCResult(stdout, result)
	return 0
}

func runRewardsCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, rewardsUsage())
		return 1
	}
	switch args[0] {
	case "pool":
		return runRewardsPool(args[1:], stdout, stderr)
	case "creator":
		return runRewardsCreator(args[1:], stdout, stderr)
	case "treasury":
		return runRewardsTreasury(args[1:], stdout, stderr)
	case "epoch":
		return runRewardsEpoch(args[1:], stdout, stderr)
	case "set-epoch":
		return runRewardsSetEpoch(args[1:], stdout, stderr)
	case "settlements":
		return runRewardsSettlements(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown rewards subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, rewardsUsage())
		return 1
	}
}

func rewardsUsage() string {
	return strings.TrimSpace(`Usage:
  curio-cli rewards <command> [arguments]

Commands:
  pool <poolId>        Show a reward pool's accumulator and balances
  creator <address>    Show a creator's distribution stats and pending payout
  treasury <id>        Show an epoch treasury and when its next sweep is due
  epoch                Show the configured epoch duration
  set-epoch            Change the epoch duration (admin role)
  settlements          List recorded epoch settlements
`)
}

func runRewardsPool(args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		fmt.Fprintln(stderr, "Error: a pool id argument is required")
		return 1
	}
	params := map[string]string{"poolId": strings.TrimSpace(args[0])}
	result, rpcErr, err := rewardsRPCCall("rewards_poolInfo", params, false)
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	writeRPCResult(stdout, result)
	return 0
}

func runRewardsCreator(args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		fmt.Fprintln(stderr, "Error: a creator address argument is required")
		return 1
	}
	params := map[string]string{"creator": strings.TrimSpace(args[0])}
	result, rpcErr, err := rewardsRPCCall("rewards_creatorInfo", params, false)
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	writeRPCResult(stdout, result)
	return 0
}

func runRewardsTreasury(args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		fmt.Fprintln(stderr, "Error: a treasury id argument is required")
		return 1
	}
	params := map[string]string{"treasuryId": strings.TrimSpace(args[0])}
	result, rpcErr, err := rewardsRPCCall("rewards_treasuryInfo", params, false)
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	writeRPCResult(stdout, result)
	return 0
}

func runRewardsEpoch(args []string, stdout, stderr io.Writer) int {
	if len(args) > 0 {
		fmt.Fprintln(stderr, "Error: unexpected positional arguments")
		return 1
	}
	result, rpcErr, err := rewardsRPCCall("rewards_epochInfo", nil, false)
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	writeRPCResult(stdout, result)
	return 0
}

func runRewardsSetEpoch(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("rewards set-epoch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		caller  string
		keyFile string
		seconds int64
	)
	fs.StringVar(&caller, "caller", "", "bech32 address of the admin role holder")
	fs.StringVar(&keyFile, "key", "", "derive the caller address from a local key file")
	fs.Int64Var(&seconds, "seconds", 0, "new epoch duration in seconds")
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
	if seconds <= 0 {
		fmt.Fprintln(stderr, "Error: --seconds must be positive")
		return 1
	}
	params := map[string]interface{}{"caller": actor, "seconds": seconds}
	result, rpcErr, err := rewardsRPCCall("rewards_setEpochDuration", params, true)
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	writeRPCResult(stdout, result)
	return 0
}

func runRewardsSettlements(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("rewards settlements", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		treasury string
		limit    int
	)
	fs.StringVar(&treasury, "treasury", "", "only settlements swept from this treasury")
	fs.IntVar(&limit, "limit", 0, "return at most this many entries, newest last")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(stderr, "Error: unexpected positional arguments")
		return 1
	}
	params := map[string]interface{}{}
	if strings.TrimSpace(treasury) != "" {
		params["treasury"] = strings.TrimSpace(treasury)
	}
	if limit > 0 {
		params["limit"] = limit
	}
	var param interface{}
	if len(params) > 0 {
		param = params
	}
	result, rpcErr, err := rewardsRPCCall("rewards_settlements", param, false)
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	writeRPCResult(stdout, result)
	return 0
}

// formatLamports renders a decimal lamport string with thousands separators so
// operators can eyeball balances. Non-numeric input passes through untouched.
func formatLamports(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "0"
	}
	for _, r := range trimmed {
		if r < '0' || r > '9' {
			return trimmed
		}
	}
	var b strings.Builder
	for i, r := range trimmed {
		if i > 0 && (len(trimmed)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String()
}
