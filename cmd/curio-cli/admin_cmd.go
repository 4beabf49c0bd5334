package main

import (
	"flag"
	"fmt"
	"io"
	"strings"
)

var nodeRPCCall = callModuleRPC

func runTransferUnitCommand(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("transfer-unit", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		caller   string
		keyFile  string
		unitID   string
		newOwner string
	)
	fs.StringVar(&caller, "caller", "", "bech32 address of the current owner")
	fs.StringVar(&keyFile, "key", "", "derive the owner address from a local key file")
	fs.StringVar(&unitID, "unit", "", "unit to transfer")
	fs.StringVar(&newOwner, "to", "", "bech32 address of the new owner")
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
	if strings.TrimSpace(unitID) == "" {
		fmt.Fprintln(stderr, "Error: --unit is required")
		return 1
	}
	if strings.TrimSpace(newOwner) == "" {
		fmt.Fprintln(stderr, "Error: --to is required")
		return 1
	}
	params := map[string]string{
		"caller":   actor,
		"unitId":   strings.TrimSpace(unitID),
		"newOwner": strings.TrimSpace(newOwner),
	}
	result, rpcErr, err := nodeRPCCall("curio_transferUnit", params, true)
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	writeRPCResult(stdout, result)
	return 0
}

func runAdminCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, adminUsage())
		return 1
	}
	switch args[0] {
	case "fund":
		return runAdminFund(args[1:], stdout, stderr)
	case "grant-role":
		return runAdminRoleChange("curio_grantRole", args[1:], stdout, stderr)
	case "revoke-role":
		return runAdminRoleChange("curio_revokeRole", args[1:], stdout, stderr)
	case "role-members":
		return runAdminRoleMembers(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown admin subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, adminUsage())
		return 1
	}
}

func adminUsage() string {
	return strings.TrimSpace(`Usage:
  curio-cli admin <command> [flags]

Commands:
  fund          Move lamports from the platform account to a target (treasurer role)
  grant-role    Grant a role to an address (admin role)
  revoke-role   Revoke a role from an address (admin role)
  role-members  List the addresses holding a role
`)
}

func runAdminFund(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("admin fund", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		caller  string
		keyFile string
		target  string
		amount  string
	)
	fs.StringVar(&caller, "caller", "", "bech32 address of the treasurer role holder")
	fs.StringVar(&keyFile, "key", "", "derive the caller address from a local key file")
	fs.StringVar(&target, "target", "", "bech32 address receiving the funds")
	fs.StringVar(&amount, "amount", "", "amount in lamports")
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
	if strings.TrimSpace(target) == "" {
		fmt.Fprintln(stderr, "Error: --target is required")
		return 1
	}
	if strings.TrimSpace(amount) == "" {
		fmt.Fprintln(stderr, "Error: --amount is required")
		return 1
	}
	params := map[string]string{
		"caller": actor,
		"target": strings.TrimSpace(target),
		"amount": strings.TrimSpace(amount),
	}
	result, rpcErr, err := nodeRPCCall("curio_fundAccount", params, true)
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	writeRPCResult(stdout, result)
	return 0
}

func runAdminRoleChange(method string, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet(method, flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		caller  string
		keyFile string
		role    string
		member  string
	)
	fs.StringVar(&caller, "caller", "", "bech32 address of the admin role holder")
	fs.StringVar(&keyFile, "key", "", "derive the caller address from a local key file")
	fs.StringVar(&role, "role", "", "role name, e.g. ROLE_MINTER")
	fs.StringVar(&member, "member", "", "bech32 address gaining or losing the role")
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
	if strings.TrimSpace(role) == "" {
		fmt.Fprintln(stderr, "Error: --role is required")
		return 1
	}
	if strings.TrimSpace(member) == "" {
		fmt.Fprintln(stderr, "Error: --member is required")
		return 1
	}
	params := map[string]string{
		"caller": actor,
		"role":   strings.TrimSpace(role),
		"member": strings.TrimSpace(member),
	}
	result, rpcErr, err := nodeRPCCall(method, params, true)
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	writeRPCResult(stdout, result)
	return 0
}

func runAdminRoleMembers(args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		fmt.Fprintln(stderr, "Error: a role name argument is required")
		return 1
	}
	params := map[string]string{"role": strings.TrimSpace(args[0])}
	result, rpcErr, err := nodeRPCCall("curio_roleMembers", params, false)
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	writeRPCResult(stdout, result)
	return 0
}

func runEventsCommand(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("events", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		eventType string
		limit     int
	)
	fs.StringVar(&eventType, "type", "", "only events of this type, e.g. registry.unit.minted")
	fs.IntVar(&limit, "limit", 0, "return at most this many events, newest last")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(stderr, "Error: unexpected positional arguments")
		return 1
	}
	params := map[string]interface{}{}
	if strings.TrimSpace(eventType) != "" {
		params["type"] = strings.TrimSpace(eventType)
	}
	if limit > 0 {
		params["limit"] = limit
	}
	var param interface{}
	if len(params) > 0 {
		param = params
	}
	result, rpcErr, err := nodeRPCCall("curio_recentEvents", param, false)
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	writeRPCResult(stdout, result)
	return 0
}
