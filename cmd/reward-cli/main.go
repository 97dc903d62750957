package main

import (
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	keystorePassEnv = "DG_KEYSTORE_PASS"
	rpcTokenEnv     = "DG_RPC_TOKEN"
)

var (
	rpcEndpoint  = defaultRPCEndpoint()
	rpcAuthToken = strings.TrimSpace(os.Getenv(rpcTokenEnv))
)

func main() {
	args, err := applyGlobalFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(run(args, os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, usage())
		return 1
	}
	switch args[0] {
	case "keygen":
		return runKeygen(args[1:], stdout, stderr)
	case "address":
		return runAddress(args[1:], stdout, stderr)
	case "create-mint":
		return runCreateMint(args[1:], stdout, stderr)
	case "create-account":
		return runCreateAccount(args[1:], stdout, stderr)
	case "set-mint-authority":
		return runSetMintAuthority(args[1:], stdout, stderr)
	case "init":
		return runInitialize(args[1:], stdout, stderr)
	case "reward":
		return runReward(args[1:], stdout, stderr)
	case "adjust-reward":
		return runAdjustReward(args[1:], stdout, stderr)
	case "ledger":
		return runLookup("ledger", "reward_getLedger", args[1:], stdout, stderr)
	case "account":
		return runLookup("account", "token_getAccount", args[1:], stdout, stderr)
	case "mint":
		return runLookup("mint", "token_getMint", args[1:], stdout, stderr)
	case "authority":
		return runAuthority(args[1:], stdout, stderr)
	case "schedule":
		return runSchedule(args[1:], stdout, stderr)
	case "history":
		return runHistory(args[1:], stdout, stderr)
	case "leaderboard":
		return runLeaderboard(args[1:], stdout, stderr)
	case "help", "-h", "--help":
		fmt.Fprintln(stdout, usage())
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		fmt.Fprintln(stderr, usage())
		return 1
	}
}

func defaultRPCEndpoint() string {
	if v := strings.TrimSpace(os.Getenv("RPC_URL")); v != "" {
		return v
	}
	return "http://localhost:8899"
}

func applyGlobalFlags(args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--rpc" || arg == "--token":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("missing value for %s", arg)
			}
			if arg == "--rpc" {
				rpcEndpoint = args[i+1]
			} else {
				rpcAuthToken = args[i+1]
			}
			i++
		case strings.HasPrefix(arg, "--rpc="):
			rpcEndpoint = strings.TrimPrefix(arg, "--rpc=")
		case strings.HasPrefix(arg, "--token="):
			rpcAuthToken = strings.TrimPrefix(arg, "--token=")
		default:
			out = append(out, arg)
		}
	}
	return out, nil
}

func usage() string {
	return strings.TrimSpace(`Usage:
  reward-cli [--rpc URL] [--token JWT] <command> [flags]

Keys:
  keygen              Create an encrypted keystore (--out)
  address             Print the identity of a keystore (--key)

Transactions (signed with --key; passphrase from ` + keystorePassEnv + ` or the terminal):
  create-mint         Create a mint (--mint keystore, --decimals, --authority)
  create-account      Open a token account (--account keystore, --mint, --owner)
  set-mint-authority  Hand mint authority to an identity or "game" (--mint, --authority)
  init                Initialize a reward ledger (--ledger keystore, --mint, --authority)
  reward              Pay the current reward (--ledger, --mint, --account)
  adjust-reward       Lower the current reward (--ledger, --reward)

Queries:
  ledger | account | mint  Fetch an account by identity (--id)
  authority                Show the derived game authority
  schedule                 Project the emission schedule (--ledger, --epochs)
  history                  Payouts to a token account (--recipient, --limit)
  leaderboard              Top recipients of a ledger (--ledger, --limit)`)
}
