package main

import (
	"flag"
	"fmt"
	"io"
)

func runLookup(name, method string, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	var raw string
	fs.StringVar(&raw, "id", "", name+" identity")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if raw == "" && fs.NArg() == 1 {
		raw = fs.Arg(0)
	}
	id, err := parseIdentityFlag("id", raw, true)
	if err != nil {
		return fail(stderr, err)
	}
	return invoke(stdout, stderr, method, []interface{}{id.String()}, false)
}

func runAuthority(args []string, stdout, stderr io.Writer) int {
	if len(args) > 0 {
		fmt.Fprintln(stderr, "Error: authority takes no arguments")
		return 1
	}
	return invoke(stdout, stderr, "reward_getAuthority", nil, false)
}

func runSchedule(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("schedule", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var ledger string
	var epochs int
	fs.StringVar(&ledger, "ledger", "", "project from this ledger instead of the configured defaults")
	fs.IntVar(&epochs, "epochs", 0, "number of epochs to project (0 projects all)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	param := map[string]interface{}{}
	if epochs > 0 {
		param["maxEpochs"] = epochs
	}
	if ledger != "" {
		id, err := parseIdentityFlag("ledger", ledger, true)
		if err != nil {
			return fail(stderr, err)
		}
		param["ledger"] = id
	}
	return invoke(stdout, stderr, "reward_getSchedule", []interface{}{param}, false)
}

func runHistory(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var recipient string
	var limit int
	fs.StringVar(&recipient, "recipient", "", "recipient token account")
	fs.IntVar(&limit, "limit", 20, "maximum number of payouts")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	id, err := parseIdentityFlag("recipient", recipient, true)
	if err != nil {
		return fail(stderr, err)
	}
	return invoke(stdout, stderr, "reward_getHistory",
		[]interface{}{map[string]interface{}{"recipient": id, "limit": limit}}, false)
}

func runLeaderboard(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("leaderboard", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var ledger string
	var limit int
	fs.StringVar(&ledger, "ledger", "", "ledger identity")
	fs.IntVar(&limit, "limit", 10, "number of entries")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	id, err := parseIdentityFlag("ledger", ledger, true)
	if err != nil {
		return fail(stderr, err)
	}
	return invoke(stdout, stderr, "reward_getLeaderboard",
		[]interface{}{map[string]interface{}{"ledger": id, "limit": limit}}, false)
}
