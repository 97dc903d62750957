package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"dgenerate/config"
	"dgenerate/core/runtime"
	"dgenerate/crypto"
	"dgenerate/index"
	"dgenerate/native/reward"
	"dgenerate/storage"
)

const defaultConfig = "./config.toml"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 1
	}
	var err error
	switch args[0] {
	case "inspect-ledger":
		err = runInspectLedger(args[1:], stdout, stderr)
	case "list-ledgers":
		err = runListLedgers(args[1:], stdout, stderr)
	case "schedule":
		err = runSchedule(args[1:], stdout, stderr)
	case "export-history":
		err = runExportHistory(args[1:], stdout, stderr)
	default:
		usage(stderr)
		return 1
	}
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func usage(w io.Writer) {
	fmt.Fprintln(w, strings.TrimSpace(`Usage: rewardctl <command> [flags]

Commands:
  inspect-ledger  Print a ledger straight from the state database (--id)
  list-ledgers    List every initialized ledger
  schedule        Project the emission schedule of the configured params or a ledger
  export-history  Write indexed payouts to a parquet file (--out, --ledger)

The node must be stopped before commands that open the state database.`))
}

func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return config.Load(path)
}

// openRuntime opens the state read path over the node's LevelDB directory.
func openRuntime(cfg *config.Config) (*runtime.Runtime, func(), error) {
	if _, err := os.Stat(cfg.StatePath()); err != nil {
		return nil, nil, fmt.Errorf("state database %s: %w", cfg.StatePath(), err)
	}
	db, err := storage.NewLevelDB(cfg.StatePath())
	if err != nil {
		return nil, nil, err
	}
	quiet := slog.New(slog.NewJSONHandler(io.Discard, nil))
	rt, err := runtime.New(db, cfg.Reward, runtime.Options{Logger: quiet})
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return rt, db.Close, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type ledgerView struct {
	ID                    crypto.Identity `json:"id"`
	*reward.Ledger
	RemainingUntilHalving uint64 `json:"remainingUntilHalving"`
	StateHeight           uint64 `json:"stateHeight"`
}

func runInspectLedger(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("inspect-ledger", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", defaultConfig, "path to the node configuration")
	rawID := fs.String("id", "", "ledger identity")
	if err := fs.Parse(args); err != nil {
		return err
	}
	id, err := crypto.ParseIdentity(*rawID)
	if err != nil {
		return fmt.Errorf("--id: %w", err)
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	rt, closeDB, err := openRuntime(cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	ledger, err := rt.Ledger(id)
	if err != nil {
		return err
	}
	return writeJSON(stdout, ledgerView{
		ID:                    id,
		Ledger:                ledger,
		RemainingUntilHalving: ledger.RemainingUntilHalving(),
		StateHeight:           rt.Height(),
	})
}

func runListLedgers(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("list-ledgers", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", defaultConfig, "path to the node configuration")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	rt, closeDB, err := openRuntime(cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	ids, err := rt.Ledgers()
	if err != nil {
		return err
	}
	for _, id := range ids {
		fmt.Fprintln(stdout, id)
	}
	return nil
}

type epochView struct {
	Index      int    `json:"index"`
	Reward     uint64 `json:"reward"`
	Payouts    uint64 `json:"payouts"`
	Emitted    string `json:"emitted"`
	Cumulative string `json:"cumulative"`
}

func runSchedule(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("schedule", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", defaultConfig, "path to the node configuration")
	rawID := fs.String("ledger", "", "project from this ledger's state instead of the configured params")
	epochs := fs.Int("epochs", 0, "number of epochs (0 projects until exhaustion)")
	initial := fs.Uint64("initial-reward", 0, "override the initial reward")
	threshold := fs.Uint64("halving-threshold", 0, "override the halving threshold")
	if err := fs.Parse(args); err != nil {
		return err
	}

	params := reward.DefaultParams()
	if cfg, err := loadConfig(*configPath); err == nil {
		params = cfg.Reward
	}
	if *initial != 0 {
		params.InitialReward = *initial
	}
	if *threshold != 0 {
		params.HalvingThreshold = *threshold
	}
	if err := params.Validate(); err != nil {
		return err
	}

	var projection *reward.Projection
	if strings.TrimSpace(*rawID) != "" {
		id, err := crypto.ParseIdentity(*rawID)
		if err != nil {
			return fmt.Errorf("--ledger: %w", err)
		}
		cfg, err := loadConfig(*configPath)
		if err != nil {
			return err
		}
		rt, closeDB, err := openRuntime(cfg)
		if err != nil {
			return err
		}
		defer closeDB()
		ledger, err := rt.Ledger(id)
		if err != nil {
			return err
		}
		projection = reward.Project(ledger, *epochs)
	} else {
		projection = params.Schedule(*epochs)
	}

	views := make([]epochView, 0, len(projection.Epochs))
	for _, e := range projection.Epochs {
		views = append(views, epochView{
			Index:      e.Index,
			Reward:     e.Reward,
			Payouts:    e.Payouts,
			Emitted:    e.Emitted.Dec(),
			Cumulative: e.Cumulative.Dec(),
		})
	}
	return writeJSON(stdout, map[string]interface{}{
		"epochs":    views,
		"total":     projection.Total.Dec(),
		"exhausted": projection.Exhausted,
		"overflows": projection.Overflows,
	})
}

func runExportHistory(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("export-history", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", defaultConfig, "path to the node configuration")
	dsn := fs.String("dsn", "", "index DSN (defaults to Index.DSN from the config)")
	out := fs.String("out", "reward-history.parquet", "output parquet file")
	rawLedger := fs.String("ledger", "", "only export payouts of this ledger")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*dsn) == "" {
		cfg, err := loadConfig(*configPath)
		if err != nil {
			return err
		}
		*dsn = cfg.Index.DSN
	}
	if strings.TrimSpace(*dsn) == "" {
		return errors.New("no index configured; pass --dsn or set Index.DSN")
	}
	var ledger crypto.Identity
	if strings.TrimSpace(*rawLedger) != "" {
		id, err := crypto.ParseIdentity(*rawLedger)
		if err != nil {
			return fmt.Errorf("--ledger: %w", err)
		}
		ledger = id
	}

	store, err := index.Open(*dsn, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := store.ExportParquet(context.Background(), *out, ledger)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "exported %d payouts to %s\n", n, *out)
	return nil
}
