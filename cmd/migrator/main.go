package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"schemachain/internal/config"
	"schemachain/internal/db"
	"schemachain/internal/engine"
	"schemachain/internal/httpapi"
	"schemachain/internal/logging"
	"schemachain/internal/migration"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}
	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "validate":
		if err := validateCmd(args); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	case "list":
		if err := listCmd(args); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	case "status":
		if err := statusCmd(args); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	case "migrate":
		if err := migrateCmd(args); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	case "serve":
		if err := serveCmd(args); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command %s\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`schemachain commands:
  validate  - load the migration set and check chain integrity
  list      - print migration names in chain order
  status    - show applied and pending migrations for the target db
  migrate   - move the target db forward or backward along the chain
  serve     - launch the JSON API

Configuration comes from SCHEMACHAIN_* environment variables; run
"<cmd> -h" for command flags.`)
}

func validateCmd(args []string) error {
	fs := flagSet("validate")
	path := fs.String("migrations", os.Getenv("SCHEMACHAIN_MIGRATIONS_PATH"), "path to the migration set JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	set, err := loadSet(*path)
	if err != nil {
		return err
	}
	fmt.Printf("ok: %d migrations, latest %s\n", len(set.Migrations), orNone(set.Latest))
	return nil
}

func listCmd(args []string) error {
	fs := flagSet("list")
	path := fs.String("migrations", os.Getenv("SCHEMACHAIN_MIGRATIONS_PATH"), "path to the migration set JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	set, err := loadSet(*path)
	if err != nil {
		return err
	}
	if len(set.Migrations) == 0 {
		fmt.Println("no migrations")
		return nil
	}
	for _, name := range set.Names() {
		marker := " "
		if name == set.Latest {
			marker = "*"
		}
		rec := set.Migrations[name]
		fmt.Printf("%s %s (from %s, backends %s)\n", marker, name, orNone(rec.From), joinBackends(rec))
	}
	return nil
}

func statusCmd(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	fs := flagSet("status")
	if err := fs.Parse(args); err != nil {
		return err
	}
	logger := logging.NewLogger(cfg.LogLevel)

	set, err := loadSet(cfg.MigrationsPath)
	if err != nil {
		return err
	}
	adapter, err := db.Open(cfg.Backend, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer adapter.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	eng := engine.New(set, cfg.LedgerTable, logger)
	st, err := eng.Status(ctx, adapter)
	if err != nil {
		return err
	}
	fmt.Printf("backend:  %s\nposition: %s\n", st.Backend, orNone(st.Position))
	fmt.Println("applied:")
	printNames(st.Applied)
	fmt.Println("pending:")
	printNames(st.Pending)
	return nil
}

func migrateCmd(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	fs := flagSet("migrate")
	target := fs.String("to", "", "target migration name (default: latest)")
	approve := fs.Bool("approve", false, "skip approval prompt")
	if err := fs.Parse(args); err != nil {
		return err
	}
	logger := logging.NewLogger(cfg.LogLevel)

	set, err := loadSet(cfg.MigrationsPath)
	if err != nil {
		return err
	}
	adapter, err := db.Open(cfg.Backend, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer adapter.Close()

	targetName := *target
	if targetName == "" {
		latest, err := set.LatestRecord()
		if err != nil {
			return err
		}
		targetName = latest.Name
	}
	fmt.Printf("About to migrate %s database to %s\n", cfg.Backend, targetName)
	if !*approve {
		if ok, err := promptYes("Type YES to proceed: "); err != nil {
			return err
		} else if !ok {
			return fmt.Errorf("aborted by user")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	eng := engine.New(set, cfg.LedgerTable, logger)
	result, err := eng.Migrate(ctx, adapter, targetName)
	if result != nil {
		for _, step := range result.Steps {
			fmt.Printf("  %s %s\n", step.Direction, step.Name)
		}
	}
	if err != nil {
		return err
	}
	if len(result.Steps) == 0 {
		fmt.Println("Nothing to do.")
		return nil
	}
	fmt.Printf("Database is now at %s.\n", result.Target)
	return nil
}

func serveCmd(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	fs := flagSet("serve")
	addr := fs.String("addr", cfg.HTTPAddress, "listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg.HTTPAddress = *addr
	logger := logging.NewLogger(cfg.LogLevel)

	set, err := loadSet(cfg.MigrationsPath)
	if err != nil {
		return err
	}
	adapter, err := db.Open(cfg.Backend, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer adapter.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng := engine.New(set, cfg.LedgerTable, logger)
	srv := httpapi.New(cfg, logger, eng, adapter)
	return srv.Start(ctx)
}

func loadSet(path string) (*migration.Set, error) {
	if path == "" {
		return nil, fmt.Errorf("migrations path is required (SCHEMACHAIN_MIGRATIONS_PATH or -migrations)")
	}
	return migration.LoadSet(migration.FileSource(path))
}

func printNames(names []string) {
	if len(names) == 0 {
		fmt.Println("  (none)")
		return
	}
	for _, n := range names {
		fmt.Println(" ", n)
	}
}

func joinBackends(rec *migration.Record) string {
	ids := rec.Backends()
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ",")
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func promptYes(prompt string) (bool, error) {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false, err
	}
	return strings.EqualFold(strings.TrimSpace(line), "YES"), nil
}

func flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stdout)
	return fs
}
