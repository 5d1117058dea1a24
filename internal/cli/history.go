package cli

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mrlokans/so4t-import/internal/config"
	"github.com/mrlokans/so4t-import/internal/entities"
)

// HistoryCommand prints the import ledger.
type HistoryCommand struct {
	AuditDB string
	Limit   int
	RunID   string
	Prune   time.Duration
}

func NewHistoryCommand() *HistoryCommand {
	return &HistoryCommand{}
}

func (cmd *HistoryCommand) ParseFlags(args []string) error {
	cfg := config.NewConfig()
	fs := flag.NewFlagSet("history", flag.ExitOnError)

	defaultDB := cfg.Audit.DatabasePath
	if defaultDB == "" {
		defaultDB = config.DefaultAuditDatabasePath
	}
	fs.StringVar(&cmd.AuditDB, "audit-db", defaultDB, "Path to the import ledger (env AUDIT_DB_PATH)")
	fs.IntVar(&cmd.Limit, "limit", 20, "Number of most recent entries to show")
	fs.StringVar(&cmd.RunID, "run", "", "Show every entry of one run")
	fs.DurationVar(&cmd.Prune, "prune", 0, "Delete entries older than this, e.g. 720h")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s history [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Show what previous imports created.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if cmd.Limit <= 0 {
		return fmt.Errorf("-limit must be positive")
	}
	if cmd.Prune < 0 {
		return fmt.Errorf("-prune must not be negative")
	}
	return nil
}

func (cmd *HistoryCommand) Run() error {
	if _, err := os.Stat(cmd.AuditDB); os.IsNotExist(err) {
		return fmt.Errorf("import ledger not found: %s", cmd.AuditDB)
	}

	svc, closeDB, err := openLedger(cmd.AuditDB, "")
	if err != nil {
		return err
	}
	defer closeDB()

	if cmd.Prune > 0 {
		deleted, err := svc.DeleteOldEvents(cmd.Prune)
		if err != nil {
			return fmt.Errorf("failed to prune ledger: %w", err)
		}
		fmt.Printf("Deleted %d entries older than %s\n", deleted, cmd.Prune)
		return nil
	}

	if cmd.RunID != "" {
		events, err := svc.Run(cmd.RunID)
		if err != nil {
			return fmt.Errorf("failed to read run %s: %w", cmd.RunID, err)
		}
		if len(events) == 0 {
			fmt.Printf("No entries for run %s\n", cmd.RunID)
			return nil
		}
		counts, err := svc.RunCounts(cmd.RunID)
		if err != nil {
			return fmt.Errorf("failed to count run %s: %w", cmd.RunID, err)
		}

		fmt.Printf("Run %s on %s\n", cmd.RunID, events[0].Site)
		fmt.Printf("Created: %d  Failed: %d  Skipped: %d\n\n",
			counts[entities.ImportStatusCreated], counts[entities.ImportStatusFailed], counts[entities.ImportStatusSkipped])
		printEvents(events)
		return nil
	}

	events, total, err := svc.Recent(cmd.Limit, 0)
	if err != nil {
		return fmt.Errorf("failed to read ledger: %w", err)
	}
	fmt.Printf("Showing %d of %d entries\n\n", len(events), total)
	printEvents(events)
	return nil
}

func printEvents(events []entities.ImportEvent) {
	for _, e := range events {
		line := fmt.Sprintf("%s  %-8s  %-14s  %q", e.CreatedAt.Format(time.DateTime), e.Status, e.Kind, e.Title)
		if e.RemoteID > 0 {
			line += fmt.Sprintf(" id=%d", e.RemoteID)
		}
		if e.AccountID != "" {
			line += " as=" + e.AccountID
		}
		if e.ErrorMsg != "" {
			line += "  [ERROR] " + e.ErrorMsg
		}
		fmt.Println(line)
	}
}
