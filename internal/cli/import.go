package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/mrlokans/so4t-import/internal/audit"
	"github.com/mrlokans/so4t-import/internal/config"
	"github.com/mrlokans/so4t-import/internal/database"
	auditRepo "github.com/mrlokans/so4t-import/internal/database/audit"
	"github.com/mrlokans/so4t-import/internal/importer"
	"github.com/mrlokans/so4t-import/internal/logging"
	"github.com/mrlokans/so4t-import/internal/metrics"
	"github.com/mrlokans/so4t-import/internal/records"
	"github.com/mrlokans/so4t-import/internal/soapi"
	"github.com/mrlokans/so4t-import/internal/tracing"
	"github.com/mrlokans/so4t-import/internal/validation"
)

// ImportCommand imports questions or articles from a CSV file.
type ImportCommand struct {
	connectionFlags
	modeFlags

	CSVPath     string
	Impersonate bool
	DryRun      bool
	AuditDB     string
	MetricsFile string
	ReportDir   string
	Rate        float64
	Verbose     bool

	version string
	cfg     *config.Config
}

func NewImportCommand(version string) *ImportCommand {
	return &ImportCommand{version: version}
}

func (cmd *ImportCommand) ParseFlags(args []string) error {
	cmd.cfg = config.NewConfig()
	fs := flag.NewFlagSet("import", flag.ExitOnError)

	cmd.connectionFlags.register(fs, cmd.cfg)
	cmd.modeFlags.register(fs)
	fs.StringVar(&cmd.CSVPath, "csv", "", "Path to the CSV file to import (required)")
	fs.BoolVar(&cmd.Impersonate, "impersonate", false, "Create each record as its author (Stack Overflow Enterprise only)")
	fs.BoolVar(&cmd.DryRun, "dry-run", false, "Check the file and the connection without creating anything")
	fs.StringVar(&cmd.AuditDB, "audit-db", cmd.cfg.Audit.DatabasePath, "Record every created item in this sqlite ledger (env AUDIT_DB_PATH)")
	fs.StringVar(&cmd.MetricsFile, "metrics-file", cmd.cfg.Metrics.File, "Write Prometheus metrics to this textfile when the run ends (env METRICS_FILE)")
	fs.StringVar(&cmd.ReportDir, "report-dir", "", "Save a JSON report of integrity check failures in this directory")
	fs.Float64Var(&cmd.Rate, "rate", cmd.cfg.HTTP.RequestsPerSecond, "Maximum API requests per second, 0 for no limit (env REQUESTS_PER_SECOND)")
	fs.BoolVar(&cmd.Verbose, "verbose", false, "Enable verbose logging")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s import -url <site> -token <token> -csv <path> (-questions | -articles) [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Import questions and answers, or articles, from a CSV file.\n\n")
		fmt.Fprintf(os.Stderr, "Question files need the columns: title, body, answer, tags, asker_account_id, answerer_account_id\n")
		fmt.Fprintf(os.Stderr, "Article files need the columns:  title, body, type, tags, author_account_id\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  # Stack Overflow for Teams:\n")
		fmt.Fprintf(os.Stderr, "  %s import -url \"https://stackoverflowteams.com/c/TEAM-NAME\" -token \"YOUR_TOKEN\" -csv questions.csv -questions\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  # Stack Overflow Enterprise, as each article's author:\n")
		fmt.Fprintf(os.Stderr, "  %s import -url \"https://SUBDOMAIN.stackenterprise.co\" -key \"YOUR_KEY\" -token \"YOUR_TOKEN\" -csv articles.csv -articles -impersonate\n", os.Args[0])
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if cmd.CSVPath == "" {
		return fmt.Errorf("required flag -csv not provided")
	}
	if _, err := cmd.mode(); err != nil {
		return err
	}
	if _, err := cmd.deployment(); err != nil {
		return err
	}
	return nil
}

func (cmd *ImportCommand) Run() error {
	ctx, stop := signalContext()
	defer stop()
	return cmd.run(ctx)
}

func (cmd *ImportCommand) run(ctx context.Context) error {
	logger := logging.Setup(cmd.cfg.Log.Level, cmd.Verbose)

	mode, err := cmd.mode()
	if err != nil {
		return err
	}
	deployment, err := cmd.deployment()
	if err != nil {
		return err
	}

	fmt.Println("Stack Overflow Import")
	fmt.Println("=====================")
	if cmd.DryRun {
		fmt.Println("DRY RUN MODE - No changes will be made")
		fmt.Println()
	}
	fmt.Printf("Site: %s (%s)\n", deployment.SiteURL, deployment.Mode)
	fmt.Printf("File: %s\n", cmd.CSVPath)

	// Every row is checked before the first request.
	in, err := loadInput(cmd.CSVPath, mode)
	if err != nil {
		return err
	}
	if len(in.Violations) > 0 {
		fmt.Println()
		reportViolations(os.Stdout, cmd.CSVPath, in, cmd.ReportDir)
		return validation.Err(in.Violations)
	}
	fmt.Printf("Found %d %s\n\n", in.Len(), mode)
	if in.Len() == 0 {
		fmt.Println("Nothing to import")
		return nil
	}

	if deployment.Enterprise() && cmd.Key == "" && (mode == records.ModeArticles || cmd.Impersonate) {
		return fmt.Errorf("an API key (-key) is required for %s imports on Stack Overflow Enterprise", mode)
	}

	m := metrics.New()

	var ledger importer.Ledger
	if cmd.AuditDB != "" {
		svc, closeDB, err := openLedger(cmd.AuditDB, deployment.SiteURL)
		if err != nil {
			return err
		}
		defer closeDB()
		ledger = svc
	}

	orchestrator := importer.New(importer.Config{
		Deployment: deployment,
		Token:      cmd.Token,
		Key:        cmd.Key,
		ClientOptions: []soapi.Option{
			soapi.WithTimeout(cmd.cfg.HTTP.Timeout),
			soapi.WithRateLimit(cmd.Rate),
			soapi.WithRecorder(m),
		},
		Impersonate: cmd.Impersonate,
		DryRun:      cmd.DryRun,
		Logger:      logger,
		Out:         os.Stdout,
		Ledger:      ledger,
		Recorder:    m,
	})

	shutdownTracing, err := tracing.Setup(ctx, tracing.Config{
		ServiceVersion: cmd.version,
		Enabled:        cmd.cfg.Tracing.Enabled,
		OTLPEndpoint:   cmd.cfg.Tracing.OTLPEndpoint,
		SampleRate:     cmd.cfg.Tracing.SampleRate,
		RunID:          orchestrator.RunID(),
		Site:           deployment.SiteURL,
		Mode:           mode.String(),
	})
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("Failed to flush traces", "error", err)
		}
	}()

	var sum importer.Summary
	switch mode {
	case records.ModeQuestions:
		sum, err = orchestrator.ImportQuestions(ctx, in.Questions)
	case records.ModeArticles:
		sum, err = orchestrator.ImportArticles(ctx, in.Articles)
	}

	printSummary(sum)
	cmd.writeMetrics(m, logger)

	if err != nil {
		switch {
		case errors.Is(err, context.Canceled):
			return fmt.Errorf("import interrupted: %w", err)
		case soapi.IsFatal(err):
			return fmt.Errorf("import stopped after %d created record(s): %w", sum.Created(), err)
		default:
			return err
		}
	}

	if cmd.DryRun {
		fmt.Println("\nDry run complete. Use without -dry-run to import.")
		return nil
	}
	fmt.Println("\nImport complete!")
	return nil
}

func (cmd *ImportCommand) writeMetrics(m *metrics.Metrics, logger *slog.Logger) {
	if cmd.MetricsFile == "" {
		return
	}
	if err := m.WriteTextfile(cmd.MetricsFile); err != nil {
		logger.Warn("Failed to write metrics", "path", cmd.MetricsFile, "error", err)
		return
	}
	fmt.Printf("Metrics written to %s\n", cmd.MetricsFile)
}

func printSummary(sum importer.Summary) {
	fmt.Println("\n=== Import Summary ===")
	fmt.Printf("Run: %s\n", sum.RunID)
	if sum.Questions > 0 || sum.Answers > 0 {
		fmt.Printf("Questions created: %d\n", sum.Questions)
		fmt.Printf("Answers created: %d\n", sum.Answers)
	}
	if sum.Articles > 0 {
		fmt.Printf("Articles created: %d\n", sum.Articles)
	}
	if sum.Impersonations > 0 {
		fmt.Printf("Impersonation tokens exchanged: %d\n", sum.Impersonations)
	}
}

// openLedger opens the sqlite ledger at path.
func openLedger(path, site string) (*audit.Service, func(), error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get absolute path for database: %w", err)
	}

	db, err := database.NewDatabase(absPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			slog.Warn("Failed to close import ledger", "error", err)
		}
	}
	return audit.NewService(auditRepo.NewRepository(db.DB), site), closeDB, nil
}
