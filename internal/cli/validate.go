package cli

import (
	"flag"
	"fmt"
	"os"

	"github.com/mrlokans/so4t-import/internal/validation"
)

// ValidateCommand runs the integrity check on a CSV file without contacting
// any instance.
type ValidateCommand struct {
	modeFlags

	CSVPath   string
	ReportDir string
}

func NewValidateCommand() *ValidateCommand {
	return &ValidateCommand{}
}

func (cmd *ValidateCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)

	cmd.modeFlags.register(fs)
	fs.StringVar(&cmd.CSVPath, "csv", "", "Path to the CSV file to check (required)")
	fs.StringVar(&cmd.ReportDir, "report-dir", "", "Save a JSON report of any failures in this directory")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s validate -csv <path> (-questions | -articles) [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Check a CSV file against title, body, article type and tag limits.\n")
		fmt.Fprintf(os.Stderr, "No API calls are made.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
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
	return nil
}

func (cmd *ValidateCommand) Run() error {
	mode, err := cmd.mode()
	if err != nil {
		return err
	}

	fmt.Println("Data Integrity Check")
	fmt.Println("====================")
	fmt.Printf("File: %s\n\n", cmd.CSVPath)

	in, err := loadInput(cmd.CSVPath, mode)
	if err != nil {
		return err
	}
	if len(in.Violations) > 0 {
		reportViolations(os.Stdout, cmd.CSVPath, in, cmd.ReportDir)
		return validation.Err(in.Violations)
	}

	fmt.Printf("All %d %s passed the integrity check\n", in.Len(), mode)
	return nil
}
