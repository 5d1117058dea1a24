package main

import (
	"fmt"
	"os"

	"github.com/mrlokans/so4t-import/internal/cli"
)

// Version information - set at build time via ldflags
var (
	Version = "dev"
	Commit  = "unknown"
)

type command interface {
	ParseFlags(args []string) error
	Run() error
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	name := os.Args[1]
	args := os.Args[2:]

	var cmd command
	switch name {
	case "import":
		cmd = cli.NewImportCommand(Version)
	case "validate":
		cmd = cli.NewValidateCommand()
	case "tags":
		cmd = cli.NewTagsCommand()
	case "history":
		cmd = cli.NewHistoryCommand()
	case "sandbox":
		cmd = cli.NewSandboxCommand()

	case "version", "-v", "--version":
		fmt.Printf("so4t-import %s (%s)\n", Version, Commit)
		return

	case "-h", "--help", "help":
		printUsage()
		return

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", name)
		printUsage()
		os.Exit(1)
	}

	if err := cmd.ParseFlags(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := cmd.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <command> [options]\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  import    Import questions and answers, or articles, from a CSV file\n")
	fmt.Fprintf(os.Stderr, "  validate  Check a CSV file against the platform limits without importing\n")
	fmt.Fprintf(os.Stderr, "  tags      List the tags on an instance\n")
	fmt.Fprintf(os.Stderr, "  history   Show what earlier runs created, from the import ledger\n")
	fmt.Fprintf(os.Stderr, "  sandbox   Serve a local fake instance to rehearse an import against\n")
	fmt.Fprintf(os.Stderr, "  version   Print the version\n")
	fmt.Fprintf(os.Stderr, "\nUse '%s <command> -h' for help on a specific command.\n", os.Args[0])
}
