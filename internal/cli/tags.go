package cli

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/mrlokans/so4t-import/internal/config"
	"github.com/mrlokans/so4t-import/internal/logging"
	"github.com/mrlokans/so4t-import/internal/soapi"
)

// TagsCommand lists the tags that already exist on an instance, which helps
// when preparing the tags column of an import file.
type TagsCommand struct {
	connectionFlags

	Modern  bool
	Verbose bool

	cfg *config.Config
}

// tagSource is either API generation.
type tagSource interface {
	soapi.APIClient
	ListTags(ctx context.Context) ([]soapi.Tag, error)
}

func NewTagsCommand() *TagsCommand {
	return &TagsCommand{}
}

func (cmd *TagsCommand) ParseFlags(args []string) error {
	cmd.cfg = config.NewConfig()
	fs := flag.NewFlagSet("tags", flag.ExitOnError)

	cmd.connectionFlags.register(fs, cmd.cfg)
	fs.BoolVar(&cmd.Modern, "v3", false, "Use the v3 API instead of 2.3")
	fs.BoolVar(&cmd.Verbose, "verbose", false, "Enable verbose logging")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s tags -url <site> -token <token> [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "List the tags that exist on an instance.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	_, err := cmd.deployment()
	return err
}

func (cmd *TagsCommand) Run() error {
	ctx, stop := signalContext()
	defer stop()
	return cmd.run(ctx)
}

func (cmd *TagsCommand) run(ctx context.Context) error {
	logger := logging.Setup(cmd.cfg.Log.Level, cmd.Verbose)

	deployment, err := cmd.deployment()
	if err != nil {
		return err
	}

	opts := []soapi.Option{
		soapi.WithLogger(logger),
		soapi.WithTimeout(cmd.cfg.HTTP.Timeout),
		soapi.WithRateLimit(cmd.cfg.HTTP.RequestsPerSecond),
	}

	var client tagSource
	if cmd.Modern {
		client = soapi.NewModernClient(deployment.ModernConfig(cmd.Token), opts...)
	} else {
		client = soapi.NewLegacyClient(deployment.LegacyConfig(cmd.Token, cmd.Key), opts...)
	}
	if err := client.VerifyConnection(ctx); err != nil {
		return err
	}

	tags, err := client.ListTags(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tags: %w", err)
	}

	fmt.Printf("Found %d tags\n\n", len(tags))
	for _, tag := range tags {
		fmt.Printf("  %-35s %d\n", tag.Name, tag.Count)
	}
	return nil
}
