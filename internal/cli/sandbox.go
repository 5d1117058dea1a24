package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/so4t-import/internal/fakeapi"
)

// SandboxCommand serves a local fake instance so an import can be rehearsed
// end to end before it is pointed at a real site.
type SandboxCommand struct {
	Addr  string
	Token string
	Key   string
	Team  string
	Tags  string
}

func NewSandboxCommand() *SandboxCommand {
	return &SandboxCommand{}
}

func (cmd *SandboxCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("sandbox", flag.ExitOnError)

	fs.StringVar(&cmd.Addr, "addr", "127.0.0.1:8089", "Address to listen on")
	fs.StringVar(&cmd.Token, "token", "sandbox-token", "Access token the sandbox accepts")
	fs.StringVar(&cmd.Key, "key", "sandbox-key", "API key the sandbox requires on Enterprise routes")
	fs.StringVar(&cmd.Team, "team", "sandbox", "Team slug the sandbox accepts on Teams routes")
	fs.StringVar(&cmd.Tags, "tags", "", "Space-delimited tags that already exist")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s sandbox [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Serve an in-memory Stack Overflow instance for rehearsing imports.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if cmd.Token == "" {
		return fmt.Errorf("-token must not be empty")
	}
	return nil
}

func (cmd *SandboxCommand) Run() error {
	gin.SetMode(gin.ReleaseMode)
	fake := fakeapi.New(fakeapi.Config{
		Token: cmd.Token,
		Key:   cmd.Key,
		Team:  cmd.Team,
		Tags:  strings.Fields(cmd.Tags),
	})

	server := &http.Server{
		Addr:              cmd.Addr,
		Handler:           fake.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	fmt.Println("Import Sandbox")
	fmt.Println("==============")
	fmt.Printf("Listening on http://%s\n\n", cmd.Addr)
	fmt.Printf("Enterprise: -url http://%s -token %s -key %s\n", cmd.Addr, cmd.Token, cmd.Key)
	fmt.Printf("Teams:      SO_TEAMS_API_HOST=http://%s -url https://stackoverflowteams.com/c/%s -token %s\n\n", cmd.Addr, cmd.Team, cmd.Token)
	fmt.Println("Press Ctrl+C to stop.")

	ctx, stop := signalContext()
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("sandbox server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop sandbox: %w", err)
	}

	fmt.Printf("\nSandbox stopped: %d articles, %d questions, %d answers created\n",
		len(fake.Articles()), len(fake.Questions()), len(fake.Answers()))
	return nil
}
