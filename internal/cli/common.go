package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mrlokans/so4t-import/internal/audit"
	"github.com/mrlokans/so4t-import/internal/config"
	"github.com/mrlokans/so4t-import/internal/records"
	"github.com/mrlokans/so4t-import/internal/soapi"
	"github.com/mrlokans/so4t-import/internal/validation"
)

// connectionFlags are shared by every command that talks to an instance.
type connectionFlags struct {
	URL   string
	Token string
	Key   string

	teamsAPIHost string
}

func (c *connectionFlags) register(fs *flag.FlagSet, cfg *config.Config) {
	fs.StringVar(&c.URL, "url", cfg.Instance.URL, "Site URL, e.g. https://stackoverflowteams.com/c/TEAM-NAME or https://SUBDOMAIN.stackenterprise.co (env SO_URL)")
	fs.StringVar(&c.Token, "token", cfg.Instance.Token, "API access token (env SO_TOKEN)")
	fs.StringVar(&c.Key, "key", cfg.Instance.Key, "API key, Stack Overflow Enterprise only (env SO_KEY)")
	c.teamsAPIHost = cfg.Instance.TeamsAPIHost
}

func (c *connectionFlags) deployment() (soapi.Deployment, error) {
	if c.URL == "" {
		return soapi.Deployment{}, fmt.Errorf("required flag -url not provided")
	}
	if c.Token == "" {
		return soapi.Deployment{}, fmt.Errorf("required flag -token not provided")
	}
	d, err := soapi.ParseDeployment(c.URL)
	if err != nil {
		return soapi.Deployment{}, err
	}
	d.APIHost = c.teamsAPIHost
	return d, nil
}

// modeFlags select questions or articles.
type modeFlags struct {
	Questions bool
	Articles  bool
}

func (m *modeFlags) register(fs *flag.FlagSet) {
	fs.BoolVar(&m.Questions, "questions", false, "Import questions and answers")
	fs.BoolVar(&m.Articles, "articles", false, "Import articles")
}

func (m *modeFlags) mode() (records.Mode, error) {
	switch {
	case m.Questions && m.Articles:
		return 0, fmt.Errorf("specify only one of -questions or -articles")
	case m.Questions:
		return records.ModeQuestions, nil
	case m.Articles:
		return records.ModeArticles, nil
	default:
		return 0, fmt.Errorf("please specify -questions or -articles")
	}
}

// input is a loaded and checked CSV file.
type input struct {
	Mode       records.Mode
	Questions  []records.Question
	Articles   []records.Article
	Violations []validation.Violation
}

func (in input) Len() int {
	if in.Mode == records.ModeQuestions {
		return len(in.Questions)
	}
	return len(in.Articles)
}

func loadInput(path string, mode records.Mode) (input, error) {
	in := input{Mode: mode}
	var err error
	switch mode {
	case records.ModeQuestions:
		in.Questions, err = records.LoadQuestions(path)
		if err == nil {
			in.Violations = validation.CheckQuestions(in.Questions)
		}
	case records.ModeArticles:
		in.Articles, err = records.LoadArticles(path)
		if err == nil {
			in.Violations = validation.CheckArticles(in.Articles)
		}
	}
	return in, err
}

// violationReport is the JSON shape written by -report-dir.
type violationReport struct {
	File   string                 `json:"file"`
	Mode   string                 `json:"mode"`
	Issues []validation.Violation `json:"issues"`
}

// reportViolations prints every violation and, when reportDir is set, saves
// them as JSON.
func reportViolations(w io.Writer, path string, in input, reportDir string) {
	fmt.Fprintln(w, "Data integrity check failed. Please fix the following issues:")
	for _, v := range in.Violations {
		fmt.Fprintln(w, v.String())
	}

	if reportDir == "" {
		return
	}
	saved, err := audit.NewReporter(reportDir).SaveJSON(violationReport{
		File:   path,
		Mode:   in.Mode.String(),
		Issues: in.Violations,
	})
	if err != nil {
		fmt.Fprintf(w, "\nFailed to save report: %v\n", err)
		return
	}
	fmt.Fprintf(w, "\nReport saved to %s\n", saved)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
