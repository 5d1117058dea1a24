// Package importer drives an import run: it verifies connectivity once, then
// creates articles or questions and answers one record at a time, optionally
// impersonating each record's author on Enterprise instances.
//
// Records are processed in order and the first error ends the run. The
// Summary returned alongside that error says what had been created by then.
package importer

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/mrlokans/so4t-import/internal/entities"
	"github.com/mrlokans/so4t-import/internal/records"
	"github.com/mrlokans/so4t-import/internal/soapi"
	"github.com/mrlokans/so4t-import/internal/tracing"
)

// Ledger receives one row per create call or token exchange.
type Ledger interface {
	LogCreated(runID string, kind entities.ImportEventKind, title string, remoteID int, accountID string)
	LogSkipped(runID string, kind entities.ImportEventKind, title, accountID string)
	LogFailure(runID string, kind entities.ImportEventKind, title, accountID string, err error)
}

// Recorder counts what a run produced.
type Recorder interface {
	RecordCreated(kind string)
	RecordImpersonation()
}

// Config configures an Orchestrator.
type Config struct {
	Deployment    soapi.Deployment
	Token         string
	Key           string
	ClientOptions []soapi.Option

	// Impersonate creates each record as its author. Only Enterprise
	// instances support it; on Teams it is ignored with a warning.
	Impersonate bool

	// DryRun verifies connectivity and reports what would be created.
	DryRun bool

	Logger   *slog.Logger
	Out      io.Writer // progress lines for the operator; nil discards them
	Ledger   Ledger    // optional
	Recorder Recorder  // optional
}

// Summary counts what a run created.
type Summary struct {
	RunID          string
	Questions      int
	Answers        int
	Articles       int
	Impersonations int
	DryRun         bool
}

// Created is the number of records the run created.
func (s Summary) Created() int {
	return s.Questions + s.Answers + s.Articles
}

// Orchestrator runs one import.
type Orchestrator struct {
	cfg    Config
	runID  string
	logger *slog.Logger
	out    io.Writer
}

// New creates an Orchestrator with a fresh run id.
func New(cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	out := cfg.Out
	if out == nil {
		out = io.Discard
	}
	runID := uuid.New().String()
	return &Orchestrator{
		cfg:    cfg,
		runID:  runID,
		logger: logger.With("run_id", runID),
		out:    out,
	}
}

// RunID identifies this run in the ledger.
func (o *Orchestrator) RunID() string {
	return o.runID
}

// articleAPI is what an article import needs from the 2.3 client.
type articleAPI interface {
	tokenExchanger
	CreateArticle(ctx context.Context, a soapi.NewArticle, cred soapi.Credential) (*soapi.Article, error)
}

// questionAPI is what a question import needs from the v3 client.
type questionAPI interface {
	soapi.APIClient
	CreateQuestion(ctx context.Context, q soapi.NewQuestion, cred soapi.Credential) (*soapi.Question, error)
	CreateAnswer(ctx context.Context, questionID int, body string, cred soapi.Credential) (*soapi.Answer, error)
}

type tokenExchanger interface {
	soapi.APIClient
	ExchangeImpersonationToken(ctx context.Context, accountID string) (string, error)
}

var (
	_ articleAPI     = (*soapi.LegacyClient)(nil)
	_ questionAPI    = (*soapi.ModernClient)(nil)
	_ tokenExchanger = (*soapi.LegacyClient)(nil)
)

// ImportArticles creates one article per record through the 2.3 API.
func (o *Orchestrator) ImportArticles(ctx context.Context, recs []records.Article) (Summary, error) {
	client := soapi.NewLegacyClient(
		o.cfg.Deployment.LegacyConfig(o.cfg.Token, o.cfg.Key),
		o.clientOptions()...,
	)
	return o.importArticles(ctx, client, recs)
}

// ImportQuestions creates one question and its answer per record through the
// v3 API. Impersonation tokens come from a separate 2.3 client.
func (o *Orchestrator) ImportQuestions(ctx context.Context, recs []records.Question) (Summary, error) {
	client := soapi.NewModernClient(
		o.cfg.Deployment.ModernConfig(o.cfg.Token),
		o.clientOptions()...,
	)

	var exchanger tokenExchanger
	if o.impersonating() {
		exchanger = soapi.NewLegacyClient(
			o.cfg.Deployment.LegacyConfig(o.cfg.Token, o.cfg.Key),
			o.clientOptions()...,
		)
	}
	return o.importQuestions(ctx, client, exchanger, recs)
}

func (o *Orchestrator) clientOptions() []soapi.Option {
	return append([]soapi.Option{soapi.WithLogger(o.logger)}, o.cfg.ClientOptions...)
}

// impersonating reports whether this run exchanges tokens.
func (o *Orchestrator) impersonating() bool {
	return o.cfg.Impersonate && o.cfg.Deployment.Enterprise()
}

func (o *Orchestrator) warnUnsupportedImpersonation() {
	if o.cfg.Impersonate && !o.cfg.Deployment.Enterprise() {
		o.logger.Warn("Impersonation is only available on Stack Overflow Enterprise; records will be created as the token owner")
		o.printf("Impersonation is not supported on Stack Overflow for Teams, ignoring -impersonate\n")
	}
}

func (o *Orchestrator) importArticles(ctx context.Context, client articleAPI, recs []records.Article) (Summary, error) {
	sum := Summary{RunID: o.runID, DryRun: o.cfg.DryRun}
	o.warnUnsupportedImpersonation()

	if err := client.VerifyConnection(ctx); err != nil {
		return sum, err
	}
	o.logger.Info("Importing articles", "count", len(recs), "impersonate", o.impersonating(), "dry_run", o.cfg.DryRun)

	for i, rec := range recs {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		if o.cfg.DryRun {
			o.printf("  [DRY RUN] would create article %q (%s, tags: %s)\n", rec.Title, rec.Type, rec.Tags)
			o.skipped(entities.ImportEventArticle, rec.Title, rec.AuthorAccountID)
			continue
		}

		if err := o.importArticle(ctx, client, i, rec, &sum); err != nil {
			return sum, err
		}
	}
	return sum, nil
}

func (o *Orchestrator) importArticle(ctx context.Context, client articleAPI, index int, rec records.Article, sum *Summary) error {
	ctx, span := tracing.StartSpan(ctx, "import.article")
	defer span.End()
	tracing.AddRecordAttributes(span, string(entities.ImportEventArticle), index+1, rec.Title)

	cred, err := o.credentialFor(ctx, client, rec.AuthorAccountID, "article", rec.Title, sum)
	if err != nil {
		tracing.RecordError(span, err)
		return err
	}

	article, err := client.CreateArticle(ctx, soapi.NewArticle{
		Title: rec.Title,
		Body:  rec.Body,
		Type:  rec.Type,
		Tags:  rec.Tags,
	}, cred)
	if err != nil {
		tracing.RecordError(span, err)
		o.failed(entities.ImportEventArticle, rec.Title, rec.AuthorAccountID, err)
		return err
	}

	sum.Articles++
	o.created(entities.ImportEventArticle, rec.Title, article.ArticleID, rec.AuthorAccountID)
	o.printf("  [OK] Created article %q (id %d)\n", rec.Title, article.ArticleID)
	return nil
}

func (o *Orchestrator) importQuestions(ctx context.Context, client questionAPI, exchanger tokenExchanger, recs []records.Question) (Summary, error) {
	sum := Summary{RunID: o.runID, DryRun: o.cfg.DryRun}
	o.warnUnsupportedImpersonation()

	if err := client.VerifyConnection(ctx); err != nil {
		return sum, err
	}
	if exchanger != nil {
		if err := exchanger.VerifyConnection(ctx); err != nil {
			return sum, err
		}
	}
	o.logger.Info("Importing questions", "count", len(recs), "impersonate", exchanger != nil, "dry_run", o.cfg.DryRun)

	for i, rec := range recs {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		if o.cfg.DryRun {
			o.printf("  [DRY RUN] would create question %q (tags: %v)\n", rec.Title, rec.TagList())
			o.skipped(entities.ImportEventQuestion, rec.Title, rec.AskerAccountID)
			if rec.Answer != "" {
				o.skipped(entities.ImportEventAnswer, rec.Title, rec.AnswererAccountID)
			}
			continue
		}

		if err := o.importQuestion(ctx, client, exchanger, i, rec, &sum); err != nil {
			return sum, err
		}
	}
	return sum, nil
}

func (o *Orchestrator) importQuestion(ctx context.Context, client questionAPI, exchanger tokenExchanger, index int, rec records.Question, sum *Summary) error {
	ctx, span := tracing.StartSpan(ctx, "import.question")
	defer span.End()
	tracing.AddRecordAttributes(span, string(entities.ImportEventQuestion), index+1, rec.Title)

	cred, err := o.credentialFor(ctx, exchanger, rec.AskerAccountID, "question", rec.Title, sum)
	if err != nil {
		tracing.RecordError(span, err)
		return err
	}

	question, err := client.CreateQuestion(ctx, soapi.NewQuestion{
		Title: rec.Title,
		Body:  rec.Body,
		Tags:  rec.TagList(),
	}, cred)
	if err != nil {
		tracing.RecordError(span, err)
		o.failed(entities.ImportEventQuestion, rec.Title, rec.AskerAccountID, err)
		return err
	}
	sum.Questions++
	o.created(entities.ImportEventQuestion, rec.Title, question.ID, rec.AskerAccountID)
	o.printf("  [OK] Created question %q (id %d)\n", rec.Title, question.ID)

	if rec.Answer == "" {
		o.logger.Info("No answer for question, skipping", "title", rec.Title)
		return nil
	}

	cred, err = o.credentialFor(ctx, exchanger, rec.AnswererAccountID, "answer", rec.Title, sum)
	if err != nil {
		tracing.RecordError(span, err)
		return err
	}

	answer, err := client.CreateAnswer(ctx, question.ID, rec.Answer, cred)
	if err != nil {
		tracing.RecordError(span, err)
		o.failed(entities.ImportEventAnswer, rec.Title, rec.AnswererAccountID, err)
		return err
	}
	sum.Answers++
	o.created(entities.ImportEventAnswer, rec.Title, answer.ID, rec.AnswererAccountID)
	o.printf("  [OK] Created answer for %q (id %d)\n", rec.Title, answer.ID)
	return nil
}

// credentialFor returns the credential to create a record with. Without
// impersonation, or for a record with no account id, that is the primary
// token.
func (o *Orchestrator) credentialFor(ctx context.Context, exchanger tokenExchanger, accountID, what, title string, sum *Summary) (soapi.Credential, error) {
	if !o.impersonating() || exchanger == nil {
		return soapi.Primary, nil
	}
	if accountID == "" {
		o.logger.Warn("No account id, creating as the token owner", "kind", what, "title", title)
		return soapi.Primary, nil
	}

	token, err := exchanger.ExchangeImpersonationToken(ctx, accountID)
	if err != nil {
		o.failed(entities.ImportEventTokenExchange, title, accountID, err)
		return soapi.Credential{}, err
	}

	sum.Impersonations++
	if o.cfg.Recorder != nil {
		o.cfg.Recorder.RecordImpersonation()
	}
	o.printf("Impersonating user %s for %s %q\n", accountID, what, title)
	return soapi.Impersonating(token), nil
}

func (o *Orchestrator) created(kind entities.ImportEventKind, title string, remoteID int, accountID string) {
	if o.cfg.Recorder != nil {
		o.cfg.Recorder.RecordCreated(string(kind))
	}
	if o.cfg.Ledger != nil {
		o.cfg.Ledger.LogCreated(o.runID, kind, title, remoteID, accountID)
	}
}

func (o *Orchestrator) skipped(kind entities.ImportEventKind, title, accountID string) {
	if o.cfg.Ledger != nil {
		o.cfg.Ledger.LogSkipped(o.runID, kind, title, accountID)
	}
}

func (o *Orchestrator) failed(kind entities.ImportEventKind, title, accountID string, err error) {
	o.logger.Error("Import stopped", "kind", kind, "title", title, "error", err)
	if o.cfg.Ledger != nil {
		o.cfg.Ledger.LogFailure(o.runID, kind, title, accountID, err)
	}
}

func (o *Orchestrator) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(o.out, format, args...)
}
