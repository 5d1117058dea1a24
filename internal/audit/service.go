package audit

import (
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/mrlokans/so4t-import/internal/database/audit"
	"github.com/mrlokans/so4t-import/internal/entities"
)

// Service writes import runs to the ledger.
type Service struct {
	repo *audit.Repository
	site string
}

// NewService creates a ledger service for one target site.
func NewService(repo *audit.Repository, site string) *Service {
	return &Service{repo: repo, site: site}
}

// Log records a ledger row. A failure to write is logged and otherwise
// ignored: the ledger never stops an import.
func (s *Service) Log(event *entities.ImportEvent) {
	if event.Site == "" {
		event.Site = s.site
	}
	if err := s.repo.LogEvent(event); err != nil {
		slog.Warn("Failed to write import ledger", "run_id", event.RunID, "error", err)
	}
}

// LogCreated records a resource the run created.
func (s *Service) LogCreated(runID string, kind entities.ImportEventKind, title string, remoteID int, accountID string) {
	s.Log(&entities.ImportEvent{
		RunID:     runID,
		Kind:      kind,
		Title:     truncate(title, 255),
		RemoteID:  remoteID,
		AccountID: accountID,
		Status:    entities.ImportStatusCreated,
	})
}

// LogSkipped records a call a dry run did not make.
func (s *Service) LogSkipped(runID string, kind entities.ImportEventKind, title, accountID string) {
	s.Log(&entities.ImportEvent{
		RunID:     runID,
		Kind:      kind,
		Title:     truncate(title, 255),
		AccountID: accountID,
		Status:    entities.ImportStatusSkipped,
	})
}

// LogFailure records the call that stopped a run.
func (s *Service) LogFailure(runID string, kind entities.ImportEventKind, title, accountID string, err error) {
	event := &entities.ImportEvent{
		RunID:     runID,
		Kind:      kind,
		Title:     truncate(title, 255),
		AccountID: accountID,
		Status:    entities.ImportStatusFailed,
	}
	if err != nil {
		event.ErrorMsg = truncate(err.Error(), 500)
	}
	s.Log(event)
}

// Recent retrieves paginated ledger rows.
func (s *Service) Recent(limit, offset int) ([]entities.ImportEvent, int64, error) {
	return s.repo.GetEvents(limit, offset)
}

// Run retrieves every row of one run.
func (s *Service) Run(runID string) ([]entities.ImportEvent, error) {
	return s.repo.GetEventsByRun(runID)
}

// RunCounts counts the rows of one run per status.
func (s *Service) RunCounts(runID string) (map[entities.ImportStatus]int64, error) {
	return s.repo.CountByStatus(runID)
}

// DeleteOldEvents removes rows older than the retention period.
func (s *Service) DeleteOldEvents(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	return s.repo.DeleteOldEvents(cutoff)
}

// truncate shortens a string to at most maxLen bytes on a rune boundary.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
