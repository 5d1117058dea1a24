package audit

import (
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/so4t-import/internal/entities"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// LogEvent saves a ledger row.
func (r *Repository) LogEvent(event *entities.ImportEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	return r.db.Create(event).Error
}

// GetEvents retrieves paginated ledger rows, most recent first.
func (r *Repository) GetEvents(limit, offset int) ([]entities.ImportEvent, int64, error) {
	var events []entities.ImportEvent
	var total int64

	query := r.db.Model(&entities.ImportEvent{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	err := query.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&events).Error
	return events, total, err
}

// GetEventsByRun retrieves every row of one run in the order they were written.
func (r *Repository) GetEventsByRun(runID string) ([]entities.ImportEvent, error) {
	var events []entities.ImportEvent
	err := r.db.Where("run_id = ?", runID).Order("id ASC").Find(&events).Error
	return events, err
}

// CountByStatus counts the rows of one run per status.
func (r *Repository) CountByStatus(runID string) (map[entities.ImportStatus]int64, error) {
	var rows []struct {
		Status entities.ImportStatus
		Count  int64
	}
	err := r.db.Model(&entities.ImportEvent{}).
		Select("status, COUNT(*) AS count").
		Where("run_id = ?", runID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[entities.ImportStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// DeleteOldEvents removes rows older than the specified time.
// Returns the number of deleted rows.
func (r *Repository) DeleteOldEvents(olderThan time.Time) (int64, error) {
	result := r.db.Where("created_at < ?", olderThan).Delete(&entities.ImportEvent{})
	return result.RowsAffected, result.Error
}
