package audit

import (
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	auditRepo "github.com/mrlokans/so4t-import/internal/database/audit"
	"github.com/mrlokans/so4t-import/internal/entities"
)

func setupTestService(t *testing.T) (*Service, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&entities.ImportEvent{})
	require.NoError(t, err)

	repo := auditRepo.NewRepository(db)
	svc := NewService(repo, "https://so.example.com")

	return svc, db
}

func TestService_LogCreated(t *testing.T) {
	svc, db := setupTestService(t)

	svc.LogCreated("run-1", entities.ImportEventQuestion, "How do I deploy?", 501, "12")

	var event entities.ImportEvent
	require.NoError(t, db.Where("run_id = ?", "run-1").First(&event).Error)
	assert.Equal(t, entities.ImportStatusCreated, event.Status)
	assert.Equal(t, 501, event.RemoteID)
	assert.Equal(t, "12", event.AccountID)
	assert.Equal(t, "https://so.example.com", event.Site)
}

func TestService_LogFailure(t *testing.T) {
	svc, db := setupTestService(t)

	svc.LogFailure("run-2", entities.ImportEventArticle, "Broken", "", errors.New(strings.Repeat("x", 600)))

	var event entities.ImportEvent
	require.NoError(t, db.Where("run_id = ?", "run-2").First(&event).Error)
	assert.Equal(t, entities.ImportStatusFailed, event.Status)
	assert.Len(t, event.ErrorMsg, 500)
	assert.True(t, strings.HasSuffix(event.ErrorMsg, "..."))
}

func TestService_RunQueries(t *testing.T) {
	svc, _ := setupTestService(t)

	svc.LogCreated("run-3", entities.ImportEventQuestion, "q", 1, "")
	svc.LogCreated("run-3", entities.ImportEventAnswer, "q", 2, "")
	svc.LogSkipped("run-4", entities.ImportEventArticle, "dry", "")

	events, err := svc.Run("run-3")
	require.NoError(t, err)
	assert.Len(t, events, 2)

	counts, err := svc.RunCounts("run-4")
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[entities.ImportStatusSkipped])

	recent, total, err := svc.Recent(10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, recent, 3)
}

func TestService_DeleteOldEvents(t *testing.T) {
	svc, db := setupTestService(t)

	require.NoError(t, db.Create(&entities.ImportEvent{RunID: "old", CreatedAt: time.Now().Add(-72 * time.Hour)}).Error)
	svc.LogCreated("new", entities.ImportEventArticle, "a", 1, "")

	deleted, err := svc.DeleteOldEvents(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestTruncate_KeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))

	title := strings.Repeat("é", 200) // 400 bytes
	got := truncate(title, 255)
	assert.True(t, utf8.ValidString(got))
	assert.LessOrEqual(t, len(got), 255)
	assert.Equal(t, strings.Repeat("é", 126)+"...", got)
}

func TestLogCreated_MultibyteTitleStaysValid(t *testing.T) {
	svc, _ := setupTestService(t)

	svc.LogCreated("run-utf8", entities.ImportEventArticle, strings.Repeat("日本", 100), 1, "")

	events, err := svc.Run("run-utf8")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, utf8.ValidString(events[0].Title))
	assert.LessOrEqual(t, len(events[0].Title), 255)
}
