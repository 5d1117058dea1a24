package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mrlokans/so4t-import/internal/entities"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&entities.ImportEvent{})
	require.NoError(t, err)

	return db
}

func TestRepository_LogEvent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	event := &entities.ImportEvent{
		RunID:    "run-1",
		Kind:     entities.ImportEventArticle,
		Title:    "Onboarding",
		RemoteID: 11,
		Status:   entities.ImportStatusCreated,
	}

	err := repo.LogEvent(event)
	require.NoError(t, err)
	assert.NotZero(t, event.ID)
	assert.False(t, event.CreatedAt.IsZero())
}

func TestRepository_GetEvents(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	for i := 0; i < 15; i++ {
		event := &entities.ImportEvent{
			RunID:     "run-1",
			Kind:      entities.ImportEventQuestion,
			Title:     "Question",
			Status:    entities.ImportStatusCreated,
			CreatedAt: time.Now().Add(time.Duration(-i) * time.Hour),
		}
		require.NoError(t, repo.LogEvent(event))
	}

	t.Run("get all events", func(t *testing.T) {
		events, total, err := repo.GetEvents(50, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(15), total)
		assert.Len(t, events, 15)
	})

	t.Run("pagination", func(t *testing.T) {
		events, total, err := repo.GetEvents(5, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(15), total)
		assert.Len(t, events, 5)

		events2, _, err := repo.GetEvents(5, 5)
		require.NoError(t, err)
		assert.Len(t, events2, 5)
		assert.NotEqual(t, events[0].ID, events2[0].ID)
	})

	t.Run("order by created_at desc", func(t *testing.T) {
		events, _, err := repo.GetEvents(10, 0)
		require.NoError(t, err)
		for i := 1; i < len(events); i++ {
			assert.False(t, events[i-1].CreatedAt.Before(events[i].CreatedAt))
		}
	})
}

func TestRepository_GetEventsByRunAndCounts(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	require.NoError(t, repo.LogEvent(&entities.ImportEvent{RunID: "a", Kind: entities.ImportEventQuestion, Title: "q1", Status: entities.ImportStatusCreated}))
	require.NoError(t, repo.LogEvent(&entities.ImportEvent{RunID: "a", Kind: entities.ImportEventAnswer, Title: "q1", Status: entities.ImportStatusCreated}))
	require.NoError(t, repo.LogEvent(&entities.ImportEvent{RunID: "a", Kind: entities.ImportEventQuestion, Title: "q2", Status: entities.ImportStatusFailed}))
	require.NoError(t, repo.LogEvent(&entities.ImportEvent{RunID: "b", Kind: entities.ImportEventArticle, Title: "other", Status: entities.ImportStatusCreated}))

	events, err := repo.GetEventsByRun("a")
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, entities.ImportEventAnswer, events[1].Kind)

	counts, err := repo.CountByStatus("a")
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[entities.ImportStatusCreated])
	assert.Equal(t, int64(1), counts[entities.ImportStatusFailed])
}

func TestRepository_DeleteOldEvents(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	now := time.Now()
	require.NoError(t, repo.LogEvent(&entities.ImportEvent{RunID: "old", Status: entities.ImportStatusCreated, CreatedAt: now.Add(-48 * time.Hour)}))
	require.NoError(t, repo.LogEvent(&entities.ImportEvent{RunID: "new", Status: entities.ImportStatusCreated, CreatedAt: now.Add(-1 * time.Hour)}))

	deleted, err := repo.DeleteOldEvents(now.Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	events, total, err := repo.GetEvents(10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "new", events[0].RunID)
}
