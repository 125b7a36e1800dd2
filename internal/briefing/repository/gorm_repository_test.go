package repository

import (
	"context"
	"testing"

	"triage-backend/internal/briefing/domain"
	"triage-backend/pkg/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormBriefingRepository(t *testing.T) {
	db, err := database.NewSQLiteConnection(":memory:")
	require.NoError(t, err)
	repo, err := NewGormBriefingRepository(db)
	require.NoError(t, err)

	ctx := context.Background()

	got, err := repo.Get(ctx, "phone", "2024-03-10")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, repo.Save(ctx, &domain.Briefing{DeviceID: "phone", Date: "2024-03-10", Text: "first"}))
	require.NoError(t, repo.Save(ctx, &domain.Briefing{DeviceID: "phone", Date: "2024-03-10", Text: "second"}))
	require.NoError(t, repo.Save(ctx, &domain.Briefing{DeviceID: "laptop", Date: "2024-03-10", Text: "other"}))

	got, err = repo.Get(ctx, "phone", "2024-03-10")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "second", got.Text)

	var count int64
	require.NoError(t, db.Model(&domain.Briefing{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)

	got, err = repo.Get(ctx, "phone", "2024-03-11")
	require.NoError(t, err)
	assert.Nil(t, got)
}
