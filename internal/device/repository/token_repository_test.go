package repository

import (
	"context"
	"testing"

	"triage-backend/pkg/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRepository(t *testing.T) {
	db, err := database.NewSQLiteConnection(":memory:")
	require.NoError(t, err)
	repo, err := NewTokenRepository(db)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, repo.SaveToken(ctx, "phone", "tok-1", "Safari"))
	require.NoError(t, repo.SaveToken(ctx, "phone", "tok-2", "Chrome"))
	// re-registering a token moves it
	require.NoError(t, repo.SaveToken(ctx, "laptop", "tok-2", "Firefox"))

	phone, err := repo.GetTokensByDeviceID(ctx, "phone")
	require.NoError(t, err)
	require.Len(t, phone, 1)
	assert.Equal(t, "tok-1", phone[0].Token)

	laptop, err := repo.GetTokensByDeviceID(ctx, "laptop")
	require.NoError(t, err)
	require.Len(t, laptop, 1)
	assert.Equal(t, "Firefox", laptop[0].DeviceInfo)

	require.NoError(t, repo.DeleteToken(ctx, "tok-1"))
	all, err := repo.ListTokens(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "laptop", all[0].DeviceID)
}
