//go:build integration

package mongodb

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"example.com/fitness/services/activity-service/internal/domain"
)

func newRepository(t *testing.T) *Repository {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForListeningPort("27017/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "27017")
	require.NoError(t, err)

	client, err := Connect(ctx, fmt.Sprintf("mongodb://%s:%s", host, port.Port()), 10*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(ctx) })

	repo := NewRepository(client.Database("fitness_test"))
	require.NoError(t, repo.EnsureIndexes(ctx))
	return repo
}

func TestRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newRepository(t)
	base := time.Now().UTC().Truncate(time.Millisecond)

	older := domain.ActivityRecord{
		ID:                uuid.NewString(),
		OwnerID:           "u-1",
		Type:              "RUN",
		DurationSeconds:   1800,
		CaloriesBurned:    320,
		StartTime:         base.Add(-time.Hour),
		AdditionalMetrics: map[string]any{"avgHeartRate": 142},
		CreatedAt:         base,
		UpdatedAt:         base,
	}
	newer := older
	newer.ID = uuid.NewString()
	newer.AdditionalMetrics = nil
	newer.CreatedAt = base.Add(time.Minute)
	other := older
	other.ID = uuid.NewString()
	other.OwnerID = "u-2"

	for _, record := range []domain.ActivityRecord{older, newer, other} {
		require.NoError(t, repo.Create(ctx, record))
	}

	got, err := repo.Get(ctx, older.ID)
	require.NoError(t, err)
	require.Equal(t, older.OwnerID, got.OwnerID)
	require.Equal(t, older.StartTime, got.StartTime)
	require.EqualValues(t, 142, got.AdditionalMetrics["avgHeartRate"])

	list, err := repo.ListByOwner(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, newer.ID, list[0].ID)
	require.Equal(t, older.ID, list[1].ID)

	deleted, err := repo.Delete(ctx, older.ID)
	require.NoError(t, err)
	require.True(t, deleted)

	deleted, err = repo.Delete(ctx, older.ID)
	require.NoError(t, err)
	require.False(t, deleted)

	missing, err := repo.Get(ctx, older.ID)
	require.NoError(t, err)
	require.Nil(t, missing)
}
