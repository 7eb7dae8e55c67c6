//go:build integration

package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"example.com/fitness/services/user-service/internal/domain"
)

func newRepository(t *testing.T) *Repository {
	t.Helper()
	ctx := context.Background()

	pg, err := postgrescontainer.Run(ctx, "postgres:16-alpine",
		postgrescontainer.WithDatabase("fitness"),
		postgrescontainer.WithUsername("platform"),
		postgrescontainer.WithPassword("platform"),
		postgrescontainer.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, waitForDatabase(ctx, connStr))

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	repo := NewRepository(pool)
	require.NoError(t, repo.EnsureSchema(ctx))
	require.NoError(t, repo.EnsureSchema(ctx))
	return repo
}

func newUser(externalID, email string) domain.User {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return domain.User{
		ID:           uuid.NewString(),
		ExternalID:   externalID,
		Email:        email,
		FirstName:    "Ada",
		LastName:     "Lovelace",
		Role:         domain.RoleUser,
		PasswordHash: []byte("hash"),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestRepositoryInsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := newRepository(t)

	first, created, err := repo.Insert(ctx, newUser("ext-1", "ada@example.com"))
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := repo.Insert(ctx, newUser("ext-1", "changed@example.com"))
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, "ada@example.com", second.Email)

	byExternal, err := repo.Get(ctx, "ext-1")
	require.NoError(t, err)
	require.Equal(t, first.ID, byExternal.ID)

	byID, err := repo.Get(ctx, first.ID)
	require.NoError(t, err)
	require.Equal(t, "ext-1", byID.ExternalID)
	require.Equal(t, domain.RoleUser, byID.Role)

	missing, err := repo.Get(ctx, "nobody")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestRepositoryEmailTaken(t *testing.T) {
	ctx := context.Background()
	repo := newRepository(t)

	_, _, err := repo.Insert(ctx, newUser("ext-1", "ada@example.com"))
	require.NoError(t, err)

	_, _, err = repo.Insert(ctx, newUser("ext-2", "ADA@example.com"))
	require.ErrorIs(t, err, domain.ErrEmailTaken)
}

func TestRepositoryConcurrentInsertSingleRow(t *testing.T) {
	ctx := context.Background()
	repo := newRepository(t)

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = make(map[string]struct{})
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			user, _, err := repo.Insert(ctx, newUser("ext-race", "race@example.com"))
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			ids[user.ID] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, ids, 1)
	users, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}
