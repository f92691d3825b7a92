package sessions

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/commxr/commxr-go/internal/domain/entities/session"
	"github.com/commxr/commxr-go/internal/domain/repositories"
	"github.com/commxr/commxr-go/internal/infrastructure/observability/logging"
	"github.com/commxr/commxr-go/internal/infrastructure/persistence/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLRepo(t *testing.T) *SQLRepository {
	t.Helper()
	ctx := context.Background()
	logger := logging.NewNopLogger()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := database.NewConnectionWithLogger(ctx, "sqlite3", dsn, database.Options{MaxOpenConns: 1}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.NewTableCreator().CreateSchema(ctx, db))
	return NewSQLRepository(db, logger)
}

func repositoryContract(t *testing.T, repo repositories.SessionRepository) {
	ctx := context.Background()
	start := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	got, err := repo.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	s := session.NewSession("s-1", "owner-1", start)
	require.NoError(t, repo.Save(ctx, s))

	got, err = repo.Get(ctx, "s-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "owner-1", got.OwnerID)
	assert.Equal(t, session.StatusActive, got.Status)
	assert.True(t, start.Equal(got.StartedAt))
	assert.Nil(t, got.EndedAt)

	s.End(start.Add(time.Hour))
	require.NoError(t, repo.Save(ctx, s))
	old := session.NewSession("s-0", "owner-1", start)
	old.End(start.Add(time.Minute))
	require.NoError(t, repo.Save(ctx, old))
	require.NoError(t, repo.Save(ctx, session.NewSession("s-2", "owner-2", start)))

	got, err = repo.Get(ctx, "s-1")
	require.NoError(t, err)
	require.NotNil(t, got.EndedAt)
	assert.True(t, start.Add(time.Hour).Equal(*got.EndedAt))

	ids, err := repo.ListEndedBefore(ctx, start.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, []string{"s-0"}, ids)

	ids, err = repo.ListEndedBefore(ctx, start.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{"s-0", "s-1"}, ids)

	require.NoError(t, repo.Delete(ctx, "s-0"))
	require.NoError(t, repo.Delete(ctx, "s-0"))
	got, err = repo.Get(ctx, "s-0")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryRepository(t *testing.T) {
	repositoryContract(t, NewMemoryRepository())
}

func TestSQLRepository(t *testing.T) {
	repositoryContract(t, newSQLRepo(t))
}

func TestMemoryRepositoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	s := session.NewSession("s-1", "owner", time.Now())
	require.NoError(t, repo.Save(ctx, s))

	got, err := repo.Get(ctx, "s-1")
	require.NoError(t, err)
	got.End(time.Now())

	again, err := repo.Get(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, session.StatusActive, again.Status)
}
