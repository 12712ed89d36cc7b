package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"feedpilot/internal/api"
)

func setupJournalTest(t *testing.T) (*EntryRepo, context.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "journal.db")
	migrations, err := filepath.Abs("migrations")
	require.NoError(t, err)
	require.NoError(t, RunMigrations(dbPath, migrations))

	db, err := Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewEntryRepo(db), ctx
}

func TestJournalRoundTrip(t *testing.T) {
	t.Parallel()
	repo, ctx := setupJournalTest(t)

	require.NoError(t, repo.RecordStart(ctx, "s1", api.SessionConfig{
		ClientID: "client", ClientSecret: "secret", MaxItems: 10,
	}))
	require.NoError(t, repo.RecordDecision(ctx, "s1", "d1", "offer-1", 10, 20))
	require.NoError(t, repo.RecordSkip(ctx, "s1", "d2", "offer-2"))
	require.NoError(t, repo.RecordSubmit(ctx, "s1", "task-42"))
	require.NoError(t, repo.RecordReset(ctx, "s1"))

	entries, err := repo.List(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, entries, 5)

	actions := make([]string, 0, len(entries))
	for _, e := range entries {
		actions = append(actions, e.Action)
	}
	require.Equal(t, []string{ActionStart, ActionDecide, ActionSkip, ActionSubmit, ActionReset}, actions)

	decide := entries[1]
	require.NotNil(t, decide.DecisionID)
	require.Equal(t, "d1", *decide.DecisionID)
	require.NotNil(t, decide.OfferID)
	require.Equal(t, "offer-1", *decide.OfferID)
	require.NotNil(t, decide.TypeID)
	require.Equal(t, 10, *decide.TypeID)
	require.NotNil(t, decide.DescriptionCategoryID)
	require.Equal(t, 20, *decide.DescriptionCategoryID)

	submit := entries[3]
	require.NotNil(t, submit.TaskID)
	require.Equal(t, "task-42", *submit.TaskID)
}

func TestJournalScopedBySession(t *testing.T) {
	t.Parallel()
	repo, ctx := setupJournalTest(t)

	require.NoError(t, repo.RecordSkip(ctx, "s1", "d1", "offer-1"))
	require.NoError(t, repo.RecordSkip(ctx, "s2", "d2", "offer-2"))

	entries, err := repo.List(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "s1", entries[0].SessionID)
}

func TestStartNoteRedactsSecret(t *testing.T) {
	t.Parallel()
	repo, ctx := setupJournalTest(t)

	require.NoError(t, repo.RecordStart(ctx, "s1", api.SessionConfig{
		ClientID: "client", ClientSecret: "hunter2", MaxItems: 10,
	}))

	entries, err := repo.List(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].Note)
	require.Contains(t, *entries[0].Note, "client")
	require.NotContains(t, *entries[0].Note, "hunter2")
}

func TestListEmptySession(t *testing.T) {
	t.Parallel()
	repo, ctx := setupJournalTest(t)

	entries, err := repo.List(ctx, "nope")
	require.NoError(t, err)
	require.Empty(t, entries)
}
