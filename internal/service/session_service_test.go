package service

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"log-onboarding-engine/internal/fields"
	"log-onboarding-engine/internal/logging"
	"log-onboarding-engine/internal/parser"
	"log-onboarding-engine/internal/regex"
	"log-onboarding-engine/internal/repository"
	"log-onboarding-engine/internal/repository/memory"
)

func newTestSessionService() *SessionService {
	return NewSessionService(memory.NewRepository(), newTestExtractionService()).
		WithLogger(logging.NewTestLogger(io.Discard))
}

func countBySource(records []fields.FieldRecord, source fields.Provenance) int {
	return len(fields.BySource(records, source))
}

func TestSessionService_Lifecycle(t *testing.T) {
	svc := newTestSessionService()
	ctx := context.Background()

	t.Run("Create and get", func(t *testing.T) {
		created, err := svc.CreateSession(ctx, kvLine, "")
		require.NoError(t, err)
		assert.NotEmpty(t, created.ID)
		assert.Empty(t, created.Fields)

		got, err := svc.GetSession(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, kvLine, got.Sample)
	})

	t.Run("Invalid sample is refused", func(t *testing.T) {
		_, err := svc.CreateSession(ctx, "bad\x00", "")
		assert.ErrorIs(t, err, ErrInvalidSample)
	})

	t.Run("Unknown session", func(t *testing.T) {
		_, err := svc.RunAutoExtraction(ctx, "missing")
		assert.ErrorIs(t, err, repository.ErrSessionNotFound)
	})

	t.Run("Cleanup removes stale sessions", func(t *testing.T) {
		svc := newTestSessionService()
		_, err := svc.CreateSession(ctx, kvLine, "")
		require.NoError(t, err)

		deleted, err := svc.CleanupSessions(ctx, -time.Hour)
		require.NoError(t, err)
		assert.Equal(t, int64(1), deleted)
	})
}

func TestSessionService_AutoExtraction(t *testing.T) {
	svc := newTestSessionService()
	ctx := context.Background()

	t.Run("Sets artifacts and merges auto_detect fields", func(t *testing.T) {
		session, err := svc.CreateSession(ctx, kvLine, "")
		require.NoError(t, err)

		updated, err := svc.RunAutoExtraction(ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, string(parser.FormatKeyValue), updated.Format)
		assert.Equal(t, parser.SourcetypeKV, updated.Sourcetype)
		assert.Equal(t, "%Y-%m-%d %H:%M:%S", updated.Timestamp.Format)
		assert.Equal(t, 4, countBySource(updated.Fields, fields.SourceAutoDetect))
		assert.NotEmpty(t, updated.Pattern)
	})

	t.Run("Running twice does not duplicate fields", func(t *testing.T) {
		session, err := svc.CreateSession(ctx, kvLine, "my_sourcetype")
		require.NoError(t, err)

		first, err := svc.RunAutoExtraction(ctx, session.ID)
		require.NoError(t, err)
		second, err := svc.RunAutoExtraction(ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, first.Fields, second.Fields)
		assert.Equal(t, "my_sourcetype", second.Sourcetype)
	})

	t.Run("Imported platform fields are left out", func(t *testing.T) {
		session, err := svc.CreateSession(ctx, kvLine, "")
		require.NoError(t, err)

		_, err = svc.ImportExistingFields(ctx, session.ID, []fields.FieldRecord{{Name: "user", Type: fields.TypeString}})
		require.NoError(t, err)

		updated, err := svc.RunAutoExtraction(ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, countBySource(updated.Fields, fields.SourceSplunkExisting))
		assert.NotContains(t, fields.Names(fields.BySource(updated.Fields, fields.SourceAutoDetect)), "user")
		assert.NotContains(t, updated.Pattern, "(?<user>")
	})

	t.Run("Import after extraction rebuilds the pattern", func(t *testing.T) {
		session, err := svc.CreateSession(ctx, kvLine, "")
		require.NoError(t, err)
		extracted, err := svc.RunAutoExtraction(ctx, session.ID)
		require.NoError(t, err)
		require.Contains(t, extracted.Pattern, "(?<status>")

		updated, err := svc.ImportExistingFields(ctx, session.ID, []fields.FieldRecord{{Name: "status", Value: "200"}})
		require.NoError(t, err)
		assert.NotContains(t, updated.Pattern, "(?<status>")
		assert.Contains(t, updated.Pattern, "(?<user>")

		imported := fields.BySource(updated.Fields, fields.SourceSplunkExisting)
		require.Len(t, imported, 1)
		assert.Equal(t, 1.0, imported[0].Confidence)
		assert.False(t, imported[0].FromRegex)
	})
}

func TestSessionService_CustomRegex(t *testing.T) {
	svc := newTestSessionService()
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, kvLine, "")
	require.NoError(t, err)
	_, err = svc.RunAutoExtraction(ctx, session.ID)
	require.NoError(t, err)

	t.Run("Matching pattern adds custom fields beside auto fields", func(t *testing.T) {
		out, err := svc.ApplyCustomRegex(ctx, session.ID, `user=(\w+)`)
		require.NoError(t, err)
		assert.Equal(t, 1, out.Result.MatchCount)
		assert.Equal(t, 1, countBySource(out.Session.Fields, fields.SourceCustomRegex))
		assert.Equal(t, 4, countBySource(out.Session.Fields, fields.SourceAutoDetect))
		assert.Equal(t, `user=(?<clientip>\w+)`, out.Session.Pattern)
	})

	t.Run("A new pattern replaces the previous custom fields", func(t *testing.T) {
		out, err := svc.ApplyCustomRegex(ctx, session.ID, `action="(?<act>\w+)" status=(?<code>\d+)`)
		require.NoError(t, err)
		custom := fields.BySource(out.Session.Fields, fields.SourceCustomRegex)
		assert.Equal(t, []string{"act", "code"}, fields.Names(custom))
	})

	t.Run("Pattern without match leaves the session unchanged", func(t *testing.T) {
		before, err := svc.GetSession(ctx, session.ID)
		require.NoError(t, err)

		out, err := svc.ApplyCustomRegex(ctx, session.ID, `nothing=(\d+)`)
		require.NoError(t, err)
		assert.True(t, out.Result.NoMatch())
		assert.Equal(t, before.Fields, out.Session.Fields)
		assert.Equal(t, before.Pattern, out.Session.Pattern)
	})

	t.Run("Invalid pattern is reported", func(t *testing.T) {
		_, err := svc.ApplyCustomRegex(ctx, session.ID, `(`)
		assert.True(t, regex.IsInvalidPattern(err))
	})
}

func TestSessionService_AIResult(t *testing.T) {
	svc := newTestSessionService()
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, kvLine, "")
	require.NoError(t, err)

	t.Run("Combined regex becomes the session pattern", func(t *testing.T) {
		result := AIResult{
			Sourcetype:    "auth_events",
			CombinedRegex: `user=(?P<user>\w+)`,
			TimeFormat:    "%Y-%m-%d %H:%M:%S",
		}

		out, err := svc.AcceptAIResult(ctx, session.ID, result, true)
		require.NoError(t, err)
		assert.Equal(t, `user=(?<user>\w+)`, out.Session.Pattern)
		assert.Equal(t, "auth_events", out.Session.Sourcetype)
		assert.Equal(t, "25", out.Session.Timestamp.MaxLookahead)
		assert.Equal(t, 1, countBySource(out.Session.Fields, fields.SourceAIDetection))
	})

	t.Run("Accepting again replaces the AI fields", func(t *testing.T) {
		result := AIResult{Fields: []AIField{{Name: "user", Regex: `user=(\w+)`}, {Name: "status", Regex: `status=(\d+)`}}}

		out, err := svc.AcceptAIResult(ctx, session.ID, result, false)
		require.NoError(t, err)
		ai := fields.BySource(out.Session.Fields, fields.SourceAIDetection)
		assert.Equal(t, []string{"user", "status"}, fields.Names(ai))
		assert.Equal(t, `user=(?<user>\w+)`, out.Session.Pattern)
	})
}

func TestSessionService_MergeFields(t *testing.T) {
	svc := newTestSessionService()
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, kvLine, "")
	require.NoError(t, err)

	t.Run("Unknown provenance", func(t *testing.T) {
		_, err := svc.MergeFields(ctx, session.ID, nil, fields.Provenance("manual"))
		assert.Error(t, err)
	})

	t.Run("Records of another provenance are dropped", func(t *testing.T) {
		batch := []fields.FieldRecord{
			fields.New("a", "1", 0.5, fields.SourceCustomRegex, true),
			fields.New("b", "2", 0.5, fields.SourceAIDetection, true),
		}
		updated, err := svc.MergeFields(ctx, session.ID, batch, fields.SourceCustomRegex)
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, fields.Names(updated.Fields))
	})

	t.Run("Concurrent merges of different provenances all land", func(t *testing.T) {
		sources := []fields.Provenance{fields.SourceAutoDetect, fields.SourceCustomRegex, fields.SourceAIDetection, fields.SourceSplunkExisting}

		var wg sync.WaitGroup
		for _, source := range sources {
			source := source
			wg.Add(1)
			go func() {
				defer wg.Done()
				batch := []fields.FieldRecord{fields.New("f_"+string(source), "v", 0.5, source, false)}
				_, err := svc.MergeFields(ctx, session.ID, batch, source)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		got, err := svc.GetSession(ctx, session.ID)
		require.NoError(t, err)
		require.Len(t, got.Fields, 4)
		for _, source := range sources {
			assert.Equal(t, 1, countBySource(got.Fields, source))
		}
	})
}
