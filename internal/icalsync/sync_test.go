package icalsync_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jupiter/internal/app"
	"jupiter/internal/config"
	"jupiter/internal/db"
	"jupiter/internal/domain"
	"jupiter/internal/icalsync"
	"jupiter/internal/migrate"
	"jupiter/internal/repo"
	"jupiter/internal/uow"
)

var seeded = time.Date(2024, 8, 12, 9, 0, 0, 0, time.UTC)

// feeds serves calendars by path and answers 404 for anything else.
type feeds struct {
	mu     sync.Mutex
	bodies map[string][]byte
}

func (f *feeds) set(path string, body []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bodies[path] = body
}

func (f *feeds) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	body, ok := f.bodies[r.URL.Path]
	f.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/calendar")
	_, _ = w.Write(body)
}

type testEnv struct {
	Ctx   context.Context
	UOW   uow.Provider
	ECtx  domain.Ctx
	Boot  app.Bootstrap
	Feeds *feeds
	URL   string
	Sync  icalsync.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	conn, err := db.Open(db.Config{URL: "sqlite:///" + filepath.Join(t.TempDir(), "jupiter.sqlite")})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))

	f := &feeds{bodies: map[string][]byte{}}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	logger, _ := test.NewNullLogger()
	env := &testEnv{
		Ctx:   context.Background(),
		UOW:   uow.Provider{DB: conn},
		ECtx:  domain.NewCtx(domain.EventSourceCLI, seeded),
		Feeds: f,
		URL:   srv.URL,
	}
	env.Sync = icalsync.Service{
		UOW:      env.UOW,
		Locks:    uow.NewLocks(),
		Log:      logger,
		Now:      func() time.Time { return seeded },
		Fetcher:  icalsync.HTTPFetcher{Client: srv.Client(), Attempts: 1, Timeout: 5 * time.Second},
		Parallel: 2,
	}
	env.do(t, func(ctx context.Context, u *uow.UnitOfWork) error {
		boot, err := app.InitWorkspace(ctx, u, env.ECtx, config.FeatureControls(config.EnvLocal), app.InitArgs{
			UserName: "Ada", UserEmail: "ada@example.com", WorkspaceName: "Home",
		})
		env.Boot = boot
		return err
	})
	return env
}

func (env *testEnv) do(t *testing.T, fn func(ctx context.Context, u *uow.UnitOfWork) error) {
	t.Helper()
	require.NoError(t, env.UOW.Do(env.Ctx, fn))
}

func (env *testEnv) addStream(t *testing.T, path string) *domain.ScheduleStream {
	t.Helper()
	var st *domain.ScheduleStream
	env.do(t, func(ctx context.Context, u *uow.UnitOfWork) error {
		sd, err := uow.For[*domain.ScheduleDomain](u).LoadByParent(ctx, env.Boot.Workspace.RefID)
		require.NoError(t, err)
		st, err = domain.NewScheduleStreamFromExternalICal(env.ECtx, sd.RefID, "", "", env.URL+path)
		require.NoError(t, err)
		_, err = uow.For[*domain.ScheduleStream](u).Create(ctx, st)
		return err
	})
	return st
}

func (env *testEnv) sync(t *testing.T) *domain.ScheduleExternalSyncLogEntry {
	t.Helper()
	return env.syncWith(t, false)
}

func (env *testEnv) syncWith(t *testing.T, evenIfNotModified bool) *domain.ScheduleExternalSyncLogEntry {
	t.Helper()
	entry, err := env.Sync.Run(env.Ctx, icalsync.Args{
		User:                  env.Boot.User.RefID,
		Workspace:             env.Boot.Workspace.RefID,
		Today:                 domain.MustParseDate("2024-08-12"),
		SyncEvenIfNotModified: evenIfNotModified,
	})
	require.NoError(t, err)
	require.False(t, entry.Opened)
	return entry
}

type mirrored struct {
	inDay    []*domain.ScheduleEventInDay
	fullDays []*domain.ScheduleEventFullDays
	blocks   map[domain.EntityID]*domain.TimeEventInDayBlock
	notes    map[domain.EntityID]*domain.Note
}

func (env *testEnv) mirrored(t *testing.T, stream domain.EntityID) mirrored {
	t.Helper()
	out := mirrored{blocks: map[domain.EntityID]*domain.TimeEventInDayBlock{}, notes: map[domain.EntityID]*domain.Note{}}
	env.do(t, func(ctx context.Context, u *uow.UnitOfWork) error {
		byStream := repo.Query{AllowArchived: true, Filter: map[string]any{"schedule_stream_ref_id": int64(stream)}}
		var err error
		if out.inDay, err = uow.For[*domain.ScheduleEventInDay](u).FindAllGeneric(ctx, byStream); err != nil {
			return err
		}
		if out.fullDays, err = uow.For[*domain.ScheduleEventFullDays](u).FindAllGeneric(ctx, byStream); err != nil {
			return err
		}
		blocks, err := uow.For[*domain.TimeEventInDayBlock](u).FindAllGeneric(ctx, repo.Query{
			Filter: map[string]any{"namespace": string(domain.NamespaceScheduleEventInDay)},
		})
		if err != nil {
			return err
		}
		for _, b := range blocks {
			out.blocks[b.SourceEntityRefID] = b
		}
		notes, err := uow.For[*domain.Note](u).FindAllGeneric(ctx, repo.Query{
			Filter: map[string]any{"domain": string(domain.NoteDomainScheduleEventInDay)},
		})
		if err != nil {
			return err
		}
		for _, n := range notes {
			out.notes[n.SourceEntityRefID] = n
		}
		return nil
	})
	return out
}

const (
	standupBare = "UID:standup\nDTSTART:20240813T100000Z\nDTEND:20240813T103000Z\nSUMMARY:Standup"
	standup     = standupBare + "\nDESCRIPTION:Agenda"
	standupMov  = "UID:standup\nDTSTART:20240813T110000Z\nDTEND:20240813T120000Z\nSUMMARY:Standup\nDESCRIPTION:New agenda"
	offsite     = "UID:offsite\nDTSTART;VALUE=DATE:20240820\nDTEND;VALUE=DATE:20240822\nSUMMARY:Offsite"
)

func TestSyncMirrorsMovesAndArchivesEvents(t *testing.T) {
	env := newTestEnv(t)
	stream := env.addStream(t, "/work.ics")

	env.Feeds.set("/work.ics", calendar(standup, offsite))
	first := env.sync(t)
	require.Len(t, first.PerStreamResults, 1)
	assert.True(t, first.PerStreamResults[0].Success)

	got := env.mirrored(t, stream.RefID)
	require.Len(t, got.inDay, 1)
	require.Len(t, got.fullDays, 1)
	ev := got.inDay[0]
	assert.Equal(t, "standup", ev.ExternalUID)
	require.Contains(t, got.blocks, ev.RefID)
	assert.Equal(t, "10:00", got.blocks[ev.RefID].StartTimeInDay)
	assert.Equal(t, 30, got.blocks[ev.RefID].DurationMins)
	require.Contains(t, got.notes, ev.RefID)
	assert.Equal(t, "Agenda", got.notes[ev.RefID].Content.PlainText())

	env.Feeds.set("/work.ics", calendar(standupMov, offsite))
	second := env.sync(t)
	assert.NotZero(t, second.Touched())
	got = env.mirrored(t, stream.RefID)
	assert.Equal(t, "11:00", got.blocks[ev.RefID].StartTimeInDay)
	assert.Equal(t, 60, got.blocks[ev.RefID].DurationMins)
	assert.Equal(t, "New agenda", got.notes[ev.RefID].Content.PlainText())

	third := env.sync(t)
	assert.Zero(t, third.Touched())

	env.Feeds.set("/work.ics", calendar(standupMov))
	fourth := env.sync(t)
	assert.NotEmpty(t, fourth.EntityArchived)
	got = env.mirrored(t, stream.RefID)
	require.Len(t, got.fullDays, 1)
	assert.True(t, got.fullDays[0].Archived)
	assert.Equal(t, domain.ArchivalReasonExternalRemoved, got.fullDays[0].ArchivalReason)
	assert.False(t, got.inDay[0].Archived)
}

func TestSyncRecordsFailingStreamAndKeepsGoing(t *testing.T) {
	env := newTestEnv(t)
	good := env.addStream(t, "/work.ics")
	bad := env.addStream(t, "/gone.ics")
	env.Feeds.set("/work.ics", calendar(standup))

	entry := env.sync(t)
	require.Len(t, entry.PerStreamResults, 2)
	results := map[domain.EntityID]domain.StreamSyncResult{}
	for _, r := range entry.PerStreamResults {
		results[r.StreamRefID] = r
	}
	assert.True(t, results[good.RefID].Success)
	assert.False(t, results[bad.RefID].Success)
	assert.NotEmpty(t, results[bad.RefID].Error)
	assert.Len(t, env.mirrored(t, good.RefID).inDay, 1)
}

func TestSyncSkipsEventsNotModifiedSinceStored(t *testing.T) {
	env := newTestEnv(t)
	stream := env.addStream(t, "/work.ics")

	stale := "\nLAST-MODIFIED:20240801T000000Z"
	env.Feeds.set("/work.ics", calendar(standup+stale))
	env.sync(t)
	ev := env.mirrored(t, stream.RefID).inDay[0]

	env.Feeds.set("/work.ics", calendar(standupMov+stale))
	skipped := env.sync(t)
	assert.Zero(t, skipped.Touched())
	got := env.mirrored(t, stream.RefID)
	assert.Equal(t, "10:00", got.blocks[ev.RefID].StartTimeInDay)
	assert.Equal(t, "Agenda", got.notes[ev.RefID].Content.PlainText())

	forced := env.syncWith(t, true)
	assert.NotZero(t, forced.Touched())
	got = env.mirrored(t, stream.RefID)
	assert.Equal(t, "11:00", got.blocks[ev.RefID].StartTimeInDay)
	assert.Equal(t, 60, got.blocks[ev.RefID].DurationMins)
	assert.Equal(t, "New agenda", got.notes[ev.RefID].Content.PlainText())
}

func TestSyncBlanksNoteWhenDescriptionGoesAway(t *testing.T) {
	env := newTestEnv(t)
	stream := env.addStream(t, "/work.ics")

	env.Feeds.set("/work.ics", calendar(standupBare+"\nDESCRIPTION:Agenda\\n\\nBring notes"))
	env.sync(t)
	got := env.mirrored(t, stream.RefID)
	ev := got.inDay[0]
	require.Contains(t, got.notes, ev.RefID)
	assert.Equal(t, "Agenda\n\nBring notes", got.notes[ev.RefID].Content.PlainText())

	env.Feeds.set("/work.ics", calendar(standupBare))
	env.sync(t)
	got = env.mirrored(t, stream.RefID)
	require.Contains(t, got.notes, ev.RefID)
	note := got.notes[ev.RefID]
	assert.False(t, note.Archived)
	assert.Empty(t, note.Content)
	assert.False(t, got.inDay[0].Archived)
}
