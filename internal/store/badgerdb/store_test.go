package badgerdb

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/dwizi/permit-tracker/internal/store"
	"github.com/dwizi/permit-tracker/internal/tracking"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	badgerStore, err := Open(Options{
		InMemory: true,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = badgerStore.Close() })
	return badgerStore
}

func june(day int) civil.Date {
	return civil.Date{Year: 2026, Month: time.June, Day: day}
}

func testArea(dates ...civil.Date) tracking.PermitArea {
	return tracking.PermitArea{
		ID:   "4675338",
		Name: "Zion Wilderness",
		StartingAreas: []tracking.StartingArea{
			{Name: "Hop Valley", Sites: []tracking.Site{{ID: "d1", Name: "HV 1", Dates: dates}}},
		},
	}
}

func TestGetTrackingListNotFound(t *testing.T) {
	badgerStore := newTestStore(t)
	_, err := badgerStore.GetTrackingList(context.Background(), "telegram:7")
	require.ErrorIs(t, err, store.ErrTrackingListNotFound)
}

func TestUpsertMergeRoundTripsDocument(t *testing.T) {
	badgerStore := newTestStore(t)
	now := time.Date(2026, 5, 1, 8, 30, 0, 123, time.UTC)
	badgerStore.now = func() time.Time { return now }
	ctx := context.Background()

	saved, err := badgerStore.UpsertMerge(ctx, "telegram:7", "telegram:7", testArea(june(16), june(15)))
	require.NoError(t, err)
	require.Equal(t, []civil.Date{june(15), june(16)}, saved.PermitAreas[0].StartingAreas[0].Sites[0].Dates)

	loaded, err := badgerStore.GetTrackingList(ctx, "telegram:7")
	require.NoError(t, err)
	if diff := cmp.Diff(saved, loaded); diff != "" {
		t.Fatalf("persisted list mismatch (-saved +loaded):\n%s", diff)
	}
}

func TestUpsertMergeIsReplaySafe(t *testing.T) {
	badgerStore := newTestStore(t)
	now := time.Date(2026, 5, 1, 8, 30, 0, 0, time.UTC)
	badgerStore.now = func() time.Time { return now }
	ctx := context.Background()

	once, err := badgerStore.UpsertMerge(ctx, "u", "", testArea(june(15)))
	require.NoError(t, err)
	twice, err := badgerStore.UpsertMerge(ctx, "u", "", testArea(june(15)))
	require.NoError(t, err)
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Fatalf("replayed merge changed the list (-once +twice):\n%s", diff)
	}
}

func TestUpsertMergeKeepsAnyDateInEitherOrder(t *testing.T) {
	ctx := context.Background()
	dated := testArea(june(15))
	anyDate := tracking.AnyDates(testArea())
	for name, order := range map[string][2]tracking.PermitArea{
		"any then dated": {anyDate, dated},
		"dated then any": {dated, anyDate},
	} {
		t.Run(name, func(t *testing.T) {
			badgerStore := newTestStore(t)
			for _, area := range []tracking.PermitArea{order[0], order[1], order[1]} {
				_, err := badgerStore.UpsertMerge(ctx, "u", "", area)
				require.NoError(t, err)
			}
			loaded, err := badgerStore.GetTrackingList(ctx, "u")
			require.NoError(t, err)
			site := loaded.PermitAreas[0].StartingAreas[0].Sites[0]
			require.True(t, site.AnyDate)
			require.Empty(t, site.Dates)
		})
	}
}

func TestUpsertMergeRetriesConflicts(t *testing.T) {
	badgerStore := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for day := 1; day <= 8; day++ {
		wg.Add(1)
		go func(day int) {
			defer wg.Done()
			_, err := badgerStore.UpsertMerge(ctx, "u", "", testArea(june(day)))
			errs <- err
		}(day)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	list, err := badgerStore.GetTrackingList(ctx, "u")
	require.NoError(t, err)
	require.Len(t, list.PermitAreas[0].StartingAreas[0].Sites[0].Dates, 8)
}

func TestListTrackingLists(t *testing.T) {
	badgerStore := newTestStore(t)
	ctx := context.Background()
	for _, userID := range []string{"slack:U2", "slack:U1", "telegram:9"} {
		_, err := badgerStore.UpsertMerge(ctx, userID, userID, testArea(june(3)))
		require.NoError(t, err)
	}
	lists, err := badgerStore.ListTrackingLists(ctx)
	require.NoError(t, err)
	require.Len(t, lists, 3)
	require.Equal(t, "slack:U1", lists[0].UserID)
	require.Equal(t, "telegram:9", lists[2].UserID)
}

func TestPingAfterClose(t *testing.T) {
	badgerStore, err := Open(Options{InMemory: true})
	require.NoError(t, err)
	require.NoError(t, badgerStore.Ping(context.Background()))
	require.NoError(t, badgerStore.Close())
	require.Error(t, badgerStore.Ping(context.Background()))
}
