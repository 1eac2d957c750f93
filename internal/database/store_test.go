package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	apperrors "github.com/edgard/scoutbot/internal/errors"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestStore(t *testing.T) (Store, *testClock) {
	t.Helper()

	db, err := NewDB(filepath.Join(t.TempDir(), "store.db"))
	if err != nil {
		t.Fatalf("NewDB() error = %v", err)
	}
	t.Cleanup(func() { CloseDB(db) })

	clock := &testClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	return NewStore(db, nil, WithClock(clock.Now)), clock
}

func TestInsertIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, clock := newTestStore(t)

	res, err := store.Insert(ctx, 42, "alice", 777)
	if err != nil || res != Inserted {
		t.Fatalf("first Insert() = %v, %v; want Inserted", res, err)
	}
	first, err := store.Find(ctx, 42)
	if err != nil || first == nil {
		t.Fatalf("Find() = %v, %v", first, err)
	}

	clock.Advance(time.Hour)
	res, err = store.Insert(ctx, 42, "renamed", 888)
	if err != nil || res != AlreadyExists {
		t.Fatalf("second Insert() = %v, %v; want AlreadyExists", res, err)
	}

	second, err := store.Find(ctx, 42)
	if err != nil || second == nil {
		t.Fatalf("Find() = %v, %v", second, err)
	}
	if second.Username != "alice" || second.AccessHash != 777 || !second.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("stored row changed: before %+v, after %+v", first, second)
	}
}

func TestFindMissing(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)

	rec, err := store.Find(context.Background(), 99)
	if err != nil || rec != nil {
		t.Fatalf("Find() = %v, %v; want nil, nil", rec, err)
	}
}

func TestInsertRejectsZeroID(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)

	_, err := store.Insert(context.Background(), 0, "", 0)
	if !apperrors.HasCode(err, apperrors.CodeStorage) {
		t.Fatalf("Insert(0) error = %v, want STORAGE", err)
	}
}

func TestListCandidates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, clock := newTestStore(t)

	// Inserted one minute apart: 3, 1, 2.
	for _, id := range []int64{3, 1, 2, 4} {
		if _, err := store.Insert(ctx, id, "", 0); err != nil {
			t.Fatal(err)
		}
		clock.Advance(time.Minute)
	}
	if err := store.MarkInvited(ctx, 1); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		q    CandidateQuery
		want []int64
	}{
		{
			name: "not invited only",
			q:    CandidateQuery{AsOf: clock.Now()},
			want: []int64{3, 2, 4},
		},
		{
			name: "include invited",
			q:    CandidateQuery{AsOf: clock.Now(), IncludeInvited: true},
			want: []int64{3, 1, 2, 4},
		},
		{
			name: "limited",
			q:    CandidateQuery{AsOf: clock.Now(), IncludeInvited: true, Limit: 2},
			want: []int64{3, 1},
		},
		{
			name: "as of excludes later records",
			q:    CandidateQuery{AsOf: time.Date(2024, 3, 1, 12, 1, 30, 0, time.UTC), IncludeInvited: true},
			want: []int64{3, 1},
		},
	}

	for _, tt := range tests {
		got, err := store.ListCandidates(ctx, tt.q)
		if err != nil {
			t.Fatalf("%s: ListCandidates() error = %v", tt.name, err)
		}
		if len(got) != len(tt.want) {
			t.Fatalf("%s: got %d records, want %d", tt.name, len(got), len(tt.want))
		}
		for i, rec := range got {
			if rec.TelegramID != tt.want[i] {
				t.Errorf("%s: record %d = %d, want %d", tt.name, i, rec.TelegramID, tt.want[i])
			}
			if !tt.q.IncludeInvited && rec.Invited() {
				t.Errorf("%s: invited record %d returned", tt.name, rec.TelegramID)
			}
		}
	}
}

func TestMarkInvitedSetsTimestamp(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, clock := newTestStore(t)

	if _, err := store.Insert(ctx, 5, "bob", 0); err != nil {
		t.Fatal(err)
	}
	clock.Advance(2 * time.Hour)
	if err := store.MarkInvited(ctx, 5); err != nil {
		t.Fatal(err)
	}
	if err := store.MarkInvited(ctx, 5); err != nil {
		t.Fatalf("second MarkInvited() error = %v", err)
	}

	rec, err := store.Find(ctx, 5)
	if err != nil || rec == nil {
		t.Fatalf("Find() = %v, %v", rec, err)
	}
	if !rec.Invited() || !rec.InvitedAt.Time.Equal(clock.Now()) {
		t.Errorf("InvitedAt = %+v, want %v", rec.InvitedAt, clock.Now())
	}
}

func TestDeleteAndCount(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, _ := newTestStore(t)

	for _, id := range []int64{10, 11, 12} {
		if _, err := store.Insert(ctx, id, "", 0); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.MarkInvited(ctx, 12); err != nil {
		t.Fatal(err)
	}

	total, invited, err := store.Count(ctx)
	if err != nil || total != 3 || invited != 1 {
		t.Fatalf("Count() = %d, %d, %v; want 3, 1", total, invited, err)
	}

	if err := store.Delete(ctx, 10); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(ctx, 10); err != nil {
		t.Fatalf("deleting a missing record: %v", err)
	}
	if rec, _ := store.Find(ctx, 10); rec != nil {
		t.Errorf("record 10 still present: %+v", rec)
	}

	deleted, err := store.DeleteAll(ctx)
	if err != nil || deleted != 2 {
		t.Fatalf("DeleteAll() = %d, %v; want 2", deleted, err)
	}
	total, _, err = store.Count(ctx)
	if err != nil || total != 0 {
		t.Fatalf("Count() after wipe = %d, %v", total, err)
	}
}

func TestRunSQLMaintenance(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)

	if err := store.RunSQLMaintenance(context.Background()); err != nil {
		t.Fatalf("RunSQLMaintenance() error = %v", err)
	}
}

func TestDSN(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"scout.db":                     "scout.db?_time_format=sqlite",
		"file:scout.db?cache=shared":   "file:scout.db?cache=shared&_time_format=sqlite",
		"scout.db?_time_format=sqlite": "scout.db?_time_format=sqlite",
	}
	for in, want := range tests {
		if got := DSN(in); got != want {
			t.Errorf("DSN(%q) = %q, want %q", in, got, want)
		}
	}
	if got := ExtractDBNameFromPath("file:my%20db.sqlite?cache=shared"); got != "my db.sqlite" {
		t.Errorf("ExtractDBNameFromPath() = %q", got)
	}
}
