package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func newTestStores(t *testing.T) map[string]Store {
	t.Helper()

	sqlite, err := NewSQLite(filepath.Join(t.TempDir(), "data", "test.db"))
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() {
		if err := sqlite.Close(); err != nil {
			t.Fatalf("close sqlite store: %v", err)
		}
	})
	if err := sqlite.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate sqlite store: %v", err)
	}

	return map[string]Store{
		"sqlite": sqlite,
		"memory": NewMemory(),
	}
}

func keys(t *testing.T, store Store) []string {
	t.Helper()

	var out []string
	err := store.EachItem(context.Background(), func(key, value string) error {
		out = append(out, key)
		return nil
	})
	if err != nil {
		t.Fatalf("EachItem failed: %v", err)
	}
	return out
}

func equalKeys(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestGetSetRemove(t *testing.T) {
	for name, store := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if _, ok, err := store.GetItem(ctx, "a"); err != nil || ok {
				t.Fatalf("expected missing key, got ok=%v err=%v", ok, err)
			}

			if err := store.SetItem(ctx, "a", `{"id":"a"}`); err != nil {
				t.Fatalf("SetItem failed: %v", err)
			}
			value, ok, err := store.GetItem(ctx, "a")
			if err != nil || !ok {
				t.Fatalf("expected stored key, got ok=%v err=%v", ok, err)
			}
			if value != `{"id":"a"}` {
				t.Fatalf("unexpected value %q", value)
			}

			if err := store.RemoveItem(ctx, "a"); err != nil {
				t.Fatalf("RemoveItem failed: %v", err)
			}
			if _, ok, _ := store.GetItem(ctx, "a"); ok {
				t.Fatalf("expected key removed")
			}
			if err := store.RemoveItem(ctx, "a"); err != nil {
				t.Fatalf("removing a missing key should not fail: %v", err)
			}
		})
	}
}

func TestEachItemKeepsFirstWriteOrder(t *testing.T) {
	for name, store := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, k := range []string{"c", "a", "b"} {
				if err := store.SetItem(ctx, k, k); err != nil {
					t.Fatalf("SetItem %q: %v", k, err)
				}
			}
			if got := keys(t, store); !equalKeys(got, []string{"c", "a", "b"}) {
				t.Fatalf("unexpected order %v", got)
			}

			if err := store.SetItem(ctx, "c", "c2"); err != nil {
				t.Fatalf("overwrite: %v", err)
			}
			if got := keys(t, store); !equalKeys(got, []string{"c", "a", "b"}) {
				t.Fatalf("overwrite moved key: %v", got)
			}
			value, _, _ := store.GetItem(ctx, "c")
			if value != "c2" {
				t.Fatalf("expected overwritten value, got %q", value)
			}

			if err := store.RemoveItem(ctx, "c"); err != nil {
				t.Fatalf("RemoveItem: %v", err)
			}
			if err := store.SetItem(ctx, "c", "c3"); err != nil {
				t.Fatalf("re-create: %v", err)
			}
			if got := keys(t, store); !equalKeys(got, []string{"a", "b", "c"}) {
				t.Fatalf("re-created key should move to end: %v", got)
			}

			n, err := store.Count(ctx)
			if err != nil || n != 3 {
				t.Fatalf("expected count 3, got %d err=%v", n, err)
			}
		})
	}
}

func TestEachItemStopsOnError(t *testing.T) {
	stop := errors.New("stop")
	for name, store := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, k := range []string{"a", "b", "c"} {
				if err := store.SetItem(ctx, k, k); err != nil {
					t.Fatalf("SetItem %q: %v", k, err)
				}
			}

			visited := 0
			err := store.EachItem(ctx, func(key, value string) error {
				visited++
				if key == "b" {
					return stop
				}
				return nil
			})
			if !errors.Is(err, stop) {
				t.Fatalf("expected stop error, got %v", err)
			}
			if visited != 2 {
				t.Fatalf("expected 2 visits, got %d", visited)
			}
		})
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open("postgres", ""); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
	store, err := Open("memory", "")
	if err != nil {
		t.Fatalf("open memory store: %v", err)
	}
	if _, ok := store.(*MemoryStorage); !ok {
		t.Fatalf("expected *MemoryStorage, got %T", store)
	}
}

func TestListAfter(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	for _, id := range []string{"A", "B", "C"} {
		if err := store.SetItem(ctx, id, `{"id":"`+id+`"}`); err != nil {
			t.Fatalf("SetItem %q: %v", id, err)
		}
	}

	cases := map[string]int{"": 3, "A": 2, "B": 1, "C": 0, "Z": 0}
	for after, want := range cases {
		list, err := ListAfter(ctx, store, after)
		if err != nil {
			t.Fatalf("ListAfter(%q): %v", after, err)
		}
		if list == nil || len(list) != want {
			t.Fatalf("ListAfter(%q): expected %d items, got %d", after, want, len(list))
		}
	}

	list, _ := ListAfter(ctx, store, "B")
	if string(list[0]) != `{"id":"C"}` {
		t.Fatalf("expected C after B, got %s", list[0])
	}
}

func TestListAfterRejectsCorruptValues(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	if err := store.SetItem(ctx, "bad", "{not json"); err != nil {
		t.Fatalf("SetItem: %v", err)
	}
	if _, err := ListAfter(ctx, store, ""); err == nil {
		t.Fatalf("expected error for corrupt value")
	}
}
