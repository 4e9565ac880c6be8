// Licensed under the MIT License. See LICENSE file in the project root for details.

package core

import (
	"context"
	"errors"
	"testing"

	"pgregory.net/rapid"
)

// model is the reference implementation: a plain map from id to status.
type model struct {
	books map[int]Status
}

func newModel() *model {
	return &model{books: make(map[int]Status)}
}

// TestPropertySequentialOperations checks that the catalog behaves like a
// simple map for arbitrary sequential operation sequences, in either
// reclamation mode, and that live ids never duplicate.
func TestPropertySequentialOperations(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		lib := newTestLibrary()
		defer lib.Close(ctx)

		m := newModel()
		idGen := rapid.IntRange(0, 9)
		modeGen := rapid.SampledFrom([]ReclaimMode{Wait, Defer})
		statusGen := rapid.SampledFrom([]Status{Available, Borrowed})

		steps := rapid.IntRange(1, 60).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			id := idGen.Draw(t, "id")
			mode := modeGen.Draw(t, "mode")

			switch rapid.IntRange(0, 3).Draw(t, "op") {
			case 0: // add, honoring the caller's id discipline
				if _, exists := m.books[id]; exists {
					continue
				}
				if err := lib.Add(ctx, id, "n", "a"); err != nil {
					t.Fatalf("add(%d): %v", id, err)
				}
				m.books[id] = Borrowed

			case 1: // update
				status := statusGen.Draw(t, "status")
				err := lib.Update(ctx, id, status, mode)
				cur, exists := m.books[id]
				switch {
				case !exists:
					if !errors.Is(err, ErrNotFound) {
						t.Fatalf("update(%d) on missing id: %v", id, err)
					}
				case cur == status:
					if !errors.Is(err, ErrAlreadyInState) {
						t.Fatalf("update(%d) no-op transition: %v", id, err)
					}
				default:
					if err != nil {
						t.Fatalf("update(%d): %v", id, err)
					}
					m.books[id] = status
				}

			case 2: // delete
				err := lib.Delete(ctx, id, mode)
				if _, exists := m.books[id]; exists {
					if err != nil {
						t.Fatalf("delete(%d): %v", id, err)
					}
					delete(m.books, id)
				} else if !errors.Is(err, ErrNotFound) {
					t.Fatalf("delete(%d) on missing id: %v", id, err)
				}

			case 3: // get
				book, err := lib.Get(ctx, id)
				status, exists := m.books[id]
				if !exists {
					if !errors.Is(err, ErrNotFound) {
						t.Fatalf("get(%d) on missing id: %v", id, err)
					}
					continue
				}
				if err != nil {
					t.Fatalf("get(%d): %v", id, err)
				}
				if book.ID != id || book.Status != status {
					t.Fatalf("get(%d) = %+v, want status %s", id, book, status)
				}
			}
		}

		// Final state: same ids, no duplicates.
		seen := make(map[int]int)
		lib.Ascend(ctx, func(b Book) bool {
			seen[b.ID]++
			return true
		})
		if len(seen) != len(m.books) {
			t.Fatalf("live ids = %d, model has %d", len(seen), len(m.books))
		}
		for id, n := range seen {
			if n != 1 {
				t.Fatalf("id %d appears %d times", id, n)
			}
			if _, exists := m.books[id]; !exists {
				t.Fatalf("id %d live but not in model", id)
			}
		}
	})
}

// TestPropertyReclaimModeUnobservable runs the same operation sequence once
// per mode and checks the query results are identical; the mode may only
// affect when memory is freed.
func TestPropertyReclaimModeUnobservable(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()

		type step struct {
			op, id int
			status Status
		}
		steps := rapid.SliceOfN(rapid.Custom(func(t *rapid.T) step {
			return step{
				op:     rapid.IntRange(0, 2).Draw(t, "op"),
				id:     rapid.IntRange(0, 4).Draw(t, "id"),
				status: rapid.SampledFrom([]Status{Available, Borrowed}).Draw(t, "status"),
			}
		}), 1, 40).Draw(t, "steps")

		run := func(mode ReclaimMode) []string {
			lib := newTestLibrary()
			defer lib.Close(ctx)

			var results []string
			for _, s := range steps {
				var err error
				switch s.op {
				case 0:
					if _, getErr := lib.Get(ctx, s.id); errors.Is(getErr, ErrNotFound) {
						err = lib.Add(ctx, s.id, "n", "a")
					}
				case 1:
					err = lib.Update(ctx, s.id, s.status, mode)
				case 2:
					err = lib.Delete(ctx, s.id, mode)
				}
				if err != nil {
					results = append(results, err.Error())
				} else {
					results = append(results, "ok")
				}
				if book, getErr := lib.Get(ctx, s.id); getErr == nil {
					results = append(results, book.Status.String())
				} else {
					results = append(results, "absent")
				}
			}
			return results
		}

		waitResults := run(Wait)
		deferResults := run(Defer)
		if len(waitResults) != len(deferResults) {
			t.Fatalf("result length mismatch: %d vs %d", len(waitResults), len(deferResults))
		}
		for i := range waitResults {
			if waitResults[i] != deferResults[i] {
				t.Fatalf("step %d: wait=%q defer=%q", i, waitResults[i], deferResults[i])
			}
		}
	})
}
