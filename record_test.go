package sheetdb

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type Note struct {
	RecordMeta
	Title string
	Body  string

	calls []string
}

func (n *Note) BeforeSave(ctx context.Context) error {
	n.calls = append(n.calls, "BeforeSave")
	return nil
}

func (n *Note) AfterSave(ctx context.Context) error {
	n.calls = append(n.calls, "AfterSave")
	return nil
}

func (n *Note) BeforeUpdate(ctx context.Context) error {
	n.calls = append(n.calls, "BeforeUpdate")
	return nil
}

func (n *Note) AfterUpdate(ctx context.Context) error {
	n.calls = append(n.calls, "AfterUpdate")
	return nil
}

func (n *Note) BeforeDelete(ctx context.Context) error {
	n.calls = append(n.calls, "BeforeDelete")
	return nil
}

func (n *Note) AfterDelete(ctx context.Context) error {
	n.calls = append(n.calls, "AfterDelete")
	return nil
}

func (n *Note) Validate() error {
	if n.Title == "bad" {
		return fmt.Errorf("bad title")
	}
	return nil
}

var (
	notesSchema = &Schema{}
	notesTable  = AddTable[Note](notesSchema, "Notes", TableOpts{
		Rules: map[string]FieldRule{
			"Title": {Required: true, MinLen: 2},
		},
	})
)

func TestRecordLifecycle(t *testing.T) {
	ctx := context.Background()
	mem := NewMemStore()
	cs := &countingStore{SheetStore: mem}
	s := setupStoreNoClose(t, cs, notesSchema)

	n := &Note{Title: "hello", Body: "world"}
	if !n.IsNew() || n.IsDirty() {
		t.Fatal("** zero value must be new and clean")
	}

	// Clean records save as a no-op without touching the store.
	ensure0(t, Save(ctx, s, n))
	deepEqual(t, cs.appends+cs.writes, 0)
	isempty(t, n.calls)

	n.MarkDirty()
	ensure0(t, Save(ctx, s, n))
	if n.IsNew() || n.IsDirty() {
		t.Error("** saved record must be persisted and clean")
	}
	deepEqual(t, n.Row(), firstDataRow)
	deepEqual(t, cs.appends, 1)
	deepEqual(t, n.calls, []string{"BeforeSave", "AfterSave"})

	// Updates go through the update hooks and a positional write.
	n.calls = nil
	n.Body = "universe"
	n.MarkDirty()
	ensure0(t, Save(ctx, s, n))
	deepEqual(t, cs.writes, 1)
	deepEqual(t, n.calls, []string{"BeforeUpdate", "BeforeSave", "AfterUpdate", "AfterSave"})

	got := must(All[Note](ctx, s))
	deepEqual(t, len(got), 1)
	deepEqual(t, got[0].Body, "universe")

	// Delete removes the physical row and resets the lifecycle state.
	n.calls = nil
	ensure0(t, Delete(ctx, s, n))
	deepEqual(t, cs.deletes, 1)
	deepEqual(t, n.calls, []string{"BeforeDelete", "AfterDelete"})
	if !n.IsNew() {
		t.Error("** deleted record must be new again")
	}
	isempty(t, must(All[Note](ctx, s)))

	// Deleting an unsaved record is a no-op.
	n.calls = nil
	ensure0(t, Delete(ctx, s, n))
	deepEqual(t, cs.deletes, 1)
	isempty(t, n.calls)
}

func TestRecordDeleteEvictsCache(t *testing.T) {
	ctx := context.Background()
	mem := NewMemStore()
	cs := &countingStore{SheetStore: mem}
	s := setupStoreNoClose(t, cs, notesSchema)

	n := &Note{Title: "hello"}
	other := &Note{Title: "other"}
	for _, row := range []*Note{n, other} {
		row.MarkDirty()
		ensure0(t, Save(ctx, s, row))
	}

	// Warm: the saved instance is served from the cache.
	cs.reset()
	got := must(Get[Note](ctx, s, Filter{"Title": "hello"}))
	deepEqual(t, len(got), 1)
	deepEqual(t, cs.reads, 0)

	ensure0(t, Delete(ctx, s, n))

	// After delete the cache entry is gone: the same filter goes back to the
	// store and finds nothing.
	cs.reset()
	got = must(Get[Note](ctx, s, Filter{"Title": "hello"}))
	isempty(t, got)
	if cs.reads == 0 {
		t.Error("** wanted the query to round-trip to the store")
	}
}

func TestRecordValidationGate(t *testing.T) {
	ctx := context.Background()
	mem := NewMemStore()
	cs := &countingStore{SheetStore: mem}
	s := setupStoreNoClose(t, cs, notesSchema)

	n := &Note{Title: ""}
	n.MarkDirty()
	err := Save(ctx, s, n)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("** got %v, wanted ValidationError", err)
	}
	deepEqual(t, len(verr.Violations), 1)
	deepEqual(t, verr.Violations[0].Field, "Title")

	// The failed save writes nothing, runs no hooks, and leaves the record
	// dirty so a corrected retry goes through.
	deepEqual(t, cs.appends+cs.writes, 0)
	isempty(t, n.calls)
	if !n.IsDirty() || !n.IsNew() {
		t.Error("** record state must be untouched after a validation failure")
	}

	n.Title = "fixed"
	ensure0(t, Save(ctx, s, n))
	deepEqual(t, cs.appends, 1)
}

func TestRecordBusinessValidation(t *testing.T) {
	ctx := context.Background()
	s := setup(t, notesSchema)

	n := &Note{Title: "bad"}
	n.MarkDirty()
	err := Save(ctx, s, n)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("** got %v, wanted ValidationError", err)
	}
	isempty(t, verr.Violations)
	if verr.Err == nil {
		t.Error("** wanted the Validate() error carried through")
	}
}

func TestRecordTypeMismatchPanics(t *testing.T) {
	s := setup(t, notesSchema)

	defer func() {
		if recover() == nil {
			t.Error("** wanted a panic for a row of the wrong type")
		}
	}()
	_ = Save(context.Background(), s, &Person{Name: "x"})
}
