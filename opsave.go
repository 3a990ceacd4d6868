package sheetdb

import (
	"context"
	"reflect"
)

// Save persists a dirty record: validation gate, hooks, a single append or
// positional update, then the table's default re-sort. A no-op on records
// that are not dirty.
func Save(ctx context.Context, s *Store, row any) error {
	tbl := s.schema.TableByRow(row)
	rowVal := tbl.rowValOf(row)
	meta := tbl.rowMeta(rowVal)
	if !meta.dirty {
		if s.verbose {
			s.logf("db: SAVE.NOOP %s", tbl.name)
		}
		return nil
	}

	if err := s.validateRecord(tbl, rowVal); err != nil {
		return err
	}

	if meta.IsNew() {
		if err := callBeforeSave(ctx, row); err != nil {
			return err
		}
		first, err := s.sheets.AppendRows(ctx, tbl.name, [][]any{tbl.flattenRow(rowVal)})
		if err != nil {
			return err
		}
		meta.markClean(first)
		if s.verbose {
			s.logf("db: SAVE.NEW %s/%d", tbl.name, first)
		}
		if err := callAfterSave(ctx, row); err != nil {
			return err
		}
	} else {
		if err := callBeforeUpdate(ctx, row); err != nil {
			return err
		}
		if err := callBeforeSave(ctx, row); err != nil {
			return err
		}
		// Flatten after the hooks: they may mutate fields.
		err := s.sheets.WriteRange(ctx, tbl.name, meta.rowNum, 1, [][]any{tbl.flattenRow(rowVal)})
		if err != nil {
			return err
		}
		meta.markClean(meta.rowNum)
		if s.verbose {
			s.logf("db: SAVE %s/%d", tbl.name, meta.rowNum)
		}
		if err := callAfterUpdate(ctx, row); err != nil {
			return err
		}
		if err := callAfterSave(ctx, row); err != nil {
			return err
		}
	}

	s.cacheFor(tbl).put(tbl.cacheKey(rowVal), rowVal)
	return s.applyDefaultSort(ctx, tbl)
}

// Delete removes the record's physical row and drops it from the instance
// cache. A no-op on records that were never saved.
func Delete(ctx context.Context, s *Store, row any) error {
	tbl := s.schema.TableByRow(row)
	rowVal := tbl.rowValOf(row)
	meta := tbl.rowMeta(rowVal)
	if meta.IsNew() {
		return nil
	}

	if err := callBeforeDelete(ctx, row); err != nil {
		return err
	}
	if err := s.sheets.DeleteRow(ctx, tbl.name, meta.rowNum); err != nil {
		return err
	}
	if s.verbose {
		s.logf("db: DELETE %s/%d", tbl.name, meta.rowNum)
	}
	s.cacheFor(tbl).remove(tbl.cacheKey(rowVal))
	meta.markDeleted()
	return callAfterDelete(ctx, row)
}

func (s *Store) validateRecord(tbl *Table, rowVal reflect.Value) error {
	violations := tbl.validateFields(tbl.fieldsMap(rowVal))
	if len(violations) > 0 {
		return &ValidationError{Table: tbl.name, Violations: violations}
	}
	if v, ok := rowVal.Interface().(Validator); ok {
		if err := v.Validate(); err != nil {
			return &ValidationError{Table: tbl.name, Err: err}
		}
	}
	return nil
}

func callBeforeSave(ctx context.Context, row any) error {
	if h, ok := row.(BeforeSaver); ok {
		return h.BeforeSave(ctx)
	}
	return nil
}

func callAfterSave(ctx context.Context, row any) error {
	if h, ok := row.(AfterSaver); ok {
		return h.AfterSave(ctx)
	}
	return nil
}

func callBeforeUpdate(ctx context.Context, row any) error {
	if h, ok := row.(BeforeUpdater); ok {
		return h.BeforeUpdate(ctx)
	}
	return nil
}

func callAfterUpdate(ctx context.Context, row any) error {
	if h, ok := row.(AfterUpdater); ok {
		return h.AfterUpdate(ctx)
	}
	return nil
}

func callBeforeDelete(ctx context.Context, row any) error {
	if h, ok := row.(BeforeDeleter); ok {
		return h.BeforeDelete(ctx)
	}
	return nil
}

func callAfterDelete(ctx context.Context, row any) error {
	if h, ok := row.(AfterDeleter); ok {
		return h.AfterDelete(ctx)
	}
	return nil
}
