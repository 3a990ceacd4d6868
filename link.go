package sheetdb

import (
	"context"
	"fmt"
	"strings"
)

// LinkDef declares a relationship field: the stored scalar string in Field is
// resolved against the target table by looking up LookupField. Declared once
// per field, not per instance.
type LinkDef struct {
	Field       string
	Target      string
	LookupField string // default "name"
	Separator   string // default ",", list links only
}

// linkValue is the internal facade contract shared by Link and LinkList.
type linkValue interface {
	linkRaw() string
	setLinkRaw(string)
	linkResolved() bool
	linkParts(sep string) []string
	bindTargets(parts []string, targets []any) bool
}

// Link is a single-cardinality relationship value: the raw stored string,
// plus the resolved target record once ResolveLinks has run. It stringifies
// to the raw value unchanged and only the raw value is ever persisted.
type Link[Row any] struct {
	raw    string
	target *Row
}

func NewLink[Row any](raw string) Link[Row] {
	return Link[Row]{raw: raw}
}

func (l Link[Row]) String() string { return l.raw }

// Raw returns the stored string form.
func (l Link[Row]) Raw() string { return l.raw }

// IsResolved reports whether the link currently has a backing target.
func (l Link[Row]) IsResolved() bool { return l.target != nil }

// Target returns the resolved record, or nil.
func (l Link[Row]) Target() *Row { return l.target }

// SetRaw replaces the stored string and discards any resolved target.
func (l *Link[Row]) SetRaw(raw string) {
	l.raw = raw
	l.target = nil
}

func (l *Link[Row]) linkRaw() string { return l.raw }

func (l *Link[Row]) setLinkRaw(raw string) {
	l.raw = raw
	l.target = nil
}

func (l *Link[Row]) linkResolved() bool { return l.target != nil }

func (l *Link[Row]) linkParts(sep string) []string {
	return []string{l.raw}
}

func (l *Link[Row]) bindTargets(parts []string, targets []any) bool {
	if len(targets) != 1 || targets[0] == nil {
		return false
	}
	l.target = targets[0].(*Row)
	return true
}

// LinkList is an array-cardinality relationship value: the raw stored string
// split on the declared separator, each trimmed part resolved independently
// in order. Unresolvable parts stay nil and count as resolution failures.
type LinkList[Row any] struct {
	raw      string
	parts    []string
	targets  []*Row
	complete bool
}

func NewLinkList[Row any](raw string) LinkList[Row] {
	return LinkList[Row]{raw: raw}
}

func (l LinkList[Row]) String() string { return l.raw }

// Raw returns the stored string form.
func (l LinkList[Row]) Raw() string { return l.raw }

// IsResolved reports whether every part has a backing target.
func (l LinkList[Row]) IsResolved() bool { return l.complete }

// Parts returns the trimmed string parts after resolution.
func (l LinkList[Row]) Parts() []string {
	return append([]string(nil), l.parts...)
}

func (l LinkList[Row]) Len() int { return len(l.parts) }

// At returns the resolved record for part i, or nil.
func (l LinkList[Row]) At(i int) *Row { return l.targets[i] }

// Targets returns the resolved records in part order; unresolved parts are
// nil entries.
func (l LinkList[Row]) Targets() []*Row {
	return append([]*Row(nil), l.targets...)
}

// Join joins the trimmed parts with the given separator without touching the
// stored raw string.
func (l LinkList[Row]) Join(sep string) string {
	return strings.Join(l.parts, sep)
}

// SetRaw replaces the stored string and discards all resolved targets.
func (l *LinkList[Row]) SetRaw(raw string) {
	l.raw = raw
	l.parts = nil
	l.targets = nil
	l.complete = false
}

func (l *LinkList[Row]) linkRaw() string { return l.raw }

func (l *LinkList[Row]) setLinkRaw(raw string) {
	l.SetRaw(raw)
}

func (l *LinkList[Row]) linkResolved() bool { return l.complete }

func (l *LinkList[Row]) linkParts(sep string) []string {
	return trimParts(strings.Split(l.raw, sep))
}

func (l *LinkList[Row]) bindTargets(parts []string, targets []any) bool {
	l.parts = parts
	l.targets = make([]*Row, len(targets))
	l.complete = len(targets) > 0
	for i, t := range targets {
		if t == nil {
			l.complete = false
			continue
		}
		l.targets[i] = t.(*Row)
	}
	return l.complete
}

// ResolveLinks materializes the link fields of a record. It returns true iff
// every non-empty link field resolved to an existing target. An unresolvable
// target is not an error: it is reported only through the boolean, and the
// facade keeps holding the raw string with no backing record. Resolution is
// idempotent; already-resolved fields are skipped.
func ResolveLinks(ctx context.Context, s *Store, row any) (bool, error) {
	tbl := s.schema.TableByRow(row)
	rowVal := tbl.rowValOf(row)

	allResolved := true
	for _, def := range tbl.links {
		fi := tbl.rowInfo.byColumn[def.Field]
		lv := fi.valueIn(rowVal).Addr().Interface().(linkValue)
		if lv.linkRaw() == "" || lv.linkResolved() {
			continue
		}
		target := s.schema.TableNamed(def.Target)
		if target == nil {
			panic(fmt.Errorf("%s.%s: link target table %q not defined", tbl.name, def.Field, def.Target))
		}

		parts := lv.linkParts(def.Separator)
		targets := make([]any, len(parts))
		for i, part := range parts {
			if part == "" {
				continue
			}
			hit, err := s.lookupLinkTarget(ctx, target, def.LookupField, part)
			if err != nil {
				return false, err
			}
			targets[i] = hit
		}
		if !lv.bindTargets(parts, targets) {
			allResolved = false
		}
	}
	return allResolved, nil
}

func (s *Store) lookupLinkTarget(ctx context.Context, tbl *Table, lookupField, value string) (any, error) {
	filter := Filter{lookupField: value}
	if !s.rangeOptimizable(tbl, filter) {
		cached, err := s.cachedMatches(tbl, filter)
		if err != nil {
			return nil, err
		}
		if len(cached) > 0 {
			return cached[0].Interface(), nil
		}
	}
	matched, err := s.queryTable(ctx, tbl, filter)
	if err != nil {
		return nil, err
	}
	rowVals, err := s.hydrateAndCache(tbl, matched)
	if err != nil {
		return nil, err
	}
	if len(rowVals) == 0 {
		return nil, nil
	}
	return rowVals[0].Interface(), nil
}
