package sheetdb

import (
	"fmt"
	"net/mail"
	"net/url"
	"regexp"
	"slices"
	"time"
	"unicode/utf8"
)

// CellType constrains the scalar kind of a column value.
type CellType int

const (
	TypeAny CellType = iota
	TypeString
	TypeNumber
	TypeBool
	TypeDate
)

func (t CellType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeNumber:
		return "number"
	case TypeBool:
		return "bool"
	case TypeDate:
		return "date"
	default:
		return "any"
	}
}

// FieldRule is the declarative validation constraint set for one column.
// All configured checks must pass; violations are collected, not
// short-circuited.
type FieldRule struct {
	Required bool
	Type     CellType
	MinLen   int // 0 = unset
	MaxLen   int // 0 = unset
	Min, Max *float64
	Pattern  string // Go regexp, compiled at AddTable
	Enum     []string
	Format   string // "email", "url" or "date"
}

type fieldRule struct {
	FieldRule
	pattern *regexp.Regexp
}

var formatValidators = map[string]func(s string) bool{
	"email": func(s string) bool {
		_, err := mail.ParseAddress(s)
		return err == nil
	},
	"url": func(s string) bool {
		u, err := url.Parse(s)
		return err == nil && u.Scheme != "" && u.Host != ""
	},
	"date": func(s string) bool {
		_, err := time.Parse("2006-01-02", s)
		return err == nil
	},
}

// validateFields checks a candidate field map against the table's declared
// rules and returns the full violation list.
func (tbl *Table) validateFields(fields map[string]any) []Violation {
	if len(tbl.rules) == 0 {
		return nil
	}
	var out []Violation
	bad := func(col, format string, args ...any) {
		out = append(out, Violation{Field: col, Msg: fmt.Sprintf(format, args...)})
	}

	for _, col := range tbl.columns {
		rule, ok := tbl.rules[col]
		if !ok {
			continue
		}
		v := normalizeCell(fields[col])
		if v == nil {
			if rule.Required {
				bad(col, "required")
			}
			continue
		}

		switch rule.Type {
		case TypeString:
			if _, ok := v.(string); !ok {
				bad(col, "must be a %v, got %T", rule.Type, v)
				continue
			}
		case TypeNumber:
			if !isNumericCell(v) {
				bad(col, "must be a %v, got %T", rule.Type, v)
				continue
			}
		case TypeBool:
			if _, ok := v.(bool); !ok {
				bad(col, "must be a %v, got %T", rule.Type, v)
				continue
			}
		case TypeDate:
			if _, ok := v.(time.Time); !ok {
				bad(col, "must be a %v, got %T", rule.Type, v)
				continue
			}
		}

		if s, ok := v.(string); ok {
			n := utf8.RuneCountInString(s)
			if rule.MinLen > 0 && n < rule.MinLen {
				bad(col, "must be at least %d characters, got %d", rule.MinLen, n)
			}
			if rule.MaxLen > 0 && n > rule.MaxLen {
				bad(col, "must be at most %d characters, got %d", rule.MaxLen, n)
			}
			if rule.pattern != nil && !rule.pattern.MatchString(s) {
				bad(col, "must match %s", rule.Pattern)
			}
			if rule.Format != "" && !formatValidators[rule.Format](s) {
				bad(col, "must be a valid %s", rule.Format)
			}
			if len(rule.Enum) > 0 && !slices.Contains(rule.Enum, s) {
				bad(col, "must be one of %v", rule.Enum)
			}
		}

		if f, ok := cellFloat(v); ok {
			if rule.Min != nil && f < *rule.Min {
				bad(col, "must be >= %v", *rule.Min)
			}
			if rule.Max != nil && f > *rule.Max {
				bad(col, "must be <= %v", *rule.Max)
			}
		}
	}
	return out
}
