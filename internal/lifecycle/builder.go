package lifecycle

import "strings"

// Builder is the chainable `test.only.skip` surface: each modifier
// call returns a new immutable flag-set, and a terminal Test()/Each()
// call performs the registration. Conflicting combinations fail at the
// modifier-chain step itself, never at the terminal call.
type Builder struct {
	r     *Registrar
	flags TestFlags
}

// NewBuilder starts a fresh, unmodified test builder.
func NewBuilder(r *Registrar) Builder { return Builder{r: r} }

func conflict(existing ...bool) bool {
	for _, v := range existing {
		if v {
			return true
		}
	}
	return false
}

// Skip marks the chain skip. Conflicts with only/todo/failing.
func (b Builder) Skip() (Builder, error) {
	if conflict(b.flags.Only, b.flags.Todo, b.flags.Failing) {
		return b, &FlagConflictError{Flags: []string{"skip", "only|todo|failing"}}
	}
	b.flags.Skip = true
	return b, nil
}

// Only marks the chain only. Conflicts with skip.
func (b Builder) Only() (Builder, error) {
	if b.flags.Skip {
		return b, &FlagConflictError{Flags: []string{"only", "skip"}}
	}
	b.flags.Only = true
	return b, nil
}

// Todo marks the chain todo. Conflicts with skip.
func (b Builder) Todo() (Builder, error) {
	if b.flags.Skip {
		return b, &FlagConflictError{Flags: []string{"todo", "skip"}}
	}
	b.flags.Todo = true
	return b, nil
}

// Failing marks the chain failing. Conflicts with skip.
func (b Builder) Failing() (Builder, error) {
	if b.flags.Skip {
		return b, &FlagConflictError{Flags: []string{"failing", "skip"}}
	}
	b.flags.Failing = true
	return b, nil
}

// Test performs the terminal registration with the accumulated flags.
func (b Builder) Test(description string, impl Implementation, timeoutMS int, loc *SourceLocation) (*TestCase, error) {
	return b.r.Test(description, impl, TestOptions{Flags: b.flags, TimeoutMS: timeoutMS}, loc)
}

// EachRow is one expanded parameter row from .each()/.each`tagged`.
// Named holds $-style lookups (absent for positional-only expansion);
// Positional holds printf-style positional arguments in column order;
// Index is the row's ordinal position, used by %# and $#.
type EachRow struct {
	Named      map[string]interface{}
	Positional []interface{}
	Index      int
}

// Each expands rows supplied directly as structured values, the Go
// equivalent of `.each(cases...)`. Plain .each() has no headers, so
// rows carry only Positional data.
func Each(rows [][]interface{}) []EachRow {
	out := make([]EachRow, len(rows))
	for i, row := range rows {
		out[i] = EachRow{Positional: row, Index: i}
	}
	return out
}

// EachTagged expands a tagged-template-equivalent structured value:
// headers are the column names (from splitting the template's first
// fragment on '|'), values is the flattened cell sequence. Headings
// are trimmed and empty ones dropped; fails with TemplateShapeError if
// len(values) isn't a multiple of the heading count.
func EachTagged(headers []string, values []interface{}) ([]EachRow, error) {
	trimmed := make([]string, 0, len(headers))
	for _, h := range headers {
		if h = strings.TrimSpace(h); h != "" {
			trimmed = append(trimmed, h)
		}
	}
	headers = trimmed
	if len(headers) == 0 || len(values)%len(headers) != 0 {
		return nil, &TemplateShapeError{HeadingCount: len(headers), ValueCount: len(values)}
	}
	rowCount := len(values) / len(headers)
	rows := make([]EachRow, rowCount)
	for i := 0; i < rowCount; i++ {
		named := make(map[string]interface{}, len(headers))
		positional := make([]interface{}, len(headers))
		for j, h := range headers {
			v := values[i*len(headers)+j]
			named[h] = v
			positional[j] = v
		}
		rows[i] = EachRow{Named: named, Positional: positional, Index: i}
	}
	return rows, nil
}

// EachBuilder registers one test per expanded row, interpolating the
// description per row using printf or variable mode (see interpolate.go).
type EachBuilder struct {
	b    Builder
	rows []EachRow
}

func (b Builder) WithRows(rows []EachRow) EachBuilder {
	return EachBuilder{b: b, rows: rows}
}

// Test registers len(rows) tests. implFor builds the row-bound
// implementation; timeoutMS and loc are shared across all expanded rows.
func (eb EachBuilder) Test(descriptionTemplate string, implFor func(row EachRow) Implementation, timeoutMS int, loc *SourceLocation) ([]*TestCase, error) {
	out := make([]*TestCase, 0, len(eb.rows))
	for _, row := range eb.rows {
		desc := interpolate(descriptionTemplate, row)
		tc, err := eb.b.Test(desc, implFor(row), timeoutMS, loc)
		if err != nil {
			return out, err
		}
		tc.Parameters = row.Named
		out = append(out, tc)
	}
	return out, nil
}
