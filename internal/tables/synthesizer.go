package tables

import (
	"maps"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/kode4food/buildprops/pkg/api"
	"github.com/kode4food/buildprops/pkg/util"
)

type (
	// Synthesizer turns property snapshots into tables. It holds no state
	// between calls and is safe for concurrent use
	Synthesizer struct {
		untrusted Sanitizer
		internal  Sanitizer
		location  *time.Location
	}

	declared struct {
		pattern *regexp.Regexp
		title   string
	}

	// discovery is the outcome of the first pass: the declared tables, the
	// cells flagged for the internal policy, and the remaining properties
	discovery struct {
		internal util.Set[string]
		tables   []declared
		rest     api.Properties
	}

	// grid collects raw values for one table before formatting
	grid struct {
		cells   map[string]map[string]any
		columns util.Set[string]
		title   string
	}
)

// CellDateLayout is the layout used to render instants in table cells
const CellDateLayout = "2006-01-02 15:04:05 Mon"

// New returns a Synthesizer that formats instants in the process's local
// zone
func New() *Synthesizer {
	return &Synthesizer{
		untrusted: UntrustedPolicy(),
		internal:  InternalPolicy(),
		location:  time.Local,
	}
}

// In returns a copy of the Synthesizer that formats instants in loc
func (s *Synthesizer) In(loc *time.Location) *Synthesizer {
	res := *s
	res.location = loc
	return &res
}

// Synthesize builds the tables for a snapshot. Declared tables come first in
// declaration order, followed by the fallback table when any property was
// left unclaimed. The result does not depend on the snapshot's order
func (s *Synthesizer) Synthesize(props api.Properties) []api.Table {
	d := discover(props.Sorted())
	grids, rest := classify(d.tables, d.rest)

	if len(rest) > 0 {
		fallback := newGrid(api.FallbackTable)
		for _, p := range rest {
			fallback.put(p.Key, api.FallbackColumn, p.Value)
		}
		grids = append(grids, fallback)
	}

	res := make([]api.Table, len(grids))
	for i, g := range grids {
		res[i] = s.render(g, d.internal)
	}
	return res
}

// discover performs the first pass. A table declaration whose value is not a
// string or does not compile stays an ordinary property
func discover(props api.Properties) *discovery {
	res := &discovery{internal: util.Set[string]{}}
	for _, p := range props {
		str, isStr := p.Value.(string)
		switch {
		case isStr && strings.HasPrefix(p.Key, api.TablePrefix):
			pat, ok := compileFull(str)
			if !ok {
				break
			}
			res.tables = append(res.tables, declared{
				title:   strings.TrimPrefix(p.Key, api.TablePrefix),
				pattern: pat,
			})
			continue
		case isStr && strings.HasPrefix(p.Key, api.SanitizerPrefix):
			if str != api.InternalSanitizer {
				break
			}
			res.internal.Add(strings.TrimPrefix(p.Key, api.SanitizerPrefix))
			continue
		}
		res.rest = append(res.rest, p)
	}
	return res
}

// classify performs the second pass, returning one grid per declared table
// and the properties no table claimed
func classify(
	tables []declared, props api.Properties,
) ([]*grid, api.Properties) {
	grids := make([]*grid, len(tables))
	for i, t := range tables {
		grids[i] = newGrid(t.title)
	}

	var rest api.Properties
	for _, p := range props {
		if !claim(tables, grids, p) {
			rest = append(rest, p)
		}
	}
	return grids, rest
}

func claim(tables []declared, grids []*grid, p api.Property) bool {
	for i, t := range tables {
		m := t.pattern.FindStringSubmatch(p.Key)
		if m == nil || len(m) < 3 {
			continue
		}
		grids[i].put(m[1], m[2], p.Value)
		return true
	}
	return false
}

// compileFull validates the expression as written, then anchors it so that
// only whole keys match
func compileFull(expr string) (*regexp.Regexp, bool) {
	if _, err := regexp.Compile(expr); err != nil {
		return nil, false
	}
	pat, err := regexp.Compile(`^(?:` + expr + `)$`)
	if err != nil {
		return nil, false
	}
	return pat, true
}

func newGrid(title string) *grid {
	return &grid{
		title:   title,
		cells:   map[string]map[string]any{},
		columns: util.Set[string]{},
	}
}

func (g *grid) put(row, column string, value any) {
	r, ok := g.cells[row]
	if !ok {
		r = map[string]any{}
		g.cells[row] = r
	}
	r[column] = value
	g.columns.Add(column)
}

func (s *Synthesizer) render(g *grid, internal util.Set[string]) api.Table {
	columns := util.Sorted(g.columns)
	rows := slices.Sorted(maps.Keys(g.cells))

	res := api.Table{
		Title:   s.untrusted.Sanitize(g.title),
		Columns: make([]string, len(columns)),
		Rows:    make([]api.TableRow, len(rows)),
	}
	for i, c := range columns {
		res.Columns[i] = s.untrusted.Sanitize(c)
	}
	for i, r := range rows {
		cells := make([]string, len(columns))
		for j, c := range columns {
			pol := s.untrusted
			if internal.Contains(g.title + "_" + r + "_" + c) {
				pol = s.internal
			}
			cells[j] = pol.Sanitize(s.format(g.cells[r][c]))
		}
		res.Rows[i] = api.TableRow{
			Title: s.untrusted.Sanitize(r),
			Cells: cells,
		}
	}
	return res
}

// format renders a raw cell value. Instants use CellDateLayout in the
// Synthesizer's zone, and missing cells render empty
func (s *Synthesizer) format(v any) string {
	if t, ok := api.TimeOf(v); ok {
		return t.In(s.location).Format(CellDateLayout)
	}
	return api.FormatText(v)
}
