package history

import (
	"sort"
	"time"

	"github.com/dailyyoga/objsync/cache"
	"github.com/shopspring/decimal"
)

// AllTypes is the type name of the snapshot line aggregating every type
const AllTypes = "*"

// Snapshot is the state of one cache at one instant
type Snapshot struct {
	Cache string
	At    time.Time
	// OldestAge is the age of the oldest entry, zero when empty
	OldestAge time.Duration
	// Lines has one line per cached type, sorted by name, after the
	// AllTypes total
	Lines []Line
}

// Line aggregates the entries of one type
type Line struct {
	Type        string
	Entries     int
	Referers    int
	AvgReferers decimal.Decimal
}

// Total returns the AllTypes line
func (s Snapshot) Total() Line {
	if len(s.Lines) == 0 {
		return newLine(AllTypes, 0, 0)
	}
	return s.Lines[0]
}

// NewSnapshot summarizes a cache report
func NewSnapshot(r cache.Report) Snapshot {
	s := Snapshot{Cache: r.Name, At: r.At}
	if !r.Oldest.IsZero() {
		s.OldestAge = r.At.Sub(r.Oldest)
	}

	type counts struct{ entries, referers int }
	byType := make(map[string]*counts)
	for _, e := range r.Entries {
		c, ok := byType[e.Type]
		if !ok {
			c = &counts{}
			byType[e.Type] = c
		}
		c.entries++
		c.referers += e.Referers
	}

	names := make([]string, 0, len(byType))
	for name := range byType {
		names = append(names, name)
	}
	sort.Strings(names)

	s.Lines = make([]Line, 0, len(names)+1)
	s.Lines = append(s.Lines, newLine(AllTypes, r.Count, r.TotalReferers))
	for _, name := range names {
		c := byType[name]
		s.Lines = append(s.Lines, newLine(name, c.entries, c.referers))
	}
	return s
}

func newLine(typeName string, entries, referers int) Line {
	avg := decimal.Zero
	if entries > 0 {
		avg = decimal.NewFromInt(int64(referers)).DivRound(decimal.NewFromInt(int64(entries)), 4)
	}
	return Line{Type: typeName, Entries: entries, Referers: referers, AvgReferers: avg}
}
