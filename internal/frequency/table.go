// Package frequency holds the historical (n, k) observation counts that the
// scorer compares new code against.
//
// A Table is immutable once built. Lookups never fail: an absent key reads as
// the zero record, which the gate treats as sparse data.
package frequency

import (
	"fmt"
	"sort"

	"ppde/internal/classify"
	"ppde/internal/errors"
)

// Record is the count of past observations (N) and of those where the
// detector fired (K) for one detector in one context.
type Record struct {
	N int `json:"n" yaml:"n" toml:"n"`
	K int `json:"k" yaml:"k" toml:"k"`
}

// Valid reports whether 0 <= K <= N.
func (r Record) Valid() bool {
	return r.N >= 0 && r.K >= 0 && r.K <= r.N
}

// Key addresses one record.
type Key struct {
	Detector string
	Context  classify.Context
}

func (k Key) String() string {
	return k.Detector + "@" + k.Context.String()
}

// Entry is a key with its record, as listed by Table.Records.
type Entry struct {
	Key
	Record
}

// Store is the read-only query contract the scorer depends on.
type Store interface {
	// Lookup returns the record for the pair, or the zero record if absent.
	Lookup(detectorID string, ctx classify.Context) Record
}

// Table is the in-memory Store. The zero value is not usable; build one with
// NewTable, Builder or Empty.
type Table struct {
	records map[Key]Record
}

var _ Store = (*Table)(nil)

// NewTable validates records and returns a table holding a private copy.
// Any record violating 0 <= k <= n fails the whole load.
func NewTable(records map[Key]Record) (*Table, error) {
	copied := make(map[Key]Record, len(records))
	for key, rec := range records {
		if err := validate(key, rec); err != nil {
			return nil, err
		}
		copied[key] = rec
	}
	return &Table{records: copied}, nil
}

// Empty returns the cold-start table.
func Empty() *Table {
	return &Table{records: map[Key]Record{}}
}

func validate(key Key, rec Record) error {
	if key.Detector == "" {
		return errors.NewPpdeError(errors.StoreInvariant, "record has an empty detector id", nil, nil).
			WithDetails(map[string]interface{}{"context": int(key.Context)})
	}
	if !key.Context.Valid() {
		return errors.NewPpdeError(errors.StoreInvariant,
			fmt.Sprintf("record %s has context id %d outside [0,%d)", key.Detector, key.Context, classify.NumContexts), nil, nil)
	}
	if !rec.Valid() {
		return errors.NewPpdeError(errors.StoreInvariant,
			fmt.Sprintf("record %s violates 0 <= k <= n (n=%d, k=%d)", key, rec.N, rec.K), nil, nil).
			WithDetails(map[string]interface{}{"detector": key.Detector, "context": int(key.Context), "n": rec.N, "k": rec.K})
	}
	return nil
}

// Lookup implements Store.
func (t *Table) Lookup(detectorID string, ctx classify.Context) Record {
	if t == nil {
		return Record{}
	}
	return t.records[Key{Detector: detectorID, Context: ctx}]
}

// Len returns the number of stored records.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.records)
}

// Records lists every record sorted by detector id, then context id.
func (t *Table) Records() []Entry {
	if t == nil {
		return nil
	}
	out := make([]Entry, 0, len(t.records))
	for k, r := range t.records {
		out = append(out, Entry{Key: k, Record: r})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Detector != out[j].Detector {
			return out[i].Detector < out[j].Detector
		}
		return out[i].Context < out[j].Context
	})
	return out
}

// Detectors lists the distinct detector ids present, sorted.
func (t *Table) Detectors() []string {
	if t == nil {
		return nil
	}
	seen := make(map[string]struct{})
	for k := range t.records {
		seen[k.Detector] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for d := range seen {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Builder accumulates observations before they are frozen into a Table.
// A Builder is not safe for concurrent use.
type Builder struct {
	records map[Key]Record
	frozen  bool
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{records: make(map[Key]Record)}
}

// Observe counts one outcome of detector in ctx.
func (b *Builder) Observe(detector string, ctx classify.Context, value bool) {
	b.mustOpen()
	key := Key{Detector: detector, Context: ctx}
	rec := b.records[key]
	rec.N++
	if value {
		rec.K++
	}
	b.records[key] = rec
}

// Add merges pre-aggregated counts. Invalid totals surface at Freeze.
func (b *Builder) Add(detector string, ctx classify.Context, n, k int) {
	b.mustOpen()
	key := Key{Detector: detector, Context: ctx}
	rec := b.records[key]
	rec.N += n
	rec.K += k
	b.records[key] = rec
}

// Merge folds every record of other into b.
func (b *Builder) Merge(other *Builder) {
	b.mustOpen()
	for key, rec := range other.records {
		b.Add(key.Detector, key.Context, rec.N, rec.K)
	}
}

// Freeze validates the accumulated records and returns the immutable table.
// The builder cannot be used afterwards.
func (b *Builder) Freeze() (*Table, error) {
	if b.frozen {
		return nil, errors.NewPpdeError(errors.InternalError, "frequency builder already frozen", nil, nil)
	}
	b.frozen = true
	records := b.records
	b.records = nil
	for key, rec := range records {
		if err := validate(key, rec); err != nil {
			return nil, err
		}
	}
	return &Table{records: records}, nil
}

func (b *Builder) mustOpen() {
	if b.frozen {
		panic("frequency: use of frozen Builder")
	}
}
