// Package query builds inverted indexes over attribute records so stage-wide
// questions ("which tables use ground type 5?") are bitmap operations.
package query

import (
	"fmt"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/Faultbox/ss-collision/pkg/collision"
)

// Cond selects records whose field equals Value.
type Cond struct {
	Field int
	Value uint32
}

// Bucket is one value of a histogram.
type Bucket struct {
	Value uint32
	Count uint64
}

// Index maps every classifiable field value to the records holding it.
// Records get consecutive ids in the order their sets were added.
//
// Index is not safe for concurrent mutation.
type Index struct {
	names    []string
	starts   []uint32 // first record id of each set
	total    uint32
	postings []map[uint32]*roaring.Bitmap // field id -> value -> record ids
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{postings: make([]map[uint32]*roaring.Bitmap, collision.FieldDescriptorCount())}
}

func (ix *Index) field(id int) map[uint32]*roaring.Bitmap {
	if id < 0 || id >= len(ix.postings) {
		return nil
	}
	return ix.postings[id]
}

// Add indexes a named set of records, typically one PLC file or the
// per-triangle entries of a mesh.
func (ix *Index) Add(name string, entries []collision.PLCEntry) {
	ix.names = append(ix.names, name)
	ix.starts = append(ix.starts, ix.total)

	for id, d := range collision.Descriptors() {
		if d.Kind == collision.FieldNormal {
			continue
		}
		m := ix.postings[id]
		if m == nil {
			m = make(map[uint32]*roaring.Bitmap)
			ix.postings[id] = m
		}
		for i, e := range entries {
			v := d.Extract(e)
			bm, ok := m[v]
			if !ok {
				bm = roaring.New()
				m[v] = bm
			}
			bm.Add(ix.total + uint32(i))
		}
	}
	ix.total += uint32(len(entries))
}

// Len returns the number of indexed records.
func (ix *Index) Len() int {
	return int(ix.total)
}

// Match returns the records whose field equals value. The result is a copy
// the caller may modify.
func (ix *Index) Match(field int, value uint32) *roaring.Bitmap {
	if bm, ok := ix.field(field)[value]; ok {
		return bm.Clone()
	}
	return roaring.New()
}

// All returns the records matching every condition.
func (ix *Index) All(conds ...Cond) *roaring.Bitmap {
	if len(conds) == 0 {
		return roaring.New()
	}
	out := ix.Match(conds[0].Field, conds[0].Value)
	for _, c := range conds[1:] {
		bm, ok := ix.field(c.Field)[c.Value]
		if !ok {
			return roaring.New()
		}
		out.And(bm)
	}
	return out
}

// Any returns the records matching at least one condition.
func (ix *Index) Any(conds ...Cond) *roaring.Bitmap {
	out := roaring.New()
	for _, c := range conds {
		if bm, ok := ix.field(c.Field)[c.Value]; ok {
			out.Or(bm)
		}
	}
	return out
}

// Histogram counts records per value of a field, by ascending value.
func (ix *Index) Histogram(field int) []Bucket {
	m := ix.field(field)
	out := make([]Bucket, 0, len(m))
	for v, bm := range m {
		out = append(out, Bucket{Value: v, Count: bm.GetCardinality()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Value < out[j].Value })
	return out
}

// Locate maps a record id back to its set name and index within the set.
func (ix *Index) Locate(id uint32) (string, int, error) {
	if id >= ix.total {
		return "", 0, fmt.Errorf("record %d out of range (%d indexed)", id, ix.total)
	}
	// Last set whose start is <= id. Empty sets share a start with their
	// successor, so search from the right.
	i := sort.Search(len(ix.starts), func(i int) bool { return ix.starts[i] > id }) - 1
	return ix.names[i], int(id - ix.starts[i]), nil
}

// Sets returns the names of the sets that contain at least one record of bm,
// in insertion order.
func (ix *Index) Sets(bm *roaring.Bitmap) []string {
	var out []string
	for i, name := range ix.names {
		end := ix.total
		if i+1 < len(ix.starts) {
			end = ix.starts[i+1]
		}
		if ix.starts[i] == end {
			continue
		}
		span := roaring.New()
		span.AddRange(uint64(ix.starts[i]), uint64(end))
		if bm.Intersects(span) {
			out = append(out, name)
		}
	}
	return out
}
