// Package stage discovers collision files on disk, pairs each geometry file
// with its attribute table and decodes them concurrently.
package stage

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/Faultbox/ss-collision/internal/source"
)

// Kind is the geometry format of a pair.
type Kind uint8

const (
	KindKCL Kind = iota + 1
	KindDZB
)

func (k Kind) String() string {
	switch k {
	case KindKCL:
		return "kcl"
	case KindDZB:
		return "dzb"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// KindOf returns the geometry kind for a path, ignoring any compression
// suffix. ok is false for anything that is not KCL or DZB.
func KindOf(path string) (Kind, bool) {
	switch source.Ext(path) {
	case ".kcl":
		return KindKCL, true
	case ".dzb":
		return KindDZB, true
	}
	return 0, false
}

// Pair is a geometry file and the attribute table that indexes it.
type Pair struct {
	Name     string // slash path relative to the scan root, without extension
	Kind     Kind
	Geometry string
	Table    string
}

// ScanResult lists what Scan found.
type ScanResult struct {
	Pairs    []Pair
	Unpaired []string // geometry or table files with no partner
	Tables   []string // every attribute table found, paired or not
}

type dirFiles struct {
	geometry map[string][]string // stem -> paths, e.g. room.kcl and room.dzb
	tables   map[string]string
}

// Scan walks root and pairs geometry with tables inside each directory.
// Files pair by stem, and every geometry file sharing a table's stem pairs
// with that table. A directory left with exactly one unmatched geometry file
// and one unmatched table pairs those two.
//
// Pair names are the stem, or the geometry's file name when several geometry
// files share a stem, so names stay unique within a scan.
func Scan(root string) (*ScanResult, error) {
	dirs := make(map[string]*dirFiles)
	res := &ScanResult{}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		isTable := source.Ext(path) == ".plc"
		_, isGeometry := KindOf(path)
		if !isTable && !isGeometry {
			return nil
		}

		dir := filepath.Dir(path)
		df := dirs[dir]
		if df == nil {
			df = &dirFiles{geometry: map[string][]string{}, tables: map[string]string{}}
			dirs[dir] = df
		}
		if isTable {
			df.tables[source.Stem(path)] = path
			res.Tables = append(res.Tables, path)
		} else {
			stem := source.Stem(path)
			df.geometry[stem] = append(df.geometry[stem], path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}

	for dir, df := range dirs {
		rel, err := filepath.Rel(root, dir)
		if err != nil {
			rel = dir
		}

		var lonelyGeo, lonelyTab []string
		for stem, geos := range df.geometry {
			tab, ok := df.tables[stem]
			if !ok {
				lonelyGeo = append(lonelyGeo, geos...)
				continue
			}
			for _, geo := range geos {
				name := stem
				if len(geos) > 1 {
					name = filepath.Base(geo)
				}
				res.Pairs = append(res.Pairs, newPair(rel, name, geo, tab))
			}
		}
		for stem, tab := range df.tables {
			if _, ok := df.geometry[stem]; !ok {
				lonelyTab = append(lonelyTab, tab)
			}
		}

		if len(lonelyGeo) == 1 && len(lonelyTab) == 1 {
			geo := lonelyGeo[0]
			res.Pairs = append(res.Pairs, newPair(rel, source.Stem(geo), geo, lonelyTab[0]))
			continue
		}
		res.Unpaired = append(res.Unpaired, lonelyGeo...)
		res.Unpaired = append(res.Unpaired, lonelyTab...)
	}

	sort.Slice(res.Pairs, func(i, j int) bool { return res.Pairs[i].Name < res.Pairs[j].Name })
	sort.Strings(res.Unpaired)
	sort.Strings(res.Tables)
	return res, nil
}

func newPair(relDir, name, geometry, table string) Pair {
	kind, _ := KindOf(geometry)
	return Pair{
		Name:     filepath.ToSlash(filepath.Join(relDir, name)),
		Kind:     kind,
		Geometry: geometry,
		Table:    table,
	}
}
