package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/ss-collision/internal/config"
	"github.com/Faultbox/ss-collision/internal/logger"
	"github.com/Faultbox/ss-collision/internal/preview"
	"github.com/Faultbox/ss-collision/internal/query"
	"github.com/Faultbox/ss-collision/internal/source"
	"github.com/Faultbox/ss-collision/internal/stage"
	"github.com/Faultbox/ss-collision/pkg/collision"
)

var errCheckFailed = errors.New("check failed")

func limits(cfg *config.Config) collision.OctreeLimits {
	return collision.OctreeLimits{
		MaxDepth:      cfg.Decode.MaxOctreeDepth,
		MaxNodes:      cfg.Decode.MaxOctreeNodes,
		MaxReferences: cfg.Decode.MaxOctreeReferences,
	}
}

// parseField accepts a descriptor id or a case-insensitive descriptor name.
func parseField(s string) (int, error) {
	if id, err := strconv.Atoi(s); err == nil {
		if _, ok := collision.Descriptor(id); !ok {
			return 0, fmt.Errorf("field id %d out of range [0, %d)", id, collision.FieldDescriptorCount())
		}
		return id, nil
	}
	for id, d := range collision.Descriptors() {
		if strings.EqualFold(d.Name, s) {
			return id, nil
		}
	}
	return 0, fmt.Errorf("unknown field %q", s)
}

// parseValue accepts decimal or 0x-prefixed hex.
func parseValue(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q: %w", s, err)
	}
	return uint32(v), nil
}

func cmdInfo(cfg *config.Config, w io.Writer, args []string) error {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: colltool info <file>")
		return errUsage
	}
	path := args[0]

	data, err := source.ReadFile(path)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "File:       %s\n", path)
	switch source.Ext(path) {
	case ".kcl":
		return infoKCL(w, data, limits(cfg))
	case ".dzb":
		return infoDZB(w, data)
	case ".plc":
		plc, err := collision.ParsePLC(data)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Format:     PLC (attribute table)\n")
		fmt.Fprintf(w, "Records:    %d\n", len(plc.Entries))
		return nil
	default:
		return fmt.Errorf("unrecognised extension %q", source.Ext(path))
	}
}

func infoKCL(w io.Writer, data []byte, lim collision.OctreeLimits) error {
	kcl, err := collision.ParseKCLWithLimits(data, lim)
	if err != nil {
		return err
	}
	h := kcl.Header
	st := kcl.Octree.Stats()

	fmt.Fprintf(w, "Format:     KCL (prism)\n")
	fmt.Fprintf(w, "Offsets:    pos 0x%X  nrm 0x%X  prism 0x%X  octree 0x%X\n",
		h.PosOffset, h.NormalOffset, h.PrismOffset, h.OctreeOffset)
	fmt.Fprintf(w, "Thickness:  %g\n", h.PrismThickness)
	fmt.Fprintf(w, "Area min:   (%g, %g, %g)\n", h.AreaMin.X, h.AreaMin.Y, h.AreaMin.Z)
	fmt.Fprintf(w, "Masks:      x 0x%08X  y 0x%08X  z 0x%08X\n", h.AreaXMask, h.AreaYMask, h.AreaZMask)
	fmt.Fprintf(w, "Shifts:     block %d  x %d  xy %d\n", h.BlockShift, h.AreaXBlocksShift, h.AreaXYBlocksShift)
	fmt.Fprintf(w, "Octree:     %d branches, %d leaves (%d empty), depth %d, %d references\n",
		st.Branches, st.Leaves, st.EmptyLeaves, st.Depth, st.References)
	fmt.Fprintf(w, "Prisms:     %d\n", len(kcl.Prisms))
	fmt.Fprintf(w, "Positions:  %d\n", len(kcl.Positions))
	fmt.Fprintf(w, "Normals:    %d\n", len(kcl.Normals))

	if _, err := kcl.Triangles(); err != nil {
		fmt.Fprintf(w, "Triangles:  error: %v\n", err)
		return fmt.Errorf("reconstructing triangles: %w", err)
	}
	fmt.Fprintf(w, "Triangles:  %d reconstructed\n", len(kcl.Prisms))
	return nil
}

func infoDZB(w io.Writer, data []byte) error {
	dzb, err := collision.ParseDZB(data)
	if err != nil {
		return err
	}
	h := dzb.Header

	fmt.Fprintf(w, "Format:     DZB (flat)\n")
	sections := []struct {
		name string
		s    collision.DZBSection
	}{
		{"Vertices", h.Vertices},
		{"Triangles", h.Triangles},
		{"Blocks", h.Blocks},
		{"Nodes", h.Nodes},
		{"Groups", h.Groups},
		{"Properties", h.Properties},
	}
	for _, s := range sections {
		fmt.Fprintf(w, "%-11s %6d @ 0x%X\n", s.name+":", s.s.Count, s.s.Offset)
	}
	if err := dzb.Validate(); err != nil {
		fmt.Fprintf(w, "Validate:   %v\n", err)
		return fmt.Errorf("validating: %w", err)
	}
	fmt.Fprintf(w, "Validate:   ok\n")
	return nil
}

func cmdDump(w io.Writer, args []string) error {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: colltool dump <file.plc>")
		return errUsage
	}
	data, err := source.ReadFile(args[0])
	if err != nil {
		return err
	}
	plc, err := collision.ParsePLC(data)
	if err != nil {
		return err
	}
	return plc.Dump(w)
}

func cmdFields(w io.Writer) error {
	fmt.Fprintf(w, "%-3s  %-7s  %-4s  %-5s  %-10s  %s\n", "ID", "KIND", "CODE", "SHIFT", "MASK", "NAME")
	for id, d := range collision.Descriptors() {
		if d.Kind == collision.FieldNormal {
			fmt.Fprintf(w, "%-3d  %-7s  %-4s  %-5s  %-10s  %s\n", id, d.Kind, "-", "-", "-", d.Name)
			continue
		}
		fmt.Fprintf(w, "%-3d  %-7s  %-4d  %-5d  0x%08X  %s\n", id, d.Kind, d.Code, d.Shift, d.Mask, d.Name)
	}
	return nil
}

type table struct {
	name    string
	entries []collision.PLCEntry
}

// loadTables reads a single table or every table under a directory.
// Unreadable tables are logged and skipped.
func loadTables(path string) ([]table, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	var paths []string
	root := path
	if info.IsDir() {
		res, err := stage.Scan(path)
		if err != nil {
			return nil, err
		}
		paths = res.Tables
	} else {
		paths = []string{path}
		root = filepath.Dir(path)
	}

	log := logger.Named("tables")
	tables := make([]table, 0, len(paths))
	for _, p := range paths {
		data, err := source.ReadFile(p)
		if err == nil {
			var plc *collision.PLC
			if plc, err = collision.ParsePLC(data); err == nil {
				name, _ := filepath.Rel(root, p)
				tables = append(tables, table{name: filepath.ToSlash(name), entries: plc.Entries})
				continue
			}
		}
		log.Warn("skipping table", zap.String("path", p), zap.Error(err))
	}
	return tables, nil
}

func cmdSearch(cfg *config.Config, w io.Writer, args []string) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	code := fs.Int("code", -1, "Raw search: record word 0-4")
	shift := fs.Uint("shift", 0, "Raw search: right shift")
	mask := fs.String("mask", "0xFFFFFFFF", "Raw search: mask after shifting")
	verbose := fs.Bool("v", false, "List matching record indices")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	raw := *code >= 0
	need := 2
	if raw {
		need = 1
	}
	if fs.NArg() < need {
		fmt.Fprintln(os.Stderr, "Usage: colltool search <field> <value> [dir]")
		fmt.Fprintln(os.Stderr, "       colltool search -code C -shift S -mask M <value> [dir]")
		return errUsage
	}

	dir := cfg.Data.CollisionDir
	if fs.NArg() > need {
		dir = fs.Arg(need)
	}
	tables, err := loadTables(dir)
	if err != nil {
		return err
	}

	if raw {
		m, err := parseValue(*mask)
		if err != nil {
			return err
		}
		value, err := parseValue(fs.Arg(0))
		if err != nil {
			return err
		}
		for _, t := range tables {
			var hits []int
			for i, e := range t.entries {
				if e.Matches(*code, uint32(*shift), m, value) {
					hits = append(hits, i)
				}
			}
			printHits(w, t.name, hits, *verbose)
		}
		return nil
	}

	field, err := parseField(fs.Arg(0))
	if err != nil {
		return err
	}
	value, err := parseValue(fs.Arg(1))
	if err != nil {
		return err
	}
	if field == collision.FieldIDNormal {
		return fmt.Errorf("field %d has no stored value", field)
	}

	ix := query.NewIndex()
	for _, t := range tables {
		ix.Add(t.name, t.entries)
	}
	matches := ix.Match(field, value)

	byTable := make(map[string][]int)
	var order []string
	it := matches.Iterator()
	for it.HasNext() {
		name, idx, err := ix.Locate(it.Next())
		if err != nil {
			return err
		}
		if _, ok := byTable[name]; !ok {
			order = append(order, name)
		}
		byTable[name] = append(byTable[name], idx)
	}
	for _, name := range order {
		printHits(w, name, byTable[name], *verbose)
	}
	return nil
}

func printHits(w io.Writer, name string, hits []int, verbose bool) {
	if len(hits) == 0 {
		return
	}
	if !verbose {
		fmt.Fprintf(w, "%s (%d)\n", name, len(hits))
		return
	}
	idx := make([]string, len(hits))
	for i, h := range hits {
		idx[i] = strconv.Itoa(h)
	}
	fmt.Fprintf(w, "%s (%d): %s\n", name, len(hits), strings.Join(idx, " "))
}

func cmdStats(cfg *config.Config, w io.Writer, args []string) error {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: colltool stats <field> [file.plc|dir]")
		return errUsage
	}
	field, err := parseField(args[0])
	if err != nil {
		return err
	}
	d, _ := collision.Descriptor(field)
	if d.Kind == collision.FieldNormal {
		return fmt.Errorf("field %d has no stored value", field)
	}

	path := cfg.Data.CollisionDir
	if len(args) > 1 {
		path = args[1]
	}
	tables, err := loadTables(path)
	if err != nil {
		return err
	}

	ix := query.NewIndex()
	for _, t := range tables {
		ix.Add(t.name, t.entries)
	}

	fmt.Fprintf(w, "%s: %d records in %d tables\n", d.Name, ix.Len(), len(tables))
	for _, b := range ix.Histogram(field) {
		fmt.Fprintf(w, "  0x%-8X %8d  %d tables\n", b.Value, b.Count,
			len(ix.Sets(ix.Match(field, b.Value))))
	}
	return nil
}

func cmdCheck(ctx context.Context, cfg *config.Config, w io.Writer, args []string) error {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	verbose := fs.Bool("v", false, "Print every pair, not just failures")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	dir := cfg.Data.CollisionDir
	if fs.NArg() > 0 {
		dir = fs.Arg(0)
	}

	scan, err := stage.Scan(dir)
	if err != nil {
		return err
	}
	res, err := stage.Load(ctx, scan.Pairs, stage.Options{
		Workers: cfg.Decode.Workers,
		Limits:  limits(cfg),
	})
	if err != nil {
		return err
	}

	invalid := 0
	for _, m := range res.Models {
		if m.DZB != nil {
			if err := m.DZB.Validate(); err != nil {
				invalid++
				fmt.Fprintf(w, "FAIL %s: %v\n", m.Name, err)
				continue
			}
		}
		if *verbose {
			fmt.Fprintf(w, "ok   %s (%s, %d triangles)\n", m.Name, m.Kind, len(m.Mesh.Triangles))
		}
	}
	for _, f := range res.Failed {
		fmt.Fprintf(w, "FAIL %s: %v\n", f.Pair.Name, f.Err)
	}
	for _, p := range scan.Unpaired {
		fmt.Fprintf(w, "unpaired %s\n", p)
	}

	failed := len(res.Failed) + invalid
	fmt.Fprintf(w, "%d pairs: %d ok, %d failed, %d unpaired files\n",
		len(scan.Pairs), len(res.Models)-invalid, failed, len(scan.Unpaired))
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d pairs", errCheckFailed, failed, len(scan.Pairs))
	}
	return nil
}

func cmdRender(ctx context.Context, cfg *config.Config, w io.Writer, args []string) error {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	out := fs.String("o", "", "Output file (single geometry) or directory")
	field := fs.String("field", strconv.Itoa(cfg.Render.Descriptor), "Field used for coloring")
	sel := fs.String("select", strconv.FormatUint(uint64(cfg.Render.Selector), 10), "Highlighted value for range fields")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: colltool render [-o out] [-field F] [-select V] <geometry|dir> [table.plc]")
		return errUsage
	}

	id, err := parseField(*field)
	if err != nil {
		return err
	}
	selector, err := parseValue(*sel)
	if err != nil {
		return err
	}
	opts := preview.DefaultOptions()
	opts.Size = cfg.Render.Size
	opts.Descriptor = id
	opts.Selector = selector

	target := fs.Arg(0)
	info, err := os.Stat(target)
	if err != nil {
		return err
	}

	if info.IsDir() {
		outDir := cfg.Render.OutputDir
		if *out != "" {
			outDir = *out
		}
		return renderDir(ctx, cfg, w, target, outDir, opts)
	}

	pair, err := findPair(target, fs.Arg(1))
	if err != nil {
		return err
	}
	m, err := stage.LoadPair(pair, limits(cfg))
	if err != nil {
		return err
	}

	path := *out
	if path == "" {
		path = filepath.Join(cfg.Render.OutputDir, source.Stem(target)+".webp")
	}
	if err := preview.WriteFile(path, m.Mesh, opts); err != nil {
		return err
	}
	fmt.Fprintf(w, "%s -> %s (%d triangles)\n", pair.Name, path, len(m.Mesh.Triangles))
	return nil
}

// findPair builds a pair for a geometry file, locating its table in the
// same directory when none is given.
func findPair(geometry, tablePath string) (stage.Pair, error) {
	kind, ok := stage.KindOf(geometry)
	if !ok {
		return stage.Pair{}, fmt.Errorf("%s is not a .kcl or .dzb file", geometry)
	}
	if tablePath != "" {
		return stage.Pair{Name: source.Stem(geometry), Kind: kind, Geometry: geometry, Table: tablePath}, nil
	}

	res, err := stage.Scan(filepath.Dir(geometry))
	if err != nil {
		return stage.Pair{}, err
	}
	for _, p := range res.Pairs {
		if filepath.Clean(p.Geometry) == filepath.Clean(geometry) {
			return p, nil
		}
	}
	return stage.Pair{}, fmt.Errorf("no attribute table found for %s", geometry)
}

func renderDir(ctx context.Context, cfg *config.Config, w io.Writer, dir, outDir string, opts preview.Options) error {
	scan, err := stage.Scan(dir)
	if err != nil {
		return err
	}
	res, err := stage.Load(ctx, scan.Pairs, stage.Options{
		Workers: cfg.Decode.Workers,
		Limits:  limits(cfg),
	})
	if err != nil {
		return err
	}

	for _, m := range res.Models {
		if err := ctx.Err(); err != nil {
			return err
		}
		path := filepath.Join(outDir, filepath.FromSlash(m.Name)+".webp")
		if err := preview.WriteFile(path, m.Mesh, opts); err != nil {
			return fmt.Errorf("%s: %w", m.Name, err)
		}
		fmt.Fprintf(w, "%s -> %s\n", m.Name, path)
	}
	if len(res.Failed) > 0 {
		fmt.Fprintf(w, "%d pairs skipped (see log)\n", len(res.Failed))
	}
	return nil
}
