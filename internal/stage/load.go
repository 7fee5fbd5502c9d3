package stage

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/ss-collision/internal/logger"
	"github.com/Faultbox/ss-collision/internal/source"
	"github.com/Faultbox/ss-collision/pkg/collision"
)

// Options controls Load.
type Options struct {
	Workers int
	Limits  collision.OctreeLimits
	Logger  *zap.Logger // defaults to the package logger
}

// Model is a decoded pair.
type Model struct {
	Pair
	Mesh  *collision.Mesh
	Table *collision.PLC
	KCL   *collision.KCL // set for KindKCL
	DZB   *collision.DZB // set for KindDZB
}

// Failure records a pair that could not be decoded.
type Failure struct {
	Pair Pair
	Err  error
}

// Result holds the outcome of Load. Models and Failed keep the input order.
type Result struct {
	Models []*Model
	Failed []Failure
}

// LoadPair reads and decodes a single pair.
func LoadPair(p Pair, limits collision.OctreeLimits) (*Model, error) {
	tableData, err := source.ReadFile(p.Table)
	if err != nil {
		return nil, err
	}
	table, err := collision.ParsePLC(tableData)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.Table, err)
	}

	geoData, err := source.ReadFile(p.Geometry)
	if err != nil {
		return nil, err
	}

	m := &Model{Pair: p, Table: table}
	switch p.Kind {
	case KindKCL:
		m.KCL, err = collision.ParseKCLWithLimits(geoData, limits)
		if err == nil {
			m.Mesh, err = collision.PairKCL(m.KCL, table)
		}
	case KindDZB:
		m.DZB, err = collision.ParseDZB(geoData)
		if err == nil {
			m.Mesh, err = collision.PairDZB(m.DZB, table)
		}
	default:
		err = fmt.Errorf("unknown geometry kind %s", p.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.Geometry, err)
	}
	return m, nil
}

// Load decodes pairs concurrently. A pair that fails to decode is logged
// and reported in Result.Failed; only context cancellation aborts the load.
func Load(ctx context.Context, pairs []Pair, opts Options) (*Result, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Named("stage")
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	start := time.Now()
	models := make([]*Model, len(pairs))
	errs := make([]error, len(pairs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var mu sync.Mutex
	emptyLeaves := 0

	for i, p := range pairs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			m, err := LoadPair(p, opts.Limits)
			if err != nil {
				log.Warn("skipping pair", zap.String("name", p.Name), zap.Error(err))
				errs[i] = err
				return nil
			}

			if m.KCL != nil {
				if st := m.KCL.Octree.Stats(); st.EmptyLeaves > 0 {
					log.Debug("octree has empty leaves",
						zap.String("name", p.Name),
						zap.Int("empty", st.EmptyLeaves),
						zap.Int("leaves", st.Leaves))
					mu.Lock()
					emptyLeaves += st.EmptyLeaves
					mu.Unlock()
				}
			}
			models[i] = m
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{}
	for i, m := range models {
		switch {
		case m != nil:
			res.Models = append(res.Models, m)
		case errs[i] != nil:
			res.Failed = append(res.Failed, Failure{Pair: pairs[i], Err: errs[i]})
		}
	}

	log.Info("stage load complete",
		zap.Int("loaded", len(res.Models)),
		zap.Int("failed", len(res.Failed)),
		zap.Int("empty_leaves", emptyLeaves),
		zap.Duration("elapsed", time.Since(start)))
	return res, nil
}
