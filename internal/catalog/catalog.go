package catalog

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"arbsignals/internal/extractor"
)

const DefaultRefreshTimeout = 5 * time.Minute

// Snapshot is one published extraction result. Snapshots are immutable once
// stored; readers see either the previous complete snapshot or this one,
// never a mix.
type Snapshot struct {
	Tier1       []extractor.Signal
	Tier1Stats  extractor.TierOneStats
	Tier2       extractor.TierTwoResult
	RefreshedAt time.Time
}

// Status reports catalog liveness for unauthenticated monitoring endpoints.
type Status struct {
	Refreshing  bool       `json:"refreshing"`
	LastRefresh *time.Time `json:"last_refresh"`
	Tier1Count  int        `json:"tier1_count"`
	Tier2Passed int        `json:"tier2_passed"`
	Tier2Failed int        `json:"tier2_failed"`
	SuccessRate float64    `json:"success_rate"`
}

// Catalog holds the latest snapshot and guards refresh against overlap.
// Readers never block on an in-flight refresh.
type Catalog struct {
	Extractor *extractor.Extractor
	Logger    *zap.Logger
	Timeout   time.Duration

	snapshot   atomic.Pointer[Snapshot]
	refreshing atomic.Bool
}

func (c *Catalog) logger() *zap.Logger {
	if c != nil && c.Logger != nil {
		return c.Logger
	}
	return zap.NewNop()
}

func (c *Catalog) refreshTimeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultRefreshTimeout
}

// Refresh runs one extraction and publishes the snapshot with a single
// pointer store. Single-flight: a call overlapping an in-flight refresh
// returns (false, nil) without doing work. A timeout or extractor error
// keeps the previous snapshot.
func (c *Catalog) Refresh(ctx context.Context) (bool, error) {
	if !c.refreshing.CompareAndSwap(false, true) {
		return false, nil
	}
	defer c.refreshing.Store(false)

	ctx, cancel := context.WithTimeout(ctx, c.refreshTimeout())
	defer cancel()

	started := time.Now()
	result, err := c.Extractor.Run(ctx)
	if err != nil {
		return true, err
	}
	snap := &Snapshot{
		Tier1:       result.Tier1,
		Tier1Stats:  result.Tier1Stats,
		Tier2:       result.Tier2,
		RefreshedAt: time.Now().UTC(),
	}
	c.snapshot.Store(snap)
	c.logger().Info("catalog refreshed",
		zap.Int("tier1", len(snap.Tier1)),
		zap.Int("tier2_passed", len(snap.Tier2.Passed)),
		zap.Int("tier2_failed", len(snap.Tier2.Failed)),
		zap.Duration("took", time.Since(started)),
	)
	return true, nil
}

// Tier1 returns the current tier-1 view. An unpublished catalog yields an
// empty dataset and a nil refresh time.
func (c *Catalog) Tier1() ([]extractor.Signal, extractor.TierOneStats, *time.Time) {
	snap := c.snapshot.Load()
	if snap == nil {
		return []extractor.Signal{}, extractor.TierOneStats{ExchangesCovered: []string{}}, nil
	}
	refreshedAt := snap.RefreshedAt
	return snap.Tier1, snap.Tier1Stats, &refreshedAt
}

// Tier2 returns the current tier-2 view.
func (c *Catalog) Tier2() (extractor.TierTwoResult, *time.Time) {
	snap := c.snapshot.Load()
	if snap == nil {
		return extractor.TierTwoResult{
			Passed:            []extractor.ValidatedSignal{},
			Failed:            []extractor.ValidatedSignal{},
			ValidationSummary: map[string]extractor.ExchangeSummary{},
			FailureBreakdown:  map[string]int{},
		}, nil
	}
	refreshedAt := snap.RefreshedAt
	return snap.Tier2, &refreshedAt
}

func (c *Catalog) Status() Status {
	status := Status{Refreshing: c.refreshing.Load()}
	snap := c.snapshot.Load()
	if snap == nil {
		return status
	}
	refreshedAt := snap.RefreshedAt
	status.LastRefresh = &refreshedAt
	status.Tier1Count = len(snap.Tier1)
	status.Tier2Passed = len(snap.Tier2.Passed)
	status.Tier2Failed = len(snap.Tier2.Failed)
	if status.Tier1Count > 0 {
		status.SuccessRate = math.Round(float64(status.Tier2Passed)/float64(status.Tier1Count)*1000) / 10
	}
	return status
}
