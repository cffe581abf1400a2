package extractor

import (
	"context"
	"errors"
	"io/fs"
	"sort"
	"time"

	"go.uber.org/zap"
)

// DefaultExchanges is the exchange set the detection engine writes
// documents for.
var DefaultExchanges = []string{"binance", "gate", "mexc", "coinex", "htx", "bitmart", "lbank"}

// Extractor builds the two-tier dataset from per-exchange source documents.
type Extractor struct {
	Source    Source
	Exchanges []string
	Logger    *zap.Logger

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

func (e *Extractor) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

func (e *Extractor) exchanges() []string {
	if len(e.Exchanges) > 0 {
		return e.Exchanges
	}
	return DefaultExchanges
}

func (e *Extractor) logger() *zap.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return zap.NewNop()
}

// Run performs one full extraction: tier-1 normalization across all
// exchanges, then tier-2 classification. Per-exchange problems degrade to
// an empty contribution and a log line; only context cancellation aborts.
func (e *Extractor) Run(ctx context.Context) (*Result, error) {
	now := e.now()

	tier1, err := e.extractTier1(ctx, now)
	if err != nil {
		return nil, err
	}
	tier2, err := e.extractTier2(ctx, now)
	if err != nil {
		return nil, err
	}

	return &Result{
		Tier1:      tier1,
		Tier1Stats: tierOneStats(tier1),
		Tier2:      tier2,
	}, nil
}

func (e *Extractor) extractTier1(ctx context.Context, now time.Time) ([]Signal, error) {
	signals := make([]Signal, 0)
	for _, exchange := range e.exchanges() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, err := e.Source.ReadDocument(ctx, opportunitiesDoc(exchange))
		if errors.Is(err, fs.ErrNotExist) {
			e.logger().Debug("opportunities document missing", zap.String("exchange", exchange))
			continue
		}
		if err != nil {
			e.logger().Warn("read opportunities document failed",
				zap.String("exchange", exchange), zap.Error(err))
			continue
		}
		batch, err := normalizeRoutes(exchange, doc, now)
		if err != nil {
			e.logger().Warn("malformed opportunities document",
				zap.String("exchange", exchange), zap.Error(err))
			continue
		}
		signals = append(signals, batch...)
	}
	return signals, nil
}

func (e *Extractor) extractTier2(ctx context.Context, now time.Time) (TierTwoResult, error) {
	result := TierTwoResult{
		Passed:            make([]ValidatedSignal, 0),
		Failed:            make([]ValidatedSignal, 0),
		ValidationSummary: make(map[string]ExchangeSummary),
		FailureBreakdown:  make(map[string]int),
	}
	for _, exchange := range e.exchanges() {
		if err := ctx.Err(); err != nil {
			return TierTwoResult{}, err
		}
		doc, err := e.Source.ReadDocument(ctx, cyclesDoc(exchange))
		if errors.Is(err, fs.ErrNotExist) {
			e.logger().Debug("cycles document missing", zap.String("exchange", exchange))
			continue
		}
		if err != nil {
			e.logger().Warn("read cycles document failed",
				zap.String("exchange", exchange), zap.Error(err))
			result.ValidationSummary[exchange] = ExchangeSummary{}
			continue
		}
		cls, err := classifyCycles(exchange, doc, now)
		if err != nil {
			e.logger().Warn("malformed cycles document",
				zap.String("exchange", exchange), zap.Error(err))
			// Document present: the exchange keeps a zero-count summary row.
			result.ValidationSummary[exchange] = ExchangeSummary{}
			continue
		}
		result.Passed = append(result.Passed, cls.Passed...)
		result.Failed = append(result.Failed, cls.Failed...)
		result.ValidationSummary[exchange] = cls.Summary
		for reason, n := range cls.Reasons {
			result.FailureBreakdown[reason] += n
		}
	}
	return result, nil
}

func tierOneStats(signals []Signal) TierOneStats {
	stats := TierOneStats{ExchangesCovered: []string{}}
	if len(signals) == 0 {
		return stats
	}

	seen := map[string]struct{}{}
	minP := signals[0].TotalProfitPercent
	maxP := minP
	sum := 0.0
	for _, s := range signals {
		seen[s.SourceExchange] = struct{}{}
		if s.TotalProfitPercent < minP {
			minP = s.TotalProfitPercent
		}
		if s.TotalProfitPercent > maxP {
			maxP = s.TotalProfitPercent
		}
		sum += s.TotalProfitPercent
	}
	for exchange := range seen {
		stats.ExchangesCovered = append(stats.ExchangesCovered, exchange)
	}
	sort.Strings(stats.ExchangesCovered)
	stats.ProfitRange = ProfitRange{MinPercent: round2(minP), MaxPercent: round2(maxP)}
	stats.AverageProfit = round2(sum / float64(len(signals)))
	return stats
}
