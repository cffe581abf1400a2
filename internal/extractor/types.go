package extractor

import (
	"encoding/json"
	"math"
	"time"
)

const (
	StatusPassed = "PASSED"
	StatusFailed = "FAILED"
)

// Signal is one tier-1 arbitrage opportunity normalized from a profitable
// route. Values are fixed at extraction time; profit percent and amount both
// come from the route's profitability block.
type Signal struct {
	SignalID             string          `json:"signal_id"`
	Timestamp            time.Time       `json:"timestamp"`
	Tier                 int             `json:"tier"`
	SourceExchange       string          `json:"source_exchange"`
	RouteID              string          `json:"route_id"`
	TokenSymbol          string          `json:"token_symbol"`
	TokenPair            string          `json:"token_pair"`
	TradingRoute         string          `json:"trading_route"`
	TotalProfitPercent   float64         `json:"total_profit_percent"`
	RequiredCapitalUSDT  float64         `json:"required_capital_usdt"`
	ExpectedProfitUSDT   float64         `json:"expected_profit_usdt"`
	ExecutionTimeMinutes float64         `json:"execution_time_minutes"`
	NetworkPrimary       string          `json:"network_primary"`
	NetworkSecondary     *string         `json:"network_secondary"`
	TotalScore           float64         `json:"total_score"`
	RouteDetails         RouteDetails    `json:"route_details"`
	RawData              json.RawMessage `json:"raw_data"`
}

type RouteDetails struct {
	FromExchange string  `json:"from_exchange"`
	ToExchange   string  `json:"to_exchange"`
	Network      string  `json:"network"`
	Status       string  `json:"status"`
	Confidence   float64 `json:"confidence"`
}

// ValidatedSignal is a tier-2 signal built from a simulated cycle. Failure
// fields are set only when ValidationStatus is FAILED, and Executable is
// true only when it is PASSED.
type ValidatedSignal struct {
	SignalID             string          `json:"signal_id"`
	Timestamp            time.Time       `json:"timestamp"`
	Tier                 int             `json:"tier"`
	SourceExchange       string          `json:"source_exchange"`
	CycleID              string          `json:"cycle_id"`
	TokenSymbol          string          `json:"token_symbol"`
	TokenPair            string          `json:"token_pair"`
	TradingRoute         string          `json:"trading_route"`
	TotalProfitPercent   float64         `json:"total_profit_percent"`
	RequiredCapitalUSDT  float64         `json:"required_capital_usdt"`
	ExpectedProfitUSDT   float64         `json:"expected_profit_usdt"`
	ExecutionTimeMinutes float64         `json:"execution_time_minutes"`
	NetworkPrimary       string          `json:"network_primary"`
	ValidationStatus     string          `json:"validation_status"`
	Executable           bool            `json:"executable"`
	ExecutionConfidence  float64         `json:"execution_confidence"`
	SimulationResult     string          `json:"simulation_result"`
	ValidationTimestamp  string          `json:"validation_timestamp"`
	FailureReason        string          `json:"failure_reason,omitempty"`
	FailureCategory      string          `json:"failure_category,omitempty"`
	RiskAssessment       RiskAssessment  `json:"risk_assessment"`
	RawData              json.RawMessage `json:"raw_data"`
}

type RiskAssessment struct {
	LiquiditySufficient bool `json:"liquidity_sufficient"`
	NetworkHealthy      bool `json:"network_healthy"`
	PriceStable         bool `json:"price_stable"`
	ExecutionReady      bool `json:"execution_ready"`
}

// TierTwoResult is the full classification output across all exchanges.
type TierTwoResult struct {
	Passed            []ValidatedSignal          `json:"signals_passed"`
	Failed            []ValidatedSignal          `json:"signals_failed"`
	ValidationSummary map[string]ExchangeSummary `json:"validation_summary"`
	FailureBreakdown  map[string]int             `json:"failure_breakdown"`
}

// ExchangeSummary counts one exchange's cycle outcomes. An exchange whose
// cycles document exists gets an entry even when it contributed nothing.
type ExchangeSummary struct {
	TotalValidated int     `json:"total_validated"`
	Passed         int     `json:"passed"`
	Failed         int     `json:"failed"`
	SuccessRate    float64 `json:"success_rate"`
}

type TierOneStats struct {
	ExchangesCovered []string    `json:"exchanges_covered"`
	ProfitRange      ProfitRange `json:"profit_range"`
	AverageProfit    float64     `json:"average_profit"`
}

type ProfitRange struct {
	MinPercent float64 `json:"min_percent"`
	MaxPercent float64 `json:"max_percent"`
}

// Result is one complete extraction cycle: the tier-1 dataset with its
// stats plus the tier-2 partitions.
type Result struct {
	Tier1      []Signal
	Tier1Stats TierOneStats
	Tier2      TierTwoResult
}

func stringOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func floatOr(v *float64, fallback float64) float64 {
	if v != nil {
		return *v
	}
	return fallback
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
