package extractor

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type cyclesDocument struct {
	SimulatedCycles []json.RawMessage `json:"simulated_cycles"`
}

type cycleRecord struct {
	CycleID                string   `json:"cycle_id"`
	Symbol                 string   `json:"symbol"`
	TotalProfitPercent     float64  `json:"total_profit_percent"`
	Hop1                   hop      `json:"hop1"`
	Hop2                   *hop     `json:"hop2"`
	EstimatedExecutionTime *float64 `json:"estimated_execution_time"`
	Executable             bool     `json:"executable"`
	SimulationResult       string   `json:"simulation_result"`
	ExecutionConfidence    *float64 `json:"execution_confidence"`
	SimulationTimestamp    string   `json:"simulation_timestamp"`
	FailureReason          string   `json:"failure_reason"`
	FailureCategory        string   `json:"failure_category"`
}

type hop struct {
	FromExchange    string   `json:"from_exchange"`
	ToExchange      string   `json:"to_exchange"`
	Network         string   `json:"network"`
	RequiredCapital *float64 `json:"required_capital"`
}

// cyclePasses is the validation verdict. Both conditions must hold: an
// executable cycle whose simulation result is anything but success still
// fails.
func cyclePasses(c cycleRecord) bool {
	return c.Executable && strings.EqualFold(c.SimulationResult, "SUCCESS")
}

// failureRules rewrite raw engine failure reasons into customer wording.
// Applied in order; the first substring match wins and unmatched reasons
// pass through verbatim.
var failureRules = []struct {
	match  string
	reason string
}{
	{"profit below threshold", "Profit margin too low after real-time price check"},
	{"liquidity", "Insufficient liquidity on exchange orderbook"},
	{"price", "Price moved unfavorably since initial detection"},
	{"network", "Network congestion or high transfer fees"},
	{"timeout", "Exchange API response too slow for execution"},
}

func customerFailureReason(raw string) string {
	reason := stringOr(raw, "Unknown validation failure")
	lower := strings.ToLower(reason)
	for _, rule := range failureRules {
		if strings.Contains(lower, rule.match) {
			return rule.reason
		}
	}
	return reason
}

var failureCategories = map[string]string{
	"PRICE_MOVEMENT":         "Market Price Change",
	"LIQUIDITY_INSUFFICIENT": "Low Liquidity",
	"NETWORK_CONGESTION":     "Network Issues",
	"API_TIMEOUT":            "Exchange Problems",
	"PROFIT_TOO_LOW":         "Profit Threshold",
	"UNKNOWN":                "Technical Issues",
}

// failureCategoryLabel maps an engine category onto the closed
// customer-facing set; anything unrecognized becomes "Technical Issues".
func failureCategoryLabel(raw string) string {
	if label, ok := failureCategories[stringOr(raw, "UNKNOWN")]; ok {
		return label
	}
	return "Technical Issues"
}

type exchangeClassification struct {
	Passed  []ValidatedSignal
	Failed  []ValidatedSignal
	Summary ExchangeSummary
	Reasons map[string]int
}

// classifyCycles partitions one exchange's simulated cycles into passed and
// failed tier-2 signals and builds the exchange summary. A malformed
// document is an error for the caller to log.
func classifyCycles(exchange string, doc []byte, now time.Time) (exchangeClassification, error) {
	var parsed cyclesDocument
	if err := json.Unmarshal(doc, &parsed); err != nil {
		return exchangeClassification{}, err
	}

	out := exchangeClassification{Reasons: make(map[string]int)}
	for _, raw := range parsed.SimulatedCycles {
		var cycle cycleRecord
		if err := json.Unmarshal(raw, &cycle); err != nil {
			continue
		}
		if cyclePasses(cycle) {
			out.Passed = append(out.Passed, passedSignal(exchange, cycle, raw, now))
		} else {
			failed := failedSignal(exchange, cycle, raw, now)
			out.Failed = append(out.Failed, failed)
			out.Reasons[failed.FailureReason]++
		}
	}

	total := len(parsed.SimulatedCycles)
	rate := 0.0
	if total > 0 {
		rate = round1(float64(len(out.Passed)) / float64(total) * 100)
	}
	out.Summary = ExchangeSummary{
		TotalValidated: total,
		Passed:         len(out.Passed),
		Failed:         len(out.Failed),
		SuccessRate:    rate,
	}
	return out, nil
}

// validatedBase builds the fields shared by passed and failed signals.
// Capital defaults to 100 per cycle hop; the profit amount is derived from
// the same cycle's percent so the two never drift apart.
func validatedBase(exchange string, c cycleRecord, raw json.RawMessage, now time.Time) ValidatedSignal {
	ex := strings.ToUpper(exchange)
	symbol := stringOr(c.Symbol, "UNKNOWN")

	from := stringOr(c.Hop1.FromExchange, ex)
	inter := stringOr(c.Hop1.ToExchange, "UNKNOWN")
	final := inter
	if c.Hop2 != nil && c.Hop2.ToExchange != "" {
		final = c.Hop2.ToExchange
	}
	route := from + " → " + inter
	if c.Hop2 != nil && final != inter {
		route += " → " + final
	}

	capital := floatOr(c.Hop1.RequiredCapital, 100)
	profitAmount := (c.TotalProfitPercent / 100) * capital

	return ValidatedSignal{
		Timestamp:            now,
		Tier:                 2,
		SourceExchange:       ex,
		CycleID:              stringOr(c.CycleID, "unknown"),
		TokenSymbol:          symbol,
		TokenPair:            symbol + "/USDT",
		TradingRoute:         route,
		TotalProfitPercent:   round3(c.TotalProfitPercent),
		RequiredCapitalUSDT:  capital,
		ExpectedProfitUSDT:   round2(profitAmount),
		ExecutionTimeMinutes: floatOr(c.EstimatedExecutionTime, 15),
		NetworkPrimary:       stringOr(c.Hop1.Network, "UNKNOWN"),
		RawData:              raw,
	}
}

func passedSignal(exchange string, c cycleRecord, raw json.RawMessage, now time.Time) ValidatedSignal {
	s := validatedBase(exchange, c, raw, now)
	s.SignalID = fmt.Sprintf("T2_PASS_%s_%s_%d", s.SourceExchange, s.CycleID, now.Unix())
	s.ValidationStatus = StatusPassed
	s.Executable = true
	s.ExecutionConfidence = floatOr(c.ExecutionConfidence, 0.95)
	s.SimulationResult = stringOr(c.SimulationResult, StatusPassed)
	s.ValidationTimestamp = stringOr(c.SimulationTimestamp, now.Format(time.RFC3339))
	s.RiskAssessment = RiskAssessment{
		LiquiditySufficient: true,
		NetworkHealthy:      true,
		PriceStable:         true,
		ExecutionReady:      true,
	}
	return s
}

func failedSignal(exchange string, c cycleRecord, raw json.RawMessage, now time.Time) ValidatedSignal {
	s := validatedBase(exchange, c, raw, now)
	reason := customerFailureReason(c.FailureReason)
	lower := strings.ToLower(reason)

	s.SignalID = fmt.Sprintf("T2_FAIL_%s_%s_%d", s.SourceExchange, s.CycleID, now.Unix())
	s.ValidationStatus = StatusFailed
	s.Executable = false
	s.ExecutionConfidence = floatOr(c.ExecutionConfidence, 0)
	s.SimulationResult = stringOr(c.SimulationResult, StatusFailed)
	s.ValidationTimestamp = stringOr(c.SimulationTimestamp, now.Format(time.RFC3339))
	s.FailureReason = reason
	s.FailureCategory = failureCategoryLabel(c.FailureCategory)
	s.RiskAssessment = RiskAssessment{
		LiquiditySufficient: !strings.Contains(lower, "liquidity"),
		NetworkHealthy:      !strings.Contains(lower, "network"),
		PriceStable:         !strings.Contains(lower, "price"),
		ExecutionReady:      false,
	}
	return s
}
