package extractor

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// statusProfitable is the canonical route marker. The match is
// case-sensitive: routes in any other status are dropped, not rejected.
const statusProfitable = "PROFITABLE"

type tokenRecord struct {
	Symbol          string            `json:"symbol"`
	ArbitrageRoutes []json.RawMessage `json:"arbitrageRoutes"`
}

type arbitrageRoute struct {
	RouteID           string        `json:"routeId"`
	Status            string        `json:"status"`
	ToCex             string        `json:"toCex"`
	Network           string        `json:"network"`
	EstimatedDuration *float64      `json:"estimatedDuration"`
	Score             float64       `json:"score"`
	Confidence        *float64      `json:"confidence"`
	Profitability     profitability `json:"profitability"`
}

type profitability struct {
	ProfitPercent   float64  `json:"profitPercent"`
	Profit          float64  `json:"profit"`
	RequiredCapital *float64 `json:"requiredCapital"`
}

// normalizeRoutes turns one exchange's opportunities document into tier-1
// signals, one per profitable route. A malformed document is an error for
// the caller to log; individual routes that fail to decode are skipped.
func normalizeRoutes(exchange string, doc []byte, now time.Time) ([]Signal, error) {
	var tokens []tokenRecord
	if err := json.Unmarshal(doc, &tokens); err != nil {
		return nil, err
	}

	signals := make([]Signal, 0)
	for _, token := range tokens {
		symbol := stringOr(token.Symbol, "UNKNOWN")
		for _, raw := range token.ArbitrageRoutes {
			var route arbitrageRoute
			if err := json.Unmarshal(raw, &route); err != nil {
				continue
			}
			if route.Status != statusProfitable {
				continue
			}
			signals = append(signals, signalFromRoute(exchange, symbol, route, raw, now))
		}
	}
	return signals, nil
}

func signalFromRoute(exchange, symbol string, route arbitrageRoute, raw json.RawMessage, now time.Time) Signal {
	from := strings.ToUpper(exchange)
	to := strings.ToUpper(stringOr(route.ToCex, "UNKNOWN"))
	network := stringOr(route.Network, "UNKNOWN")
	routeID := stringOr(route.RouteID, "unknown")

	return Signal{
		SignalID:             fmt.Sprintf("T1_%s_%s_%s_%d", from, symbol, routeID, now.Unix()),
		Timestamp:            now,
		Tier:                 1,
		SourceExchange:       from,
		RouteID:              routeID,
		TokenSymbol:          symbol,
		TokenPair:            symbol + "/USDT",
		TradingRoute:         from + " → " + to,
		TotalProfitPercent:   round3(route.Profitability.ProfitPercent),
		RequiredCapitalUSDT:  floatOr(route.Profitability.RequiredCapital, 500),
		ExpectedProfitUSDT:   round2(route.Profitability.Profit),
		ExecutionTimeMinutes: floatOr(route.EstimatedDuration, 15),
		NetworkPrimary:       network,
		NetworkSecondary:     nil,
		TotalScore:           route.Score,
		RouteDetails: RouteDetails{
			FromExchange: from,
			ToExchange:   to,
			Network:      network,
			Status:       stringOr(route.Status, "UNKNOWN"),
			Confidence:   floatOr(route.Confidence, 0.8),
		},
		RawData: raw,
	}
}
