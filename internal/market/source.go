// Package market is the market data source and shared snapshot cache
// described in spec.md §4.8.2 and §9: a single background task refreshes
// prices for the global trading symbol set, and every bot task reads a
// consistent copy. Grounded on the teacher's internal/repositories/
// asset_repository.go CoinGecko client (HTTP call + decode + cache) and
// internal/cache/price_cache.go (TTL map, stale-on-failure fallback),
// generalized from one id-at-a-time lookup into one batched refresh per
// tick that feeds the whole symbol set at once.
package market

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/arenahq/bot-arena/internal/tradingengine"
)

// Source fetches the latest price/24h-change for a set of symbols. The
// CoinGecko-shaped HTTPSource is the default; a custom.Source config
// could substitute another provider without touching the refresher.
type Source interface {
	Fetch(symbols []string) (tradingengine.MarketSnapshot, error)
}

// HTTPSource calls a CoinGecko-compatible /coins/markets endpoint.
type HTTPSource struct {
	baseURL string
	apiKey  string
	client  *http.Client

	// symbolToID maps a trading symbol (BTCUSDT) to the provider's coin id
	// (bitcoin). CoinGecko has no native USDT-perp symbol space, so this is
	// a small static table covering the default trading_symbols set;
	// unmapped symbols are skipped with no error (§4.8.2 degrades gracefully).
	symbolToID map[string]string
}

func NewHTTPSource(baseURL, apiKey string) *HTTPSource {
	return &HTTPSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
		symbolToID: map[string]string{
			"BTCUSDT": "bitcoin",
			"ETHUSDT": "ethereum",
			"SOLUSDT": "solana",
			"BNBUSDT": "binancecoin",
			"XRPUSDT": "ripple",
			"DOGEUSDT": "dogecoin",
			"ADAUSDT": "cardano",
			"AVAXUSDT": "avalanche-2",
		},
	}
}

type coinMarketRow struct {
	ID        string  `json:"id"`
	Price     float64 `json:"current_price"`
	Change24h float64 `json:"price_change_percentage_24h"`
}

// Fetch calls /coins/markets once for every symbol with a known coin id and
// returns a snapshot keyed by trading symbol.
func (s *HTTPSource) Fetch(symbols []string) (tradingengine.MarketSnapshot, error) {
	ids := make([]string, 0, len(symbols))
	idToSymbol := make(map[string]string, len(symbols))
	for _, sym := range symbols {
		id, ok := s.symbolToID[sym]
		if !ok {
			continue
		}
		ids = append(ids, id)
		idToSymbol[id] = sym
	}
	if len(ids) == 0 {
		return tradingengine.MarketSnapshot{}, nil
	}

	url := fmt.Sprintf("%s/coins/markets?vs_currency=usd&ids=%s&order=market_cap_desc&sparkline=false",
		s.baseURL, strings.Join(ids, ","))

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if s.apiKey != "" {
		req.Header.Set("X-CoinGecko-API-Key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("market data unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("market data source returned %d: %s", resp.StatusCode, string(body))
	}

	var rows []coinMarketRow
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode market data: %w", err)
	}

	snapshot := make(tradingengine.MarketSnapshot, len(rows))
	for _, row := range rows {
		symbol, ok := idToSymbol[row.ID]
		if !ok {
			continue
		}
		snapshot[symbol] = tradingengine.MarketPrice{Price: row.Price, Change24h: row.Change24h}
	}
	return snapshot, nil
}
