// Package exchange holds the concrete tradingengine.Adapter implementations
// live-mode bots execute against (§6 "Exchange adapter"). Grounded on the
// teacher's internal/binance/client.go BinanceClient (rate-limited REST
// client, baseURL/httpClient/rateLimiter shape), extended here from a
// read-only market-data client into a signed USDT-M futures order client.
package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/arenahq/bot-arena/internal/tradingengine"
)

// BinanceFuturesAdapter talks to Binance's USDT-M perpetual futures API.
// Each instance is bound to one key/secret pair and is not safe for
// concurrent use: its RateLimiter holds unsynchronized token state.
type BinanceFuturesAdapter struct {
	baseURL     string
	apiKey      string
	apiSecret   string
	httpClient  *http.Client
	rateLimiter *RateLimiter
}

// NewBinanceFuturesAdapter builds an adapter bound to one user's decrypted
// API key/secret pair (vault-decrypted by the caller per turn, never
// cached across bots, §7 EncryptionFailed boundary).
func NewBinanceFuturesAdapter(baseURL, apiKey, apiSecret string) *BinanceFuturesAdapter {
	if baseURL == "" {
		baseURL = "https://fapi.binance.com"
	}
	return &BinanceFuturesAdapter{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		apiSecret: apiSecret,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		rateLimiter: NewRateLimiter(15, 15),
	}
}

var _ tradingengine.Adapter = (*BinanceFuturesAdapter)(nil)

// RateLimiter is the teacher's token-bucket limiter, unchanged in shape.
type RateLimiter struct {
	tokens         int
	maxTokens      int
	refillRate     int
	lastRefillTime time.Time
}

func NewRateLimiter(maxTokens, refillRate int) *RateLimiter {
	return &RateLimiter{tokens: maxTokens, maxTokens: maxTokens, refillRate: refillRate, lastRefillTime: time.Now()}
}

func (rl *RateLimiter) Wait() {
	for {
		rl.refill()
		if rl.tokens > 0 {
			rl.tokens--
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func (rl *RateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(rl.lastRefillTime).Seconds()
	tokensToAdd := int(elapsed * float64(rl.refillRate))
	if tokensToAdd > 0 {
		rl.tokens += tokensToAdd
		if rl.tokens > rl.maxTokens {
			rl.tokens = rl.maxTokens
		}
		rl.lastRefillTime = now
	}
}

func binanceSide(side string) string {
	if side == "SHORT" {
		return "SELL"
	}
	return "BUY"
}

func (c *BinanceFuturesAdapter) sign(params url.Values) url.Values {
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	mac.Write([]byte(params.Encode()))
	params.Set("signature", hex.EncodeToString(mac.Sum(nil)))
	return params
}

func (c *BinanceFuturesAdapter) signedRequest(ctx context.Context, method, path string, params url.Values) (map[string]interface{}, error) {
	c.rateLimiter.Wait()
	params = c.sign(params)

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-MBX-APIKEY", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("binance futures API error (status %d): %s", resp.StatusCode, string(body))
	}

	var out map[string]interface{}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return out, nil
}

// OpenPosition places a MARKET order for immediate fill and reads back the
// average fill price; the fee is estimated as size times a flat 0.04% taker
// rate rather than read from the response. Binance settles futures orders nearly
// instantly at market; there is no separate "wait for fill" step for a
// MARKET order type.
func (c *BinanceFuturesAdapter) OpenPosition(ctx context.Context, side, symbol string, size, leverage float64, sl, tp *float64) (tradingengine.Fill, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", binanceSide(side))
	params.Set("type", "MARKET")
	params.Set("quantity", strconv.FormatFloat(size, 'f', -1, 64))

	resp, err := c.signedRequest(ctx, http.MethodPost, "/fapi/v1/order", params)
	if err != nil {
		return tradingengine.Fill{}, err
	}

	price, _ := floatField(resp, "avgPrice")
	orderID, _ := resp["orderId"].(float64)
	fee := size * 0.0004 // Binance USDT-M taker fee, not itemized per-order by this endpoint

	return tradingengine.Fill{
		Price:       price,
		Fee:         fee,
		PositionRef: fmt.Sprintf("%s:%d", symbol, int64(orderID)),
	}, nil
}

// ClosePosition places a reduce-only MARKET order against ref's symbol in
// the opposite direction, closing the whole position.
func (c *BinanceFuturesAdapter) ClosePosition(ctx context.Context, ref string) (tradingengine.Settlement, error) {
	parts := strings.SplitN(ref, ":", 2)
	if len(parts) != 2 {
		return tradingengine.Settlement{}, fmt.Errorf("malformed exchange ref %q", ref)
	}
	symbol := parts[0]

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("type", "MARKET")
	params.Set("closePosition", "true")

	resp, err := c.signedRequest(ctx, http.MethodPost, "/fapi/v1/order", params)
	if err != nil {
		return tradingengine.Settlement{}, err
	}

	exitPrice, _ := floatField(resp, "avgPrice")
	qty, _ := floatField(resp, "origQty")
	fee := qty * exitPrice * 0.0004

	return tradingengine.Settlement{
		ExitPrice: exitPrice,
		Fee:       fee,
	}, nil
}

// MarkPrices calls the futures mark-price endpoint for each symbol. Turns
// are priced from the shared refresher's snapshot; no turn calls this.
func (c *BinanceFuturesAdapter) MarkPrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	out := make(map[string]float64, len(symbols))
	for _, symbol := range symbols {
		c.rateLimiter.Wait()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/fapi/v1/premiumIndex?symbol="+url.QueryEscape(symbol), nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		var row struct {
			MarkPrice string `json:"markPrice"`
		}
		decodeErr := json.NewDecoder(resp.Body).Decode(&row)
		resp.Body.Close()
		if decodeErr != nil {
			return nil, decodeErr
		}
		price, err := strconv.ParseFloat(row.MarkPrice, 64)
		if err != nil {
			continue
		}
		out[symbol] = price
	}
	return out, nil
}

func floatField(m map[string]interface{}, key string) (float64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
