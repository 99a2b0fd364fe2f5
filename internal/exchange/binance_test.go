package exchange

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestBinanceSideMapsLongAndShort(t *testing.T) {
	if got := binanceSide("LONG"); got != "BUY" {
		t.Fatalf("expected LONG to map to BUY, got %s", got)
	}
	if got := binanceSide("SHORT"); got != "SELL" {
		t.Fatalf("expected SHORT to map to SELL, got %s", got)
	}
}

func TestSignAddsTimestampAndSignature(t *testing.T) {
	a := NewBinanceFuturesAdapter("", "key", "secret")
	params := url.Values{"symbol": {"BTCUSDT"}}
	signed := a.sign(params)
	if signed.Get("timestamp") == "" {
		t.Fatal("expected a timestamp to be set")
	}
	if signed.Get("signature") == "" {
		t.Fatal("expected a signature to be set")
	}
}

func TestSignDiffersForDifferentSecrets(t *testing.T) {
	a1 := NewBinanceFuturesAdapter("", "key", "secret")
	a2 := NewBinanceFuturesAdapter("", "key", "other-secret")

	params1 := url.Values{"symbol": {"BTCUSDT"}, "timestamp": {"1700000000000"}}
	params2 := url.Values{"symbol": {"BTCUSDT"}, "timestamp": {"1700000000000"}}

	mac1 := a1.sign(cloneValues(params1)).Get("signature")
	mac2 := a2.sign(cloneValues(params2)).Get("signature")
	if mac1 == mac2 {
		t.Fatal("expected different secrets to produce different signatures")
	}
}

func cloneValues(v url.Values) url.Values {
	out := url.Values{}
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}

func TestOpenPositionParsesFillFromSignedOrderResponse(t *testing.T) {
	var gotAPIKey, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAPIKey = r.Header.Get("X-MBX-APIKEY")
		gotMethod = r.Method
		if !strings.Contains(r.URL.Path, "/fapi/v1/order") {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"avgPrice": "42000.50",
			"orderId":  12345,
		})
	}))
	defer srv.Close()

	a := NewBinanceFuturesAdapter(srv.URL, "my-key", "my-secret")
	fill, err := a.OpenPosition(context.Background(), "LONG", "BTCUSDT", 0.01, 5, nil, nil)
	if err != nil {
		t.Fatalf("OpenPosition: %v", err)
	}
	if gotAPIKey != "my-key" {
		t.Fatalf("expected API key header to be forwarded, got %q", gotAPIKey)
	}
	if gotMethod != http.MethodPost {
		t.Fatalf("expected POST, got %s", gotMethod)
	}
	if fill.Price != 42000.50 {
		t.Fatalf("expected price 42000.50, got %v", fill.Price)
	}
	if fill.PositionRef != "BTCUSDT:12345" {
		t.Fatalf("expected position ref BTCUSDT:12345, got %q", fill.PositionRef)
	}
	if fill.Fee <= 0 {
		t.Fatalf("expected a positive estimated fee, got %v", fill.Fee)
	}
}

func TestOpenPositionPropagatesAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":-2010,"msg":"insufficient margin"}`))
	}))
	defer srv.Close()

	a := NewBinanceFuturesAdapter(srv.URL, "key", "secret")
	if _, err := a.OpenPosition(context.Background(), "LONG", "BTCUSDT", 0.01, 5, nil, nil); err == nil {
		t.Fatal("expected an error for a non-200 response")
	}
}

func TestClosePositionRejectsMalformedRef(t *testing.T) {
	a := NewBinanceFuturesAdapter("http://unused", "key", "secret")
	if _, err := a.ClosePosition(context.Background(), "not-a-valid-ref"); err == nil {
		t.Fatal("expected an error for a ref with no symbol:orderID separator")
	}
}

func TestClosePositionComputesExitPriceAndFee(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"avgPrice": "43000",
			"origQty":  "0.01",
		})
	}))
	defer srv.Close()

	a := NewBinanceFuturesAdapter(srv.URL, "key", "secret")
	settlement, err := a.ClosePosition(context.Background(), "BTCUSDT:987")
	if err != nil {
		t.Fatalf("ClosePosition: %v", err)
	}
	if settlement.ExitPrice != 43000 {
		t.Fatalf("expected exit price 43000, got %v", settlement.ExitPrice)
	}
	wantFee := 0.01 * 43000 * 0.0004
	if settlement.Fee != wantFee {
		t.Fatalf("expected fee %v, got %v", wantFee, settlement.Fee)
	}
}

func TestMarkPricesParsesEachSymbol(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		symbol := r.URL.Query().Get("symbol")
		json.NewEncoder(w).Encode(map[string]string{"markPrice": map[string]string{
			"BTCUSDT": "42000.1",
			"ETHUSDT": "2200.5",
		}[symbol]})
	}))
	defer srv.Close()

	a := NewBinanceFuturesAdapter(srv.URL, "key", "secret")
	prices, err := a.MarkPrices(context.Background(), []string{"BTCUSDT", "ETHUSDT"})
	if err != nil {
		t.Fatalf("MarkPrices: %v", err)
	}
	if prices["BTCUSDT"] != 42000.1 || prices["ETHUSDT"] != 2200.5 {
		t.Fatalf("unexpected prices: %+v", prices)
	}
}

func TestRateLimiterWaitNeverDrivesTokensNegative(t *testing.T) {
	rl := NewRateLimiter(2, 100)
	rl.Wait()
	rl.Wait()
	if rl.tokens < 0 {
		t.Fatalf("expected tokens to never go negative, got %d", rl.tokens)
	}
}
