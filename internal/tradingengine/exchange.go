package tradingengine

import "context"

// Adapter is the live-execution external collaborator (§6 "Exchange
// adapter"). The engine depends only on this contract, never on a specific
// venue; internal/exchange provides the concrete implementations.
type Adapter interface {
	OpenPosition(ctx context.Context, side, symbol string, size, leverage float64, sl, tp *float64) (Fill, error)
	ClosePosition(ctx context.Context, ref string) (Settlement, error)
	MarkPrices(ctx context.Context, symbols []string) (map[string]float64, error)
}

// Fill is what the adapter returns for an open request.
type Fill struct {
	Price       float64
	Fee         float64
	PositionRef string
}

// Settlement is what the adapter returns for a close request. It carries no
// PnL of its own — the adapter has no view of the position's entry price, so
// CloseLive derives realized PnL from ExitPrice against the stored position.
type Settlement struct {
	ExitPrice float64
	Fee       float64
}
