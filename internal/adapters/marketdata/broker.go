package marketdata

// broker.go — operaciones del bridge y mapeo al dominio.
//
// El bridge habla JSON plano con timestamps Unix en segundos (hora del
// servidor del broker). Todo lo que sale de aquí ya está en tipos del
// dominio; los structs wire no cruzan el límite del paquete.

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/alejandrodnm/wickbot/internal/domain"
)

type wireBar struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"tick_volume"`
}

type wireTick struct {
	Symbol string  `json:"symbol"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
	Time   int64   `json:"time"`
}

type wireAccount struct {
	Balance float64 `json:"balance"`
	Equity  float64 `json:"equity"`
}

type wireSymbolInfo struct {
	Symbol     string  `json:"symbol"`
	VolumeMin  float64 `json:"volume_min"`
	VolumeMax  float64 `json:"volume_max"`
	VolumeStep float64 `json:"volume_step"`
	Point      float64 `json:"point"`
}

type wireOrderRequest struct {
	Symbol  string  `json:"symbol"`
	Side    string  `json:"side"`
	Volume  float64 `json:"volume"`
	Comment string  `json:"comment"`
}

type wireOrderResult struct {
	Ticket string  `json:"ticket"`
	Price  float64 `json:"price"`
	Time   int64   `json:"time"`
}

type wirePosition struct {
	Ticket  string  `json:"ticket"`
	Symbol  string  `json:"symbol"`
	Side    string  `json:"side"`
	Volume  float64 `json:"volume"`
	Price   float64 `json:"price_open"`
	Time    int64   `json:"time"`
	Comment string  `json:"comment"`
}

type wireCloseResult struct {
	Price float64 `json:"price"`
}

// GetBars devuelve las últimas count velas cerradas de la (symbol, tf).
func (c *Client) GetBars(ctx context.Context, symbol string, tf domain.Timeframe, count int) ([]domain.Bar, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("timeframe", string(tf))
	q.Set("count", itoa(count))

	var wire []wireBar
	if err := c.get(ctx, "/bars", q, &wire); err != nil {
		return nil, fmt.Errorf("marketdata.GetBars: %s %s: %w", symbol, tf, err)
	}

	bars := make([]domain.Bar, 0, len(wire))
	for _, w := range wire {
		bars = append(bars, domain.Bar{
			Time:   time.Unix(w.Time, 0).UTC(),
			Open:   w.Open,
			High:   w.High,
			Low:    w.Low,
			Close:  w.Close,
			Volume: w.Volume,
		})
	}
	return bars, nil
}

// GetTick devuelve el último tick bid/ask del símbolo.
func (c *Client) GetTick(ctx context.Context, symbol string) (domain.Tick, error) {
	q := url.Values{}
	q.Set("symbol", symbol)

	var w wireTick
	if err := c.get(ctx, "/tick", q, &w); err != nil {
		return domain.Tick{}, fmt.Errorf("marketdata.GetTick: %s: %w", symbol, err)
	}
	return domain.Tick{
		Symbol: w.Symbol,
		Bid:    w.Bid,
		Ask:    w.Ask,
		Time:   time.Unix(w.Time, 0).UTC(),
	}, nil
}

// Balance devuelve el balance actual de la cuenta.
func (c *Client) Balance(ctx context.Context) (float64, error) {
	var w wireAccount
	if err := c.get(ctx, "/account", nil, &w); err != nil {
		return 0, fmt.Errorf("marketdata.Balance: %w", err)
	}
	return w.Balance, nil
}

// SymbolInfo devuelve los límites de volumen del símbolo.
func (c *Client) SymbolInfo(ctx context.Context, symbol string) (domain.SymbolInfo, error) {
	q := url.Values{}
	q.Set("symbol", symbol)

	var w wireSymbolInfo
	if err := c.get(ctx, "/symbol", q, &w); err != nil {
		return domain.SymbolInfo{}, fmt.Errorf("marketdata.SymbolInfo: %s: %w", symbol, err)
	}
	return domain.SymbolInfo{
		Symbol:     w.Symbol,
		VolumeMin:  w.VolumeMin,
		VolumeMax:  w.VolumeMax,
		VolumeStep: w.VolumeStep,
		Point:      w.Point,
	}, nil
}

// SubmitOrder envía una orden de mercado al bridge.
func (c *Client) SubmitOrder(ctx context.Context, req domain.OrderRequest) (domain.ExecutedOrder, error) {
	body := wireOrderRequest{
		Symbol:  req.Symbol,
		Side:    string(req.Action),
		Volume:  req.Volume,
		Comment: req.Tag,
	}

	var w wireOrderResult
	if err := c.post(ctx, "/orders", body, &w); err != nil {
		return domain.ExecutedOrder{}, fmt.Errorf("marketdata.SubmitOrder: %s %s: %w", req.Action, req.Symbol, err)
	}
	return domain.ExecutedOrder{
		Ticket:    w.Ticket,
		Symbol:    req.Symbol,
		Action:    req.Action,
		Volume:    req.Volume,
		FillPrice: w.Price,
		FillTime:  time.Unix(w.Time, 0).UTC(),
	}, nil
}

// ClosePosition cierra la posición por ticket y devuelve el precio de salida.
func (c *Client) ClosePosition(ctx context.Context, ticket string) (float64, error) {
	var w wireCloseResult
	if err := c.post(ctx, "/positions/"+url.PathEscape(ticket)+"/close", struct{}{}, &w); err != nil {
		return 0, fmt.Errorf("marketdata.ClosePosition: %s: %w", ticket, err)
	}
	return w.Price, nil
}

// OpenPositions devuelve las posiciones abiertas con el tag dado.
func (c *Client) OpenPositions(ctx context.Context, tag string) ([]domain.Position, error) {
	q := url.Values{}
	if tag != "" {
		q.Set("comment", tag)
	}

	var wire []wirePosition
	if err := c.get(ctx, "/positions", q, &wire); err != nil {
		return nil, fmt.Errorf("marketdata.OpenPositions: %w", err)
	}

	positions := make([]domain.Position, 0, len(wire))
	for _, w := range wire {
		action := domain.ActionBuy
		if w.Side == string(domain.ActionSell) {
			action = domain.ActionSell
		}
		positions = append(positions, domain.Position{
			Ticket:     w.Ticket,
			Symbol:     w.Symbol,
			Action:     action,
			EntryPrice: w.Price,
			EntryTime:  time.Unix(w.Time, 0).UTC(),
			Volume:     w.Volume,
			Tag:        w.Comment,
		})
	}
	return positions, nil
}
