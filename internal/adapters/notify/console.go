package notify

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/alejandrodnm/wickbot/internal/backtest"
	"github.com/alejandrodnm/wickbot/internal/domain"
	"github.com/olekukonko/tablewriter"
)

// Console imprime señales y reportes de backtest en stdout.
type Console struct {
	out   io.Writer
	table bool
}

// NewConsole crea un reporter que escribe a stdout.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table}
}

// NewConsoleWriter crea un reporter para tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table}
}

// Signal imprime una línea compacta con el resultado de una evaluación.
func (c *Console) Signal(sig domain.Signal) {
	now := sig.Time.Format("15:04:05")
	conf := sig.Confirmations

	if sig.Action == domain.ActionNone {
		fmt.Fprintf(c.out, "[%s] %s no signal (stopped at %s)\n",
			now, sig.Symbol, conf.LastStage)
		return
	}
	fmt.Fprintf(c.out, "[%s] %s %s @ %.5f | bias:%s fib:%.5f shingle:%s entry:%s\n",
		now, sig.Symbol, sig.Action, sig.Price,
		conf.Bias, conf.H4FibLevel, conf.ShingleColor, conf.EntryTimeframe)
}

// Trade imprime una línea compacta con un cierre de posición.
func (c *Console) Trade(t domain.Trade) {
	sign := "+"
	if t.PnL < 0 {
		sign = ""
	}
	fmt.Fprintf(c.out, "[%s] closed %s %s %s%.2f USD (%s) balance %.2f\n",
		t.ExitTime.Format("15:04:05"), t.Symbol, t.Action, sign, t.PnL, t.ExitReason, t.BalanceAfter)
}

// BacktestReport imprime el reporte completo de un run.
func (c *Console) BacktestReport(res *backtest.Result) {
	fmt.Fprintf(c.out, "\n=== BACKTEST %s — %s %s→%s (%s, %s) ===\n",
		shortID(res.RunID),
		strings.Join(res.Symbols, ","),
		res.From.Format("2006-01-02"),
		res.To.Format("2006-01-02"),
		res.Mode,
		res.Direction,
	)

	c.printStats(res)
	if c.table {
		c.printTrades(res.Trades)
		c.printEquity(res.Equity)
	}
}

// printStats imprime las métricas agregadas del run.
func (c *Console) printStats(res *backtest.Result) {
	s := res.Stats

	table := tablewriter.NewWriter(c.out)
	table.Header("Metric", "Value")
	table.Append("Trades", fmt.Sprintf("%d (%dW / %dL)", s.TotalTrades, s.Wins, s.Losses))
	table.Append("Win rate", fmt.Sprintf("%.1f%%", s.WinRate*100))
	table.Append("Total P/L", fmt.Sprintf("$%.2f", s.TotalPnL))
	table.Append("Return", fmt.Sprintf("%.2f%%", s.ReturnPct))
	table.Append("Max drawdown", fmt.Sprintf("%.2f%%", s.MaxDrawdown*100))
	table.Append("Sharpe", fmt.Sprintf("%.3f", s.Sharpe))
	table.Append("Balance", fmt.Sprintf("$%.2f → $%.2f", res.InitialBalance, res.FinalBalance))
	table.Render()
}

// printTrades imprime la tabla de trades del run.
func (c *Console) printTrades(trades []domain.Trade) {
	if len(trades) == 0 {
		fmt.Fprintln(c.out, "  (no trades)")
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Symbol", "Side", "Entry", "Exit", "Held", "Reason", "P/L")

	for i, t := range trades {
		table.Append(
			fmt.Sprintf("%d", i+1),
			t.Symbol,
			string(t.Action),
			fmt.Sprintf("%.5f %s", t.EntryPrice, t.EntryTime.Format("01-02 15:04")),
			fmt.Sprintf("%.5f", t.ExitPrice),
			t.ExitTime.Sub(t.EntryTime).Round(time.Minute).String(),
			string(t.ExitReason),
			fmt.Sprintf("$%.2f", t.PnL),
		)
	}
	table.Render()
}

// printEquity imprime la curva de equity, un punto por día.
func (c *Console) printEquity(equity []backtest.EquityPoint) {
	if len(equity) == 0 {
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Date", "Balance")
	for _, p := range equity {
		table.Append(p.Date.Format("2006-01-02"), fmt.Sprintf("$%.2f", p.Balance))
	}
	table.Render()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
