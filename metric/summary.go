package metric

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"

	"github.com/ver3trade/engine/core"
)

// Report aggregates realized trade outcomes per coin.
type Report struct {
	Coin        string
	WinPct      []float64
	LossPct     []float64
	TotalProfit float64
}

// Trades returns the number of realized trades in the report.
func (r Report) Trades() int { return len(r.WinPct) + len(r.LossPct) }

// Returns joins win and loss percentages into one series.
func (r Report) Returns() []float64 {
	return append(append([]float64{}, r.WinPct...), r.LossPct...)
}

// WinRate returns the percentage of winning trades.
func (r Report) WinRate() float64 {
	if r.Trades() == 0 {
		return 0
	}
	return float64(len(r.WinPct)) / float64(r.Trades()) * 100
}

// BuildReports groups outcomes per coin, ordered by coin name.
func BuildReports(outcomes []core.TradeOutcome) []Report {
	grouped := lo.GroupBy(outcomes, func(o core.TradeOutcome) string { return o.Coin })

	coins := lo.Keys(grouped)
	sort.Strings(coins)

	reports := make([]Report, 0, len(coins))
	for _, coin := range coins {
		r := Report{Coin: coin}
		for _, o := range grouped[coin] {
			pct := o.PnLPct.InexactFloat64()
			if pct >= 0 {
				r.WinPct = append(r.WinPct, pct)
			} else {
				r.LossPct = append(r.LossPct, pct)
			}
			r.TotalProfit += o.PnL.InexactFloat64()
		}
		reports = append(reports, r)
	}
	return reports
}

// WriteSummary renders the shutdown performance report: a per-coin
// statistics table, a histogram of trade returns, and bootstrap
// confidence intervals over the whole sample.
func WriteSummary(w io.Writer, outcomes []core.TradeOutcome, quote string) {
	reports := BuildReports(outcomes)
	if len(reports) == 0 {
		fmt.Fprintln(w, "no realized trades")
		return
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Coin", "Trades", "Win", "Loss", "% Win", "Payoff", "Pr.Fact", "Profit"})
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT,
	})

	var allReturns []float64
	for _, r := range reports {
		returns := r.Returns()
		allReturns = append(allReturns, returns...)
		table.Append([]string{
			r.Coin,
			strconv.Itoa(r.Trades()),
			strconv.Itoa(len(r.WinPct)),
			strconv.Itoa(len(r.LossPct)),
			fmt.Sprintf("%.1f", r.WinRate()),
			fmt.Sprintf("%.2f", Payoff(returns)),
			fmt.Sprintf("%.2f", ProfitFactor(returns)),
			fmt.Sprintf("%.0f %s", r.TotalProfit, quote),
		})
	}
	table.Render()

	if len(allReturns) > 1 {
		fmt.Fprintln(w, "------ RETURNS DISTRIBUTION (%) ------")
		hist := histogram.Hist(15, allReturns)
		_ = histogram.Fprint(w, hist, histogram.Linear(10))
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "------ CONFIDENCE INTERVAL (95%) ------")
	returnsCI := Bootstrap(allReturns, Mean, 10000, 0.95)
	payoffCI := Bootstrap(allReturns, Payoff, 10000, 0.95)
	profitFactorCI := Bootstrap(allReturns, ProfitFactor, 10000, 0.95)

	fmt.Fprintf(w, "RETURN:      %.2f%% (%.2f%% ~ %.2f%%)\n",
		returnsCI.Mean, returnsCI.Lower, returnsCI.Upper)
	fmt.Fprintf(w, "PAYOFF:      %.2f (%.2f ~ %.2f)\n",
		payoffCI.Mean, payoffCI.Lower, payoffCI.Upper)
	fmt.Fprintf(w, "PROF.FACTOR: %.2f (%.2f ~ %.2f)\n",
		profitFactorCI.Mean, profitFactorCI.Lower, profitFactorCI.Upper)
	fmt.Fprintf(w, "SQN:         %.2f\n", SQN(allReturns))
}
