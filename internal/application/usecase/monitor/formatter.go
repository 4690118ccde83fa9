package monitor

import (
	"fmt"
	"strings"
	"time"

	"fundarb/internal/domain/model"
)

const (
	ansiReset    = "\033[0m"
	ansiRed      = "\033[31m"
	ansiGreen    = "\033[32m"
	ansiYellow   = "\033[33m"
	ansiDim      = "\033[2m"
	ansiClearEOL = "\033[K"
)

func colorize(s, c string) string { return c + s + ansiReset }

type Formatter struct{}

func NewFormatter() *Formatter { return &Formatter{} }

// RenderProgress 覆盖当前行的进度提示
func (f *Formatter) RenderProgress(ts time.Time) string {
	return "\r" + colorize("[FUNDARB] ", ansiDim) + "scanning " + ts.Format("15:04:05") + ansiClearEOL
}

// RenderSnapshot 一行交易所状态 + 前 topN 个机会
func (f *Formatter) RenderSnapshot(res CycleResult, topN int) []string {
	lines := []string{f.renderReports(res)}

	opps := res.Opportunities
	if topN > 0 && len(opps) > topN {
		opps = opps[:topN]
	}
	for _, o := range opps {
		lines = append(lines, f.RenderOpportunity(o))
	}
	return lines
}

func (f *Formatter) renderReports(res CycleResult) string {
	var sb strings.Builder
	sb.WriteString(colorize("[FUNDARB] ", ansiDim))
	for i, rep := range res.Reports {
		if i > 0 {
			sb.WriteString(colorize(" | ", ansiDim))
		}
		if rep.Err != nil {
			sb.WriteString(colorize(rep.Exchange+":ERR", ansiRed))
			continue
		}
		sb.WriteString(fmt.Sprintf("%s:%d", rep.Exchange, rep.Inserted))
	}
	sb.WriteString(fmt.Sprintf("  opps=%d", len(res.Opportunities)))
	return sb.String()
}

// RenderOpportunity 单个机会，年化为正绿色、为负红色、为零黄色
func (f *Formatter) RenderOpportunity(o model.ArbitrageOpportunity) string {
	col := ansiYellow
	switch o.Direction() {
	case model.DirectionLongBShortA:
		col = ansiGreen
	case model.DirectionLongAShortB:
		col = ansiRed
	}
	return fmt.Sprintf("%-8s %s/%s A:%s B:%s %s %s",
		o.Symbol,
		o.ExchangeA, o.ExchangeB,
		FormatRate(o.RateA), FormatRate(o.RateB),
		colorize("Δ="+FormatRate(o.RateDifference)+" APR="+FormatPercent(o.AnnualizedReturn), col),
		o.Strategy,
	)
}

// FormatRate 0.0001 -> "+0.0100%"
func FormatRate(r float64) string {
	return fmt.Sprintf("%+.4f%%", r*100)
}

// FormatPercent 0.876 -> "+87.60%"
func FormatPercent(r float64) string {
	return fmt.Sprintf("%+.2f%%", r*100)
}
