package service

import (
	"sort"
	"strings"

	"fundarb/internal/domain/model"
)

const basePlaceholder = "{base}"

// SymbolFormat 单个交易所的合约代码格式
// Template 例如 "{base}-USD-PERP"，Overrides 为个别资产的特殊代码（如 1000PEPE）
type SymbolFormat struct {
	Template  string
	Overrides map[string]string
}

// DefaultSymbolTable 内置的交易所代码格式
func DefaultSymbolTable() map[string]SymbolFormat {
	return map[string]SymbolFormat{
		"binance":     {Template: "{base}USDT"},
		"bybit":       {Template: "{base}USDT"},
		"okx":         {Template: "{base}-USDT-SWAP"},
		"hyperliquid": {Template: "{base}"},
		"paradex":     {Template: "{base}-USD-PERP"},
	}
}

// SymbolMapper 规范资产代码 <-> 交易所原生合约代码
type SymbolMapper struct {
	table map[string]SymbolFormat
}

// NewSymbolMapper copies table; exchange names and override keys are
// lower/upper cased respectively.
func NewSymbolMapper(table map[string]SymbolFormat) *SymbolMapper {
	m := &SymbolMapper{table: make(map[string]SymbolFormat, len(table))}
	for ex, f := range table {
		overrides := make(map[string]string, len(f.Overrides))
		for base, native := range f.Overrides {
			overrides[NormalizeSymbol(base)] = native
		}
		m.table[strings.ToLower(ex)] = SymbolFormat{Template: f.Template, Overrides: overrides}
	}
	return m
}

// Exchanges 已声明格式的交易所列表（排序）
func (m *SymbolMapper) Exchanges() []string {
	out := make([]string, 0, len(m.table))
	for ex := range m.table {
		out = append(out, ex)
	}
	sort.Strings(out)
	return out
}

// ToNative 规范代码 -> 交易所原生代码
func (m *SymbolMapper) ToNative(exchange, base string) (string, error) {
	f, ok := m.table[strings.ToLower(exchange)]
	if !ok {
		return "", model.NewValidationError("exchange", "no symbol format declared for %q", exchange)
	}
	base = NormalizeSymbol(base)
	if base == "" {
		return "", model.NewValidationError("symbol", "empty base symbol")
	}
	if native, ok := f.Overrides[base]; ok {
		return native, nil
	}
	if !strings.Contains(f.Template, basePlaceholder) {
		return "", model.NewValidationError("symbol_format", "template %q on %s has no %s", f.Template, exchange, basePlaceholder)
	}
	return strings.ReplaceAll(f.Template, basePlaceholder, base), nil
}

// ToCanonical 交易所原生代码 -> 规范代码
func (m *SymbolMapper) ToCanonical(exchange, native string) (string, error) {
	f, ok := m.table[strings.ToLower(exchange)]
	if !ok {
		return "", model.NewValidationError("exchange", "no symbol format declared for %q", exchange)
	}
	for base, n := range f.Overrides {
		if strings.EqualFold(n, native) {
			return base, nil
		}
	}

	idx := strings.Index(f.Template, basePlaceholder)
	if idx < 0 {
		return "", model.NewValidationError("symbol_format", "template %q on %s has no %s", f.Template, exchange, basePlaceholder)
	}
	prefix := f.Template[:idx]
	suffix := f.Template[idx+len(basePlaceholder):]

	upper := strings.ToUpper(strings.TrimSpace(native))
	if len(upper) <= len(prefix)+len(suffix) ||
		!strings.HasPrefix(upper, strings.ToUpper(prefix)) || !strings.HasSuffix(upper, strings.ToUpper(suffix)) {
		return "", model.NewValidationError("symbol", "%q does not match %s format %q", native, exchange, f.Template)
	}
	base := upper[len(prefix) : len(upper)-len(suffix)]
	if base == "" {
		return "", model.NewValidationError("symbol", "%q does not match %s format %q", native, exchange, f.Template)
	}
	return base, nil
}

// NormalizeSymbol 去空格并转大写
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
