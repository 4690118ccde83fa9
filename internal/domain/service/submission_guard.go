package service

import (
	"strings"
	"sync"
	"time"
)

// SubmissionGuard 防止同一方向的双腿开仓在短时间内重复提交
// 例如机器人重复点击：同一资产、同一多空交易所在窗口内只放行一次
type SubmissionGuard struct {
	mu     sync.Mutex
	window time.Duration
	recent map[string]time.Time // key -> 放行时间
}

func NewSubmissionGuard(window time.Duration) *SubmissionGuard {
	return &SubmissionGuard{window: window, recent: make(map[string]time.Time)}
}

// SubmissionKey 例: BTC|long:binance|short:paradex
func SubmissionKey(symbol, longExchange, shortExchange string) string {
	return NormalizeSymbol(symbol) + "|long:" + strings.ToLower(longExchange) + "|short:" + strings.ToLower(shortExchange)
}

// Allow 窗口内无记录则登记并放行；否则返回剩余等待时间
func (g *SubmissionGuard) Allow(key string, now time.Time) (bool, time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if at, ok := g.recent[key]; ok {
		if elapsed := now.Sub(at); elapsed < g.window {
			return false, g.window - elapsed
		}
	}
	g.recent[key] = now
	g.cleanupLocked(now)
	return true, 0
}

// Forget 撤销登记（没有任何订单被接受时调用）
func (g *SubmissionGuard) Forget(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.recent, key)
}

func (g *SubmissionGuard) cleanupLocked(now time.Time) {
	for k, at := range g.recent {
		if now.Sub(at) >= g.window {
			delete(g.recent, k)
		}
	}
}
