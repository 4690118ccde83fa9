package model

import "time"

// Asset 规范化资产（如 BTC），首次出现时创建，永不删除
type Asset struct {
	ID        int64     `json:"id"`
	Symbol    string    `json:"symbol"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}
