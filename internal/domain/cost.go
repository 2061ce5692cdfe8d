package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CostStats accumulates token usage across all provider calls of one owner.
type CostStats struct {
	TotalTokens   int             `json:"totalTokens"`
	TotalCostUSD  decimal.Decimal `json:"totalCostUSD"`
	TotalCostRUB  decimal.Decimal `json:"totalCostRUB"`
	RequestsCount int             `json:"requestsCount"`
	LastUpdated   *time.Time      `json:"lastUpdated"`
}
