package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/set-night/interviewcoach/internal/domain"
	"github.com/shopspring/decimal"
)

var million = decimal.NewFromInt(1_000_000)

// ModelPrice is USD per 1M tokens.
type ModelPrice struct {
	Prompt     decimal.Decimal
	Completion decimal.Decimal
}

func price(prompt, completion string) ModelPrice {
	return ModelPrice{Prompt: decimal.RequireFromString(prompt), Completion: decimal.RequireFromString(completion)}
}

var (
	modelPrices = map[string]ModelPrice{
		"gemini-1.5-flash-8b":      price("0.075", "0.3"),
		"gemini-1.5-flash":         price("0.075", "0.3"),
		"anthropic/claude-3-haiku": price("0.25", "1.25"),
		"claude-3-haiku":           price("0.25", "1.25"),
		"openai/gpt-4":             price("30", "60"),
		"gpt-4":                    price("30", "60"),
	}
	defaultPrice = price("1", "1")
)

// PriceSource resolves prices for models missing from the built-in table.
type PriceSource interface {
	CachedPrice(model string) (promptPrice, completionPrice float64, ok bool)
}

type CostStore interface {
	CostStats(ctx context.Context) (domain.CostStats, error)
	SaveCostStats(ctx context.Context, s domain.CostStats) error
	ResetCostStats(ctx context.Context) error
}

// CostTracker accumulates token usage and spend per owner.
type CostTracker struct {
	store    CostStore
	prices   PriceSource
	usdToRub decimal.Decimal
	now      func() time.Time

	mu sync.Mutex
}

func NewCostTracker(store CostStore, prices PriceSource, usdToRub float64) *CostTracker {
	return &CostTracker{
		store:    store,
		prices:   prices,
		usdToRub: decimal.NewFromFloat(usdToRub),
		now:      time.Now,
	}
}

// Price returns the per-1M price for a model, falling back to the
// catalogue and then to 1/1.
func (t *CostTracker) Price(model string) ModelPrice {
	if p, ok := modelPrices[model]; ok {
		return p
	}
	if t.prices != nil {
		if pp, cp, ok := t.prices.CachedPrice(model); ok {
			return ModelPrice{Prompt: decimal.NewFromFloat(pp), Completion: decimal.NewFromFloat(cp)}
		}
	}
	return defaultPrice
}

// Cost is the USD price of one call.
func (t *CostTracker) Cost(model string, usage domain.Usage) decimal.Decimal {
	p := t.Price(model)
	promptCost := p.Prompt.Mul(decimal.NewFromInt(int64(usage.PromptTokens))).Div(million)
	completionCost := p.Completion.Mul(decimal.NewFromInt(int64(usage.CompletionTokens))).Div(million)
	return promptCost.Add(completionCost)
}

// Record adds one call to the owner's running totals.
func (t *CostTracker) Record(ctx context.Context, model string, usage domain.Usage) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	stats, err := t.store.CostStats(ctx)
	if err != nil {
		return fmt.Errorf("load cost stats: %w", err)
	}

	usd := t.Cost(model, usage)
	total := usage.TotalTokens
	if total == 0 {
		total = usage.PromptTokens + usage.CompletionTokens
	}
	now := t.now().UTC()

	stats.TotalTokens += total
	stats.TotalCostUSD = stats.TotalCostUSD.Add(usd)
	stats.TotalCostRUB = stats.TotalCostUSD.Mul(t.usdToRub)
	stats.RequestsCount++
	stats.LastUpdated = &now

	if err := t.store.SaveCostStats(ctx, stats); err != nil {
		return fmt.Errorf("save cost stats: %w", err)
	}
	return nil
}

func (t *CostTracker) Stats(ctx context.Context) (domain.CostStats, error) {
	return t.store.CostStats(ctx)
}

func (t *CostTracker) Reset(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.store.ResetCostStats(ctx)
}
