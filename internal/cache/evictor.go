package cache

import (
	"context"
	"math/rand/v2"
	"time"
)

// DefaultSweepRate 约十分之一的请求触发一次清理，分摊目录扫描成本。
const DefaultSweepRate = 0.1

// Evictor 决定何时对 Store 执行清理：强制重置时无条件清理全部条目，
// 否则按 Rate 概率抽样，只清理超过 MaxAge 的条目。
type Evictor struct {
	store  Store
	maxAge time.Duration
	rate   float64
	draw   func() float64
}

// NewEvictor 构造清理策略，默认使用 math/rand 作为随机源。
func NewEvictor(store Store, maxAge time.Duration, rate float64) Evictor {
	if rate < 0 {
		rate = 0
	}
	if rate > 1 {
		rate = 1
	}
	return Evictor{
		store:  store,
		maxAge: maxAge,
		rate:   rate,
		draw:   rand.Float64,
	}
}

// WithDraw 替换随机源，便于测试固定抽样结果。
func (e Evictor) WithDraw(draw func() float64) Evictor {
	e.draw = draw
	return e
}

// Enabled 返回当前是否具备清理能力。
func (e Evictor) Enabled() bool {
	return e.store != nil
}

// ShouldSweep 判断本次请求是否需要清理。
func (e Evictor) ShouldSweep(force bool) bool {
	if !e.Enabled() {
		return false
	}
	if force {
		return true
	}
	return e.rate > 0 && e.draw() < e.rate
}

// MaybeSweep 在需要时执行清理；ran 表示本次是否真正执行。
func (e Evictor) MaybeSweep(ctx context.Context, force bool) (result SweepResult, ran bool, err error) {
	if !e.ShouldSweep(force) {
		return SweepResult{}, false, nil
	}
	result, err = e.store.Sweep(ctx, e.maxAge, force)
	return result, true, err
}
