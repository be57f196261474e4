package order

import (
	"context"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/adapter"
	"main/internal/adapter/enum"
	"main/internal/journal"
	"main/internal/risk"
	"main/internal/venue"
	"main/pkg/exception"
)

// TradeRequest is one risk-sized entry with optional protective levels.
type TradeRequest struct {
	Symbol     string
	RiskPct    float64
	EntryPrice float64
	StopPrice  float64
	TakeProfit *float64
	// LeverageCapital overrides equity as the leverage-cap base.
	LeverageCapital *float64
	// Market submits a market entry instead of a limit at the rounded
	// entry price.
	Market        bool
	ClientOrderID string
}

// TradeResult reports what was actually placed.
type TradeResult struct {
	Sizing risk.SizeResult
	Entry  venue.OrderResult
	// TargetsApplied is false when a protective leg failed after the entry
	// was accepted; the entry is never rolled back.
	TargetsApplied bool
}

// ExecuteTrade sizes, validates against the account risk caps, places the
// entry order and then best-effort protective legs.
func (u *Usecase) ExecuteTrade(ctx context.Context, req TradeRequest) (TradeResult, error) {
	symbolCfg, err := u.gw.SymbolConfig(req.Symbol)
	if err != nil {
		return TradeResult{}, err
	}

	account, err := u.gw.AccountSummary(ctx, false)
	if err != nil {
		return TradeResult{}, err
	}

	if err := u.checkCaps(account.Equity, req.RiskPct); err != nil {
		return TradeResult{}, err
	}

	sizing, err := risk.Size(risk.SizeInput{
		Equity:          account.Equity,
		RiskPct:         req.RiskPct,
		EntryPrice:      req.EntryPrice,
		StopPrice:       req.StopPrice,
		Symbol:          symbolCfg,
		SlippageFactor:  u.cfg.SlippageFactor,
		FeeBufferPct:    u.cfg.FeeBufferPct,
		LeverageCapital: req.LeverageCapital,
	})
	if err != nil {
		return TradeResult{}, err
	}

	if err := u.checkOpenRisk(ctx, account.Equity, sizing.EstimatedLoss); err != nil {
		return TradeResult{}, err
	}

	orderReq := venue.OrderRequest{
		Symbol:        req.Symbol,
		Side:          sizing.Side,
		Kind:          enum.OrderKindLimit,
		Size:          sizing.Size,
		LimitPrice:    sizing.Entry,
		ClientOrderID: req.ClientOrderID,
	}
	if req.Market {
		orderReq.Kind = enum.OrderKindMarket
		orderReq.LimitPrice = 0
	}

	entry, err := u.gw.PlaceOrder(ctx, orderReq)
	if err != nil {
		return TradeResult{}, errors.Wrap(exception.ErrOrderPlaceFailed, err.Error())
	}

	u.journalOrder(orderReq, entry, sizing)

	stop := sizing.Stop
	pair := adapter.TargetPair{StopLoss: &stop}
	if req.TakeProfit != nil {
		tp := risk.RoundToTick(*req.TakeProfit, symbolCfg.TickSize)
		pair.TakeProfit = &tp
	}

	result := TradeResult{Sizing: sizing, Entry: entry, TargetsApplied: true}
	if err := u.gw.UpdateTargets(ctx, req.Symbol, sizing.Side, sizing.Size, pair); err != nil {
		result.TargetsApplied = false
		logs.Errorf("protective legs for %s: %v", req.Symbol, err)
		return result, errors.Wrap(exception.ErrOrderTargetsPartially, err.Error())
	}

	u.mu.Lock()
	merged := u.targets[req.Symbol]
	if pair.TakeProfit != nil {
		merged.TakeProfit = pair.TakeProfit
	}
	merged.StopLoss = pair.StopLoss
	u.targets[req.Symbol] = merged
	u.seedHintLocked(req.Symbol, pair)
	u.mu.Unlock()

	return result, nil
}

// checkCaps enforces the per-trade and daily-loss limits before sizing.
func (u *Usecase) checkCaps(equity, riskPct float64) error {
	caps := u.cfg.RiskCaps
	if caps.PerTradePct > 0 && riskPct > caps.PerTradePct {
		return errors.Wrapf(exception.ErrRiskPerTradeCapExceeded, "%.2f%% > %.2f%%", riskPct, caps.PerTradePct)
	}

	if caps.DailyLossPct <= 0 {
		return nil
	}

	day := time.Now().UTC().Format(time.DateOnly)
	u.mu.Lock()
	if u.dailyAnchor.day != day {
		u.dailyAnchor.day = day
		u.dailyAnchor.equity = equity
	}
	anchor := u.dailyAnchor.equity
	u.mu.Unlock()

	if anchor <= 0 {
		return nil
	}
	drawdownPct := (anchor - equity) / anchor * 100
	if drawdownPct >= caps.DailyLossPct {
		return errors.Wrapf(exception.ErrRiskDailyLossCapReached, "down %.2f%% today", drawdownPct)
	}
	return nil
}

// checkOpenRisk sums the stop-distance exposure of open positions and
// rejects the trade when adding it would exceed the open-risk cap.
func (u *Usecase) checkOpenRisk(ctx context.Context, equity, estimatedLoss float64) error {
	caps := u.cfg.RiskCaps
	if caps.OpenRiskPct <= 0 || equity <= 0 {
		return nil
	}

	positions, err := u.Positions(ctx, false)
	if err != nil {
		return err
	}

	open := 0.0
	for _, p := range positions {
		if p.StopLoss == nil {
			continue
		}
		distance := p.EntryPrice - *p.StopLoss
		if distance < 0 {
			distance = -distance
		}
		open += distance * p.Size
	}

	totalPct := (open + estimatedLoss) / equity * 100
	if totalPct > caps.OpenRiskPct {
		return errors.Wrapf(exception.ErrRiskOpenRiskCapExceeded, "%.2f%% > %.2f%%", totalPct, caps.OpenRiskPct)
	}
	return nil
}

func (u *Usecase) journalOrder(req venue.OrderRequest, res venue.OrderResult, sizing risk.SizeResult) {
	u.journal.RecordOrder(journal.OrderRecord{
		CreatedAt:     time.Now(),
		Venue:         u.Venue().String(),
		Symbol:        req.Symbol,
		Side:          req.Side.String(),
		Kind:          req.Kind.String(),
		Size:          req.Size,
		LimitPrice:    req.LimitPrice,
		TriggerPrice:  req.TriggerPrice,
		ReduceOnly:    req.ReduceOnly,
		OrderID:       res.OrderID,
		ClientOrderID: res.ClientOrderID,
		Warnings:      journal.JoinWarnings(sizing.Warnings),
	})
}
