package gormstore

import (
	"strings"
	"time"

	"tradecore/internal/store/model"
	"tradecore/internal/types"

	"github.com/shopspring/decimal"
)

func decToString(d decimal.Decimal) string {
	return d.String()
}

// decFromString tolerates empty/garbage columns from older rows; money
// math treats them as zero rather than aborting a read path.
func decFromString(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func timeToMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func millisToTime(v int64) time.Time {
	if v <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(v)
}

func newOrderModel(o *types.Order) model.OrderModel {
	m := model.OrderModel{
		ID:             o.ID,
		Symbol:         strings.ToUpper(strings.TrimSpace(o.Symbol)),
		Venue:          strings.ToLower(strings.TrimSpace(o.Venue)),
		Side:           string(o.Side),
		Quantity:       decToString(o.Quantity),
		Kind:           string(o.Kind),
		LimitPrice:     decToString(o.LimitPrice),
		StopLoss:       decToString(o.StopLoss),
		TakeProfit:     decToString(o.TakeProfit),
		StrategyID:     o.StrategyID,
		Status:         string(o.Status),
		ExternalID:     o.ExternalID,
		FilledQuantity: decToString(o.FilledQuantity),
		AvgFillPrice:   decToString(o.AvgFillPrice),
		ErrorText:      o.ErrorText,
		CreatedAtUnix:  timeToMillis(o.CreatedAt),
		UpdatedAtUnix:  timeToMillis(o.UpdatedAt),
	}
	if o.SubmittedAt != nil {
		m.SubmittedAtUnix = timeToMillis(*o.SubmittedAt)
	}
	return m
}

func orderModelToRecord(m model.OrderModel) types.Order {
	o := types.Order{
		ID:             m.ID,
		Symbol:         m.Symbol,
		Venue:          m.Venue,
		Side:           types.Side(m.Side),
		Quantity:       decFromString(m.Quantity),
		Kind:           types.OrderKind(m.Kind),
		LimitPrice:     decFromString(m.LimitPrice),
		StopLoss:       decFromString(m.StopLoss),
		TakeProfit:     decFromString(m.TakeProfit),
		StrategyID:     m.StrategyID,
		Status:         types.OrderStatus(m.Status),
		ExternalID:     m.ExternalID,
		FilledQuantity: decFromString(m.FilledQuantity),
		AvgFillPrice:   decFromString(m.AvgFillPrice),
		ErrorText:      m.ErrorText,
		CreatedAt:      millisToTime(m.CreatedAtUnix),
		UpdatedAt:      millisToTime(m.UpdatedAtUnix),
	}
	if m.SubmittedAtUnix > 0 {
		ts := millisToTime(m.SubmittedAtUnix)
		o.SubmittedAt = &ts
	}
	return o
}

func newTradeModel(t types.Trade) model.TradeModel {
	return model.TradeModel{
		ID:             t.ID,
		OrderID:        t.OrderID,
		Symbol:         strings.ToUpper(strings.TrimSpace(t.Symbol)),
		Venue:          strings.ToLower(strings.TrimSpace(t.Venue)),
		Side:           string(t.Side),
		Quantity:       decToString(t.Quantity),
		Price:          decToString(t.Price),
		Fee:            decToString(t.Fee),
		RealizedPnL:    decToString(t.RealizedPnL),
		ExecutedAtUnix: timeToMillis(t.ExecutedAt),
	}
}

func tradeModelToRecord(m model.TradeModel) types.Trade {
	return types.Trade{
		ID:          m.ID,
		OrderID:     m.OrderID,
		Symbol:      m.Symbol,
		Venue:       m.Venue,
		Side:        types.Side(m.Side),
		Quantity:    decFromString(m.Quantity),
		Price:       decFromString(m.Price),
		Fee:         decFromString(m.Fee),
		RealizedPnL: decFromString(m.RealizedPnL),
		ExecutedAt:  millisToTime(m.ExecutedAtUnix),
	}
}

func newPositionModel(p *types.Position) model.PositionModel {
	m := model.PositionModel{
		ID:            p.ID,
		Symbol:        strings.ToUpper(strings.TrimSpace(p.Symbol)),
		Venue:         strings.ToLower(strings.TrimSpace(p.Venue)),
		Quantity:      decToString(p.Quantity),
		AvgEntryPrice: decToString(p.AvgEntryPrice),
		RealizedPnL:   decToString(p.RealizedPnL),
		UnrealizedPnL: decToString(p.UnrealizedPnL),
		StopLoss:      decToString(p.StopLoss),
		TakeProfit:    decToString(p.TakeProfit),
		HighSinceOpen: decToString(p.HighSinceOpen),
		LowSinceOpen:  decToString(p.LowSinceOpen),
		OpenedAtUnix:  timeToMillis(p.OpenedAt),
		UpdatedAtUnix: timeToMillis(p.UpdatedAt),
	}
	if p.ClosedAt != nil {
		m.ClosedAtUnix = timeToMillis(*p.ClosedAt)
	}
	return m
}

func positionModelToRecord(m model.PositionModel) types.Position {
	p := types.Position{
		ID:            m.ID,
		Symbol:        m.Symbol,
		Venue:         m.Venue,
		Quantity:      decFromString(m.Quantity),
		AvgEntryPrice: decFromString(m.AvgEntryPrice),
		RealizedPnL:   decFromString(m.RealizedPnL),
		UnrealizedPnL: decFromString(m.UnrealizedPnL),
		StopLoss:      decFromString(m.StopLoss),
		TakeProfit:    decFromString(m.TakeProfit),
		HighSinceOpen: decFromString(m.HighSinceOpen),
		LowSinceOpen:  decFromString(m.LowSinceOpen),
		OpenedAt:      millisToTime(m.OpenedAtUnix),
		UpdatedAt:     millisToTime(m.UpdatedAtUnix),
	}
	if m.ClosedAtUnix > 0 {
		ts := millisToTime(m.ClosedAtUnix)
		p.ClosedAt = &ts
	}
	return p
}
