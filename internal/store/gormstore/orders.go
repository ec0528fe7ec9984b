package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tradecore/internal/store"
	"tradecore/internal/store/model"
	"tradecore/internal/types"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func (s *GormStore) CreateOrder(ctx context.Context, order *types.Order) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store not initialized")
	}
	if order == nil || strings.TrimSpace(order.ID) == "" {
		return fmt.Errorf("order id is required")
	}
	now := time.Now()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now
	m := newOrderModel(order)
	return s.db.WithContext(ctx).Create(&m).Error
}

func (s *GormStore) UpdateOrder(ctx context.Context, order *types.Order) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store not initialized")
	}
	if order == nil || strings.TrimSpace(order.ID) == "" {
		return fmt.Errorf("order id is required")
	}
	order.UpdatedAt = time.Now()
	m := newOrderModel(order)
	res := s.db.WithContext(ctx).Model(&model.OrderModel{}).Where("id = ?", order.ID).Updates(&m)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// MutateOrder re-reads the row inside a transaction before applying fn,
// so concurrent writers (fill apply vs cancel confirm) serialize on the
// persisted state instead of clobbering each other.
func (s *GormStore) MutateOrder(ctx context.Context, id string, fn func(*types.Order) error) (*types.Order, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	if fn == nil {
		return nil, fmt.Errorf("mutate fn is required")
	}
	var out types.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m model.OrderModel
		if err := tx.Where("id = ?", id).First(&m).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return store.ErrNotFound
			}
			return err
		}
		rec := orderModelToRecord(m)
		if err := fn(&rec); err != nil {
			return err
		}
		rec.UpdatedAt = time.Now()
		updated := newOrderModel(&rec)
		if err := tx.Model(&model.OrderModel{}).Where("id = ?", id).Updates(&updated).Error; err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *GormStore) GetOrder(ctx context.Context, id string) (*types.Order, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	var m model.OrderModel
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	rec := orderModelToRecord(m)
	return &rec, nil
}

func (s *GormStore) GetOrderByExternalID(ctx context.Context, externalID string) (*types.Order, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, store.ErrNotFound
	}
	var m model.OrderModel
	if err := s.db.WithContext(ctx).Where("external_id = ?", externalID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	rec := orderModelToRecord(m)
	return &rec, nil
}

var activeStatuses = []string{
	string(types.OrderStatusPending),
	string(types.OrderStatusSubmitted),
	string(types.OrderStatusOpen),
	string(types.OrderStatusPartiallyFilled),
}

func (s *GormStore) ListActiveOrders(ctx context.Context) ([]types.Order, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	var models []model.OrderModel
	if err := s.db.WithContext(ctx).
		Where("status IN ?", activeStatuses).
		Order("created_at ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]types.Order, 0, len(models))
	for _, m := range models {
		out = append(out, orderModelToRecord(m))
	}
	return out, nil
}

func (s *GormStore) ListRecentOrders(ctx context.Context, limit int) ([]types.Order, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var models []model.OrderModel
	if err := s.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]types.Order, 0, len(models))
	for _, m := range models {
		out = append(out, orderModelToRecord(m))
	}
	return out, nil
}

func (s *GormStore) AppendTrade(ctx context.Context, trade types.Trade) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store not initialized")
	}
	if strings.TrimSpace(trade.ID) == "" {
		return fmt.Errorf("trade id is required")
	}
	if trade.ExecutedAt.IsZero() {
		trade.ExecutedAt = time.Now()
	}
	m := newTradeModel(trade)
	return s.db.WithContext(ctx).Create(&m).Error
}

func (s *GormStore) ListTradesForOrder(ctx context.Context, orderID string) ([]types.Trade, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	var models []model.TradeModel
	if err := s.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("executed_at ASC, id ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]types.Trade, 0, len(models))
	for _, m := range models {
		out = append(out, tradeModelToRecord(m))
	}
	return out, nil
}

func (s *GormStore) SumRealizedPnLSince(ctx context.Context, since time.Time) (decimal.Decimal, error) {
	return s.sumTradeColumn(ctx, "realized_pnl", since)
}

func (s *GormStore) SumFeesSince(ctx context.Context, since time.Time) (decimal.Decimal, error) {
	return s.sumTradeColumn(ctx, "fee", since)
}

// sumTradeColumn sums a decimal-string column in Go: SQLite would sum the
// strings as floats and reintroduce the binary rounding the strings exist
// to avoid.
func (s *GormStore) sumTradeColumn(ctx context.Context, column string, since time.Time) (decimal.Decimal, error) {
	if s == nil || s.db == nil {
		return decimal.Zero, fmt.Errorf("gorm store not initialized")
	}
	var values []string
	query := s.db.WithContext(ctx).Model(&model.TradeModel{})
	if !since.IsZero() {
		query = query.Where("executed_at >= ?", since.UnixMilli())
	}
	if err := query.Pluck(column, &values).Error; err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(decFromString(v))
	}
	return total, nil
}
