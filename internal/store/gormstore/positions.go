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

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (s *GormStore) SavePosition(ctx context.Context, pos *types.Position) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store not initialized")
	}
	if pos == nil || strings.TrimSpace(pos.ID) == "" {
		return fmt.Errorf("position id is required")
	}
	now := time.Now()
	if pos.OpenedAt.IsZero() {
		pos.OpenedAt = now
	}
	pos.UpdatedAt = now
	m := newPositionModel(pos)
	cols := []string{
		"quantity", "avg_entry_price", "realized_pnl", "unrealized_pnl",
		"stop_loss", "take_profit", "high_since_open", "low_since_open",
		"updated_at", "closed_at",
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns(cols),
		}).
		Create(&m).Error
}

func (s *GormStore) GetOpenPosition(ctx context.Context, symbol, venue string) (*types.Position, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	venue = strings.ToLower(strings.TrimSpace(venue))
	var m model.PositionModel
	err := s.db.WithContext(ctx).
		Where("symbol = ? AND venue = ? AND closed_at = 0", symbol, venue).
		Order("opened_at DESC").
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	rec := positionModelToRecord(m)
	return &rec, nil
}

func (s *GormStore) ListOpenPositions(ctx context.Context) ([]types.Position, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	var models []model.PositionModel
	if err := s.db.WithContext(ctx).
		Where("closed_at = 0").
		Order("opened_at ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]types.Position, 0, len(models))
	for _, m := range models {
		out = append(out, positionModelToRecord(m))
	}
	return out, nil
}

func (s *GormStore) ListRecentPositions(ctx context.Context, limit int) ([]types.Position, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var models []model.PositionModel
	if err := s.db.WithContext(ctx).
		Order("opened_at DESC, id DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]types.Position, 0, len(models))
	for _, m := range models {
		out = append(out, positionModelToRecord(m))
	}
	return out, nil
}
