package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tradecore/internal/store"
	"tradecore/internal/store/model"
	"tradecore/internal/types"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func (s *GormStore) InsertRiskAlert(ctx context.Context, alert types.RiskAlert) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store not initialized")
	}
	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now()
	}
	detailBytes, _ := json.Marshal(alert.Details)
	m := model.RiskAlertModel{
		Severity:      string(alert.Severity),
		Type:          string(alert.Type),
		Message:       alert.Message,
		Details:       datatypes.JSON(detailBytes),
		TimestampUnix: alert.Timestamp.UnixMilli(),
	}
	return s.db.WithContext(ctx).Create(&m).Error
}

func (s *GormStore) ListRecentRiskAlerts(ctx context.Context, limit int) ([]types.RiskAlert, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var models []model.RiskAlertModel
	if err := s.db.WithContext(ctx).
		Order("timestamp DESC, id DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]types.RiskAlert, 0, len(models))
	for _, m := range models {
		var details map[string]any
		if len(m.Details) > 0 {
			_ = json.Unmarshal(m.Details, &details)
		}
		out = append(out, types.RiskAlert{
			Severity:  types.AlertSeverity(m.Severity),
			Type:      types.AlertType(m.Type),
			Message:   m.Message,
			Details:   details,
			Timestamp: millisToTime(m.TimestampUnix),
		})
	}
	return out, nil
}

func (s *GormStore) InsertReconciliationIssue(ctx context.Context, issue types.ReconciliationIssue) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store not initialized")
	}
	if issue.DetectedAt.IsZero() {
		issue.DetectedAt = time.Now()
	}
	m := model.ReconciliationIssueModel{
		Symbol:         issue.Symbol,
		Venue:          issue.Venue,
		LocalQuantity:  issue.LocalQuantity,
		VenueQuantity:  issue.VenueQuantity,
		Resolution:     issue.Resolution,
		DetectedAtUnix: issue.DetectedAt.UnixMilli(),
	}
	return s.db.WithContext(ctx).Create(&m).Error
}

func (s *GormStore) ListReconciliationIssues(ctx context.Context, limit int) ([]types.ReconciliationIssue, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var models []model.ReconciliationIssueModel
	if err := s.db.WithContext(ctx).
		Order("detected_at DESC, id DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]types.ReconciliationIssue, 0, len(models))
	for _, m := range models {
		out = append(out, types.ReconciliationIssue{
			Symbol:        m.Symbol,
			Venue:         m.Venue,
			LocalQuantity: m.LocalQuantity,
			VenueQuantity: m.VenueQuantity,
			Resolution:    m.Resolution,
			DetectedAt:    millisToTime(m.DetectedAtUnix),
		})
	}
	return out, nil
}

func (s *GormStore) AppendKillSwitchEvent(ctx context.Context, event types.KillSwitchEvent) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store not initialized")
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	tripped := 0
	if event.Tripped {
		tripped = 1
	}
	m := model.KillSwitchEventModel{
		Tripped:       tripped,
		Actor:         event.Actor,
		Reason:        event.Reason,
		TimestampUnix: event.Timestamp.UnixMilli(),
	}
	return s.db.WithContext(ctx).Create(&m).Error
}

func (s *GormStore) LastKillSwitchEvent(ctx context.Context) (*types.KillSwitchEvent, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	var m model.KillSwitchEventModel
	err := s.db.WithContext(ctx).
		Order("timestamp DESC, id DESC").
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &types.KillSwitchEvent{
		Tripped:   m.Tripped != 0,
		Actor:     m.Actor,
		Reason:    m.Reason,
		Timestamp: millisToTime(m.TimestampUnix),
	}, nil
}
