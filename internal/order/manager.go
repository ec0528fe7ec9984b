// Package order owns the full order lifecycle: validation, persistence,
// venue submission, the status-monitor loop and the reconciliation loop.
// Every state change lands in the store before anything depends on it.
package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"tradecore/internal/gateway/venue"
	"tradecore/internal/logger"
	"tradecore/internal/market"
	"tradecore/internal/pkg/circuit"
	"tradecore/internal/pkg/symbol"
	"tradecore/internal/position"
	"tradecore/internal/store"
	"tradecore/internal/types"
	"tradecore/internal/validator"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrVenueUnavailable is returned when the transport breaker is open and
// no call to the venue is attempted.
var ErrVenueUnavailable = errors.New("order: venue unavailable, breaker open")

// Config carries the runtime knobs of the manager. Durations are already
// resolved; the wiring layer converts from the YAML config.
type Config struct {
	VenueName          string
	InitialEquity      decimal.Decimal
	FeeRate            decimal.Decimal
	CallTimeout        time.Duration
	StatusPollInterval time.Duration
	ReconcileInterval  time.Duration
}

type Manager struct {
	store     store.Store
	gateway   venue.Gateway
	market    market.Source
	validator *validator.Validator
	positions *position.Manager
	breaker   *circuit.Breaker
	cfg       Config

	// killSwitch is injected by the risk monitor after wiring; until
	// then new orders are treated as allowed.
	killSwitch func() bool

	mu          sync.Mutex
	sessionPeak decimal.Decimal
}

func NewManager(st store.Store, gw venue.Gateway, mkt market.Source, v *validator.Validator, pm *position.Manager, cfg Config) *Manager {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 10 * time.Second
	}
	if cfg.StatusPollInterval <= 0 {
		cfg.StatusPollInterval = 5 * time.Second
	}
	if cfg.ReconcileInterval <= 0 {
		cfg.ReconcileInterval = time.Minute
	}
	breaker := circuit.NewBreaker("venue:"+cfg.VenueName, 5, 30*time.Second)
	return &Manager{
		store:       st,
		gateway:     gw,
		market:      mkt,
		validator:   v,
		positions:   pm,
		breaker:     breaker,
		cfg:         cfg,
		sessionPeak: cfg.InitialEquity,
	}
}

// SetBreaker swaps in a breaker built from the venue config.
func (m *Manager) SetBreaker(b *circuit.Breaker) {
	if b != nil {
		m.breaker = b
	}
}

// SetKillSwitch wires the risk monitor's tripped state into snapshots.
func (m *Manager) SetKillSwitch(fn func() bool) {
	m.killSwitch = fn
}

// Place runs the pre-trade gate and, if it passes, persists the order
// and submits it. The PENDING row hits the store before the venue call,
// so a crash mid-placement leaves an auditable record for recovery.
// Rejections and submit failures are reported through the returned order
// and validation result, not through the error.
func (m *Manager) Place(ctx context.Context, req types.OrderRequest) (*types.Order, types.ValidationResult, error) {
	req = normalizeRequest(req, m.cfg.VenueName)

	snap, err := m.Snapshot(ctx, req.Symbol)
	if err != nil {
		return nil, types.ValidationResult{}, fmt.Errorf("build account snapshot: %w", err)
	}

	res := m.validator.Validate(req, snap)
	now := time.Now()
	ord := &types.Order{
		ID:         uuid.NewString(),
		Symbol:     req.Symbol,
		Venue:      req.Venue,
		Side:       req.Side,
		Quantity:   req.Quantity,
		Kind:       req.Kind,
		LimitPrice: req.LimitPrice,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
		StrategyID: req.StrategyID,
		Status:     types.OrderStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if !res.Valid {
		ord.Status = types.OrderStatusRejected
		ord.ErrorText = fmt.Sprintf("%s: %s", res.FailedCheck, res.Reason)
		if err := m.store.CreateOrder(ctx, ord); err != nil {
			return nil, res, fmt.Errorf("persist rejected order: %w", err)
		}
		logger.Infof("order rejected pre-trade: %s %s %s qty=%s check=%s",
			ord.Symbol, ord.Side, ord.Kind, ord.Quantity, res.FailedCheck)
		return ord, res, nil
	}
	for _, w := range res.Warnings {
		logger.Warnf("order %s validation warning: %s", ord.ID, w)
	}

	if err := m.store.CreateOrder(ctx, ord); err != nil {
		return nil, res, fmt.Errorf("persist pending order: %w", err)
	}

	var externalID string
	submitErr := m.venueCall(ctx, "submit", func(cctx context.Context) error {
		id, err := m.gateway.Submit(cctx, ord)
		externalID = id
		return err
	})

	switch {
	case submitErr == nil:
		updated, err := m.store.MutateOrder(ctx, ord.ID, func(o *types.Order) error {
			o.Status = types.OrderStatusSubmitted
			o.ExternalID = externalID
			t := time.Now()
			o.SubmittedAt = &t
			o.UpdatedAt = t
			return nil
		})
		if err != nil {
			return ord, res, fmt.Errorf("record submission: %w", err)
		}
		logger.Infof("order submitted: %s %s %s qty=%s external_id=%s",
			updated.Symbol, updated.Side, updated.Kind, updated.Quantity, externalID)
		return updated, res, nil

	case errors.Is(submitErr, venue.ErrRejected):
		updated, err := m.failOrder(ctx, ord.ID, types.OrderStatusRejected, submitErr)
		if err != nil {
			return ord, res, err
		}
		return updated, res, nil

	default:
		// Unknown outcome: never retried automatically, reconciliation
		// decides what actually happened at the venue.
		updated, err := m.failOrder(ctx, ord.ID, types.OrderStatusFailed, submitErr)
		if err != nil {
			return ord, res, err
		}
		return updated, res, nil
	}
}

func (m *Manager) failOrder(ctx context.Context, id string, status types.OrderStatus, cause error) (*types.Order, error) {
	updated, err := m.store.MutateOrder(ctx, id, func(o *types.Order) error {
		if !o.Status.CanTransitionTo(status) {
			return fmt.Errorf("illegal transition %s -> %s", o.Status, status)
		}
		o.Status = status
		o.ErrorText = cause.Error()
		o.UpdatedAt = time.Now()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("mark order %s %s: %w", id, status, err)
	}
	logger.Warnf("order %s marked %s: %v", id, status, cause)
	return updated, nil
}

// Cancel asks the venue to cancel a resting order and records the result.
func (m *Manager) Cancel(ctx context.Context, id string) (*types.Order, error) {
	ord, err := m.store.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if ord.Status.Terminal() {
		return nil, fmt.Errorf("order %s is already %s", id, ord.Status)
	}
	if ord.Status == types.OrderStatusPending {
		return nil, fmt.Errorf("order %s has no venue acknowledgement yet", id)
	}

	err = m.venueCall(ctx, "cancel", func(cctx context.Context) error {
		return m.gateway.Cancel(cctx, ord.ExternalID)
	})
	if err != nil {
		if errors.Is(err, venue.ErrUnknownOrder) {
			// The venue has no such order; reconciliation will settle
			// which side is right.
			logger.Warnf("cancel %s: venue does not know external_id=%s", id, ord.ExternalID)
		}
		return nil, fmt.Errorf("cancel order %s: %w", id, err)
	}

	updated, err := m.store.MutateOrder(ctx, id, func(o *types.Order) error {
		if o.Status.Terminal() {
			return nil
		}
		if !o.Status.CanTransitionTo(types.OrderStatusCancelled) {
			return fmt.Errorf("illegal transition %s -> CANCELLED", o.Status)
		}
		o.Status = types.OrderStatusCancelled
		o.UpdatedAt = time.Now()
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Infof("order cancelled: %s external_id=%s", id, ord.ExternalID)
	return updated, nil
}

// Modify amends a resting order's mutable fields. The amended order must
// clear the same pre-trade gate a fresh one would.
func (m *Manager) Modify(ctx context.Context, id string, fields venue.ModifyFields) (*types.Order, types.ValidationResult, error) {
	if fields.Empty() {
		return nil, types.ValidationResult{}, fmt.Errorf("modify order %s: no fields given", id)
	}
	ord, err := m.store.GetOrder(ctx, id)
	if err != nil {
		return nil, types.ValidationResult{}, err
	}
	if !ord.Status.Resting() {
		return nil, types.ValidationResult{}, fmt.Errorf("order %s is %s, not modifiable", id, ord.Status)
	}

	req := requestFromOrder(ord, fields)
	snap, err := m.Snapshot(ctx, req.Symbol)
	if err != nil {
		return nil, types.ValidationResult{}, fmt.Errorf("build account snapshot: %w", err)
	}
	res := m.validator.Validate(req, snap)
	if !res.Valid {
		logger.Infof("modify rejected pre-trade: order=%s check=%s", id, res.FailedCheck)
		return ord, res, nil
	}

	err = m.venueCall(ctx, "modify", func(cctx context.Context) error {
		return m.gateway.Modify(cctx, ord.ExternalID, fields)
	})
	if err != nil {
		return nil, res, fmt.Errorf("modify order %s: %w", id, err)
	}

	updated, err := m.store.MutateOrder(ctx, id, func(o *types.Order) error {
		if fields.LimitPrice != nil {
			o.LimitPrice = *fields.LimitPrice
		}
		if fields.StopLoss != nil {
			o.StopLoss = *fields.StopLoss
		}
		if fields.TakeProfit != nil {
			o.TakeProfit = *fields.TakeProfit
		}
		if fields.Quantity != nil {
			o.Quantity = *fields.Quantity
		}
		o.UpdatedAt = time.Now()
		return nil
	})
	if err != nil {
		return nil, res, err
	}
	logger.Infof("order modified: %s external_id=%s", id, ord.ExternalID)
	return updated, res, nil
}

// FlattenAll cancels every resting order and submits closing market
// orders for every open position. The risk monitor calls this when the
// kill switch trips; these closing orders bypass the pre-trade gate.
func (m *Manager) FlattenAll(ctx context.Context, reason string) error {
	logger.Warnf("flatten all: %s", reason)

	active, err := m.store.ListActiveOrders(ctx)
	if err != nil {
		return fmt.Errorf("list active orders: %w", err)
	}
	for i := range active {
		ord := active[i]
		if !ord.Status.Resting() || ord.ExternalID == "" {
			continue
		}
		if _, err := m.Cancel(ctx, ord.ID); err != nil {
			logger.Warnf("flatten: cancel %s: %v", ord.ID, err)
		}
	}

	open, err := m.store.ListOpenPositions(ctx)
	if err != nil {
		return fmt.Errorf("list open positions: %w", err)
	}
	for i := range open {
		pos := open[i]
		if err := m.submitClose(ctx, pos, reason); err != nil {
			logger.Errorf("flatten: close %s/%s: %v", pos.Symbol, pos.Venue, err)
		}
	}
	return nil
}

func (m *Manager) submitClose(ctx context.Context, pos types.Position, reason string) error {
	now := time.Now()
	ord := &types.Order{
		ID:         uuid.NewString(),
		Symbol:     pos.Symbol,
		Venue:      pos.Venue,
		Side:       pos.Side().Opposite(),
		Quantity:   pos.AbsQuantity(),
		Kind:       types.OrderKindMarket,
		StrategyID: "risk_flatten",
		Status:     types.OrderStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := m.store.CreateOrder(ctx, ord); err != nil {
		return fmt.Errorf("persist close order: %w", err)
	}

	var externalID string
	err := m.venueCall(ctx, "submit", func(cctx context.Context) error {
		id, err := m.gateway.Submit(cctx, ord)
		externalID = id
		return err
	})
	if err != nil {
		_, ferr := m.failOrder(ctx, ord.ID, types.OrderStatusFailed, err)
		if ferr != nil {
			return ferr
		}
		return err
	}
	_, err = m.store.MutateOrder(ctx, ord.ID, func(o *types.Order) error {
		o.Status = types.OrderStatusSubmitted
		o.ExternalID = externalID
		t := time.Now()
		o.SubmittedAt = &t
		o.UpdatedAt = t
		return nil
	})
	if err != nil {
		return err
	}
	logger.Warnf("flatten: closing %s/%s qty=%s via %s (%s)", pos.Symbol, pos.Venue, ord.Quantity, ord.ID, reason)
	return nil
}

// venueCall funnels every gateway call through the breaker and a per-call
// deadline. Rejections and unknown-order answers are real responses from
// the venue, so they do not count as transport failures.
func (m *Manager) venueCall(ctx context.Context, op string, fn func(context.Context) error) error {
	if !m.breaker.Allow() {
		return fmt.Errorf("%s: %w", op, ErrVenueUnavailable)
	}
	cctx, cancel := context.WithTimeout(ctx, m.cfg.CallTimeout)
	defer cancel()

	err := fn(cctx)
	if err == nil || errors.Is(err, venue.ErrRejected) || errors.Is(err, venue.ErrUnknownOrder) {
		m.breaker.RecordSuccess()
		return err
	}
	m.breaker.RecordFailure()
	return err
}

func normalizeRequest(req types.OrderRequest, defaultVenue string) types.OrderRequest {
	req.Symbol = symbol.Normalize(req.Symbol)
	if strings.TrimSpace(req.Venue) == "" {
		req.Venue = defaultVenue
	}
	if req.Kind == "" {
		if req.LimitPrice.IsPositive() {
			req.Kind = types.OrderKindLimit
		} else {
			req.Kind = types.OrderKindMarket
		}
	}
	return req
}

func requestFromOrder(ord *types.Order, fields venue.ModifyFields) types.OrderRequest {
	req := types.OrderRequest{
		Symbol:     ord.Symbol,
		Venue:      ord.Venue,
		Side:       ord.Side,
		Quantity:   ord.Quantity,
		Kind:       ord.Kind,
		LimitPrice: ord.LimitPrice,
		StopLoss:   ord.StopLoss,
		TakeProfit: ord.TakeProfit,
		StrategyID: ord.StrategyID,
	}
	if fields.LimitPrice != nil {
		req.LimitPrice = *fields.LimitPrice
	}
	if fields.StopLoss != nil {
		req.StopLoss = *fields.StopLoss
	}
	if fields.TakeProfit != nil {
		req.TakeProfit = *fields.TakeProfit
	}
	if fields.Quantity != nil {
		req.Quantity = *fields.Quantity
	}
	return req
}
