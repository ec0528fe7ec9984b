package tradehttp

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"tradecore/internal/config"
	"tradecore/internal/gateway/venue"
	"tradecore/internal/logger"
	"tradecore/internal/order"
	"tradecore/internal/risk"
	"tradecore/internal/store"
	"tradecore/internal/types"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// Router wires the core managers into the API surface.
type Router struct {
	Orders  *order.Manager
	Monitor *risk.Monitor
	Store   store.Store
	Policy  func() config.RiskPolicy

	// Paper accepts simulated executions through the webhook when the
	// configured venue is the in-process paper venue.
	Paper *venue.PaperVenue
}

func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.POST("/orders", r.handlePlaceOrder)
	group.GET("/orders", r.handleListOrders)
	group.GET("/orders/active", r.handleActiveOrders)
	group.GET("/orders/:id", r.handleOrderDetail)
	group.POST("/orders/:id/cancel", r.handleCancelOrder)
	group.POST("/orders/:id/modify", r.handleModifyOrder)

	group.GET("/positions", r.handleOpenPositions)
	group.GET("/positions/recent", r.handleRecentPositions)
	group.GET("/account", r.handleAccount)

	group.GET("/risk/summary", r.handleRiskSummary)
	group.GET("/risk/alerts", r.handleRiskAlerts)
	group.POST("/risk/kill", r.handleKill)
	group.POST("/risk/reset", r.handleRiskReset)

	group.GET("/reconciliation", r.handleReconciliationIssues)
	group.POST("/venue/webhook", r.handleVenueWebhook)
}

type placeOrderRequest struct {
	Symbol     string          `json:"symbol" binding:"required"`
	Side       string          `json:"side" binding:"required"`
	Quantity   decimal.Decimal `json:"quantity"`
	Kind       string          `json:"kind"`
	LimitPrice decimal.Decimal `json:"limit_price"`
	StopLoss   decimal.Decimal `json:"stop_loss"`
	TakeProfit decimal.Decimal `json:"take_profit"`
	StrategyID string          `json:"strategy_id"`
}

func (r *Router) handlePlaceOrder(c *gin.Context) {
	var body placeOrderRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	side, err := types.ParseSide(body.Side)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req := types.OrderRequest{
		Symbol:     body.Symbol,
		Side:       side,
		Quantity:   body.Quantity,
		Kind:       types.OrderKind(strings.ToLower(strings.TrimSpace(body.Kind))),
		LimitPrice: body.LimitPrice,
		StopLoss:   body.StopLoss,
		TakeProfit: body.TakeProfit,
		StrategyID: body.StrategyID,
	}

	ord, res, err := r.Orders.Place(c.Request.Context(), req)
	if err != nil {
		logger.Errorf("[api] place order failed ip=%s symbol=%s err=%v", c.ClientIP(), req.Symbol, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	status := http.StatusCreated
	if !res.Valid {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, gin.H{"order": ord, "validation": res})
}

func (r *Router) handleCancelOrder(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	ord, err := r.Orders.Cancel(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}
		logger.Warnf("[api] cancel order failed ip=%s id=%s err=%v", c.ClientIP(), id, err)
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": ord})
}

type modifyOrderRequest struct {
	LimitPrice *decimal.Decimal `json:"limit_price"`
	StopLoss   *decimal.Decimal `json:"stop_loss"`
	TakeProfit *decimal.Decimal `json:"take_profit"`
	Quantity   *decimal.Decimal `json:"quantity"`
}

func (r *Router) handleModifyOrder(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	var body modifyOrderRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	fields := venue.ModifyFields{
		LimitPrice: body.LimitPrice,
		StopLoss:   body.StopLoss,
		TakeProfit: body.TakeProfit,
		Quantity:   body.Quantity,
	}
	ord, res, err := r.Orders.Modify(c.Request.Context(), id, fields)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}
		logger.Warnf("[api] modify order failed ip=%s id=%s err=%v", c.ClientIP(), id, err)
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if !res.Valid {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"order": ord, "validation": res})
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": ord, "validation": res})
}

func (r *Router) handleListOrders(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	orders, err := r.Store.ListRecentOrders(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (r *Router) handleActiveOrders(c *gin.Context) {
	orders, err := r.Store.ListActiveOrders(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (r *Router) handleOrderDetail(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	ord, err := r.Store.GetOrder(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	trades, err := r.Store.ListTradesForOrder(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": ord, "trades": trades})
}

func (r *Router) handleOpenPositions(c *gin.Context) {
	positions, err := r.Store.ListOpenPositions(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"positions": positions})
}

func (r *Router) handleRecentPositions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	positions, err := r.Store.ListRecentPositions(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"positions": positions})
}

func (r *Router) handleAccount(c *gin.Context) {
	symbol := strings.ToUpper(strings.TrimSpace(c.Query("symbol")))
	snap, err := r.Orders.Snapshot(c.Request.Context(), symbol)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": snap})
}

func (r *Router) handleRiskSummary(c *gin.Context) {
	snap, err := r.Orders.Snapshot(c.Request.Context(), "")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"account":             snap,
		"kill_switch_tripped": r.Monitor.Tripped(),
		"policy":              r.Policy(),
	})
}

func (r *Router) handleRiskAlerts(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	alerts, err := r.Store.ListRecentRiskAlerts(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}

type killSwitchRequest struct {
	Actor  string `json:"actor"`
	Reason string `json:"reason"`
}

func (r *Router) handleKill(c *gin.Context) {
	var body killSwitchRequest
	_ = c.ShouldBindJSON(&body)
	if body.Actor == "" {
		body.Actor = "api"
	}
	if body.Reason == "" {
		body.Reason = "manual trip via API"
	}
	if err := r.Monitor.Trip(c.Request.Context(), body.Actor, body.Reason); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	logger.Warnf("[api] kill switch tripped ip=%s actor=%s", c.ClientIP(), body.Actor)
	c.JSON(http.StatusOK, gin.H{"kill_switch_tripped": true})
}

func (r *Router) handleRiskReset(c *gin.Context) {
	var body killSwitchRequest
	_ = c.ShouldBindJSON(&body)
	if body.Actor == "" {
		body.Actor = "api"
	}
	if body.Reason == "" {
		body.Reason = "manual reset via API"
	}
	if err := r.Monitor.Reset(c.Request.Context(), body.Actor, body.Reason); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	logger.Warnf("[api] kill switch reset ip=%s actor=%s", c.ClientIP(), body.Actor)
	c.JSON(http.StatusOK, gin.H{"kill_switch_tripped": false})
}

func (r *Router) handleReconciliationIssues(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	issues, err := r.Store.ListReconciliationIssues(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"issues": issues})
}
