package tradehttp

import (
	"io"
	"net/http"
	"strings"

	"tradecore/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// handleVenueWebhook ingests execution pushes from the venue. Payload
// shapes vary per venue and numbers arrive as strings or floats, so the
// fields are extracted with gjson instead of a rigid struct bind.
//
// Fill event:
//
//	{"type":"fill","external_id":"...","quantity":"0.5","price":"64000.1"}
//
// After booking the fill into the paper venue, one status-monitor cycle
// runs so the order, trade and position records update immediately
// instead of on the next poll.
func (r *Router) handleVenueWebhook(c *gin.Context) {
	if r.Paper == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "webhook is only available with the paper venue"})
		return
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !gjson.ValidBytes(body) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	payload := gjson.ParseBytes(body)

	eventType := strings.ToLower(strings.TrimSpace(payload.Get("type").String()))
	switch eventType {
	case "fill":
		r.handleWebhookFill(c, payload)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported event type: " + eventType})
	}
}

func (r *Router) handleWebhookFill(c *gin.Context, payload gjson.Result) {
	externalID := strings.TrimSpace(payload.Get("external_id").String())
	if externalID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "external_id is required"})
		return
	}
	qty, err := decimal.NewFromString(payload.Get("quantity").String())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid quantity"})
		return
	}
	price, err := decimal.NewFromString(payload.Get("price").String())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid price"})
		return
	}

	if err := r.Paper.Fill(externalID, qty, price); err != nil {
		logger.Warnf("[api] webhook fill rejected ip=%s external_id=%s err=%v", c.ClientIP(), externalID, err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	logger.Infof("[api] webhook fill ip=%s external_id=%s qty=%s price=%s", c.ClientIP(), externalID, qty, price)

	if err := r.Orders.PollOnce(c.Request.Context()); err != nil {
		logger.Warnf("[api] webhook fill: status cycle failed: %v", err)
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
