package tradehttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tradecore/internal/config"
	"tradecore/internal/gateway/venue"
	"tradecore/internal/market"
	"tradecore/internal/order"
	"tradecore/internal/position"
	"tradecore/internal/risk"
	"tradecore/internal/store"
	"tradecore/internal/store/gormstore"
	"tradecore/internal/validator"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type stubMarket struct{}

func (stubMarket) LastPrice(_ context.Context, symbol string) (market.Quote, error) {
	return market.Quote{Symbol: symbol, Last: decimal.NewFromInt(100), UpdatedAt: time.Now()}, nil
}

func newTestServer(t *testing.T) (*Server, store.Store, *venue.PaperVenue) {
	t.Helper()
	st, err := gormstore.New(filepath.Join(t.TempDir(), "http.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	pv := venue.NewPaperVenue()
	pm := position.NewManager(st)
	om := order.NewManager(st, pv, stubMarket{}, validator.New(config.DefaultRiskPolicy), pm, order.Config{
		VenueName:     "paper",
		InitialEquity: decimal.NewFromInt(100_000),
		FeeRate:       decimal.NewFromFloat(0.0005),
		CallTimeout:   2 * time.Second,
	})
	mon := risk.NewMonitor(st, config.DefaultRiskPolicy, om, pm, stubMarket{}, time.Second)
	om.SetKillSwitch(mon.Tripped)

	srv, err := NewServer(":0", &Router{
		Orders:  om,
		Monitor: mon,
		Store:   st,
		Policy:  config.DefaultRiskPolicy,
		Paper:   pv,
	})
	require.NoError(t, err)
	return srv, st, pv
}

func doJSON(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

const placeBody = `{
	"symbol": "btcusdt",
	"side": "buy",
	"quantity": "10",
	"kind": "limit",
	"limit_price": "100",
	"stop_loss": "95",
	"take_profit": "110",
	"strategy_id": "api-test"
}`

func TestPlaceOrderEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/orders", placeBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	body := gjson.Parse(rec.Body.String())
	assert.Equal(t, "SUBMITTED", body.Get("order.status").String())
	assert.Equal(t, "BTCUSDT", body.Get("order.symbol").String())
	assert.True(t, body.Get("validation.valid").Bool())
	assert.NotEmpty(t, body.Get("order.external_id").String())
}

func TestPlaceOrderRejectionReturns422(t *testing.T) {
	srv, _, _ := newTestServer(t)

	noStop := strings.Replace(placeBody, `"stop_loss": "95",`, "", 1)
	rec := doJSON(t, srv, http.MethodPost, "/api/orders", noStop)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

	body := gjson.Parse(rec.Body.String())
	assert.Equal(t, "REJECTED", body.Get("order.status").String())
	assert.Equal(t, "stop_loss", body.Get("validation.failed_check").String())
}

func TestWebhookFillUpdatesOrderAndPosition(t *testing.T) {
	srv, st, _ := newTestServer(t)
	ctx := context.Background()

	rec := doJSON(t, srv, http.MethodPost, "/api/orders", placeBody)
	require.Equal(t, http.StatusCreated, rec.Code)
	externalID := gjson.Parse(rec.Body.String()).Get("order.external_id").String()
	orderID := gjson.Parse(rec.Body.String()).Get("order.id").String()

	fill := `{"type":"fill","external_id":"` + externalID + `","quantity":10,"price":"100"}`
	rec = doJSON(t, srv, http.MethodPost, "/api/venue/webhook", fill)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	ord, err := st.GetOrder(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, "FILLED", string(ord.Status))

	pos, err := st.GetOpenPosition(ctx, "BTCUSDT", "paper")
	require.NoError(t, err)
	assert.True(t, pos.Quantity.Equal(decimal.NewFromInt(10)))

	rec = doJSON(t, srv, http.MethodGet, "/api/positions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), gjson.Parse(rec.Body.String()).Get("positions.#").Int())
}

func TestCancelEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/orders", placeBody)
	require.Equal(t, http.StatusCreated, rec.Code)
	orderID := gjson.Parse(rec.Body.String()).Get("order.id").String()

	rec = doJSON(t, srv, http.MethodPost, "/api/orders/"+orderID+"/cancel", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "CANCELLED", gjson.Parse(rec.Body.String()).Get("order.status").String())

	// Second cancel conflicts: the order is terminal.
	rec = doJSON(t, srv, http.MethodPost, "/api/orders/"+orderID+"/cancel", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/api/orders/nope/cancel", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestKillSwitchEndpoints(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/risk/kill", `{"actor":"desk","reason":"drill"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/risk/summary", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, gjson.Parse(rec.Body.String()).Get("kill_switch_tripped").Bool())

	// Orders are rejected while tripped.
	rec = doJSON(t, srv, http.MethodPost, "/api/orders", placeBody)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "kill_switch", gjson.Parse(rec.Body.String()).Get("validation.failed_check").String())

	rec = doJSON(t, srv, http.MethodPost, "/api/risk/reset", `{"actor":"desk","reason":"drill over"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/api/orders", placeBody)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestRiskSummaryShape(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/risk/summary", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var parsed map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parsed))
	assert.Contains(t, parsed, "account")
	assert.Contains(t, parsed, "policy")
	assert.Contains(t, parsed, "kill_switch_tripped")
}
