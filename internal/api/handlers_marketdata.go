package api

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"sentineld/internal/sentinel"
)

func (s *Server) client(c *gin.Context) (mode sentinel.TradingMode, ok bool) {
	mode = tradingModeParam(c)
	if mode == "" {
		failWithStatus(c, 400, "missing required query param: tradingMode")
		return "", false
	}
	if _, exists := s.clients[mode]; !exists {
		failWithStatus(c, 400, "unknown trading mode: "+string(mode))
		return "", false
	}
	return mode, true
}

func splitSymbols(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// GET /api/binance/ticker/price?symbol=BTCUSDT&tradingMode=mainnet
func (s *Server) handleTickerPrice(c *gin.Context) {
	mode, okMode := s.client(c)
	if !okMode {
		return
	}
	symbol := c.Query("symbol")
	if symbol == "" {
		failWithStatus(c, 400, "missing required query param: symbol")
		return
	}
	price, err := s.fetcher.GetPrice(c.Request.Context(), symbol, mode)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"symbol": symbol, "price": price})
}

// GET /api/binance/ticker/price/batch?symbols=BTCUSDT,ETHUSDT&tradingMode=mainnet
func (s *Server) handleTickerPriceBatch(c *gin.Context) {
	mode, okMode := s.client(c)
	if !okMode {
		return
	}
	symbols := splitSymbols(c.Query("symbols"))
	if len(symbols) == 0 {
		failWithStatus(c, 400, "missing required query param: symbols")
		return
	}
	results, summary := s.fetcher.GetPriceBatch(c.Request.Context(), symbols, mode)
	ok(c, gin.H{"results": results, "summary": summary})
}

// GET /api/binance/ticker/24hr?symbol=BTCUSDT&tradingMode=mainnet
func (s *Server) handleTicker24hr(c *gin.Context) {
	mode, okMode := s.client(c)
	if !okMode {
		return
	}
	symbol := c.Query("symbol")
	if symbol == "" {
		failWithStatus(c, 400, "missing required query param: symbol")
		return
	}
	results, _ := s.fetcher.Get24hrTickerBatch(c.Request.Context(), []string{symbol}, mode)
	if len(results) == 0 || results[0].Error != "" {
		failWithStatus(c, 502, "fetch 24hr ticker failed")
		return
	}
	ok(c, results[0].Ticker)
}

// GET /api/binance/ticker/24hr/batch?symbols=BTCUSDT,ETHUSDT&tradingMode=mainnet
func (s *Server) handleTicker24hrBatch(c *gin.Context) {
	mode, okMode := s.client(c)
	if !okMode {
		return
	}
	symbols := splitSymbols(c.Query("symbols"))
	if len(symbols) == 0 {
		failWithStatus(c, 400, "missing required query param: symbols")
		return
	}
	results, summary := s.fetcher.Get24hrTickerBatch(c.Request.Context(), symbols, mode)
	ok(c, gin.H{"results": results, "summary": summary})
}

func klineParams(c *gin.Context) (interval string, limit int, endTime int64) {
	interval = c.DefaultQuery("interval", "1h")
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "500"))
	endTime, _ = strconv.ParseInt(c.Query("endTime"), 10, 64)
	return
}

// GET /api/binance/klines?symbol=BTCUSDT&interval=1h&limit=500&tradingMode=mainnet
func (s *Server) handleKlines(c *gin.Context) {
	mode, okMode := s.client(c)
	if !okMode {
		return
	}
	symbol := c.Query("symbol")
	if symbol == "" {
		failWithStatus(c, 400, "missing required query param: symbol")
		return
	}
	interval, limit, endTime := klineParams(c)
	klines, cached, err := s.fetcher.GetKlines(c.Request.Context(), symbol, interval, limit, endTime, mode)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"symbol": symbol, "klines": klines, "cached": cached})
}

// GET /api/binance/klines/batch?symbols=BTCUSDT,ETHUSDT&interval=1h&limit=500&tradingMode=mainnet
func (s *Server) handleKlinesBatch(c *gin.Context) {
	mode, okMode := s.client(c)
	if !okMode {
		return
	}
	symbols := splitSymbols(c.Query("symbols"))
	if len(symbols) == 0 {
		failWithStatus(c, 400, "missing required query param: symbols")
		return
	}
	interval, limit, endTime := klineParams(c)
	results, summary := s.fetcher.GetKlinesBatch(c.Request.Context(), symbols, interval, limit, endTime, mode)
	ok(c, gin.H{"results": results, "summary": summary})
}

// GET /api/binance/exchangeInfo?tradingMode=mainnet
func (s *Server) handleExchangeInfo(c *gin.Context) {
	mode, okMode := s.client(c)
	if !okMode {
		return
	}
	info, err := s.fetcher.GetExchangeInfo(c.Request.Context(), mode)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, info)
}

// GET /api/binance/account?tradingMode=mainnet (signed)
func (s *Server) handleAccount(c *gin.Context) {
	mode, okMode := s.client(c)
	if !okMode {
		return
	}
	account, err := s.clients[mode].GetAccount(c.Request.Context())
	if err != nil {
		fail(c, sentinel.Upstream("fetch account failed", err))
		return
	}
	ok(c, account)
}

// GET /api/binance/order?symbol=BTCUSDT&orderId=123&tradingMode=mainnet (signed)
func (s *Server) handleGetOrder(c *gin.Context) {
	mode, okMode := s.client(c)
	if !okMode {
		return
	}
	symbol := c.Query("symbol")
	orderID, _ := strconv.ParseInt(c.Query("orderId"), 10, 64)
	if symbol == "" || orderID == 0 {
		failWithStatus(c, 400, "missing required query params: symbol, orderId")
		return
	}
	order, err := s.clients[mode].GetOrder(c.Request.Context(), symbol, orderID)
	if err != nil {
		fail(c, sentinel.Upstream("fetch order failed", err))
		return
	}
	ok(c, order)
}

// POST /api/binance/order?tradingMode=mainnet (signed) — body carries the raw
// Binance order fields verbatim (symbol, side, type, quantity, price, ...).
func (s *Server) handlePlaceOrder(c *gin.Context) {
	mode, okMode := s.client(c)
	if !okMode {
		return
	}
	var body map[string]interface{}
	if err := c.ShouldBindJSON(&body); err != nil {
		failWithStatus(c, 400, "invalid JSON body: "+err.Error())
		return
	}
	if missing := requireFields(body, "symbol", "side", "type"); len(missing) > 0 {
		failWithStatus(c, 400, "missing required order fields: "+strings.Join(missing, ", "))
		return
	}

	params := url.Values{}
	for k, v := range body {
		params.Set(k, toQueryValue(v))
	}

	order, err := s.clients[mode].PlaceOrder(c.Request.Context(), params)
	if err != nil {
		fail(c, sentinel.Upstream("place order failed", err))
		return
	}
	created(c, order)
}

// GET /api/binance/allOrders?symbol=BTCUSDT&limit=500&tradingMode=mainnet (signed)
func (s *Server) handleAllOrders(c *gin.Context) {
	mode, okMode := s.client(c)
	if !okMode {
		return
	}
	symbol := c.Query("symbol")
	if symbol == "" {
		failWithStatus(c, 400, "missing required query param: symbol")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "500"))
	orders, err := s.clients[mode].GetAllOrders(c.Request.Context(), symbol, limit)
	if err != nil {
		fail(c, sentinel.Upstream("fetch order history failed", err))
		return
	}
	ok(c, orders)
}

func toQueryValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}
