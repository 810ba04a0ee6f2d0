package api

import (
	"github.com/gin-gonic/gin"

	"sentineld/internal/sentinel"
)

func tradeMatchesQuery(c *gin.Context, t sentinel.Trade) bool {
	if mode := c.Query("trading_mode"); mode != "" && string(t.TradingMode) != mode {
		return false
	}
	if symbol := c.Query("symbol"); symbol != "" && t.Symbol != symbol {
		return false
	}
	if tradeID := c.Query("trade_id"); tradeID != "" && t.ID != tradeID {
		return false
	}
	return true
}

// GET /api/trades?trading_mode?&symbol?&trade_id?&offset?&limit? — only rows
// with a non-null exit_timestamp are ever in the ledger (the Ledger only
// stores closed trades), so the "exit_timestamp != null" filter from
// spec.md is automatically satisfied by every row in memory.
func (s *Server) handleListTrades(c *gin.Context) {
	all := s.state.Trades()
	filtered := make([]sentinel.Trade, 0, len(all))
	for _, t := range all {
		if tradeMatchesQuery(c, t) {
			filtered = append(filtered, t)
		}
	}
	ok(c, filtered)
}

// POST /api/trades
func (s *Server) handleCreateTrade(c *gin.Context) {
	var t sentinel.Trade
	if err := c.ShouldBindJSON(&t); err != nil {
		failWithStatus(c, 400, "invalid JSON body: "+err.Error())
		return
	}
	result, err := s.ledger.Insert(c.Request.Context(), t)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, result)
}

// POST /api/trades/bulkCreate
func (s *Server) handleBulkCreateTrades(c *gin.Context) {
	var trades []sentinel.Trade
	if err := c.ShouldBindJSON(&trades); err != nil {
		failWithStatus(c, 400, "invalid JSON body: "+err.Error())
		return
	}
	summary := s.ledger.BulkInsert(c.Request.Context(), trades)
	ok(c, summary)
}

// DELETE /api/trades/:id
func (s *Server) handleDeleteTrade(c *gin.Context) {
	deleted, remaining, err := s.ledger.DeleteByIDs(c.Request.Context(), []string{c.Param("id")})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"deletedCount": deleted, "remainingCount": remaining})
}

// DELETE /api/trades — delete all
func (s *Server) handleDeleteAllTrades(c *gin.Context) {
	all := s.state.Trades()
	ids := make([]string, len(all))
	for i, t := range all {
		ids[i] = t.ID
	}
	deleted, remaining, err := s.ledger.DeleteByIDs(c.Request.Context(), ids)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"deletedCount": deleted, "remainingCount": remaining})
}

// POST /api/trades/remove-duplicates
func (s *Server) handleRemoveDuplicateTrades(c *gin.Context) {
	deleted, remaining, err := s.ledger.RemoveDuplicates(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"deletedCount": deleted, "remainingCount": remaining})
}

// POST /api/trades/fix-entry-prices
func (s *Server) handleFixEntryPrices(c *gin.Context) {
	fixed, unfixable, err := s.ledger.FixEntryPrices(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"fixed": fixed, "unfixable": unfixable})
}

// POST /api/trades/recalculate-pnl
func (s *Server) handleRecalculatePnL(c *gin.Context) {
	rewritten, err := s.ledger.RecalculatePnL(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"rewritten": rewritten})
}

// POST /api/trades/clean-invalid
func (s *Server) handleCleanInvalidTrades(c *gin.Context) {
	var body struct {
		MinPrice map[string]float64 `json:"minPrice"`
	}
	_ = c.ShouldBindJSON(&body)
	report, err := s.reconciler.CleanInvalidTrades(c.Request.Context(), body.MinPrice)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, report)
}

// POST /api/trades/delete-by-ids body {tradeIds:[...]}
func (s *Server) handleDeleteTradesByIDs(c *gin.Context) {
	var body struct {
		TradeIDs []string `json:"tradeIds"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		failWithStatus(c, 400, "invalid JSON body: "+err.Error())
		return
	}
	deleted, remaining, err := s.ledger.DeleteByIDs(c.Request.Context(), body.TradeIDs)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"deletedCount": deleted, "remainingCount": remaining})
}

// POST /api/trades/reload-from-database
func (s *Server) handleReloadTradesFromDatabase(c *gin.Context) {
	if err := s.ledger.LoadFromStore(c.Request.Context()); err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"reloaded": true, "count": len(s.state.Trades())})
}
