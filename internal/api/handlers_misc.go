package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"sentineld/internal/sentinel"
)

// POST or PUT /api/wallet-config body {trading_mode, primary_wallet_id}
func (s *Server) handleUpsertWalletConfig(c *gin.Context) {
	var body struct {
		TradingMode     sentinel.TradingMode `json:"trading_mode"`
		PrimaryWalletID string               `json:"primary_wallet_id"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.TradingMode == "" {
		failWithStatus(c, 400, "missing required field: trading_mode")
		return
	}

	wallet, err := s.repo.GetWallet(c.Request.Context(), body.TradingMode)
	if err != nil {
		fail(c, err)
		return
	}
	wallet.TradingMode = body.TradingMode
	wallet.PrimaryWalletID = body.PrimaryWalletID
	if err := s.repo.UpsertWallet(c.Request.Context(), wallet); err != nil {
		fail(c, err)
		return
	}
	s.state.PutWallet(wallet)
	ok(c, wallet)
}

// storeByName maps the collection name in the URL to its EntityStore.
func (s *Server) storeByName(name string) interface {
	List() []map[string]interface{}
	Get(id string) (map[string]interface{}, bool)
	Upsert(doc map[string]interface{}) (map[string]interface{}, error)
	Delete(id string) bool
} {
	switch name {
	case "walletSummaries":
		return s.walletSummaries
	case "centralWalletStates":
		return s.centralWalletStates
	case "scanSettings":
		return s.scanSettings
	case "historicalPerformance", "historicalPerformances":
		return s.historicalPerformance
	default:
		return nil
	}
}

// GET /api/:collection — full CRUD listing for walletSummaries,
// centralWalletStates, scanSettings, historicalPerformance.
func (s *Server) handleEntityList(collection string) gin.HandlerFunc {
	return func(c *gin.Context) {
		st := s.storeByName(collection)
		if st == nil {
			failWithStatus(c, 404, "unknown collection: "+collection)
			return
		}
		ok(c, st.List())
	}
}

// GET /api/:collection/:id
func (s *Server) handleEntityGet(collection string) gin.HandlerFunc {
	return func(c *gin.Context) {
		st := s.storeByName(collection)
		if st == nil {
			failWithStatus(c, 404, "unknown collection: "+collection)
			return
		}
		doc, found := st.Get(c.Param("id"))
		if !found {
			failWithStatus(c, 404, "not found: "+c.Param("id"))
			return
		}
		ok(c, doc)
	}
}

// POST /api/:collection and PUT /api/:collection/:id
func (s *Server) handleEntityUpsert(collection string) gin.HandlerFunc {
	return func(c *gin.Context) {
		st := s.storeByName(collection)
		if st == nil {
			failWithStatus(c, 404, "unknown collection: "+collection)
			return
		}
		var doc map[string]interface{}
		if err := c.ShouldBindJSON(&doc); err != nil {
			failWithStatus(c, 400, "invalid JSON body: "+err.Error())
			return
		}
		if id := c.Param("id"); id != "" {
			doc["id"] = id
		}
		saved, err := st.Upsert(doc)
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, saved)
	}
}

// DELETE /api/:collection/:id
func (s *Server) handleEntityDelete(collection string) gin.HandlerFunc {
	return func(c *gin.Context) {
		st := s.storeByName(collection)
		if st == nil {
			failWithStatus(c, 404, "unknown collection: "+collection)
			return
		}
		if !st.Delete(c.Param("id")) {
			failWithStatus(c, 404, "not found: "+c.Param("id"))
			return
		}
		ok(c, gin.H{"deleted": true})
	}
}

// POST /api/entities/HistoricalPerformance/filter — entity-style alias,
// filters are accepted but ignored against the opaque document store (no
// fixed schema to filter against); returns the full collection like the
// unfiltered list, matching the teacher's permissive entity-filter handlers.
func (s *Server) handleFilterHistoricalPerformance(c *gin.Context) {
	ok(c, s.historicalPerformance.List())
}

// GET /api/fearAndGreed
func (s *Server) handleFearAndGreed(c *gin.Context) {
	ok(c, s.fearGreed.Get(c.Request.Context(), s.httpClient))
}

// POST /api/openai/chat — signed passthrough to OpenAI's chat completions
// endpoint, grounded on the teacher's internal/ai/llm/client.go completeOpenAI.
func (s *Server) handleOpenAIChat(c *gin.Context) {
	if s.openaiKey == "" {
		failWithStatus(c, 502, "OPENAI_API_KEY not configured")
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		failWithStatus(c, 400, "failed to read request body")
		return
	}

	req, err := http.NewRequestWithContext(c.Request.Context(), http.MethodPost,
		"https://api.openai.com/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		failWithStatus(c, 500, "failed to build upstream request")
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.openaiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		fail(c, sentinel.Upstream("openai request failed", err))
		return
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		fail(c, sentinel.Upstream("openai response read failed", err))
		return
	}

	var passthrough interface{}
	if err := json.Unmarshal(respBody, &passthrough); err != nil {
		failWithStatus(c, 502, "invalid upstream response")
		return
	}
	c.JSON(resp.StatusCode, passthrough)
}

// GET /api/health
func (s *Server) handleHealth(c *gin.Context) {
	health := gin.H{"status": "ok"}

	if s.db != nil {
		if err := s.db.HealthCheck(c.Request.Context()); err != nil {
			health["status"] = "degraded"
			health["database"] = "unreachable"
		} else {
			health["database"] = "ok"
		}
	} else {
		health["database"] = "file-only"
	}

	if s.fetcher != nil {
		health["breakers"] = s.fetcher.BreakerStats()
	}

	ok(c, health)
}

// POST /api/database/optimize-trades — creates the six indexes (two of them partial)
// named in spec.md's database-optimization supplement. A no-op (success
// response, no indexes) when running file-only.
func (s *Server) handleOptimizeTrades(c *gin.Context) {
	if s.db == nil {
		ok(c, gin.H{"optimized": false, "reason": "file-only mode, no database"})
		return
	}

	statements := []string{
		`CREATE UNIQUE INDEX CONCURRENTLY IF NOT EXISTS idx_trades_position_id ON trades (position_id) WHERE position_id IS NOT NULL`,
		`CREATE INDEX CONCURRENTLY IF NOT EXISTS idx_trades_mode_exit_ts ON trades (trading_mode, exit_timestamp)`,
		`CREATE INDEX CONCURRENTLY IF NOT EXISTS idx_trades_strategy_mode ON trades (strategy_name, trading_mode)`,
		`CREATE INDEX CONCURRENTLY IF NOT EXISTS idx_trades_exit_reason ON trades (exit_reason)`,
		`CREATE INDEX CONCURRENTLY IF NOT EXISTS idx_trades_symbol_mode_exit_ts ON trades (symbol, trading_mode, exit_timestamp)`,
		`CREATE INDEX CONCURRENTLY IF NOT EXISTS idx_trades_open ON trades (id) WHERE exit_timestamp IS NULL`,
	}

	applied := 0
	for _, stmt := range statements {
		if _, err := s.db.Pool.Exec(c.Request.Context(), stmt); err != nil {
			fail(c, sentinel.Persistence("optimize trades index creation failed", err))
			return
		}
		applied++
	}
	ok(c, gin.H{"optimized": true, "indexesApplied": applied})
}
