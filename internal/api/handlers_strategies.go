package api

import (
	"encoding/json"
	"strconv"

	"github.com/gin-gonic/gin"

	"sentineld/internal/sentinel"
	"sentineld/internal/strategyperf"
)

const defaultStrategyListLimit = 10000

func (s *Server) putStrategyIntoState(strat *sentinel.Strategy) {
	key := strategyperf.NormalizeStrategyName(strat.StrategyName)
	s.state.PutStrategy(key, strat)
}

// GET /api/backtestCombinations?limit? (default 10000)
func (s *Server) handleListStrategies(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultStrategyListLimit)))
	list, err := s.repo.ListStrategies(c.Request.Context(), limit)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, list)
}

// POST /api/backtestCombinations
func (s *Server) handleCreateStrategy(c *gin.Context) {
	var strat sentinel.Strategy
	if err := c.ShouldBindJSON(&strat); err != nil {
		failWithStatus(c, 400, "invalid JSON body: "+err.Error())
		return
	}
	if strat.StrategyName == "" || strat.Coin == "" || strat.Timeframe == "" {
		failWithStatus(c, 400, "missing required strategy fields: strategy_name, coin, timeframe")
		return
	}
	if err := s.repo.UpsertStrategy(c.Request.Context(), &strat); err != nil {
		fail(c, err)
		return
	}
	s.putStrategyIntoState(&strat)
	created(c, strat)
}

// POST /api/backtestCombinations/bulkCreate
func (s *Server) handleBulkCreateStrategies(c *gin.Context) {
	var strategies []sentinel.Strategy
	if err := c.ShouldBindJSON(&strategies); err != nil {
		failWithStatus(c, 400, "invalid JSON body: "+err.Error())
		return
	}
	saved, failed := 0, 0
	for i := range strategies {
		if err := s.repo.UpsertStrategy(c.Request.Context(), &strategies[i]); err != nil {
			failed++
			continue
		}
		s.putStrategyIntoState(&strategies[i])
		saved++
	}
	ok(c, gin.H{"saved": saved, "failed": failed})
}

// PUT /api/backtestCombinations/:id — merges the patch body onto the
// existing row (looked up by id across the full list, since the table's
// natural key is the partial-unique combination tuple, not id) and
// re-upserts through the same ON CONFLICT path as a create.
func (s *Server) handleUpdateStrategy(c *gin.Context) {
	id := c.Param("id")
	all, err := s.repo.ListStrategies(c.Request.Context(), 0)
	if err != nil {
		fail(c, err)
		return
	}

	var existing *sentinel.Strategy
	for _, strat := range all {
		if strat.ID == id {
			existing = strat
			break
		}
	}
	if existing == nil {
		failWithStatus(c, 404, "strategy not found: "+id)
		return
	}

	var patch map[string]interface{}
	if err := c.ShouldBindJSON(&patch); err != nil {
		failWithStatus(c, 400, "invalid JSON body: "+err.Error())
		return
	}

	base, _ := json.Marshal(existing)
	var merged map[string]interface{}
	_ = json.Unmarshal(base, &merged)
	for k, v := range patch {
		merged[k] = v
	}
	mergedRaw, _ := json.Marshal(merged)

	var strat sentinel.Strategy
	if err := json.Unmarshal(mergedRaw, &strat); err != nil {
		failWithStatus(c, 400, "invalid patch fields")
		return
	}
	strat.ID = id

	if err := s.repo.UpsertStrategy(c.Request.Context(), &strat); err != nil {
		fail(c, err)
		return
	}
	s.putStrategyIntoState(&strat)
	ok(c, strat)
}

// DELETE /api/backtestCombinations/:id
func (s *Server) handleDeleteStrategy(c *gin.Context) {
	if err := s.repo.DeleteStrategies(c.Request.Context(), []string{c.Param("id")}); err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"deleted": true})
}

// DELETE /api/backtestCombinations body {ids:[...]}
func (s *Server) handleDeleteStrategiesBulk(c *gin.Context) {
	var body struct {
		IDs []string `json:"ids"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		failWithStatus(c, 400, "invalid JSON body: "+err.Error())
		return
	}
	if err := s.repo.DeleteStrategies(c.Request.Context(), body.IDs); err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"deletedCount": len(body.IDs)})
}

// POST /api/backtestCombinations/refresh-live-performance
func (s *Server) handleRefreshLivePerformance(c *gin.Context) {
	s.strategies.RefreshAll(c.Request.Context())
	ok(c, gin.H{"refreshed": true})
}
