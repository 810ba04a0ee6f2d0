package api

import (
	"github.com/gin-gonic/gin"

	"sentineld/internal/positions"
	"sentineld/internal/sentinel"
)

func positionFilterFromQuery(c *gin.Context) positions.Filter {
	f := positions.Filter{
		WalletID:    c.Query("wallet_id"),
		TradingMode: sentinel.TradingMode(c.Query("trading_mode")),
	}
	if status := c.Query("status"); status != "" {
		f.Status = []sentinel.PositionStatus{sentinel.PositionStatus(status)}
	}
	return f
}

// GET /api/livePositions?trading_mode?&status?&wallet_id?
func (s *Server) handleListPositions(c *gin.Context) {
	list, err := s.positions.List(c.Request.Context(), positionFilterFromQuery(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, list)
}

// POST /api/livePositions
func (s *Server) handleCreatePosition(c *gin.Context) {
	var p sentinel.Position
	if err := c.ShouldBindJSON(&p); err != nil {
		failWithStatus(c, 400, "invalid JSON body: "+err.Error())
		return
	}
	created_, err := s.positions.Create(c.Request.Context(), p)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, created_)
}

// PUT /api/livePositions/:id — partial patch
func (s *Server) handleUpdatePosition(c *gin.Context) {
	id := c.Param("id")
	var body struct {
		CurrentPrice    *float64                     `json:"current_price"`
		UnrealizedPnL   *float64                     `json:"unrealized_pnl"`
		PeakPrice       *float64                     `json:"peak_price"`
		TroughPrice     *float64                     `json:"trough_price"`
		Status          *sentinel.PositionStatus     `json:"status"`
		TimeExitHours   *float64                     `json:"time_exit_hours"`
		StopLossPrice   *float64                     `json:"stop_loss_price"`
		TakeProfitPrice *float64                     `json:"take_profit_price"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		failWithStatus(c, 400, "invalid JSON body: "+err.Error())
		return
	}
	patch := positions.Patch{
		CurrentPrice:    body.CurrentPrice,
		UnrealizedPnL:   body.UnrealizedPnL,
		PeakPrice:       body.PeakPrice,
		TroughPrice:     body.TroughPrice,
		Status:          body.Status,
		TimeExitHours:   body.TimeExitHours,
		StopLossPrice:   body.StopLossPrice,
		TakeProfitPrice: body.TakeProfitPrice,
	}
	updated, err := s.positions.Update(c.Request.Context(), id, patch)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, updated)
}

// DELETE /api/livePositions/:id — :id is the position_id, matching the
// Position Manager's delete key (spec.md §4.4 keys positions by position_id).
func (s *Server) handleDeletePosition(c *gin.Context) {
	if err := s.positions.Delete(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"deleted": true})
}

// POST /api/entities/LivePosition/filter — entity-style alias for the same
// listing query, filters carried in the body instead of the query string.
func (s *Server) handleFilterPositions(c *gin.Context) {
	var body struct {
		WalletID    string                    `json:"wallet_id"`
		TradingMode sentinel.TradingMode      `json:"trading_mode"`
		Status      []sentinel.PositionStatus `json:"status"`
	}
	_ = c.ShouldBindJSON(&body)

	f := positions.Filter{WalletID: body.WalletID, TradingMode: body.TradingMode, Status: body.Status}
	list, err := s.positions.List(c.Request.Context(), f)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, list)
}
