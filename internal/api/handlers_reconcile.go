package api

import (
	"github.com/gin-gonic/gin"

	"sentineld/internal/sentinel"
)

// POST /api/functions/reconcileWalletState body {mode}
func (s *Server) handleReconcileWalletState(c *gin.Context) {
	var body struct {
		Mode sentinel.TradingMode `json:"mode"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Mode == "" {
		failWithStatus(c, 400, "missing required field: mode")
		return
	}
	report, err := s.reconciler.ReconcileWalletState(c.Request.Context(), body.Mode)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, report)
}

// POST /api/functions/walletReconciliation body {action, symbol, mode} — the
// only action spec.md defines is virtualCloseDustPositions; any other value
// is rejected as a validation error rather than silently ignored.
func (s *Server) handleWalletReconciliation(c *gin.Context) {
	var body struct {
		Action string               `json:"action"`
		Symbol string               `json:"symbol"`
		Mode   sentinel.TradingMode `json:"mode"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		failWithStatus(c, 400, "invalid JSON body: "+err.Error())
		return
	}
	if body.Action != "virtualCloseDustPositions" {
		failWithStatus(c, 400, "unsupported action: "+body.Action)
		return
	}
	if body.Symbol == "" || body.Mode == "" {
		failWithStatus(c, 400, "missing required fields: symbol, mode")
		return
	}

	closedCount, closed, err := s.reconciler.VirtualCloseDustPositions(c.Request.Context(), body.Symbol, body.Mode)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"closedCount": closedCount, "closed": closed})
}

// POST /api/functions/purgeGhostPositions body {mode, walletId?}
func (s *Server) handlePurgeGhostPositions(c *gin.Context) {
	var body struct {
		Mode     sentinel.TradingMode `json:"mode"`
		WalletID string               `json:"walletId"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Mode == "" {
		failWithStatus(c, 400, "missing required field: mode")
		return
	}
	report, err := s.reconciler.PurgeGhostPositions(c.Request.Context(), body.Mode, body.WalletID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, report)
}
