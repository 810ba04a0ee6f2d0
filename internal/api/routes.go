package api

// setupRoutes wires every handler to its spec.md §6.1 path, grouped by
// resource the way the teacher's server.go groups its own route table.
func (s *Server) setupRoutes() {
	api := s.router.Group("/api")

	binance := api.Group("/binance")
	{
		binance.GET("/ticker/price", s.handleTickerPrice)
		binance.GET("/ticker/price/batch", s.handleTickerPriceBatch)
		binance.GET("/ticker/24hr", s.handleTicker24hr)
		binance.GET("/ticker/24hr/batch", s.handleTicker24hrBatch)
		binance.GET("/klines", s.handleKlines)
		binance.GET("/klines/batch", s.handleKlinesBatch)
		binance.GET("/exchangeInfo", s.handleExchangeInfo)
		binance.GET("/account", s.handleAccount)
		binance.GET("/order", s.handleGetOrder)
		binance.POST("/order", s.handlePlaceOrder)
		binance.GET("/allOrders", s.handleAllOrders)
	}

	positions := api.Group("/livePositions")
	{
		positions.GET("", s.handleListPositions)
		positions.POST("", s.handleCreatePosition)
		positions.PUT("/:id", s.handleUpdatePosition)
		positions.DELETE("/:id", s.handleDeletePosition)
	}

	trades := api.Group("/trades")
	{
		trades.GET("", s.handleListTrades)
		trades.POST("", s.handleCreateTrade)
		trades.POST("/bulkCreate", s.handleBulkCreateTrades)
		trades.DELETE("/:id", s.handleDeleteTrade)
		trades.DELETE("", s.handleDeleteAllTrades)
		trades.POST("/remove-duplicates", s.handleRemoveDuplicateTrades)
		trades.POST("/fix-entry-prices", s.handleFixEntryPrices)
		trades.POST("/recalculate-pnl", s.handleRecalculatePnL)
		trades.POST("/clean-invalid", s.handleCleanInvalidTrades)
		trades.POST("/delete-by-ids", s.handleDeleteTradesByIDs)
		trades.POST("/reload-from-database", s.handleReloadTradesFromDatabase)
	}

	strategies := api.Group("/backtestCombinations")
	{
		strategies.GET("", s.handleListStrategies)
		strategies.POST("", s.handleCreateStrategy)
		strategies.POST("/bulkCreate", s.handleBulkCreateStrategies)
		strategies.PUT("/:id", s.handleUpdateStrategy)
		strategies.DELETE("/:id", s.handleDeleteStrategy)
		strategies.DELETE("", s.handleDeleteStrategiesBulk)
		strategies.POST("/refresh-live-performance", s.handleRefreshLivePerformance)
	}

	functions := api.Group("/functions")
	{
		functions.POST("/reconcileWalletState", s.handleReconcileWalletState)
		functions.POST("/walletReconciliation", s.handleWalletReconciliation)
		functions.POST("/purgeGhostPositions", s.handlePurgeGhostPositions)
	}

	entities := api.Group("/entities")
	{
		entities.POST("/LivePosition/filter", s.handleFilterPositions)
		entities.POST("/HistoricalPerformance/filter", s.handleFilterHistoricalPerformance)
	}

	api.POST("/wallet-config", s.handleUpsertWalletConfig)
	api.PUT("/wallet-config", s.handleUpsertWalletConfig)

	for _, collection := range []string{"walletSummaries", "centralWalletStates", "scanSettings"} {
		group := api.Group("/" + collection)
		group.GET("", s.handleEntityList(collection))
		group.GET("/:id", s.handleEntityGet(collection))
		group.POST("", s.handleEntityUpsert(collection))
		group.PUT("/:id", s.handleEntityUpsert(collection))
		group.DELETE("/:id", s.handleEntityDelete(collection))
	}

	api.GET("/historicalPerformance", s.handleEntityList("historicalPerformance"))

	api.GET("/fearAndGreed", s.handleFearAndGreed)
	api.POST("/openai/chat", s.handleOpenAIChat)
	api.GET("/health", s.handleHealth)
	api.POST("/database/optimize-trades", s.handleOptimizeTrades)
}
