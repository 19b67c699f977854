package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/niaga-platform/service-seller-analytics/internal/handlers"
)

// RouteConfig holds configuration for routes
type RouteConfig struct {
	CredentialHandler *handlers.CredentialHandler
	AnalyticsHandler  *handlers.AnalyticsHandler
	SyncHandler       *handlers.SyncHandler
	// Middleware applied to /api/v1 only, after the global middleware
	APIMiddleware []gin.HandlerFunc
}

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.Engine, cfg *RouteConfig) {
	// API v1 routes
	v1 := router.Group("/api/v1")
	v1.Use(cfg.APIMiddleware...)

	// Stateless calculators
	if cfg.AnalyticsHandler != nil {
		calc := v1.Group("/analytics")
		{
			calc.POST("/unit-economics", cfg.AnalyticsHandler.CalculateUnitEconomics)
			calc.POST("/import", cfg.AnalyticsHandler.ImportReport)
		}
	}

	sellers := v1.Group("/sellers/:seller_id")
	{
		// API key management
		if cfg.CredentialHandler != nil {
			sellers.PUT("/credentials", cfg.CredentialHandler.SetCredential)
			sellers.GET("/credentials", cfg.CredentialHandler.GetCredential)
			sellers.DELETE("/credentials", cfg.CredentialHandler.DeleteCredential)
		}

		// Report routes
		if cfg.AnalyticsHandler != nil {
			reports := sellers.Group("/analytics")
			reports.GET("/finance", cfg.AnalyticsHandler.GetFinance)
			reports.GET("/abc", cfg.AnalyticsHandler.GetABC)
			reports.GET("/abc/clusters", cfg.AnalyticsHandler.GetABCClusters)
			reports.GET("/abc/export", cfg.AnalyticsHandler.ExportABC)
			reports.GET("/weekly", cfg.AnalyticsHandler.GetWeekly)
			reports.GET("/weekly/export", cfg.AnalyticsHandler.ExportWeekly)
			reports.GET("/supply", cfg.AnalyticsHandler.GetSupply)
			reports.GET("/supply/export", cfg.AnalyticsHandler.ExportSupply)
			reports.GET("/ad-spend", cfg.AnalyticsHandler.GetAdSpend)
			reports.GET("/promotions", cfg.AnalyticsHandler.GetPromotions)
		}

		// Sync and snapshot history
		if cfg.SyncHandler != nil {
			sellers.POST("/sync", cfg.SyncHandler.SyncReports)
			sellers.GET("/snapshots", cfg.SyncHandler.ListSnapshots)
			sellers.DELETE("/snapshots", cfg.SyncHandler.PurgeSnapshots)
			sellers.GET("/snapshots/:report/latest", cfg.SyncHandler.GetLatestSnapshot)
		}
	}
}
