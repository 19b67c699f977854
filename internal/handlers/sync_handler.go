package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/niaga-platform/service-seller-analytics/internal/models"
	"github.com/niaga-platform/service-seller-analytics/internal/repository"
	"github.com/niaga-platform/service-seller-analytics/internal/services"
)

// SyncHandler triggers report syncs and serves stored snapshots
type SyncHandler struct {
	reports   *services.ReportService
	syncer    *services.ReportSyncHandler
	snapshots *services.SnapshotService
	logger    *zap.Logger
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(
	reports *services.ReportService,
	syncer *services.ReportSyncHandler,
	snapshots *services.SnapshotService,
	logger *zap.Logger,
) *SyncHandler {
	return &SyncHandler{
		reports:   reports,
		syncer:    syncer,
		snapshots: snapshots,
		logger:    nopIfNil(logger),
	}
}

// SyncReports recomputes every report of the seller and stores snapshots.
// The sync is queued when NATS is connected and runs inline otherwise.
// @Summary Sync seller reports
// @Tags Sync
// @Param seller_id path string true "Seller ID"
// @Param date_from query string false "First day (YYYY-MM-DD)"
// @Param date_to query string false "Last day, inclusive (YYYY-MM-DD)"
// @Success 200 {object} services.SyncResult
// @Success 202 {object} map[string]interface{}
// @Router /sellers/{seller_id}/sync [post]
func (h *SyncHandler) SyncReports(c *gin.Context) {
	sellerID, ok := parseSellerID(c)
	if !ok {
		return
	}
	w, ok := parseWindow(c, h.reports)
	if !ok {
		return
	}

	queued, result, err := h.syncer.RequestSync(c.Request.Context(), sellerID, w, "manual")
	if err != nil {
		respondError(c, h.logger, "failed to sync reports", err)
		return
	}

	if queued {
		c.JSON(http.StatusAccepted, gin.H{
			"message":   "Sync queued",
			"seller_id": sellerID.String(),
			"date_from": w.Start,
			"date_to":   w.End,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Sync completed",
		"result":  result,
	})
}

// ListSnapshots returns stored report snapshots, newest first
// @Summary List report snapshots
// @Tags Sync
// @Param seller_id path string true "Seller ID"
// @Param report query string false "Report name"
// @Param limit query int false "Maximum number of snapshots"
// @Success 200 {array} models.ReportSnapshot
// @Router /sellers/{seller_id}/snapshots [get]
func (h *SyncHandler) ListSnapshots(c *gin.Context) {
	sellerID, ok := parseSellerID(c)
	if !ok {
		return
	}

	report := c.Query("report")
	if report != "" && !models.IsReportName(report) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown report name"})
		return
	}

	limit := 0
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = n
	}

	snapshots, err := h.snapshots.List(c.Request.Context(), sellerID, report, limit)
	if err != nil {
		respondError(c, h.logger, "failed to list snapshots", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"snapshots": snapshots,
		"total":     len(snapshots),
	})
}

// GetLatestSnapshot returns the newest snapshot of one report
// @Summary Get latest report snapshot
// @Tags Sync
// @Param seller_id path string true "Seller ID"
// @Param report path string true "Report name"
// @Success 200 {object} models.ReportSnapshot
// @Router /sellers/{seller_id}/snapshots/{report}/latest [get]
func (h *SyncHandler) GetLatestSnapshot(c *gin.Context) {
	sellerID, ok := parseSellerID(c)
	if !ok {
		return
	}

	report := c.Param("report")
	if !models.IsReportName(report) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown report name"})
		return
	}

	snapshot, err := h.snapshots.Latest(c.Request.Context(), sellerID, report)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "No snapshot stored for this report"})
		return
	}
	if err != nil {
		respondError(c, h.logger, "failed to get snapshot", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"snapshot": snapshot})
}

// PurgeSnapshots deletes every stored snapshot of the seller
// @Summary Delete report snapshots
// @Tags Sync
// @Param seller_id path string true "Seller ID"
// @Router /sellers/{seller_id}/snapshots [delete]
func (h *SyncHandler) PurgeSnapshots(c *gin.Context) {
	sellerID, ok := parseSellerID(c)
	if !ok {
		return
	}

	deleted, err := h.snapshots.Purge(c.Request.Context(), sellerID)
	if err != nil {
		respondError(c, h.logger, "failed to purge snapshots", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}
