package handlers

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/niaga-platform/service-seller-analytics/internal/analytics"
	"github.com/niaga-platform/service-seller-analytics/internal/services"
	"github.com/niaga-platform/service-seller-analytics/internal/spreadsheet"
)

// AnalyticsHandler serves the computed seller reports
type AnalyticsHandler struct {
	reports        *services.ReportService
	maxUploadBytes int64
	logger         *zap.Logger
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(reports *services.ReportService, maxUploadBytes int64, logger *zap.Logger) *AnalyticsHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 20 << 20
	}
	return &AnalyticsHandler{
		reports:        reports,
		maxUploadBytes: maxUploadBytes,
		logger:         nopIfNil(logger),
	}
}

type reportLoader[T any] func(ctx context.Context, sellerID uuid.UUID, w analytics.Window) (*services.Result[T], error)

// load resolves the seller and window of the request and runs the loader.
// On failure the error response is already written and ok is false.
func load[T any](h *AnalyticsHandler, c *gin.Context, name string, fn reportLoader[T]) (uuid.UUID, *services.Result[T], bool) {
	sellerID, ok := parseSellerID(c)
	if !ok {
		return uuid.Nil, nil, false
	}
	w, ok := parseWindow(c, h.reports)
	if !ok {
		return uuid.Nil, nil, false
	}

	res, err := fn(c.Request.Context(), sellerID, w)
	if err != nil {
		respondError(c, h.logger, "failed to compute "+name+" report", err)
		return uuid.Nil, nil, false
	}
	return sellerID, res, true
}

func serveReport[T any](h *AnalyticsHandler, c *gin.Context, name string, fn reportLoader[T]) {
	sellerID, res, ok := load(h, c, name, fn)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"seller_id": sellerID.String(),
		"meta":      res.Meta,
		"data":      res.Data,
	})
}

// GetFinance returns the finance summary and per-product breakdown
// @Summary Get finance summary
// @Tags Analytics
// @Param seller_id path string true "Seller ID"
// @Param date_from query string false "First day (YYYY-MM-DD)"
// @Param date_to query string false "Last day, inclusive (YYYY-MM-DD)"
// @Success 200 {object} analytics.FinanceReport
// @Router /sellers/{seller_id}/analytics/finance [get]
func (h *AnalyticsHandler) GetFinance(c *gin.Context) {
	serveReport(h, c, "finance", h.reports.Finance)
}

// GetABC returns the ABC classification of the seller's products
// @Summary Get ABC analysis
// @Tags Analytics
// @Param seller_id path string true "Seller ID"
// @Success 200 {object} analytics.AbcResult
// @Router /sellers/{seller_id}/analytics/abc [get]
func (h *AnalyticsHandler) GetABC(c *gin.Context) {
	serveReport(h, c, "abc", h.reports.ABC)
}

// GetABCClusters returns one ABC classification per product subject
// @Summary Get cluster ABC analysis
// @Tags Analytics
// @Param seller_id path string true "Seller ID"
// @Success 200 {array} analytics.AbcResult
// @Router /sellers/{seller_id}/analytics/abc/clusters [get]
func (h *AnalyticsHandler) GetABCClusters(c *gin.Context) {
	serveReport(h, c, "abc clusters", h.reports.ABCClusters)
}

// GetWeekly returns the weekly P&L rollup
// @Summary Get weekly report
// @Tags Analytics
// @Param seller_id path string true "Seller ID"
// @Success 200 {object} analytics.WeeklyReport
// @Router /sellers/{seller_id}/analytics/weekly [get]
func (h *AnalyticsHandler) GetWeekly(c *gin.Context) {
	serveReport(h, c, "weekly", h.reports.Weekly)
}

// GetSupply returns the replenishment plan
// @Summary Get supply plan
// @Tags Analytics
// @Param seller_id path string true "Seller ID"
// @Success 200 {object} analytics.SupplyPlan
// @Router /sellers/{seller_id}/analytics/supply [get]
func (h *AnalyticsHandler) GetSupply(c *gin.Context) {
	serveReport(h, c, "supply", h.reports.Supply)
}

// GetAdSpend returns advertising spend per campaign and week
// @Summary Get ad spend
// @Tags Analytics
// @Param seller_id path string true "Seller ID"
// @Success 200 {object} analytics.AdSpendTable
// @Router /sellers/{seller_id}/analytics/ad-spend [get]
func (h *AnalyticsHandler) GetAdSpend(c *gin.Context) {
	serveReport(h, c, "ad spend", h.reports.AdSpend)
}

// GetPromotions returns the promotion candidates
// @Summary Get promotions table
// @Tags Analytics
// @Param seller_id path string true "Seller ID"
// @Success 200 {object} analytics.PromotionTable
// @Router /sellers/{seller_id}/analytics/promotions [get]
func (h *AnalyticsHandler) GetPromotions(c *gin.Context) {
	serveReport(h, c, "promotions", h.reports.Promotions)
}

// ExportABC downloads the ABC classification as XLSX
// @Summary Export ABC analysis
// @Tags Analytics
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param seller_id path string true "Seller ID"
// @Router /sellers/{seller_id}/analytics/abc/export [get]
func (h *AnalyticsHandler) ExportABC(c *gin.Context) {
	_, res, ok := load(h, c, "abc", h.reports.ABC)
	if !ok {
		return
	}
	h.sendWorkbook(c, "abc", res.Meta, spreadsheet.ABCTable(res.Data), spreadsheet.ABCBandsTable(res.Data))
}

// ExportWeekly downloads the weekly report as XLSX
// @Summary Export weekly report
// @Tags Analytics
// @Param seller_id path string true "Seller ID"
// @Router /sellers/{seller_id}/analytics/weekly/export [get]
func (h *AnalyticsHandler) ExportWeekly(c *gin.Context) {
	_, res, ok := load(h, c, "weekly", h.reports.Weekly)
	if !ok {
		return
	}
	h.sendWorkbook(c, "weekly", res.Meta, spreadsheet.WeeklyTable(res.Data))
}

// ExportSupply downloads the supply plan as XLSX
// @Summary Export supply plan
// @Tags Analytics
// @Param seller_id path string true "Seller ID"
// @Router /sellers/{seller_id}/analytics/supply/export [get]
func (h *AnalyticsHandler) ExportSupply(c *gin.Context) {
	_, res, ok := load(h, c, "supply", h.reports.Supply)
	if !ok {
		return
	}
	h.sendWorkbook(c, "supply", res.Meta, spreadsheet.SupplyTable(res.Data))
}

func (h *AnalyticsHandler) sendWorkbook(c *gin.Context, name string, meta services.ReportMeta, tables ...spreadsheet.Table) {
	var buf bytes.Buffer
	if err := spreadsheet.Write(&buf, tables...); err != nil {
		h.logger.Error("failed to render workbook", zap.String("report", name), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render workbook"})
		return
	}

	// The window end is exclusive; the file name shows the last day.
	filename := fmt.Sprintf("%s_%s_%s.xlsx", name,
		meta.DateFrom.Format(dateLayout), meta.DateTo.AddDate(0, 0, -1).Format(dateLayout))
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, spreadsheet.ContentType, buf.Bytes())
}

// ImportReport analyzes an uploaded report without storing it. The body is
// either a multipart XLSX upload in the "file" field or a JSON array of
// report records.
// @Summary Analyze an uploaded report
// @Tags Analytics
// @Accept multipart/form-data
// @Param kind query string false "Report kind (finance, sale, order)"
// @Param file formData file false "XLSX report"
// @Success 200 {object} services.ImportAnalysis
// @Router /analytics/import [post]
func (h *AnalyticsHandler) ImportReport(c *gin.Context) {
	kind := analytics.ReportKind(c.DefaultQuery("kind", string(analytics.KindFinance)))
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)

	var raw analytics.RawReport
	if c.ContentType() == gin.MIMEJSON {
		if err := c.ShouldBindJSON(&raw); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
	} else {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing report file"})
			return
		}
		if !strings.EqualFold(filepath.Ext(fileHeader.Filename), ".xlsx") {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid file type: only .xlsx files are allowed"})
			return
		}

		file, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read report file"})
			return
		}
		defer file.Close()

		raw, err = spreadsheet.ReadReport(file)
		if err != nil {
			h.logger.Debug("rejected report upload", zap.String("filename", fileHeader.Filename), zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid report file: " + err.Error()})
			return
		}
	}

	result, err := h.reports.AnalyzeImported(raw, kind)
	if err != nil {
		respondError(c, h.logger, "failed to analyze imported report", err)
		return
	}

	h.logger.Info("imported report analyzed",
		zap.String("kind", string(kind)),
		zap.Int("records", result.Records),
		zap.Int("malformed", result.Malformed),
	)
	c.JSON(http.StatusOK, result)
}

// UnitEconomicsRequest is the body of the unit economics calculator. When SKU
// is set, zero cost, price and dimension fields are filled from the catalog.
type UnitEconomicsRequest struct {
	analytics.UnitEconomicsInputs
	SKU string `json:"sku" binding:"omitempty,max=128"`
}

// CalculateUnitEconomics computes per-unit profitability for one product
// @Summary Calculate unit economics
// @Tags Analytics
// @Accept json
// @Param request body UnitEconomicsRequest true "Calculator inputs"
// @Success 200 {object} analytics.UnitEconomicsRecord
// @Router /analytics/unit-economics [post]
func (h *AnalyticsHandler) CalculateUnitEconomics(c *gin.Context) {
	var req UnitEconomicsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	record, err := h.reports.UnitEconomics(c.Request.Context(), req.UnitEconomicsInputs, strings.TrimSpace(req.SKU))
	if err != nil {
		respondError(c, h.logger, "failed to calculate unit economics", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"unit_economics": record})
}
