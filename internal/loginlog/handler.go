package loginlog

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/evently-app/evently-backend/internal/apperr"
	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

type Handler struct {
	service Service
	dev     bool
}

func NewHandler(service Service, dev bool) *Handler {
	return &Handler{service: service, dev: dev}
}

// GetRecent handles GET /loginlogs - newest ledger entries, token redacted
// @Summary Recent login log entries
// @Description Retrieve the newest login ledger entries. Tokens are redacted.
// @Tags LoginLog
// @Produce json
// @Param limit query int false "Number of records (default: 100)"
// @Success 200 {array} LoginLogResponse
// @Failure 500 {object} gin.H
// @Router /api/v1/loginlogs [get]
func (h *Handler) GetRecent(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	entries, err := h.service.Recent(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err, "Failed to retrieve login logs")
		return
	}

	c.JSON(http.StatusOK, entries)
}

// GetForUser handles GET /loginlogs/user/:email
// @Summary Login log entries for one user
// @Description Retrieve one user's ledger entries, newest first. Tokens are redacted.
// @Tags LoginLog
// @Produce json
// @Param email path string true "User email"
// @Param limit query int false "Number of records (default: 50)"
// @Success 200 {array} LoginLogResponse
// @Failure 500 {object} gin.H
// @Router /api/v1/loginlogs/user/{email} [get]
func (h *Handler) GetForUser(c *gin.Context) {
	email := c.Param("email")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	entries, err := h.service.ForUser(c.Request.Context(), email, limit)
	if err != nil {
		h.fail(c, err, "Failed to retrieve login logs")
		return
	}

	c.JSON(http.StatusOK, entries)
}

// GetStats handles GET /loginlogs/stats
// @Summary Login ledger statistics
// @Description Aggregated ledger counts: totals, unique users, per-type and per-provider breakdowns, daily histogram.
// @Tags LoginLog
// @Produce json
// @Param days query int false "Histogram window in days (default: 7)"
// @Success 200 {object} StatsResponse
// @Failure 500 {object} gin.H
// @Router /api/v1/loginlogs/stats [get]
func (h *Handler) GetStats(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "7"))

	stats, err := h.service.Stats(c.Request.Context(), days)
	if err != nil {
		h.fail(c, err, "Failed to compute login log stats")
		return
	}

	c.JSON(http.StatusOK, stats)
}

// PurgeExpired handles POST /loginlogs/purge
// @Summary Purge expired ledger entries
// @Description Remove all entries whose expiry has passed. Idempotent.
// @Tags LoginLog
// @Produce json
// @Success 200 {object} gin.H
// @Failure 500 {object} gin.H
// @Router /api/v1/loginlogs/purge [post]
func (h *Handler) PurgeExpired(c *gin.Context) {
	removed, err := h.service.PurgeExpired(c.Request.Context())
	if err != nil {
		h.fail(c, err, "Failed to purge expired entries")
		return
	}

	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// ExportXLSX handles GET /loginlogs/export - full ledger as a spreadsheet
// @Summary Export the login ledger
// @Description Download the full ledger as an .xlsx file. Tokens are redacted.
// @Tags LoginLog
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success 200 {file} binary
// @Failure 500 {object} gin.H
// @Router /api/v1/loginlogs/export [get]
func (h *Handler) ExportXLSX(c *gin.Context) {
	entries, err := h.service.Export(c.Request.Context())
	if err != nil {
		h.fail(c, err, "Failed to export login logs")
		return
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			log.Printf("⚠️ Failed to close export workbook: %v", err)
		}
	}()

	sheet := "Login Logs"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"Timestamp", "User", "Expiry", "Token Preview", "Provider", "Login Type", "User Agent", "IP Address"}
	for i, title := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, title)
	}

	for row, entry := range entries {
		values := []interface{}{
			entry.Timestamp.Format(time.RFC3339),
			entry.User,
			entry.Expiry.Format(time.RFC3339),
			entry.TokenPreview,
			entry.Provider,
			entry.LoginType,
			entry.UserAgent,
			entry.IPAddress,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, v)
		}
	}

	filename := fmt.Sprintf("login-logs-%s.xlsx", time.Now().Format("2006-01-02"))
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")

	if err := f.Write(c.Writer); err != nil {
		log.Printf("⚠️ Failed to stream export workbook: %v", err)
	}
}

func (h *Handler) fail(c *gin.Context, err error, msg string) {
	if ve, ok := apperr.AsValidation(err); ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": ve.Fields})
		return
	}
	if h.dev {
		c.JSON(http.StatusInternalServerError, gin.H{"error": msg, "details": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}
