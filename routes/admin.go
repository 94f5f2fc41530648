package routes

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"health-docs-platform/internal/blob"
	"health-docs-platform/internal/store"
	"health-docs-platform/middleware"
	"health-docs-platform/services"
	"health-docs-platform/utils"

	"github.com/gin-gonic/gin"
)

// SetupAdminRoutes wires the operator surface: blob inventory, the
// consistency audit, per-user bulk purge, and the analytics export.
func SetupAdminRoutes(
	router *gin.Engine,
	blobs blob.Store,
	audit *services.AuditService,
	deletion *services.DeletionService,
	export *services.ExportService,
	docs *store.Documents,
	activities *store.Activities,
	auth *middleware.AuthMiddleware,
) {
	admin := router.Group("/api/v1/admin")
	admin.Use(auth.RequireAuth(), auth.RequireAdmin())
	{
		admin.GET("/blobs", HandleBlobList(blobs))
		admin.POST("/audit", HandleAuditSweep(audit))
		admin.DELETE("/users/:id/data", HandleUserDataPurge(deletion, docs, activities))
		admin.GET("/search-activities/export", HandleActivityExport(export))
	}
}

func HandleBlobList(blobs blob.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		infos, err := blobs.List(c.Request.Context())
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to list blobs", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"blobs": infos, "count": len(infos)})
	}
}

// HandleAuditSweep runs one consistency sweep on demand and returns the
// report. The scheduled sweep runs the same code on its interval.
func HandleAuditSweep(audit *services.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := utils.WithLongTimeout(c.Request.Context())
		defer cancel()

		report, err := audit.Sweep(ctx)
		if err != nil {
			utils.RespondWithInternalError(c, "Audit sweep failed", gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

// HandleUserDataPurge removes every document, blob, index entry, and
// activity record for one user. Partial outcomes return 207 with the error
// list.
func HandleUserDataPurge(deletion *services.DeletionService, docs *store.Documents, activities *store.Activities) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := utils.WithLongTimeout(c.Request.Context())
		defer cancel()

		result, err := deletion.PurgeUser(ctx, c.Param("id"), docs, activities, docs)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to purge user data", gin.H{"error": err.Error()})
			return
		}

		status := http.StatusOK
		if len(result.Errors) > 0 {
			status = http.StatusMultiStatus
		}
		c.JSON(status, result)
	}
}

// HandleActivityExport streams an xlsx workbook of search activity records.
func HandleActivityExport(export *services.ExportService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Query("userId")
		limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "0"), 10, 64)

		f, err := export.ActivitiesWorkbook(c.Request.Context(), userID, limit)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to build export", nil)
			return
		}
		defer f.Close()

		filename := fmt.Sprintf("search-activities-%s.xlsx", time.Now().UTC().Format("2006-01-02"))
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		c.Status(http.StatusOK)

		if err := f.Write(c.Writer); err != nil {
			// Headers are already sent; the download arrives truncated.
			return
		}
	}
}
