package routes

import (
	"errors"
	"net/http"

	"health-docs-platform/middleware"
	"health-docs-platform/models"
	"health-docs-platform/services"
	"health-docs-platform/utils"

	"github.com/gin-gonic/gin"
)

// SetupSearchRoutes wires the natural-language search endpoint.
func SetupSearchRoutes(router *gin.Engine, query *services.QueryService, auth *middleware.AuthMiddleware) {
	api := router.Group("/api/v1")
	api.Use(auth.RequireAuth())
	{
		api.POST("/search", HandleSearch(query))
	}
}

// HandleSearch runs one question through the query pipeline and returns the
// grounded answer with its document reference.
func HandleSearch(query *services.QueryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.SearchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Query is required", gin.H{"error": err.Error()})
			return
		}

		result, err := query.Search(c.Request.Context(), services.SearchInput{
			Query:      req.Query,
			UserID:     middleware.GetUserID(c),
			DeviceType: req.DeviceType,
			AppVersion: req.AppVersion,
		})
		if err != nil {
			switch {
			case errors.Is(err, services.ErrEmptyQuery):
				utils.RespondWithBadRequest(c, "Query cannot be empty", nil)
			case errors.Is(err, services.ErrAnswerSynthesis):
				utils.RespondWithInternalError(c, "Failed to generate an answer", nil)
			default:
				utils.RespondWithInternalError(c, "Search failed", gin.H{"error": err.Error()})
			}
			return
		}

		resp := gin.H{
			"message":          result.Message,
			"sas_url":          result.SASURL,
			"query":            result.Query,
			"refined_query":    result.RefinedQuery,
			"searchId":         result.SearchID,
			"searchDurationMs": result.SearchDurationMs,
			"documentId":       result.DocumentID,
		}
		if result.SearchActivityID != "" {
			resp["searchActivityId"] = result.SearchActivityID
		} else {
			resp["searchActivityId"] = nil
		}

		c.JSON(http.StatusOK, resp)
	}
}
