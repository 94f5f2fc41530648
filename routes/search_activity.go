package routes

import (
	"errors"
	"net/http"

	"health-docs-platform/internal/store"
	"health-docs-platform/middleware"
	"health-docs-platform/models"
	"health-docs-platform/services"
	"health-docs-platform/utils"

	"github.com/gin-gonic/gin"
)

// SetupSearchActivityRoutes wires the explicit search activity API used by
// clients to submit and update interaction records.
func SetupSearchActivityRoutes(router *gin.Engine, activity *services.ActivityService, auth *middleware.AuthMiddleware) {
	api := router.Group("/api/v1")
	api.Use(auth.RequireAuth())
	{
		api.POST("/search-activities", HandleActivityCreate(activity))
		api.GET("/search-activities/:id", HandleActivityGet(activity))
		api.PATCH("/search-activities/:id", HandleActivityPatch(activity))
	}
}

func HandleActivityCreate(activity *services.ActivityService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var record models.SearchActivity
		if err := c.ShouldBindJSON(&record); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request body", gin.H{"error": err.Error()})
			return
		}

		// The authenticated identity wins over whatever the body claims.
		record.UserID = middleware.GetUserID(c)

		if err := activity.Record(c.Request.Context(), &record); err != nil {
			if errors.Is(err, services.ErrInvalidActivity) {
				utils.RespondWithBadRequest(c, "Invalid search activity", gin.H{"error": err.Error()})
				return
			}
			utils.RespondWithInternalError(c, "Failed to record search activity", nil)
			return
		}

		c.JSON(http.StatusCreated, record)
	}
}

func HandleActivityGet(activity *services.ActivityService) gin.HandlerFunc {
	return func(c *gin.Context) {
		record, err := activity.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				utils.RespondWithNotFound(c, "Search activity not found")
				return
			}
			utils.RespondWithInternalError(c, "Failed to load search activity", nil)
			return
		}
		if record.UserID != middleware.GetUserID(c) {
			utils.RespondWithNotFound(c, "Search activity not found")
			return
		}

		c.JSON(http.StatusOK, record)
	}
}

// HandleActivityPatch applies client-reported interaction fields. Retrying
// the same patch is harmless.
func HandleActivityPatch(activity *services.ActivityService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var update models.SearchActivityUpdate
		if err := c.ShouldBindJSON(&update); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request body", gin.H{"error": err.Error()})
			return
		}

		id := c.Param("id")
		existing, err := activity.Get(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				utils.RespondWithNotFound(c, "Search activity not found")
				return
			}
			utils.RespondWithInternalError(c, "Failed to load search activity", nil)
			return
		}
		if existing.UserID != middleware.GetUserID(c) {
			utils.RespondWithNotFound(c, "Search activity not found")
			return
		}

		record, err := activity.PatchInteraction(c.Request.Context(), id, update)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				utils.RespondWithNotFound(c, "Search activity not found")
				return
			}
			utils.RespondWithInternalError(c, "Failed to update search activity", nil)
			return
		}

		c.JSON(http.StatusOK, record)
	}
}
