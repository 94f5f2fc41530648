package routes

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"health-docs-platform/internal/store"
	"health-docs-platform/middleware"
	"health-docs-platform/models"
	"health-docs-platform/utils"

	"github.com/gin-gonic/gin"
)

// SetupUserRoutes wires account management. Creation is open; reads and
// writes of an existing account require authentication.
func SetupUserRoutes(router *gin.Engine, users *store.Users, auth *middleware.AuthMiddleware) {
	open := router.Group("/api/v1")
	{
		open.POST("/users", HandleUserCreate(users))
	}

	api := router.Group("/api/v1")
	api.Use(auth.RequireAuth())
	{
		api.GET("/users/:id", HandleUserGet(users))
		api.GET("/users", HandleUserGetByEmail(users))
		api.PATCH("/users/:id", HandleUserUpdate(users))
		api.DELETE("/users/:id", HandleUserDelete(users))
	}
}

func HandleUserCreate(users *store.Users) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.UserCreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request body", gin.H{"error": err.Error()})
			return
		}

		now := models.Timestamp(time.Now())
		id := models.NewUserID()
		user := &models.User{
			ID:            id,
			UserID:        id,
			SchemaVersion: models.SchemaVersion,
			Email:         strings.ToLower(strings.TrimSpace(req.Email)),
			FirstName:     req.FirstName,
			LastName:      req.LastName,
			Settings:      req.Settings,
			CreatedAt:     now,
			UpdatedAt:     now,
			Type:          models.TypeUser,
		}
		if user.Settings == nil {
			user.Settings = map[string]any{}
		}

		if err := users.Create(c.Request.Context(), user); err != nil {
			if strings.Contains(err.Error(), "already registered") {
				utils.RespondWithError(c, http.StatusConflict, "email_taken", "Email is already registered", nil)
				return
			}
			utils.RespondWithInternalError(c, "Failed to create user", nil)
			return
		}

		c.JSON(http.StatusCreated, user)
	}
}

func HandleUserGet(users *store.Users) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if !callerOwns(c, id) {
			utils.RespondWithNotFound(c, "User not found")
			return
		}

		user, err := users.Get(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				utils.RespondWithNotFound(c, "User not found")
				return
			}
			utils.RespondWithInternalError(c, "Failed to load user", nil)
			return
		}

		c.JSON(http.StatusOK, user)
	}
}

func HandleUserGetByEmail(users *store.Users) gin.HandlerFunc {
	return func(c *gin.Context) {
		email := strings.ToLower(strings.TrimSpace(c.Query("email")))
		if email == "" {
			utils.RespondWithBadRequest(c, "email query parameter is required", nil)
			return
		}

		user, err := users.GetByEmail(c.Request.Context(), email)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				utils.RespondWithNotFound(c, "User not found")
				return
			}
			utils.RespondWithInternalError(c, "Failed to load user", nil)
			return
		}
		if !callerOwns(c, user.ID) {
			utils.RespondWithNotFound(c, "User not found")
			return
		}

		c.JSON(http.StatusOK, user)
	}
}

func HandleUserUpdate(users *store.Users) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if !callerOwns(c, id) {
			utils.RespondWithNotFound(c, "User not found")
			return
		}

		var req models.UserUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request body", gin.H{"error": err.Error()})
			return
		}

		user, err := users.Update(c.Request.Context(), id, req)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				utils.RespondWithNotFound(c, "User not found")
				return
			}
			utils.RespondWithInternalError(c, "Failed to update user", nil)
			return
		}

		c.JSON(http.StatusOK, user)
	}
}

func HandleUserDelete(users *store.Users) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if !callerOwns(c, id) {
			utils.RespondWithNotFound(c, "User not found")
			return
		}

		if err := users.Delete(c.Request.Context(), id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				utils.RespondWithNotFound(c, "User not found")
				return
			}
			utils.RespondWithInternalError(c, "Failed to delete user", nil)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "User deleted"})
	}
}

// callerOwns reports whether the authenticated caller is the named user or an
// admin.
func callerOwns(c *gin.Context, userID string) bool {
	return middleware.GetUserID(c) == userID || middleware.GetRole(c) == "admin"
}
