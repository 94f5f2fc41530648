package routes

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"health-docs-platform/internal/blob"
	"health-docs-platform/utils"

	"github.com/gin-gonic/gin"
)

// SetupFileRoutes wires the signed download endpoint. This is the only path
// that serves raw blob bytes; every request must carry a valid token minted
// for exactly the requested blob.
func SetupFileRoutes(router *gin.Engine, blobs blob.Store, signer *blob.Signer) {
	router.GET("/files/:name", HandleFileDownload(blobs, signer))
}

func HandleFileDownload(blobs blob.Store, signer *blob.Signer) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")

		token := c.Query("token")
		if token == "" {
			utils.RespondWithUnauthorized(c, "A download token is required")
			return
		}

		claims, err := signer.Verify(token)
		if err != nil {
			utils.RespondWithUnauthorized(c, "Invalid or expired download token")
			return
		}
		if claims.BlobName != name {
			utils.RespondWithForbidden(c, "Token does not grant access to this file")
			return
		}

		rc, info, err := blobs.Open(c.Request.Context(), name)
		if err != nil {
			if errors.Is(err, blob.ErrNotFound) {
				utils.RespondWithNotFound(c, "File not found")
				return
			}
			utils.RespondWithInternalError(c, "Failed to open file", nil)
			return
		}
		defer rc.Close()

		contentType := info.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		c.Header("Content-Type", contentType)
		c.Header("Content-Length", strconv.FormatInt(info.Size, 10))
		c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", name))
		c.Status(http.StatusOK)

		if _, err := io.Copy(c.Writer, rc); err != nil {
			// Headers are already sent; nothing useful left to report.
			return
		}
	}
}
