package routes

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"health-docs-platform/internal/config"
	"health-docs-platform/internal/store"
	"health-docs-platform/middleware"
	"health-docs-platform/models"
	"health-docs-platform/services"
	"health-docs-platform/utils"

	"github.com/gin-gonic/gin"
)

// SetupDocumentRoutes wires the document upload, listing, patch, and
// deletion endpoints.
func SetupDocumentRoutes(
	router *gin.Engine,
	cfg *config.Config,
	ingestion *services.IngestionService,
	deletion *services.DeletionService,
	docs *store.Documents,
	auth *middleware.AuthMiddleware,
) {
	api := router.Group("/api/v1")
	api.Use(auth.RequireAuth())
	{
		api.POST("/documents", HandleDocumentUpload(cfg, ingestion))
		api.GET("/documents", HandleDocumentList(docs))
		api.GET("/documents/:id", HandleDocumentGet(docs))
		api.PATCH("/documents/:id", HandleDocumentPatch(docs))
		api.DELETE("/documents/:id", HandleDocumentDelete(deletion))
	}
}

// HandleDocumentUpload accepts one multipart file and runs it through the
// ingestion pipeline. A search-indexing failure is reported as 201 with
// indexingFailed set: the blob is stored and the client may retry later.
func HandleDocumentUpload(cfg *config.Config, ingestion *services.IngestionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		file, err := c.FormFile("file")
		if err != nil {
			utils.RespondWithBadRequest(c, "No file uploaded", nil)
			return
		}
		if file.Size > cfg.MaxFileSize {
			utils.RespondWithBadRequest(c, "File exceeds the maximum allowed size",
				gin.H{"max_file_size": cfg.MaxFileSize})
			return
		}

		src, err := file.Open()
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to read uploaded file", nil)
			return
		}
		defer src.Close()

		data, err := io.ReadAll(src)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to read uploaded file", nil)
			return
		}

		result, err := ingestion.Ingest(c.Request.Context(), services.IngestInput{
			FileName:    file.Filename,
			ContentType: file.Header.Get("Content-Type"),
			UserID:      userID,
			Data:        data,
		})
		if err != nil {
			switch {
			case errors.Is(err, services.ErrInvalidFileType):
				utils.RespondWithBadRequest(c, "File type not allowed", gin.H{"file_name": file.Filename})
			case errors.Is(err, services.ErrOCRExtractionFailed):
				utils.RespondWithBadRequest(c, "No text could be extracted from the document", nil)
			case errors.Is(err, services.ErrNoTextContent):
				utils.RespondWithBadRequest(c, "All pages in the document were empty", nil)
			default:
				utils.RespondWithInternalError(c, "Failed to process upload", gin.H{"error": err.Error()})
			}
			return
		}

		resp := gin.H{
			"message":             "Document uploaded successfully",
			"documentId":          result.DocumentID,
			"reportId":            result.ReportID,
			"blobName":            result.BlobName,
			"blobUri":             result.BlobURI,
			"blobContainer":       result.BlobContainer,
			"pagesUploaded":       result.PagesIndexed,
			"extractedTextLength": result.ExtractedTextLength,
			"ocrMethod":           result.OCRMethod,
		}
		if result.IndexingFailed {
			resp["message"] = "Document stored but search indexing failed"
			resp["indexingFailed"] = true
			resp["indexingError"] = result.IndexingError
		}
		if !result.MetadataPersisted {
			resp["metadataPersisted"] = false
		}

		c.JSON(http.StatusCreated, resp)
	}
}

func HandleDocumentList(docs *store.Documents) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		status := c.Query("status")
		limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "0"), 10, 64)

		list, err := docs.ListByUser(c.Request.Context(), userID, status, limit)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to list documents", nil)
			return
		}
		if list == nil {
			list = []models.Document{}
		}

		c.JSON(http.StatusOK, gin.H{"documents": list, "count": len(list)})
	}
}

func HandleDocumentGet(docs *store.Documents) gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, err := docs.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				utils.RespondWithNotFound(c, "Document not found")
				return
			}
			utils.RespondWithInternalError(c, "Failed to load document", nil)
			return
		}
		if doc.UserID != middleware.GetUserID(c) {
			utils.RespondWithNotFound(c, "Document not found")
			return
		}

		c.JSON(http.StatusOK, doc)
	}
}

func HandleDocumentPatch(docs *store.Documents) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.DocumentPatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request body", gin.H{"error": err.Error()})
			return
		}
		if req.DisplayName == nil && req.Status == nil {
			utils.RespondWithBadRequest(c, "Nothing to update", nil)
			return
		}

		id := c.Param("id")
		existing, err := docs.Get(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				utils.RespondWithNotFound(c, "Document not found")
				return
			}
			utils.RespondWithInternalError(c, "Failed to load document", nil)
			return
		}
		if existing.UserID != middleware.GetUserID(c) {
			utils.RespondWithNotFound(c, "Document not found")
			return
		}

		doc, err := docs.Patch(c.Request.Context(), id, req.DisplayName, req.Status)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				utils.RespondWithNotFound(c, "Document not found")
				return
			}
			utils.RespondWithInternalError(c, "Failed to update document", nil)
			return
		}

		c.JSON(http.StatusOK, doc)
	}
}

// HandleDocumentDelete fans deletion out to the record store, blob storage,
// and search index. Full success is 200; a partial outcome is 207 with the
// per-store breakdown so the client can see what remains; all three stores
// failing is 500.
func HandleDocumentDelete(deletion *services.DeletionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := deletion.Delete(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
		if err != nil {
			if errors.Is(err, services.ErrDocumentNotFound) {
				utils.RespondWithNotFound(c, "Document not found")
				return
			}
			utils.RespondWithInternalError(c, "Failed to delete document", gin.H{"error": err.Error()})
			return
		}

		if result.Success {
			c.JSON(http.StatusOK, gin.H{
				"message": "Document deleted successfully",
				"result":  result,
			})
			return
		}

		if !result.CosmosDeleted && !result.BlobDeleted && result.SearchDeletedCount == 0 {
			// Nothing was removed from any store.
			c.JSON(http.StatusInternalServerError, gin.H{
				"message": "Document deletion failed",
				"result":  result,
			})
			return
		}

		c.JSON(http.StatusMultiStatus, gin.H{
			"message": "Document deletion completed partially",
			"result":  result,
		})
	}
}
