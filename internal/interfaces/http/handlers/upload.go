// internal/interfaces/http/handlers/upload.go
package handlers

import (
	"io"
	"mime/multipart"
	"net/http"

	"github.com/drinksharbour/drinksharbour-api/internal/domain/upload"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/apperrors"
	"github.com/gin-gonic/gin"
)

// UploadHandler handles file upload endpoints
type UploadHandler struct {
	uploadService *upload.Service
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(uploadService *upload.Service) *UploadHandler {
	return &UploadHandler{uploadService: uploadService}
}

// UploadImage handles POST /upload/image
func (h *UploadHandler) UploadImage(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	header, err := c.FormFile("image")
	if err != nil {
		respondError(c, apperrors.New(apperrors.CodeValidation, "no image file provided"))
		return
	}

	uploaded, err := h.uploadService.UploadImage(c.Request.Context(), &upload.ImageUploadRequest{
		File:       fileFromHeader(header),
		Folder:     c.PostForm("folder"),
		UploadedBy: userID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Image uploaded successfully",
		"data":    uploaded,
	})
}

// UploadMultipleImages handles POST /upload/images.
// Files that fail validation are reported without failing the batch.
func (h *UploadHandler) UploadMultipleImages(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		respondError(c, apperrors.Wrap(apperrors.CodeValidation, err, "failed to parse upload form"))
		return
	}

	headers := form.File["images"]
	files := make([]upload.File, 0, len(headers))
	for _, header := range headers {
		files = append(files, fileFromHeader(header))
	}

	folder := ""
	if values := form.Value["folder"]; len(values) > 0 {
		folder = values[0]
	}

	result, err := h.uploadService.BulkUploadImages(c.Request.Context(), &upload.BulkUploadRequest{
		Files:      files,
		Folder:     folder,
		UploadedBy: userID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusCreated
	if result.Summary.SuccessCount == 0 {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, gin.H{
		"message": "Bulk upload completed",
		"data":    result,
	})
}

// DeleteImage handles DELETE /upload/image/:public_id.
// Folder separators in the public id are sent as ':'.
func (h *UploadHandler) DeleteImage(c *gin.Context) {
	if err := h.uploadService.DeleteImage(c.Request.Context(), c.Param("public_id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Image deleted successfully",
	})
}

func fileFromHeader(header *multipart.FileHeader) upload.File {
	return upload.File{
		Filename: header.Filename,
		Size:     header.Size,
		Open: func() (io.ReadCloser, error) {
			return header.Open()
		},
	}
}
