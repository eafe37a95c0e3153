package handler

import (
	"net/http"
	"path"
	"strconv"
	"strings"

	"taskhub/internal/domain"
	"taskhub/internal/middleware"
	"taskhub/internal/models"
	"taskhub/pkg/cloudinary"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const maxUploadSize = 20 << 20

type UploadHandler struct {
	cloud  cloudinary.Client
	folder string
}

func NewUploadHandler(cloud cloudinary.Client, folder string) *UploadHandler {
	return &UploadHandler{cloud: cloud, folder: folder}
}

// UploadChatMedia stores a chat attachment and returns the file metadata and
// message kind the client should send with the message.
func (h *UploadHandler) UploadChatMedia(c *gin.Context) {
	if h.cloud == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "uploads are not configured"})
		return
	}
	userID := middleware.GetUserID(c)
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file required"})
		return
	}
	if file.Size > maxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}
	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read file"})
		return
	}
	defer f.Close()

	mimeType := file.Header.Get("Content-Type")
	kind := kindFor(mimeType)
	folder := path.Join(h.folder, strconv.FormatUint(uint64(userID), 10))
	publicID := kind + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]

	upload := h.cloud.UploadDocument
	if kind == domain.MessageKindImage {
		upload = h.cloud.UploadImage
	}
	res, err := upload(c.Request.Context(), f, folder, publicID)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "upload failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"kind": kind,
		"file": models.FileMeta{
			URL:      res.URL,
			Name:     file.Filename,
			MimeType: mimeType,
			Size:     file.Size,
		},
		"thumbnail_url": res.ThumbnailURL,
	})
}

func kindFor(mimeType string) string {
	if strings.HasPrefix(mimeType, "image/") {
		return domain.MessageKindImage
	}
	return domain.MessageKindDocument
}
