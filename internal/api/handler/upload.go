package handler

import (
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/timmy/nercompare/internal/api/middleware"
	"github.com/timmy/nercompare/internal/storage"
)

// UploadHandler serves uploaded documents back to the GUI. Files missing
// from the upload dir are served from the archive when one is configured.
type UploadHandler struct {
	dir     string
	archive *storage.Archive
}

func NewUploadHandler(dir string, archive *storage.Archive) *UploadHandler {
	return &UploadHandler{dir: dir, archive: archive}
}

// Serve handles GET /uploads/:filename.
func (h *UploadHandler) Serve(c *gin.Context) {
	name := filepath.Base(c.Param("filename"))
	path := filepath.Join(h.dir, name)

	contentType := mime.TypeByExtension(filepath.Ext(name))
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		if contentType != "" {
			c.Header("Content-Type", contentType)
		}
		c.File(path)
		return
	}

	if h.archive == nil {
		c.String(http.StatusNotFound, "File not found")
		return
	}

	ctx := c.Request.Context()
	ok, err := h.archive.Has(ctx, name)
	if err != nil {
		middleware.GetLogger(c).WithError(err).Warn("Archive lookup failed")
	}
	if !ok {
		c.String(http.StatusNotFound, "File not found")
		return
	}

	rc, err := h.archive.Open(ctx, name)
	if err != nil {
		middleware.GetLogger(c).WithError(err).Error("Failed to read archived upload")
		c.String(http.StatusInternalServerError, "Failed to read file")
		return
	}
	defer rc.Close()

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, -1, contentType, rc, nil)
}
