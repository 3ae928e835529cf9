package api

import (
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"queue-ticket-backend/internal/mw"
	"queue-ticket-backend/internal/queue"
)

// Export handles GET /api/export.
func (h *Handler) Export(c *gin.Context) {
	file, err := h.queue.Export(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	name := url.PathEscape(file.Filename)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"; filename*=UTF-8''%s`, name, name))
	c.Data(http.StatusOK, queue.ContentType, file.Data)
}

// Import handles POST /api/import. The workbook arrives as the multipart
// field "file"; the secret may come from the header or the "password" field.
func (h *Handler) Import(c *gin.Context) {
	credential := c.GetHeader(mw.SecretHeader)
	if credential == "" {
		credential = c.PostForm("password")
	}

	var file io.Reader
	if header, err := c.FormFile("file"); err == nil {
		f, err := header.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is unreadable"})
			return
		}
		defer f.Close()
		file = f
	}

	res, err := h.queue.Import(c.Request.Context(), credential, file)
	if err != nil {
		respondError(c, err)
		return
	}
	body := gin.H{
		"success":  true,
		"imported": res.Imported,
		"updated":  res.Updated,
	}
	if len(res.Errors) > 0 {
		body["errors"] = res.Errors
	}
	c.JSON(http.StatusOK, body)
}
