package extract

import (
	"errors"
	"io"
	"net/http"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"resumegenie/internal/shared/server/respond"
	"resumegenie/internal/shared/telemetry"
	"resumegenie/internal/shared/util"
)

const maxUploadSize = 5 << 20 // 5MB

// Handler serves resume file uploads for text extraction. Nothing is stored.
type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

// RegisterRoutes attaches the extraction route to rg (mounted at /resume).
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/extract", h.extract)
}

func (h *Handler) extract(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize+1<<10)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Error(c, http.StatusRequestEntityTooLarge, "file_too_large", "file must be 5MB or smaller", nil)
			return
		}
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
		return
	}
	if fileHeader.Size > maxUploadSize {
		respond.Error(c, http.StatusRequestEntityTooLarge, "file_too_large", "file must be 5MB or smaller", nil)
		return
	}
	name, err := util.SanitizeFileName(fileHeader.Filename)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}

	mimeType := fileHeader.Header.Get("Content-Type")
	raw, err := ExtractTextFromBytes(c.Request.Context(), data, mimeType, name)
	if err != nil {
		switch {
		case errors.Is(err, ErrUnsupportedType):
			respond.Error(c, http.StatusUnsupportedMediaType, "unsupported_file_type", "upload a PDF, DOCX or TXT file", nil)
		case errors.Is(err, ErrEmptyFile):
			respond.Error(c, http.StatusBadRequest, "validation_error", "file is empty", nil)
		default:
			telemetry.Warn("extract.failed", map[string]any{"file_name": name, "mime_type": mimeType, "error": err})
			respond.Error(c, http.StatusUnprocessableEntity, "extraction_failed", "could not read text from file", nil)
		}
		return
	}

	text := util.CleanInputText(raw)
	telemetry.Info("extract.completed", map[string]any{
		"file_name":  name,
		"size_bytes": len(data),
		"chars":      utf8.RuneCountInString(text),
	})
	respond.OK(c, gin.H{
		"text":  text,
		"chars": utf8.RuneCountInString(text),
	})
}
