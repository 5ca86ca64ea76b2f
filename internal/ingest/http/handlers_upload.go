package http

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/infradash/infradash-backend/internal/ingest/service"
	"github.com/infradash/infradash-backend/internal/ingest/sse"
)

// UploadHandler accepts the admin bulk upload and streams progress back
// over SSE. Structural failures (no file, unparseable payload) are
// plain HTTP errors; a stream only opens once a job exists.
type UploadHandler struct {
	coordinator *service.Coordinator
}

func NewUploadHandler(coordinator *service.Coordinator) *UploadHandler {
	return &UploadHandler{coordinator: coordinator}
}

func (h *UploadHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read uploaded file"})
		return
	}
	defer file.Close()

	records, err := service.ParseRecords(file)
	if err != nil {
		if errors.Is(err, service.ErrEmptyPayload) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "payload contains no records"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming unsupported"})
		return
	}

	// Payload parsed; from here on the job reports through the stream.
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // nginx: disable buffering

	emitter := sse.New(c.Writer, flusher)
	state, err := h.coordinator.Run(c.Request.Context(), records, emitter)
	if err != nil {
		// transport died mid-stream; the error event is best effort
		_ = emitter.Error("upload aborted: connection lost")
		log.Printf("[ingest] upload ended early: processed=%d/%d err=%v", state.Processed, state.Total, err)
	}
}
