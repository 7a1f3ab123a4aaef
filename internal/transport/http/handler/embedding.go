package handler

import (
	"io"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"opinion-engine/internal/app"
	"opinion-engine/internal/transport/http/response"
)

type EmbeddingHandler struct {
	svc    *app.EmbeddingService
	logger *zap.Logger
}

func NewEmbeddingHandler(svc *app.EmbeddingService, log *zap.Logger) *EmbeddingHandler {
	return &EmbeddingHandler{svc: svc, logger: log}
}

type generateRequest struct {
	ItemType string `json:"itemType"`
	Async    bool   `json:"async"`
}

func (h *EmbeddingHandler) GenerateForTheme(c *gin.Context) {
	h.generate(c, app.ThemeOwner(c.Param("themeId")))
}

func (h *EmbeddingHandler) GenerateForQuestion(c *gin.Context) {
	h.generate(c, app.QuestionOwner(c.Param("questionId")))
}

func (h *EmbeddingHandler) generate(c *gin.Context, owner app.OwnerRef) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "invalid request body")
		return
	}

	if req.Async {
		job, err := h.svc.Enqueue(c.Request.Context(), owner, req.ItemType)
		if err != nil {
			writeError(c, h.logger, err)
			return
		}
		c.JSON(http.StatusAccepted, response.GenerateBody{Status: "queued", JobID: job.ID})
		return
	}

	result, err := h.svc.Generate(c.Request.Context(), owner, req.ItemType)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if result.Status == app.StatusNoItems {
		c.JSON(http.StatusOK, response.GenerateBody{Status: result.Status, SkippedCount: len(result.Skipped)})
		return
	}
	processed := result.Processed
	c.JSON(http.StatusOK, response.GenerateBody{
		Status:         result.Status,
		ProcessedCount: &processed,
		FailedCount:    len(result.Failed),
		SkippedCount:   len(result.Skipped),
	})
}

// InvalidateForTheme drops one item's stored vector so the next generation
// run embeds it again. It answers 204 whether or not a vector existed.
func (h *EmbeddingHandler) InvalidateForTheme(c *gin.Context) {
	_, err := h.svc.Invalidate(c.Request.Context(), app.ThemeOwner(c.Param("themeId")), c.Param("itemType"), c.Param("itemId"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
