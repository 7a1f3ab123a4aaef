package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"opinion-engine/internal/app"
)

type SearchHandler struct {
	svc      *app.SearchService
	defaultK int
	logger   *zap.Logger
}

func NewSearchHandler(svc *app.SearchService, defaultK int, log *zap.Logger) *SearchHandler {
	return &SearchHandler{svc: svc, defaultK: defaultK, logger: log}
}

func (h *SearchHandler) SearchTheme(c *gin.Context) {
	h.search(c, app.ThemeOwner(c.Param("themeId")))
}

func (h *SearchHandler) SearchQuestion(c *gin.Context) {
	h.search(c, app.QuestionOwner(c.Param("questionId")))
}

func (h *SearchHandler) search(c *gin.Context, owner app.OwnerRef) {
	k := h.defaultK
	if raw := strings.TrimSpace(c.Query("k")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			badRequest(c, "k must be a positive integer")
			return
		}
		k = parsed
	}

	results, err := h.svc.Search(c.Request.Context(), owner, app.SearchRequest{
		QueryText: c.Query("queryText"),
		ItemType:  c.Query("itemType"),
		K:         k,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, results)
}
