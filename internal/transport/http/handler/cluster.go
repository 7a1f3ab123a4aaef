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

type ClusterHandler struct {
	svc    *app.ClusterService
	logger *zap.Logger
}

func NewClusterHandler(svc *app.ClusterService, log *zap.Logger) *ClusterHandler {
	return &ClusterHandler{svc: svc, logger: log}
}

type clusterRequest struct {
	ItemType string             `json:"itemType"`
	Method   string             `json:"method"`
	Params   *app.ClusterParams `json:"params"`
}

func (h *ClusterHandler) ClusterTheme(c *gin.Context) {
	h.cluster(c, app.ThemeOwner(c.Param("themeId")))
}

func (h *ClusterHandler) ClusterQuestion(c *gin.Context) {
	h.cluster(c, app.QuestionOwner(c.Param("questionId")))
}

func (h *ClusterHandler) ThemeResults(c *gin.Context) {
	h.results(c, app.ThemeOwner(c.Param("themeId")))
}

func (h *ClusterHandler) QuestionResults(c *gin.Context) {
	h.results(c, app.QuestionOwner(c.Param("questionId")))
}

func (h *ClusterHandler) cluster(c *gin.Context, owner app.OwnerRef) {
	var req clusterRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "invalid request body")
		return
	}

	result, err := h.svc.Cluster(c.Request.Context(), owner, app.ClusterRequest{
		ItemType: req.ItemType,
		Method:   req.Method,
		Params:   req.Params,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if result.IsEmpty() {
		c.JSON(http.StatusOK, response.EmptyClusters())
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *ClusterHandler) results(c *gin.Context, owner app.OwnerRef) {
	results, err := h.svc.Results(c.Request.Context(), owner)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, results)
}
