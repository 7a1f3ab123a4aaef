package handler

import (
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"opinion-engine/internal/ai"
	"opinion-engine/internal/app"
	"opinion-engine/internal/transport/http/response"
)

// writeError maps service errors onto HTTP statuses.
func writeError(c *gin.Context, log *zap.Logger, err error) {
	var (
		verr *app.ValidationError
		nerr *app.NotFoundError
		perr *ai.ProviderError
	)
	switch {
	case errors.As(err, &verr):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, verr.Message)
	case errors.As(err, &nerr):
		if nerr.Resource == "question" {
			response.Error(c, http.StatusNotFound, response.CodeQuestionNotFound, "Question not found")
			return
		}
		response.Error(c, http.StatusNotFound, response.CodeThemeNotFound, "Theme not found")
	case errors.As(err, &perr):
		log.Warn("embedding provider failed", zap.String("path", c.FullPath()), zap.Error(err))
		response.Error(c, http.StatusBadGateway, response.CodeProviderFailure, "embedding provider failed")
	case errors.Is(err, app.ErrAsyncUnavailable):
		response.Error(c, http.StatusServiceUnavailable, response.CodeAsyncUnavailable, err.Error())
	default:
		_ = c.Error(err)
		log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "internal server error")
	}
}

func badRequest(c *gin.Context, message string) {
	response.Error(c, http.StatusBadRequest, response.CodeBadRequest, message)
}
