package response

import "github.com/gin-gonic/gin"

const (
	CodeBadRequest       = 40000
	CodeUnauthorized     = 40100
	CodeThemeNotFound    = 40401
	CodeQuestionNotFound = 40402
	CodeInternalServer   = 50000
	CodeProviderFailure  = 50201
	CodeAsyncUnavailable = 50301
)

// ErrorBody is the shape of every error response.
type ErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func Error(c *gin.Context, httpStatus, code int, message string) {
	c.JSON(httpStatus, ErrorBody{
		Code:    code,
		Message: message,
	})
}

// GenerateBody is returned by the embedding generation endpoints.
type GenerateBody struct {
	Status         string `json:"status"`
	ProcessedCount *int   `json:"processedCount,omitempty"`
	FailedCount    int    `json:"failedCount,omitempty"`
	SkippedCount   int    `json:"skippedCount,omitempty"`
	JobID          string `json:"jobId,omitempty"`
}

// EmptyClusterBody is returned when a scope has nothing to cluster.
type EmptyClusterBody struct {
	Message  string `json:"message"`
	Clusters []any  `json:"clusters"`
}

func EmptyClusters() EmptyClusterBody {
	return EmptyClusterBody{Message: "No items to cluster", Clusters: []any{}}
}
