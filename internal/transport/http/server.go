package http

import (
	"github.com/gin-gonic/gin"

	"opinion-engine/internal/bootstrap"
	"opinion-engine/internal/transport/http/handler"
	"opinion-engine/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(middleware.RequestLogger(app.Logger), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	embeddingHandler := handler.NewEmbeddingHandler(app.Services.Embedding, app.Logger)
	searchHandler := handler.NewSearchHandler(app.Services.Search, app.Config.Search.DefaultK, app.Logger)
	clusterHandler := handler.NewClusterHandler(app.Services.Cluster, app.Logger)

	api := router.Group("/api")
	if app.Config.Auth.Enabled {
		api.Use(middleware.AuthJWT(app.Config.Auth.JWTSecret))
	}

	themes := api.Group("/themes/:themeId")
	themes.POST("/embeddings/generate", embeddingHandler.GenerateForTheme)
	themes.DELETE("/embeddings/:itemType/:itemId", embeddingHandler.InvalidateForTheme)
	themes.GET("/search", searchHandler.SearchTheme)
	themes.POST("/cluster", clusterHandler.ClusterTheme)
	themes.GET("/clustering-results", clusterHandler.ThemeResults)

	questions := api.Group("/questions/:questionId")
	questions.POST("/embeddings/generate", embeddingHandler.GenerateForQuestion)
	questions.GET("/search", searchHandler.SearchQuestion)
	questions.POST("/cluster", clusterHandler.ClusterQuestion)
	questions.GET("/clustering-results", clusterHandler.QuestionResults)

	return router
}
