package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RouterConfig wires the handlers and the static frontend directory into the
// gin engine.
type RouterConfig struct {
	Documents   *DocumentHandler
	CORSOrigins []string
	StaticDir   string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	corsCfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Requested-With"},
	}
	if len(cfg.CORSOrigins) == 1 && cfg.CORSOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.CORSOrigins
		corsCfg.AllowCredentials = true
	}
	router.Use(cors.New(corsCfg))

	api := router.Group("/api")
	{
		api.GET("/health", cfg.Documents.Health)
		api.POST("/documents", cfg.Documents.Upload)
		api.GET("/documents", cfg.Documents.List)
		api.GET("/documents/export", cfg.Documents.Export)
		api.GET("/documents/:id", cfg.Documents.Get)
		api.DELETE("/documents/:id", cfg.Documents.Delete)
		api.POST("/documents/:id/ask", cfg.Documents.Ask)
	}

	if cfg.StaticDir != "" {
		router.Static("/app", cfg.StaticDir)
	}

	return router
}
