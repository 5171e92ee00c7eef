package api

import (
	"time"

	"taskboard-api/pkg/task"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CorsConfig allows every origin when allowedOrigins is empty, otherwise the
// listed origins plus local development hosts.
func CorsConfig(allowedOrigins []string) cors.Config {
	config := cors.Config{
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "trpc-accept"},
		AllowMethods:     []string{"GET", "POST", "HEAD", "OPTIONS"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
		AllowWildcard:    true,
	}
	if len(allowedOrigins) == 0 {
		config.AllowAllOrigins = true
		return config
	}
	config.AllowOrigins = append(append([]string{}, allowedOrigins...), "http://localhost*")
	return config
}

// NewEngine builds the gin engine serving the procedure set.
func NewEngine(tasks *task.TaskService, corsConfig cors.Config) *gin.Engine {
	router := gin.New()
	router.Use(Recovery(), RequestLogger(), cors.New(corsConfig))
	LoadRoutes(router, tasks)
	return router
}
