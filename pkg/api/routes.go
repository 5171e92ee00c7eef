package api

import (
	"taskboard-api/pkg/task"

	"github.com/gin-gonic/gin"
)

const BasePath = "/trpc"

func LoadRoutes(router *gin.Engine, tasks *task.TaskService) {
	rpc := NewRouter(tasks)
	trpc := router.Group(BasePath)
	{
		trpc.Any("/:path", rpc.Handler())
	}
}
