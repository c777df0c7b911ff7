package server

import (
	"github.com/gin-gonic/gin"
)

// NewDefaultGinEngine 创建不带默认中间件的 Gin 引擎，中间件顺序由调用方决定。
// environment 为 prod 时使用 release 模式。
func NewDefaultGinEngine(environment string, middlewares ...gin.HandlerFunc) *gin.Engine {
	switch environment {
	case "prod":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(middlewares...)
	return engine
}
