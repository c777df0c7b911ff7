package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/montecarlo/response"
	"github.com/wyfcoding/montecarlo/xerrors"
)

// MaxBodyBytes 限制请求体大小，limit <= 0 时不限制.
// 声明的 Content-Length 超限直接返回 413，分块上传则在读取越界时由处理器报错.
func MaxBodyBytes(limit int64) gin.HandlerFunc {
	if limit <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		if c.Request.ContentLength > limit {
			response.Error(c, xerrors.ErrRequestTooLarge.WithDetail("content length %d exceeds %d bytes", c.Request.ContentLength, limit))
			c.Abort()
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}
