package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/montecarlo/contextx"
	"github.com/wyfcoding/montecarlo/idgen"
)

// HeaderXRequestID 请求 ID 头.
const HeaderXRequestID = "X-Request-ID"

// RequestID 透传客户端的请求 ID，没有时用 gen 生成.
func RequestID(gen idgen.Generator) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderXRequestID)
		if requestID == "" && gen != nil {
			if id, err := gen.Generate(); err == nil {
				requestID = strconv.FormatInt(id, 36)
			}
		}
		if requestID != "" {
			c.Request = c.Request.WithContext(contextx.WithRequestID(c.Request.Context(), requestID))
			c.Header(HeaderXRequestID, requestID)
		}
		c.Next()
	}
}
