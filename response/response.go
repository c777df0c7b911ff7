// Package response 统一 HTTP 响应格式，业务错误按 xerrors 类型映射状态码。
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/montecarlo/xerrors"
)

// Body 标准响应体。
type Body struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Detail string `json:"detail,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// Success 发送 HTTP 200，业务码 0。
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Body{Code: 0, Msg: "success", Data: data})
}

// SuccessWithRawData 不包装 code 和 msg，用于健康检查等系统接口。
func SuccessWithRawData(c *gin.Context, status int, data any) {
	c.JSON(status, data)
}

// Error 根据错误类型选择状态码。
// *xerrors.Error 使用其业务码、消息与详情；其他错误一律按 500 处理且不暴露内部信息。
func Error(c *gin.Context, err error) {
	if err == nil {
		Success(c, nil)
		return
	}

	if e, ok := xerrors.FromError(err); ok {
		c.JSON(e.HTTPStatus(), Body{Code: e.Code, Msg: e.Message, Detail: e.Detail})
		return
	}
	ErrorWithStatus(c, http.StatusInternalServerError, "internal server error", "")
}

// ErrorWithStatus 发送指定状态码的错误响应。
func ErrorWithStatus(c *gin.Context, status int, msg string, detail string) {
	c.JSON(status, Body{Code: status, Msg: msg, Detail: detail})
}
