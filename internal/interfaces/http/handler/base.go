// Package handler 提供 HTTP 请求处理器
package handler

import (
	"github.com/gin-gonic/gin"

	"library-qa-api/internal/interfaces/http/dto"
	"library-qa-api/pkg/errors"
)

// writeError 将应用错误映射为统一错误响应
func writeError(c *gin.Context, err error) {
	appErr := errors.AsAppError(err)

	detail := &dto.ErrorDetail{
		ErrorCode: string(appErr.Code),
		Details:   appErr.Detail,
	}
	dto.ErrorWithDetail(c, appErr.HTTPStatus, appErr.Message, detail)
}
