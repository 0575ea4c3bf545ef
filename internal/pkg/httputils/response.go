// Package httputils 封装 gin handler 的统一出口。
package httputils

import (
	"github.com/gin-gonic/gin"

	apierrors "github.com/kart-io/knowledge-x/pkg/utils/errors"
	"github.com/kart-io/knowledge-x/pkg/utils/response"
)

// WriteResponse 按统一格式写出响应。err 非 nil 时转成 Errno 输出错误体，
// 否则包装 data 为成功响应。响应对象写完后归还对象池。
func WriteResponse(c *gin.Context, err error, data interface{}) {
	if err != nil {
		resp := response.Err(apierrors.FromError(err))
		defer response.Release(resp)
		c.JSON(resp.HTTPStatus(), resp)
		return
	}

	resp := response.Success(data)
	defer response.Release(resp)
	c.JSON(resp.HTTPStatus(), resp)
}
