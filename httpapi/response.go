package httpapi

import (
	"net/http"

	"github.com/fixkme/calcsrv/errs"
	"github.com/gin-gonic/gin"
)

// 返回格式
// status: 业务状态码，0为成功，其他表示失败
// error:  业务消息提示，不参与逻辑，仅用于ui展示，默认为空字符串
// data:   业务数据，如果不设置时默认为json空对象{}
func response(c *gin.Context, httpStatus int, code int, desc string, data any) {
	if data == nil {
		data = gin.H{}
	}
	c.JSON(httpStatus, gin.H{
		"status": code,
		"error":  desc,
		"data":   data,
		"_links": gin.H{
			"self": gin.H{
				"href": c.Request.RequestURI,
			},
		},
	})
}

func ResponseError(c *gin.Context, httpStatus int, err error) {
	errCode, errDesc := parserError(err)
	response(c, httpStatus, errCode, errDesc, nil)
}

func ResponseSuccess(c *gin.Context, data any) {
	response(c, http.StatusOK, errs.ErrCode_OK, "", data)
}

func parserError(err error) (errCode int, errDesc string) {
	codeErr := errs.WrapError(err)
	return int(codeErr.Code()), codeErr.Error()
}
