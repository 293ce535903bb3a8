package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/friendlyvoice/internal/apperr"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// 业务错误码
const (
	CodeOK              = 0
	CodeBadRequest      = 40000
	CodeUnauthorized    = 40100
	CodeNotFound        = 40400
	CodeConflict        = 40900
	CodeUnprocessable   = 42200
	CodeTooManyRequests = 42900
	CodeInternal        = 50000
	CodeBadGateway      = 50200
)

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Code: CodeOK, Message: "success", Data: data})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Code: CodeOK, Message: "created", Data: data})
}

func BadRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, Response{Code: CodeBadRequest, Message: msg})
}

func Unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, Response{Code: CodeUnauthorized, Message: msg})
}

func NotFound(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusNotFound, Response{Code: CodeNotFound, Message: msg})
}

func TooManyRequests(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, Response{Code: CodeTooManyRequests, Message: "too many requests"})
}

func InternalError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, Response{Code: CodeInternal, Message: "internal server error"})
}

// Error 按错误类型映射 HTTP 状态码
func Error(c *gin.Context, err error) {
	var (
		authErr    *apperr.AuthError
		deviceErr  *apperr.DeviceError
		persistErr *apperr.PersistenceError
	)
	switch {
	case errors.As(err, &authErr):
		c.AbortWithStatusJSON(http.StatusUnauthorized, Response{Code: CodeUnauthorized, Message: authErr.Message})
	case errors.Is(err, apperr.ErrNotAuthenticated):
		Unauthorized(c, err.Error())
	case errors.Is(err, apperr.ErrNotFound):
		NotFound(c, err.Error())
	case errors.Is(err, apperr.ErrFollowSelf):
		c.AbortWithStatusJSON(http.StatusConflict, Response{Code: CodeConflict, Message: err.Error()})
	case errors.Is(err, apperr.ErrInvalidInput):
		BadRequest(c, err.Error())
	case errors.As(err, &deviceErr):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, Response{Code: CodeUnprocessable, Message: deviceErr.Error()})
	case errors.As(err, &persistErr):
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusBadGateway, Response{Code: CodeBadGateway, Message: persistErr.Error()})
	default:
		InternalError(c, err)
	}
}
