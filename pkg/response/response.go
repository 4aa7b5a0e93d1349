package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	CodeSuccess       = 0
	CodeParamError    = 400
	CodeUnauthorized  = 401
	CodeForbidden     = 403
	CodeNotFound      = 404
	CodeServerError   = 500
	CodeBusinessError = 1000
)

const (
	CodeNotEligible           = 1001
	CodeProgramNotLive        = 1002
	CodeAlreadyCompleted      = 1003
	CodeInsufficientPoints    = 1004
	CodeOutOfStock            = 1005
	CodeRewardInactive        = 1006
	CodeClaimAlreadyResolved  = 1007
	CodeDuplicatePendingClaim = 1008
	CodeConcurrencyConflict   = 1009
	CodeAlreadyFulfilled      = 1010
	CodeNotManualFulfillment  = 1011
)

type Response struct {
	Code      int         `json:"code"`
	Message   string      `json:"message"`
	Retryable bool        `json:"retryable,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
	})
}

func ParamError(c *gin.Context, message string) {
	Error(c, CodeParamError, message)
}

func NotFound(c *gin.Context, message string) {
	Error(c, CodeNotFound, message)
}

func ServerError(c *gin.Context, message string) {
	Error(c, CodeServerError, message)
}

func BusinessError(c *gin.Context, code int, message string) {
	Error(c, code, message)
}

// RetryableError tells the caller the same request may succeed if sent again.
func RetryableError(c *gin.Context, code int, message string) {
	c.JSON(http.StatusOK, Response{
		Code:      code,
		Message:   message,
		Retryable: true,
	})
}
