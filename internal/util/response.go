package util

import (
	"errors"
	"net/http"

	"tuteck_exam_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    http.StatusCreated,
		Message: "created",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
	})
}

func Unauthorized(c *gin.Context) {
	Error(c, http.StatusUnauthorized, "Unauthorized")
}

func Forbidden(c *gin.Context) {
	Error(c, http.StatusForbidden, "Forbidden")
}

func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

func NotFound(c *gin.Context) {
	Error(c, http.StatusNotFound, "Resource not found")
}

func InternalServerError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, "Internal server error")
}

func LogInternalError(c *gin.Context, err error) {
	logger.Log.Error("Internal server error", zap.Error(err), zap.String("path", c.FullPath()))
	InternalServerError(c)
}

var statusByError = []struct {
	err  error
	code int
}{
	{ErrUserNotFound, http.StatusNotFound},
	{ErrSurveyNotFound, http.StatusNotFound},
	{ErrSessionNotFound, http.StatusNotFound},
	{ErrResultNotFound, http.StatusNotFound},
	{ErrCertificateNotFound, http.StatusNotFound},
	{ErrUnknownQuestion, http.StatusNotFound},
	{ErrPermissionDenied, http.StatusForbidden},
	{ErrSurveyNotAssigned, http.StatusForbidden},
	{ErrAttemptLimitExceeded, http.StatusConflict},
	{ErrSurveyInactive, http.StatusConflict},
	{ErrSessionNotActive, http.StatusConflict},
	{ErrInvalidTransition, http.StatusConflict},
	{ErrPauseNotAllowed, http.StatusConflict},
	{ErrAutoSaveDisabled, http.StatusConflict},
	{ErrNavigationLocked, http.StatusConflict},
	{ErrResultNotPassed, http.StatusConflict},
	{ErrInvalidOption, http.StatusBadRequest},
}

// HandleServiceError maps engine errors onto status codes; anything unknown is logged as a 500.
func HandleServiceError(c *gin.Context, err error) {
	for _, m := range statusByError {
		if errors.Is(err, m.err) {
			Error(c, m.code, err.Error())
			return
		}
	}
	LogInternalError(c, err)
}
