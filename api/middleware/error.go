package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/doc-ingest/api/model"
	"github.com/fyerfyer/doc-ingest/internal/models"
	"github.com/fyerfyer/doc-ingest/pkg/storage"
)

// 定义应用中的错误类型常量
const (
	ErrorTypeValidation        = "VALIDATION_ERROR"         // 输入验证错误
	ErrorTypeNotFound          = "NOT_FOUND_ERROR"          // 资源不存在错误
	ErrorTypeInternal          = "INTERNAL_ERROR"           // 内部服务器错误
	ErrorTypeUnsupportedFormat = "UNSUPPORTED_FORMAT_ERROR" // 不支持的文件格式
	ErrorTypeConfiguration     = "CONFIGURATION_ERROR"      // 切分参数错误
	ErrorTypeEmbedding         = "EMBEDDING_ERROR"          // 向量化服务错误
	ErrorTypeEmptyInput        = "EMPTY_INPUT_ERROR"        // 文档无文本
	ErrorTypeTooLarge          = "PAYLOAD_TOO_LARGE_ERROR"  // 上传文件过大
)

// AppError 应用错误结构体
type AppError struct {
	Type    string // 错误类型
	Message string // 错误消息
	Details string // 详细错误信息
	Code    int    // 错误代码
}

// Error 实现error接口的方法
func (e AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// NewValidationError 创建输入验证错误
func NewValidationError(message string, details ...string) AppError {
	return AppError{
		Type:    ErrorTypeValidation,
		Message: message,
		Details: strings.Join(details, "; "),
		Code:    http.StatusBadRequest,
	}
}

// NewNotFoundError 创建资源不存在错误
func NewNotFoundError(message string) AppError {
	return AppError{
		Type:    ErrorTypeNotFound,
		Message: message,
		Code:    http.StatusNotFound,
	}
}

// NewInternalError 创建内部服务器错误
func NewInternalError(message string, details ...string) AppError {
	return AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Details: strings.Join(details, "; "),
		Code:    http.StatusInternalServerError,
	}
}

// NewTooLargeError 创建上传文件过大错误
func NewTooLargeError(message string) AppError {
	return AppError{
		Type:    ErrorTypeTooLarge,
		Message: message,
		Code:    http.StatusRequestEntityTooLarge,
	}
}

// FromError 按错误分类映射为应用错误
// 未识别的错误作为内部错误处理
func FromError(err error) AppError {
	var appErr AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, models.ErrUnsupportedFormat):
		return AppError{Type: ErrorTypeUnsupportedFormat, Message: err.Error(), Code: http.StatusUnsupportedMediaType}
	case errors.Is(err, models.ErrInvalidConfiguration):
		return AppError{Type: ErrorTypeConfiguration, Message: err.Error(), Code: http.StatusBadRequest}
	case errors.Is(err, models.ErrEmbeddingFailure):
		return AppError{Type: ErrorTypeEmbedding, Message: "embedding service failed", Details: err.Error(), Code: http.StatusBadGateway}
	case errors.Is(err, models.ErrEmptyInput):
		return AppError{Type: ErrorTypeEmptyInput, Message: err.Error(), Code: http.StatusUnprocessableEntity}
	case errors.Is(err, storage.ErrNotFound):
		return NewNotFoundError("artifact not found")
	default:
		return NewInternalError("Internal server error", err.Error())
	}
}

// ErrorMiddleware 统一错误处理中间件
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 捕获 panic
		defer func() {
			if err := recover(); err != nil {
				// 获取堆栈跟踪信息
				stack := string(debug.Stack())

				// 记录错误日志
				log.WithFields(logrus.Fields{
					"error": err,
					"stack": stack,
					"path":  c.Request.URL.Path,
				}).Error("Panic recovered in API request")

				// 构造客户端响应
				errorResponse := model.NewErrorResponse(
					http.StatusInternalServerError,
					"An unexpected error occurred",
				)

				// 在开发环境中可以返回详细错误
				if gin.Mode() == gin.DebugMode {
					errorResponse.Message = fmt.Sprintf("Panic: %v", err)
				}

				// 添加请求跟踪ID
				traceID, exists := c.Get(TraceIDKey)
				if exists {
					errorResponse.TraceID = traceID.(string)
				}

				// 中止请求处理并返回错误响应
				c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse)
			}
		}()

		// 处理请求
		c.Next()

		// 检查是否已经有错误被处理
		if len(c.Errors) > 0 {
			// 取最后一个错误进行处理
			err := c.Errors.Last().Err

			// 获取跟踪ID
			traceID := ""
			if traceIDValue, exists := c.Get(TraceIDKey); exists {
				traceID = traceIDValue.(string)
			}

			e := FromError(err)
			entry := log.WithFields(logrus.Fields{
				"error_type": e.Type,
				"details":    e.Details,
				FieldTraceID: traceID,
				FieldPath:    c.Request.URL.Path,
			})
			if e.Code >= http.StatusInternalServerError {
				entry.Error(e.Message)
			} else {
				entry.Warn(e.Message)
			}

			errResp := model.NewErrorResponse(e.Code, e.Message)
			errResp.TraceID = traceID

			// 在开发环境下显示具体错误信息
			if gin.Mode() == gin.DebugMode && e.Details != "" {
				errResp.Message = e.Error()
			}

			c.JSON(e.Code, errResp)

			// 中止继续处理
			c.Abort()
		}
	}
}

// HandleError 在处理器中使用的错误处理辅助函数
func HandleError(c *gin.Context, err error) {
	// 添加错误到上下文中
	_ = c.Error(err)
}
