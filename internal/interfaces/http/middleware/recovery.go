// internal/interfaces/http/middleware/recovery.go
package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/drinksharbour/drinksharbour-api/internal/pkg/apperrors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Recovery turns handler panics into a logged 500 with the standard error body
func Recovery(logger *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.WithFields(logrus.Fields{
					"request_id": c.GetString(ContextRequestID),
					"path":       c.Request.URL.Path,
					"panic":      fmt.Sprint(r),
					"stack":      string(debug.Stack()),
				}).Error("panic recovered")
				RespondError(c, apperrors.New(apperrors.CodeInternal, "internal server error"))
			}
		}()
		c.Next()
	}
}
