// internal/interfaces/http/middleware/errors.go
package middleware

import (
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/apperrors"
	"github.com/gin-gonic/gin"
)

// RespondError writes err as the standard error envelope and aborts the chain.
// Untyped errors are rendered as internal errors and attached to the context for the request logger.
func RespondError(c *gin.Context, err error) {
	typed := apperrors.As(err)
	if typed == nil {
		_ = c.Error(err)
		typed = apperrors.Wrap(apperrors.CodeInternal, err, "internal server error")
	} else if typed.Code() == apperrors.CodeInternal || typed.Code() == apperrors.CodeDependency {
		_ = c.Error(err)
	}

	meta := apperrors.MetadataFor(typed.Code())
	body := gin.H{
		"error":     meta.PublicMessage,
		"code":      typed.Code(),
		"details":   typed.Message(),
		"retryable": meta.Retryable,
	}
	if d := typed.Details(); d != nil {
		body["fields"] = d
	}

	c.AbortWithStatusJSON(meta.HTTPStatus, body)
}
