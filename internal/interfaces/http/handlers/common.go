// internal/interfaces/http/handlers/common.go
package handlers

import (
	"errors"
	"io"
	"strconv"

	"github.com/drinksharbour/drinksharbour-api/internal/domain/cart"
	"github.com/drinksharbour/drinksharbour-api/internal/interfaces/http/middleware"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/apperrors"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/validation"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

func respondError(c *gin.Context, err error) {
	middleware.RespondError(c, err)
}

// bindJSON binds the body into req, rendering validator failures per field
func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		respondError(c, bindError(err))
		return false
	}
	return true
}

// bindOptionalJSON is bindJSON that accepts an empty body
func bindOptionalJSON(c *gin.Context, req any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(req); err != nil && !errors.Is(err, io.EOF) {
		respondError(c, bindError(err))
		return false
	}
	return true
}

func bindQuery(c *gin.Context, req any) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		respondError(c, bindError(err))
		return false
	}
	return true
}

func bindURI(c *gin.Context, req any) bool {
	if err := c.ShouldBindUri(req); err != nil {
		respondError(c, bindError(err))
		return false
	}
	return true
}

func bindError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return apperrors.New(apperrors.CodeValidation, "invalid request data").WithDetails(validation.Messages(err))
	}
	return apperrors.Wrap(apperrors.CodeValidation, err, "invalid request data")
}

// paramID parses a positive numeric path parameter
func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		respondError(c, apperrors.Newf(apperrors.CodeValidation, "invalid %s", name))
		return 0, false
	}
	return uint(id), true
}

// requireUserID returns the authenticated user's id
func requireUserID(c *gin.Context) (uint, bool) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		respondError(c, apperrors.New(apperrors.CodeUnauthorized, "user not authenticated"))
		return 0, false
	}
	return userID, true
}

func optionalUserID(c *gin.Context) *uint {
	if userID, ok := middleware.GetUserIDFromContext(c); ok {
		return &userID
	}
	return nil
}

// cartOwner resolves the signed in user or the guest session. A guest
// without a session gets a new id, echoed in the X-Session-ID header.
func cartOwner(c *gin.Context) cart.Owner {
	if userID, ok := middleware.GetUserIDFromContext(c); ok {
		return cart.Owner{UserID: &userID}
	}
	sessionID := middleware.SessionIDFromContext(c)
	if _, err := uuid.Parse(sessionID); err != nil {
		sessionID = uuid.NewString()
	}
	c.Header(middleware.SessionHeader, sessionID)
	return cart.Owner{SessionID: sessionID}
}

func queryInt(c *gin.Context, name string, def int) int {
	if v, err := strconv.Atoi(c.Query(name)); err == nil {
		return v
	}
	return def
}
