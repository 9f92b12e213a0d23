package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"weaponwatch-server-go/internal/logging"
	"weaponwatch-server-go/internal/services/verification"
	"weaponwatch-server-go/internal/store"
)

type ErrorResponse struct {
	Error string `json:"error" example:"site not found"`
}

// statusFor maps workflow errors to HTTP statuses. Precondition violations
// are 422, lost races and live-cycle rejections are 409, role failures 403.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrSiteNotFound),
		errors.Is(err, store.ErrStakeholderNotFound),
		errors.Is(err, store.ErrCameraNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrActorNotAuthority),
		errors.Is(err, verification.ErrNotPermitted):
		return http.StatusForbidden
	case errors.Is(err, store.ErrCycleLive),
		errors.Is(err, store.ErrConflict),
		errors.Is(err, verification.ErrNoPendingCycle):
		return http.StatusConflict
	case errors.Is(err, store.ErrTargetAlreadyAuthority),
		errors.Is(err, store.ErrTargetNotAdministrator),
		errors.Is(err, store.ErrCrossSiteTransfer):
		return http.StatusUnprocessableEntity
	case errors.Is(err, verification.ErrAcknowledgeRequired):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logging.Error(c).Err(err).Str("path", c.Request.URL.Path).Msg("Request failed")
		c.JSON(status, ErrorResponse{Error: "internal error"})
		return
	}
	c.JSON(status, ErrorResponse{Error: err.Error()})
}
