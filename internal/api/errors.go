package api

import (
	"net/http"

	"github.com/example/learnengine/internal/errkind"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// statusFor maps an engine error to an HTTP status and error code.
func statusFor(err error) (int, string) {
	switch errkind.KindOf(err) {
	case errkind.NotFound:
		return http.StatusNotFound, "NOT_FOUND"
	case errkind.InvalidInput:
		return http.StatusBadRequest, "INVALID_INPUT"
	case errkind.TransientStorage:
		return http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE"
	}
	return http.StatusInternalServerError, "INTERNAL"
}

func (h *Handlers) fail(c *gin.Context, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body: " + err.Error(), Code: "INVALID_REQUEST"})
}
