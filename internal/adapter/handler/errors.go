package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rl1809/jersey-pos/internal/core/domain"
	"github.com/rl1809/jersey-pos/internal/logger"
)

func httpStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnknownSku), errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateSku), errors.Is(err, domain.ErrDuplicateRequest), errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInsufficientStock), errors.Is(err, domain.ErrCouponPoolEmpty):
		return http.StatusGone
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError hides the detail of unexpected failures from the client and logs it instead.
func writeError(c *gin.Context, err error) {
	code := httpStatus(err)
	msg := err.Error()
	if code >= http.StatusInternalServerError {
		logger.Errorw("request_failed", "request_id", getRequestID(c), "path", c.FullPath(), "error", err)
		msg = http.StatusText(code)
	}
	c.AbortWithStatusJSON(code, gin.H{"error": msg})
}

func grpcError(err error) error {
	var c codes.Code
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		c = codes.InvalidArgument
	case errors.Is(err, domain.ErrUnknownSku), errors.Is(err, domain.ErrNotFound):
		c = codes.NotFound
	case errors.Is(err, domain.ErrDuplicateSku), errors.Is(err, domain.ErrDuplicateRequest):
		c = codes.AlreadyExists
	case errors.Is(err, domain.ErrConflict):
		c = codes.Aborted
	case errors.Is(err, domain.ErrInsufficientStock):
		c = codes.FailedPrecondition
	case errors.Is(err, domain.ErrCouponPoolEmpty):
		c = codes.ResourceExhausted
	case errors.Is(err, context.DeadlineExceeded):
		c = codes.Unavailable
	default:
		logger.Errorw("rpc_failed", "error", err)
		return status.Error(codes.Internal, "internal error")
	}
	return status.Error(c, err.Error())
}
