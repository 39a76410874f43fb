package errcoll

import (
	"context"
	"log/slog"

	"github.com/AdguardTeam/golibs/service"
)

// RefreshErrorHandler is a [service.ErrorHandler] that logs the refresh errors
// and reports them to an error collector.
type RefreshErrorHandler struct {
	logger  *slog.Logger
	errColl Interface
}

// NewRefreshErrorHandler returns a new properly initialized
// *RefreshErrorHandler.  All arguments must not be nil.
func NewRefreshErrorHandler(l *slog.Logger, errColl Interface) (h *RefreshErrorHandler) {
	return &RefreshErrorHandler{
		logger:  l,
		errColl: errColl,
	}
}

// type check
var _ service.ErrorHandler = (*RefreshErrorHandler)(nil)

// Handle implements the [service.ErrorHandler] interface for
// *RefreshErrorHandler.
func (h *RefreshErrorHandler) Handle(ctx context.Context, err error) {
	Collect(ctx, h.errColl, h.logger, "refreshing", err)
}
