package debugsvc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"time"

	"github.com/AdguardTeam/NetMapper/internal/nmhttp"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/service"
)

// RefresherID is a type alias for strings that represent IDs of refreshers.
type RefresherID = string

// refresherIDAll is the special ID that means all refreshers.
const refresherIDAll RefresherID = "*"

// Refreshers is a type alias for maps of refresher IDs to Refreshers
// themselves.
type Refreshers map[RefresherID]service.Refresher

// Result strings of a single refresh.
const (
	refreshResultOK       = "ok"
	refreshResultNotFound = "error: refresher not found"
)

// errNoIDs is returned when a refresh request contains no IDs.
const errNoIDs errors.Error = "no ids"

// refreshHandler performs debug refreshes.
type refreshHandler struct {
	refrs Refreshers

	// timeout is the timeout of each refresh.  If it is zero, only the request
	// context limits a refresh.
	timeout time.Duration
}

// refreshRequest describes the request to the POST /debug/api/refresh HTTP API.
type refreshRequest struct {
	IDs []RefresherID `json:"ids"`
}

// refreshResponse describes the response to the POST /debug/api/refresh HTTP
// API.
type refreshResponse struct {
	Results map[RefresherID]string `json:"results"`
}

// type check
var _ http.Handler = (*refreshHandler)(nil)

// ServeHTTP implements the [http.Handler] interface for *refreshHandler.
func (h *refreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := slogutil.MustLoggerFromContext(ctx)

	ids, err := h.decodeIDs(r)
	if err != nil {
		l.ErrorContext(ctx, "bad request", slogutil.KeyError, err)
		http.Error(w, err.Error(), http.StatusBadRequest)

		return
	}

	results := make(map[RefresherID]string, len(ids))
	for _, id := range ids {
		results[id] = h.refresh(ctx, l, id)
	}

	nmhttp.WriteJSONResponse(ctx, l, w, http.StatusOK, &refreshResponse{
		Results: results,
	})
}

// decodeIDs decodes the refresh request from r and returns the IDs of the
// refreshers to refresh.  The special ID [refresherIDAll] is expanded into the
// sorted IDs of all refreshers and can't be combined with other IDs.
func (h *refreshHandler) decodeIDs(r *http.Request) (ids []RefresherID, err error) {
	req := &refreshRequest{}
	err = json.NewDecoder(r.Body).Decode(req)
	if err != nil {
		return nil, fmt.Errorf("decoding request: %w", err)
	}

	ids = req.IDs
	switch {
	case len(ids) == 0:
		return nil, errNoIDs
	case !slices.Contains(ids, refresherIDAll):
		return ids, nil
	case len(ids) == 1:
		return slices.Sorted(maps.Keys(h.refrs)), nil
	default:
		return nil, fmt.Errorf("%q cannot be used with other ids", refresherIDAll)
	}
}

// refresh performs a single refresh and returns the result as a string.
func (h *refreshHandler) refresh(ctx context.Context, l *slog.Logger, id RefresherID) (res string) {
	r, ok := h.refrs[id]
	if !ok {
		return refreshResultNotFound
	}

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	start := time.Now()
	err := r.Refresh(ctx)
	if err != nil {
		l.ErrorContext(ctx, "refresh failed", "id", id, slogutil.KeyError, err)

		return fmt.Sprintf("error: %s", err)
	}

	l.InfoContext(ctx, "refreshed", "id", id, "duration", time.Since(start))

	return refreshResultOK
}
