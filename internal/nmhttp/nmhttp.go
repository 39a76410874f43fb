// Package nmhttp contains common constants, functions, and types for working
// with HTTP.
package nmhttp

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/AdguardTeam/NetMapper/internal/version"
	"github.com/AdguardTeam/golibs/httphdr"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
)

// HTTP header value constants.
const (
	HdrValApplicationJSON = "application/json"
	HdrValTextPlain       = "text/plain"
	HdrValWildcard        = "*"
)

// RobotsDisallowAll is a predefined robots disallow all content.
const RobotsDisallowAll = "User-agent: *\nDisallow: /\n"

// userAgent is the cached User-Agent string for NetMapper.
var userAgent = version.Name() + "/" + version.Version()

// UserAgent returns the ID of the service as a User-Agent string.  It can also
// be used as the value of the Server HTTP header.
func UserAgent() (ua string) {
	return userAgent
}

// WriteJSONResponse sets the content type to JSON, writes code, and encodes v
// into w.  Encoding errors are logged using l, since the status code has
// already been sent at that point.
func WriteJSONResponse(
	ctx context.Context,
	l *slog.Logger,
	w http.ResponseWriter,
	code int,
	v any,
) {
	w.Header().Set(httphdr.ContentType, HdrValApplicationJSON)
	w.WriteHeader(code)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		l.DebugContext(ctx, "writing json response", slogutil.KeyError, err)
	}
}
