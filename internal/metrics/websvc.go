package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// WebSvcReqType is a type alias for a string that represents the web service
// request type.
type WebSvcReqType = string

// Web service requests of [WebSvcReqType] type.
//
// NOTE:  Keep in sync with [websvc.RequestType].
const (
	WebSvcReqTypeLookup      WebSvcReqType = "lookup"
	WebSvcReqTypeBadRequest  WebSvcReqType = "bad_request"
	WebSvcReqTypeRateLimited WebSvcReqType = "rate_limited"
	WebSvcReqTypeSnapshot    WebSvcReqType = "snapshot"
	WebSvcReqTypeRobotsTxt   WebSvcReqType = "robots_txt"
	WebSvcReqTypeNotFound    WebSvcReqType = "not_found"
)

// WebSvc is the Prometheus-based implementation of the [websvc.Metrics]
// interface.
type WebSvc struct {
	// reqCounters maps each web service request type to its corresponding
	// Prometheus counter.
	reqCounters map[WebSvcReqType]prometheus.Counter
}

// NewWebSvc registers the web service metrics in reg and returns a properly
// initialized [*WebSvc].
func NewWebSvc(namespace string, reg prometheus.Registerer) (m *WebSvc, err error) {
	const requestsTotal = "requests_total"

	reqCV := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:      requestsTotal,
		Namespace: namespace,
		Subsystem: subsystemWebSvc,
		Help:      "The number of HTTP requests for websvc.",
	}, []string{"kind"})

	reqCounters := map[WebSvcReqType]prometheus.Counter{}
	for _, reqType := range []WebSvcReqType{
		WebSvcReqTypeLookup,
		WebSvcReqTypeBadRequest,
		WebSvcReqTypeRateLimited,
		WebSvcReqTypeSnapshot,
		WebSvcReqTypeRobotsTxt,
		WebSvcReqTypeNotFound,
	} {
		reqCounters[reqType] = reqCV.WithLabelValues(reqType)
	}

	err = reg.Register(reqCV)
	if err != nil {
		return nil, fmt.Errorf("registering metrics %q: %w", requestsTotal, err)
	}

	return &WebSvc{reqCounters: reqCounters}, nil
}

// IncrementReqCount implements the [websvc.Metrics] interface for *WebSvc.
func (m *WebSvc) IncrementReqCount(_ context.Context, reqType WebSvcReqType) {
	ctr, ok := m.reqCounters[reqType]
	if !ok {
		panic(fmt.Errorf("incrementing req counter: bad type %q", reqType))
	}

	ctr.Inc()
}
