package dnssvc

import (
	"context"
	"fmt"
	"strings"

	"github.com/AdguardTeam/NetMapper/internal/errcoll"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/miekg/dns"
)

// type check
var _ dns.Handler = (*Service)(nil)

// ServeDNS implements the [dns.Handler] interface for *Service.
func (svc *Service) ServeDNS(rw dns.ResponseWriter, req *dns.Msg) {
	ctx := context.Background()
	defer svc.recoverPanic(ctx, rw, req)

	resp := svc.handle(ctx, req)
	svc.write(ctx, rw, resp)
}

// write writes resp to rw and records the response metrics.
func (svc *Service) write(ctx context.Context, rw dns.ResponseWriter, resp *dns.Msg) {
	svc.metrics.IncrementResponses(ctx, dns.RcodeToString[resp.Rcode])

	err := rw.WriteMsg(resp)
	if err != nil {
		svc.logger.DebugContext(ctx, "writing response", slogutil.KeyError, err)
	}
}

// recoverPanic recovers from a handler panic, reports it, and responds with
// SERVFAIL.  It must be called deferred.
func (svc *Service) recoverPanic(ctx context.Context, rw dns.ResponseWriter, req *dns.Msg) {
	v := recover()
	if v == nil {
		return
	}

	svc.metrics.IncrementPanics(ctx)

	err, ok := v.(error)
	if !ok {
		err = fmt.Errorf("non-error panic: %v", v)
	}

	errcoll.Collect(ctx, svc.errColl, svc.logger, "handling dns query", err)

	svc.write(ctx, rw, newResp(req, dns.RcodeServerFailure))
}

// handle returns the response to req.
func (svc *Service) handle(ctx context.Context, req *dns.Msg) (resp *dns.Msg) {
	if len(req.Question) != 1 {
		return newResp(req, dns.RcodeFormatError)
	}

	q := req.Question[0]
	name := strings.ToLower(q.Name)
	if q.Qclass != dns.ClassINET || !dns.IsSubDomain(svc.zone, name) {
		return newResp(req, dns.RcodeRefused)
	}

	if name == svc.zone {
		return svc.handleApex(req, q.Qtype)
	}

	addr, err := addrFromName(name, svc.zone)
	if err != nil {
		svc.logger.DebugContext(ctx, "bad name", "name", name, slogutil.KeyError, err)

		return svc.newNegativeResp(req, dns.RcodeNameError)
	}

	res := svc.mapper.Lookup(addr)
	switch {
	case res.Generation == 0:
		return newResp(req, dns.RcodeServerFailure)
	case !res.Found:
		return svc.newNegativeResp(req, dns.RcodeNameError)
	case q.Qtype != dns.TypeTXT && q.Qtype != dns.TypeANY:
		return svc.newNegativeResp(req, dns.RcodeSuccess)
	default:
		resp = newResp(req, dns.RcodeSuccess)
		resp.Answer = []dns.RR{svc.newAnswerTXT(q.Name, res.Label)}

		return resp
	}
}

// handleApex returns the response to a query for the zone itself.
func (svc *Service) handleApex(req *dns.Msg, qt uint16) (resp *dns.Msg) {
	if qt != dns.TypeSOA {
		return svc.newNegativeResp(req, dns.RcodeSuccess)
	}

	resp = newResp(req, dns.RcodeSuccess)
	resp.Answer = []dns.RR{svc.newSOA()}

	return resp
}
