package dnssvc

import (
	"strings"

	"github.com/miekg/dns"
)

// maxTXTStringLen is the maximum length of a single string within a TXT
// record.
const maxTXTStringLen = 255

// Values of the SOA record used in the negative answers.
const (
	soaSerial  = 1
	soaRefresh = 1800
	soaRetry   = 900
	soaExpire  = 604800
)

// newResp returns a new authoritative response to req with the given rcode.
func newResp(req *dns.Msg, rcode int) (resp *dns.Msg) {
	resp = &dns.Msg{
		MsgHdr: dns.MsgHdr{
			Authoritative: true,
		},
		Compress: true,
	}

	resp.SetRcode(req, rcode)

	return resp
}

// newNegativeResp returns a new response to req with rcode and with the SOA
// record of the zone in the authority section.
func (svc *Service) newNegativeResp(req *dns.Msg, rcode int) (resp *dns.Msg) {
	resp = newResp(req, rcode)
	resp.Ns = []dns.RR{svc.newSOA()}

	return resp
}

// newSOA returns the SOA record of the zone.
func (svc *Service) newSOA() (soa *dns.SOA) {
	return &dns.SOA{
		Hdr: dns.RR_Header{
			Name:   svc.zone,
			Rrtype: dns.TypeSOA,
			Class:  dns.ClassINET,
			Ttl:    svc.ttl,
		},
		Ns:      "ns." + svc.zone,
		Mbox:    "hostmaster." + svc.zone,
		Serial:  soaSerial,
		Refresh: soaRefresh,
		Retry:   soaRetry,
		Expire:  soaExpire,
		Minttl:  svc.ttl,
	}
}

// newAnswerTXT returns a TXT record for name with the label.  Labels longer
// than [maxTXTStringLen] bytes are split into several strings.
func (svc *Service) newAnswerTXT(name, label string) (rr *dns.TXT) {
	var strs []string
	for len(label) > maxTXTStringLen {
		strs = append(strs, escapeTXT(label[:maxTXTStringLen]))
		label = label[maxTXTStringLen:]
	}

	strs = append(strs, escapeTXT(label))

	return &dns.TXT{
		Hdr: dns.RR_Header{
			Name:   name,
			Rrtype: dns.TypeTXT,
			Class:  dns.ClassINET,
			Ttl:    svc.ttl,
		},
		Txt: strs,
	}
}

// txtEscaper escapes the characters that [dns.TXT] interprets when packing.
var txtEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// escapeTXT returns s escaped so that it is packed into a TXT string as is.
func escapeTXT(s string) (escaped string) {
	return txtEscaper.Replace(s)
}
