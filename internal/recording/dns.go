package recording

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"strings"

	"github.com/google/tsunami-security-scanner-callback-server/internal/monitoring"
	"github.com/google/tsunami-security-scanner-callback-server/pkg/cbid"
	"github.com/google/tsunami-security-scanner-callback-server/pkg/storage"
	"github.com/miekg/dns"
	"golang.org/x/net/idna"
)

const answerTTL = 60

var errNoQuestion = errors.New("dns query without question")

// DNSHandler answers queries for names inside its zone with the server's
// external address, recording a DNS interaction when the name carries a
// callback id. Queries outside the zone are refused.
type DNSHandler struct {
	l      *slog.Logger
	store  storage.Store
	obs    monitoring.Observer
	zone   string
	answer netip.Addr
}

func NewDNSHandler(store storage.Store, domain, externalIP string, obs monitoring.Observer, l *slog.Logger) (*DNSHandler, error) {
	addr, err := netip.ParseAddr(externalIP)
	if err != nil {
		return nil, fmt.Errorf("recording: invalid external ip %q: %w", externalIP, err)
	}
	return &DNSHandler{
		l:      l,
		store:  store,
		obs:    obs,
		zone:   normalizeName(domain),
		answer: addr.Unmap(),
	}, nil
}

func (h *DNSHandler) Handle(ctx context.Context, req *dns.Msg, clientIP string) (*dns.Msg, error) {
	if len(req.Question) == 0 {
		return nil, errNoQuestion
	}
	q := req.Question[0]

	resp := new(dns.Msg)
	resp.SetReply(req)
	resp.Authoritative = true

	if !inZone(q.Name, h.zone) {
		resp.Rcode = dns.RcodeRefused
		return resp, nil
	}

	if id, ok := cbid.FromDNSName(q.Name); ok {
		h.l.Info("recording dns interaction", "cbid", id, "client_ip", clientIP)
		if err := h.store.Add(ctx, id, storage.KindDNS); err != nil {
			return nil, err
		}
		h.obs.InteractionRecorded(storage.KindDNS)
	}

	resp.Answer = append(resp.Answer, h.answerRR(q.Name))
	return resp, nil
}

func (h *DNSHandler) answerRR(name string) dns.RR {
	if h.answer.Is4() {
		return &dns.A{
			Hdr: dns.RR_Header{Name: name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: answerTTL},
			A:   net.IP(h.answer.AsSlice()),
		}
	}
	return &dns.AAAA{
		Hdr:  dns.RR_Header{Name: name, Rrtype: dns.TypeAAAA, Class: dns.ClassINET, Ttl: answerTTL},
		AAAA: net.IP(h.answer.AsSlice()),
	}
}

func inZone(name, zone string) bool {
	name = normalizeName(name)
	return name == zone || strings.HasSuffix(name, "."+zone)
}

// normalizeName converts name to a lower-case FQDN, using its ASCII form when
// it is a valid internationalized name.
func normalizeName(name string) string {
	if ascii, err := idna.Lookup.ToASCII(strings.TrimSuffix(name, ".")); err == nil {
		name = ascii
	}
	return dns.Fqdn(strings.ToLower(name))
}
