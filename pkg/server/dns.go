package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
	"github.com/pudottapommin/golib/pkg/id"
	"golang.org/x/sync/semaphore"
)

type DNSObserver interface {
	DNSRequestServed(endpoint string, rcode int, elapsed time.Duration)
}

// DNSHandlerFunc answers one query. A returned error, or a panic, makes the
// server reply SERVFAIL instead.
type DNSHandlerFunc func(ctx context.Context, req *dns.Msg, clientIP string) (*dns.Msg, error)

type DNSOptions struct {
	Endpoint string
	// Workers bounds the number of queries handled at once. 0 disables the
	// limit.
	Workers  int64
	Observer DNSObserver
	Logger   *slog.Logger
}

// DNSServer serves DNS over UDP. Every query gets exactly one reply.
type DNSServer struct {
	ctx     context.Context
	opts    DNSOptions
	handler DNSHandlerFunc
	sem     *semaphore.Weighted
	srv     *dns.Server
	started chan struct{}
	exited  chan struct{}
}

func NewDNS(ctx context.Context, opts DNSOptions, handler DNSHandlerFunc) *DNSServer {
	s := &DNSServer{
		ctx:     ctx,
		opts:    opts,
		handler: handler,
		started: make(chan struct{}),
		exited:  make(chan struct{}),
	}
	if opts.Workers > 0 {
		s.sem = semaphore.NewWeighted(opts.Workers)
	}
	s.srv = &dns.Server{
		Net:               "udp",
		Handler:           s,
		NotifyStartedFunc: func() { close(s.started) },
	}
	return s
}

func (s *DNSServer) Run(addr string) error {
	pc, err := net.ListenPacket("udp", addr)
	if err != nil {
		close(s.exited)
		return err
	}
	return s.Serve(pc)
}

// Serve returns nil once the server has been shut down.
func (s *DNSServer) Serve(pc net.PacketConn) error {
	defer close(s.exited)
	s.srv.PacketConn = pc
	return s.srv.ActivateAndServe()
}

func (s *DNSServer) Shutdown(ctx context.Context) error {
	select {
	case <-s.started:
	case <-s.exited:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.srv.ShutdownContext(ctx)
}

func (s *DNSServer) ServeDNS(w dns.ResponseWriter, req *dns.Msg) {
	start := time.Now()
	clientIP := addrIP(w.RemoteAddr())
	l := s.opts.Logger.With(
		"request_id", id.New().String(),
		"endpoint", s.opts.Endpoint,
		"client_ip", clientIP,
	)
	l.Info("received dns request", "question", questionString(req))

	resp, err := s.handle(req, clientIP)
	if err != nil {
		l.Error("unable to handle dns request", "error", err)
		resp = new(dns.Msg)
		resp.SetRcode(req, dns.RcodeServerFailure)
		resp.Authoritative = true
	}
	if err = w.WriteMsg(resp); err != nil {
		l.Error("failed to write dns response", "error", err)
	}

	if s.opts.Observer != nil {
		s.opts.Observer.DNSRequestServed(s.opts.Endpoint, resp.Rcode, time.Since(start))
	}
}

func (s *DNSServer) handle(req *dns.Msg, clientIP string) (resp *dns.Msg, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp, err = nil, fmt.Errorf("dns handler panic: %v", r)
		}
	}()

	if s.sem != nil {
		if err = s.sem.Acquire(s.ctx, 1); err != nil {
			return nil, err
		}
		defer s.sem.Release(1)
	}

	resp, err = s.handler(s.ctx, req, clientIP)
	if err == nil && resp == nil {
		err = errors.New("dns handler returned no response")
	}
	return resp, err
}

func addrIP(addr net.Addr) string {
	switch a := addr.(type) {
	case *net.UDPAddr:
		return a.IP.String()
	case *net.TCPAddr:
		return a.IP.String()
	case nil:
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}

func questionString(req *dns.Msg) string {
	qs := make([]string, 0, len(req.Question))
	for _, q := range req.Question {
		qs = append(qs, strings.TrimPrefix(q.String(), ";"))
	}
	return strings.Join(qs, ", ")
}
