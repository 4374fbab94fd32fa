package resolve

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestServer(t *testing.T, handler dns.HandlerFunc) string {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	started := make(chan struct{})
	server := &dns.Server{PacketConn: pc, Handler: handler, NotifyStartedFunc: func() { close(started) }}
	go server.ActivateAndServe()
	<-started
	t.Cleanup(func() { server.Shutdown() })

	return pc.LocalAddr().String()
}

func answer(t *testing.T, records ...string) dns.HandlerFunc {
	return func(w dns.ResponseWriter, req *dns.Msg) {
		resp := new(dns.Msg)
		resp.SetReply(req)
		for _, s := range records {
			rr, err := dns.NewRR(s)
			if err != nil {
				t.Errorf("bad record %q: %v", s, err)
				continue
			}
			resp.Answer = append(resp.Answer, rr)
		}
		w.WriteMsg(resp)
	}
}

func TestDNSResolver_Resolve(t *testing.T) {
	addr := startTestServer(t, answer(t,
		"example.test. 300 IN CNAME edge.example.test.",
		"edge.example.test. 300 IN A 93.184.216.34",
		"edge.example.test. 300 IN A 93.184.216.35",
	))

	r, err := NewDNSResolver([]string{addr}, time.Second)
	require.NoError(t, err)

	list, err := r.Resolve(context.Background(), "example.test")
	require.NoError(t, err)
	assert.Equal(t, AddressList{"93.184.216.34", "93.184.216.35"}, list)
	assert.Equal(t, "93.184.216.34", list.First())
}

func TestDNSResolver_NameError(t *testing.T) {
	addr := startTestServer(t, func(w dns.ResponseWriter, req *dns.Msg) {
		resp := new(dns.Msg)
		resp.SetRcode(req, dns.RcodeNameError)
		w.WriteMsg(resp)
	})

	r, err := NewDNSResolver([]string{addr}, time.Second)
	require.NoError(t, err)

	list, err := r.Resolve(context.Background(), "missing.test")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestDNSResolver_FallsThroughServers(t *testing.T) {
	failing := startTestServer(t, func(w dns.ResponseWriter, req *dns.Msg) {
		resp := new(dns.Msg)
		resp.SetRcode(req, dns.RcodeServerFailure)
		w.WriteMsg(resp)
	})
	working := startTestServer(t, answer(t, "example.test. 300 IN A 192.0.2.1"))

	r, err := NewDNSResolver([]string{failing, working}, time.Second)
	require.NoError(t, err)

	list, err := r.Resolve(context.Background(), "example.test")
	require.NoError(t, err)
	assert.Equal(t, AddressList{"192.0.2.1"}, list)
}

func TestDNSResolver_AllServersFail(t *testing.T) {
	failing := startTestServer(t, func(w dns.ResponseWriter, req *dns.Msg) {
		resp := new(dns.Msg)
		resp.SetRcode(req, dns.RcodeRefused)
		w.WriteMsg(resp)
	})

	r, err := NewDNSResolver([]string{failing}, time.Second)
	require.NoError(t, err)

	list, err := r.Resolve(context.Background(), "example.test")
	assert.True(t, errors.Is(err, ErrResolveFailed))
	assert.Empty(t, list)
}

func TestDNSResolver_InvalidDomain(t *testing.T) {
	r, err := NewDNSResolver([]string{"127.0.0.1:1"}, time.Second)
	require.NoError(t, err)

	_, err = r.Resolve(context.Background(), "")
	assert.ErrorIs(t, err, ErrResolveFailed)
}

func TestWithDefaultPort(t *testing.T) {
	assert.Equal(t, "8.8.8.8:53", withDefaultPort("8.8.8.8"))
	assert.Equal(t, "8.8.8.8:5353", withDefaultPort("8.8.8.8:5353"))
	assert.Equal(t, "[2001:db8::1]:53", withDefaultPort("2001:db8::1"))
}
