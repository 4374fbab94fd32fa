// Package socket serves domain lookups over a unix stream socket.
package socket

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/TomasB/whatcountry/internal/geo"
	"github.com/TomasB/whatcountry/internal/metrics"
)

const (
	// Marker introduces the domain in a request.
	Marker = "/what-is-country/"

	// InvalidRequestReply is written, without any HTTP framing, when a
	// request carries no marker.
	InvalidRequestReply = "Invalid request format.\n"

	transport  = "socket"
	readChunk  = 512
	defaultMax = 8 << 10
)

// ErrInvalidRequest is returned by ParseDomain when the marker is missing.
var ErrInvalidRequest = errors.New("invalid request format")

// Looker runs the lookup pipeline for one domain.
type Looker interface {
	Lookup(ctx context.Context, transport, domain string) geo.Result
}

// Options tunes a Handler.
type Options struct {
	MaxRequestBytes int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	Metrics         *metrics.Metrics
}

// Handler answers one request per connection.
type Handler struct {
	looker       Looker
	maxRequest   int
	readTimeout  time.Duration
	writeTimeout time.Duration
	metrics      *metrics.Metrics
}

// NewHandler creates a connection handler.
func NewHandler(looker Looker, opts Options) *Handler {
	if opts.MaxRequestBytes <= 0 {
		opts.MaxRequestBytes = defaultMax
	}
	return &Handler{
		looker:       looker,
		maxRequest:   opts.MaxRequestBytes,
		readTimeout:  opts.ReadTimeout,
		writeTimeout: opts.WriteTimeout,
		metrics:      opts.Metrics,
	}
}

// ParseDomain extracts the domain that follows the marker. The domain ends
// at the first newline or the end of the request; of that text only the
// first whitespace-delimited token is kept, which drops the protocol
// version of an HTTP request line.
func ParseDomain(req []byte) (string, error) {
	i := bytes.Index(req, []byte(Marker))
	if i < 0 {
		return "", ErrInvalidRequest
	}
	rest := req[i+len(Marker):]
	if j := bytes.IndexByte(rest, '\n'); j >= 0 {
		rest = rest[:j]
	}
	fields := strings.Fields(string(rest))
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], nil
}

// FrameResponse wraps a JSON body in a minimal HTTP/1.1 response.
func FrameResponse(body []byte) []byte {
	var b bytes.Buffer
	b.Grow(len(body) + 160)
	b.WriteString("HTTP/1.1 200 OK\r\n")
	b.WriteString("Content-Type: application/json\r\n")
	b.WriteString("Content-Length: " + strconv.Itoa(len(body)) + "\r\n")
	b.WriteString("Access-Control-Allow-Origin: *\r\n")
	b.WriteString("Connection: close\r\n")
	b.WriteString("\r\n")
	b.Write(body)
	return b.Bytes()
}

// ReadRequest reads until the first newline, EOF, limit bytes or the read
// deadline. Bytes past limit are not read. A deadline that expires after some
// data arrived ends the request rather than failing it.
func ReadRequest(conn net.Conn, limit int, timeout time.Duration) ([]byte, error) {
	if timeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return nil, fmt.Errorf("failed to set read deadline: %w", err)
		}
	}

	buf := make([]byte, 0, min(readChunk, limit))
	for len(buf) < limit {
		if len(buf) == cap(buf) {
			grown := make([]byte, len(buf), min(2*cap(buf), limit))
			copy(grown, buf)
			buf = grown
		}
		n, err := conn.Read(buf[len(buf):cap(buf)])
		buf = buf[:len(buf)+n]
		if bytes.IndexByte(buf[len(buf)-n:], '\n') >= 0 {
			break
		}
		if err != nil {
			var netErr net.Error
			if errors.Is(err, io.EOF) || (errors.As(err, &netErr) && netErr.Timeout() && len(buf) > 0) {
				break
			}
			return buf, err
		}
	}
	return buf, nil
}

// Serve handles one accepted connection. It does not close conn.
func (h *Handler) Serve(ctx context.Context, conn net.Conn, logger *slog.Logger) {
	start := time.Now()
	result := "ok"
	defer func() {
		h.metrics.ObserveRequest(transport, result, time.Since(start))
	}()

	req, err := ReadRequest(conn, h.maxRequest, h.readTimeout)
	if err != nil {
		logger.Error("failed to read request", "error", err)
		result = "read_error"
		return
	}
	logger.Debug("request received", "request", string(req))

	domain, err := ParseDomain(req)
	if err != nil {
		logger.Warn("invalid request format", "bytes", len(req))
		result = "invalid"
		if err := h.write(conn, []byte(InvalidRequestReply)); err != nil {
			logger.Error("failed to write response", "error", err)
			result = "write_error"
		}
		return
	}

	lookup := h.looker.Lookup(ctx, transport, domain)
	body, err := geo.EncodeBody(lookup)
	if err != nil {
		logger.Error("failed to encode response", "domain", domain, "error", err)
		result = "encode_error"
		return
	}

	if err := h.write(conn, FrameResponse(body)); err != nil {
		logger.Error("failed to write response", "domain", domain, "error", err)
		result = "write_error"
		return
	}

	logger.Info("request completed",
		"domain", domain,
		"ips", lookup.Addresses.Joined(),
		"country", lookup.CountryCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

func (h *Handler) write(conn net.Conn, p []byte) error {
	if h.writeTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(h.writeTimeout)); err != nil {
			return fmt.Errorf("failed to set write deadline: %w", err)
		}
	}
	_, err := conn.Write(p)
	return err
}
