// Package voiceclient uploads a recorded utterance to the voice server and
// downloads the spoken reply. The request is framed by hand over a raw
// TLS (or TCP) stream so the WAV payload can be streamed in chunks without
// being copied into a single body buffer.
package voiceclient

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/hammamikhairi/talkbox/internal/domain"
	"github.com/hammamikhairi/talkbox/internal/logger"
)

// ── Types ────────────────────────────────────────────────────────

// Settings locate the voice server.
type Settings struct {
	Host            string
	Port            int
	TLS             bool
	VoiceEndpoint   string
	StatusEndpoint  string
	ConnectTimeout  time.Duration
	ResponseTimeout time.Duration
}

// ResponseFile is where the downloaded reply is written.
type ResponseFile interface {
	Create() (io.WriteCloser, error)
	Path() string
}

// Cost is the per-stage cost breakdown the server reports in X-*-Cost
// headers. Informational only.
type Cost struct {
	STT, LLM, TTS, Total float64
}

// Result is a successful exchange.
type Result struct {
	SessionID     string // empty when the server sent none
	Transcription string
	AudioPath     string
	AudioBytes    int64
	Cost          Cost
}

// StatusError is a non-200 reply. Body holds the first bytes of the error
// body for diagnostics.
type StatusError struct {
	Code int
	Line string
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %d (%s)", domain.ErrHTTPStatus, e.Code, strings.TrimSpace(e.Line))
}

// Unwrap lets errors.Is(err, domain.ErrHTTPStatus) match.
func (e *StatusError) Unwrap() error { return domain.ErrHTTPStatus }

// ── Client ───────────────────────────────────────────────────────

// Option configures the Client.
type Option func(*Client)

// WithYield installs the hook run between network chunks and poll
// intervals. The controller uses it to animate the LED.
func WithYield(fn func()) Option {
	return func(c *Client) { c.yield = fn }
}

// WithHeaderDump logs every response header at debug level.
func WithHeaderDump(enabled bool) Option {
	return func(c *Client) { c.dumpHeaders = enabled }
}

// Client sends voice requests. It is used from the controller loop only.
type Client struct {
	cfg   Settings
	store ResponseFile
	clock domain.Clock
	log   *logger.Logger

	yield       func()
	dumpHeaders bool
}

// New creates a voice client writing replies to store.
func New(cfg Settings, store ResponseFile, clock domain.Clock, log *logger.Logger, opts ...Option) *Client {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.ResponseTimeout <= 0 {
		cfg.ResponseTimeout = domain.ResponseTimeout
	}
	c := &Client{
		cfg:   cfg,
		store: store,
		clock: clock,
		log:   log,
		yield: func() {},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Send uploads wav (a complete framed WAV file) with the cached session id
// and stores the MP3 reply. On failure the response file is either
// untouched or truncated; the next successful Send overwrites it.
func (c *Client) Send(ctx context.Context, wav []byte, sessionIn string) (*Result, error) {
	parts := BuildParts(Boundary(c.clock.Millis()), sessionIn)
	total := parts.ContentLength(len(wav))

	c.log.Info("POST %s%s (%d bytes)", c.address(), c.cfg.VoiceEndpoint, len(wav))

	conn, err := c.dial(ctx)
	if err != nil {
		c.log.Error("connection failed: %v", err)
		return nil, fmt.Errorf("%w: %w", domain.ErrConnect, err)
	}
	defer conn.Close()

	// Cancellation unblocks whatever read or write is in flight.
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	if err := c.writeRequest(conn, parts, wav, total); err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	c.log.Info("request sent, waiting for response...")

	pc := &pollConn{conn: conn, ctx: ctx, yield: c.yield}
	pc.arm(c.cfg.ResponseTimeout, false)
	br := bufio.NewReaderSize(pc, domain.ReadChunk)

	if _, err := br.Peek(1); err != nil {
		if errors.Is(err, domain.ErrResponseTimeout) {
			c.log.Error("response timeout")
		}
		return nil, fmt.Errorf("await response: %w", err)
	}

	code, line, err := readStatus(br)
	if err != nil {
		return nil, err
	}
	c.log.Info("status: %s", strings.TrimSpace(line))
	if code != 200 {
		body := drain(pc, br)
		c.log.Error("error status %d: %s", code, body)
		return nil, &StatusError{Code: code, Line: line, Body: body}
	}

	res := &Result{AudioPath: c.store.Path()}
	length, err := c.readHeaders(br, res)
	if err != nil {
		return nil, err
	}

	c.log.Info("response: %d bytes", length)
	if res.Transcription != "" {
		c.log.Info("transcription: %s", res.Transcription)
	}
	if length <= 0 {
		c.log.Warn("no audio content in response")
		return nil, domain.ErrNoContent
	}

	n, err := c.download(br, length)
	res.AudioBytes = n
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) address() string {
	return net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))
}

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	d := &net.Dialer{Timeout: c.cfg.ConnectTimeout}
	if !c.cfg.TLS {
		return d.DialContext(ctx, "tcp", c.address())
	}
	td := &tls.Dialer{
		NetDialer: d,
		Config: &tls.Config{
			ServerName:         c.cfg.Host,
			InsecureSkipVerify: true, // intranet server with a self-signed certificate
		},
	}
	return td.DialContext(ctx, "tcp", c.address())
}

// writeRequest streams the request line, headers and the three body
// regions, yielding after every WAV chunk.
func (c *Client) writeRequest(w io.Writer, parts Parts, wav []byte, total int) error {
	var hdr strings.Builder
	fmt.Fprintf(&hdr, "POST %s HTTP/1.1\r\n", c.cfg.VoiceEndpoint)
	fmt.Fprintf(&hdr, "Host: %s\r\n", c.cfg.Host)
	fmt.Fprintf(&hdr, "Content-Type: %s\r\n", parts.ContentType())
	fmt.Fprintf(&hdr, "Content-Length: %d\r\n", total)
	hdr.WriteString("Connection: close\r\n\r\n")

	if _, err := io.WriteString(w, hdr.String()); err != nil {
		return err
	}
	if _, err := w.Write(parts.Head); err != nil {
		return err
	}
	for sent := 0; sent < len(wav); {
		end := min(sent+domain.ReadChunk, len(wav))
		if _, err := w.Write(wav[sent:end]); err != nil {
			return err
		}
		sent = end
		c.yield()
	}
	if _, err := w.Write(parts.Mid); err != nil {
		return err
	}
	_, err := w.Write(parts.Tail)
	return err
}

// readHeaders consumes header lines up to the blank line and returns the
// declared Content-Length (0 when absent or unparsable).
func (c *Client) readHeaders(br *bufio.Reader, res *Result) (int64, error) {
	var length int64
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return 0, fmt.Errorf("read headers: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			return length, nil
		}
		if c.dumpHeaders {
			c.log.Debug("  %s", line)
		}

		name, value, ok := splitHeader(line)
		if !ok {
			continue
		}
		switch name {
		case "X-Session-Id":
			res.SessionID = value
		case "X-Transcription":
			res.Transcription = value
		case "Content-Length":
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil || n < 0 {
				n = 0
			}
			length = n
		default:
			parseCost(&res.Cost, name, value)
		}
	}
}

// download streams exactly length bytes into a freshly truncated response
// file.
func (c *Client) download(r io.Reader, length int64) (int64, error) {
	f, err := c.store.Create()
	if err != nil {
		c.log.Error("failed to open %s for writing: %v", c.store.Path(), err)
		return 0, fmt.Errorf("%w: %w", domain.ErrStorage, err)
	}
	c.log.Info("saving %d bytes to %s...", length, c.store.Path())

	buf := make([]byte, domain.ReadChunk)
	var written int64
	var readErr error
	for written < length {
		want := min(int64(len(buf)), length-written)
		n, err := r.Read(buf[:want])
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				f.Close()
				return written, fmt.Errorf("%w: %w", domain.ErrStorage, werr)
			}
			written += int64(n)
			if written%10240 < int64(n) {
				c.log.Debug("progress: %d/%d bytes", written, length)
			}
		}
		c.yield()
		if err != nil {
			readErr = err
			break
		}
	}

	if err := f.Close(); err != nil {
		return written, fmt.Errorf("%w: %w", domain.ErrStorage, err)
	}
	c.log.Info("saved %d bytes", written)

	if written != length {
		c.log.Warn("expected %d bytes, got %d", length, written)
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return written, fmt.Errorf("%w: %w", domain.ErrTruncated, readErr)
		}
		return written, domain.ErrTruncated
	}
	return written, nil
}

// ── Parsing helpers ──────────────────────────────────────────────

// readStatus reads the status line and extracts its three-digit code.
func readStatus(br *bufio.Reader) (int, string, error) {
	line, err := br.ReadString('\n')
	if err != nil && line == "" {
		return 0, "", fmt.Errorf("read status line: %w", err)
	}
	return statusCode(line), line, nil
}

// statusCode returns the numeric status of "HTTP/1.1 200 OK", or 0.
func statusCode(line string) int {
	fields := strings.Fields(line)
	if len(fields) < 2 || len(fields[1]) != 3 {
		return 0
	}
	code, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0
	}
	return code
}

// splitHeader splits on the first ':' and trims both sides. Names keep
// their case.
func splitHeader(line string) (name, value string, ok bool) {
	name, value, ok = strings.Cut(line, ":")
	if !ok {
		return "", "", false
	}
	return strings.TrimSpace(name), strings.TrimSpace(value), true
}

// parseCost picks up the cost headers. Their case is not fixed by the
// server framework, so they are matched case-insensitively.
func parseCost(c *Cost, name, value string) {
	var dst *float64
	switch strings.ToLower(name) {
	case "x-stt-cost":
		dst = &c.STT
	case "x-llm-cost":
		dst = &c.LLM
	case "x-tts-cost":
		dst = &c.TTS
	case "x-total-cost":
		dst = &c.Total
	default:
		return
	}
	if v, err := strconv.ParseFloat(value, 64); err == nil {
		*dst = v
	}
}

// drain reads what the server sends after an error status, for the log.
func drain(pc *pollConn, br *bufio.Reader) string {
	pc.arm(time.Second, true)
	b, _ := io.ReadAll(io.LimitReader(br, 512))
	return strings.TrimSpace(string(b))
}

// ── Polling reader ───────────────────────────────────────────────

// pollConn reads in short deadline slices so the yield hook keeps running
// while the socket is idle. An armed limit turns a silent peer into
// ErrResponseTimeout; unless sticky, the limit is lifted by the first byte.
type pollConn struct {
	conn  net.Conn
	ctx   context.Context
	yield func()

	limit  time.Time
	sticky bool
}

func (p *pollConn) arm(d time.Duration, sticky bool) {
	p.limit = time.Now().Add(d)
	p.sticky = sticky
}

func (p *pollConn) Read(b []byte) (int, error) {
	for {
		if err := p.ctx.Err(); err != nil {
			return 0, err
		}
		if !p.limit.IsZero() && !time.Now().Before(p.limit) {
			return 0, domain.ErrResponseTimeout
		}

		_ = p.conn.SetReadDeadline(time.Now().Add(domain.PollInterval))
		n, err := p.conn.Read(b)
		if n > 0 {
			if !p.sticky {
				p.limit = time.Time{}
			}
			return n, nil
		}
		var ne net.Error
		if err != nil && !(errors.As(err, &ne) && ne.Timeout()) {
			return 0, err
		}
		p.yield()
	}
}
