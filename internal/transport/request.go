package transport

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/tr64go/tr64c/internal/digest"
	"github.com/tr64go/tr64c/internal/httpparse"
)

// Response is a completed HTTP response together with the raw buffer its
// tokens are borrowed from, so callers can call Message.Get/Body.Slice
// after Do returns.
type Response struct {
	Message *httpparse.Message
	Buf     []byte
}

// Header is a single request header to send; order is preserved on the
// wire since some embedded TR-064 stacks are picky about Host coming
// first.
type Header struct {
	Name  string
	Value string
}

// Do sends one HTTP request and returns the parsed response, transparently
// retrying exactly once with a Digest Authorization header if the gateway
// answers 401 and a username/password are configured (the auth/escape contract). The
// retry is one-shot per the stated scope Non-goals: a second 401 is surfaced to the
// caller as an HTTPError rather than looped on.
func (c *Context) Do(ctx context.Context, method, path string, headers []Header, body []byte) (*Response, error) {
	preemptAuth := ""
	if c.digestState != nil && c.User != "" {
		state, err := digest.NewState(c.digestState)
		if err == nil {
			preemptAuth = state.Authorization(digest.Credentials{
				User:   c.User,
				Pass:   c.Pass,
				Method: method,
				URI:    path,
			})
		}
	}

	resp, err := c.doOnce(ctx, method, path, headers, body, preemptAuth)
	if err != nil {
		return nil, err
	}
	if resp.Message.StatusCode != 401 {
		return resp, nil
	}
	if c.User == "" {
		return nil, &HTTPError{Status: 401, Reason: "authentication required but no credentials configured"}
	}
	wwwAuth, ok := resp.Message.Get(resp.Buf, "WWW-Authenticate")
	if !ok {
		return nil, &HTTPError{Status: 401, Reason: "missing WWW-Authenticate header"}
	}
	challenge, err := digest.ParseChallenge(wwwAuth)
	if err != nil {
		return nil, fmt.Errorf("transport: %w", err)
	}
	state, err := digest.NewState(challenge)
	if err != nil {
		return nil, err
	}
	c.digestState = challenge
	authHeader := state.Authorization(digest.Credentials{
		User:   c.User,
		Pass:   c.Pass,
		Method: method,
		URI:    path,
	})

	retry, err := c.doOnce(ctx, method, path, headers, body, authHeader)
	if err != nil {
		return nil, err
	}
	if retry.Message.StatusCode == 401 {
		return nil, &HTTPError{Status: 401, Reason: "authentication rejected"}
	}
	return retry, nil
}

func (c *Context) doOnce(ctx context.Context, method, path string, headers []Header, body []byte, authHeader string) (*Response, error) {
	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	req := c.buildRequest(method, path, headers, body, authHeader)

	conn := c.conn
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	deadline := time.Now().Add(c.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return nil, &NetworkError{Operation: "set write deadline", Err: err}
	}
	if _, err := c.conn.Write(req); err != nil {
		c.Reset()
		return nil, &NetworkError{Operation: "send", Err: err}
	}

	resp, err := c.readResponse(ctx, deadline)
	if err != nil {
		c.Reset()
		return nil, err
	}
	// TR-064 gateways routinely close the connection after each response;
	// the transport contract treats this as normal and reconnects lazily on next Do.
	if v, ok := resp.Message.Get(resp.Buf, "Connection"); ok && strings.EqualFold(v, "close") {
		c.Reset()
	}
	return resp, nil
}

func (c *Context) buildRequest(method, path string, headers []Header, body []byte, authHeader string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s HTTP/1.1\r\n", method, path)
	fmt.Fprintf(&b, "Host: %s\r\n", c.Host)
	for _, h := range headers {
		fmt.Fprintf(&b, "%s: %s\r\n", h.Name, h.Value)
	}
	if authHeader != "" {
		fmt.Fprintf(&b, "Authorization: %s\r\n", authHeader)
	}
	fmt.Fprintf(&b, "Content-Length: %d\r\n", len(body))
	b.WriteString("Connection: keep-alive\r\n")
	b.WriteString("\r\n")
	out := make([]byte, 0, b.Len()+len(body))
	out = append(out, b.String()...)
	out = append(out, body...)
	return out
}

// readResponse accumulates bytes into c.buffer and re-parses with
// internal/httpparse after every read, growing the buffer to the exact
// size httpparse.Error.Expected reports once headers are known, and
// failing once the accumulated size would exceed MaxResponseSize (spec
// §4.E).
func (c *Context) readResponse(ctx context.Context, deadline time.Time) (*Response, error) {
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return nil, &NetworkError{Operation: "set read deadline", Err: err}
	}
	c.buffer = c.buffer[:0]
	chunk := make([]byte, 4096)

	for {
		n, err := c.conn.Read(chunk)
		if n > 0 {
			c.buffer = append(c.buffer, chunk[:n]...)
		}
		if n > 0 {
			msg, perr := httpparse.Parse(c.buffer)
			if perr == nil {
				return &Response{Message: msg, Buf: c.buffer}, nil
			}
			herr, ok := perr.(*httpparse.Error)
			if !ok || herr.Result != httpparse.UnexpectedEnd {
				return nil, fmt.Errorf("transport: malformed response: %w", perr)
			}
			want := herr.Expected
			if want == 0 {
				want = int64(len(c.buffer)) + int64(cap(chunk))
			}
			if want > MaxResponseSize {
				return nil, &HTTPError{Status: 0, Reason: fmt.Sprintf("response exceeds max size %d bytes", MaxResponseSize)}
			}
			if herr.Expected > int64(cap(c.buffer)) {
				grown := make([]byte, len(c.buffer), herr.Expected)
				copy(grown, c.buffer)
				c.buffer = grown
			}
		}
		if err != nil {
			if err == io.EOF {
				msg, perr := httpparse.Parse(c.buffer)
				if perr == nil {
					return &Response{Message: msg, Buf: c.buffer}, nil
				}
				return nil, fmt.Errorf("transport: connection closed before full response: %w", perr)
			}
			return nil, &NetworkError{Operation: "receive", Err: err}
		}
		if int64(len(c.buffer)) >= MaxResponseSize {
			return nil, &HTTPError{Status: 0, Reason: fmt.Sprintf("response exceeds max size %d bytes", MaxResponseSize)}
		}
	}
}
