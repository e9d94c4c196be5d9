package httpparse

import "testing"

func TestParseScenario2(t *testing.T) {
	buf := []byte("HTTP/1.1 200 OK\r\nContent-Length: 3\r\n\r\nabc")
	msg, err := Parse(buf)
	if err != nil {
		t.Fatal(err)
	}
	if msg.IsRequest {
		t.Fatal("expected response")
	}
	if msg.Version.Slice(buf) != "HTTP/1.1" {
		t.Fatalf("version = %q", msg.Version.Slice(buf))
	}
	if msg.StatusCode != 200 {
		t.Fatalf("status = %d", msg.StatusCode)
	}
	if msg.Reason.Slice(buf) != "OK" {
		t.Fatalf("reason = %q", msg.Reason.Slice(buf))
	}
	if v, ok := msg.Get(buf, "Content-Length"); !ok || v != "3" {
		t.Fatalf("content-length = %q ok=%v", v, ok)
	}
	if msg.Body.Slice(buf) != "abc" {
		t.Fatalf("body = %q", msg.Body.Slice(buf))
	}
}

func TestParseTruncatedBodyUnexpectedEnd(t *testing.T) {
	buf := []byte("HTTP/1.1 200 OK\r\nContent-Length: 10\r\n\r\nabc")
	_, err := Parse(buf)
	perr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T (%v)", err, err)
	}
	if perr.Result != UnexpectedEnd {
		t.Fatalf("result = %v", perr.Result)
	}
	if perr.Expected != int64(len("HTTP/1.1 200 OK\r\nContent-Length: 10\r\n\r\n"))+10 {
		t.Fatalf("expected length = %d", perr.Expected)
	}
}

func TestParseNoContentLengthTakesRemainder(t *testing.T) {
	buf := []byte("HTTP/1.1 200 OK\r\n\r\nhello world")
	msg, err := Parse(buf)
	if err != nil {
		t.Fatal(err)
	}
	if msg.Body.Slice(buf) != "hello world" {
		t.Fatalf("body = %q", msg.Body.Slice(buf))
	}
}

func TestParseDuplicateContentLengthRejected(t *testing.T) {
	buf := []byte("HTTP/1.1 200 OK\r\nContent-Length: 1\r\nContent-Length: 2\r\n\r\nx")
	_, err := Parse(buf)
	perr, ok := err.(*Error)
	if !ok || perr.Result != InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

func TestParseRequestLine(t *testing.T) {
	buf := []byte("POST /tr64/control HTTP/1.1\r\nHost: gw\r\nContent-Length: 0\r\n\r\n")
	msg, err := Parse(buf)
	if err != nil {
		t.Fatal(err)
	}
	if !msg.IsRequest {
		t.Fatal("expected request")
	}
	if msg.Method.Slice(buf) != "POST" || msg.Target.Slice(buf) != "/tr64/control" {
		t.Fatalf("method=%q target=%q", msg.Method.Slice(buf), msg.Target.Slice(buf))
	}
}

func TestParseControlByteRejected(t *testing.T) {
	buf := []byte("HTTP/1.1 200 OK\r\nX-Bad:\x01value\r\n\r\n")
	_, err := Parse(buf)
	if err == nil {
		t.Fatal("expected error for control byte in header value")
	}
}
