package ssdp

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"
)

func TestClampMX(t *testing.T) {
	cases := []struct {
		timeout time.Duration
		want    int
	}{
		{500 * time.Millisecond, minMX},
		{2 * time.Second, 1},
		{5 * time.Second, 4},
		{30 * time.Second, maxMX},
	}
	for _, c := range cases {
		if got := clampMX(c.timeout); got != c.want {
			t.Errorf("clampMX(%v) = %d, want %d", c.timeout, got, c.want)
		}
	}
}

func TestBuildMSearchContainsTarget(t *testing.T) {
	req := string(buildMSearch(3))
	if !strings.HasPrefix(req, "M-SEARCH * HTTP/1.1\r\n") {
		t.Fatalf("unexpected request line: %q", req)
	}
	if !strings.Contains(req, "ST: "+TargetDevice+"\r\n") {
		t.Fatalf("missing ST header: %q", req)
	}
	if !strings.Contains(req, "MX: 3\r\n") {
		t.Fatalf("missing MX header: %q", req)
	}
}

func TestParseReplyMatchesTarget(t *testing.T) {
	reply := "HTTP/1.1 200 OK\r\n" +
		"ST: " + TargetDevice + "\r\n" +
		"SERVER: FRITZ!OS UPnP/1.0\r\n" +
		"LOCATION: http://fritz.box:49000/tr64desc.xml\r\n" +
		"\r\n"
	rec, ok := parseReply([]byte(reply))
	if !ok {
		t.Fatal("expected match")
	}
	if rec.Server != "FRITZ!OS UPnP/1.0" || rec.Location != "http://fritz.box:49000/tr64desc.xml" {
		t.Fatalf("got %+v", rec)
	}
}

func TestParseReplyRejectsMismatchedST(t *testing.T) {
	reply := "HTTP/1.1 200 OK\r\n" +
		"ST: urn:dslforum-org:device:SomethingElse:1\r\n" +
		"LOCATION: http://fritz.box:49000/tr64desc.xml\r\n" +
		"\r\n"
	if _, ok := parseReply([]byte(reply)); ok {
		t.Fatal("expected no match for mismatched ST")
	}
}

func TestParseReplyRejectsNon200(t *testing.T) {
	reply := "HTTP/1.1 404 Not Found\r\n\r\n"
	if _, ok := parseReply([]byte(reply)); ok {
		t.Fatal("expected no match for non-200 status")
	}
}

func TestDiscoverTimesOutWithoutReplies(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping multicast-bound discovery test in short mode")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	records, err := Discover(ctx, nil, net.IPv4zero, 1500*time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records without a live gateway, got %+v", records)
	}
}
