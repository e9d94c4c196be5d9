package urlparse

import "testing"

func TestParseScenario1(t *testing.T) {
	p, err := ParseString("http://u:p@host:8080/a/b?q=1#x")
	if err != nil {
		t.Fatal(err)
	}
	want := Parsed{
		Protocol: "http",
		User:     "u",
		Pass:     "p",
		Host:     "host",
		Port:     "8080",
		Path:     "a/b",
		Search:   "q=1",
		Hash:     "x",
	}
	if p != want {
		t.Fatalf("got %+v want %+v", p, want)
	}
}

func TestParseNoUserInfoBareColon(t *testing.T) {
	p, err := ParseString("http://host:49000/tr64/control")
	if err != nil {
		t.Fatal(err)
	}
	if p.Host != "host" || p.Port != "49000" || p.Path != "tr64/control" {
		t.Fatalf("got %+v", p)
	}
}

func TestParseTokensAreZeroCopy(t *testing.T) {
	buf := []byte("http://example.com/path?q=v#f")
	events, err := Parse(buf)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range events {
		s := e.Token.Slice(buf)
		if s != string(buf[e.Token.Start:e.Token.End()]) {
			t.Fatalf("token %v not zero copy", e)
		}
	}
}

func TestParseNoPath(t *testing.T) {
	p, err := ParseString("http://host:80")
	if err != nil {
		t.Fatal(err)
	}
	if p.Host != "host" || p.Port != "80" || p.Path != "" {
		t.Fatalf("got %+v", p)
	}
}

func TestParseEmptyIsInvalid(t *testing.T) {
	if _, err := ParseString(""); err == nil {
		t.Fatal("expected error for empty URL")
	}
}
