package escape

import "testing"

func TestXMLRoundTrip(t *testing.T) {
	cases := []string{
		"",
		"plain text",
		`"quoted" & 'apostrophe' <tag>`,
		"café éè",
	}
	for _, s := range cases {
		esc, _ := EscapeXML(s)
		got, _, err := UnescapeXML(esc, nil)
		if err != nil {
			t.Fatalf("UnescapeXML(%q) error: %v", esc, err)
		}
		if got != s {
			t.Errorf("round trip mismatch: got %q want %q", got, s)
		}
	}
}

func TestEscapeXMLNoChange(t *testing.T) {
	s := "no special chars here"
	out, changed := EscapeXML(s)
	if changed {
		t.Fatalf("EscapeXML reported changed for %q", s)
	}
	if out != s {
		t.Fatalf("EscapeXML returned different string without reporting a change")
	}
}

func TestUnescapeXMLNumericRefs(t *testing.T) {
	got, _, err := UnescapeXML("&#65;&#x42;", nil)
	if err != nil {
		t.Fatal(err)
	}
	if got != "AB" {
		t.Fatalf("got %q want AB", got)
	}
}

func TestUnescapeXMLUnknownEntity(t *testing.T) {
	_, _, err := UnescapeXML("&bogus;", nil)
	if err == nil {
		t.Fatal("expected error for unknown entity")
	}
}

func TestURLRoundTrip(t *testing.T) {
	cases := []string{
		"",
		"abcXYZ019-_.~",
		"a b/c?d#e",
	}
	for _, s := range cases {
		esc, _ := EscapeURL(s)
		got, _, err := UnescapeURL(esc)
		if err != nil {
			t.Fatalf("UnescapeURL(%q) error: %v", esc, err)
		}
		if got != s {
			t.Errorf("round trip mismatch: got %q want %q", got, s)
		}
	}
}

func TestUnescapeURLRejectsControlBytes(t *testing.T) {
	if _, _, err := UnescapeURL("a%00b"); err == nil {
		t.Fatal("expected error for decoded NUL byte")
	}
	if _, _, err := UnescapeURL("a\tb"); err == nil {
		t.Fatal("expected error for literal control byte")
	}
}

func TestDefaultEntitiesLookup(t *testing.T) {
	// Sanity check the default entity map resolves a predefined entity.
	m := DefaultEntities()
	if _, ok := m.lookup("amp"); !ok {
		t.Fatal("default entity map missing amp")
	}
}
