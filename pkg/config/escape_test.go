package config

import "testing"

func TestEscapePeriods(t *testing.T) {
	in := "SELECT ?item WHERE {?item wdt:P14 wd:Q1. ?item rdfs:label ?l.}"
	want := "SELECT ?item WHERE {?item wdt:P14 wd:Q1_-_ ?item rdfs:label ?l_-_}"
	if got := EscapePeriods(in); got != want {
		t.Errorf("EscapePeriods() = %q, want %q", got, want)
	}
	if got := UnescapePeriods(want); got != in {
		t.Errorf("UnescapePeriods() = %q, want %q", got, in)
	}
}

func TestEscapeRoundTrip(t *testing.T) {
	inputs := []string{
		"",
		"no periods at all",
		"PREFIX wd: <http://www.wikidata.org/entity/>",
		"already _-_ escaped looking",
		"_-.",
		"-.",
		"._-_.",
		`FILTER(REGEX(?x, "\\d+\.\d"))`,
		`trailing backslash \`,
		"2024-01-01T00:00:00Z",
		"äöü.….",
	}

	for _, in := range inputs {
		got := UnescapePeriods(EscapePeriods(in))
		if got != in {
			t.Errorf("round trip of %q = %q", in, got)
		}
	}
}

func TestEscapePeriods_NoLiteralPeriod(t *testing.T) {
	for _, in := range []string{"a.b.c", "x. y .z", "..."} {
		for _, r := range EscapePeriods(in) {
			if r == '.' {
				t.Errorf("EscapePeriods(%q) still contains a period", in)
			}
		}
	}
}

func TestUnescapeLines(t *testing.T) {
	if UnescapeLines(nil) != nil {
		t.Error("nil lines should stay nil")
	}
	lines := []string{"a.b", "c"}
	got := UnescapeLines(EscapeLines(lines))
	if len(got) != 2 || got[0] != "a.b" || got[1] != "c" {
		t.Errorf("lines round trip = %v", got)
	}
}
