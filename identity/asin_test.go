package identity

import "testing"

func TestCleanASIN(t *testing.T) {
	cases := map[string]string{
		"\tB0DN171184":  "B0DN171184",
		"B0DXPL5XHF":    "B0DXPL5XHF",
		" b0dbhd2f5r\n": "B0DBHD2F5R",
		"B0F6 73HNLP\r": "B0F673HNLP",
		"":              "",
	}
	for in, want := range cases {
		if got := CleanASIN(in); got != want {
			t.Fatalf("CleanASIN(%q)=%q want %q", in, got, want)
		}
	}
}

func TestValidASIN(t *testing.T) {
	if !ValidASIN("B0DGV56J6G") {
		t.Fatalf("expected B0DGV56J6G to be valid")
	}
	for _, bad := range []string{"", "B0DGV56J6", "\tB0DGV56J6G", "b0dgv56j6g", "B0DGV56J6G1"} {
		if ValidASIN(bad) {
			t.Fatalf("expected %q to be invalid", bad)
		}
	}
}

func TestSameASIN(t *testing.T) {
	if !SameASIN("\tB0DN171184", "B0DN171184") {
		t.Fatalf("expected tab-prefixed ASIN to match")
	}
	if SameASIN("B0DN171184", "B0DHH96NBB") {
		t.Fatalf("expected different ASINs not to match")
	}
}

func TestContentHash(t *testing.T) {
	a := ContentHash([]byte(`{"data":{}}`))
	b := ContentHash([]byte(`{"data":{}}`))
	c := ContentHash([]byte(`{"data":{"x":1}}`))
	if a != b {
		t.Fatalf("expected stable hash, got %s and %s", a, b)
	}
	if a == c {
		t.Fatalf("expected different payloads to hash differently")
	}
	if len(a) != 32 {
		t.Fatalf("expected 32 hex chars, got %d", len(a))
	}
}
