package util

import "testing"

func TestFormatTimestamp(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "0:00.0"},
		{1.25, "0:01.2"},
		{59.96, "0:60.0"},
		{61.5, "1:01.5"},
		{-3, "0:00.0"},
	}
	for _, c := range cases {
		if got := FormatTimestamp(c.in); got != c.want {
			t.Errorf("FormatTimestamp(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestParseTimestamp(t *testing.T) {
	cases := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"45.5", 45.5, false},
		{"1:30", 90, false},
		{"01:02:03", 3723, false},
		{" 12 ", 12, false},
		{"1:2:3:4", 0, true},
		{"abc", 0, true},
	}
	for _, c := range cases {
		got, err := ParseTimestamp(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("ParseTimestamp(%q) expected error", c.in)
			}
			continue
		}
		if err != nil || got != c.want {
			t.Errorf("ParseTimestamp(%q) = %v, %v, want %v", c.in, got, err, c.want)
		}
	}
}
