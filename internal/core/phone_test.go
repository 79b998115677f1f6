package core

import "testing"

func TestValidatePhone(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"+14155551234", true},
		{"14155551234", true},
		{"4155551234", true},
		{"123456789", true},
		{"+123456789012345", true},
		{"123", false},
		{"abc4155551234", false},
		{"", false},
		{"+1 415 555 1234", false},
		{"415-555-1234", false},
		{"4155551234\n", false},
		{"1234567890123456789", false},
	}
	for _, tc := range cases {
		if got := ValidatePhone(tc.in); got != tc.want {
			t.Errorf("ValidatePhone(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestParseGranularity(t *testing.T) {
	cases := map[string]Granularity{
		"":           Trip,
		"trip":       Trip,
		"Trip-Based": Trip,
		"daily":      Trip,
		"WEEKLY":     Weekly,
		"monthly":    Monthly,
	}
	for in, want := range cases {
		got, err := ParseGranularity(in)
		if err != nil || got != want {
			t.Errorf("ParseGranularity(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseGranularity("yearly"); err == nil {
		t.Fatal("expected error for unsupported granularity")
	}
}
