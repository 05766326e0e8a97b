package logger

import "testing"

func TestMaskToken(t *testing.T) {
	cases := map[string]string{
		"":                 "",
		"short":            "****",
		"abcdefgh":         "****",
		"abcd1234efgh5678": "abcd...5678",
	}
	for in, want := range cases {
		if got := MaskToken(in); got != want {
			t.Fatalf("MaskToken(%q) = %q, want %q", in, got, want)
		}
	}
}
