package validation

import (
	"testing"
)

func TestNormalizeSymbol(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"BTC", "btc"},
		{"  Eth ", "eth"},
		{"doge", "doge"},
		{"   ", ""},
	}
	for _, c := range cases {
		if got := NormalizeSymbol(c.in); got != c.want {
			t.Errorf("NormalizeSymbol(%q) = %q; want %q", c.in, got, c.want)
		}
	}
}
