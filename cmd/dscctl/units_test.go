package main

import (
	"DSCEngine/internal/math"
	"testing"
)

func TestToWei(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"1", "1000000000000000000"},
		{"1.5", "1500000000000000000"},
		{"0.000000000000000001", "1"},
		{"0.0000000000000000019", "1"},
		{"0", "0"},
	}
	for _, c := range cases {
		got, err := toWei(c.in)
		if err != nil {
			t.Fatalf("toWei(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("toWei(%q): got %s, want %s", c.in, got, c.want)
		}
	}

	for _, bad := range []string{"-1", "abc", ""} {
		if _, err := toWei(bad); err == nil {
			t.Errorf("toWei(%q): expected error", bad)
		}
	}
}

func TestFromWeiAndHealthFactor(t *testing.T) {
	if got := fromWei("2500000000000000000"); got != "2.5" {
		t.Errorf("fromWei: got %s, want 2.5", got)
	}
	if got := healthFactor("1000000000000000000"); got != "1.0000" {
		t.Errorf("health factor: got %s, want 1.0000", got)
	}
	if got := healthFactor(math.Max().Dec()); got != "inf" {
		t.Errorf("no debt: got %s, want inf", got)
	}
}
