// Copyright (c) 2025 The AgroMarket developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package util

import (
	"testing"
)

func TestRandomDigits(t *testing.T) {
	seen := make(map[byte]int, 10)
	for i := 0; i < 200; i++ {
		s, err := RandomDigits(6)
		if err != nil {
			t.Fatal(err)
		}
		if len(s) != 6 {
			t.Fatalf("got length %v, want 6", len(s))
		}
		for j := 0; j < len(s); j++ {
			if s[j] < '0' || s[j] > '9' {
				t.Fatalf("non digit %q in %v", s[j], s)
			}
			seen[s[j]]++
		}
	}

	// 1200 draws over 10 digits; every digit should show up.
	if len(seen) != 10 {
		t.Errorf("got %v distinct digits, want 10", len(seen))
	}
}

func TestRandom(t *testing.T) {
	a, err := Random(32)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Random(32)
	if err != nil {
		t.Fatal(err)
	}
	if len(a) != 32 || len(b) != 32 {
		t.Fatalf("unexpected lengths %v %v", len(a), len(b))
	}
	if string(a) == string(b) {
		t.Errorf("two random reads returned the same bytes")
	}
}
