package utils

import "testing"

func TestAtoiDefault(t *testing.T) {
	cases := []struct {
		in   string
		def  int
		want int
	}{
		{"42", 0, 42},
		{"", 10, 10},
		{"abc", 5, 5},
		{"-7", 1, -7},
	}
	for _, tc := range cases {
		if got := AtoiDefault(tc.in, tc.def); got != tc.want {
			t.Errorf("AtoiDefault(%q, %d) = %d; want %d", tc.in, tc.def, got, tc.want)
		}
	}
}

func TestPageWindow(t *testing.T) {
	cases := []struct {
		name       string
		pageStr    string
		sizeStr    string
		wantPage   int
		wantSize   int
		wantOffset int
	}{
		{"defaults", "", "", 1, 20, 0},
		{"explicit", "3", "50", 3, 50, 100},
		{"negative page floored", "-2", "10", 1, 10, 0},
		{"oversized clamped", "2", "9999", 2, 100, 100},
		{"zero size floored", "1", "0", 1, 1, 0},
		{"garbage falls back", "x", "y", 1, 20, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			page, size, offset := PageWindow(tc.pageStr, tc.sizeStr, 20, 100)
			if page != tc.wantPage || size != tc.wantSize || offset != tc.wantOffset {
				t.Fatalf("PageWindow = (%d, %d, %d); want (%d, %d, %d)",
					page, size, offset, tc.wantPage, tc.wantSize, tc.wantOffset)
			}
		})
	}
}
