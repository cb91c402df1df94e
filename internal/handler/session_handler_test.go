package handler

import "testing"

func TestPageWindow(t *testing.T) {
	cases := []struct {
		name                 string
		page, perPage, total int
		start, end           int
		totalPages           int
	}{
		{"first page full", 1, 20, 45, 0, 20, 3},
		{"middle page", 2, 20, 45, 20, 40, 3},
		{"last partial page", 3, 20, 45, 40, 45, 3},
		{"page past the end is empty", 5, 20, 45, 45, 45, 3},
		{"empty catalog", 1, 20, 0, 0, 0, 0},
		{"exact multiple", 2, 10, 20, 10, 20, 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			start, end, p := pageWindow(tc.page, tc.perPage, tc.total)
			if start != tc.start || end != tc.end {
				t.Fatalf("window = [%d, %d), want [%d, %d)", start, end, tc.start, tc.end)
			}
			if p.TotalItems != tc.total || p.TotalPages != tc.totalPages {
				t.Fatalf("pagination = %d items / %d pages, want %d / %d",
					p.TotalItems, p.TotalPages, tc.total, tc.totalPages)
			}
			if p.Page != tc.page || p.PerPage != tc.perPage {
				t.Fatalf("pagination echoes %d/%d, want %d/%d", p.Page, p.PerPage, tc.page, tc.perPage)
			}
		})
	}
}
