package domain

import "testing"

func TestRecountCategories(t *testing.T) {
	electronics := &Category{ID: 1, Name: "Electronics"}
	books := &Category{ID: 2, Name: "Books"}
	empty := &Category{ID: 3, Name: "Sport", ProductCount: 7}

	products := make([]*Product, 0, 13)
	for i := 0; i < 11; i++ {
		products = append(products, &Product{ID: int64(i + 1), Category: electronics})
	}
	products = append(products, &Product{ID: 12, Category: books}, &Product{ID: 13})

	RecountCategories([]*Category{electronics, books, empty}, products)

	if electronics.ProductCount != 11 || !electronics.IsPopular() {
		t.Fatalf("electronics: count=%d popular=%v", electronics.ProductCount, electronics.IsPopular())
	}
	if books.ProductCount != 1 || books.IsPopular() {
		t.Fatalf("books: count=%d popular=%v", books.ProductCount, books.IsPopular())
	}
	if empty.ProductCount != 0 {
		t.Fatalf("expected stale count to be reset, got %d", empty.ProductCount)
	}
}

func TestProductAvailable(t *testing.T) {
	p := &Product{ID: 1, Stock: 3}
	if !p.Available(3) {
		t.Error("expected 3 of 3 to be available")
	}
	if p.Available(4) {
		t.Error("expected 4 of 3 to be unavailable")
	}
	if p.Available(0) {
		t.Error("zero quantity is never available")
	}
	var missing *Product
	if missing.Available(1) {
		t.Error("nil product is never available")
	}
}

func TestFormatMinor(t *testing.T) {
	cases := map[int64]string{
		0:         "0.00",
		5:         "0.05",
		2999900:   "29999.00",
		-1050:     "-10.50",
		510000_00: "510000.00",
	}
	for in, want := range cases {
		if got := FormatMinor(in); got != want {
			t.Errorf("FormatMinor(%d) = %q, want %q", in, got, want)
		}
	}
}
