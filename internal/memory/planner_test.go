package memory

import "testing"

func TestErasePagesTwoPagesInSingleSegment(t *testing.T) {
	layout, ok := Parse("@Internal Flash   /0x08000000/8*08Kg")
	if !ok {
		t.Fatal("expected layout to parse")
	}

	pages := layout.ErasePages(0x08000000, 0x08003FFF)
	want := []uint32{0x08000000, 0x08002000}
	if len(pages) != len(want) {
		t.Fatalf("expected %d pages, got %d (%v)", len(want), len(pages), pages)
	}
	for i := range want {
		if pages[i] != want[i] {
			t.Errorf("page %d: got %#x, want %#x", i, pages[i], want[i])
		}
	}
}

func TestErasePagesAreStrictlyAscendingAndPageAligned(t *testing.T) {
	layout, ok := Parse("@Internal Flash/0x08000000/04*016Kg,01*064Kg,07*128Kg")
	if !ok {
		t.Fatal("expected layout to parse")
	}

	pages := layout.ErasePages(0x08000000, 0x08020000)
	if len(pages) == 0 {
		t.Fatal("expected at least one erase page")
	}
	for i := 0; i < len(pages)-1; i++ {
		if pages[i] >= pages[i+1] {
			t.Fatalf("erase pages not strictly ascending at index %d: %#x >= %#x", i, pages[i], pages[i+1])
		}
	}

	for _, addr := range pages {
		segs := layout.FindSegments(addr, addr)
		if len(segs) == 0 {
			t.Fatalf("erase page %#x does not belong to any segment", addr)
		}
		seg := segs[0]
		if (addr-seg.StartAddr)%seg.PageSize != 0 {
			t.Errorf("erase page %#x is not page-aligned within its segment", addr)
		}
	}
}

func TestSegmentErasePagesHelper(t *testing.T) {
	layout, ok := Parse("@Internal Flash   /0x08000000/8*08Kg")
	if !ok {
		t.Fatal("expected layout to parse")
	}
	seg := layout.Segments[0]
	start, count := seg.ErasePages(0x08000000, 0x08003FFF)
	if start != 0x08000000 || count != 2 {
		t.Errorf("unexpected (start, count): (%#x, %d)", start, count)
	}
}
