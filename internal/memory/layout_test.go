package memory

import "testing"

func TestParseOptionBytesSegment(t *testing.T) {
	layout, ok := Parse("@Option Bytes   /0x5200201C/01*128 e")
	if !ok {
		t.Fatal("expected layout to parse")
	}
	if layout.Name != "Option Bytes" {
		t.Errorf("unexpected name: %q", layout.Name)
	}
	if len(layout.Segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(layout.Segments))
	}
	s := layout.Segments[0]
	if s.StartAddr != 0x5200201C {
		t.Errorf("unexpected start addr: %#x", s.StartAddr)
	}
	if s.EndAddr != 0x5200201C+128 {
		t.Errorf("unexpected end addr: %#x", s.EndAddr)
	}
	if s.PageSize != 128 {
		t.Errorf("unexpected page size: %d", s.PageSize)
	}
	if !s.Readable() || s.Erasable() || !s.Writable() {
		t.Errorf("unexpected permissions: readable=%v erasable=%v writable=%v",
			s.Readable(), s.Erasable(), s.Writable())
	}
}

func TestParseInternalFlashSingleSegment(t *testing.T) {
	layout, ok := Parse("@Internal Flash   /0x08000000/8*08Kg")
	if !ok {
		t.Fatal("expected layout to parse")
	}
	if len(layout.Segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(layout.Segments))
	}
	s := layout.Segments[0]
	if s.StartAddr != 0x08000000 || s.EndAddr != 0x08010000 {
		t.Errorf("unexpected range: [%#x, %#x)", s.StartAddr, s.EndAddr)
	}
	if s.PageSize != 8192 {
		t.Errorf("unexpected page size: %d", s.PageSize)
	}
	if !s.Readable() || !s.Erasable() || !s.Writable() {
		t.Errorf("expected all permissions set, got r=%v e=%v w=%v",
			s.Readable(), s.Erasable(), s.Writable())
	}
}

func TestParseMultiSegmentAndFindSegments(t *testing.T) {
	layout, ok := Parse("@Internal Flash  /0x08000000/04*016Kg,01*064Kg,07*128Kg")
	if !ok {
		t.Fatal("expected layout to parse")
	}
	if len(layout.Segments) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(layout.Segments))
	}

	// Contiguity invariant.
	for i := 0; i < len(layout.Segments)-1; i++ {
		if layout.Segments[i].EndAddr != layout.Segments[i+1].StartAddr {
			t.Errorf("segments %d and %d are not contiguous", i, i+1)
		}
	}

	if got := layout.FindSegments(0x08000000, 0x08020000); len(got) != 3 {
		t.Errorf("expected 3 overlapping segments, got %d", len(got))
	}
	if got := layout.FindSegments(0x08001000, 0x0800E9A0); len(got) != 1 {
		t.Errorf("expected 1 overlapping segment, got %d", len(got))
	}
}

func TestParseRejectsMalformedInput(t *testing.T) {
	if _, ok := Parse("not a valid layout string"); ok {
		t.Fatal("expected malformed input to fail to parse")
	}
}

func TestPermissionDecoding(t *testing.T) {
	layout, ok := Parse("@X/0x0/01*1 g")
	if !ok {
		t.Fatal("expected layout to parse")
	}
	s := layout.Segments[0]
	// mem_type = ('g' - 0x60) & 7 = 7 -> readable, erasable, writable.
	if !s.Readable() || !s.Erasable() || !s.Writable() {
		t.Errorf("expected all permission bits set for 'g', got r=%v e=%v w=%v",
			s.Readable(), s.Erasable(), s.Writable())
	}
}

func TestSegmentsAreContiguousAndPageAligned(t *testing.T) {
	layout, ok := Parse("@Internal Flash/0x08000000/04*016Kg,01*064Kg,07*128Kg")
	if !ok {
		t.Fatal("expected layout to parse")
	}
	for _, s := range layout.Segments {
		if s.PageSize == 0 {
			t.Fatal("page size must be non-zero")
		}
		if (s.EndAddr-s.StartAddr)%s.PageSize != 0 {
			t.Errorf("segment range not a multiple of page size: %+v", s)
		}
		if s.Pages()*s.PageSize != s.EndAddr-s.StartAddr {
			t.Errorf("pages() * page_size mismatch: %+v", s)
		}
	}
}
