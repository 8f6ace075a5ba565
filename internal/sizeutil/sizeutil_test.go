package sizeutil

import "testing"

func TestParseUint32Hex(t *testing.T) {
	v, err := ParseUint32("0x08000000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 0x08000000 {
		t.Errorf("expected 0x08000000, got %#x", v)
	}
}

func TestParseUint32Decimal(t *testing.T) {
	v, err := ParseUint32("1024")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 1024 {
		t.Errorf("expected 1024, got %d", v)
	}
}

func TestParseUint32KiloSuffix(t *testing.T) {
	v, err := ParseUint32("64K")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 64*1024 {
		t.Errorf("expected %d, got %d", 64*1024, v)
	}
}

func TestParseUint32MegaSuffix(t *testing.T) {
	v, err := ParseUint32("2M")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 2*1024*1024 {
		t.Errorf("expected %d, got %d", 2*1024*1024, v)
	}
}

func TestParseUint32RejectsEmpty(t *testing.T) {
	if _, err := ParseUint32(""); err == nil {
		t.Error("expected an error for empty input")
	}
}

func TestParseUint32RejectsGarbage(t *testing.T) {
	if _, err := ParseUint32("not-a-number"); err == nil {
		t.Error("expected an error for non-numeric input")
	}
}
