package dfu

import "testing"

func rawDfuDescriptor(attrs uint8, detach, xfer, version uint16) []byte {
	return []byte{
		dfuDescLen, dfuDescType, attrs,
		byte(detach), byte(detach >> 8),
		byte(xfer), byte(xfer >> 8),
		byte(version), byte(version >> 8),
	}
}

func TestIsDFUFunctionalDescriptor(t *testing.T) {
	good := rawDfuDescriptor(0, 0, 0, 0)
	if !isDFUFunctionalDescriptor(good) {
		t.Error("expected a valid DFU descriptor to be recognized")
	}
	if isDFUFunctionalDescriptor(good[:8]) {
		t.Error("expected a truncated descriptor to be rejected")
	}
	bad := append([]byte(nil), good...)
	bad[1] = 0x04
	if isDFUFunctionalDescriptor(bad) {
		t.Error("expected a descriptor with the wrong type to be rejected")
	}
}

func TestDecodeDescriptorAttributesAndDfuSe(t *testing.T) {
	raw := rawDfuDescriptor(AttrCanDownload|AttrCanUpload|AttrWillDetach, 255, 2048, DfuSeVersion)
	d := decodeDescriptor(raw)

	if !d.CanDownload() || !d.CanUpload() || !d.WillDetach() || d.ManifestationTolerant() {
		t.Errorf("unexpected attribute decoding: %+v", d)
	}
	if !d.IsDfuSe() {
		t.Error("expected DfuSe version to be recognized")
	}
	if d.EffectiveTransferSize() != 2048 {
		t.Errorf("expected transfer size 2048, got %d", d.EffectiveTransferSize())
	}
}

func TestEffectiveTransferSizeSubstitutesDefault(t *testing.T) {
	d := Descriptor{TransferSize: 0}
	if d.EffectiveTransferSize() != DefaultTransferSize {
		t.Errorf("expected default transfer size, got %d", d.EffectiveTransferSize())
	}
}
