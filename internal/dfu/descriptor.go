package dfu

import "encoding/binary"

const (
	dfuDescType = 0x21
	dfuDescLen  = 9

	// DfuSeVersion identifies the STMicro DfuSe extensions via bcdDFUVersion.
	DfuSeVersion uint16 = 0x011A

	// DefaultTransferSize is substituted whenever a device's descriptor
	// reports wTransferSize == 0.
	DefaultTransferSize uint16 = 2048
)

// Attribute bits of the DFU functional descriptor.
const (
	AttrCanDownload             uint8 = 1 << 0
	AttrCanUpload               uint8 = 1 << 1
	AttrManifestationTolerant   uint8 = 1 << 2
	AttrWillDetach              uint8 = 1 << 3
)

// Descriptor is the parsed DFU functional descriptor.
type Descriptor struct {
	Attributes      uint8
	DetachTimeoutMs uint16
	TransferSize    uint16
	DfuVersion      uint16
}

// CanDownload reports bitCanDnload.
func (d Descriptor) CanDownload() bool { return d.Attributes&AttrCanDownload != 0 }

// CanUpload reports bitCanUpload.
func (d Descriptor) CanUpload() bool { return d.Attributes&AttrCanUpload != 0 }

// ManifestationTolerant reports bitManifestationTolerant.
func (d Descriptor) ManifestationTolerant() bool {
	return d.Attributes&AttrManifestationTolerant != 0
}

// WillDetach reports bitWillDetach.
func (d Descriptor) WillDetach() bool { return d.Attributes&AttrWillDetach != 0 }

// IsDfuSe reports whether this descriptor identifies the STMicro extensions.
func (d Descriptor) IsDfuSe() bool { return d.DfuVersion == DfuSeVersion }

// EffectiveTransferSize returns TransferSize, or DefaultTransferSize when
// the device reported zero.
func (d Descriptor) EffectiveTransferSize() uint16 {
	if d.TransferSize == 0 {
		return DefaultTransferSize
	}
	return d.TransferSize
}

// isDFUFunctionalDescriptor reports whether raw is a 9-byte descriptor of
// type 0x21 (the DFU functional descriptor).
func isDFUFunctionalDescriptor(raw []byte) bool {
	return len(raw) == dfuDescLen && raw[1] == dfuDescType
}

// decodeDescriptor decodes bytes 2..9 of a raw DFU functional descriptor.
func decodeDescriptor(raw []byte) Descriptor {
	return Descriptor{
		Attributes:      raw[2],
		DetachTimeoutMs: binary.LittleEndian.Uint16(raw[3:5]),
		TransferSize:    binary.LittleEndian.Uint16(raw[5:7]),
		DfuVersion:      binary.LittleEndian.Uint16(raw[7:9]),
	}
}
