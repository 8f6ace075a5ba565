// Package uf2 decodes the UF2 (USB Flashing Format) block container used to
// package firmware images, including the EdgeTX-specific reboot tag
// extension.
package uf2

import (
	"encoding/binary"
	"fmt"
)

const (
	// BlockSize is the fixed size of a single UF2 block.
	BlockSize = 512
	// HeaderSize is the size of the fixed 32-byte header preceding the payload.
	HeaderSize = 32
	// FinalMagicSize is the trailing 4-byte magic closing every block.
	FinalMagicSize = 4
	// MaxPayloadSize is the largest payload a block can carry: the block
	// size less the header and the trailing magic word.
	MaxPayloadSize = BlockSize - HeaderSize - FinalMagicSize
)

const (
	magicStart1 = 0x0a324655 // "UF2\n"
	magicStart2 = 0x9e5d5157 // randomly selected
	magicFinal  = 0x0ab16f30
)

// Flag bits carried in a block's flags word.
const (
	FlagNotMainFlash        uint32 = 0x00000001
	FlagFileContainer       uint32 = 0x00001000
	FlagFamilyIDPresent     uint32 = 0x00002000
	FlagMD5ChecksumPresent  uint32 = 0x00004000
	FlagExtensionTagPresent uint32 = 0x00008000
)

// Recognized extension tags.
const (
	ExtTagDevice  uint32 = 0x650D9D
	ExtTagVersion uint32 = 0x9FC7BC
	// ExtTagReboot is EdgeTX-specific: a 32-bit reboot address payload.
	ExtTagReboot uint32 = 0xE60835
)

// DecodeError reports a malformed UF2 block or stream.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("uf2 decode error: %s", e.Reason)
}

// NewDecodeError builds a DecodeError with the given reason.
func NewDecodeError(reason string) *DecodeError {
	return &DecodeError{Reason: reason}
}

// Extension is one TLV entry found in a block's extension area.
type Extension struct {
	Tag     uint32
	Payload []byte
}

// Block is the decoded view of one 512-byte UF2 block.
type Block struct {
	Flags             uint32
	FlashAddress      uint32
	BlockNr           uint32
	TotalBlocks       uint32
	FileSizeOrFamily  uint32
	Payload           []byte
	Extensions        []Extension
}

// IsBlock reports whether data begins with a complete, magic-valid UF2 block.
func IsBlock(data []byte) bool {
	return checkMagic(data, true)
}

// IsPayload is a cheap classifier for raw-vs-UF2 file detection: it checks
// only the leading magic, not the trailing one, so it can be used on a
// prefix of a file being read incrementally.
func IsPayload(data []byte) bool {
	return checkMagic(data, false)
}

func checkMagic(data []byte, full bool) bool {
	if len(data) < 8 {
		return false
	}
	if binary.LittleEndian.Uint32(data[0:4]) != magicStart1 {
		return false
	}
	if binary.LittleEndian.Uint32(data[4:8]) != magicStart2 {
		return false
	}
	if !full {
		return true
	}
	if len(data) < BlockSize {
		return false
	}
	return binary.LittleEndian.Uint32(data[BlockSize-4:BlockSize]) == magicFinal
}

// Decode parses exactly one 512-byte block.
func Decode(data []byte) (*Block, error) {
	if !IsBlock(data) {
		return nil, NewDecodeError("magic values check failed")
	}

	flags := binary.LittleEndian.Uint32(data[8:12])
	flashAddr := binary.LittleEndian.Uint32(data[12:16])
	payloadSize := int(binary.LittleEndian.Uint32(data[16:20]))
	blockNr := binary.LittleEndian.Uint32(data[20:24])
	totalBlocks := binary.LittleEndian.Uint32(data[24:28])
	fileSize := binary.LittleEndian.Uint32(data[28:32])

	if payloadSize > MaxPayloadSize {
		return nil, NewDecodeError(fmt.Sprintf("payload size too big (%d)", payloadSize))
	}

	payload := make([]byte, payloadSize)
	copy(payload, data[HeaderSize:HeaderSize+payloadSize])

	extArea := data[HeaderSize+payloadSize : BlockSize-4]

	blk := &Block{
		Flags:            flags,
		FlashAddress:     flashAddr,
		BlockNr:          blockNr,
		TotalBlocks:      totalBlocks,
		FileSizeOrFamily: fileSize,
		Payload:          payload,
		Extensions:       decodeExtensions(flags, extArea),
	}
	return blk, nil
}

// IsMainFlash reports whether the NOT_MAIN_FLASH flag is clear.
func (b *Block) IsMainFlash() bool {
	return b.Flags&FlagNotMainFlash == 0
}

// FileContainer reports the FILE_CONTAINER flag.
func (b *Block) FileContainer() bool {
	return b.Flags&FlagFileContainer != 0
}

// FamilyIDPresent reports the FAMILY_ID_PRESENT flag.
func (b *Block) FamilyIDPresent() bool {
	return b.Flags&FlagFamilyIDPresent != 0
}

// MD5ChecksumPresent reports the MD5_CHECKSUM_PRESENT flag.
func (b *Block) MD5ChecksumPresent() bool {
	return b.Flags&FlagMD5ChecksumPresent != 0
}

// ExtensionTagsPresent reports the EXTENSION_TAGS_PRESENT flag.
func (b *Block) ExtensionTagsPresent() bool {
	return b.Flags&FlagExtensionTagPresent != 0
}

// FileSize returns the file size field, unless the family-id bit is set.
func (b *Block) FileSize() (uint32, bool) {
	if b.FamilyIDPresent() {
		return 0, false
	}
	return b.FileSizeOrFamily, true
}

// FamilyID returns the board family ID, only valid when FamilyIDPresent.
func (b *Block) FamilyID() (uint32, bool) {
	if !b.FamilyIDPresent() {
		return 0, false
	}
	return b.FileSizeOrFamily, true
}

// IsRebootBlock reports whether this block has NOT_MAIN_FLASH set and
// carries an EdgeTX reboot tag.
func (b *Block) IsRebootBlock() bool {
	return !b.IsMainFlash() && b.extension(ExtTagReboot) != nil
}

// GetRebootAddress returns the reboot tag's 32-bit LE address, if present
// and exactly 4 bytes long.
func (b *Block) GetRebootAddress() (uint32, bool) {
	ext := b.extension(ExtTagReboot)
	if ext == nil || len(ext.Payload) != 4 {
		return 0, false
	}
	return binary.LittleEndian.Uint32(ext.Payload), true
}

// GetDeviceDescription returns the DEVICE extension payload as a string.
func (b *Block) GetDeviceDescription() (string, bool) {
	ext := b.extension(ExtTagDevice)
	if ext == nil {
		return "", false
	}
	return string(ext.Payload), true
}

// GetVersionDescription returns the VERSION extension payload as a string.
func (b *Block) GetVersionDescription() (string, bool) {
	ext := b.extension(ExtTagVersion)
	if ext == nil {
		return "", false
	}
	return string(ext.Payload), true
}

func (b *Block) extension(tag uint32) *Extension {
	for i := range b.Extensions {
		if b.Extensions[i].Tag == tag {
			return &b.Extensions[i]
		}
	}
	return nil
}

func alignUp4(n int) int {
	if rem := n % 4; rem > 0 {
		return n + 4 - rem
	}
	return n
}

func decodeExtensions(flags uint32, area []byte) []Extension {
	var extensions []Extension
	if flags&FlagExtensionTagPresent == 0 {
		return extensions
	}

	offset := 0
	for offset < len(area) {
		if offset+4 > len(area) {
			break
		}
		header := binary.LittleEndian.Uint32(area[offset : offset+4])
		if header == 0 {
			break
		}

		length := int(header & 0xff)
		tag := (header >> 8) & 0xffffff

		end := offset + length
		if end > len(area) {
			break
		}

		payload := make([]byte, end-(offset+4))
		copy(payload, area[offset+4:end])
		extensions = append(extensions, Extension{Tag: tag, Payload: payload})

		offset += alignUp4(length)
	}

	return extensions
}
