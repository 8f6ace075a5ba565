package uf2

// AddressRange is one contiguous address range decoded from a UF2 stream.
type AddressRange struct {
	StartAddress uint32
	Payload      []byte
	// RebootAddress is set when the seed block of this range carried an
	// EdgeTX reboot tag; it marks an orchestration boundary for callers.
	RebootAddress *uint32
}

// RangeIterator streams a UF2 byte buffer chunked into 512-byte blocks and
// coalesces consecutive blocks (same flash address as the running end) into
// maximal contiguous AddressRanges. A range ends only at an address gap; it
// carries a reboot address only when its first block has a reboot tag.
//
// It is a finite, non-restartable, lazy stream over a borrowed byte buffer.
type RangeIterator struct {
	data   []byte
	offset int
	done   bool

	startAddress  uint32
	endAddress    uint32
	payload       []byte
	rebootAddress *uint32
}

// NewRangeIterator validates that every 512-byte chunk of data is a valid
// UF2 block and seeds the iterator from the first one.
func NewRangeIterator(data []byte) (*RangeIterator, error) {
	if len(data) == 0 || len(data)%BlockSize != 0 {
		return nil, NewDecodeError("input is not a whole number of UF2 blocks")
	}
	for off := 0; off < len(data); off += BlockSize {
		if !IsBlock(data[off : off+BlockSize]) {
			return nil, NewDecodeError("invalid block in stream")
		}
	}

	first, err := Decode(data[0:BlockSize])
	if err != nil {
		return nil, err
	}

	it := &RangeIterator{
		data:         data,
		offset:       BlockSize,
		startAddress: first.FlashAddress,
		endAddress:   first.FlashAddress + uint32(len(first.Payload)),
		payload:      append([]byte(nil), first.Payload...),
	}
	if addr, ok := first.GetRebootAddress(); ok {
		it.rebootAddress = &addr
	}
	return it, nil
}

func (it *RangeIterator) makeRange() AddressRange {
	r := AddressRange{
		StartAddress:  it.startAddress,
		Payload:       it.payload,
		RebootAddress: it.rebootAddress,
	}
	it.rebootAddress = nil
	return r
}

func (it *RangeIterator) reset(blk *Block) {
	it.startAddress = blk.FlashAddress
	it.endAddress = blk.FlashAddress + uint32(len(blk.Payload))
	it.payload = append([]byte(nil), blk.Payload...)
	if addr, ok := blk.GetRebootAddress(); ok {
		it.rebootAddress = &addr
	} else {
		it.rebootAddress = nil
	}
}

// Next returns the next AddressRange, or ok=false when the stream is
// exhausted.
func (it *RangeIterator) Next() (AddressRange, bool) {
	if it.done {
		return AddressRange{}, false
	}

	for it.offset < len(it.data) {
		chunk := it.data[it.offset : it.offset+BlockSize]
		it.offset += BlockSize

		blk, err := Decode(chunk)
		if err != nil {
			it.done = true
			return AddressRange{}, false
		}

		if it.endAddress != blk.FlashAddress {
			item := it.makeRange()
			it.reset(blk)
			return item, true
		}

		it.endAddress += uint32(len(blk.Payload))
		it.payload = append(it.payload, blk.Payload...)
	}

	it.done = true
	if len(it.payload) > 0 {
		return it.makeRange(), true
	}
	return AddressRange{}, false
}
