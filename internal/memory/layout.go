// Package memory parses the STMicro DfuSe interface-string grammar into an
// ordered, non-empty list of memory segments, and computes erase-page plans
// against arbitrary address ranges.
package memory

import (
	"regexp"
	"strconv"
)

// Segment is one contiguous region of uniform page size within a device
// interface's memory map.
//
// Invariants: PageSize > 0; (EndAddr-StartAddr) % PageSize == 0; segments
// within a Layout are contiguous and ascending.
type Segment struct {
	StartAddr uint32
	EndAddr   uint32 // half-open: StartAddr + Pages*PageSize
	PageSize  uint32
	memType   uint8
}

// Pages returns the number of pages in the segment.
func (s Segment) Pages() uint32 {
	return (s.EndAddr - s.StartAddr) / s.PageSize
}

// Readable reports the low bit of the permission byte.
func (s Segment) Readable() bool { return s.memType&1 == 1 }

// Erasable reports bit 1 of the permission byte.
func (s Segment) Erasable() bool { return s.memType&2 == 2 }

// Writable reports bit 2 of the permission byte.
func (s Segment) Writable() bool { return s.memType&4 == 4 }

// Contains reports whether addr falls within [StartAddr, EndAddr] inclusive.
func (s Segment) Contains(addr uint32) bool {
	return addr >= s.StartAddr && addr <= s.EndAddr
}

// IsContainedIn reports whether the segment lies entirely inside
// [start, end].
func (s Segment) IsContainedIn(start, end uint32) bool {
	return start <= s.StartAddr && s.EndAddr <= end
}

// ErasePages returns the clipped (start, count) erase-page description for
// this segment alone. Layout.ErasePages does not call it; that
// absolute-address form is the one consumed by the high-level flows.
func (s Segment) ErasePages(start, end uint32) (uint32, uint32) {
	eraseStart := max32(start, s.StartAddr)
	eraseEnd := min32(end, s.EndAddr)
	if eraseEnd <= eraseStart {
		return eraseStart, 0
	}
	count := ceilDiv(eraseEnd-eraseStart, s.PageSize)
	return eraseStart, count
}

// Layout is an ordered, non-empty sequence of segments parsed from a single
// interface string descriptor. Immutable after parse.
type Layout struct {
	Name     string
	Segments []Segment
}

var layoutRe = regexp.MustCompile(`@?([^/]*?)\s*/0x([0-9a-fA-F]+)U?/(.*)`)
var segmentRe = regexp.MustCompile(`(\d+)\*(\d+)([KMB ])([a-g])`)

// Parse parses a DfuSe interface string such as
// "@Internal Flash/0x08000000/04*016Kg,01*064Kg,07*128Kg" into a Layout.
// Malformed input returns ok=false; no further error detail is given here.
func Parse(s string) (Layout, bool) {
	m := layoutRe.FindStringSubmatch(s)
	if m == nil {
		return Layout{}, false
	}

	name := m[1]
	startAddr64, err := strconv.ParseUint(m[2], 16, 32)
	if err != nil {
		return Layout{}, false
	}
	currentAddr := uint32(startAddr64)

	segMatches := segmentRe.FindAllStringSubmatch(m[3], -1)
	if len(segMatches) == 0 {
		return Layout{}, false
	}

	segments := make([]Segment, 0, len(segMatches))
	for _, sm := range segMatches {
		pages64, errPages := strconv.ParseUint(sm[1], 10, 32)
		pageSize64, errSize := strconv.ParseUint(sm[2], 10, 32)
		if errPages != nil || errSize != nil {
			return Layout{}, false
		}
		pages := uint32(pages64)
		pageSize := uint32(pageSize64)

		switch sm[3] {
		case "K":
			pageSize *= 1024
		case "M":
			pageSize *= 1024 * 1024
		case "B", " ":
			// multiplier of 1
		}
		if pageSize == 0 {
			return Layout{}, false
		}

		typeChar := byte('a')
		if len(sm[4]) > 0 {
			typeChar = sm[4][0]
		}
		memType := typeChar & 7

		endAddr := currentAddr + pages*pageSize
		segments = append(segments, Segment{
			StartAddr: currentAddr,
			EndAddr:   endAddr,
			PageSize:  pageSize,
			memType:   memType,
		})
		currentAddr = endAddr
	}

	return Layout{Name: name, Segments: segments}, true
}

// FindSegments returns the ordered, non-empty subset of segments overlapping
// [start, end]: a segment overlaps if it contains start, contains end, or is
// entirely contained within [start, end].
func (l Layout) FindSegments(start, end uint32) []Segment {
	var out []Segment
	for _, s := range l.Segments {
		if s.Contains(start) || s.Contains(end) || s.IsContainedIn(start, end) {
			out = append(out, s)
		}
	}
	return out
}

func max32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}

func min32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

func ceilDiv(a, b uint32) uint32 {
	return (a + b - 1) / b
}
