// Package dfu drives the USB Device Firmware Upgrade protocol (rev. 1.1),
// augmented with the STMicroelectronics "DfuSe" extensions (AN3156): device
// enumeration, the control-transfer command set, the status/state machine,
// and the high-level upload/download/reboot flows.
package dfu

import "fmt"

// Kind enumerates the error categories the core can surface, modeled as a
// closed tagged variant rather than an exception hierarchy.
type Kind int

const (
	// KindUsbTransport wraps any failure of a USB operation (enumeration,
	// open, claim, control transfer).
	KindUsbTransport Kind = iota
	// KindStatus means the DFU device reported a non-zero status byte.
	KindStatus
	// KindUnalignedAddress means an erase address was not page-aligned
	// within its segment.
	KindUnalignedAddress
	// KindInvalidInterface means no DFU interface matched the requested
	// address range's interface class.
	KindInvalidInterface
	// KindNoMemorySegments means the address range lies outside all
	// segments of every interface.
	KindNoMemorySegments
	// KindTimeout means poll-until-idle or reconnect exceeded its bound.
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindUsbTransport:
		return "usb transport error"
	case KindStatus:
		return "dfu status error"
	case KindUnalignedAddress:
		return "unaligned page address"
	case KindInvalidInterface:
		return "invalid interface"
	case KindNoMemorySegments:
		return "no compatible memory segments"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown dfu error"
	}
}

// Error is the single exported error type for the dfu package. Callers
// distinguish cases with Kind rather than type assertions on a hierarchy of
// error types.
type Error struct {
	Kind Kind
	// StatusCode is only meaningful when Kind == KindStatus.
	StatusCode uint8
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindStatus:
		return fmt.Sprintf("dfu status error: code %d", e.StatusCode)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s: %v", e.Kind, e.Err)
		}
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is allows errors.Is(err, dfu.ErrTimeout) style checks against the Kind,
// ignoring any wrapped transport error or status code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinel errors usable with errors.Is; StatusCode/Err are irrelevant for
// matching.
var (
	ErrInvalidInterface  = &Error{Kind: KindInvalidInterface}
	ErrNoMemorySegments  = &Error{Kind: KindNoMemorySegments}
	ErrTimeout           = &Error{Kind: KindTimeout}
	ErrUnalignedAddress  = &Error{Kind: KindUnalignedAddress}
)

func wrapTransport(err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindUsbTransport, Err: err}
}

func statusError(code uint8) *Error {
	return &Error{Kind: KindStatus, StatusCode: code}
}
