package dfu

import (
	"errors"
	"testing"
	"time"
)

// fakeTransport is an in-memory stand-in for a claimed DFU interface,
// modeling the GETSTATUS/DNLOAD/UPLOAD/CLRSTATUS/ABORT exchange without a
// real USB bus.
type fakeTransport struct {
	statusCode   uint8
	state        uint8
	outCalls     []outCall
	inCalls      []inCall
	closed       bool
	failControl  bool
	idleAfter    int // dnload calls after which state flips to dfuDownloadIdle
	dnloadCount  int
	uploadReturn []byte
	// failEmptyDnload makes a zero-length DNLOAD fail, as when the device
	// detaches before acknowledging it.
	failEmptyDnload bool
}

type outCall struct {
	request uint8
	value   uint16
	data    []byte
}

type inCall struct {
	request uint8
	value   uint16
	length  uint16
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{state: stateDfuIdle}
}

func (f *fakeTransport) ControlOut(request uint8, value uint16, data []byte) error {
	if f.failControl {
		return errors.New("transport failure")
	}
	if f.failEmptyDnload && request == reqDnload && len(data) == 0 {
		return errors.New("device detached")
	}
	f.outCalls = append(f.outCalls, outCall{request, value, append([]byte(nil), data...)})
	switch request {
	case reqDnload:
		f.dnloadCount++
		if f.dnloadCount >= f.idleAfter {
			f.state = stateDfuDownloadIdle
		}
	case reqClrStatus:
		f.statusCode = 0
	case reqAbort:
		f.state = stateDfuIdle
	}
	return nil
}

func (f *fakeTransport) ControlIn(request uint8, value uint16, length uint16) ([]byte, error) {
	if f.failControl {
		return nil, errors.New("transport failure")
	}
	f.inCalls = append(f.inCalls, inCall{request, value, length})
	switch request {
	case reqGetStatus:
		return []byte{f.statusCode, 0, 0, 0, f.state, 0}, nil
	case reqUpload:
		return f.uploadReturn, nil
	}
	return make([]byte, length), nil
}

func (f *fakeTransport) Close() error {
	f.closed = true
	return nil
}

func TestResetStateWhenAlreadyIdle(t *testing.T) {
	ft := newFakeTransport()
	conn := newConnection(ft, 0)

	if err := conn.ResetState(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ft.outCalls) != 0 {
		t.Errorf("expected no clear/abort calls when already idle, got %v", ft.outCalls)
	}
}

func TestResetStateClearsNonZeroStatus(t *testing.T) {
	ft := newFakeTransport()
	ft.statusCode = 5
	conn := newConnection(ft, 0)

	if err := conn.ResetState(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ft.outCalls) != 1 || ft.outCalls[0].request != reqClrStatus {
		t.Errorf("expected a single CLRSTATUS call, got %v", ft.outCalls)
	}
}

func TestResetStateAbortsWhenNotIdle(t *testing.T) {
	ft := newFakeTransport()
	ft.state = stateDfuDownloadIdle
	conn := newConnection(ft, 0)

	if err := conn.ResetState(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ft.outCalls) != 1 || ft.outCalls[0].request != reqAbort {
		t.Errorf("expected a single ABORT call, got %v", ft.outCalls)
	}
}

func TestDownloadSetsAddressThenTransfersPayload(t *testing.T) {
	ft := newFakeTransport()
	ft.idleAfter = 1 // idle from the SET_ADDRESS dnload on, so both polls succeed
	conn := newConnection(ft, 0)

	if err := conn.Download(0x08000000, []byte{1, 2, 3}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(ft.outCalls) != 2 {
		t.Fatalf("expected 2 DNLOAD calls (address + data), got %d", len(ft.outCalls))
	}
	addrCmd := ft.outCalls[0]
	if addrCmd.value != 0 || addrCmd.data[0] != dfuseCmdSetAddress {
		t.Errorf("expected wBlockNum=0 SET_ADDRESS command, got %+v", addrCmd)
	}
	dataCmd := ft.outCalls[1]
	if dataCmd.value != 2 {
		t.Errorf("expected wBlockNum=2 for payload, got %d", dataCmd.value)
	}
}

func TestUploadRequestsBlockNrPlusTwo(t *testing.T) {
	ft := newFakeTransport()
	ft.uploadReturn = []byte{0xAA, 0xBB}
	conn := newConnection(ft, 0)

	data, err := conn.Upload(5, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ft.inCalls) != 1 || ft.inCalls[0].value != 7 {
		t.Errorf("expected wBlockNum=7 (2+5), got %v", ft.inCalls)
	}
	if string(data) != "\xaa\xbb" {
		t.Errorf("unexpected payload: %v", data)
	}
}

func TestPageEraseSendsErasePageCommand(t *testing.T) {
	ft := newFakeTransport()
	ft.idleAfter = 1
	conn := newConnection(ft, 0)

	if err := conn.PageErase(0x08004000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cmd := ft.outCalls[0]
	if cmd.value != 0 || cmd.data[0] != dfuseCmdErasePage {
		t.Errorf("expected wBlockNum=0 ERASE_PAGE command, got %+v", cmd)
	}
	if cmd.data[1] != 0x00 || cmd.data[2] != 0x40 || cmd.data[3] != 0x00 || cmd.data[4] != 0x08 {
		t.Errorf("expected little-endian address bytes, got %v", cmd.data[1:])
	}
}

func TestPollUntilIdleTimesOutWithoutProgress(t *testing.T) {
	ft := newFakeTransport()
	ft.idleAfter = 1 << 30 // never becomes idle
	conn := newConnection(ft, 0)

	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := t0
	conn.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}

	err := conn.PageErase(0x08000000)
	var dfuErr *Error
	if !errors.As(err, &dfuErr) || dfuErr.Kind != KindTimeout {
		t.Fatalf("expected KindTimeout, got %v", err)
	}
}

func TestCloseReleasesTransport(t *testing.T) {
	ft := newFakeTransport()
	conn := newConnection(ft, 0)
	if err := conn.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ft.closed {
		t.Error("expected transport to be closed")
	}
}

func TestLeaveAndRebootSwallowTrailingError(t *testing.T) {
	ft := newFakeTransport()
	ft.idleAfter = 1
	ft.failEmptyDnload = true
	conn := newConnection(ft, 0)

	if err := conn.Leave(); err != nil {
		t.Fatalf("unexpected error from Leave: %v", err)
	}

	ft2 := newFakeTransport()
	ft2.idleAfter = 1
	ft2.failEmptyDnload = true
	conn2 := newConnection(ft2, 0)
	if err := conn2.Reboot(0x08000000, []byte("BDFU"), 0x08000001); err != nil {
		t.Fatalf("unexpected error from Reboot: %v", err)
	}
}

func TestTransferSizeDefaultsWhenZero(t *testing.T) {
	conn := newConnection(newFakeTransport(), 0)
	if conn.TransferSize() != DefaultTransferSize {
		t.Errorf("expected default transfer size, got %d", conn.TransferSize())
	}
}
