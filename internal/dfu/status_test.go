package dfu

import (
	"errors"
	"testing"
)

func TestDecodeStatus(t *testing.T) {
	raw := []byte{0, 0x10, 0x27, 0x00, stateDfuDownloadIdle, 0}
	st := decodeStatus(raw)

	if st.StatusCode != 0 {
		t.Errorf("expected status 0, got %d", st.StatusCode)
	}
	if st.PollTimeoutMs != 10000 {
		t.Errorf("expected poll timeout 10000, got %d", st.PollTimeoutMs)
	}
	if st.State != stateDfuDownloadIdle {
		t.Errorf("expected state %d, got %d", stateDfuDownloadIdle, st.State)
	}
}

func TestStatusOkReturnsErrorOnNonZeroCode(t *testing.T) {
	st := Status{StatusCode: 3}
	err := st.Ok()

	var dfuErr *Error
	if !errors.As(err, &dfuErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if dfuErr.Kind != KindStatus || dfuErr.StatusCode != 3 {
		t.Errorf("unexpected error: %+v", dfuErr)
	}
}

func TestStatusOkReturnsNilOnZero(t *testing.T) {
	if err := (Status{StatusCode: 0}).Ok(); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}
