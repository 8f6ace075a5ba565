package dfu

// DFU class states relevant to this implementation (DFU 1.1 §6.1.2).
const (
	stateDfuIdle         = 0x02
	stateDfuDownloadIdle = 0x05
)

// Status is the decoded 6-byte GET_STATUS reply:
// {status, poll_timeout[0..2], state, string_idx}.
type Status struct {
	StatusCode   uint8
	PollTimeoutMs uint32 // 24-bit value, widened
	State        uint8
}

func decodeStatus(raw []byte) Status {
	return Status{
		StatusCode:    raw[0],
		PollTimeoutMs: uint32(raw[1]) | uint32(raw[2])<<8 | uint32(raw[3])<<16,
		State:         raw[4],
	}
}

// Ok returns a *Error of KindStatus if StatusCode != 0, else nil.
func (s Status) Ok() error {
	if s.StatusCode != 0 {
		return statusError(s.StatusCode)
	}
	return nil
}
