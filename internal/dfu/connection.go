package dfu

import "time"

// DFU 1.1 class requests (sent on the claimed interface, class/interface
// recipient).
const (
	reqDetach    uint8 = 0
	reqDnload    uint8 = 1
	reqUpload    uint8 = 2
	reqGetStatus uint8 = 3
	reqClrStatus uint8 = 4
	reqGetState  uint8 = 5
	reqAbort     uint8 = 6
)

// DfuSe subcommands, sent via a DNLOAD with wBlockNum=0.
const (
	dfuseCmdSetAddress uint8 = 0x21
	dfuseCmdErasePage  uint8 = 0x41
)

// DefaultTimeout bounds every individual USB control transfer.
const DefaultTimeout = 5000 * time.Millisecond

// pollTimeout bounds the poll-until-idle loop: twice DefaultTimeout.
const pollTimeout = 2 * DefaultTimeout

// transport is the control-transfer surface a Connection needs. It is
// satisfied by a claimed gousb interface (see usbTransport in device.go)
// and by fakes in tests.
type transport interface {
	ControlOut(request uint8, value uint16, data []byte) error
	ControlIn(request uint8, value uint16, length uint16) ([]byte, error)
	Close() error
}

// Connection is a claimed DFU interface: the control-transfer command set,
// the status/state machine, and the DfuSe address-set / page-erase / leave
// commands, including poll-until-idle synchronization.
//
// A Connection exclusively owns its claimed interface for its lifetime;
// Close releases it deterministically so callers (notably Reboot) can
// immediately reconnect against a replacement device.
type Connection struct {
	t            transport
	transferSize uint16
	now          func() time.Time
}

func newConnection(t transport, transferSize uint16) *Connection {
	if transferSize == 0 {
		transferSize = DefaultTransferSize
	}
	return &Connection{t: t, transferSize: transferSize, now: time.Now}
}

// TransferSize returns wTransferSize (or the substituted default).
func (c *Connection) TransferSize() uint16 { return c.transferSize }

// Close releases the underlying claimed interface.
func (c *Connection) Close() error {
	return c.t.Close()
}

// ResetState issues GET_STATUS; if status != 0 it clears status and
// re-reads; if the resulting state isn't dfuIDLE it aborts and re-reads.
// It returns nil iff the final status is 0.
func (c *Connection) ResetState() error {
	st, err := c.GetStatus()
	if err != nil {
		return err
	}
	if st.StatusCode != 0 {
		if err := c.clearStatus(); err != nil {
			return err
		}
		st, err = c.GetStatus()
		if err != nil {
			return err
		}
	}
	if st.State != stateDfuIdle {
		if err := c.abort(); err != nil {
			return err
		}
		st, err = c.GetStatus()
		if err != nil {
			return err
		}
	}
	return st.Ok()
}

// GetStatus issues a single 6-byte control-in GET_STATUS.
func (c *Connection) GetStatus() (Status, error) {
	data, err := c.t.ControlIn(reqGetStatus, 0, 6)
	if err != nil {
		return Status{}, wrapTransport(err)
	}
	return decodeStatus(data), nil
}

func (c *Connection) clearStatus() error {
	if err := c.t.ControlOut(reqClrStatus, 0, nil); err != nil {
		return wrapTransport(err)
	}
	return nil
}

func (c *Connection) abort() error {
	if err := c.t.ControlOut(reqAbort, 0, nil); err != nil {
		return wrapTransport(err)
	}
	return nil
}

// Download sets the DfuSe address then DNLOADs data as transaction 2,
// polling until download-idle.
func (c *Connection) Download(addr uint32, data []byte) error {
	if err := c.dfuseSetAddress(addr); err != nil {
		return err
	}
	return c.dnload(2, data)
}

// Upload issues UPLOAD with wBlockNum = 2+blockNr, reading length bytes.
// The address must have been established once via dfuseSetAddress before
// the first call.
func (c *Connection) Upload(blockNr uint16, length uint16) ([]byte, error) {
	data, err := c.t.ControlIn(reqUpload, 2+blockNr, length)
	if err != nil {
		return nil, wrapTransport(err)
	}
	return data, nil
}

// PageErase erases one DfuSe page at addr, then polls until idle.
func (c *Connection) PageErase(addr uint32) error {
	cmd := []byte{dfuseCmdErasePage, byte(addr), byte(addr >> 8), byte(addr >> 16), byte(addr >> 24)}
	return c.dnload(0, cmd)
}

// Reboot downloads data at addr, sets the DfuSe address to rebootAddr, and
// issues a best-effort zero-length DNLOAD whose result is ignored because
// the device may detach before replying.
func (c *Connection) Reboot(addr uint32, data []byte, rebootAddr uint32) error {
	if err := c.Download(addr, data); err != nil {
		return err
	}
	if err := c.dfuseSetAddress(rebootAddr); err != nil {
		return err
	}
	_ = c.t.ControlOut(reqDnload, 0, nil)
	return nil
}

// Leave issues a best-effort zero-length DNLOAD; errors are swallowed
// because the device is expected to disappear.
func (c *Connection) Leave() error {
	_ = c.t.ControlOut(reqDnload, 0, nil)
	return nil
}

// SetAddress issues the DfuSe SET_ADDRESS POINTER subcommand and polls
// until idle. Flows call this directly ahead of a run of Upload calls,
// which (unlike Download) do not take an address parameter per-call.
func (c *Connection) SetAddress(addr uint32) error {
	return c.dfuseSetAddress(addr)
}

func (c *Connection) dfuseSetAddress(addr uint32) error {
	cmd := []byte{dfuseCmdSetAddress, byte(addr), byte(addr >> 8), byte(addr >> 16), byte(addr >> 24)}
	return c.dnload(0, cmd)
}

func (c *Connection) dnload(transaction uint16, data []byte) error {
	if err := c.t.ControlOut(reqDnload, transaction, data); err != nil {
		return wrapTransport(err)
	}
	return c.pollUntilIdle()
}

func (c *Connection) pollUntilIdle() error {
	start := c.now()
	for {
		st, err := c.GetStatus()
		if err != nil {
			return err
		}
		if st.State == stateDfuDownloadIdle {
			return st.Ok()
		}
		if c.now().Sub(start) >= pollTimeout {
			return ErrTimeout
		}
	}
}
