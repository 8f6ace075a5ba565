package dfu

import (
	"time"

	"github.com/google/gousb"

	"github.com/guiperry/dfu-go/internal/uf2"
)

// ReconnectTimeout bounds how long Download and Reboot wait for a device to
// reappear after a reboot-triggering DfuSe address switch.
const ReconnectTimeout = 30 * time.Second

const reconnectPollInterval = 100 * time.Millisecond

// Progress receives best-effort progress notifications from the long
// running flows. Stage announces a new named phase (e.g. "erasing",
// "flashing", "reading"); Update reports current/total progress within the
// current stage. Implementations must return quickly; a nil Progress is
// valid and simply discards notifications.
type Progress interface {
	Stage(name string)
	Update(current, total int)
}

type noopProgress struct{}

func (noopProgress) Stage(string)        {}
func (noopProgress) Update(int, int)     {}

func progressOrNoop(p Progress) Progress {
	if p == nil {
		return noopProgress{}
	}
	return p
}

// Upload reads [startAddr, startAddr+length) (or, with length == nil, to
// the end of the matched segment run) from device, returning the bytes.
func Upload(device *Device, startAddr *uint32, length *uint32, progress Progress) ([]byte, error) {
	progress = progressOrNoop(progress)

	start, err := resolveStart(device, startAddr)
	if err != nil {
		return nil, err
	}

	var end *uint32
	if length != nil {
		e := start + *length - 1
		end = &e
	}

	segEnd := uint32(0)
	if end != nil {
		segEnd = *end
	}
	is, err := device.FindInterfaceSegments(start, segEnd)
	if err != nil {
		return nil, err
	}
	if len(is.Segments) == 0 {
		return nil, ErrNoMemorySegments
	}
	if end == nil {
		e := is.Segments[len(is.Segments)-1].EndAddr - 1
		end = &e
	}

	conn, err := device.Connect(is.Number, is.AltSetting)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	progress.Stage("resetting")
	if err := conn.ResetState(); err != nil {
		return nil, err
	}

	if err := conn.SetAddress(start); err != nil {
		return nil, err
	}
	if err := conn.ResetState(); err != nil {
		return nil, err
	}

	transferSize := uint32(conn.TransferSize())
	total := *end + 1 - start

	progress.Stage("reading")
	var data []byte
	var uploaded uint32
	var blockNr uint16
	for total-uploaded > 0 {
		xfer := transferSize
		if remaining := total - uploaded; remaining < xfer {
			xfer = remaining
		}
		chunk, err := conn.Upload(blockNr, uint16(xfer))
		if err != nil {
			return nil, err
		}
		data = append(data, chunk...)
		uploaded += xfer
		blockNr++
		progress.Update(int(uploaded), int(total))
	}
	return data, nil
}

// Download writes data to device starting at startAddr (or the device's
// default start address). If data is a UF2 container, each address range is
// downloaded in turn, with EdgeTX reboot-tagged ranges triggering Reboot and
// a reconnect before resuming; a trailing Leave closes out a flow that
// succeeded (an error returns without it).
func Download(data []byte, device *Device, startAddr *uint32, progress Progress) error {
	progress = progressOrNoop(progress)

	if err := resetDefaultInterface(device); err != nil {
		return err
	}

	if !uf2.IsPayload(data) {
		if err := downloadRange(data, device, startAddr, progress); err != nil {
			return err
		}
		return leaveDefaultInterface(device)
	}

	it, err := uf2.NewRangeIterator(data)
	if err != nil {
		return err
	}

	current := device
	for {
		addrRange, ok := it.Next()
		if !ok {
			break
		}
		if addrRange.RebootAddress != nil {
			next, err := reboot(current, addrRange.StartAddress, addrRange.Payload, *addrRange.RebootAddress, progress)
			if err != nil {
				return err
			}
			current = next
			continue
		}
		start := addrRange.StartAddress
		if err := downloadRange(addrRange.Payload, current, &start, progress); err != nil {
			return err
		}
	}
	return leaveDefaultInterface(current)
}

// Reboot downloads payload at addr, switches the DfuSe pointer to
// rebootAddr, and waits for the device to detach and reappear, confirming
// the new session reports a clean status.
func Reboot(device *Device, addr uint32, payload []byte, rebootAddr uint32, progress Progress) error {
	progress = progressOrNoop(progress)
	conn, err := device.Connect(0, 0)
	if err != nil {
		return err
	}

	progress.Stage("rebooting")
	err = conn.Reboot(addr, payload, rebootAddr)
	conn.Close()
	if err != nil {
		return err
	}

	progress.Stage("reconnecting")
	reconnected, err := reconnect(device.ctx, device.VendorID(), device.ProductID())
	if err != nil {
		return err
	}

	conn2, err := reconnected.Connect(0, 0)
	if err != nil {
		return err
	}
	defer conn2.Close()

	st, err := conn2.GetStatus()
	if err != nil {
		return err
	}
	return st.Ok()
}

func reboot(device *Device, addr uint32, payload []byte, rebootAddr uint32, progress Progress) (*Device, error) {
	conn, err := device.Connect(0, 0)
	if err != nil {
		return nil, err
	}
	progress.Stage("rebooting")
	err = conn.Reboot(addr, payload, rebootAddr)
	conn.Close()
	if err != nil {
		return nil, err
	}

	progress.Stage("reconnecting")
	return reconnect(device.ctx, device.VendorID(), device.ProductID())
}

func reconnect(ctx *gousb.Context, vid, pid gousb.ID) (*Device, error) {
	start := time.Now()
	for {
		devices, err := FindDfuDevices(ctx, &vid, &pid)
		if err != nil {
			return nil, err
		}
		if len(devices) > 0 {
			return devices[0], nil
		}
		if time.Since(start) >= ReconnectTimeout {
			return nil, ErrTimeout
		}
		time.Sleep(reconnectPollInterval)
	}
}

func resolveStart(device *Device, startAddr *uint32) (uint32, error) {
	if startAddr != nil {
		return *startAddr, nil
	}
	return device.GetDefaultStartAddress()
}

func resetDefaultInterface(device *Device) error {
	conn, err := device.Connect(0, 0)
	if err != nil {
		return err
	}
	defer conn.Close()
	return conn.ResetState()
}

func leaveDefaultInterface(device *Device) error {
	conn, err := device.Connect(0, 0)
	if err != nil {
		return err
	}
	defer conn.Close()
	return conn.Leave()
}

func downloadRange(data []byte, device *Device, startAddr *uint32, progress Progress) error {
	start, err := resolveStart(device, startAddr)
	if err != nil {
		return err
	}
	end := start + uint32(len(data)) - 1

	is, err := device.FindInterfaceSegments(start, end)
	if err != nil {
		return err
	}

	conn, err := device.Connect(is.Number, is.AltSetting)
	if err != nil {
		return err
	}
	defer conn.Close()

	layout := device.interfaces[0].Layout
	for _, intf := range device.interfaces {
		if intf.Number == is.Number && intf.AltSetting == is.AltSetting {
			layout = intf.Layout
			break
		}
	}
	erasePages := layout.ErasePages(start, end)

	progress.Stage("erasing")
	for i, pageAddr := range erasePages {
		if err := conn.PageErase(pageAddr); err != nil {
			return err
		}
		progress.Update(i+1, len(erasePages))
	}

	progress.Stage("flashing")
	transferSize := int(conn.TransferSize())
	addr := start
	downloaded := 0
	for offset := 0; offset < len(data); offset += transferSize {
		end := offset + transferSize
		if end > len(data) {
			end = len(data)
		}
		chunk := data[offset:end]
		if err := conn.Download(addr, chunk); err != nil {
			return err
		}
		addr += uint32(len(chunk))
		downloaded += len(chunk)
		progress.Update(downloaded, len(data))
	}
	return nil
}
