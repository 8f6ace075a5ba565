package dfu

import (
	"encoding/binary"
	"fmt"

	"github.com/google/gousb"

	"github.com/guiperry/dfu-go/internal/memory"
)

const (
	dfuClass    = 0xFE
	dfuSubClass = 0x01
)

// Standard USB control requests, used to pull the raw configuration
// descriptor so each alternate setting's iInterface string index can be
// recovered (gousb's InterfaceSetting does not expose it directly), and to
// read string descriptors.
const (
	reqGetDescriptor  uint8 = 0x06
	descTypeConfig    uint8 = 0x02
	languageUSEnglish uint16 = 0x0409
)

// Interface is one DFU-class alternate setting: its claimed interface and
// alternate setting number, plus the memory layout parsed from its
// interface string descriptor.
type Interface struct {
	Number      int
	AltSetting  int
	ConfigValue int
	Layout      memory.Layout
}

// FindSegments delegates to the parsed layout.
func (i Interface) FindSegments(start, end uint32) []memory.Segment {
	return i.Layout.FindSegments(start, end)
}

// InterfaceSegments pairs a matched interface/alt-setting with the
// contiguous run of segments covering a requested address range.
type InterfaceSegments struct {
	Number     int
	AltSetting int
	Segments   []memory.Segment
}

// Device is one enumerated DFU-capable USB device and its DFU-class
// alternate settings.
type Device struct {
	ctx        *gousb.Context
	desc       *gousb.DeviceDesc
	interfaces []Interface
}

// VendorID returns idVendor.
func (d *Device) VendorID() gousb.ID { return d.desc.Vendor }

// ProductID returns idProduct.
func (d *Device) ProductID() gousb.ID { return d.desc.Product }

// Interfaces returns every DFU-class alternate setting found on this
// device, across all configurations.
func (d *Device) Interfaces() []Interface { return d.interfaces }

// GetDefaultStartAddress returns the start address of the first segment of
// the first interface, used when a caller omits an explicit address.
func (d *Device) GetDefaultStartAddress() (uint32, error) {
	if len(d.interfaces) == 0 || len(d.interfaces[0].Layout.Segments) == 0 {
		return 0, ErrNoMemorySegments
	}
	return d.interfaces[0].Layout.Segments[0].StartAddr, nil
}

// FindInterfaceSegments locates the alternate setting whose layout fully
// covers [start, end] with a contiguous run of segments, preferring the
// first matching interface in enumeration order.
func (d *Device) FindInterfaceSegments(start, end uint32) (InterfaceSegments, error) {
	for _, intf := range d.interfaces {
		segs := intf.FindSegments(start, end)
		if len(segs) == 0 {
			continue
		}
		if start < segs[0].StartAddr || end > segs[len(segs)-1].EndAddr {
			continue
		}
		return InterfaceSegments{Number: intf.Number, AltSetting: intf.AltSetting, Segments: segs}, nil
	}
	if len(d.interfaces) == 0 {
		return InterfaceSegments{}, ErrInvalidInterface
	}
	return InterfaceSegments{}, ErrNoMemorySegments
}

// Descriptor reads the DFU functional descriptor from the first
// configuration and interface that carries one; absent that, it returns the
// zero Descriptor (CanDownload/CanUpload false, DefaultTransferSize).
func (d *Device) Descriptor() (Descriptor, error) {
	dev, err := d.open()
	if err != nil {
		return Descriptor{}, err
	}
	defer dev.Close()

	for cfgNum := range d.desc.Configs {
		raw, err := readRawConfigDescriptor(dev, cfgNum)
		if err != nil {
			continue
		}
		if desc, ok := findDFUDescriptor(raw); ok {
			return desc, nil
		}
	}
	return Descriptor{}, nil
}

// Connect claims the given interface, selects the alternate setting, and
// returns a Connection ready to drive the DFU state machine.
func (d *Device) Connect(number, altSetting int) (*Connection, error) {
	desc, err := d.Descriptor()
	if err != nil {
		return nil, err
	}

	dev, err := d.open()
	if err != nil {
		return nil, err
	}

	cfgNum := d.desc.Configs[firstConfigNum(d.desc)].Number
	cfg, err := dev.Config(cfgNum)
	if err != nil {
		dev.Close()
		return nil, wrapTransport(err)
	}

	intf, err := cfg.Interface(number, altSetting)
	if err != nil {
		cfg.Close()
		dev.Close()
		return nil, wrapTransport(err)
	}

	return newConnection(&usbTransport{dev: dev, cfg: cfg, intf: intf}, desc.EffectiveTransferSize()), nil
}

func firstConfigNum(desc *gousb.DeviceDesc) int {
	for n := range desc.Configs {
		return n
	}
	return 1
}

func (d *Device) open() (*gousb.Device, error) {
	devs, err := d.ctx.OpenDevices(func(dd *gousb.DeviceDesc) bool {
		return dd.Vendor == d.desc.Vendor && dd.Product == d.desc.Product && dd.Address == d.desc.Address && dd.Bus == d.desc.Bus
	})
	if err != nil {
		return nil, wrapTransport(err)
	}
	if len(devs) == 0 {
		return nil, wrapTransport(fmt.Errorf("device no longer present"))
	}
	for _, extra := range devs[1:] {
		extra.Close()
	}
	return devs[0], nil
}

// usbTransport adapts a claimed gousb interface to the transport interface
// Connection depends on.
type usbTransport struct {
	dev  *gousb.Device
	cfg  *gousb.Config
	intf *gousb.Interface
}

func (t *usbTransport) ControlOut(request uint8, value uint16, data []byte) error {
	_, err := t.dev.Control(0x21, request, value, uint16(t.intf.Setting.Number), data)
	return err
}

func (t *usbTransport) ControlIn(request uint8, value uint16, length uint16) ([]byte, error) {
	buf := make([]byte, length)
	n, err := t.dev.Control(0xA1, request, value, uint16(t.intf.Setting.Number), buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func (t *usbTransport) Close() error {
	t.intf.Close()
	t.cfg.Close()
	return t.dev.Close()
}

// FindDfuDevices enumerates every USB device exposing a DFU-class interface
// (class 0xFE, subclass 0x01), optionally filtered by vendor and/or product
// ID, and parses each alternate setting's memory layout.
func FindDfuDevices(ctx *gousb.Context, vid, pid *gousb.ID) ([]*Device, error) {
	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if vid != nil && desc.Vendor != *vid {
			return false
		}
		if pid != nil && desc.Product != *pid {
			return false
		}
		return isDFUDeviceDesc(desc)
	})
	if err != nil {
		return nil, wrapTransport(err)
	}

	var result []*Device
	for _, dev := range devs {
		interfaces, err := dfuInterfaces(dev)
		dev.Close()
		if err != nil {
			return result, err
		}
		if len(interfaces) == 0 {
			continue
		}
		result = append(result, &Device{ctx: ctx, desc: dev.Desc, interfaces: interfaces})
	}
	return result, nil
}

func isDFUDeviceDesc(desc *gousb.DeviceDesc) bool {
	for _, cfg := range desc.Configs {
		for _, iface := range cfg.Interfaces {
			for _, alt := range iface.AltSettings {
				if uint8(alt.Class) == dfuClass && uint8(alt.SubClass) == dfuSubClass {
					return true
				}
			}
		}
	}
	return false
}

func dfuInterfaces(dev *gousb.Device) ([]Interface, error) {
	var interfaces []Interface
	for cfgNum, cfg := range dev.Desc.Configs {
		raw, err := readRawConfigDescriptor(dev, cfgNum)
		if err != nil {
			continue
		}
		strIdx := interfaceStringIndexes(raw)
		for _, iface := range cfg.Interfaces {
			for _, alt := range iface.AltSettings {
				if uint8(alt.Class) != dfuClass || uint8(alt.SubClass) != dfuSubClass {
					continue
				}
				idx, ok := strIdx[altKey{number: alt.Number, alternate: alt.Alternate}]
				if !ok || idx == 0 {
					continue
				}
				s, err := getStringDescriptor(dev, idx)
				if err != nil {
					continue
				}
				layout, ok := memory.Parse(s)
				if !ok {
					continue
				}
				interfaces = append(interfaces, Interface{
					Number:      alt.Number,
					AltSetting:  alt.Alternate,
					ConfigValue: cfg.Number,
					Layout:      layout,
				})
			}
		}
	}
	return interfaces, nil
}

// getStringDescriptor reads string descriptor index in the first language
// of the device's supported-language list (string descriptor 0), using US
// English when that list cannot be read or is empty.
func getStringDescriptor(dev *gousb.Device, index uint8) (string, error) {
	lang := languageUSEnglish
	langs := make([]byte, 255)
	if n, err := dev.Control(0x80, reqGetDescriptor, uint16(0x03)<<8, 0, langs); err == nil && n >= 4 && langs[0] >= 4 {
		lang = binary.LittleEndian.Uint16(langs[2:4])
	}
	buf := make([]byte, 255)
	n, err := dev.Control(0x80, reqGetDescriptor, uint16(0x03)<<8|uint16(index), lang, buf)
	if err != nil {
		return "", wrapTransport(err)
	}
	return decodeStringDescriptor(buf[:n])
}

func decodeStringDescriptor(raw []byte) (string, error) {
	if len(raw) < 2 || int(raw[0]) > len(raw) {
		return "", wrapTransport(fmt.Errorf("malformed string descriptor"))
	}
	utf16 := raw[2:raw[0]]
	runes := make([]uint16, len(utf16)/2)
	for i := range runes {
		runes[i] = binary.LittleEndian.Uint16(utf16[i*2:])
	}
	return decodeUTF16(runes), nil
}

func decodeUTF16(u []uint16) string {
	out := make([]rune, 0, len(u))
	for i := 0; i < len(u); i++ {
		r := rune(u[i])
		if r >= 0xD800 && r < 0xDC00 && i+1 < len(u) {
			r2 := rune(u[i+1])
			if r2 >= 0xDC00 && r2 < 0xE000 {
				r = ((r - 0xD800) << 10) | (r2 - 0xDC00) + 0x10000
				i++
			}
		}
		out = append(out, r)
	}
	return string(out)
}

type altKey struct {
	number, alternate int
}

// readRawConfigDescriptor fetches the full configuration descriptor (the
// interface, endpoint, and class-specific descriptors concatenated after
// the 9-byte configuration header) so iInterface indexes and the DFU
// functional descriptor can be recovered.
func readRawConfigDescriptor(dev *gousb.Device, cfgIndex int) ([]byte, error) {
	header := make([]byte, 9)
	_, err := dev.Control(0x80, reqGetDescriptor, uint16(descTypeConfig)<<8|uint16(cfgIndex), 0, header)
	if err != nil {
		return nil, wrapTransport(err)
	}
	total := int(binary.LittleEndian.Uint16(header[2:4]))
	full := make([]byte, total)
	_, err = dev.Control(0x80, reqGetDescriptor, uint16(descTypeConfig)<<8|uint16(cfgIndex), 0, full)
	if err != nil {
		return nil, wrapTransport(err)
	}
	return full, nil
}

// interfaceStringIndexes walks a raw configuration descriptor's concatenated
// descriptor list and records the iInterface string index of each interface
// descriptor, keyed by (bInterfaceNumber, bAlternateSetting).
func interfaceStringIndexes(raw []byte) map[altKey]uint8 {
	out := make(map[altKey]uint8)
	for off := 0; off+2 <= len(raw); {
		length := int(raw[off])
		if length == 0 || off+length > len(raw) {
			break
		}
		descType := raw[off+1]
		const descTypeInterface = 0x04
		if descType == descTypeInterface && length >= 9 {
			key := altKey{number: int(raw[off+2]), alternate: int(raw[off+3])}
			out[key] = raw[off+8]
		}
		off += length
	}
	return out
}

// findDFUDescriptor scans a raw configuration descriptor for the 9-byte DFU
// functional descriptor (type 0x21).
func findDFUDescriptor(raw []byte) (Descriptor, bool) {
	for off := 0; off+2 <= len(raw); {
		length := int(raw[off])
		if length == 0 || off+length > len(raw) {
			break
		}
		candidate := raw[off : off+length]
		if isDFUFunctionalDescriptor(candidate) {
			return decodeDescriptor(candidate), true
		}
		off += length
	}
	return Descriptor{}, false
}
