package main

import (
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/gousb"

	"github.com/guiperry/dfu-go/internal/dfu"
	"github.com/guiperry/dfu-go/internal/dfucfg"
	"github.com/guiperry/dfu-go/internal/dfulog"
	"github.com/guiperry/dfu-go/internal/sizeutil"
)

// commonFlags are the flags shared by every subcommand that touches a
// device: --vendor, --product and --log-dir.
type commonFlags struct {
	vendor string
	product string
	logDir string
}

func bindCommon(fs *flag.FlagSet) *commonFlags {
	cfg := dfucfg.Load()
	cf := &commonFlags{logDir: cfg.LogDir}
	fs.StringVar(&cf.vendor, "vendor", "", "vendor ID filter (hex, e.g. 0483)")
	fs.StringVar(&cf.product, "product", "", "product ID filter (hex, e.g. df11)")
	fs.StringVar(&cf.logDir, "log-dir", cf.logDir, "directory for session log files")
	return cf
}

func (cf *commonFlags) openLogger() (*dfulog.Logger, error) {
	return dfulog.New(cf.logDir, false)
}

func (cf *commonFlags) vendorProductFilters() (*gousb.ID, *gousb.ID, error) {
	cfg := dfucfg.Load()

	vid, err := optionalID(cf.vendor, cfg.VendorID)
	if err != nil {
		return nil, nil, fmt.Errorf("--vendor: %w", err)
	}
	pid, err := optionalID(cf.product, cfg.ProductID)
	if err != nil {
		return nil, nil, fmt.Errorf("--product: %w", err)
	}
	return vid, pid, nil
}

func optionalID(flagValue string, fallback *uint16) (*gousb.ID, error) {
	if flagValue == "" {
		if fallback == nil {
			return nil, nil
		}
		id := gousb.ID(*fallback)
		return &id, nil
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(strings.TrimPrefix(flagValue, "0x"), "0X"), 16, 16)
	if err != nil {
		return nil, err
	}
	id := gousb.ID(v)
	return &id, nil
}

// findDevice enumerates DFU devices matching cf's vendor/product filters and
// returns the first match.
func findDevice(ctx *gousb.Context, cf *commonFlags) (*dfu.Device, error) {
	vid, pid, err := cf.vendorProductFilters()
	if err != nil {
		return nil, err
	}
	devices, err := dfu.FindDfuDevices(ctx, vid, pid)
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("no matching DFU device found")
	}
	return devices[0], nil
}

func parseOptionalAddress(s string) (*uint32, error) {
	if s == "" {
		return nil, nil
	}
	v, err := sizeutil.ParseUint32(s)
	if err != nil {
		return nil, fmt.Errorf("--start-address: %w", err)
	}
	return &v, nil
}

func parseOptionalLength(s string) (*uint32, error) {
	if s == "" {
		return nil, nil
	}
	v, err := sizeutil.ParseUint32(s)
	if err != nil {
		return nil, fmt.Errorf("--length: %w", err)
	}
	return &v, nil
}
