package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/google/gousb"

	"github.com/guiperry/dfu-go/internal/dfu"
)

type listedSegment struct {
	Start      string `json:"start"`
	End        string `json:"end"`
	PageSize   uint32 `json:"page_size"`
	Readable   bool   `json:"readable"`
	Erasable   bool   `json:"erasable"`
	Writable   bool   `json:"writable"`
}

type listedInterface struct {
	Number     int             `json:"number"`
	AltSetting int             `json:"alt_setting"`
	Segments   []listedSegment `json:"segments"`
}

type listedDevice struct {
	VendorID   string            `json:"vendor_id"`
	ProductID  string            `json:"product_id"`
	Interfaces []listedInterface `json:"interfaces"`
}

func runList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	cf := bindCommon(fs)
	asJSON := fs.Bool("json", false, "print machine-readable JSON")
	doCopy := fs.Bool("copy", false, "copy the rendered listing to the clipboard")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger, err := cf.openLogger()
	if err != nil {
		return err
	}
	defer logger.Close()

	vid, pid, err := cf.vendorProductFilters()
	if err != nil {
		return err
	}

	ctx := gousb.NewContext()
	defer ctx.Close()

	devices, err := dfu.FindDfuDevices(ctx, vid, pid)
	if err != nil {
		logger.Error("list: enumeration failed: %v", err)
		return err
	}
	logger.Info("list: found %d device(s)", len(devices))

	listed := make([]listedDevice, 0, len(devices))
	for _, dev := range devices {
		ld := listedDevice{
			VendorID:  fmt.Sprintf("%04x", uint16(dev.VendorID())),
			ProductID: fmt.Sprintf("%04x", uint16(dev.ProductID())),
		}
		for _, intf := range dev.Interfaces() {
			li := listedInterface{Number: intf.Number, AltSetting: intf.AltSetting}
			for _, seg := range intf.Layout.Segments {
				li.Segments = append(li.Segments, listedSegment{
					Start:    fmt.Sprintf("0x%08x", seg.StartAddr),
					End:      fmt.Sprintf("0x%08x", seg.EndAddr),
					PageSize: seg.PageSize,
					Readable: seg.Readable(),
					Erasable: seg.Erasable(),
					Writable: seg.Writable(),
				})
			}
			ld.Interfaces = append(ld.Interfaces, li)
		}
		listed = append(listed, ld)
	}

	var rendered string
	if *asJSON {
		data, err := json.MarshalIndent(listed, "", "  ")
		if err != nil {
			return err
		}
		rendered = string(data)
	} else {
		rendered = renderListing(listed)
	}
	fmt.Println(rendered)

	if *doCopy {
		if err := clipboard.WriteAll(rendered); err != nil {
			logger.Warn("list: clipboard copy failed: %v", err)
		} else {
			fmt.Fprintln(os.Stderr, "copied to clipboard")
		}
	}
	return nil
}

func renderListing(devices []listedDevice) string {
	var b strings.Builder
	if len(devices) == 0 {
		b.WriteString("no DFU devices found\n")
		return b.String()
	}
	for _, d := range devices {
		fmt.Fprintf(&b, "device %s:%s\n", d.VendorID, d.ProductID)
		for _, intf := range d.Interfaces {
			fmt.Fprintf(&b, "  interface %d, alt %d\n", intf.Number, intf.AltSetting)
			for _, seg := range intf.Segments {
				fmt.Fprintf(&b, "    %s-%s page=%d r=%v e=%v w=%v\n",
					seg.Start, seg.End, seg.PageSize, seg.Readable, seg.Erasable, seg.Writable)
			}
		}
	}
	return b.String()
}
