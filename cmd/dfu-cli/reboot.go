package main

import (
	"flag"
	"fmt"

	"github.com/google/gousb"

	"github.com/guiperry/dfu-go/cmd/dfu-cli/progress"
	"github.com/guiperry/dfu-go/internal/dfu"
	"github.com/guiperry/dfu-go/internal/sizeutil"
)

const (
	defaultRebootPayload = "BDFU"
	defaultRebootStart   = 0x08000000
)

func runReboot(args []string) error {
	fs := flag.NewFlagSet("reboot", flag.ExitOnError)
	cf := bindCommon(fs)
	startFlag := fs.String("start-address", "", "application start address (hex or decimal, default 0x08000000)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: dfu-cli reboot [flags] <tag-addr>")
	}

	tagAddr, err := sizeutil.ParseUint32(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("tag-addr: %w", err)
	}

	startAddr := uint32(defaultRebootStart)
	if *startFlag != "" {
		v, err := sizeutil.ParseUint32(*startFlag)
		if err != nil {
			return fmt.Errorf("--start-address: %w", err)
		}
		startAddr = v
	}

	logger, err := cf.openLogger()
	if err != nil {
		return err
	}
	defer logger.Close()

	ctx := gousb.NewContext()
	defer ctx.Close()

	device, err := findDevice(ctx, cf)
	if err != nil {
		logger.Error("reboot: %v", err)
		return err
	}

	reporter := progress.New()
	if err := dfu.Reboot(device, tagAddr, []byte(defaultRebootPayload), startAddr, reporter); err != nil {
		logger.Error("reboot: %v", err)
		return err
	}
	logger.Info("reboot: reconnected and confirmed healthy")
	fmt.Println("reboot complete")
	return nil
}
