package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/google/gousb"

	"github.com/guiperry/dfu-go/cmd/dfu-cli/progress"
	"github.com/guiperry/dfu-go/internal/dfu"
)

func runRead(args []string) error {
	fs := flag.NewFlagSet("read", flag.ExitOnError)
	cf := bindCommon(fs)
	startFlag := fs.String("start-address", "", "start address (hex or decimal)")
	lengthFlag := fs.String("length", "", "byte count to read (accepts K/M suffixes)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: dfu-cli read [flags] <output-file>")
	}
	outFile := fs.Arg(0)

	start, err := parseOptionalAddress(*startFlag)
	if err != nil {
		return err
	}
	length, err := parseOptionalLength(*lengthFlag)
	if err != nil {
		return err
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
		logger.Error("read: %v", err)
		return err
	}

	reporter := progress.New()
	data, err := dfu.Upload(device, start, length, reporter)
	if err != nil {
		logger.Error("read: upload failed: %v", err)
		return err
	}

	if err := os.WriteFile(outFile, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", outFile, err)
	}
	logger.Info("read: wrote %d bytes to %s", len(data), outFile)
	fmt.Printf("wrote %d bytes to %s\n", len(data), outFile)
	return nil
}
