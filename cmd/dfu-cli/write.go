package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/google/gousb"

	"github.com/guiperry/dfu-go/cmd/dfu-cli/progress"
	"github.com/guiperry/dfu-go/internal/dfu"
)

func runWrite(args []string) error {
	fs := flag.NewFlagSet("write", flag.ExitOnError)
	cf := bindCommon(fs)
	startFlag := fs.String("start-address", "", "start address (hex or decimal)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: dfu-cli write [flags] <input-file>")
	}
	inFile := fs.Arg(0)

	start, err := parseOptionalAddress(*startFlag)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(inFile)
	if err != nil {
		return fmt.Errorf("read %s: %w", inFile, err)
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
		logger.Error("write: %v", err)
		return err
	}

	reporter := progress.New()
	if err := dfu.Download(data, device, start, reporter); err != nil {
		logger.Error("write: download failed: %v", err)
		return err
	}
	logger.Info("write: flashed %d bytes from %s", len(data), inFile)
	fmt.Printf("flashed %d bytes from %s\n", len(data), inFile)
	return nil
}
