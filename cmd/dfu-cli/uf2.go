package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/atotto/clipboard"

	"github.com/guiperry/dfu-go/internal/uf2"
)

type uf2Range struct {
	Start        string `json:"start"`
	Length       int    `json:"length"`
	RebootAddr   string `json:"reboot_address,omitempty"`
}

func runUF2(args []string) error {
	fs := flag.NewFlagSet("uf2", flag.ExitOnError)
	asJSON := fs.Bool("json", false, "print machine-readable JSON")
	doCopy := fs.Bool("copy", false, "copy the rendered listing to the clipboard")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: dfu-cli uf2 [flags] <file>")
	}

	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("read %s: %w", fs.Arg(0), err)
	}
	if !uf2.IsPayload(data) {
		return fmt.Errorf("%s is not a UF2 container", fs.Arg(0))
	}

	it, err := uf2.NewRangeIterator(data)
	if err != nil {
		return err
	}

	var ranges []uf2Range
	for {
		r, ok := it.Next()
		if !ok {
			break
		}
		ur := uf2Range{Start: fmt.Sprintf("0x%08x", r.StartAddress), Length: len(r.Payload)}
		if r.RebootAddress != nil {
			ur.RebootAddr = fmt.Sprintf("0x%08x", *r.RebootAddress)
		}
		ranges = append(ranges, ur)
	}

	var rendered string
	if *asJSON {
		out, err := json.MarshalIndent(ranges, "", "  ")
		if err != nil {
			return err
		}
		rendered = string(out)
	} else {
		rendered = renderRanges(ranges)
	}
	fmt.Println(rendered)

	if *doCopy {
		if err := clipboard.WriteAll(rendered); err != nil {
			fmt.Fprintf(os.Stderr, "clipboard copy failed: %v\n", err)
		} else {
			fmt.Fprintln(os.Stderr, "copied to clipboard")
		}
	}
	return nil
}

func renderRanges(ranges []uf2Range) string {
	var b strings.Builder
	for i, r := range ranges {
		fmt.Fprintf(&b, "range %d: start=%s length=%d", i, r.Start, r.Length)
		if r.RebootAddr != "" {
			fmt.Fprintf(&b, " reboot=%s", r.RebootAddr)
		}
		b.WriteString("\n")
	}
	return b.String()
}
