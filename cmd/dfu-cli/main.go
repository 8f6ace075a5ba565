// dfu-cli drives USB DFU/DfuSe devices: listing, reading, writing, and
// rebooting, plus inspecting UF2 firmware containers.
//
// Copyright (C) 2026 Guillermo Perry
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "list":
		err = runList(os.Args[2:])
	case "read":
		err = runRead(os.Args[2:])
	case "write":
		err = runWrite(os.Args[2:])
	case "reboot":
		err = runReboot(os.Args[2:])
	case "uf2":
		err = runUF2(os.Args[2:])
	case "-h", "--help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand %q\n", os.Args[1])
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: dfu-cli <command> [flags]

commands:
  list                 enumerate DFU-capable USB devices
  read <file>          upload device memory to <file>
  write <file>         download <file> to device memory
  reboot <tag-addr>    switch DfuSe pointer and reboot into application firmware
  uf2 <file>           inspect a UF2 container without touching a device

common flags:
  --vendor   hex vendor ID filter
  --product  hex product ID filter
  --start-address  hex or decimal start address
  --length   byte count (accepts K/M suffixes)
  --log-dir  directory for per-invocation session logs`)
}
