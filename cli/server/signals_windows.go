//go:build windows

package server

import "syscall"

const sighup = syscall.Signal(0x1)
