// Copyright 2026 The Siphon Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package cache

import (
	"io/fs"
	"syscall"
	"time"
)

// atime extracts the access time from a stat result. Regular files
// only; the caller has already checked info.Mode().IsRegular().
func atime(info fs.FileInfo) time.Time {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return info.ModTime()
	}
	return time.Unix(stat.Atim.Sec, stat.Atim.Nsec)
}
