// Copyright 2026 The Siphon Authors
// SPDX-License-Identifier: Apache-2.0

package fuseadapter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/siphonfs/siphon/lib/cache"
)

// Options configures the FUSE mount.
type Options struct {
	// Mountpoint is the directory the union is mounted at. Created
	// if it does not already exist.
	Mountpoint string

	// Core drives every open/read/close and resolves every lookup's
	// physical location.
	Core *cache.Core

	// SourceRoot is the directory whose tree shape the mount
	// mirrors. Must match the source root Core was constructed
	// with.
	SourceRoot string

	// AllowOther permits other users, including root, to access the
	// mount. Requires user_allow_other in /etc/fuse.conf.
	AllowOther bool

	// Logger receives diagnostic messages. If nil, a no-op logger is
	// used.
	Logger *slog.Logger
}

// Mount mounts the union filesystem at options.Mountpoint. The caller
// must call Unmount on the returned Server when done.
func Mount(options Options) (*fuse.Server, error) {
	if options.Mountpoint == "" {
		return nil, fmt.Errorf("mountpoint is required")
	}
	if options.Core == nil {
		return nil, fmt.Errorf("core is required")
	}
	if options.SourceRoot == "" {
		return nil, fmt.Errorf("source root is required")
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
	}

	if err := os.MkdirAll(options.Mountpoint, 0o755); err != nil {
		return nil, fmt.Errorf("creating mountpoint %s: %w", options.Mountpoint, err)
	}

	root := &dirNode{options: &options, virtualPath: ""}

	entryTimeout := 1 * time.Second
	attrTimeout := 1 * time.Second
	negativeTimeout := 100 * time.Millisecond

	server, err := gofuse.Mount(options.Mountpoint, root, &gofuse.Options{
		EntryTimeout:    &entryTimeout,
		AttrTimeout:     &attrTimeout,
		NegativeTimeout: &negativeTimeout,
		MountOptions: fuse.MountOptions{
			FsName:     "siphon",
			Name:       "siphon",
			AllowOther: options.AllowOther,
			Options:    []string{"ro"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("mounting FUSE filesystem at %s: %w", options.Mountpoint, err)
	}

	options.Logger.Info("siphon mounted", "mountpoint", options.Mountpoint, "source", options.SourceRoot)
	return server, nil
}

// virtualChild appends name to a virtual directory path using the
// "/a/b" convention Core.Locate expects, without letting
// filepath.Join collapse the mount root into a bare ".".
func virtualChild(dir, name string) string {
	if dir == "" {
		return "/" + name
	}
	return dir + "/" + name
}

// dirNode is a passthrough directory: its children are the
// directories and regular files of sourceRoot+virtualPath; entries of
// any other type are left out. Caching
// never adds or removes namespace entries, only changes where a
// regular file's bytes come from.
type dirNode struct {
	gofuse.Inode
	options     *Options
	virtualPath string // "" for the mount root, "/a" for a subdirectory
}

var _ gofuse.InodeEmbedder = (*dirNode)(nil)
var _ gofuse.NodeLookuper = (*dirNode)(nil)
var _ gofuse.NodeReaddirer = (*dirNode)(nil)
var _ gofuse.NodeGetattrer = (*dirNode)(nil)

func (d *dirNode) sourcePath() string {
	return filepath.Join(d.options.SourceRoot, d.virtualPath)
}

func (d *dirNode) Getattr(ctx context.Context, f gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	info, err := os.Lstat(d.sourcePath())
	if err != nil {
		return errnoFor(err)
	}
	out.Mode = syscall.S_IFDIR | 0o555
	out.Mtime = uint64(info.ModTime().Unix())
	return 0
}

func (d *dirNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	childVirtual := virtualChild(d.virtualPath, name)
	info, err := os.Lstat(filepath.Join(d.options.SourceRoot, childVirtual))
	if err != nil {
		return nil, errnoFor(err)
	}

	if info.IsDir() {
		child := &dirNode{options: d.options, virtualPath: childVirtual}
		inode := d.NewPersistentInode(ctx, child, gofuse.StableAttr{Mode: syscall.S_IFDIR})
		out.Mode = syscall.S_IFDIR | 0o555
		return inode, 0
	}

	if !info.Mode().IsRegular() {
		return nil, syscall.ENOENT
	}

	child := &fileNode{options: d.options, virtualPath: childVirtual}
	inode := d.NewPersistentInode(ctx, child, gofuse.StableAttr{Mode: syscall.S_IFREG})
	out.Mode = syscall.S_IFREG | 0o444
	out.Size = uint64(info.Size())
	return inode, 0
}

func (d *dirNode) Readdir(ctx context.Context) (gofuse.DirStream, syscall.Errno) {
	entries, err := os.ReadDir(d.sourcePath())
	if err != nil {
		return nil, errnoFor(err)
	}

	fuseEntries := make([]fuse.DirEntry, 0, len(entries))
	for _, entry := range entries {
		mode := uint32(syscall.S_IFREG)
		if entry.IsDir() {
			mode = syscall.S_IFDIR
		} else if info, err := entry.Info(); err != nil || !info.Mode().IsRegular() {
			continue
		}
		fuseEntries = append(fuseEntries, fuse.DirEntry{Name: entry.Name(), Mode: mode})
	}

	return gofuse.NewListDirStream(fuseEntries), 0
}

// nextDescriptor hands out process-unique [cache.Descriptor] values
// for OnOpen/OnRead/OnClose, since FUSE gives the adapter no
// persistent handle of its own to reuse.
var nextDescriptor atomic.Uint64

func allocateDescriptor() cache.Descriptor {
	return cache.Descriptor(nextDescriptor.Add(1))
}

// fileNode is a regular file in the mounted union. Its physical
// location is resolved fresh on every Getattr, Open, and Read via
// Core.Locate, so a cache completing mid-open is observed correctly
// on the very next read rather than pinned to whatever was true when
// the file was opened.
type fileNode struct {
	gofuse.Inode
	options     *Options
	virtualPath string
}

var _ gofuse.InodeEmbedder = (*fileNode)(nil)
var _ gofuse.NodeGetattrer = (*fileNode)(nil)
var _ gofuse.NodeOpener = (*fileNode)(nil)

func (n *fileNode) Getattr(ctx context.Context, f gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	info, err := n.options.Core.Locate(n.virtualPath)
	if err != nil {
		return errnoFor(err)
	}
	out.Mode = syscall.S_IFREG | 0o444
	out.Size = uint64(info.Stats.Size)
	out.Blocks = (out.Size + 511) / 512
	out.Mtime = uint64(info.Stats.Mtime.Unix())
	out.Atime = uint64(info.Stats.Atime.Unix())
	return 0
}

func (n *fileNode) Open(ctx context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	if flags&(syscall.O_WRONLY|syscall.O_RDWR) != 0 {
		return nil, 0, syscall.EROFS
	}

	fd := allocateDescriptor()
	if err := n.options.Core.OnOpen(fd, n.virtualPath); err != nil {
		return nil, 0, errnoFor(err)
	}

	return &fileHandle{options: n.options, virtualPath: n.virtualPath, fd: fd}, 0, 0
}

// fileHandle is the per-open state for a fileNode. It holds the
// descriptor Core assigned at Open so Read and Release can report
// back to the same policy-engine record.
type fileHandle struct {
	options     *Options
	virtualPath string
	fd          cache.Descriptor
}

var _ gofuse.FileReader = (*fileHandle)(nil)
var _ gofuse.FileReleaser = (*fileHandle)(nil)

func (h *fileHandle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	info, err := h.options.Core.Locate(h.virtualPath)
	if err != nil {
		return nil, errnoFor(err)
	}

	file, err := os.Open(info.FullPath)
	if err != nil {
		return nil, errnoFor(err)
	}
	defer file.Close()

	n, err := file.ReadAt(dest, off)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, errnoFor(err)
	}

	h.options.Core.OnRead(h.fd, int64(n))
	return fuse.ReadResultData(dest[:n]), 0
}

func (h *fileHandle) Release(ctx context.Context) syscall.Errno {
	h.options.Core.OnClose(h.fd)
	return 0
}

// errnoFor maps a Go error from the source/cache filesystem to the
// syscall.Errno FUSE expects, preferring the wrapped errno when one
// is present and falling back to EIO.
func errnoFor(err error) syscall.Errno {
	if err == nil {
		return 0
	}
	if errors.Is(err, fs.ErrNotExist) {
		return syscall.ENOENT
	}
	if errors.Is(err, fs.ErrPermission) {
		return syscall.EACCES
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno
	}
	return syscall.EIO
}
