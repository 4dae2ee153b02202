//go:build unix

// Package bufpool hands out large, pre-sized, memory-mapped file regions to
// hold map samples while recording.
//
// A Pool has a fixed number of regions. Regions are granted one at a time and
// only returned all together by ReleaseAll. A Pool is not safe for
// concurrent use.
package bufpool

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"dmaple/internal/logging"
)

type entry struct {
	path  string
	f     *os.File
	data  []byte
	inUse bool
}

// Pool is a fixed set of file-backed byte regions.
type Pool struct {
	dir     string
	size    int64
	entries []*entry
}

// New describes a pool of n regions of size bytes stored in dir. Files are
// not touched until Init.
func New(dir string, n int, size int64) *Pool {
	p := &Pool{dir: dir, size: size}
	for k := 0; k < n; k++ {
		p.entries = append(p.entries, &entry{path: filepath.Join(dir, fmt.Sprintf("buffer_%d.dat", k))})
	}
	return p
}

// Dir is the directory holding the region files.
func (p *Pool) Dir() string { return p.dir }

// Size is the byte size of every region.
func (p *Pool) Size() int64 { return p.size }

// Len is the number of regions in the pool.
func (p *Pool) Len() int { return len(p.entries) }

// Paths lists the region files.
func (p *Pool) Paths() []string {
	out := make([]string, len(p.entries))
	for k, e := range p.entries {
		out[k] = e.path
	}
	return out
}

// Init creates every region file and extends any that is smaller than the
// region size. Existing files that are large enough are left alone, so Init
// can be repeated. It stops at the first file that cannot be extended, for
// example when storage is full.
func (p *Pool) Init() error {
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return fmt.Errorf("creating buffer directory: %w", err)
	}
	for _, e := range p.entries {
		if err := p.prepare(e.path); err != nil {
			return err
		}
	}
	logging.Infof("buffer pool: %d x %s in %s", len(p.entries), logging.Bytes(p.size), p.dir)
	return nil
}

func (p *Pool) prepare(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("opening buffer file: %w", err)
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat buffer file: %w", err)
	}
	if fi.Size() >= p.size {
		return nil
	}
	if err := reserve(f, p.size); err != nil {
		return fmt.Errorf("extending %s to %s: %w", path, logging.Bytes(p.size), err)
	}
	logging.Debugf("extended %s from %s to %s", path, logging.Bytes(fi.Size()), logging.Bytes(p.size))
	return nil
}

// Free is the number of regions not yet granted.
func (p *Pool) Free() int {
	n := 0
	for _, e := range p.entries {
		if !e.inUse {
			n++
		}
	}
	return n
}

// Allocate maps the first free region for reading and writing. It reports
// false when every region is in use or the free region cannot be mapped.
func (p *Pool) Allocate() ([]byte, bool) {
	for _, e := range p.entries {
		if e.inUse {
			continue
		}
		if err := p.mmap(e); err != nil {
			logging.Errorf("buffer pool: %v", err)
			return nil, false
		}
		return e.data, true
	}
	return nil, false
}

// AllocateN grants n regions, or none if fewer than n are free.
func (p *Pool) AllocateN(n int) ([][]byte, bool) {
	if p.Free() < n {
		return nil, false
	}
	out := make([][]byte, 0, n)
	for len(out) < n {
		b, ok := p.Allocate()
		if !ok {
			return nil, false
		}
		out = append(out, b)
	}
	return out, true
}

func (p *Pool) mmap(e *entry) error {
	if p.size <= 0 {
		return fmt.Errorf("region size must be positive, got %d", p.size)
	}
	f, err := os.OpenFile(e.path, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("opening buffer file: %w", err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat buffer file: %w", err)
	}
	if fi.Size() < p.size {
		f.Close()
		return fmt.Errorf("%s holds %s, need %s", e.path, logging.Bytes(fi.Size()), logging.Bytes(p.size))
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(p.size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return fmt.Errorf("mapping %s: %w", e.path, err)
	}
	e.f, e.data, e.inUse = f, data, true
	return nil
}

// ReleaseAll unmaps and closes every granted region and marks it free.
// Slices returned by Allocate must not be used afterwards.
func (p *Pool) ReleaseAll() error {
	var first error
	for _, e := range p.entries {
		if !e.inUse {
			continue
		}
		if err := unix.Munmap(e.data); err != nil && first == nil {
			first = fmt.Errorf("unmapping %s: %w", e.path, err)
		}
		if err := e.f.Close(); err != nil && first == nil {
			first = fmt.Errorf("closing %s: %w", e.path, err)
		}
		e.f, e.data, e.inUse = nil, nil, false
	}
	return first
}
