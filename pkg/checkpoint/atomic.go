package checkpoint

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
)

// atomicWrite implements the write discipline of §4.1: create a temp file in
// the target directory, take an exclusive advisory lock, write, release,
// then rename onto the target. Correct for local/POSIX filesystems only
// (§9 open question — lock correctness across NFS is unverified).
func atomicWrite(targetPath string, data []byte) error {
	dir := filepath.Dir(targetPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("checkpoint: mkdir %q: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("checkpoint: create temp file in %q: %w", dir, err)
	}
	tmpPath := tmp.Name()
	defer func() {
		// Best-effort cleanup; succeeds silently once renamed away.
		os.Remove(tmpPath)
	}()

	if err := syscall.Flock(int(tmp.Fd()), syscall.LOCK_EX); err != nil {
		tmp.Close()
		return fmt.Errorf("checkpoint: lock temp file: %w", err)
	}

	_, writeErr := tmp.Write(data)
	syncErr := tmp.Sync()
	unlockErr := syscall.Flock(int(tmp.Fd()), syscall.LOCK_UN)
	closeErr := tmp.Close()

	for _, e := range []error{writeErr, syncErr, unlockErr, closeErr} {
		if e != nil {
			return fmt.Errorf("checkpoint: write temp file: %w", e)
		}
	}

	if err := os.Rename(tmpPath, targetPath); err != nil {
		return fmt.Errorf("checkpoint: rename %q -> %q: %w", tmpPath, targetPath, err)
	}
	return nil
}

// atomicRead acquires a shared advisory lock while reading a file.
func atomicRead(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_SH); err != nil {
		return nil, fmt.Errorf("checkpoint: lock %q for read: %w", path, err)
	}
	defer syscall.Flock(int(f.Fd()), syscall.LOCK_UN)

	return io.ReadAll(f)
}

// rotateVersions implements the version-rotation chain before state.json is
// overwritten: state.json -> .1 -> .2 -> .3, dropping the oldest (§4.1, §8
// invariant "never exceeds 4").
func rotateVersions(base string) error {
	chain := []string{base + ".2", base + ".1", base}
	targets := []string{base + ".3", base + ".2", base + ".1"}
	for i, src := range chain {
		if _, err := os.Stat(src); err != nil {
			continue
		}
		if err := os.Rename(src, targets[i]); err != nil {
			return fmt.Errorf("checkpoint: rotate %q -> %q: %w", src, targets[i], err)
		}
	}
	return nil
}
