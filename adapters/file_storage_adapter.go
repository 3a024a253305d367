package adapters

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

const (
	queueFileSuffix = "-courier.queue.json"
	flagsFileSuffix = "-courier.feature-flags.json"
)

// FileStorageAdapter is the default storage adapter implementation using file system.
// The queue and the flag cache live in two independent JSON files named after the
// application namespace.
type FileStorageAdapter struct {
	queuePath string
	flagsPath string
}

// Ensure FileStorageAdapter implements StorageAdapter interface
var _ StorageAdapter = (*FileStorageAdapter)(nil)

// NewFileStorageAdapter creates a new FileStorageAdapter instance.
//
// Parameters:
//   - dir: Directory holding both snapshot files; created on first save
//   - namespace: Application identifier used as the file name prefix
func NewFileStorageAdapter(dir, namespace string) *FileStorageAdapter {
	return &FileStorageAdapter{
		queuePath: filepath.Join(dir, namespace+queueFileSuffix),
		flagsPath: filepath.Join(dir, namespace+flagsFileSuffix),
	}
}

// DefaultStorageDir returns the platform cache directory, falling back to the
// system temp directory when no cache directory is defined.
func DefaultStorageDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return dir
	}
	return os.TempDir()
}

// QueuePath returns the queue snapshot path.
func (f *FileStorageAdapter) QueuePath() string {
	return f.queuePath
}

// FlagsPath returns the flag cache path.
func (f *FileStorageAdapter) FlagsPath() string {
	return f.flagsPath
}

// SaveQueue persists events to the queue file.
func (f *FileStorageAdapter) SaveQueue(events []Event) error {
	data, err := EncodeEvents(events)
	if err != nil {
		return fmt.Errorf("encode queue: %w", err)
	}
	return writeFileAtomic(f.queuePath, data)
}

// LoadQueue retrieves events from the queue file.
// Returns empty slice if file doesn't exist.
func (f *FileStorageAdapter) LoadQueue() ([]Event, error) {
	data, err := os.ReadFile(f.queuePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Event{}, nil
		}
		return nil, err
	}
	events, err := DecodeEvents(data)
	if err != nil {
		return nil, fmt.Errorf("decode queue %s: %w", f.queuePath, err)
	}
	return events, nil
}

// SaveFlags persists the flag cache.
func (f *FileStorageAdapter) SaveFlags(flags ldvalue.ValueMap) error {
	data, err := EncodeValueMap(flags)
	if err != nil {
		return fmt.Errorf("encode flags: %w", err)
	}
	return writeFileAtomic(f.flagsPath, data)
}

// LoadFlags retrieves the flag cache.
// Returns empty mapping if file doesn't exist.
func (f *FileStorageAdapter) LoadFlags() (ldvalue.ValueMap, error) {
	data, err := os.ReadFile(f.flagsPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ldvalue.ValueMap{}, nil
		}
		return ldvalue.ValueMap{}, err
	}
	flags, err := DecodeValueMap(data)
	if err != nil {
		return ldvalue.ValueMap{}, fmt.Errorf("decode flags %s: %w", f.flagsPath, err)
	}
	return flags, nil
}

// Clear removes both snapshot files.
func (f *FileStorageAdapter) Clear() error {
	var errs []error
	for _, path := range []string{f.queuePath, f.flagsPath} {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// writeFileAtomic writes to a temp file in the target directory and renames it
// over path, so readers see either the old or the new content.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return err
	}
	return nil
}
