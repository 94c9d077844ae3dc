// Package sentinel handles the marker files shared with the data producer
// and downstream consumers.
//
// The producer keeps a TRANSFERRING file in the run's parent directory while
// archives are still arriving. While a run is active it holds a BASECALLING
// file in the same directory, locked with flock so a second run on the same
// data fails fast.
package sentinel

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gofrs/flock"
)

const (
	TransferringFile = "TRANSFERRING"
	BasecallingFile  = "BASECALLING"
)

// ErrAlreadyActive reports a BASECALLING marker held by another process.
var ErrAlreadyActive = errors.New("another poreduck run is active")

// Transferring reports whether the producer is still delivering archives.
func Transferring(parent string) bool {
	_, err := os.Stat(filepath.Join(parent, TransferringFile))
	return err == nil
}

// Marker is a held BASECALLING file.
type Marker struct {
	path string
	lock *flock.Flock
}

// Acquire creates and locks the BASECALLING marker in parent.
func Acquire(parent string) (*Marker, error) {
	path := filepath.Join(parent, BasecallingFile)
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s is locked", ErrAlreadyActive, path)
	}
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("write %s: %w", path, err)
	}
	return &Marker{path: path, lock: lock}, nil
}

// Path returns the marker file location.
func (m *Marker) Path() string { return m.path }

// Release unlocks and removes the marker. It is safe to call more than once.
func (m *Marker) Release() error {
	if m == nil || m.lock == nil {
		return nil
	}
	removeErr := os.Remove(m.path)
	if errors.Is(removeErr, os.ErrNotExist) {
		removeErr = nil
	}
	unlockErr := m.lock.Unlock()
	m.lock = nil
	return errors.Join(removeErr, unlockErr)
}

// Signals is the view of the marker files the workflow polls.
type Signals struct {
	Parent string
}

// Transferring reports whether more archives are expected.
func (s Signals) Transferring() bool { return Transferring(s.Parent) }

// Releaser is a held marker.
type Releaser interface {
	Release() error
}

// Acquire takes the active-run marker.
func (s Signals) Acquire() (Releaser, error) {
	marker, err := Acquire(s.Parent)
	if err != nil {
		return nil, err
	}
	return marker, nil
}
