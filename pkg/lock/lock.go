// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package lock implements the process-wide file mutex that guarantees
// at-most-one ingest run against a workdir at a time. The lock file holds
// the holder's pid and acquisition time as JSON; a lock is reclaimed once
// it is stale, which happens when its holder process has died or when it
// has been held longer than staleAfter.
package lock

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	yeperrors "github.com/yep-mem/yepmem/internal/errors"
)

// staleAfter is how long a lock may be held before it is considered
// abandoned, regardless of whether its holder process is still alive.
const staleAfter = 5 * time.Minute

// Info is the JSON body written to the lock file.
type Info struct {
	PID int   `json:"pid"`
	TS  int64 `json:"ts"`
}

// Manager guards a single workdir's sync.lock file.
type Manager struct {
	path string
}

// New returns a Manager for the lock file under workdir/.yep-mem.
func New(workdir string) *Manager {
	return &Manager{path: filepath.Join(workdir, ".yep-mem", "sync.lock")}
}

// Path returns the lock file's path on disk.
func (m *Manager) Path() string {
	return m.path
}

// Acquire attempts to take the lock for the calling process. It returns
// true if the lock was taken (the file was absent, or held a stale
// record that has now been overwritten), and false if a live process
// already holds it.
func (m *Manager) Acquire() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(m.path), 0750); err != nil {
		return false, fmt.Errorf("create lock dir: %w", err)
	}

	ok, err := m.tryCreate()
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}

	info, err := m.read()
	if err != nil {
		// A lock file that fails to parse is treated as stale.
		if rmErr := os.Remove(m.path); rmErr != nil && !os.IsNotExist(rmErr) {
			return false, fmt.Errorf("remove corrupt lock: %w", rmErr)
		}
		return m.tryCreate()
	}

	if !m.isStale(info) {
		return false, nil
	}

	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("remove stale lock: %w", err)
	}
	return m.tryCreate()
}

// Release removes the lock file, but only if it still records the
// calling process as the holder — a lock reclaimed by another process
// in the meantime is left untouched.
func (m *Manager) Release() error {
	info, err := m.read()
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return nil // corrupt lock: nothing of ours to remove
	}
	if info.PID != os.Getpid() {
		return nil
	}
	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove lock: %w", err)
	}
	return nil
}

// WithLock runs fn while holding the lock, releasing it on every exit
// path including a panic. It fails immediately with ErrLockBusy rather
// than waiting for the holder to finish.
func (m *Manager) WithLock(fn func() error) error {
	ok, err := m.Acquire()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		info, _ := m.read()
		holder := 0
		if info != nil {
			holder = info.PID
		}
		return yeperrors.NewLockBusyError(
			"another ingest run is already in progress",
			fmt.Sprintf("lock held by pid %d at %s", holder, m.path),
			"wait for the other run to finish, or remove the lock file if it is stale",
			yeperrors.ErrLockBusy,
		)
	}
	defer func() { _ = m.Release() }()
	return fn()
}

// IsStale reports whether the current lock record, if any, has expired:
// either the process that wrote it is no longer alive, or it has been
// held longer than staleAfter. A missing lock is not stale — there is
// nothing to reclaim.
func (m *Manager) IsStale() (bool, error) {
	info, err := m.read()
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return true, nil // corrupt lock: treat as stale
	}
	return m.isStale(info), nil
}

func (m *Manager) isStale(info *Info) bool {
	if time.Since(time.Unix(info.TS, 0)) > staleAfter {
		return true
	}
	return !processAlive(info.PID)
}

// tryCreate atomically creates the lock file if absent, writing the
// caller's pid and the current time. It returns false, nil (not an
// error) if the file already exists.
func (m *Manager) tryCreate() (bool, error) {
	f, err := os.OpenFile(m.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("create lock file: %w", err)
	}
	defer func() { _ = f.Close() }()

	data, err := json.Marshal(Info{PID: os.Getpid(), TS: time.Now().Unix()})
	if err != nil {
		return false, fmt.Errorf("marshal lock info: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		return false, fmt.Errorf("write lock file: %w", err)
	}
	return true, nil
}

func (m *Manager) read() (*Info, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return nil, err
	}
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("%w: %v", yeperrors.ErrCorruptLock, err)
	}
	return &info, nil
}

// processAlive reports whether pid names a live process, using signal 0
// which the OS delivers without side effects on the target.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
