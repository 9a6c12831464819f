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

package lock

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	yeperrors "github.com/yep-mem/yepmem/internal/errors"
)

func TestManager_Acquire_FreshLock(t *testing.T) {
	m := New(t.TempDir())

	ok, err := m.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if !ok {
		t.Fatal("expected fresh lock to be acquired")
	}
	if _, err := os.Stat(m.Path()); err != nil {
		t.Fatalf("expected lock file to exist: %v", err)
	}
}

func TestManager_Acquire_LiveHolderRefused(t *testing.T) {
	m := New(t.TempDir())

	writeLock(t, m.Path(), Info{PID: os.Getpid(), TS: time.Now().Unix()})

	ok, err := m.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if ok {
		t.Fatal("expected lock held by a live process to be refused")
	}
}

func TestManager_Acquire_StaleByAge(t *testing.T) {
	m := New(t.TempDir())

	writeLock(t, m.Path(), Info{PID: os.Getpid(), TS: time.Now().Add(-10 * time.Minute).Unix()})

	ok, err := m.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if !ok {
		t.Fatal("expected a lock older than the staleness window to be reclaimed")
	}

	info := readLock(t, m.Path())
	if info.PID != os.Getpid() {
		t.Fatalf("expected reclaimed lock to record our pid, got %d", info.PID)
	}
}

func TestManager_Acquire_StaleByDeadProcess(t *testing.T) {
	m := New(t.TempDir())

	// PID 1 is init on any Unix host this test runs on and is never our pid;
	// a very large pid is most likely unassigned, so exercise that instead.
	writeLock(t, m.Path(), Info{PID: 999999999, TS: time.Now().Unix()})

	ok, err := m.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if !ok {
		t.Fatal("expected a lock held by a dead process to be reclaimed")
	}
}

func TestManager_Acquire_CorruptLockTreatedAsStale(t *testing.T) {
	m := New(t.TempDir())

	if err := os.MkdirAll(filepath.Dir(m.Path()), 0750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(m.Path(), []byte("not json"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}

	ok, err := m.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if !ok {
		t.Fatal("expected a corrupt lock file to be treated as stale")
	}
}

func TestManager_Release_OnlyOwnPID(t *testing.T) {
	m := New(t.TempDir())

	writeLock(t, m.Path(), Info{PID: os.Getpid() + 1, TS: time.Now().Unix()})
	if err := m.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := os.Stat(m.Path()); err != nil {
		t.Fatal("expected lock owned by another pid to survive Release")
	}

	writeLock(t, m.Path(), Info{PID: os.Getpid(), TS: time.Now().Unix()})
	if err := m.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := os.Stat(m.Path()); !os.IsNotExist(err) {
		t.Fatal("expected lock owned by our pid to be removed")
	}
}

func TestManager_WithLock_RunsAndReleases(t *testing.T) {
	m := New(t.TempDir())

	ran := false
	if err := m.WithLock(func() error {
		ran = true
		if _, err := os.Stat(m.Path()); err != nil {
			t.Fatalf("expected lock file to exist during WithLock: %v", err)
		}
		return nil
	}); err != nil {
		t.Fatalf("WithLock: %v", err)
	}
	if !ran {
		t.Fatal("expected fn to run")
	}
	if _, err := os.Stat(m.Path()); !os.IsNotExist(err) {
		t.Fatal("expected lock to be released after WithLock returns")
	}
}

func TestManager_WithLock_ReleasesOnError(t *testing.T) {
	m := New(t.TempDir())

	boom := errors.New("boom")
	err := m.WithLock(func() error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped fn error, got %v", err)
	}
	if _, statErr := os.Stat(m.Path()); !os.IsNotExist(statErr) {
		t.Fatal("expected lock to be released after fn returns an error")
	}
}

func TestManager_WithLock_BusyFailsFast(t *testing.T) {
	m := New(t.TempDir())
	writeLock(t, m.Path(), Info{PID: os.Getpid(), TS: time.Now().Unix()})

	var ue *yeperrors.UserError
	err := m.WithLock(func() error {
		t.Fatal("fn must not run when the lock is held")
		return nil
	})
	if err == nil {
		t.Fatal("expected an error")
	}
	if !errors.As(err, &ue) {
		t.Fatalf("expected a *errors.UserError, got %T", err)
	}
	if ue.ExitCode != yeperrors.ExitLockBusy {
		t.Fatalf("expected ExitLockBusy, got %d", ue.ExitCode)
	}
}

func TestManager_IsStale(t *testing.T) {
	m := New(t.TempDir())

	if stale, err := m.IsStale(); err != nil || stale {
		t.Fatalf("expected a missing lock to be reported as not stale, got stale=%v err=%v", stale, err)
	}

	writeLock(t, m.Path(), Info{PID: os.Getpid(), TS: time.Now().Unix()})
	if stale, err := m.IsStale(); err != nil || stale {
		t.Fatalf("expected a fresh live lock to be reported as not stale, got stale=%v err=%v", stale, err)
	}

	writeLock(t, m.Path(), Info{PID: os.Getpid(), TS: time.Now().Add(-10 * time.Minute).Unix()})
	if stale, err := m.IsStale(); err != nil || !stale {
		t.Fatalf("expected an aged lock to be reported as stale, got stale=%v err=%v", stale, err)
	}
}

func writeLock(t *testing.T, path string, info Info) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	data, err := json.Marshal(info)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func readLock(t *testing.T, path string) Info {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return info
}
