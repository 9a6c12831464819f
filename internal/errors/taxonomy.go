// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package errors

import goerrors "errors"

// Sentinel errors classifying what went wrong during ingest or search, so
// callers can branch with errors.Is instead of string-matching messages.
// Each wraps into a UserError via the matching New*Error constructor above
// when surfaced to a terminal user.
var (
	// ErrParse marks a source file that could not be parsed into symbols.
	ErrParse = goerrors.New("parse error")

	// ErrIO marks a failure reading or writing a file on disk.
	ErrIO = goerrors.New("io error")

	// ErrNetwork marks a transient failure talking to an embedding/LLM
	// provider; the pipeline retries these up to three times before giving up.
	ErrNetwork = goerrors.New("network error")

	// ErrProvider marks a non-transient failure from an embedding/LLM
	// provider (bad request, auth failure) that retrying will not fix.
	ErrProvider = goerrors.New("provider error")

	// ErrLockBusy marks a failed attempt to acquire the cross-process ingest
	// lock because another live process already holds it.
	ErrLockBusy = goerrors.New("lock busy")

	// ErrCorruptCache marks an on-disk cache file (embedding or search
	// result cache) that failed to parse and was discarded.
	ErrCorruptCache = goerrors.New("corrupt cache")

	// ErrCorruptLock marks a lock file that failed to parse; the lock
	// manager treats this the same as a stale lock and reclaims it.
	ErrCorruptLock = goerrors.New("corrupt lock")
)
