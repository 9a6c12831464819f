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

package ingestion

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strconv"
)

// GenerateFileID generates a deterministic file ID from the file path.
func GenerateFileID(filePath string) string {
	normalized := normalizePath(filePath)
	if len(normalized) <= 256 {
		return fmt.Sprintf("file:%s", normalized)
	}
	hash := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("file:%s", hex.EncodeToString(hash[:16]))
}

// GenerateChunkID computes a CodeChunk's id: sha256(path + ':' + symbol +
// ':' + startLine)[:24], hex encoded.
func GenerateChunkID(path, symbolName string, startLine int) string {
	raw := normalizePath(path) + ":" + symbolName + ":" + strconv.Itoa(startLine)
	hash := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(hash[:])[:24]
}

// GenerateEdgeID computes a GraphEdge's id: "source:target:edgeType", not
// hashed, so edges stay human-readable and lookups don't need a reverse index.
func GenerateEdgeID(source, target, edgeType string) string {
	return source + ":" + target + ":" + edgeType
}

// GenerateTranscriptChunkID computes a TranscriptChunk's id:
// sha256(checkpointId + ':' + sessionIndex)[:24].
func GenerateTranscriptChunkID(checkpointID string, sessionIndex int) string {
	return GenerateTranscriptChunkIDForSession(checkpointID, strconv.Itoa(sessionIndex))
}

// GenerateTranscriptChunkIDForSession is GenerateTranscriptChunkID for a
// session identified by a non-numeric key, such as a local source's session
// directory name.
func GenerateTranscriptChunkIDForSession(checkpointID, sessionIndex string) string {
	raw := checkpointID + ":" + sessionIndex
	hash := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(hash[:])[:24]
}

// normalizePath normalizes a file path for consistent ID generation:
// strips a leading "./", cleans redundant separators, and always uses
// forward slashes so IDs are stable across platforms.
func normalizePath(path string) string {
	if len(path) >= 2 && path[0:2] == "./" {
		path = path[2:]
	}
	path = filepath.Clean(path)
	path = filepath.ToSlash(path)
	if len(path) > 0 && path[0] == '/' {
		path = path[1:]
	}
	return path
}
