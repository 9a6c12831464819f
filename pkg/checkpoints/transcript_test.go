// Copyright 2025 KrakLabs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package checkpoints

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseTranscriptLines_BareStringContent(t *testing.T) {
	data := []byte(`{"role":"user","content":"hello there"}` + "\n")
	entries := parseTranscriptLines(data)
	require.Len(t, entries, 1)
	require.Equal(t, RoleUser, entries[0].Role)
	require.Equal(t, "hello there", entries[0].Content)
}

func TestParseTranscriptLines_ConcatenatesTextParts(t *testing.T) {
	data := []byte(`{"role":"assistant","content":[{"type":"text","text":"first"},{"type":"tool_use","text":"ignored"},{"type":"text","text":"second"}]}` + "\n")
	entries := parseTranscriptLines(data)
	require.Len(t, entries, 1)
	require.Equal(t, "first\nsecond", entries[0].Content)
}

func TestParseTranscriptLines_DropsUnrecognizedRole(t *testing.T) {
	data := []byte(`{"role":"narrator","content":"skip me"}` + "\n" +
		`{"role":"tool","content":"kept"}` + "\n")
	entries := parseTranscriptLines(data)
	require.Len(t, entries, 1)
	require.Equal(t, RoleTool, entries[0].Role)
}

func TestParseTranscriptLines_SkipsMalformedLines(t *testing.T) {
	data := []byte("not json at all\n" + `{"role":"user","content":"ok"}` + "\n")
	entries := parseTranscriptLines(data)
	require.Len(t, entries, 1)
	require.Equal(t, "ok", entries[0].Content)
}

func TestParseTranscriptLines_MultipleLines(t *testing.T) {
	data := []byte(`{"role":"user","content":"q1"}` + "\n" +
		`{"role":"assistant","content":"a1"}` + "\n")
	entries := parseTranscriptLines(data)
	require.Len(t, entries, 2)
	require.Equal(t, RoleUser, entries[0].Role)
	require.Equal(t, RoleAssistant, entries[1].Role)
}
