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

package search

import (
	"regexp"
	"strings"
)

// Intent is the classified purpose behind a search query, which selects
// the rerank weights Search applies to candidates.
type Intent string

const (
	IntentRecentChange Intent = "recent_change"
	IntentHowItWorks   Intent = "how_it_works"
	IntentFindCode     Intent = "find_code"
	IntentDebug        Intent = "debug"
	IntentDefault      Intent = "default"
)

// intentShortQueryLen is the query-length threshold under which a single
// matching pattern is still enough to classify an intent; longer queries
// need at least two matching patterns from the same family.
const intentShortQueryLen = 50

// Per-intent regex-pattern families, compiled once at package init like
// the teacher's own role-filtering patterns.
var (
	recentChangePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(recent|latest|last)\s+(change|commit|update|edit)`),
		regexp.MustCompile(`(?i)\bwhat\s+changed\b`),
		regexp.MustCompile(`(?i)\bsince\s+(yesterday|last\s+week|last\s+commit)\b`),
		regexp.MustCompile(`(?i)\bnew(ly)?\s+(added|modified|introduced)\b`),
	}

	howItWorksPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bhow\s+(does|do|did)\b`),
		regexp.MustCompile(`(?i)\bhow\s+\w+\s+works?\b`),
		regexp.MustCompile(`(?i)\bwhat\s+(is|are)\s+the\s+(purpose|flow|logic)\b`),
		regexp.MustCompile(`(?i)\bexplain\b`),
		regexp.MustCompile(`(?i)\bwalk\s+me\s+through\b`),
	}

	findCodePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bwhere\s+is\b`),
		regexp.MustCompile(`(?i)\bfind\s+(the\s+)?(function|method|class|struct|symbol|file)\b`),
		regexp.MustCompile(`(?i)\b(definition|declaration)\s+of\b`),
		regexp.MustCompile(`(?i)\bwhich\s+file\b`),
	}

	debugPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(bug|error|exception|crash\w*|panic\w*|fail\w*)\b`),
		regexp.MustCompile(`(?i)\bstack\s*trace\b`),
		regexp.MustCompile(`(?i)\bwhy\s+(is|does)\s+\w+\s+(fail|break|throw|panic|crash)\w*\b`),
		regexp.MustCompile(`(?i)\bnot\s+working\b`),
	}

	intentFamilies = []struct {
		intent   Intent
		patterns []*regexp.Regexp
	}{
		{IntentRecentChange, recentChangePatterns},
		{IntentHowItWorks, howItWorksPatterns},
		{IntentFindCode, findCodePatterns},
		{IntentDebug, debugPatterns},
	}
)

// ClassifyIntent classifies a query into one of the known intents: two or
// more matching patterns from a family always wins; exactly one match
// wins only for queries shorter than intentShortQueryLen; otherwise the
// query falls through to the next family, and finally to IntentDefault.
func ClassifyIntent(query string) Intent {
	lower := strings.ToLower(query)

	for _, family := range intentFamilies {
		matches := 0
		for _, p := range family.patterns {
			if p.MatchString(lower) {
				matches++
			}
		}
		if matches >= 2 {
			return family.intent
		}
		if matches == 1 && len(query) < intentShortQueryLen {
			return family.intent
		}
	}
	return IntentDefault
}

// Weights holds the four rerank term weights for one intent. Vector
// similarity's implicit weight is 1 minus the sum of these four.
type Weights struct {
	Recency        float64
	FileOverlap    float64
	KeywordDensity float64
	SymbolMatch    float64
}

var intentWeights = map[Intent]Weights{
	IntentRecentChange: {Recency: 0.50, FileOverlap: 0.20, KeywordDensity: 0.20, SymbolMatch: 0.10},
	IntentHowItWorks:   {Recency: 0.05, FileOverlap: 0.15, KeywordDensity: 0.50, SymbolMatch: 0.30},
	IntentFindCode:     {Recency: 0.05, FileOverlap: 0.20, KeywordDensity: 0.25, SymbolMatch: 0.50},
	IntentDebug:        {Recency: 0.20, FileOverlap: 0.30, KeywordDensity: 0.30, SymbolMatch: 0.20},
	IntentDefault:      {Recency: 0.15, FileOverlap: 0.25, KeywordDensity: 0.35, SymbolMatch: 0.25},
}

// WeightsFor returns the rerank weights for an intent, falling back to
// IntentDefault's weights for an unrecognized value.
func WeightsFor(i Intent) Weights {
	if w, ok := intentWeights[i]; ok {
		return w
	}
	return intentWeights[IntentDefault]
}
