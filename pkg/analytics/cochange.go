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

package analytics

import (
	"sort"

	"github.com/yep-mem/yepmem/pkg/vcs"
)

// coChangeWindow is how far back commit history is mined for co-change
// pairs, per spec's "last N=90 days".
const coChangeWindow = "90 days ago"

// coChangeMinSupport and coChangeMinConfidence are the emission thresholds
// from spec: a pair below either is noise, not a real correlation.
const (
	coChangeMinSupport    = 0.01
	coChangeMinConfidence = 0.3
)

// CoChangePair is one file pair that tends to change together.
type CoChangePair struct {
	FileA         string
	FileB         string
	Cooccurrences int
	Support       float64 // cooccurrences / commits
	Confidence    float64 // cooccurrences / occurrences(FileA)
}

// CoChangePairs mines repo's last 90 days of commits for file pairs that
// change together, emitting only pairs meeting both the support and
// confidence thresholds, sorted by confidence descending.
func CoChangePairs(repo *vcs.Repo) ([]CoChangePair, error) {
	commits, err := repo.CommitsSince(coChangeWindow)
	if err != nil {
		return nil, err
	}
	if len(commits) == 0 {
		return nil, nil
	}

	occurrences := make(map[string]int)
	cooccurrences := make(map[[2]string]int)

	for _, c := range commits {
		files := dedupSorted(c.Files)
		for _, f := range files {
			occurrences[f]++
		}
		for i := 0; i < len(files); i++ {
			for j := i + 1; j < len(files); j++ {
				cooccurrences[[2]string{files[i], files[j]}]++
			}
		}
	}

	totalCommits := float64(len(commits))
	var pairs []CoChangePair
	for pair, count := range cooccurrences {
		support := float64(count) / totalCommits
		confidence := float64(count) / float64(occurrences[pair[0]])
		if support < coChangeMinSupport || confidence < coChangeMinConfidence {
			continue
		}
		pairs = append(pairs, CoChangePair{
			FileA:         pair[0],
			FileB:         pair[1],
			Cooccurrences: count,
			Support:       support,
			Confidence:    confidence,
		})
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Confidence != pairs[j].Confidence {
			return pairs[i].Confidence > pairs[j].Confidence
		}
		return pairs[i].FileA < pairs[j].FileA
	})
	return pairs, nil
}

func dedupSorted(files []string) []string {
	seen := make(map[string]bool, len(files))
	out := make([]string, 0, len(files))
	for _, f := range files {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out
}
