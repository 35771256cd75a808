package domain

import (
	"sort"
	"strings"
	"unicode"
)

// RankMemory filters items by q and orders them by relevance to q.Text.
// Relevance is the number of distinct query terms found in the item text;
// ties are broken by recency. The result holds at most q.TopK items when
// TopK is positive.
func RankMemory(items []MemoryItem, q MemoryQuery) []MemoryItem {
	terms := tokenize(q.Text)

	type scored struct {
		item  MemoryItem
		score int
	}
	candidates := make([]scored, 0, len(items))
	for _, item := range items {
		if q.SessionID != "" && item.SessionID != q.SessionID {
			continue
		}
		if q.Kind != "" && item.Kind != q.Kind {
			continue
		}
		text := strings.ToLower(item.Text + " " + item.ToolName + " " + strings.Join(item.Tags, " "))
		score := 0
		for term := range terms {
			if strings.Contains(text, term) {
				score++
			}
		}
		candidates = append(candidates, scored{item: item, score: score})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].item.Timestamp.After(candidates[j].item.Timestamp)
	})

	if q.TopK > 0 && len(candidates) > q.TopK {
		candidates = candidates[:q.TopK]
	}
	out := make([]MemoryItem, len(candidates))
	for i, c := range candidates {
		out[i] = c.item
	}
	return out
}

func tokenize(text string) map[string]struct{} {
	terms := make(map[string]struct{})
	for _, f := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len(f) < 3 {
			continue
		}
		terms[f] = struct{}{}
	}
	return terms
}
