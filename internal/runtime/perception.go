package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/aretw0/cortex/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

const defaultIntent = "process query"

var (
	lookupWords = []string{"find", "search", "get", "show"}
	rankWords   = []string{"standings", "rankings", "leaderboard", "points", "top"}
	topN        = regexp.MustCompile(`(?i)\btop\s+(\d+)\b`)
	wordRe      = regexp.MustCompile(`[a-z0-9]+`)
)

// perceive asks the perceiver for a structured record of text and falls back
// to keyword heuristics when the answer is unusable. It never fails.
func (s *session) perceive(ctx context.Context, text string) domain.Perception {
	if s.perceiver == nil {
		return heuristicPerception(text)
	}
	raw, err := s.perceiver.Perceive(ctx, text)
	if err != nil {
		s.logger.Debug("Perceiver failed, using heuristics", "session", s.s.ID, "err", err)
		return heuristicPerception(text)
	}
	p, err := DecodePerception(raw)
	if err != nil {
		s.logger.Debug("Perception unusable, using heuristics", "session", s.s.ID, "err", err)
		return heuristicPerception(text)
	}
	p.Input = text
	return p
}

// DecodePerception extracts a Perception from perceiver output. The first
// JSON object in raw is used; markdown fences are ignored.
// It returns domain.ErrPerception when raw is empty, an echo of the loop's
// own prompt scaffolding, or not decodable.
func DecodePerception(raw string) (domain.Perception, error) {
	text := strings.TrimSpace(raw)
	switch strings.ToLower(text) {
	case "", "null", "none":
		return domain.Perception{}, fmt.Errorf("%w: empty output", domain.ErrPerception)
	}
	if strings.Contains(text, headerTask) || strings.Contains(text, headerResult) {
		return domain.Perception{}, fmt.Errorf("%w: output echoes the prompt", domain.ErrPerception)
	}

	obj := extractObject(text)
	if obj == "" {
		return domain.Perception{}, fmt.Errorf("%w: no JSON object", domain.ErrPerception)
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(obj), &fields); err != nil {
		return domain.Perception{}, fmt.Errorf("%w: %v", domain.ErrPerception, err)
	}

	var p domain.Perception
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &p,
	})
	if err != nil {
		return domain.Perception{}, err
	}
	if err := dec.Decode(fields); err != nil {
		return domain.Perception{}, fmt.Errorf("%w: %v", domain.ErrPerception, err)
	}
	if p.Intent == "" {
		p.Intent = defaultIntent
	}
	return p, nil
}

func extractObject(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}

// heuristicPerception derives a Perception from keywords in text.
func heuristicPerception(text string) domain.Perception {
	p := domain.Perception{Input: text, Intent: defaultIntent, Entities: []string{}}

	words := map[string]bool{}
	for _, w := range wordRe.FindAllString(strings.ToLower(text), -1) {
		words[w] = true
	}
	for _, w := range lookupWords {
		if words[w] {
			p.ToolHint = "search"
			break
		}
	}
	for _, w := range rankWords {
		if words[w] {
			p.ScopeLimit = 10
			p.ScopeType = "top"
			break
		}
	}
	if m := topN.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			p.ScopeLimit = n
			p.ScopeType = "top"
		}
	}
	return p
}
