package voice

import (
	"strings"
	"time"

	"github.com/benbjohnson/clock"
)

const keywordTailTokens = 3

// KeywordSpotter scans the tail of a live transcript for configured
// trigger phrases. Only the last few tokens are checked so a stop-word
// spoken minutes earlier is never retroactively detected. Checks are
// rate-limited; a check inside the window is a no-op reporting no match.
type KeywordSpotter struct {
	phrases []string
	every   time.Duration
	clk     clock.Clock
	last    time.Time
}

func NewKeywordSpotter(phrases []string, every time.Duration, clk clock.Clock) *KeywordSpotter {
	lowered := make([]string, 0, len(phrases))
	for _, p := range phrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			lowered = append(lowered, p)
		}
	}
	return &KeywordSpotter{phrases: lowered, every: every, clk: clk}
}

// Check tests the trailing window of text against the configured phrases
// in priority order; the first match wins.
func (s *KeywordSpotter) Check(text string) (string, bool) {
	now := s.clk.Now()
	if !s.last.IsZero() && now.Sub(s.last) < s.every {
		return "", false
	}
	s.last = now

	tokens := strings.Fields(strings.ToLower(text))
	if len(tokens) == 0 {
		return "", false
	}
	if len(tokens) > keywordTailTokens {
		tokens = tokens[len(tokens)-keywordTailTokens:]
	}
	tail := strings.Join(tokens, " ")
	for _, p := range s.phrases {
		if strings.Contains(tail, p) {
			return p, true
		}
	}
	return "", false
}

// Reset clears the rate-limit window so the next check runs immediately.
func (s *KeywordSpotter) Reset() {
	s.last = time.Time{}
}
