package intent

import (
	"fmt"
	"strings"

	"github.com/voxgate-labs/voxgate-core/internal/config"
)

// Intent is a discrete action category resolved from a transcript.
type Intent string

const (
	OpenBrowser   Intent = "open_browser"
	OpenMail      Intent = "open_mail"
	PlayMusic     Intent = "play_music"
	OpenCode      Intent = "open_code"
	Shutdown      Intent = "shutdown"
	DefaultUnlock Intent = "default_unlock"
	Unknown       Intent = "unknown"
)

var known = map[Intent]struct{}{
	OpenBrowser:   {},
	OpenMail:      {},
	PlayMusic:     {},
	OpenCode:      {},
	Shutdown:      {},
	DefaultUnlock: {},
	Unknown:       {},
}

// Resolver maps transcripts onto the closed intent set via an ordered
// keyword table. Rule declaration order is the resolution priority: when two
// rules share a phrase, the earlier rule always wins. This ordering is part
// of the configuration contract.
type Resolver struct {
	rules []rule
}

type rule struct {
	intent  Intent
	phrases []string
}

func NewResolver(rules []config.IntentRule) (*Resolver, error) {
	if len(rules) == 0 {
		return nil, fmt.Errorf("intent table is empty")
	}
	r := &Resolver{}
	for _, in := range rules {
		name := Intent(in.Name)
		if _, ok := known[name]; !ok {
			return nil, fmt.Errorf("unknown intent %q in table", in.Name)
		}
		phrases := make([]string, 0, len(in.Phrases))
		for _, p := range in.Phrases {
			p = strings.ToLower(strings.TrimSpace(p))
			if p == "" {
				return nil, fmt.Errorf("intent %q declares an empty phrase", in.Name)
			}
			phrases = append(phrases, p)
		}
		r.rules = append(r.rules, rule{intent: name, phrases: phrases})
	}
	return r, nil
}

// Resolve normalizes text and returns the first declared intent with a
// phrase contained in it. No hit, or an empty transcript, resolves to
// DefaultUnlock.
func (r *Resolver) Resolve(text string) Intent {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return DefaultUnlock
	}
	for _, rule := range r.rules {
		for _, phrase := range rule.phrases {
			if strings.Contains(normalized, phrase) {
				return rule.intent
			}
		}
	}
	return DefaultUnlock
}
