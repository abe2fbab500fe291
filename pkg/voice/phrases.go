package voice

import (
	"errors"
	"fmt"
	"strings"
)

// Trigger is a phrase mapped to a specific intent.
type Trigger struct {
	Phrase string `koanf:"phrase" yaml:"phrase" validate:"required"`
	Intent Intent `koanf:"intent" yaml:"intent" validate:"required"`
}

// PhraseTable lists trigger phrases per category. Within a category the first
// matching phrase wins. Selection phrases match as a prefix followed by a
// product name; all others match anywhere in the transcript.
type PhraseTable struct {
	Activation   []string  `koanf:"activation" yaml:"activation"`
	Deactivation []string  `koanf:"deactivation" yaml:"deactivation"`
	Help         []string  `koanf:"help" yaml:"help"`
	Navigation   []Trigger `koanf:"navigation" yaml:"navigation"`
	Selection    []string  `koanf:"selection" yaml:"selection"`
	Action       []Trigger `koanf:"action" yaml:"action"`
}

// DefaultPhrases is the built-in English phrase table.
//
// "deactivate" is deliberately absent: it contains "activate", so it would
// always classify as activation.
func DefaultPhrases() PhraseTable {
	return PhraseTable{
		Activation:   []string{"listen now", "start listening", "wake up", "hey voicemart", "activate", "hello voicemart"},
		Deactivation: []string{"stop listening", "sleep", "go to sleep", "stop", "goodbye"},
		Help:         []string{"help", "what can i say", "commands", "show commands"},
		Navigation: []Trigger{
			{"scroll up", IntentScrollUp},
			{"go up", IntentScrollUp},
			{"scroll down", IntentScrollDown},
			{"go down", IntentScrollDown},
			{"scroll to top", IntentScrollTop},
			{"scroll to bottom", IntentScrollBottom},
		},
		Selection: []string{"select", "choose", "focus on", "show me", "open"},
		Action: []Trigger{
			{"add to cart", IntentAddToCart},
			{"buy now", IntentBuyNow},
			{"view cart", IntentOpenCart},
			{"go to cart", IntentOpenCart},
			{"checkout", IntentOpenCart},
			{"continue shopping", IntentContinueShopping},
			{"keep shopping", IntentContinueShopping},
			{"exit", IntentExit},
			{"close", IntentExit},
			{"go back", IntentExit},
			{"back", IntentExit},
		},
	}
}

// Normalized returns a copy with every phrase normalized and empty phrases
// removed.
func (t PhraseTable) Normalized() PhraseTable {
	return PhraseTable{
		Activation:   normalizePhrases(t.Activation),
		Deactivation: normalizePhrases(t.Deactivation),
		Help:         normalizePhrases(t.Help),
		Navigation:   normalizeTriggers(t.Navigation),
		Selection:    normalizePhrases(t.Selection),
		Action:       normalizeTriggers(t.Action),
	}
}

type rankedPhrase struct {
	category Category
	phrase   string
	intent   Intent
}

// Validate reports an empty activation list, unknown intents and triggers
// that can never match because a higher-priority trigger always matches
// first.
func (t PhraseTable) Validate() error {
	n := t.Normalized()
	var errs []error

	if len(n.Activation) == 0 {
		errs = append(errs, errors.New("phrase table has no activation phrases"))
	}
	for _, tr := range append(append([]Trigger(nil), n.Navigation...), n.Action...) {
		if !knownIntent(tr.Intent) {
			errs = append(errs, fmt.Errorf("trigger %q has unknown intent %q", tr.Phrase, tr.Intent))
		}
	}

	// Contains-matched phrases in priority order.
	var ranked []rankedPhrase
	for _, p := range n.Activation {
		ranked = append(ranked, rankedPhrase{CategoryActivation, p, IntentNone})
	}
	for _, p := range n.Deactivation {
		ranked = append(ranked, rankedPhrase{CategoryDeactivation, p, IntentNone})
	}
	for _, p := range n.Help {
		ranked = append(ranked, rankedPhrase{CategoryHelp, p, IntentNone})
	}
	for _, tr := range n.Navigation {
		ranked = append(ranked, rankedPhrase{CategoryNavigation, tr.Phrase, tr.Intent})
	}
	navEnd := len(ranked)
	for _, tr := range n.Action {
		ranked = append(ranked, rankedPhrase{CategoryAction, tr.Phrase, tr.Intent})
	}

	for i, later := range ranked {
		for _, earlier := range ranked[:i] {
			if !strings.Contains(later.phrase, earlier.phrase) {
				continue
			}
			if earlier.category == later.category && earlier.intent == later.intent {
				continue
			}
			errs = append(errs, fmt.Errorf("%s trigger %q is shadowed by %s trigger %q",
				later.category, later.phrase, earlier.category, earlier.phrase))
			break
		}
	}

	// Selection sits between navigation and action.
	for _, verb := range n.Selection {
		for _, earlier := range ranked[:navEnd] {
			if strings.Contains(verb, earlier.phrase) {
				errs = append(errs, fmt.Errorf("selection trigger %q is shadowed by %s trigger %q",
					verb, earlier.category, earlier.phrase))
				break
			}
		}
	}
	for _, tr := range n.Action {
		for _, verb := range n.Selection {
			if strings.HasPrefix(tr.Phrase, verb+" ") {
				errs = append(errs, fmt.Errorf("action trigger %q is shadowed by selection trigger %q", tr.Phrase, verb))
				break
			}
		}
	}

	return errors.Join(errs...)
}

func knownIntent(i Intent) bool {
	switch i {
	case IntentScrollUp, IntentScrollDown, IntentScrollTop, IntentScrollBottom,
		IntentAddToCart, IntentBuyNow, IntentExit, IntentOpenCart, IntentContinueShopping:
		return true
	}
	return false
}

func normalizePhrases(in []string) []string {
	out := make([]string, 0, len(in))
	for _, p := range in {
		if p = Normalize(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func normalizeTriggers(in []Trigger) []Trigger {
	out := make([]Trigger, 0, len(in))
	for _, tr := range in {
		if p := Normalize(tr.Phrase); p != "" {
			out = append(out, Trigger{Phrase: p, Intent: tr.Intent})
		}
	}
	return out
}
