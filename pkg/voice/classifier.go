package voice

import "strings"

// Classifier maps transcripts to commands using a phrase table. It holds no
// mutable state and is safe for concurrent use.
type Classifier struct {
	table PhraseTable
}

// NewClassifier creates a classifier over table. Phrases are normalized once
// here.
func NewClassifier(table PhraseTable) *Classifier {
	return &Classifier{table: table.Normalized()}
}

var defaultClassifier = NewClassifier(DefaultPhrases())

// Classify classifies transcript with the default phrase table.
func Classify(transcript string) Command {
	return defaultClassifier.Classify(transcript)
}

// Phrases returns the normalized table in use.
func (c *Classifier) Phrases() PhraseTable {
	return c.table
}

// Classify normalizes transcript and returns the first matching category in
// priority order: activation, deactivation, help, navigation, selection,
// action. Transcripts matching nothing are CategoryUnknown with the
// normalized text as payload.
func (c *Classifier) Classify(transcript string) Command {
	text := Normalize(transcript)
	cmd := Command{RawText: transcript, Text: text}
	if text == "" {
		return cmd
	}

	if p, ok := containsAny(text, c.table.Activation); ok {
		cmd.Category, cmd.Phrase = CategoryActivation, p
		return cmd
	}
	if p, ok := containsAny(text, c.table.Deactivation); ok {
		cmd.Category, cmd.Phrase = CategoryDeactivation, p
		return cmd
	}
	if p, ok := containsAny(text, c.table.Help); ok {
		cmd.Category, cmd.Phrase = CategoryHelp, p
		return cmd
	}
	if tr, ok := containsTrigger(text, c.table.Navigation); ok {
		cmd.Category, cmd.Phrase, cmd.Intent = CategoryNavigation, tr.Phrase, tr.Intent
		return cmd
	}
	for _, verb := range c.table.Selection {
		rest, ok := strings.CutPrefix(text, verb+" ")
		if ok && rest != "" {
			cmd.Category, cmd.Phrase, cmd.Payload = CategorySelection, verb, rest
			return cmd
		}
	}
	if tr, ok := containsTrigger(text, c.table.Action); ok {
		cmd.Category, cmd.Phrase, cmd.Intent = CategoryAction, tr.Phrase, tr.Intent
		return cmd
	}

	cmd.Payload = text
	return cmd
}

func containsAny(text string, phrases []string) (string, bool) {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return p, true
		}
	}
	return "", false
}

func containsTrigger(text string, triggers []Trigger) (Trigger, bool) {
	for _, tr := range triggers {
		if strings.Contains(text, tr.Phrase) {
			return tr, true
		}
	}
	return Trigger{}, false
}
