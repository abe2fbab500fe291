package voice

import (
	"strings"
	"testing"

	"github.com/matryer/is"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		transcript string
		category   Category
		payload    string
		intent     Intent
	}{
		{"listen now", CategoryActivation, "", IntentNone},
		{"Hey VoiceMart please", CategoryActivation, "", IntentNone},
		{"stop listening", CategoryDeactivation, "", IntentNone},
		{"go to sleep", CategoryDeactivation, "", IntentNone},
		{"what can I say", CategoryHelp, "", IntentNone},
		{"scroll down", CategoryNavigation, "", IntentScrollDown},
		{"please go up a bit", CategoryNavigation, "", IntentScrollUp},
		{"scroll to top", CategoryNavigation, "", IntentScrollTop},
		{"scroll to bottom", CategoryNavigation, "", IntentScrollBottom},
		{"select wireless headphones", CategorySelection, "wireless headphones", IntentNone},
		{"focus on smart watch", CategorySelection, "smart watch", IntentNone},
		{"show me running shoes", CategorySelection, "running shoes", IntentNone},
		{"add to cart", CategoryAction, "", IntentAddToCart},
		{"buy now", CategoryAction, "", IntentBuyNow},
		{"go back", CategoryAction, "", IntentExit},
		{"close this", CategoryAction, "", IntentExit},
		{"view cart", CategoryAction, "", IntentOpenCart},
		{"checkout", CategoryAction, "", IntentOpenCart},
		{"please continue shopping", CategoryAction, "", IntentContinueShopping},
		{"what a lovely day", CategoryUnknown, "what a lovely day", IntentNone},
	}

	for _, tt := range tests {
		t.Run(tt.transcript, func(t *testing.T) {
			is := is.New(t)
			cmd := Classify(tt.transcript)
			is.Equal(cmd.Category, tt.category)
			is.Equal(cmd.Payload, tt.payload)
			is.Equal(cmd.Intent, tt.intent)
			is.Equal(cmd.RawText, tt.transcript)
		})
	}
}

func TestClassifySelectionNeedsFragment(t *testing.T) {
	is := is.New(t)

	// A bare verb is not a selection.
	is.Equal(Classify("select").Category, CategoryUnknown)
	is.Equal(Classify("select   ").Category, CategoryUnknown)
	// The verb must lead the transcript.
	is.Equal(Classify("please select the watch").Category, CategoryUnknown)
	// A word that merely starts with the verb is not a selection.
	is.Equal(Classify("selection of hats").Category, CategoryUnknown)
}

func TestClassifyPriority(t *testing.T) {
	tests := []struct {
		transcript string
		want       Category
	}{
		{"stop listening and wake up", CategoryActivation},
		{"help me stop", CategoryDeactivation},
		{"scroll down for help", CategoryHelp},
		{"select the scroll up button", CategoryNavigation},
		{"select add to cart", CategorySelection},
	}

	for _, tt := range tests {
		t.Run(tt.transcript, func(t *testing.T) {
			is := is.New(t)
			is.Equal(Classify(tt.transcript).Category, tt.want)
		})
	}
}

func TestClassifyActivationAnywhere(t *testing.T) {
	is := is.New(t)
	fillers := []string{"", "um ", "okay so ", "SELECT ", "scroll down "}
	for _, phrase := range DefaultPhrases().Activation {
		for _, prefix := range fillers {
			for _, suffix := range []string{"", " please", " thanks voicemart"} {
				cmd := Classify(prefix + phrase + suffix)
				is.Equal(cmd.Category, CategoryActivation)
			}
		}
	}
}

func TestClassifyNormalizationRoundTrip(t *testing.T) {
	is := is.New(t)
	variants := []string{
		"  Scroll   Down ",
		"SELECT   Running\tShoes",
		"\nadd TO cart\n",
		"Hello   VOICEMART",
		"Something   Odd",
	}
	for _, raw := range variants {
		a := Classify(raw)
		b := Classify(Normalize(raw))
		is.Equal(a.Category, b.Category)
		is.Equal(a.Payload, b.Payload)
		is.Equal(a.Intent, b.Intent)
		is.Equal(a.Text, b.Text)
	}
	is.Equal(Classify("  Scroll   Down ").Intent, Classify("scroll down").Intent)
}

func TestClassifyEmpty(t *testing.T) {
	is := is.New(t)
	cmd := Classify("   ")
	is.Equal(cmd.Category, CategoryUnknown)
	is.Equal(cmd.Text, "")
	is.Equal(cmd.Payload, "")
}

func TestClassifierCustomTable(t *testing.T) {
	is := is.New(t)
	c := NewClassifier(PhraseTable{
		Activation: []string{"  Computer "},
		Selection:  []string{"pick"},
		Action:     []Trigger{{Phrase: "Bag It", Intent: IntentAddToCart}},
	})

	is.Equal(c.Classify("computer").Category, CategoryActivation)
	is.Equal(c.Classify("listen now").Category, CategoryUnknown)
	is.Equal(c.Classify("pick the shoes").Payload, "the shoes")
	is.Equal(c.Classify("bag it").Intent, IntentAddToCart)
	is.Equal(c.Phrases().Activation, []string{"computer"})
}

func TestNormalize(t *testing.T) {
	is := is.New(t)
	is.Equal(Normalize("  Scroll \t  DOWN\n"), "scroll down")
	is.Equal(Normalize(""), "")
}

func TestDefaultPhrasesValid(t *testing.T) {
	is := is.New(t)
	is.NoErr(DefaultPhrases().Validate())
}

func TestValidateReportsShadowing(t *testing.T) {
	is := is.New(t)
	table := DefaultPhrases()
	table.Deactivation = append(table.Deactivation, "deactivate")
	table.Action = append(table.Action, Trigger{Phrase: "open cart", Intent: IntentOpenCart})
	table.Navigation = append(table.Navigation, Trigger{Phrase: "jump", Intent: "teleport"})

	err := table.Validate()
	is.True(err != nil)
	msg := err.Error()
	is.True(strings.Contains(msg, `deactivation trigger "deactivate" is shadowed by activation trigger "activate"`))
	is.True(strings.Contains(msg, `action trigger "open cart" is shadowed by selection trigger "open"`))
	is.True(strings.Contains(msg, `unknown intent "teleport"`))

	is.True(PhraseTable{}.Validate() != nil) // no activation phrases
}
