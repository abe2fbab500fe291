package voice

import "strings"

// Category is the kind of a classified command. Lower values win when a
// transcript matches several categories.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryActivation
	CategoryDeactivation
	CategoryHelp
	CategoryNavigation
	CategorySelection
	CategoryAction
)

func (c Category) String() string {
	switch c {
	case CategoryActivation:
		return "activation"
	case CategoryDeactivation:
		return "deactivation"
	case CategoryHelp:
		return "help"
	case CategoryNavigation:
		return "navigation"
	case CategorySelection:
		return "selection"
	case CategoryAction:
		return "action"
	default:
		return "unknown"
	}
}

// Intent is the specific effect a navigation or action trigger asks for.
type Intent string

const (
	IntentNone             Intent = ""
	IntentScrollUp         Intent = "scroll_up"
	IntentScrollDown       Intent = "scroll_down"
	IntentScrollTop        Intent = "scroll_top"
	IntentScrollBottom     Intent = "scroll_bottom"
	IntentAddToCart        Intent = "add_to_cart"
	IntentBuyNow           Intent = "buy_now"
	IntentExit             Intent = "exit"
	IntentOpenCart         Intent = "open_cart"
	IntentContinueShopping Intent = "continue_shopping"
)

// Command is a classified transcript.
type Command struct {
	Category Category
	RawText  string // transcript as recognized
	Text     string // normalized transcript
	Payload  string // selection fragment, or the whole text for unknown commands
	Phrase   string // trigger that matched
	Intent   Intent
}

// Normalize lower-cases s, trims it and collapses internal whitespace.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
