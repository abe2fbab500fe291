package voice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/chriscow/voicemart/pkg/cart"
	"github.com/chriscow/voicemart/pkg/catalog"
	"github.com/chriscow/voicemart/pkg/events"
)

// DefaultScrollStep is the relative scroll distance in pixels.
const DefaultScrollStep = 400

const (
	msgHelp             = "You can say: Scroll up, Scroll down, Select followed by product name, Add to cart, Buy now, or Stop listening."
	msgNeedProduct      = `Please select a product first. Say "select" followed by the product name.`
	msgGone             = "That product is no longer available."
	msgCatalogFailed    = "Sorry, I couldn't load the products right now."
	msgCartFailed       = "Sorry, I couldn't add that to your cart."
	msgClosing          = "Closing current view"
	msgOpeningCart      = "Opening your cart"
	msgContinueShopping = "Back to the products"
)

// OutcomeKind says what a command ended up doing.
type OutcomeKind int

const (
	OutcomeNone OutcomeKind = iota
	OutcomeDropped
	OutcomeActivated
	OutcomeAlreadyActive
	OutcomeDeactivated
	OutcomeHelp
	OutcomeScrolled
	OutcomeSelected
	OutcomeLowConfidence
	OutcomeAddedToCart
	OutcomePurchased
	OutcomeNoTarget
	OutcomeClosed
	OutcomeNothingToClose
	OutcomeCartOpened
	OutcomeShoppingContinued
	OutcomeUnknown
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeNone:
		return "none"
	case OutcomeDropped:
		return "dropped"
	case OutcomeActivated:
		return "activated"
	case OutcomeAlreadyActive:
		return "already_active"
	case OutcomeDeactivated:
		return "deactivated"
	case OutcomeHelp:
		return "help"
	case OutcomeScrolled:
		return "scrolled"
	case OutcomeSelected:
		return "selected"
	case OutcomeLowConfidence:
		return "low_confidence"
	case OutcomeAddedToCart:
		return "added_to_cart"
	case OutcomePurchased:
		return "purchased"
	case OutcomeNoTarget:
		return "no_target"
	case OutcomeClosed:
		return "closed"
	case OutcomeNothingToClose:
		return "nothing_to_close"
	case OutcomeCartOpened:
		return "cart_opened"
	case OutcomeShoppingContinued:
		return "shopping_continued"
	case OutcomeUnknown:
		return "unknown"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

// Outcome is the result of interpreting one final transcript. Soft misses
// (no match, unknown phrase) are outcomes, not errors; Err is only set for
// collaborator failures.
type Outcome struct {
	Kind    OutcomeKind
	Command Command
	Product *catalog.Product
	Score   int
	Spoken  string
	Err     error
}

// DispatcherConfig wires a Dispatcher to its collaborators.
type DispatcherConfig struct {
	Resolver   *Resolver
	Cart       cart.Adder
	Publisher  events.Publisher
	Speaker    Speaker
	ScrollStep int
	Logger     *slog.Logger
}

// Dispatcher turns gated commands into effects. It reaches the presentation
// layer only through published events.
type Dispatcher struct {
	resolver   *Resolver
	cart       cart.Adder
	pub        events.Publisher
	speaker    Speaker
	scrollStep int
	logger     *slog.Logger
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ScrollStep <= 0 {
		cfg.ScrollStep = DefaultScrollStep
	}
	return &Dispatcher{
		resolver:   cfg.Resolver,
		cart:       cfg.Cart,
		pub:        cfg.Publisher,
		speaker:    cfg.Speaker,
		scrollStep: cfg.ScrollStep,
		logger:     cfg.Logger,
	}
}

// Dispatch performs cmd against s. The caller holds s.mu and has already
// passed cmd through the activation gate.
func (d *Dispatcher) Dispatch(ctx context.Context, s *Session, cmd Command) Outcome {
	out := Outcome{Command: cmd}

	switch cmd.Category {
	case CategoryHelp:
		out.Kind = OutcomeHelp
		d.say(&out, msgHelp)

	case CategoryNavigation:
		d.scroll(s, cmd.Intent, &out)

	case CategorySelection:
		d.selectProduct(ctx, s, cmd.Payload, &out)

	case CategoryAction:
		switch cmd.Intent {
		case IntentAddToCart, IntentBuyNow:
			d.addToCart(ctx, s, cmd.Intent == IntentBuyNow, &out)
		case IntentExit:
			d.exit(s, &out)
		case IntentOpenCart:
			d.publish(events.New(events.OpenCart).WithSession(s.id))
			out.Kind = OutcomeCartOpened
			d.say(&out, msgOpeningCart)
		case IntentContinueShopping:
			d.publish(events.New(events.ContinueShopping).WithSession(s.id))
			out.Kind = OutcomeShoppingContinued
			d.say(&out, msgContinueShopping)
		default:
			d.unknown(cmd, &out)
		}

	default:
		d.unknown(cmd, &out)
	}

	return out
}

func (d *Dispatcher) scroll(s *Session, intent Intent, out *Outcome) {
	ev := events.New(events.Scroll).WithSession(s.id)
	var line string
	switch intent {
	case IntentScrollUp:
		ev.WithScrollBy(-d.scrollStep)
		line = "Scrolling up"
	case IntentScrollDown:
		ev.WithScrollBy(d.scrollStep)
		line = "Scrolling down"
	case IntentScrollTop:
		ev.WithScrollTo(events.PositionTop)
		line = "Scrolling to top"
	case IntentScrollBottom:
		ev.WithScrollTo(events.PositionBottom)
		line = "Scrolling to bottom"
	default:
		d.unknown(out.Command, out)
		return
	}

	d.publish(ev)
	out.Kind = OutcomeScrolled
	d.say(out, line)
}

func (d *Dispatcher) selectProduct(ctx context.Context, s *Session, fragment string, out *Outcome) {
	m, ok, err := d.resolver.Resolve(ctx, fragment)
	if err != nil {
		d.logger.Error("product lookup failed", slog.String("fragment", fragment), slog.String("error", err.Error()))
		out.Kind, out.Err = OutcomeFailed, err
		d.say(out, msgCatalogFailed)
		return
	}

	out.Score = m.Score
	if !ok {
		d.logger.Debug("no confident product match",
			slog.String("fragment", fragment),
			slog.Int("best_score", m.Score),
			slog.String("best", m.Product.Name))
		out.Kind = OutcomeLowConfidence
		d.say(out, fmt.Sprintf(`Sorry, I couldn't find a product matching "%s".`, fragment))
		return
	}

	p := m.Product
	s.setFocus(p.ID)
	out.Kind, out.Product = OutcomeSelected, &p
	d.publish(events.New(events.SelectProduct).WithSession(s.id).WithProduct(productRef(p, m.Score)))
	d.logger.Info("product selected", slog.String("product", p.ID), slog.String("name", p.Name), slog.Int("score", m.Score))
	d.say(out, fmt.Sprintf(`Selected %s. Say "add to cart" or "buy now".`, p.Name))
}

func (d *Dispatcher) addToCart(ctx context.Context, s *Session, buy bool, out *Outcome) {
	targetID := s.detailID
	if targetID == "" {
		targetID = s.focusID
	}
	if targetID == "" {
		out.Kind = OutcomeNoTarget
		d.say(out, msgNeedProduct)
		return
	}

	p, err := d.resolver.Product(ctx, targetID)
	if errors.Is(err, catalog.ErrNotFound) {
		out.Kind, out.Err = OutcomeFailed, err
		d.say(out, msgGone)
		return
	}
	if err != nil {
		d.logger.Error("product lookup failed", slog.String("product", targetID), slog.String("error", err.Error()))
		out.Kind, out.Err = OutcomeFailed, err
		d.say(out, msgCatalogFailed)
		return
	}
	out.Product = &p

	if err := d.cart.Add(ctx, p, 1); err != nil {
		d.logger.Error("cart add failed", slog.String("product", p.ID), slog.String("error", err.Error()))
		out.Kind, out.Err = OutcomeFailed, err
		d.say(out, msgCartFailed)
		return
	}

	if buy {
		d.publish(events.New(events.BuyNow).WithSession(s.id).WithProduct(productRef(p, 0)).WithQuantity(1))
		out.Kind = OutcomePurchased
		d.say(out, fmt.Sprintf("Processing your purchase of %s", p.Name))
		return
	}

	d.publish(events.New(events.AddToCart).WithSession(s.id).WithProduct(productRef(p, 0)).WithQuantity(1))
	out.Kind = OutcomeAddedToCart
	d.say(out, fmt.Sprintf("Added %s to your cart", p.Name))
}

func (d *Dispatcher) exit(s *Session, out *Outcome) {
	if s.detailID == "" {
		d.logger.Debug("exit with no open view")
		out.Kind = OutcomeNothingToClose
		return
	}

	closed := s.detailID
	s.detailID = ""
	s.touch()
	d.publish(events.New(events.Exit).WithSession(s.id).WithProduct(events.ProductRef{ID: closed}))
	out.Kind = OutcomeClosed
	d.say(out, msgClosing)
}

func (d *Dispatcher) unknown(cmd Command, out *Outcome) {
	out.Kind = OutcomeUnknown
	d.say(out, fmt.Sprintf(`I heard "%s". Say "help" to see available commands.`, cmd.Text))
}

func (d *Dispatcher) say(out *Outcome, text string) {
	out.Spoken = text
	if d.speaker != nil {
		d.speaker.Speak(text)
	}
}

func (d *Dispatcher) publish(ev *events.Event) {
	if d.pub != nil {
		d.pub.Publish(ev)
	}
}

func productRef(p catalog.Product, score int) events.ProductRef {
	return events.ProductRef{ID: p.ID, Name: p.Name, Price: p.Price, Score: score}
}

// IsSoftMiss reports whether out is an expected miss rather than a failure.
func IsSoftMiss(out Outcome) bool {
	switch out.Kind {
	case OutcomeLowConfidence, OutcomeUnknown, OutcomeNoTarget, OutcomeNothingToClose:
		return true
	}
	return out.Kind == OutcomeFailed && errors.Is(out.Err, catalog.ErrNotFound)
}
