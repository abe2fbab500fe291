package voice

import (
	"context"
	"errors"
	"testing"

	"github.com/chriscow/voicemart/pkg/cart"
	"github.com/chriscow/voicemart/pkg/catalog"
	"github.com/chriscow/voicemart/pkg/events"
	"github.com/matryer/is"
)

type dispatchFixture struct {
	d       *Dispatcher
	s       *Session
	cart    *cart.Memory
	catalog *catalog.Memory
	pub     *recordingPublisher
	speaker *recordingSpeaker
}

func newDispatchFixture() *dispatchFixture {
	f := &dispatchFixture{
		s:       listeningSession(),
		cart:    cart.NewMemory(),
		catalog: catalog.NewMemory(catalog.SampleSnapshot()),
		pub:     &recordingPublisher{},
		speaker: &recordingSpeaker{},
	}
	f.s.active = true
	f.d = NewDispatcher(DispatcherConfig{
		Resolver:  NewResolver(f.catalog, DefaultMinConfidence),
		Cart:      f.cart,
		Publisher: f.pub,
		Speaker:   f.speaker,
	})
	return f
}

func (f *dispatchFixture) dispatch(text string) Outcome {
	return f.d.Dispatch(context.Background(), f.s, Classify(text))
}

func TestDispatchScroll(t *testing.T) {
	tests := []struct {
		text   string
		want   events.ScrollRequest
		spoken string
	}{
		{"scroll up", events.ScrollRequest{Mode: events.ScrollRelative, Delta: -400}, "Scrolling up"},
		{"go down", events.ScrollRequest{Mode: events.ScrollRelative, Delta: 400}, "Scrolling down"},
		{"scroll to top", events.ScrollRequest{Mode: events.ScrollAbsolute, Position: events.PositionTop}, "Scrolling to top"},
		{"scroll to bottom", events.ScrollRequest{Mode: events.ScrollAbsolute, Position: events.PositionBottom}, "Scrolling to bottom"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			is := is.New(t)
			f := newDispatchFixture()

			out := f.dispatch(tt.text)
			is.Equal(out.Kind, OutcomeScrolled)
			is.Equal(out.Spoken, tt.spoken)

			evs := f.pub.Events()
			is.Equal(len(evs), 1)
			is.Equal(evs[0].Name, events.Scroll)
			is.Equal(*evs[0].Scroll, tt.want)
			is.Equal(f.speaker.Lines(), []string{tt.spoken})
		})
	}
}

func TestDispatchScrollStep(t *testing.T) {
	is := is.New(t)
	pub := &recordingPublisher{}
	d := NewDispatcher(DispatcherConfig{Publisher: pub, ScrollStep: 250})
	d.Dispatch(context.Background(), listeningSession(), Classify("scroll up"))
	is.Equal(pub.Events()[0].Scroll.Delta, -250)
}

func TestDispatchSelect(t *testing.T) {
	is := is.New(t)
	f := newDispatchFixture()

	out := f.dispatch("select running shoes")
	is.Equal(out.Kind, OutcomeSelected)
	is.Equal(out.Product.ID, "4")
	is.Equal(out.Score, 100)
	is.Equal(f.s.focusID, "4")
	is.Equal(out.Spoken, `Selected Running Shoes. Say "add to cart" or "buy now".`)

	evs := f.pub.Events()
	is.Equal(len(evs), 1)
	is.Equal(evs[0].Name, events.SelectProduct)
	is.Equal(*evs[0].Product, events.ProductRef{ID: "4", Name: "Running Shoes", Price: 89.99, Score: 100})

	// Last selection wins.
	f.dispatch("choose the smart watch")
	is.Equal(f.s.focusID, "2")
}

func TestDispatchSelectLowConfidenceKeepsFocus(t *testing.T) {
	is := is.New(t)
	f := newDispatchFixture()
	f.s.focusID = "1"

	out := f.dispatch("select zzz nonexistent")
	is.Equal(out.Kind, OutcomeLowConfidence)
	is.True(out.Err == nil)
	is.True(IsSoftMiss(out))
	is.Equal(f.s.focusID, "1")
	is.Equal(len(f.pub.Events()), 0)
	is.Equal(out.Spoken, `Sorry, I couldn't find a product matching "zzz nonexistent".`)
}

func TestDispatchSelectCatalogFailure(t *testing.T) {
	is := is.New(t)
	boom := errors.New("down")
	s := listeningSession()
	d := NewDispatcher(DispatcherConfig{Resolver: NewResolver(failingSource{boom}, 30)})

	out := d.Dispatch(context.Background(), s, Classify("select watch"))
	is.Equal(out.Kind, OutcomeFailed)
	is.True(errors.Is(out.Err, boom))
	is.True(!IsSoftMiss(out))
	is.Equal(out.Spoken, msgCatalogFailed)
}

func TestDispatchAddToCartTargets(t *testing.T) {
	tests := []struct {
		name     string
		focus    string
		detail   string
		wantKind OutcomeKind
		wantID   string
	}{
		{"no target", "", "", OutcomeNoTarget, ""},
		{"focus", "2", "", OutcomeAddedToCart, "2"},
		{"detail wins over focus", "2", "3", OutcomeAddedToCart, "3"},
		{"detail only", "", "1", OutcomeAddedToCart, "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			f := newDispatchFixture()
			f.s.focusID, f.s.detailID = tt.focus, tt.detail

			out := f.dispatch("add to cart")
			is.Equal(out.Kind, tt.wantKind)

			items, _ := f.cart.Items(context.Background())
			if tt.wantID == "" {
				is.Equal(len(items), 0)
				is.Equal(len(f.pub.Events()), 0)
				is.Equal(out.Spoken, msgNeedProduct)
				return
			}
			is.Equal(len(items), 1)
			is.Equal(items[0].Product.ID, tt.wantID)
			is.Equal(items[0].Quantity, 1)

			evs := f.pub.Events()
			is.Equal(len(evs), 1)
			is.Equal(evs[0].Name, events.AddToCart)
			is.Equal(evs[0].Product.ID, tt.wantID)
			is.Equal(evs[0].Quantity, 1)
		})
	}
}

func TestDispatchBuyNow(t *testing.T) {
	is := is.New(t)
	f := newDispatchFixture()

	out := f.dispatch("buy now")
	is.Equal(out.Kind, OutcomeNoTarget)

	f.s.focusID = "2"
	out = f.dispatch("buy now")
	is.Equal(out.Kind, OutcomePurchased)
	is.Equal(out.Spoken, "Processing your purchase of Smart Watch")

	items, _ := f.cart.Items(context.Background())
	is.Equal(items, []cart.Item{{Product: *out.Product, Quantity: 1}})
	evs := f.pub.Events()
	is.Equal(len(evs), 1)
	is.Equal(evs[0].Name, events.BuyNow)
}

func TestDispatchAddToCartProductGone(t *testing.T) {
	is := is.New(t)
	f := newDispatchFixture()
	f.s.focusID = "2"
	f.catalog.Replace(catalog.Snapshot{})

	out := f.dispatch("add to cart")
	is.Equal(out.Kind, OutcomeFailed)
	is.True(errors.Is(out.Err, catalog.ErrNotFound))
	is.True(IsSoftMiss(out))
	is.Equal(out.Spoken, msgGone)
}

type failingCart struct{ err error }

func (f failingCart) Add(context.Context, catalog.Product, int) error { return f.err }

func TestDispatchCartFailure(t *testing.T) {
	is := is.New(t)
	boom := errors.New("cart service down")
	pub := &recordingPublisher{}
	s := listeningSession()
	s.focusID = "2"
	d := NewDispatcher(DispatcherConfig{
		Resolver:  NewResolver(catalog.NewMemory(catalog.SampleSnapshot()), 30),
		Cart:      failingCart{boom},
		Publisher: pub,
	})

	out := d.Dispatch(context.Background(), s, Classify("add to cart"))
	is.Equal(out.Kind, OutcomeFailed)
	is.True(errors.Is(out.Err, boom))
	is.Equal(len(pub.Events()), 0)
}

func TestDispatchExit(t *testing.T) {
	is := is.New(t)
	f := newDispatchFixture()

	out := f.dispatch("go back")
	is.Equal(out.Kind, OutcomeNothingToClose)
	is.Equal(len(f.pub.Events()), 0)
	is.Equal(len(f.speaker.Lines()), 0)

	f.s.detailID = "3"
	out = f.dispatch("close")
	is.Equal(out.Kind, OutcomeClosed)
	is.Equal(f.s.detailID, "")
	evs := f.pub.Events()
	is.Equal(len(evs), 1)
	is.Equal(evs[0].Name, events.Exit)
	is.Equal(evs[0].Product.ID, "3")
}

func TestDispatchHelpAndUnknownDoNotMutate(t *testing.T) {
	is := is.New(t)
	f := newDispatchFixture()
	f.s.focusID = "2"
	before := f.s.State()

	out := f.dispatch("what can i say")
	is.Equal(out.Kind, OutcomeHelp)
	is.Equal(out.Spoken, msgHelp)

	out = f.dispatch("Tell me a joke")
	is.Equal(out.Kind, OutcomeUnknown)
	is.Equal(out.Spoken, `I heard "tell me a joke". Say "help" to see available commands.`)

	is.Equal(f.s.State(), before)
	is.Equal(len(f.pub.Events()), 0)
}

func TestDispatchOpenCart(t *testing.T) {
	is := is.New(t)
	f := newDispatchFixture()

	out := f.dispatch("view cart")
	is.Equal(out.Kind, OutcomeCartOpened)
	is.Equal(f.pub.Events()[0].Name, events.OpenCart)
}

func TestDispatchContinueShopping(t *testing.T) {
	is := is.New(t)
	f := newDispatchFixture()
	before := f.s.State()

	out := f.dispatch("keep shopping")
	is.Equal(out.Kind, OutcomeShoppingContinued)
	is.Equal(out.Spoken, msgContinueShopping)
	is.Equal(len(f.pub.Events()), 1)
	is.Equal(f.pub.Events()[0].Name, events.ContinueShopping)
	is.Equal(f.s.State(), before)
}

func TestOutcomeKindString(t *testing.T) {
	is := is.New(t)
	is.Equal(OutcomeLowConfidence.String(), "low_confidence")
	is.Equal(OutcomeKind(999).String(), "outcome(999)")
}
