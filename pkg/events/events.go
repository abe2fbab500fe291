package events

import (
	"time"

	"github.com/google/uuid"
)

// Name identifies the kind of event. The values are the signal names the
// storefront listens for.
type Name string

const (
	// SelectProduct is published when a spoken name resolved to a product.
	SelectProduct Name = "selectProduct"

	// AddToCart is published after the product was added to the cart.
	AddToCart Name = "addToCart"

	// BuyNow is published after the product was added to the cart and the
	// checkout collaborator should confirm the purchase.
	BuyNow Name = "buyNow"

	// Exit is published when the product detail view should close.
	Exit Name = "exit"

	// OpenCart asks the storefront to show the cart.
	OpenCart Name = "openCart"

	// ContinueShopping asks the storefront to leave the cart for the product
	// list.
	ContinueShopping Name = "continueShopping"

	// Scroll asks the storefront to scroll the page.
	Scroll Name = "scroll"

	// Transcript carries interim and final recognizer text for display.
	Transcript Name = "transcript"

	// SessionChanged carries a snapshot of the voice session after a mutation.
	SessionChanged Name = "sessionChanged"
)

// ScrollMode is relative (by Delta pixels) or absolute (to Position).
type ScrollMode string

const (
	ScrollRelative ScrollMode = "relative"
	ScrollAbsolute ScrollMode = "absolute"
)

// Absolute scroll positions.
const (
	PositionTop    = "top"
	PositionBottom = "bottom"
)

// ProductRef names the product an event is about.
type ProductRef struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price,omitempty"`
	Score int     `json:"score,omitempty"`
}

// ScrollRequest describes a scroll.
type ScrollRequest struct {
	Mode     ScrollMode `json:"mode"`
	Delta    int        `json:"delta,omitempty"`
	Position string     `json:"position,omitempty"`
}

// SessionState is the observable part of a voice session.
type SessionState struct {
	Listening       bool     `json:"isListening"`
	Active          bool     `json:"isActive"`
	Transcript      string   `json:"transcript"`
	Status          string   `json:"status"`
	LastError       string   `json:"lastError,omitempty"`
	FocusProductID  string   `json:"focusProductId,omitempty"`
	DetailProductID string   `json:"detailProductId,omitempty"`
	History         []string `json:"history,omitempty"`
}

// Event is one notification from the voice core to the presentation layer.
type Event struct {
	ID        string    `json:"id"`
	Name      Name      `json:"name"`
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"sessionId,omitempty"`

	Product  *ProductRef    `json:"product,omitempty"`
	Quantity int            `json:"quantity,omitempty"`
	Scroll   *ScrollRequest `json:"scroll,omitempty"`

	// Transcript events
	Text  string `json:"text,omitempty"`
	Final bool   `json:"final,omitempty"`

	Session *SessionState `json:"session,omitempty"`
}

// New creates an event with a fresh ID and the current timestamp.
func New(name Name) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Name:      name,
		Timestamp: time.Now(),
	}
}

// WithSession tags the event with the originating session.
func (e *Event) WithSession(id string) *Event {
	e.SessionID = id
	return e
}

// WithProduct adds the product the event is about.
func (e *Event) WithProduct(p ProductRef) *Event {
	e.Product = &p
	return e
}

// WithQuantity adds a quantity.
func (e *Event) WithQuantity(n int) *Event {
	e.Quantity = n
	return e
}

// WithScrollBy makes this a relative scroll by delta pixels.
func (e *Event) WithScrollBy(delta int) *Event {
	e.Scroll = &ScrollRequest{Mode: ScrollRelative, Delta: delta}
	return e
}

// WithScrollTo makes this an absolute scroll to PositionTop or PositionBottom.
func (e *Event) WithScrollTo(position string) *Event {
	e.Scroll = &ScrollRequest{Mode: ScrollAbsolute, Position: position}
	return e
}

// WithText adds transcript text.
func (e *Event) WithText(text string, final bool) *Event {
	e.Text = text
	e.Final = final
	return e
}

// WithState attaches a session snapshot.
func (e *Event) WithState(s SessionState) *Event {
	e.Session = &s
	return e
}
