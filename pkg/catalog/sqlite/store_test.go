package sqlite

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/chriscow/voicemart/pkg/cart"
	"github.com/chriscow/voicemart/pkg/catalog"
	"github.com/matryer/is"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_SeedAndSnapshot(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	store := newTestStore(t)

	empty, err := store.Empty(ctx)
	is.NoErr(err)
	is.True(empty)

	seeded, err := store.SeedIfEmpty(ctx, catalog.SampleSnapshot())
	is.NoErr(err)
	is.True(seeded)

	seeded, err = store.SeedIfEmpty(ctx, catalog.SampleSnapshot())
	is.NoErr(err)
	is.True(!seeded)

	snap, err := store.Snapshot(ctx)
	is.NoErr(err)
	is.Equal(snap, catalog.SampleSnapshot())
}

func TestStore_SeedReplaces(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	store := newTestStore(t)

	is.NoErr(store.Seed(ctx, catalog.SampleSnapshot()))
	is.NoErr(store.Seed(ctx, catalog.Snapshot{
		Categories: []catalog.Category{{ID: "b", Name: "Books"}, {ID: "a", Name: "Audio"}},
		Products: map[string][]catalog.Product{
			"b": {{ID: "z", Name: "Zen", Price: 5}, {ID: "y", Name: "Yoga", Price: 6}},
		},
	}))

	snap, err := store.Snapshot(ctx)
	is.NoErr(err)
	is.Equal(len(snap.Categories), 2)
	is.Equal(snap.Categories[0].Name, "Books") // seed order kept
	is.Equal(snap.Products["b"][0].Name, "Zen")
	is.Equal(snap.Products["b"][1].CategoryID, "b")
	is.Equal(snap.Len(), 2)
}

func TestStore_Product(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	store := newTestStore(t)
	is.NoErr(store.Seed(ctx, catalog.SampleSnapshot()))

	p, err := store.Product(ctx, "2")
	is.NoErr(err)
	is.Equal(p.Name, "Smart Watch")

	_, err = store.Product(ctx, "missing")
	is.True(errors.Is(err, catalog.ErrNotFound))

	p, err = catalog.Lookup(ctx, store, "4")
	is.NoErr(err)
	is.Equal(p.Name, "Running Shoes")
}

func TestStore_Cart(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	store := newTestStore(t)
	snap := catalog.SampleSnapshot()
	watch, _ := snap.Find("2")
	shoes, _ := snap.Find("4")

	is.NoErr(store.Add(ctx, watch, 1))
	is.NoErr(store.Add(ctx, shoes, 1))
	is.NoErr(store.Add(ctx, watch, 2))
	is.True(errors.Is(store.Add(ctx, watch, 0), cart.ErrInvalidQuantity))

	items, err := store.Items(ctx)
	is.NoErr(err)
	is.Equal(items, []cart.Item{{Product: watch, Quantity: 3}, {Product: shoes, Quantity: 1}})

	is.NoErr(store.UpdateQuantity(ctx, "4", 4))
	is.True(errors.Is(store.UpdateQuantity(ctx, "9", 1), catalog.ErrNotFound))
	is.NoErr(store.UpdateQuantity(ctx, "2", 0))

	items, err = store.Items(ctx)
	is.NoErr(err)
	is.Equal(items, []cart.Item{{Product: shoes, Quantity: 4}})

	count, _ := cart.Totals(items)
	is.Equal(count, 4)

	is.NoErr(store.Remove(ctx, "4"))
	is.NoErr(store.Add(ctx, watch, 1))
	is.NoErr(store.Clear(ctx))
	items, err = store.Items(ctx)
	is.NoErr(err)
	is.Equal(len(items), 0)
}
