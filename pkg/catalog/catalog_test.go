package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/matryer/is"
)

func TestSnapshotEachOrder(t *testing.T) {
	is := is.New(t)
	snap := SampleSnapshot()

	var names []string
	snap.Each(func(p Product) bool {
		names = append(names, p.Name)
		return true
	})
	is.Equal(names, []string{"Wireless Bluetooth Headphones", "Smart Watch", "Casual T-Shirt", "Running Shoes"})
	is.Equal(snap.Len(), 4)
}

func TestSnapshotEachStops(t *testing.T) {
	is := is.New(t)
	n := 0
	SampleSnapshot().Each(func(Product) bool {
		n++
		return n < 2
	})
	is.Equal(n, 2)
}

func TestSnapshotFind(t *testing.T) {
	is := is.New(t)
	snap := SampleSnapshot()

	p, ok := snap.Find("4")
	is.True(ok)
	is.Equal(p.Name, "Running Shoes")

	_, ok = snap.Find("99")
	is.True(!ok)
	_, ok = snap.Find("")
	is.True(!ok)
}

func TestSnapshotIgnoresOrphanProducts(t *testing.T) {
	is := is.New(t)
	snap := Snapshot{
		Categories: []Category{{ID: "a"}},
		Products: map[string][]Product{
			"a": {{ID: "1"}},
			"b": {{ID: "2"}},
		},
	}
	is.Equal(snap.Len(), 1)
	_, ok := snap.Find("2")
	is.True(!ok)
}

func TestMemorySnapshotIsolation(t *testing.T) {
	is := is.New(t)
	mem := NewMemory(SampleSnapshot())

	snap, err := mem.Snapshot(context.Background())
	is.NoErr(err)
	snap.Products["1"][0].Name = "changed"

	again, err := mem.Snapshot(context.Background())
	is.NoErr(err)
	is.Equal(again.Products["1"][0].Name, "Wireless Bluetooth Headphones")

	mem.Replace(Snapshot{})
	empty, err := mem.Snapshot(context.Background())
	is.NoErr(err)
	is.Equal(empty.Len(), 0)
}

func TestMemorySnapshotCancelled(t *testing.T) {
	is := is.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemory(SampleSnapshot()).Snapshot(ctx)
	is.Equal(err, context.Canceled)
}

// finderSource fails Snapshot so only Product can answer.
type finderSource struct {
	products map[string]Product
}

func (f finderSource) Snapshot(context.Context) (Snapshot, error) {
	return Snapshot{}, errors.New("full read not expected")
}

func (f finderSource) Product(_ context.Context, id string) (Product, error) {
	p, ok := f.products[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	return p, nil
}

func TestLookup(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	mem := NewMemory(SampleSnapshot())
	p, err := Lookup(ctx, mem, "3")
	is.NoErr(err)
	is.Equal(p.Name, "Casual T-Shirt")
	_, err = Lookup(ctx, mem, "99")
	is.True(errors.Is(err, ErrNotFound))

	finder := finderSource{products: map[string]Product{"7": {ID: "7", Name: "Desk Lamp"}}}
	p, err = Lookup(ctx, finder, "7")
	is.NoErr(err)
	is.Equal(p.Name, "Desk Lamp")
	_, err = Lookup(ctx, finder, "8")
	is.True(errors.Is(err, ErrNotFound))
}
