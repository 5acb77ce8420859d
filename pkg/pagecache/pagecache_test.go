package pagecache

import "testing"

type sliceIterator struct {
	items []int
	pos   int
}

func (it *sliceIterator) Next(n int) ([]int, bool, error) {
	if it.pos >= len(it.items) {
		return nil, false, nil
	}
	end := it.pos + n
	if end > len(it.items) {
		end = len(it.items)
	}
	batch := it.items[it.pos:end]
	it.pos = end
	return batch, it.pos < len(it.items), nil
}

func newFactory(items []int) func() Iterator[int] {
	return func() Iterator[int] { return &sliceIterator{items: items} }
}

func TestGetFreshQueryPaginates(t *testing.T) {
	c := New[int](10)
	factory := newFactory([]int{1, 2, 3, 4, 5})

	page, err := c.Get("", 0, factory, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Results) != 2 || page.Results[0] != 1 || page.Results[1] != 2 {
		t.Fatalf("unexpected first page: %+v", page)
	}
	if page.Next == "" {
		t.Fatal("expected a next page uuid")
	}
	if page.Prev != "" {
		t.Fatalf("expected no prev on the first page, got %q", page.Prev)
	}

	page2, err := c.Get(page.Next, 0, factory, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(page2.Results) != 2 || page2.Results[0] != 3 {
		t.Fatalf("unexpected second page: %+v", page2)
	}
	if page2.Prev != page.This {
		t.Fatalf("expected prev to link back to first page, got %q vs %q", page2.Prev, page.This)
	}
}

func TestGetMaterializedReplayIsIdempotent(t *testing.T) {
	c := New[int](10)
	factory := newFactory([]int{1, 2, 3})

	page, err := c.Get("", 0, factory, 2)
	if err != nil {
		t.Fatal(err)
	}

	replay, err := c.Get(page.This, 0, factory, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(replay.Results) != len(page.Results) || replay.Results[0] != page.Results[0] {
		t.Fatalf("expected idempotent replay, got %+v vs %+v", replay, page)
	}
}

func TestGetSkipAdvancesMultiplePages(t *testing.T) {
	c := New[int](10)
	factory := newFactory([]int{1, 2, 3, 4, 5, 6})

	page, err := c.Get("", 3, factory, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Results) != 2 || page.Results[0] != 3 {
		t.Fatalf("expected skip to land on the second page, got %+v", page)
	}
}

func TestGetSkipBeyondTotalReturnsFinalEmptyPage(t *testing.T) {
	c := New[int](10)
	factory := newFactory([]int{1, 2})

	page, err := c.Get("", 100, factory, 2)
	if err != nil {
		t.Fatal(err)
	}
	if page.Next != "" {
		t.Fatalf("expected final page to have no next, got %+v", page)
	}
}

func TestGetEvictedUUIDBehavesAsFreshQuery(t *testing.T) {
	c := New[int](1) // bound to 1 entry so storing a second evicts the first
	factory := newFactory([]int{1, 2, 3, 4})

	page, err := c.Get("", 0, factory, 2)
	if err != nil {
		t.Fatal(err)
	}
	nextUUID := page.Next

	// Force eviction of the suspended entry by storing enough new ones.
	c.store("filler-1", &cacheEntry[int]{materialized: &Page[int]{This: "filler-1"}})
	c.store("filler-2", &cacheEntry[int]{materialized: &Page[int]{This: "filler-2"}})

	replayed, err := c.Get(nextUUID, 0, factory, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(replayed.Results) != 2 || replayed.Results[0] != 1 {
		t.Fatalf("expected eviction to fall back to a fresh query, got %+v", replayed)
	}
}
