package cbvringbuf_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/peterbourgon/cbvtrc/internal/cbvringbuf"
)

func TestRingBuffer(t *testing.T) {
	t.Parallel()

	walk := func(rb *cbvringbuf.RingBuffer[int]) []int {
		var have []int
		rb.Walk(func(i int) error { have = append(have, i); return nil })
		return have
	}

	rb := cbvringbuf.New[int](3)

	if want, have := []int(nil), walk(rb); !cmp.Equal(want, have) {
		t.Fatal(cmp.Diff(want, have))
	}

	for i := 1; i <= 3; i++ {
		if _, ok := rb.Add(i); ok {
			t.Fatalf("Add(%d): unexpected drop", i)
		}
	}

	if want, have := []int{3, 2, 1}, walk(rb); !cmp.Equal(want, have) {
		t.Fatal(cmp.Diff(want, have))
	}

	dropped, ok := rb.Add(4)
	if !ok || dropped != 1 {
		t.Fatalf("Add(4): want dropped 1, have %d (%v)", dropped, ok)
	}

	if want, have := []int{4, 3, 2}, walk(rb); !cmp.Equal(want, have) {
		t.Fatal(cmp.Diff(want, have))
	}

	if want, have := 3, rb.Len(); want != have {
		t.Fatalf("Len: want %d, have %d", want, have)
	}
}

func TestRingBufferWalkError(t *testing.T) {
	t.Parallel()

	rb := cbvringbuf.New[string](10)
	for _, s := range []string{"a", "b", "c", "d"} {
		rb.Add(s)
	}

	stop := errors.New("stop")
	var seen []string
	err := rb.Walk(func(s string) error {
		seen = append(seen, s)
		if len(seen) == 2 {
			return stop
		}
		return nil
	})
	if !errors.Is(err, stop) {
		t.Fatalf("want %v, have %v", stop, err)
	}
	if want, have := []string{"d", "c"}, seen; !cmp.Equal(want, have) {
		t.Fatal(cmp.Diff(want, have))
	}
}

func TestSet(t *testing.T) {
	t.Parallel()

	s := cbvringbuf.NewSet[int](2)
	s.GetOrCreate("a").Add(1)
	s.GetOrCreate("a").Add(2)
	s.GetOrCreate("a").Add(3)
	s.GetOrCreate("b").Add(9)

	all := s.All()
	if want, have := 2, len(all); want != have {
		t.Fatalf("want %d, have %d", want, have)
	}
	if want, have := 2, all["a"].Len(); want != have {
		t.Fatalf("a: want %d, have %d", want, have)
	}
	if want, have := 1, all["b"].Len(); want != have {
		t.Fatalf("b: want %d, have %d", want, have)
	}
}
