package resolution

import (
	"errors"
	"math/rand"
	"slices"
	"testing"
)

func TestExpandDeterministic(t *testing.T) {
	specs := []string{
		"1024x1024,1152x896,896x1152,1216x832,832x1216,1344x768,768x1344,1536x640,640x1536",
		"[512x768],1024,512:768:64x768:1024:32",
		"[128:256:8x128:256:8]",
	}
	for _, s := range specs {
		a := mustSet(t, s)
		b := mustSet(t, s)
		if !slices.Equal(a.All(), b.All()) {
			t.Fatalf("%q: expansions differ", s)
		}
	}
}

func TestExpandOrderIndependent(t *testing.T) {
	a := mustSet(t, "512,[640x480],300:400:50x200")
	b := mustSet(t, "300:400:50x200 , [640x480], 512")
	if !slices.Equal(a.All(), b.All()) {
		t.Fatalf("%v != %v", a.All(), b.All())
	}
}

func TestExpandTooMany(t *testing.T) {
	_, err := ParseSet("1:100000x1:100000")
	if !errors.Is(err, ErrTooManyCandidates) {
		t.Fatalf("err = %v, want ErrTooManyCandidates", err)
	}
}

func TestExpandLargeBounds(t *testing.T) {
	set := mustSet(t, "4294967200:4294967295:64")
	if set.Len() != 2 {
		t.Fatalf("Len = %d, want 2", set.Len())
	}
}

func TestNewCandidateSetEmpty(t *testing.T) {
	if _, err := NewCandidateSet(Candidate{0, 10}); !errors.Is(err, ErrEmptySet) {
		t.Fatalf("err = %v, want ErrEmptySet", err)
	}
}

func TestMatchSingle(t *testing.T) {
	set := mustSet(t, "512x512")
	got, err := set.Match(1024, 768)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if got != (Candidate{512, 512}) {
		t.Fatalf("Match = %v, want 512x512", got)
	}
}

func TestMatchNearestAspect(t *testing.T) {
	set := mustSet(t, "1024x1024,1152x896,896x1152,1216x832,832x1216,1344x768,768x1344,1536x640,640x1536")
	tests := []struct {
		w, h int
		want Candidate
	}{
		{1000, 1000, Candidate{1024, 1024}},
		{1920, 1080, Candidate{1344, 768}},
		{1080, 1920, Candidate{768, 1344}},
		{4000, 1000, Candidate{1536, 640}},
		{800, 600, Candidate{1152, 896}},
	}
	for _, tt := range tests {
		got, err := set.Match(tt.w, tt.h)
		if err != nil {
			t.Fatalf("Match(%d, %d): %v", tt.w, tt.h, err)
		}
		if got != tt.want {
			t.Errorf("Match(%d, %d) = %v, want %v", tt.w, tt.h, got, tt.want)
		}
	}
}

func TestMatchNoImplicitFlip(t *testing.T) {
	set := mustSet(t, "1024x512,600x600")
	// 1:2 source: 1:1 is closer than 2:1 and no flip is attempted.
	got, _ := set.Match(500, 1000)
	if got != (Candidate{600, 600}) {
		t.Fatalf("Match = %v, want 600x600", got)
	}
}

func TestMatchAreaTieBreak(t *testing.T) {
	set := mustSet(t, "512,768,1024,256x128")
	got, _ := set.Match(300, 300)
	if got != (Candidate{1024, 1024}) {
		t.Fatalf("Match = %v, want 1024x1024", got)
	}

	set = mustSet(t, "400x200,1200x600,900x450")
	got, _ = set.Match(1000, 500)
	if got != (Candidate{1200, 600}) {
		t.Fatalf("Match = %v, want 1200x600", got)
	}
}

func TestMatchCanonicalTieBreak(t *testing.T) {
	// Square source is equally far from 2:1 and 1:2 with equal areas;
	// canonical order puts 200x100 first.
	set := mustSet(t, "[100x200]")
	got, _ := set.Match(50, 50)
	if got != (Candidate{200, 100}) {
		t.Fatalf("Match = %v, want 200x100", got)
	}
}

func TestMatchLogSymmetric(t *testing.T) {
	// 3:1 and 1:3 sit at the same log distance from 1:1 even though their
	// linear ratio differences (2 and 2/3) do not.
	set := mustSet(t, "300x100,100x300")
	got, _ := set.Match(7, 7)
	if got != (Candidate{300, 100}) {
		t.Fatalf("Match = %v, want 300x100", got)
	}
	set = mustSet(t, "280x100,100x300")
	got, _ = set.Match(7, 7)
	if got != (Candidate{280, 100}) {
		t.Fatalf("Match = %v, want 280x100", got)
	}
}

func TestMatchInvalidSource(t *testing.T) {
	set := mustSet(t, "512")
	for _, dims := range [][2]int{{0, 10}, {10, 0}, {-1, 5}} {
		if _, err := set.Match(dims[0], dims[1]); !errors.Is(err, ErrInvalidSource) {
			t.Fatalf("Match(%v): err = %v, want ErrInvalidSource", dims, err)
		}
	}
}

func TestMatchIsNearest(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	set := mustSet(t, "[64:2048:64x64:2048:128],333x777,1000x999")
	for i := 0; i < 500; i++ {
		w, h := 1+rng.Intn(8000), 1+rng.Intn(8000)
		best, err := set.Match(w, h)
		if err != nil {
			t.Fatalf("Match(%d, %d): %v", w, h, err)
		}
		bestD := aspectDistance(uint64(w), uint64(h), best)
		for _, c := range set.All() {
			d := aspectDistance(uint64(w), uint64(h), c)
			if d.compare(bestD) < 0 {
				t.Fatalf("Match(%d, %d) = %v but %v is closer", w, h, best, c)
			}
			if LogDistance(w, h, c) < LogDistance(w, h, best)-1e-9 {
				t.Fatalf("Match(%d, %d) = %v but %v has smaller log distance", w, h, best, c)
			}
		}
	}
}
