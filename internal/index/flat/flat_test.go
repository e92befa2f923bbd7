package flat

import (
	"errors"
	"math"
	"testing"
)

func TestAddRejectsWrongDimension(t *testing.T) {
	x := New(2)
	if err := x.Add([]float32{1, 0}, []float32{1, 0, 0}); !errors.Is(err, ErrDimension) {
		t.Fatalf("expected ErrDimension, got %v", err)
	}
	if x.Len() != 0 {
		t.Fatalf("partial add: len=%d", x.Len())
	}
}

func TestAddCopiesVectors(t *testing.T) {
	x := New(2)
	v := []float32{1, 0}
	if err := x.Add(v); err != nil {
		t.Fatal(err)
	}
	v[0] = 9
	if x.Vector(0)[0] != 1 {
		t.Fatal("index must not alias caller memory")
	}
}

func TestSearchOrderingAndTies(t *testing.T) {
	x := New(2)
	if err := x.Add(
		[]float32{0, 1},
		[]float32{1, 0},
		[]float32{0.6, 0.8},
		[]float32{1, 0},
	); err != nil {
		t.Fatal(err)
	}
	labels, scores, err := x.Search([]float32{1, 0}, 4)
	if err != nil {
		t.Fatal(err)
	}
	want := []int{1, 3, 2, 0}
	for i := range want {
		if labels[i] != want[i] {
			t.Fatalf("labels = %v, want %v", labels, want)
		}
	}
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[i-1] {
			t.Fatalf("scores not descending: %v", scores)
		}
	}
}

func TestSearchPadsWithNoLabel(t *testing.T) {
	x := New(2)
	_ = x.Add([]float32{1, 0})
	labels, scores, err := x.Search([]float32{1, 0}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(labels) != 3 || labels[0] != 0 || labels[1] != NoLabel || labels[2] != NoLabel {
		t.Fatalf("labels = %v", labels)
	}
	if !math.IsInf(float64(scores[2]), -1) {
		t.Errorf("padding score = %v, want -Inf", scores[2])
	}

	labels, _, err = New(2).Search([]float32{1, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if labels[0] != NoLabel || labels[1] != NoLabel {
		t.Fatalf("empty index labels = %v", labels)
	}
}

func TestSearchValidation(t *testing.T) {
	x := New(3)
	if _, _, err := x.Search([]float32{1}, 1); !errors.Is(err, ErrDimension) {
		t.Fatalf("expected ErrDimension, got %v", err)
	}
	labels, _, err := x.Search([]float32{1, 0, 0}, 0)
	if err != nil || len(labels) != 0 {
		t.Fatalf("k=0: labels=%v err=%v", labels, err)
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	x := New(3)
	_ = x.Add([]float32{1, 2, 3}, []float32{-1, 0.5, 0})
	data, err := x.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	y := New(0)
	if err := y.UnmarshalBinary(data); err != nil {
		t.Fatalf("UnmarshalBinary: %v", err)
	}
	if y.Dim() != 3 || y.Len() != 2 {
		t.Fatalf("dim=%d len=%d", y.Dim(), y.Len())
	}
	for i := 0; i < x.Len(); i++ {
		for j := 0; j < 3; j++ {
			if x.Vector(i)[j] != y.Vector(i)[j] {
				t.Fatalf("vector %d differs: %v vs %v", i, x.Vector(i), y.Vector(i))
			}
		}
	}

	empty, _ := New(4).MarshalBinary()
	z := New(0)
	if err := z.UnmarshalBinary(empty); err != nil || z.Len() != 0 || z.Dim() != 4 {
		t.Fatalf("empty round trip: dim=%d len=%d err=%v", z.Dim(), z.Len(), err)
	}
}

func TestUnmarshalCorrupt(t *testing.T) {
	x := New(2)
	_ = x.Add([]float32{1, 0})
	good, _ := x.MarshalBinary()

	cases := map[string][]byte{
		"short":     good[:5],
		"bad magic": append([]byte("NOTMAGIC"), good[8:]...),
		"truncated": good[:len(good)-1],
		"trailing":  append(append([]byte(nil), good...), 0),
	}
	for name, data := range cases {
		if err := New(0).UnmarshalBinary(data); !errors.Is(err, ErrCorrupt) {
			t.Errorf("%s: expected ErrCorrupt, got %v", name, err)
		}
	}
}
