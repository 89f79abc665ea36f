package buffer

import (
	"bytes"
	"testing"
)

func TestVectorisedViewTrimFront(t *testing.T) {
	for _, test := range []struct {
		name string
		trim int
		want string
	}{
		{name: "none", trim: 0, want: "abcdefgh"},
		{name: "inside-first", trim: 2, want: "cdefgh"},
		{name: "whole-first", trim: 3, want: "defgh"},
		{name: "into-second", trim: 4, want: "efgh"},
		{name: "everything", trim: 8, want: ""},
		{name: "past-end", trim: 20, want: ""},
	} {
		t.Run(test.name, func(t *testing.T) {
			vv := NewVectorisedView([]View{View("abc"), View("de"), View("fgh")}, 8)
			vv.TrimFront(test.trim)
			if got := string(vv.ToView()); got != test.want {
				t.Errorf("ToView() = %q, want %q", got, test.want)
			}
			if vv.Size() != len(test.want) {
				t.Errorf("Size() = %d, want %d", vv.Size(), len(test.want))
			}
		})
	}
}

func TestVectorisedViewCopyTo(t *testing.T) {
	var vv VectorisedView
	vv.AppendView(View("hello "))
	vv.AppendView(nil)
	vv.AppendView(View("world"))

	if len(vv.Views()) != 2 {
		t.Fatalf("len(Views()) = %d, want 2", len(vv.Views()))
	}

	dst := make([]byte, 8)
	if n := vv.CopyTo(dst); n != 8 || !bytes.Equal(dst, []byte("hello wo")) {
		t.Errorf("CopyTo() = %d %q, want 8 %q", n, dst, "hello wo")
	}

	clone := vv.Clone(nil)
	vv.TrimFront(6)
	if got := string(clone.ToView()); got != "hello world" {
		t.Errorf("clone.ToView() = %q, want %q", got, "hello world")
	}
}

func TestViewCapLength(t *testing.T) {
	v := NewViewFromBytes([]byte("abcdef"))
	v.CapLength(3)
	if string(v) != "abc" || cap(v) != 3 {
		t.Errorf("CapLength(3) = %q cap %d, want %q cap 3", v, cap(v), "abc")
	}
	vv := v.ToVectorisedView([1]View{})
	if vv.Size() != 3 || string(vv.First()) != "abc" {
		t.Errorf("ToVectorisedView() = %q size %d", vv.First(), vv.Size())
	}
}
