package ilist

import "testing"

type testElem struct {
	Entry[*testElem]
	value int
}

func values(l *List[*testElem]) []int {
	var out []int
	for e := l.Front(); e != nil; e = e.Next() {
		out = append(out, e.value)
	}
	return out
}

func equal(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestPushAndRemove(t *testing.T) {
	var l List[*testElem]
	if !l.Empty() {
		t.Fatalf("zero List is not empty")
	}

	e := make([]*testElem, 4)
	for i := range e {
		e[i] = &testElem{value: i}
	}
	l.PushBack(e[1])
	l.PushBack(e[2])
	l.PushFront(e[0])
	l.PushBack(e[3])

	if got := values(&l); !equal(got, []int{0, 1, 2, 3}) {
		t.Fatalf("values = %v, want [0 1 2 3]", got)
	}
	if l.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", l.Len())
	}

	for _, test := range []struct {
		remove *testElem
		want   []int
	}{
		{remove: e[2], want: []int{0, 1, 3}},
		{remove: e[0], want: []int{1, 3}},
		{remove: e[3], want: []int{1}},
		{remove: e[1], want: nil},
	} {
		l.Remove(test.remove)
		if got := values(&l); !equal(got, test.want) {
			t.Fatalf("after removing %d: values = %v, want %v", test.remove.value, got, test.want)
		}
	}
	if !l.Empty() || l.Back() != nil {
		t.Fatalf("list not empty after removing everything")
	}
}

func TestRemoveNotInList(t *testing.T) {
	var l List[*testElem]
	a, b := &testElem{value: 1}, &testElem{value: 2}
	l.PushBack(a)

	l.Remove(b)
	if got := values(&l); !equal(got, []int{1}) {
		t.Fatalf("values = %v, want [1]", got)
	}
}
