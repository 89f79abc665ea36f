// Packge ilist provides the implementation of intrusive linked lists

package ilist

// Linker is the interface that objects must implement if they want to be added
// to and/or removed from List objects. T is the pointer type of the object
// itself, so lists never allocate or type-assert
type Linker[T any] interface {
	comparable
	Next() T
	Prev() T
	SetNext(T)
	SetPrev(T)
}

// List is an intrusive list. Entries can be added to or removed from the list
// in O(1) time and with no additional memory allocations
//
// The zero value for List is an empty list ready to use
//
// To iterate over a list (where l is a List):
//
//	for e := l.Front(); e != nil; e = e.Next() {
//		// do something with e
//	}
type List[T Linker[T]] struct {
	head T
	tail T
}

// Reset resets list l to the empty state
func (l *List[T]) Reset() {
	var zero T
	l.head = zero
	l.tail = zero
}

// Empty returns true if the list is empty
func (l *List[T]) Empty() bool {
	var zero T
	return l.head == zero
}

// Front returns the first element of list l or the zero T
func (l *List[T]) Front() T {
	return l.head
}

// Back returns the last element of list l or the zero T
func (l *List[T]) Back() T {
	return l.tail
}

// Len returns the number of elements in the list. It walks the list
func (l *List[T]) Len() int {
	var zero T
	n := 0
	for e := l.head; e != zero; e = e.Next() {
		n++
	}
	return n
}

// PushFront inserts the element e at the front of list l
func (l *List[T]) PushFront(e T) {
	var zero T
	e.SetNext(l.head)
	e.SetPrev(zero)

	if l.head != zero {
		l.head.SetPrev(e)
	} else {
		l.tail = e
	}

	l.head = e
}

// PushBack inserts the element e at the back of list l
func (l *List[T]) PushBack(e T) {
	var zero T
	e.SetNext(zero)
	e.SetPrev(l.tail)

	if l.tail != zero {
		l.tail.SetNext(e)
	} else {
		l.head = e
	}

	l.tail = e
}

// Remove removes e from l
func (l *List[T]) Remove(e T) {
	var zero T
	prev := e.Prev()
	next := e.Next()

	if prev != zero {
		prev.SetNext(next)
	} else if l.head == e {
		l.head = next
	}

	if next != zero {
		next.SetPrev(prev)
	} else if l.tail == e {
		l.tail = prev
	}

	e.SetNext(zero)
	e.SetPrev(zero)
}

// Entry is a default implementations of Linker. Users can add anonymous fields
// of this type to their structs to make them automatically implement the
// methods needed by List
type Entry[T any] struct {
	next T
	prev T
}

// Next returns the entry that follows e in the list
func (e *Entry[T]) Next() T {
	return e.next
}

// Prev returns the entry that precedes e in the list
func (e *Entry[T]) Prev() T {
	return e.prev
}

// SetNext assigns 'entry' as the entry that follows e in the list
func (e *Entry[T]) SetNext(entry T) {
	e.next = entry
}

// SetPrev assigns 'entry' as the entry that precedes e in the list
func (e *Entry[T]) SetPrev(entry T) {
	e.prev = entry
}
