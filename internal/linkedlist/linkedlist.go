// Package linkedlist provides a generic doubly-linked list.
package linkedlist

// Element is a node of a List.
type Element[V any] struct {
	Value V

	next, prev *Element[V]
	list       *List[V]
}

// Next returns the following element or nil if it is the last one.
func (e *Element[V]) Next() *Element[V] {
	if e.list == nil {
		return nil
	}

	if n := e.next; n != &e.list.root {
		return n
	}

	return nil
}

// List is a doubly-linked list.
type List[V any] struct {
	root Element[V]
	len  int
}

func New[V any]() *List[V] {
	l := List[V]{}
	l.root.next = &l.root
	l.root.prev = &l.root

	return &l
}

// Len returns the number of elements in the list.
func (l *List[V]) Len() int {
	return l.len
}

// Front returns the first element or nil if the list is empty.
func (l *List[V]) Front() *Element[V] {
	if l.len == 0 {
		return nil
	}

	return l.root.next
}

// PushBack appends val to the end of the list and returns its element.
func (l *List[V]) PushBack(val V) *Element[V] {
	e := &Element[V]{Value: val, list: l}

	last := l.root.prev
	last.next = e
	e.prev = last
	e.next = &l.root
	l.root.prev = e
	l.len++

	return e
}

// Remove removes e from the list and returns its value.
func (l *List[V]) Remove(e *Element[V]) V {
	if e.list == l {
		e.prev.next = e.next
		e.next.prev = e.prev
		e.next = nil
		e.prev = nil
		e.list = nil
		l.len--
	}

	return e.Value
}
