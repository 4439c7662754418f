package maps

import "iter"

// Ordered is a map remembering the order of insertion.
//
// Updating a value of an existing key does not change its position.
type Ordered[K comparable, V any] struct {
	keys []K
	m    map[K]V
}

func NewOrdered[K comparable, V any]() *Ordered[K, V] {
	return &Ordered[K, V]{keys: []K{}, m: map[K]V{}}
}

func (o *Ordered[K, V]) Set(k K, v V) {
	if _, ok := o.m[k]; !ok {
		o.keys = append(o.keys, k)
	}
	o.m[k] = v
}

func (o *Ordered[K, V]) Get(k K) (V, bool) {
	v, ok := o.m[k]
	return v, ok
}

func (o *Ordered[K, V]) Has(k K) bool {
	_, ok := o.m[k]
	return ok
}

// Keys returns keys in insertion order. The returned slice must not be modified.
func (o *Ordered[K, V]) Keys() []K {
	return o.keys
}

func (o *Ordered[K, V]) Values() []V {
	values := make([]V, 0, len(o.keys))
	for _, k := range o.keys {
		values = append(values, o.m[k])
	}
	return values
}

func (o *Ordered[K, V]) Delete(k K) {
	if _, ok := o.m[k]; !ok {
		return
	}
	delete(o.m, k)
	for i, key := range o.keys {
		if key == k {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
}

func (o *Ordered[K, V]) Len() int {
	return len(o.keys)
}

// All iterates over pairs in insertion order.
func (o *Ordered[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for _, k := range o.keys {
			if !yield(k, o.m[k]) {
				return
			}
		}
	}
}
