package objects

import (
	"errors"
	"fmt"
	"slices"
	"unicode/utf8"

	"github.com/barryels/Spark/internal/ir"
)

var (
	// ErrExists is returned by Put when the id is already taken.
	ErrExists = errors.New("object id already in use")
	// ErrNotFound is returned when no object holds the requested id.
	ErrNotFound = errors.New("object not found")
	// ErrInvalidID is returned for the zero id.
	ErrInvalidID = errors.New("object id 0 is not assignable")
	// ErrExhausted is returned when the id-space has no ids left.
	ErrExhausted = errors.New("object id space exhausted")
	// ErrInvalidText is returned for an object holding text that is not UTF-8.
	ErrInvalidText = errors.New("object text is not valid UTF-8")
)

// Record pairs an object with the id it is stored under.
type Record[K ~uint32] struct {
	ID     K
	Object ir.Object
}

// Table is an identified object table for one id-space.
//
// Table is not safe for concurrent use. The owning library serializes access.
type Table[K ~uint32] struct {
	space   ir.Space
	objects map[K]ir.Object
	ids     *counter
}

// New creates an empty table for the given id-space.
func New[K ~uint32](space ir.Space) *Table[K] {
	return &Table[K]{
		space:   space,
		objects: make(map[K]ir.Object),
		ids:     newCounter(ir.ReservedIDs),
	}
}

// Space returns the id-space this table serves.
func (t *Table[K]) Space() ir.Space {
	return t.space
}

// Len returns the number of live objects.
func (t *Table[K]) Len() int {
	return len(t.objects)
}

// Insert stores obj under a freshly allocated id and returns the id.
func (t *Table[K]) Insert(obj ir.Object) (K, error) {
	if err := checkText(obj); err != nil {
		return 0, fmt.Errorf("%s: %w", t.space, err)
	}
	for {
		next, ok := t.ids.Next()
		if !ok {
			return 0, fmt.Errorf("%s: %w", t.space, ErrExhausted)
		}
		id := K(next)
		// A Put above the counter may already hold this id.
		if _, taken := t.objects[id]; taken {
			continue
		}
		t.objects[id] = obj.Clone()
		return id, nil
	}
}

// Put stores obj under an explicit id. Used to restore persisted objects
// and to seed built-in objects in the reserved range.
func (t *Table[K]) Put(id K, obj ir.Object) error {
	if id == 0 {
		return fmt.Errorf("%s: %w", t.space, ErrInvalidID)
	}
	if _, ok := t.objects[id]; ok {
		return fmt.Errorf("%s %d: %w", t.space, id, ErrExists)
	}
	if err := checkText(obj); err != nil {
		return fmt.Errorf("%s %d: %w", t.space, id, err)
	}
	t.objects[id] = obj.Clone()
	t.ids.Observe(uint32(id))
	return nil
}

// Update replaces the object stored under id.
func (t *Table[K]) Update(id K, obj ir.Object) error {
	if _, ok := t.objects[id]; !ok {
		return fmt.Errorf("%s %d: %w", t.space, id, ErrNotFound)
	}
	if err := checkText(obj); err != nil {
		return fmt.Errorf("%s %d: %w", t.space, id, err)
	}
	t.objects[id] = obj.Clone()
	return nil
}

// checkText rejects objects the binary encoding could write but not read.
func checkText(obj ir.Object) error {
	if !utf8.ValidString(obj.Kind) {
		return fmt.Errorf("kind %q: %w", obj.Kind, ErrInvalidText)
	}
	if !utf8.ValidString(obj.Name) {
		return fmt.Errorf("name %q: %w", obj.Name, ErrInvalidText)
	}
	for k, v := range obj.Attributes {
		if !utf8.ValidString(k) || !utf8.ValidString(v) {
			return fmt.Errorf("attribute %q: %w", k, ErrInvalidText)
		}
	}
	return nil
}

// Get returns the object stored under id.
func (t *Table[K]) Get(id K) (ir.Object, bool) {
	obj, ok := t.objects[id]
	if !ok {
		return ir.Object{}, false
	}
	return obj.Clone(), true
}

// Contains reports whether id names a live object.
func (t *Table[K]) Contains(id K) bool {
	_, ok := t.objects[id]
	return ok
}

// Remove deletes the object stored under id. The id is not reused.
func (t *Table[K]) Remove(id K) bool {
	if _, ok := t.objects[id]; !ok {
		return false
	}
	delete(t.objects, id)
	return true
}

// All returns every live object ordered by id.
func (t *Table[K]) All() []Record[K] {
	records := make([]Record[K], 0, len(t.objects))
	for id, obj := range t.objects {
		records = append(records, Record[K]{ID: id, Object: obj.Clone()})
	}
	slices.SortFunc(records, func(a, b Record[K]) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return records
}

// IDs returns the ids of every live object in ascending order.
func (t *Table[K]) IDs() []K {
	ids := make([]K, 0, len(t.objects))
	for id := range t.objects {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Next returns the id the next Insert would try first.
func (t *Table[K]) Next() K {
	return K(t.ids.Current() + 1)
}

// Clone returns an independent copy of the table, allocator included.
func (t *Table[K]) Clone() *Table[K] {
	c := &Table[K]{
		space:   t.space,
		objects: make(map[K]ir.Object, len(t.objects)),
		ids:     newCounter(t.ids.Current()),
	}
	for id, obj := range t.objects {
		c.objects[id] = obj.Clone()
	}
	return c
}
