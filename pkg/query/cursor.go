package query

import "github.com/nogdb/nogdb/pkg/storage"

// recordSource is a pull-based record stream: it returns the next record,
// or (nil, nil) once exhausted.
type recordSource func() (*storage.Record, error)

// Cursor is the lazy dual of the materializing find operators: forward-only,
// single-pass, advanced with Next. Records are produced class by class as
// the cursor is driven, so a consumer that stops early never pays for the
// classes it didn't reach. A Cursor is bound to its transaction and must not
// outlive it.
type Cursor struct {
	open      func() recordSource
	src       recordSource
	cur       *storage.Record
	err       error
	exhausted bool
}

func newCursor(open func() recordSource) *Cursor {
	return &Cursor{open: open}
}

// Next advances to the next record, reporting whether one is available.
// Calling Next after exhaustion (or after an error) stays a no-op returning
// false.
func (c *Cursor) Next() bool {
	if c.exhausted || c.err != nil {
		return false
	}
	if c.src == nil {
		c.src = c.open()
	}
	rec, err := c.src()
	if err != nil {
		c.err = err
		c.cur = nil
		return false
	}
	if rec == nil {
		c.exhausted = true
		c.cur = nil
		return false
	}
	c.cur = rec
	return true
}

// Record returns the record at the cursor, nil before the first Next or
// after exhaustion.
func (c *Cursor) Record() *storage.Record { return c.cur }

// Err returns the error that stopped the cursor, if any.
func (c *Cursor) Err() error { return c.err }

// Size pre-counts the result by running a separate full pass over the same
// source. It does not disturb the cursor's own position.
func (c *Cursor) Size() (int, error) {
	src := c.open()
	n := 0
	for {
		rec, err := src()
		if err != nil {
			return 0, err
		}
		if rec == nil {
			return n, nil
		}
		n++
	}
}

// Count is an alias for Size.
func (c *Cursor) Count() (int, error) { return c.Size() }

// Empty reports whether the result has no records, by peeking a fresh pass
// at most one record deep.
func (c *Cursor) Empty() (bool, error) {
	src := c.open()
	rec, err := src()
	if err != nil {
		return false, err
	}
	return rec == nil, nil
}

// classSource streams the matches of filter across the classes resolve
// yields, one class at a time. Resolution and the per-class work are both
// deferred until the source is first pulled, so building a cursor is free.
func (e *Engine) classSource(filter GraphFilter, resolve func() ([]string, error)) func() recordSource {
	return func() recordSource {
		var classNames []string
		resolved := false
		var buf []*storage.Record
		next := 0
		return func() (*storage.Record, error) {
			if !resolved {
				names, err := resolve()
				if err != nil {
					return nil, err
				}
				classNames = names
				resolved = true
			}
			for {
				if len(buf) > 0 {
					rec := buf[0]
					buf = buf[1:]
					return rec, nil
				}
				if next >= len(classNames) {
					return nil, nil
				}
				className := classNames[next]
				next++
				allowed, err := filter.classAllowed(e.txn.Catalog, className)
				if err != nil {
					return nil, err
				}
				if !allowed {
					continue
				}
				recs, err := e.findInOneClass(filter, className)
				if err != nil {
					return nil, err
				}
				buf = recs
			}
		}
	}
}

// FindCursor is the lazy dual of Find.
func (e *Engine) FindCursor(filter GraphFilter) *Cursor {
	return newCursor(e.classSource(filter, func() ([]string, error) {
		return []string{filter.ClassName}, nil
	}))
}

// FindSubClassOfCursor is the lazy dual of FindSubClassOf.
func (e *Engine) FindSubClassOfCursor(filter GraphFilter) *Cursor {
	return newCursor(e.classSource(filter, func() ([]string, error) {
		subs, err := e.txn.Catalog.Subclasses(filter.ClassName)
		if err != nil {
			return nil, err
		}
		names := make([]string, 0, len(subs)+1)
		names = append(names, filter.ClassName)
		for _, c := range subs {
			names = append(names, c.Name)
		}
		return names, nil
	}))
}

// sliceSource adapts an eagerly computed result into the cursor shape. The
// compute callback still only runs when the cursor (or a Size/Empty pass) is
// first pulled.
func sliceSource(compute func() ([]*storage.Record, error)) func() recordSource {
	return func() recordSource {
		var recs []*storage.Record
		computed := false
		next := 0
		return func() (*storage.Record, error) {
			if !computed {
				r, err := compute()
				if err != nil {
					return nil, err
				}
				recs = r
				computed = true
			}
			if next >= len(recs) {
				return nil, nil
			}
			rec := recs[next]
			next++
			return rec, nil
		}
	}
}

// FindOutEdgeCursor is the lazy dual of FindOutEdge.
func (e *Engine) FindOutEdgeCursor(srcID storage.RID, filter GraphFilter) *Cursor {
	return newCursor(sliceSource(func() ([]*storage.Record, error) {
		return e.FindOutEdge(srcID, filter)
	}))
}

// FindInEdgeCursor is the lazy dual of FindInEdge.
func (e *Engine) FindInEdgeCursor(dstID storage.RID, filter GraphFilter) *Cursor {
	return newCursor(sliceSource(func() ([]*storage.Record, error) {
		return e.FindInEdge(dstID, filter)
	}))
}

// FindEdgeCursor is the lazy dual of FindEdge.
func (e *Engine) FindEdgeCursor(vertexID storage.RID, filter GraphFilter) *Cursor {
	return newCursor(sliceSource(func() ([]*storage.Record, error) {
		return e.FindEdge(vertexID, filter)
	}))
}

// TraversalCursor walks a traversal result one vertex at a time. BFS has to
// discover the frontier to order it, so the result is computed on the first
// advance and then streamed; the cursor interface stays uniform with the
// find cursors.
type TraversalCursor struct {
	compute   func() ([]Traversal, error)
	items     []Traversal
	computed  bool
	pos       int
	err       error
	exhausted bool
}

// Next advances to the next traversal entry.
func (c *TraversalCursor) Next() bool {
	if c.exhausted || c.err != nil {
		return false
	}
	if !c.computed {
		items, err := c.compute()
		if err != nil {
			c.err = err
			return false
		}
		c.items = items
		c.computed = true
		c.pos = -1
	}
	c.pos++
	if c.pos >= len(c.items) {
		c.exhausted = true
		return false
	}
	return true
}

// Traversal returns the entry at the cursor.
func (c *TraversalCursor) Traversal() Traversal {
	if !c.computed || c.pos < 0 || c.pos >= len(c.items) {
		return Traversal{}
	}
	return c.items[c.pos]
}

// Err returns the error that stopped the cursor, if any.
func (c *TraversalCursor) Err() error { return c.err }

// Size returns the number of entries in the traversal result.
func (c *TraversalCursor) Size() (int, error) {
	if !c.computed {
		items, err := c.compute()
		if err != nil {
			return 0, err
		}
		c.items = items
		c.computed = true
		c.pos = -1
	}
	return len(c.items), nil
}

// Count is an alias for Size.
func (c *TraversalCursor) Count() (int, error) { return c.Size() }

// Empty reports whether the traversal reached nothing.
func (c *TraversalCursor) Empty() (bool, error) {
	n, err := c.Size()
	return n == 0, err
}

// TraverseCursor is the cursor dual of Traverse.
func (e *Engine) TraverseCursor(start storage.RID, direction Direction, minDepth, maxDepth int, edgeFilter, vertexFilter GraphFilter) *TraversalCursor {
	return &TraversalCursor{compute: func() ([]Traversal, error) {
		return e.Traverse(start, direction, minDepth, maxDepth, edgeFilter, vertexFilter)
	}}
}
