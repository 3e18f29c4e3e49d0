package query

import (
	"github.com/nogdb/nogdb/pkg/errs"
	"github.com/nogdb/nogdb/pkg/storage"
)

// Direction selects which adjacency sub-map a traversal walks.
type Direction uint8

const (
	Out Direction = iota
	InDir
	Both
)

// Traversal is one vertex reached by a breadth-first walk, tagged with its
// discovery depth (the source sits at depth 0).
type Traversal struct {
	Record *storage.Record
	Depth  int
}

// queueItem is one frontier entry in the BFS below: the vertex reached and
// how many hops it took to get there. RID's comparability lets the visited
// set key directly on it.
type queueItem struct {
	vertex storage.RID
	depth  int
}

func (e *Engine) neighborEdges(vertex storage.RID, direction Direction) ([]storage.RID, error) {
	switch direction {
	case Out:
		return e.txn.Records.FetchOut(vertex)
	case InDir:
		return e.txn.Records.FetchIn(vertex)
	default:
		out, err := e.txn.Records.FetchOut(vertex)
		if err != nil {
			return nil, err
		}
		in, err := e.txn.Records.FetchIn(vertex)
		if err != nil {
			return nil, err
		}
		return append(out, in...), nil
	}
}

// otherEndpoint returns the vertex at the far end of edgeRec from "from".
func otherEndpoint(edgeRec *storage.Record, from storage.RID) storage.RID {
	if edgeRec.Src == from {
		return edgeRec.Dst
	}
	return edgeRec.Src
}

// validateSource checks a traversal's starting point: its class must exist
// and be a vertex class, and the record itself must exist. The error codes
// distinguish the three failure modes.
func (e *Engine) validateSource(rid storage.RID) (*storage.Record, error) {
	cls, err := e.txn.Catalog.GetClassByID(rid.ClassID)
	if err != nil {
		return nil, err
	}
	if cls.Kind != storage.Vertex {
		return nil, errs.New(errs.MismatchClassType, "traversal source %+v is not a vertex", rid)
	}
	rec, err := e.txn.Records.Fetch(rid)
	if err != nil {
		if code, ok := errs.CodeOf(err); ok && code == errs.NoExistRecord {
			return nil, errs.New(errs.GraphNoExistVertex, "traversal source vertex %+v does not exist", rid)
		}
		return nil, err
	}
	return rec, nil
}

// edgeMatches applies edgeFilter to one candidate edge record, honoring an
// empty ClassName as "any edge class".
func (e *Engine) edgeMatches(edgeRec *storage.Record, edgeFilter GraphFilter) (bool, error) {
	cls, err := e.txn.Catalog.GetClassByID(edgeRec.RID.ClassID)
	if err != nil {
		return false, err
	}
	if edgeFilter.ClassName != "" && edgeFilter.ClassName != cls.Name {
		return false, nil
	}
	allowed, err := edgeFilter.classAllowed(e.txn.Catalog, cls.Name)
	if err != nil {
		return false, err
	}
	if !allowed {
		return false, nil
	}
	props, types, err := decodeProps(e.txn.Catalog, cls.Name, edgeRec)
	if err != nil {
		return false, err
	}
	return edgeFilter.matches(props, types, edgeRec)
}

// vertexMatches applies vertexFilter to one candidate vertex record,
// honoring an empty ClassName as "any vertex class". A zero-value
// vertexFilter (no Cond, Predicate, or class restriction at all) matches
// everything, so callers that don't ask for a vertex filter pay no cost.
func (e *Engine) vertexMatches(vertexRec *storage.Record, vertexFilter GraphFilter) (bool, error) {
	if vertexFilter.isEmpty() {
		return true, nil
	}
	cls, err := e.txn.Catalog.GetClassByID(vertexRec.RID.ClassID)
	if err != nil {
		return false, err
	}
	if vertexFilter.ClassName != "" && vertexFilter.ClassName != cls.Name {
		return false, nil
	}
	allowed, err := vertexFilter.classAllowed(e.txn.Catalog, cls.Name)
	if err != nil {
		return false, err
	}
	if !allowed {
		return false, nil
	}
	props, types, err := decodeProps(e.txn.Catalog, cls.Name, vertexRec)
	if err != nil {
		return false, err
	}
	return vertexFilter.matches(props, types, vertexRec)
}

// Traverse performs a breadth-first walk from start along direction,
// returning every vertex discovered at a depth within [minDepth, maxDepth]
// (start itself counts as depth 0) whose incoming edge satisfies edgeFilter
// and whose own properties satisfy vertexFilter. A negative maxDepth means
// unbounded; minDepth > maxDepth yields an empty result. A vertex reachable
// along several walks keeps its smallest discovery depth.
//
// edgeFilter prunes the walk itself: an edge failing it is never followed.
// vertexFilter instead gates only which reached vertices are reported: the
// walk keeps expanding through a vertex that fails vertexFilter, so a vertex
// failing whereV can still sit on the path to one that passes it further
// out. Pass a zero-value GraphFilter to not filter vertices at all.
func (e *Engine) Traverse(start storage.RID, direction Direction, minDepth, maxDepth int, edgeFilter, vertexFilter GraphFilter) ([]Traversal, error) {
	return e.TraverseSources([]storage.RID{start}, direction, minDepth, maxDepth, edgeFilter, vertexFilter)
}

// TraverseSources is Traverse seeded from a union of source vertices, all at
// depth 0. Duplicate sources collapse to one.
func (e *Engine) TraverseSources(starts []storage.RID, direction Direction, minDepth, maxDepth int, edgeFilter, vertexFilter GraphFilter) ([]Traversal, error) {
	var out []Traversal
	visited := make(map[storage.RID]bool, len(starts))
	var queue []queueItem

	var sourceRecs []*storage.Record
	for _, start := range starts {
		rec, err := e.validateSource(start)
		if err != nil {
			return nil, err
		}
		if visited[start] {
			continue
		}
		visited[start] = true
		queue = append(queue, queueItem{vertex: start, depth: 0})
		sourceRecs = append(sourceRecs, rec)
	}
	if maxDepth >= 0 && minDepth > maxDepth {
		return nil, nil
	}

	if minDepth <= 0 {
		for _, rec := range sourceRecs {
			ok, err := e.vertexMatches(rec, vertexFilter)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, Traversal{Record: rec, Depth: 0})
			}
		}
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if maxDepth >= 0 && current.depth >= maxDepth {
			continue
		}

		edgeRIDs, err := e.neighborEdges(current.vertex, direction)
		if err != nil {
			return nil, err
		}
		for _, edgeRID := range edgeRIDs {
			edgeRec, err := e.txn.Records.Fetch(edgeRID)
			if err != nil {
				return nil, err
			}
			ok, err := e.edgeMatches(edgeRec, edgeFilter)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			next := otherEndpoint(edgeRec, current.vertex)
			if visited[next] {
				continue
			}
			visited[next] = true
			depth := current.depth + 1
			if depth >= minDepth {
				rec, err := e.txn.Records.Fetch(next)
				if err != nil {
					return nil, err
				}
				ok, err := e.vertexMatches(rec, vertexFilter)
				if err != nil {
					return nil, err
				}
				if ok {
					out = append(out, Traversal{Record: rec, Depth: depth})
				}
			}
			queue = append(queue, queueItem{vertex: next, depth: depth})
		}
	}
	return out, nil
}

// Path is one walk through the graph: alternating vertices and the edges
// connecting them, Edges[i] connecting Vertices[i] to Vertices[i+1].
type Path struct {
	Vertices []*storage.Record
	Edges    []*storage.Record
}

type pathQueueItem struct {
	vertex storage.RID
	path   Path
}

// ShortestPath runs BFS from src to dst along direction and returns the
// first (shortest, by hop count) path found whose edges all satisfy
// edgeFilter and whose intermediate and destination vertices all satisfy
// vertexFilter, or nil if no such path exists within maxDepth hops. A
// maxDepth of 0 or below means unbounded.
//
// Unlike Traverse, vertexFilter here gates path membership rather than just
// output: a path is only as good as every vertex on it, so a vertex that
// fails vertexFilter is a dead end — the search doesn't continue past it,
// since any path built that way couldn't satisfy "every vertex on the path
// matches" overall. src itself is never checked against vertexFilter; it is
// the caller's given starting point, not a discovered hop. Pass a
// zero-value GraphFilter to not filter vertices at all.
func (e *Engine) ShortestPath(src, dst storage.RID, direction Direction, maxDepth int, edgeFilter, vertexFilter GraphFilter) (*Path, error) {
	startRec, err := e.validateSource(src)
	if err != nil {
		return nil, err
	}
	if _, err := e.validateSource(dst); err != nil {
		return nil, err
	}
	if src == dst {
		return &Path{Vertices: []*storage.Record{startRec}}, nil
	}

	visited := map[storage.RID]bool{src: true}
	queue := []pathQueueItem{{vertex: src, path: Path{Vertices: []*storage.Record{startRec}}}}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if maxDepth > 0 && len(current.path.Edges) >= maxDepth {
			continue
		}

		edgeRIDs, err := e.neighborEdges(current.vertex, direction)
		if err != nil {
			return nil, err
		}
		for _, edgeRID := range edgeRIDs {
			edgeRec, err := e.txn.Records.Fetch(edgeRID)
			if err != nil {
				return nil, err
			}
			ok, err := e.edgeMatches(edgeRec, edgeFilter)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			next := otherEndpoint(edgeRec, current.vertex)
			if visited[next] {
				continue
			}

			nextRec, err := e.txn.Records.Fetch(next)
			if err != nil {
				return nil, err
			}
			vertexOK, err := e.vertexMatches(nextRec, vertexFilter)
			if err != nil {
				return nil, err
			}
			if !vertexOK {
				visited[next] = true
				continue
			}
			newPath := Path{
				Vertices: append(append([]*storage.Record{}, current.path.Vertices...), nextRec),
				Edges:    append(append([]*storage.Record{}, current.path.Edges...), edgeRec),
			}

			if next == dst {
				return &newPath, nil
			}

			visited[next] = true
			queue = append(queue, pathQueueItem{vertex: next, path: newPath})
		}
	}
	return nil, nil
}
