package query

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nogdb/nogdb/pkg/codec"
	"github.com/nogdb/nogdb/pkg/errs"
	"github.com/nogdb/nogdb/pkg/kv"
	"github.com/nogdb/nogdb/pkg/storage"
)

func openTestTxn(t *testing.T) *storage.Txn {
	t.Helper()
	store, err := kv.Open(kv.Options{Path: t.TempDir(), InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	mgr := storage.NewManager(store)
	txn, err := mgr.Begin(storage.ReadWrite)
	require.NoError(t, err)
	return txn
}

func encText(t *testing.T, s string) []byte {
	b, err := codec.EncodeScalar(codec.Text, s)
	require.NoError(t, err)
	return b
}

func encInt(t *testing.T, n int32) []byte {
	b, err := codec.EncodeScalar(codec.Integer, n)
	require.NoError(t, err)
	return b
}

func TestFindByScan(t *testing.T) {
	txn := openTestTxn(t)
	_, err := txn.Catalog.AddClass("persons", storage.Vertex, "")
	require.NoError(t, err)
	nameProp, err := txn.Catalog.AddProperty("persons", "name", codec.Text)
	require.NoError(t, err)
	ageProp, err := txn.Catalog.AddProperty("persons", "age", codec.Integer)
	require.NoError(t, err)

	_, err = txn.Records.AddVertex("persons", map[uint16][]byte{
		nameProp.ID: encText(t, "alice"), ageProp.ID: encInt(t, 30),
	})
	require.NoError(t, err)
	_, err = txn.Records.AddVertex("persons", map[uint16][]byte{
		nameProp.ID: encText(t, "bob"), ageProp.ID: encInt(t, 25),
	})
	require.NoError(t, err)

	e := New(txn)
	results, err := e.Find(GraphFilter{
		ClassName: "persons",
		Cond:      PropCondition{Name: "age", Op: Ge, Value: int32(28)},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestFindUsesIndexForEquality(t *testing.T) {
	txn := openTestTxn(t)
	_, err := txn.Catalog.AddClass("users", storage.Vertex, "")
	require.NoError(t, err)
	emailProp, err := txn.Catalog.AddProperty("users", "email", codec.Text)
	require.NoError(t, err)
	_, err = txn.Catalog.AddIndex("users", "email", true)
	require.NoError(t, err)

	_, err = txn.Records.AddVertex("users", map[uint16][]byte{emailProp.ID: encText(t, "a@x.com")})
	require.NoError(t, err)
	_, err = txn.Records.AddVertex("users", map[uint16][]byte{emailProp.ID: encText(t, "b@x.com")})
	require.NoError(t, err)

	e := New(txn)
	results, err := e.Find(GraphFilter{
		ClassName: "users",
		Cond:      PropCondition{Name: "email", Op: Eq, Value: "b@x.com"},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestFindSubClassOf(t *testing.T) {
	txn := openTestTxn(t)
	_, err := txn.Catalog.AddClass("employees", storage.Vertex, "")
	require.NoError(t, err)
	_, err = txn.Catalog.AddClass("backends", storage.Vertex, "employees")
	require.NoError(t, err)

	_, err = txn.Records.AddVertex("employees", nil)
	require.NoError(t, err)
	_, err = txn.Records.AddVertex("backends", nil)
	require.NoError(t, err)

	e := New(txn)
	results, err := e.FindSubClassOf(GraphFilter{ClassName: "employees"})
	require.NoError(t, err)
	require.Len(t, results, 2)

	direct, err := e.Find(GraphFilter{ClassName: "employees"})
	require.NoError(t, err)
	require.Len(t, direct, 1)
}

// Records live only in the deepest class of a three-level hierarchy: a plain
// find on the base sees nothing, a subtree find resolves them.
func TestFindSubClassOfThreeLevels(t *testing.T) {
	txn := openTestTxn(t)
	_, err := txn.Catalog.AddClass("employees", storage.Vertex, "")
	require.NoError(t, err)
	_, err = txn.Catalog.AddClass("backends", storage.Vertex, "employees")
	require.NoError(t, err)
	_, err = txn.Catalog.AddClass("systems", storage.Vertex, "backends")
	require.NoError(t, err)

	_, err = txn.Records.AddVertex("systems", nil)
	require.NoError(t, err)

	e := New(txn)
	direct, err := e.Find(GraphFilter{ClassName: "employees"})
	require.NoError(t, err)
	require.Empty(t, direct)

	subtree, err := e.FindSubClassOf(GraphFilter{ClassName: "employees"})
	require.NoError(t, err)
	require.Len(t, subtree, 1)
}

func TestFindUsesIndexForInSet(t *testing.T) {
	txn := openTestTxn(t)
	_, err := txn.Catalog.AddClass("items", storage.Vertex, "")
	require.NoError(t, err)
	priceProp, err := txn.Catalog.AddProperty("items", "price", codec.Integer)
	require.NoError(t, err)
	_, err = txn.Catalog.AddIndex("items", "price", false)
	require.NoError(t, err)

	for _, p := range []int32{5, 10, 15, 20} {
		_, err := txn.Records.AddVertex("items", map[uint16][]byte{priceProp.ID: encInt(t, p)})
		require.NoError(t, err)
	}

	e := New(txn)
	results, err := e.Find(GraphFilter{
		ClassName: "items",
		Cond:      PropCondition{Name: "price", Op: In, Value: []any{int32(10), int32(20), int32(99)}},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
}

// A case-insensitive equality must not consult the (case-sensitive) index:
// the lookup would miss entries differing only in case.
func TestIgnoreCaseEqualityFallsBackToScan(t *testing.T) {
	txn := openTestTxn(t)
	_, err := txn.Catalog.AddClass("users", storage.Vertex, "")
	require.NoError(t, err)
	nameProp, err := txn.Catalog.AddProperty("users", "name", codec.Text)
	require.NoError(t, err)
	_, err = txn.Catalog.AddIndex("users", "name", false)
	require.NoError(t, err)

	_, err = txn.Records.AddVertex("users", map[uint16][]byte{nameProp.ID: encText(t, "Alice")})
	require.NoError(t, err)

	e := New(txn)
	results, err := e.Find(GraphFilter{
		ClassName: "users",
		Cond:      PropCondition{Name: "name", Op: Eq, Value: "alice", IgnoreCase: true},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func buildLineGraph(t *testing.T, n int) (*storage.Txn, []storage.RID) {
	txn := openTestTxn(t)
	_, err := txn.Catalog.AddClass("nodes", storage.Vertex, "")
	require.NoError(t, err)
	_, err = txn.Catalog.AddClass("links", storage.Edge, "")
	require.NoError(t, err)

	vertices := make([]storage.RID, n)
	for i := 0; i < n; i++ {
		rid, err := txn.Records.AddVertex("nodes", nil)
		require.NoError(t, err)
		vertices[i] = rid
	}
	for i := 0; i < n-1; i++ {
		_, err := txn.Records.AddEdge("links", vertices[i], vertices[i+1], nil)
		require.NoError(t, err)
	}
	return txn, vertices
}

func TestTraverseOutRespectsDepthBounds(t *testing.T) {
	txn, vertices := buildLineGraph(t, 5) // 0-1-2-3-4
	e := New(txn)

	reached, err := e.Traverse(vertices[0], Out, 0, 2, GraphFilter{}, GraphFilter{})
	require.NoError(t, err)
	require.Len(t, reached, 3) // depth 0,1,2 -> vertices 0,1,2
	for i, tr := range reached {
		require.Equal(t, i, tr.Depth)
		require.Equal(t, vertices[i], tr.Record.RID)
	}

	reached, err = e.Traverse(vertices[0], Out, 2, 2, GraphFilter{}, GraphFilter{})
	require.NoError(t, err)
	require.Len(t, reached, 1)
	require.Equal(t, vertices[2], reached[0].Record.RID)
	require.Equal(t, 2, reached[0].Depth)

	// min > max is an empty result, not an error.
	reached, err = e.Traverse(vertices[0], Out, 2, 1, GraphFilter{}, GraphFilter{})
	require.NoError(t, err)
	require.Empty(t, reached)
}

func TestTraverseVertexFilterGatesOutputOnly(t *testing.T) {
	txn, vertices := buildLineGraph(t, 5) // 0-1-2-3-4
	e := New(txn)

	reached, err := e.Traverse(vertices[0], Out, 0, 4, GraphFilter{},
		GraphFilter{Predicate: func(rec *storage.Record) bool { return rec.RID == vertices[4] }})
	require.NoError(t, err)
	// the walk still passes through 1,2,3 to reach 4; they're just not reported.
	require.Len(t, reached, 1)
	require.Equal(t, vertices[4], reached[0].Record.RID)
	require.Equal(t, 4, reached[0].Depth)
}

func TestShortestPathFindsMinimalHopCount(t *testing.T) {
	txn, vertices := buildLineGraph(t, 6)
	e := New(txn)

	path, err := e.ShortestPath(vertices[0], vertices[5], Out, 0, GraphFilter{}, GraphFilter{})
	require.NoError(t, err)
	require.NotNil(t, path)
	require.Len(t, path.Edges, 5)
	require.Equal(t, vertices[0], path.Vertices[0].RID)
	require.Equal(t, vertices[5], path.Vertices[len(path.Vertices)-1].RID)
}

func TestShortestPathRespectsMaxDepth(t *testing.T) {
	txn, vertices := buildLineGraph(t, 6)
	e := New(txn)

	path, err := e.ShortestPath(vertices[0], vertices[5], Out, 3, GraphFilter{}, GraphFilter{})
	require.NoError(t, err)
	require.Nil(t, path)
}

func TestShortestPathSameVertex(t *testing.T) {
	txn, vertices := buildLineGraph(t, 2)
	e := New(txn)

	path, err := e.ShortestPath(vertices[0], vertices[0], Out, 0, GraphFilter{}, GraphFilter{})
	require.NoError(t, err)
	require.NotNil(t, path)
	require.Empty(t, path.Edges)
}

func TestShortestPathVertexFilterGatesPathMembership(t *testing.T) {
	// Diamond: 0->1->3 and 0->2->3, both two hops. Excluding vertex 1
	// forces the search onto the 0->2->3 leg even though both legs tie on
	// hop count.
	txn := openTestTxn(t)
	_, err := txn.Catalog.AddClass("nodes", storage.Vertex, "")
	require.NoError(t, err)
	_, err = txn.Catalog.AddClass("links", storage.Edge, "")
	require.NoError(t, err)

	v0, err := txn.Records.AddVertex("nodes", nil)
	require.NoError(t, err)
	v1, err := txn.Records.AddVertex("nodes", nil)
	require.NoError(t, err)
	v2, err := txn.Records.AddVertex("nodes", nil)
	require.NoError(t, err)
	v3, err := txn.Records.AddVertex("nodes", nil)
	require.NoError(t, err)
	_, err = txn.Records.AddEdge("links", v0, v1, nil)
	require.NoError(t, err)
	_, err = txn.Records.AddEdge("links", v1, v3, nil)
	require.NoError(t, err)
	_, err = txn.Records.AddEdge("links", v0, v2, nil)
	require.NoError(t, err)
	_, err = txn.Records.AddEdge("links", v2, v3, nil)
	require.NoError(t, err)

	e := New(txn)
	exclude1 := GraphFilter{Predicate: func(rec *storage.Record) bool { return rec.RID != v1 }}

	path, err := e.ShortestPath(v0, v3, Out, 0, GraphFilter{}, exclude1)
	require.NoError(t, err)
	require.NotNil(t, path)
	for _, v := range path.Vertices {
		require.NotEqual(t, v1, v.RID)
	}
	require.Equal(t, v2, path.Vertices[1].RID)
}

// A→B→D plus D→f, edges of class "link": the depth-bound scenario for
// traverseIn, walked against incoming edges from D.
func TestTraverseInDepthBounds(t *testing.T) {
	txn := openTestTxn(t)
	_, err := txn.Catalog.AddClass("nodes", storage.Vertex, "")
	require.NoError(t, err)
	_, err = txn.Catalog.AddClass("link", storage.Edge, "")
	require.NoError(t, err)

	add := func() storage.RID {
		rid, err := txn.Records.AddVertex("nodes", nil)
		require.NoError(t, err)
		return rid
	}
	a, b, d, f := add(), add(), add(), add()
	for _, pair := range [][2]storage.RID{{a, b}, {b, d}, {d, f}} {
		_, err := txn.Records.AddEdge("link", pair[0], pair[1], nil)
		require.NoError(t, err)
	}

	e := New(txn)

	reached, err := e.Traverse(d, InDir, 1, 1, GraphFilter{Only: []string{"link"}}, GraphFilter{})
	require.NoError(t, err)
	require.Len(t, reached, 1)
	require.Equal(t, b, reached[0].Record.RID)
	require.Equal(t, 1, reached[0].Depth)

	reached, err = e.Traverse(d, InDir, 0, 2, GraphFilter{}, GraphFilter{})
	require.NoError(t, err)
	require.Len(t, reached, 3)
	depths := map[storage.RID]int{}
	for _, tr := range reached {
		depths[tr.Record.RID] = tr.Depth
	}
	require.Equal(t, map[storage.RID]int{d: 0, b: 1, a: 2}, depths)

	reached, err = e.Traverse(d, InDir, 2, 1, GraphFilter{}, GraphFilter{})
	require.NoError(t, err)
	require.Empty(t, reached)
}

// Shortest path across a weighted-ish graph where an edge condition
// (distance <= 120) prunes the tempting one-hop road and a vertex condition
// (population >= 1000) prunes the two-hop shortcut through the hamlet,
// forcing the five-vertex route.
func TestShortestPathWithEdgeAndVertexConditions(t *testing.T) {
	txn := openTestTxn(t)
	_, err := txn.Catalog.AddClass("cities", storage.Vertex, "")
	require.NoError(t, err)
	_, err = txn.Catalog.AddClass("roads", storage.Edge, "")
	require.NoError(t, err)
	popProp, err := txn.Catalog.AddProperty("cities", "population", codec.BigIntU)
	require.NoError(t, err)
	distProp, err := txn.Catalog.AddProperty("roads", "distance", codec.IntegerU)
	require.NoError(t, err)

	city := func(pop uint64) storage.RID {
		raw, err := codec.EncodeScalar(codec.BigIntU, pop)
		require.NoError(t, err)
		rid, err := txn.Records.AddVertex("cities", map[uint16][]byte{popProp.ID: raw})
		require.NoError(t, err)
		return rid
	}
	road := func(src, dst storage.RID, dist uint32) {
		raw, err := codec.EncodeScalar(codec.IntegerU, dist)
		require.NoError(t, err)
		_, err = txn.Records.AddEdge("roads", src, dst, map[uint16][]byte{distProp.ID: raw})
		require.NoError(t, err)
	}

	a := city(5000)
	b := city(2000)
	c := city(3000)
	d := city(1500)
	f := city(8000)
	hamlet := city(200) // fails population >= 1000

	// The qualifying chain.
	road(a, b, 100)
	road(b, c, 110)
	road(c, d, 90)
	road(d, f, 120)
	// Two-hop shortcut through the hamlet: pruned by the vertex filter.
	road(a, hamlet, 50)
	road(hamlet, f, 60)
	// One-hop shortcut: pruned by the edge filter.
	road(a, f, 500)

	e := New(txn)
	path, err := e.ShortestPath(a, f, Out, 0,
		GraphFilter{Cond: PropCondition{Name: "distance", Op: Le, Value: uint32(120)}},
		GraphFilter{Cond: PropCondition{Name: "population", Op: Ge, Value: uint64(1000)}})
	require.NoError(t, err)
	require.NotNil(t, path)
	require.Len(t, path.Vertices, 5)
	require.Len(t, path.Edges, 4)
	require.Equal(t, []storage.RID{a, b, c, d, f}, []storage.RID{
		path.Vertices[0].RID, path.Vertices[1].RID, path.Vertices[2].RID,
		path.Vertices[3].RID, path.Vertices[4].RID,
	})
}

func TestTraverseSourceErrors(t *testing.T) {
	txn := openTestTxn(t)
	_, err := txn.Catalog.AddClass("nodes", storage.Vertex, "")
	require.NoError(t, err)
	_, err = txn.Catalog.AddClass("links", storage.Edge, "")
	require.NoError(t, err)

	a, err := txn.Records.AddVertex("nodes", nil)
	require.NoError(t, err)
	b, err := txn.Records.AddVertex("nodes", nil)
	require.NoError(t, err)
	edge, err := txn.Records.AddEdge("links", a, b, nil)
	require.NoError(t, err)

	e := New(txn)

	_, err = e.Traverse(storage.RID{ClassID: 9999, PositionID: 0}, Out, 0, -1, GraphFilter{}, GraphFilter{})
	require.Error(t, err)
	code, _ := errs.CodeOf(err)
	require.Equal(t, errs.NoExistClass, code)

	_, err = e.Traverse(storage.RID{ClassID: a.ClassID, PositionID: 42}, Out, 0, -1, GraphFilter{}, GraphFilter{})
	require.Error(t, err)
	code, _ = errs.CodeOf(err)
	require.Equal(t, errs.GraphNoExistVertex, code)

	_, err = e.Traverse(edge, Out, 0, -1, GraphFilter{}, GraphFilter{})
	require.Error(t, err)
	code, _ = errs.CodeOf(err)
	require.Equal(t, errs.MismatchClassType, code)
}

func TestTraverseMultipleSources(t *testing.T) {
	txn, vertices := buildLineGraph(t, 5) // 0-1-2-3-4
	e := New(txn)

	reached, err := e.TraverseSources([]storage.RID{vertices[0], vertices[3]}, Out, 0, 1, GraphFilter{}, GraphFilter{})
	require.NoError(t, err)

	depths := map[storage.RID]int{}
	for _, tr := range reached {
		depths[tr.Record.RID] = tr.Depth
	}
	require.Equal(t, map[storage.RID]int{
		vertices[0]: 0, vertices[3]: 0,
		vertices[1]: 1, vertices[4]: 1,
	}, depths)
}

func TestFindCursorStreamsAndCounts(t *testing.T) {
	txn := openTestTxn(t)
	_, err := txn.Catalog.AddClass("persons", storage.Vertex, "")
	require.NoError(t, err)
	ageProp, err := txn.Catalog.AddProperty("persons", "age", codec.Integer)
	require.NoError(t, err)

	for _, age := range []int32{20, 30, 40} {
		_, err := txn.Records.AddVertex("persons", map[uint16][]byte{ageProp.ID: encInt(t, age)})
		require.NoError(t, err)
	}

	e := New(txn)
	cur := e.FindCursor(GraphFilter{
		ClassName: "persons",
		Cond:      PropCondition{Name: "age", Op: Ge, Value: int32(30)},
	})

	n, err := cur.Size()
	require.NoError(t, err)
	require.Equal(t, 2, n)
	empty, err := cur.Empty()
	require.NoError(t, err)
	require.False(t, empty)

	var seen int
	for cur.Next() {
		require.NotNil(t, cur.Record())
		seen++
	}
	require.NoError(t, cur.Err())
	require.Equal(t, 2, seen)

	// Exhausted cursors stay exhausted.
	require.False(t, cur.Next())
	require.Nil(t, cur.Record())
}

func TestFindCursorSurfacesUnknownClass(t *testing.T) {
	txn := openTestTxn(t)
	e := New(txn)

	cur := e.FindCursor(GraphFilter{ClassName: "missing"})
	require.False(t, cur.Next())
	require.Error(t, cur.Err())
	code, _ := errs.CodeOf(cur.Err())
	require.Equal(t, errs.NoExistClass, code)
}

func TestBetweenBoundsInclusivity(t *testing.T) {
	types := map[string]codec.PropertyType{"age": codec.Integer}
	props := map[string]any{"age": int32(10)}

	require.True(t, mustEval(t, PropCondition{Name: "age", Op: Between, Value: int32(10), Hi: int32(20)}, props, types))
	require.False(t, mustEval(t, PropCondition{Name: "age", Op: Between, Value: int32(10), Hi: int32(20), ExclusiveLo: true}, props, types))

	props["age"] = int32(20)
	require.True(t, mustEval(t, PropCondition{Name: "age", Op: Between, Value: int32(10), Hi: int32(20)}, props, types))
	require.False(t, mustEval(t, PropCondition{Name: "age", Op: Between, Value: int32(10), Hi: int32(20), ExclusiveHi: true}, props, types))
}

func mustEval(t *testing.T, c Condition, props map[string]any, types map[string]codec.PropertyType) bool {
	t.Helper()
	ok, err := c.eval(props, types)
	require.NoError(t, err)
	return ok
}

func TestConditionInSet(t *testing.T) {
	types := map[string]codec.PropertyType{"age": codec.Integer}
	props := map[string]any{"age": int32(10)}

	require.True(t, mustEval(t, PropCondition{Name: "age", Op: In, Value: []any{int32(5), int32(10)}}, props, types))
	require.False(t, mustEval(t, PropCondition{Name: "age", Op: In, Value: []any{int32(5), int32(15)}}, props, types))
}

func TestConditionAndOrNot(t *testing.T) {
	props := map[string]any{"age": int32(30), "name": "alice"}
	types := map[string]codec.PropertyType{"age": codec.Integer, "name": codec.Text}

	require.True(t, mustEval(t, And{
		PropCondition{Name: "age", Op: Ge, Value: int32(18)},
		PropCondition{Name: "name", Op: Eq, Value: "alice"},
	}, props, types))

	require.False(t, mustEval(t, And{
		PropCondition{Name: "age", Op: Ge, Value: int32(18)},
		PropCondition{Name: "name", Op: Eq, Value: "bob"},
	}, props, types))

	require.True(t, mustEval(t, Or{
		PropCondition{Name: "name", Op: Eq, Value: "bob"},
		PropCondition{Name: "name", Op: Eq, Value: "alice"},
	}, props, types))

	require.True(t, mustEval(t, Not{PropCondition{Name: "name", Op: Eq, Value: "bob"}}, props, types))
}

func TestConditionStringOps(t *testing.T) {
	props := map[string]any{"name": "Alice Smith"}
	types := map[string]codec.PropertyType{"name": codec.Text}

	require.True(t, mustEval(t, PropCondition{Name: "name", Op: BeginWith, Value: "Alice"}, props, types))
	require.True(t, mustEval(t, PropCondition{Name: "name", Op: EndWith, Value: "Smith"}, props, types))
	require.True(t, mustEval(t, PropCondition{Name: "name", Op: Contain, Value: "ice Sm"}, props, types))
	require.True(t, mustEval(t, PropCondition{Name: "name", Op: Like, Value: "Alice%"}, props, types))
	require.True(t, mustEval(t, PropCondition{Name: "name", Op: Eq, Value: "alice smith", IgnoreCase: true}, props, types))
}

func TestPredicateLeafComposes(t *testing.T) {
	props := map[string]any{"age": int32(30), "name": "alice"}
	types := map[string]codec.PropertyType{"age": codec.Integer, "name": codec.Text}

	adult := Predicate{Fn: func(p map[string]any) bool {
		age, ok := p["age"].(int32)
		return ok && age >= 18
	}}

	require.True(t, mustEval(t, And{
		adult,
		PropCondition{Name: "name", Op: Eq, Value: "alice"},
	}, props, types))
	require.False(t, mustEval(t, Not{adult}, props, types))
	require.True(t, mustEval(t, Or{
		PropCondition{Name: "name", Op: Eq, Value: "bob"},
		adult,
	}, props, types))
}

func TestConditionNullLeaf(t *testing.T) {
	props := map[string]any{"name": "alice"}
	types := map[string]codec.PropertyType{"name": codec.Text, "nickname": codec.Text}

	require.True(t, mustEval(t, Null{Name: "nickname"}, props, types))
	require.False(t, mustEval(t, Null{Name: "name"}, props, types))
	require.True(t, mustEval(t, Not{Null{Name: "name"}}, props, types))
}

func TestConditionInvalidComparatorOnNonText(t *testing.T) {
	props := map[string]any{"age": int32(30)}
	types := map[string]codec.PropertyType{"age": codec.Integer}

	_, err := PropCondition{Name: "age", Op: BeginWith, Value: "3"}.eval(props, types)
	require.Error(t, err)
	code, ok := errs.CodeOf(err)
	require.True(t, ok)
	require.Equal(t, errs.InvalidComparator, code)
}
