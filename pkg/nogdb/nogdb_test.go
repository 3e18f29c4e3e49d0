package nogdb

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nogdb/nogdb/pkg/codec"
	"github.com/nogdb/nogdb/pkg/errs"
	"github.com/nogdb/nogdb/pkg/query"
	"github.com/nogdb/nogdb/pkg/storage"
)

func openTestContext(t *testing.T) *Context {
	t.Helper()
	ctx, err := Open(Options{Path: t.TempDir(), InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctx.Close() })
	return ctx
}

func TestOpenBeginCommit(t *testing.T) {
	ctx := openTestContext(t)

	txn, err := ctx.BeginTxn(storage.ReadWrite)
	require.NoError(t, err)
	_, err = txn.Catalog.AddClass("widgets", storage.Vertex, "")
	require.NoError(t, err)
	require.NoError(t, txn.Commit())

	info, err := ctx.Info()
	require.NoError(t, err)
	require.Equal(t, 1, info.NumClasses)
	require.Equal(t, uint16(1), info.MaxClassID)
	require.NotEmpty(t, info.Path)
}

func TestAddIndexPopulatesExistingRecordsAndRejectsCollisions(t *testing.T) {
	ctx := openTestContext(t)

	txn, err := ctx.BeginTxn(storage.ReadWrite)
	require.NoError(t, err)

	_, err = txn.Catalog.AddClass("users", storage.Vertex, "")
	require.NoError(t, err)
	emailProp, err := txn.Catalog.AddProperty("users", "email", codec.Text)
	require.NoError(t, err)

	encode := func(s string) []byte {
		raw, err := codec.EncodeScalar(codec.Text, s)
		require.NoError(t, err)
		return raw
	}

	_, err = txn.Records.AddVertex("users", map[uint16][]byte{emailProp.ID: encode("a@example.com")})
	require.NoError(t, err)
	_, err = txn.Records.AddVertex("users", map[uint16][]byte{emailProp.ID: encode("a@example.com")})
	require.NoError(t, err)

	_, err = txn.AddIndex("users", "email", true)
	require.Error(t, err)
	code, ok := errs.CodeOf(err)
	require.True(t, ok)
	require.Equal(t, errs.InvalidIndexConstraint, code)

	txn.Rollback()
}

func TestSecondWriterFailsFast(t *testing.T) {
	ctx := openTestContext(t)

	w1, err := ctx.BeginTxn(storage.ReadWrite)
	require.NoError(t, err)

	_, err = ctx.BeginTxn(storage.ReadWrite)
	require.Error(t, err)
	code, ok := errs.CodeOf(err)
	require.True(t, ok)
	require.Equal(t, errs.WriterActive, code)

	require.NoError(t, w1.Commit())
}

func TestClosedContextReportsError(t *testing.T) {
	ctx := openTestContext(t)
	require.NoError(t, ctx.Close())

	_, err := ctx.BeginTxn(storage.ReadOnly)
	require.Error(t, err)
	code, ok := errs.CodeOf(err)
	require.True(t, ok)
	require.Equal(t, errs.ClosedContext, code)
}

// The full reopen scenario: schema, vertices, and an edge committed through
// one Context survive a close and reopen on disk, and remain reachable
// through find, findInEdge, and the edge's endpoint fetches.
func TestReopenWithSchemaRecordsAndEdges(t *testing.T) {
	dir := t.TempDir()

	ctx, err := Open(Options{Path: dir})
	require.NoError(t, err)

	txn, err := ctx.BeginTxn(storage.ReadWrite)
	require.NoError(t, err)

	_, err = txn.Catalog.AddClass("v1", storage.Vertex, "")
	require.NoError(t, err)
	v1Name, err := txn.Catalog.AddProperty("v1", "name", codec.Text)
	require.NoError(t, err)
	_, err = txn.Catalog.AddClass("v2", storage.Vertex, "")
	require.NoError(t, err)
	v2Name, err := txn.Catalog.AddProperty("v2", "name", codec.Text)
	require.NoError(t, err)
	_, err = txn.Catalog.AddClass("e", storage.Edge, "")
	require.NoError(t, err)
	eName, err := txn.Catalog.AddProperty("e", "name", codec.Text)
	require.NoError(t, err)

	enc := func(s string) []byte {
		raw, err := codec.EncodeScalar(codec.Text, s)
		require.NoError(t, err)
		return raw
	}

	a, err := txn.Records.AddVertex("v1", map[uint16][]byte{v1Name.ID: enc("a")})
	require.NoError(t, err)
	b, err := txn.Records.AddVertex("v2", map[uint16][]byte{v2Name.ID: enc("b")})
	require.NoError(t, err)
	edge, err := txn.Records.AddEdge("e", a, b, map[uint16][]byte{eName.ID: enc("ab")})
	require.NoError(t, err)
	require.NoError(t, txn.Commit())
	require.NoError(t, ctx.Close())

	reopened, err := Open(Options{Path: dir})
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	reader, err := reopened.BeginTxn(storage.ReadOnly)
	require.NoError(t, err)
	defer reader.Rollback()

	found, err := reader.Find(query.GraphFilter{
		ClassName: "v1",
		Cond:      query.PropCondition{Name: "name", Op: query.Eq, Value: "a"},
	})
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, a, found[0].RID)

	inEdges, err := reader.FindInEdge(b, query.GraphFilter{
		Cond: query.PropCondition{Name: "name", Op: query.Eq, Value: "ab"},
	})
	require.NoError(t, err)
	require.Len(t, inEdges, 1)
	require.Equal(t, edge, inEdges[0].RID)

	src, err := reader.Records.FetchSrc(edge)
	require.NoError(t, err)
	require.Equal(t, a, src.RID)
	dst, err := reader.Records.FetchDst(edge)
	require.NoError(t, err)
	require.Equal(t, b, dst.RID)
}

func TestDecodeRecordSynthesizesReservedFields(t *testing.T) {
	ctx := openTestContext(t)

	txn, err := ctx.BeginTxn(storage.ReadWrite)
	require.NoError(t, err)

	_, err = txn.Catalog.AddClass("persons", storage.Vertex, "")
	require.NoError(t, err)
	nameProp, err := txn.Catalog.AddProperty("persons", "name", codec.Text)
	require.NoError(t, err)

	raw, err := codec.EncodeScalar(codec.Text, "alice")
	require.NoError(t, err)
	rid, err := txn.Records.AddVertex("persons", map[uint16][]byte{nameProp.ID: raw})
	require.NoError(t, err)

	rec, err := txn.Records.Fetch(rid)
	require.NoError(t, err)
	decoded, err := txn.DecodeRecord(rec)
	require.NoError(t, err)
	require.Equal(t, "alice", decoded["name"])
	require.Equal(t, "persons", decoded["@className"])
	require.Equal(t, uint64(1), decoded["@version"])
	require.NotEmpty(t, decoded["@recordId"])

	require.NoError(t, txn.Commit())
}

func TestReservedPropertyNameRejected(t *testing.T) {
	ctx := openTestContext(t)

	txn, err := ctx.BeginTxn(storage.ReadWrite)
	require.NoError(t, err)
	defer txn.Rollback()

	_, err = txn.Catalog.AddClass("persons", storage.Vertex, "")
	require.NoError(t, err)
	_, err = txn.Catalog.AddProperty("persons", "@version", codec.Text)
	require.Error(t, err)
	code, ok := errs.CodeOf(err)
	require.True(t, ok)
	require.Equal(t, errs.InvalidPropertyName, code)
}

func TestNameKeyedRecordOps(t *testing.T) {
	ctx := openTestContext(t)

	txn, err := ctx.BeginTxn(storage.ReadWrite)
	require.NoError(t, err)

	_, err = txn.Catalog.AddClass("persons", storage.Vertex, "")
	require.NoError(t, err)
	_, err = txn.Catalog.AddProperty("persons", "name", codec.Text)
	require.NoError(t, err)
	_, err = txn.Catalog.AddProperty("persons", "age", codec.Integer)
	require.NoError(t, err)
	_, err = txn.Catalog.AddClass("knows", storage.Edge, "")
	require.NoError(t, err)

	alice, err := txn.AddVertex("persons", map[string]any{"name": "alice", "age": int32(30)})
	require.NoError(t, err)
	bob, err := txn.AddVertex("persons", map[string]any{"name": "bob"})
	require.NoError(t, err)
	_, err = txn.AddEdge("knows", alice, bob, nil)
	require.NoError(t, err)

	rec, err := txn.Records.Fetch(alice)
	require.NoError(t, err)
	decoded, err := txn.DecodeRecord(rec)
	require.NoError(t, err)
	require.Equal(t, "alice", decoded["name"])
	require.Equal(t, int32(30), decoded["age"])

	// Updating merges; a nil value clears.
	require.NoError(t, txn.Update(alice, map[string]any{"age": nil, "name": "alicia"}))
	rec, err = txn.Records.Fetch(alice)
	require.NoError(t, err)
	decoded, err = txn.DecodeRecord(rec)
	require.NoError(t, err)
	require.Equal(t, "alicia", decoded["name"])
	_, hasAge := decoded["age"]
	require.False(t, hasAge)

	// An unknown property name is rejected, not silently dropped.
	_, err = txn.AddVertex("persons", map[string]any{"nickname": "al"})
	require.Error(t, err)
	code, ok := errs.CodeOf(err)
	require.True(t, ok)
	require.Equal(t, errs.NoExistProperty, code)

	require.NoError(t, txn.Commit())
}

// Writes that name @className/@recordId/@version are silently dropped: the
// record stores nothing for them and reads keep synthesizing the real values.
func TestReservedNamesIgnoredOnWrite(t *testing.T) {
	ctx := openTestContext(t)

	txn, err := ctx.BeginTxn(storage.ReadWrite)
	require.NoError(t, err)

	_, err = txn.Catalog.AddClass("persons", storage.Vertex, "")
	require.NoError(t, err)
	_, err = txn.Catalog.AddProperty("persons", "name", codec.Text)
	require.NoError(t, err)

	rid, err := txn.AddVertex("persons", map[string]any{
		"name":       "alice",
		"@className": "impostors",
		"@version":   uint64(999),
	})
	require.NoError(t, err)

	rec, err := txn.Records.Fetch(rid)
	require.NoError(t, err)
	decoded, err := txn.DecodeRecord(rec)
	require.NoError(t, err)
	require.Equal(t, "persons", decoded["@className"])
	require.Equal(t, uint64(1), decoded["@version"])

	require.NoError(t, txn.Commit())
}

func TestTransactionFindEndToEnd(t *testing.T) {
	ctx := openTestContext(t)

	txn, err := ctx.BeginTxn(storage.ReadWrite)
	require.NoError(t, err)

	_, err = txn.Catalog.AddClass("persons", storage.Vertex, "")
	require.NoError(t, err)
	nameProp, err := txn.Catalog.AddProperty("persons", "name", codec.Text)
	require.NoError(t, err)

	raw, err := codec.EncodeScalar(codec.Text, "alice")
	require.NoError(t, err)
	_, err = txn.Records.AddVertex("persons", map[uint16][]byte{nameProp.ID: raw})
	require.NoError(t, err)

	results, err := txn.Find(query.GraphFilter{
		ClassName: "persons",
		Cond:      query.PropCondition{Name: "name", Op: query.Eq, Value: "alice"},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)

	require.NoError(t, txn.Commit())
}
