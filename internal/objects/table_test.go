package objects

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barryels/Spark/internal/ir"
)

func textAction(name string) ir.Object {
	return ir.Object{Kind: "text", Name: name, Attributes: map[string]string{"text": name}}
}

func TestTable_InsertAllocatesAboveReserved(t *testing.T) {
	tbl := New[ir.ActionID](ir.SpaceActions)

	id, err := tbl.Insert(textAction("hello"))
	require.NoError(t, err)
	assert.Equal(t, ir.ActionID(ir.ReservedIDs+1), id)

	id2, err := tbl.Insert(textAction("world"))
	require.NoError(t, err)
	assert.Equal(t, id+1, id2)
	assert.Equal(t, 2, tbl.Len())
}

func TestTable_GetReturnsCopy(t *testing.T) {
	tbl := New[ir.ActionID](ir.SpaceActions)
	id, err := tbl.Insert(textAction("hello"))
	require.NoError(t, err)

	obj, ok := tbl.Get(id)
	require.True(t, ok)
	obj.Attributes["text"] = "mutated"

	again, _ := tbl.Get(id)
	assert.Equal(t, "hello", again.Attributes["text"])
}

func TestTable_RemovedIDIsNeverReused(t *testing.T) {
	tbl := New[ir.TriggerID](ir.SpaceTriggers)
	first, err := tbl.Insert(ir.Object{Kind: "hotkey", Name: "cmd-F1"})
	require.NoError(t, err)

	assert.True(t, tbl.Remove(first))
	assert.False(t, tbl.Remove(first), "second remove is a no-op")
	_, ok := tbl.Get(first)
	assert.False(t, ok)

	second, err := tbl.Insert(ir.Object{Kind: "hotkey", Name: "cmd-F2"})
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Greater(t, second, first)
}

func TestTable_PutAdvancesAllocator(t *testing.T) {
	tbl := New[ir.ApplicationID](ir.SpaceApplications)
	require.NoError(t, tbl.Put(42, ir.Object{Kind: "application", Name: "Mail"}))
	require.NoError(t, tbl.Put(1000, ir.Object{Kind: "application", Name: "Safari"}))

	id, err := tbl.Insert(ir.Object{Kind: "application", Name: "Terminal"})
	require.NoError(t, err)
	assert.Equal(t, ir.ApplicationID(1001), id)
}

func TestTable_PutInReservedRangeKeepsAllocatorAboveReserved(t *testing.T) {
	tbl := New[ir.ApplicationID](ir.SpaceApplications)
	require.NoError(t, tbl.Put(1, ir.Object{Kind: "application", Name: "System"}))

	id, err := tbl.Insert(ir.Object{Kind: "application", Name: "Mail"})
	require.NoError(t, err)
	assert.Equal(t, ir.ApplicationID(ir.ReservedIDs+1), id)
}

func TestTable_PutErrors(t *testing.T) {
	tbl := New[ir.ActionID](ir.SpaceActions)
	require.NoError(t, tbl.Put(300, textAction("a")))

	err := tbl.Put(300, textAction("b"))
	assert.ErrorIs(t, err, ErrExists)

	err = tbl.Put(0, textAction("c"))
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestTable_Update(t *testing.T) {
	tbl := New[ir.ActionID](ir.SpaceActions)
	id, err := tbl.Insert(textAction("a"))
	require.NoError(t, err)

	require.NoError(t, tbl.Update(id, textAction("b")))
	obj, _ := tbl.Get(id)
	assert.Equal(t, "b", obj.Name)

	assert.ErrorIs(t, tbl.Update(id+100, textAction("c")), ErrNotFound)
}

func TestTable_AllOrderedByID(t *testing.T) {
	tbl := New[ir.ActionID](ir.SpaceActions)
	require.NoError(t, tbl.Put(900, textAction("late")))
	require.NoError(t, tbl.Put(300, textAction("early")))
	require.NoError(t, tbl.Put(500, textAction("middle")))

	all := tbl.All()
	require.Len(t, all, 3)
	assert.Equal(t, []ir.ActionID{300, 500, 900}, []ir.ActionID{all[0].ID, all[1].ID, all[2].ID})
	assert.Equal(t, "early", all[0].Object.Name)
	assert.Equal(t, []ir.ActionID{300, 500, 900}, tbl.IDs())
}

func TestTable_CloneIsIndependent(t *testing.T) {
	tbl := New[ir.ActionID](ir.SpaceActions)
	id, err := tbl.Insert(textAction("a"))
	require.NoError(t, err)

	c := tbl.Clone()
	c.Remove(id)
	assert.True(t, tbl.Contains(id))
	assert.False(t, c.Contains(id))
	assert.Equal(t, tbl.Next(), c.Next(), "clone keeps the allocator position")
}

func TestTable_RejectsInvalidUTF8(t *testing.T) {
	tbl := New[ir.ActionID](ir.SpaceActions)
	next := tbl.Next()

	_, err := tbl.Insert(ir.Object{Kind: "text", Name: "bad\xff"})
	assert.ErrorIs(t, err, ErrInvalidText)
	_, err = tbl.Insert(ir.Object{Kind: "te\xc3", Name: "ok"})
	assert.ErrorIs(t, err, ErrInvalidText)
	assert.Equal(t, next, tbl.Next(), "a refused insert allocates nothing")

	err = tbl.Put(300, ir.Object{Kind: "text", Attributes: map[string]string{"\xfe": "v"}})
	assert.ErrorIs(t, err, ErrInvalidText)
	assert.False(t, tbl.Contains(300))

	id, err := tbl.Insert(textAction("Grüße"))
	require.NoError(t, err)
	err = tbl.Update(id, ir.Object{Kind: "text", Attributes: map[string]string{"text": "\xff"}})
	assert.ErrorIs(t, err, ErrInvalidText)
	obj, _ := tbl.Get(id)
	assert.Equal(t, "Grüße", obj.Name)
}
