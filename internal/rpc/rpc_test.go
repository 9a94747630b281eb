package rpc

import (
	"errors"
	"fmt"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barryels/Spark/internal/entryset"
	"github.com/barryels/Spark/internal/ir"
	"github.com/barryels/Spark/internal/library"
	"github.com/barryels/Spark/internal/objects"
)

func TestRequest_ParamsRoundTrip(t *testing.T) {
	e := ir.NewEntry(5, 1, 42).WithOverwrite(true)
	req, err := NewRequest("req-1", MethodAddEntry, EntryParams{Entry: e})
	require.NoError(t, err)

	data, err := Marshal(req)
	require.NoError(t, err)

	var got Request
	require.NoError(t, Unmarshal(data, &got))
	assert.Equal(t, "req-1", got.ID)
	assert.Equal(t, MethodAddEntry, got.Method)

	var params EntryParams
	require.NoError(t, got.DecodeParams(&params))
	assert.Equal(t, e, params.Entry)
}

func TestRequest_MissingParams(t *testing.T) {
	req, err := NewRequest("", MethodAddEntry, nil)
	require.NoError(t, err)
	assert.Empty(t, req.Params)

	var params EntryParams
	err = req.DecodeParams(&params)
	var re *Error
	require.ErrorAs(t, err, &re)
	assert.Equal(t, CodeBadRequest, re.Code)
}

func TestResponse_ResultDecodesAsRaw(t *testing.T) {
	result := any(BindingsResult{Bindings: map[ir.TriggerID]ir.ActionID{1: 5, 2: 9}})
	data, err := Marshal(Response[any]{ID: "r", Result: &result})
	require.NoError(t, err)

	var res Response[cbor.RawMessage]
	require.NoError(t, Unmarshal(data, &res))
	require.NotNil(t, res.Result)
	assert.Nil(t, res.Error)

	var bindings BindingsResult
	require.NoError(t, Unmarshal(*res.Result, &bindings))
	assert.Equal(t, map[ir.TriggerID]ir.ActionID{1: 5, 2: 9}, bindings.Bindings)
}

func TestFromError_Codes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code Code
	}{
		{"conflict", &entryset.ConflictError{Existing: ir.NewEntry(1, 1, 0), Incoming: ir.NewEntry(2, 1, 0)}, CodeConflict},
		{"entry not found", fmt.Errorf("remove: %w", entryset.ErrNotFound), CodeNotFound},
		{"object not found", fmt.Errorf("actions 9: %w", objects.ErrNotFound), CodeNotFound},
		{"dangling reference", &library.ReferenceError{Space: ir.SpaceActions, ID: 9}, CodeNotFound},
		{"load", &library.LoadError{Path: "p", Reason: library.ReasonChecksum, Err: errors.New("checksum mismatch")}, CodeLoadError},
		{"save", &library.SaveError{Path: "p", Err: errors.New("disk full")}, CodeSaveError},
		{"unknown space", library.ErrUnknownSpace, CodeBadRequest},
		{"invalid text", fmt.Errorf("actions: name: %w", objects.ErrInvalidText), CodeBadRequest},
		{"other", errors.New("boom"), CodeInternal},
		{"already wire", NewError(CodeUnknownMethod, "nope"), CodeUnknownMethod},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, FromError(tt.err).Code)
		})
	}
	assert.Nil(t, FromError(nil))
}

func TestError_RoundTripToLocalErrors(t *testing.T) {
	roundTrip := func(err error) error {
		data, merr := Marshal(FromError(err))
		require.NoError(t, merr)
		var wire Error
		require.NoError(t, Unmarshal(data, &wire))
		return wire.Err()
	}

	t.Run("conflict", func(t *testing.T) {
		err := roundTrip(&entryset.ConflictError{Existing: ir.NewEntry(1, 7, 0), Incoming: ir.NewEntry(2, 7, 0)})
		assert.ErrorIs(t, err, entryset.ErrConflict)
		var ce *entryset.ConflictError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, ir.ActionID(2), ce.Incoming.Action)
	})

	t.Run("not found", func(t *testing.T) {
		err := roundTrip(fmt.Errorf("x: %w", entryset.ErrNotFound))
		assert.ErrorIs(t, err, entryset.ErrNotFound)
		assert.ErrorIs(t, err, objects.ErrNotFound)
	})

	t.Run("load", func(t *testing.T) {
		err := roundTrip(&library.LoadError{Path: "/x.splib", Reason: library.ReasonMissing, Err: errors.New("no such file")})
		assert.True(t, library.IsMissing(err))
		var le *library.LoadError
		require.ErrorAs(t, err, &le)
		assert.Equal(t, "/x.splib", le.Path)
		assert.Contains(t, le.Error(), "no such file")
	})

	t.Run("save", func(t *testing.T) {
		err := roundTrip(&library.SaveError{Path: "/x.splib", Err: errors.New("read-only file system")})
		assert.True(t, library.IsSaveError(err))
	})
}

func TestMethod_Mutates(t *testing.T) {
	assert.True(t, MethodAddEntry.Mutates())
	assert.True(t, MethodRemoveObject.Mutates())
	assert.False(t, MethodEntries.Mutates())
	assert.False(t, MethodSynchronize.Mutates())
	assert.False(t, MethodRead.Mutates())
}

func TestSocketPath(t *testing.T) {
	assert.Equal(t, "/run/org.shadowlab.spark.server.sock", SocketPath("/run", false))
	assert.Equal(t, "/run/org.shadowlab.spark.server.debug.sock", SocketPath("/run", true))
}
