package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/diary/internal/diary"
	"github.com/roach88/diary/internal/testutil"
)

func TestRequest_OpNames(t *testing.T) {
	tests := []struct {
		req  Request
		want string
	}{
		{&CreateEntry{}, OpCreateEntry},
		{&ReadEntry{}, OpReadEntry},
		{&ReadEntries{}, OpReadEntries},
		{&UpdateEntry{}, OpUpdateEntry},
		{&DeleteEntry{}, OpDeleteEntry},
		{&DumpEntries{}, OpDumpEntries},
		{&shutdownRequest{}, OpShutdown},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.req.Op())
		})
	}
}

func TestRequest_ValidateRequiresReply(t *testing.T) {
	for _, req := range []Request{
		&CreateEntry{},
		&ReadEntry{},
		&ReadEntries{},
		&UpdateEntry{},
		&DeleteEntry{},
		&DumpEntries{},
	} {
		assert.ErrorIs(t, req.validate(), errNilReply, req.Op())
	}
	assert.NoError(t, (&shutdownRequest{}).validate())
}

func TestRequest_ExecuteRepliesOnce(t *testing.T) {
	s := testutil.NewRecordingStore()
	reply := make(chan Result[diary.Entry], 1)
	req := &CreateEntry{Content: "hi", Reply: reply}

	delivered, err := req.execute(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, delivered)

	r := <-reply
	require.NoError(t, r.Err)
	assert.Equal(t, "hi", r.Value.Content)

	// Writes beyond the single slot are dropped without blocking.
	assert.True(t, req.reject(errors.New("second")))
	assert.False(t, req.reject(errors.New("third")))
}

func TestRequest_ExecuteCarriesStoreError(t *testing.T) {
	s := testutil.NewRecordingStore()
	reply := make(chan Result[diary.Entry], 1)

	delivered, err := (&ReadEntry{ID: 9, Reply: reply}).execute(context.Background(), s)
	assert.True(t, delivered)
	assert.ErrorIs(t, err, diary.ErrNotFound)

	r := <-reply
	assert.ErrorIs(t, r.Err, diary.ErrNotFound)
	assert.Zero(t, r.Value)
}

func TestRequest_Reject(t *testing.T) {
	reply := make(chan Result[struct{}], 1)
	req := &DeleteEntry{Header: Header{ID: "req-7"}, ID: 1, Reply: reply}

	assert.True(t, req.reject(noResponse(req.Op(), req.RequestID(), nil)))

	r := <-reply
	assert.True(t, IsNoResponse(r.Err))
	assert.Contains(t, r.Err.Error(), "req-7")
}
