package session

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContext_Empty(t *testing.T) {
	ctx := NewContext()

	_, ok := ctx.Get()
	assert.False(t, ok)
	assert.Nil(t, ctx.LogAttrs())
}

func TestContext_SetAndClear(t *testing.T) {
	ctx := NewContext()
	s := New("squat", "s01", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	require.NotEqual(t, uuid.Nil, s.ID)

	ctx.Set(s)
	got, ok := ctx.Get()
	require.True(t, ok)
	assert.Equal(t, s, got)

	attrs := ctx.LogAttrs()
	require.Len(t, attrs, 3)
	assert.Equal(t, "recording", attrs[0].Key)
	assert.Equal(t, "squat", attrs[0].Value.String())
	assert.Equal(t, s.ID.String(), attrs[1].Value.String())
	assert.Equal(t, "s01", attrs[2].Value.String())

	ctx.Clear()
	_, ok = ctx.Get()
	assert.False(t, ok)
}

func TestContext_NoSubject(t *testing.T) {
	ctx := NewContext()
	ctx.Set(New("wave", "", time.Now()))
	assert.Len(t, ctx.LogAttrs(), 2)
}

func TestNew_UniqueIDs(t *testing.T) {
	a := New("a", "", time.Now())
	b := New("a", "", time.Now())
	assert.NotEqual(t, a.ID, b.ID)
}

func TestContext_ThreadSafe(t *testing.T) {
	ctx := NewContext()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			ctx.Set(New("run", "", time.Now()))
		}()
		go func() {
			defer wg.Done()
			_ = ctx.LogAttrs()
		}()
	}
	wg.Wait()

	_, ok := ctx.Get()
	assert.True(t, ok)
}
