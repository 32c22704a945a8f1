package mm

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestSpaceLifecycle(t *testing.T) {
	before := Live()

	a := NewSpace()
	b := NewSpace()
	assert.Assert(t, a.ID() != b.ID(), "space ids must be unique")
	assert.Equal(t, Live(), before+2)

	a.Release()
	b.Release()
	assert.Equal(t, Live(), before)
}

func TestDoubleReleasePanics(t *testing.T) {
	s := NewSpace()
	s.Release()

	defer func() {
		if recover() == nil {
			t.Fatalf("double release did not panic")
		}
	}()
	s.Release()
}
