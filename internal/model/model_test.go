package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestTableNames(t *testing.T) {
	tests := []struct {
		name     string
		model    interface{ TableName() string }
		expected string
	}{
		{"Recording", &Recording{}, "recordings"},
		{"Keyframe", &Keyframe{}, "keyframes"},
		{"JointState", &JointState{}, "joint_states"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.model.TableName())
		})
	}
}

func TestDatabaseModels_ParentsFirst(t *testing.T) {
	require.Len(t, DatabaseModels, 3)
	assert.IsType(t, &Recording{}, DatabaseModels[0])
	assert.IsType(t, &Keyframe{}, DatabaseModels[1])
	assert.IsType(t, &JointState{}, DatabaseModels[2])
}

func TestPointFromVec(t *testing.T) {
	pt := PointFromVec(r3.Vec{X: 0.25, Y: 1.5, Z: -2})

	coord, ok := pt.Coordinates()
	require.True(t, ok)
	assert.Equal(t, 0.25, coord.XY.X)
	assert.Equal(t, 1.5, coord.XY.Y)
	assert.Equal(t, -2.0, coord.Z)

	assert.Equal(t, r3.Vec{X: 0.25, Y: 1.5, Z: -2}, VecFromPoint(pt))
}

func TestVecFromPoint_Empty(t *testing.T) {
	var pt JointState
	assert.Equal(t, r3.Vec{}, VecFromPoint(pt.Position))
}
