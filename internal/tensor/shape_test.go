package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShape_NumElements(t *testing.T) {
	tests := []struct {
		name  string
		shape Shape
		want  int
	}{
		{"scalar", Shape{}, 1},
		{"vector", Shape{5}, 5},
		{"window batch", Shape{2, 43844, 1}, 87688},
		{"zero frames", Shape{0, 88}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.shape.NumElements())
		})
	}
}

func TestShape_Validate(t *testing.T) {
	assert.NoError(t, Shape{1, 172, 88}.Validate())
	assert.NoError(t, Shape{0, 88}.Validate())
	assert.Error(t, Shape{1, -1}.Validate())
}

func TestShape_ComputeStrides(t *testing.T) {
	assert.Equal(t, []int{172 * 88, 88, 1}, Shape{4, 172, 88}.ComputeStrides())
	assert.Equal(t, []int{}, Shape{}.ComputeStrides())
}

func TestShape_EqualClone(t *testing.T) {
	s := Shape{1, 2, 3}
	c := s.Clone()
	assert.True(t, s.Equal(c))

	c[0] = 9
	assert.False(t, s.Equal(c))
	assert.False(t, s.Equal(Shape{1, 2}))
}

func TestShape_Int64RoundTrip(t *testing.T) {
	s := Shape{1, 43844, 1}
	assert.Equal(t, []int64{1, 43844, 1}, s.Int64())
	assert.True(t, s.Equal(FromInt64(s.Int64())))
}
