// Copyright 2024 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package nn

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
)

func TestTensor_String(t *testing.T) {
	x := NewTensor([]float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 10)
	assert.Equal(t, "[1, 2, 3, 4, 5, 6, 7, 8, 9, 10]", x.String())
	x = NewTensor([]float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}, 11)
	assert.Equal(t, "[1, 2, 3, 4, 5, ..., 7, 8, 9, 10, 11]", x.String())
	assert.Equal(t, "3", NewScalar(3).String())
}

func TestNewTensor(t *testing.T) {
	assert.Panics(t, func() { NewTensor([]float32{1, 2, 3}, 2, 2) })
	x := NewMatrix([][]float32{{1, 2}, {3, 4}, {5, 6}})
	assert.Equal(t, []int{3, 2}, x.Shape())
	assert.Equal(t, [][]float32{{1, 2}, {3, 4}, {5, 6}}, x.Rows())
	assert.Panics(t, func() { NewMatrix([][]float32{{1, 2}, {3}}) })
}

func TestXavierNormal(t *testing.T) {
	x := XavierNormal(newRand(), 300, 500)
	assert.Equal(t, []int{300, 500}, x.Shape())
	var sum, sum2 float32
	for _, v := range x.Data() {
		sum += v
		sum2 += v * v
	}
	n := float32(len(x.Data()))
	std := math32.Sqrt(sum2/n - (sum/n)*(sum/n))
	assert.InDelta(t, math32.Sqrt(2.0/800), std, 1e-3)
}

func TestLinearInit(t *testing.T) {
	layer := NewLinear(newRand(), 16, 200)
	assert.Equal(t, []int{16, 200}, layer.W.Shape())
	assert.Equal(t, []int{200}, layer.B.Shape())
	var sum, sum2 float32
	for _, v := range layer.W.Data() {
		assert.GreaterOrEqual(t, v, float32(-0.25))
		assert.Less(t, v, float32(0.25))
		sum += v
		sum2 += v * v
	}
	for _, v := range layer.B.Data() {
		assert.GreaterOrEqual(t, v, float32(-0.25))
		assert.Less(t, v, float32(0.25))
	}
	// U(-a, a) has variance a^2 / 3
	n := float32(len(layer.W.Data()))
	assert.InDelta(t, 0, sum/n, 1e-2)
	assert.InDelta(t, 0.0625/3, sum2/n, 2e-3)
}

func TestIsFinite(t *testing.T) {
	assert.True(t, NewTensor([]float32{1, 2}, 2).IsFinite())
	assert.False(t, NewTensor([]float32{1, math32.NaN()}, 2).IsFinite())
	assert.False(t, NewTensor([]float32{math32.Inf(1), 2}, 2).IsFinite())
}
