// Copyright 2020 gorse Project Authors
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

package random

import (
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/stat"
)

const randomEpsilon = 0.1

func toFloat64(v []float32) []float64 {
	return lo.Map(v, func(x float32, _ int) float64 { return float64(x) })
}

func TestGenerator_NormalMatrix(t *testing.T) {
	rng := New(0)
	vec := toFloat64(rng.NormalMatrix(1, 1000, 1, 2)[0])
	assert.InDelta(t, 1, stat.Mean(vec, nil), randomEpsilon)
	assert.InDelta(t, 2, stat.StdDev(vec, nil), randomEpsilon)
}

func TestGenerator_UniformVector(t *testing.T) {
	rng := New(0)
	vec := rng.UniformVector(1000, 1, 2)
	assert.GreaterOrEqual(t, lo.Min(vec), float32(1))
	assert.LessOrEqual(t, lo.Max(vec), float32(2))
}

func TestGenerator_Sample(t *testing.T) {
	excludeSet := mapset.NewSet(0, 1, 2, 3, 4)
	rng := New(0)
	for i := 1; i <= 10; i++ {
		sampled := rng.Sample(0, 10, i, excludeSet)
		assert.Equal(t, len(sampled), len(lo.Uniq(sampled)))
		for j := range sampled {
			assert.False(t, excludeSet.Contains(sampled[j]))
		}
	}
	assert.ElementsMatch(t, []int{5, 6, 7, 8, 9}, rng.Sample(0, 10, 10, excludeSet))
}

func TestGenerator_Deterministic(t *testing.T) {
	assert.Equal(t, New(42).NormalVector(10, 0, 1), New(42).NormalVector(10, 0, 1))
}
