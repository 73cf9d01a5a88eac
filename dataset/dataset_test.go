// Copyright 2025 gorse Project Authors
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

package dataset

import (
	"math/rand"
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	d, err := New([][]float32{{1, 2}, {3, 4}, {5, 6}}, []float32{1, 0, 1})
	assert.NoError(t, err)
	assert.Equal(t, 3, d.Count())
	assert.Equal(t, 2, d.FieldDim())
	assert.Equal(t, 2, d.PositiveCount())
	assert.Equal(t, 1, d.NegativeCount())

	_, err = New([][]float32{{1, 2}}, []float32{1, 0})
	assert.True(t, errors.Is(err, errors.NotValid))
	_, err = New([][]float32{{1, 2}, {3}}, []float32{1, 0})
	assert.True(t, errors.Is(err, errors.NotValid))
	_, err = New([][]float32{{1, 2}, {3, 4}}, []float32{1, 0.5})
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestSplit(t *testing.T) {
	d := Synthetic(100, 4, 0)
	train, test, valid, err := d.Split(0.8, 0.5, 0)
	assert.NoError(t, err)
	assert.Equal(t, 80, train.Count())
	assert.Equal(t, 10, test.Count())
	assert.Equal(t, 10, valid.Count())
	assert.Equal(t, 4, valid.FieldDim())
	assert.Equal(t, d.PositiveCount(),
		train.PositiveCount()+test.PositiveCount()+valid.PositiveCount())

	// rows are disjoint
	seen := mapset.NewSet[*float32]()
	for _, part := range []*Dataset{train, test, valid} {
		for _, row := range part.features {
			assert.True(t, seen.Add(&row[0]))
		}
	}
	assert.Equal(t, 100, seen.Cardinality())

	// rounding
	train, test, valid, err = Synthetic(7, 2, 0).Split(0.9, 0.5, 0)
	assert.NoError(t, err)
	assert.Equal(t, 6, train.Count())
	assert.Equal(t, 1, test.Count())
	assert.Equal(t, 0, valid.Count())
	assert.Equal(t, 2, valid.FieldDim())

	// same seed, same split
	a, _, _, _ := d.Split(0.5, 0.5, 42)
	b, _, _, _ := d.Split(0.5, 0.5, 42)
	assert.Equal(t, a.Target(), b.Target())
	assert.Equal(t, a.features, b.features)
}

func TestSample(t *testing.T) {
	d := Synthetic(100, 4, 0)
	sample := d.Sample(30, 1)
	assert.Equal(t, 30, sample.Count())
	assert.Equal(t, 4, sample.FieldDim())
	assert.Equal(t, 30, sample.PositiveCount()+sample.NegativeCount())

	// rows are distinct rows of the dataset
	rows := mapset.NewSet[*float32]()
	for _, row := range d.features {
		rows.Add(&row[0])
	}
	sampled := mapset.NewSet[*float32]()
	for _, row := range sample.features {
		assert.True(t, rows.Contains(&row[0]))
		assert.True(t, sampled.Add(&row[0]))
	}

	assert.Equal(t, sample.features, d.Sample(30, 1).features)
	assert.Same(t, d, d.Sample(100, 1))
	assert.Same(t, d, d.Sample(200, 1))
	assert.Zero(t, d.Sample(0, 1).Count())
}

func TestSplitInvalidRatio(t *testing.T) {
	d := Synthetic(10, 2, 0)
	for _, ratios := range [][2]float32{{0, 0.5}, {1.1, 0.5}, {0.5, 0}, {0.5, -1}, {0.5, 2}} {
		_, _, _, err := d.Split(ratios[0], ratios[1], 0)
		assert.True(t, errors.Is(err, errors.NotValid), ratios)
	}
	train, test, valid, err := d.Split(1, 1, 0)
	assert.NoError(t, err)
	assert.Equal(t, 10, train.Count())
	assert.Zero(t, test.Count())
	assert.Zero(t, valid.Count())
}

func TestBatches(t *testing.T) {
	d := Synthetic(10, 2, 0)
	batches := d.Batches(4, rand.New(rand.NewSource(0)))
	assert.Equal(t, []int{4, 4, 2}, lo.Map(batches, func(b []int, _ int) int { return len(b) }))
	assert.ElementsMatch(t, lo.Range(10), lo.Flatten(batches))

	// without rng the order is kept
	assert.Equal(t, [][]int{{0, 1, 2}, {3, 4, 5}, {6, 7, 8}, {9}}, d.Batches(3, nil))

	x, y := d.Batch([]int{3, 1})
	assert.Equal(t, [][]float32{d.features[3], d.features[1]}, x)
	assert.Equal(t, []float32{d.Target()[3], d.Target()[1]}, y)
}

func TestSynthetic(t *testing.T) {
	d := Synthetic(200, 10, 0)
	assert.Equal(t, 200, d.Count())
	assert.Equal(t, 10, d.FieldDim())
	assert.Equal(t, 200, d.PositiveCount()+d.NegativeCount())
	assert.Greater(t, d.PositiveCount(), 50)
	assert.Greater(t, d.NegativeCount(), 50)
	assert.Equal(t, d.features, Synthetic(200, 10, 0).features)
}
