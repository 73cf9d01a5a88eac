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
	"math"
	"math/rand"

	"github.com/gorse-io/deepctr/common/random"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"modernc.org/mathutil"
)

// Dataset is a dense click-through-rate dataset. Every row has the same number
// of features and a 0/1 label.
type Dataset struct {
	features      [][]float32
	target        []float32
	fieldDim      int
	columns       []string
	positiveCount int
	negativeCount int
}

// New creates a dataset. Rows must have the same width and labels must be 0
// or 1.
func New(features [][]float32, target []float32) (*Dataset, error) {
	if len(features) != len(target) {
		return nil, errors.NotValidf("%d rows with %d labels", len(features), len(target))
	}
	d := &Dataset{features: features, target: target}
	if len(features) > 0 {
		d.fieldDim = len(features[0])
	}
	for i, row := range features {
		if len(row) != len(features[0]) {
			return nil, errors.NotValidf("row %d has %d features, expected %d", i, len(row), len(features[0]))
		}
		switch target[i] {
		case 1:
			d.positiveCount++
		case 0:
			d.negativeCount++
		default:
			return nil, errors.NotValidf("label %v of row %d", target[i], i)
		}
	}
	return d, nil
}

// Count returns the number of rows.
func (d *Dataset) Count() int {
	return len(d.target)
}

// FieldDim returns the number of features of each row.
func (d *Dataset) FieldDim() int {
	return d.fieldDim
}

func (d *Dataset) Target() []float32 {
	return d.target
}

// Columns returns feature names if the dataset was loaded with a header.
func (d *Dataset) Columns() []string {
	return d.columns
}

func (d *Dataset) PositiveCount() int {
	return d.positiveCount
}

func (d *Dataset) NegativeCount() int {
	return d.negativeCount
}

// Subset returns a dataset made of the given rows. Rows are shared, not
// copied.
func (d *Dataset) Subset(indices []int) *Dataset {
	sub := &Dataset{
		features: make([][]float32, 0, len(indices)),
		target:   make([]float32, 0, len(indices)),
		fieldDim: d.fieldDim,
		columns:  d.columns,
	}
	for _, i := range indices {
		sub.features = append(sub.features, d.features[i])
		sub.target = append(sub.target, d.target[i])
		if d.target[i] > 0 {
			sub.positiveCount++
		} else {
			sub.negativeCount++
		}
	}
	return sub
}

// Sample returns n rows drawn without replacement. The dataset itself is
// returned if it has no more than n rows.
func (d *Dataset) Sample(n int, seed int64) *Dataset {
	if n >= d.Count() {
		return d
	}
	if n <= 0 {
		return d.Subset(nil)
	}
	return d.Subset(random.New(seed).Sample(0, d.Count(), n))
}

// Split partitions the dataset into training, test and validation sets. The
// training set takes round(n * trainRatio) rows and the test set takes
// round(rest * testRatio) of the remaining rows. The validation set gets the
// rest.
func (d *Dataset) Split(trainRatio, testRatio float32, seed int64) (train, test, valid *Dataset, err error) {
	if !(trainRatio > 0 && trainRatio <= 1) {
		return nil, nil, nil, errors.NotValidf("train ratio %v", trainRatio)
	}
	if !(testRatio > 0 && testRatio <= 1) {
		return nil, nil, nil, errors.NotValidf("test ratio %v", testRatio)
	}
	n := d.Count()
	numTrain := mathutil.Min(int(math.Round(float64(n)*float64(trainRatio))), n)
	rest := n - numTrain
	numTest := mathutil.Min(int(math.Round(float64(rest)*float64(testRatio))), rest)
	rng := random.New(seed)
	perm := rng.Perm(n)
	train = d.Subset(perm[:numTrain])
	test = d.Subset(perm[numTrain : numTrain+numTest])
	valid = d.Subset(perm[numTrain+numTest:])
	return
}

// Batches shuffles row indices with rng and cuts them into mini-batches of at
// most batchSize rows. Only the last batch may be smaller.
func (d *Dataset) Batches(batchSize int, rng *rand.Rand) [][]int {
	indices := lo.Range(d.Count())
	if rng != nil {
		rng.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}
	return lo.Chunk(indices, batchSize)
}

// Batch returns the features and labels of the given rows.
func (d *Dataset) Batch(indices []int) ([][]float32, []float32) {
	x := make([][]float32, len(indices))
	y := make([]float32, len(indices))
	for i, j := range indices {
		x[i] = d.features[j]
		y[i] = d.target[j]
	}
	return x, y
}

// Synthetic generates n rows of dim standard normal features labeled by a
// random hyperplane with a little gaussian noise.
func Synthetic(n, dim int, seed int64) *Dataset {
	rng := random.New(seed)
	w := rng.NormalVector(dim, 0, 1)
	d := &Dataset{
		features: rng.NormalMatrix(n, dim, 0, 1),
		target:   make([]float32, n),
		fieldDim: dim,
	}
	for i, row := range d.features {
		var z float32
		for j := range row {
			z += w[j] * row[j]
		}
		z += float32(rng.NormFloat64()) * 0.1
		if z > 0 {
			d.target[i] = 1
			d.positiveCount++
		} else {
			d.negativeCount++
		}
	}
	return d
}
