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

package ctr

import (
	"math/rand"

	"github.com/gorse-io/deepctr/common/nn"
)

// DeepNetwork is a stack of Linear, BatchNorm, ReLU and Dropout blocks,
// optionally followed by a Linear layer producing one score per row.
type DeepNetwork struct {
	*nn.Sequential
	outputDim int
}

func NewDeepNetwork(rng *rand.Rand, inputDim int, hiddenDims []int, dropout float32, outputLayer bool) *DeepNetwork {
	var layers []nn.Layer
	dim := inputDim
	for _, hiddenDim := range hiddenDims {
		layers = append(layers,
			nn.NewLinear(rng, dim, hiddenDim),
			nn.NewBatchNorm1d(hiddenDim),
			nn.NewReLU(),
			nn.NewDropout(rng, dropout))
		dim = hiddenDim
	}
	if outputLayer {
		layers = append(layers, nn.NewLinear(rng, dim, 1))
		dim = 1
	}
	return &DeepNetwork{
		Sequential: nn.NewSequential(layers...),
		outputDim:  dim,
	}
}

// OutputDim returns the width of the output.
func (d *DeepNetwork) OutputDim() int {
	return d.outputDim
}
