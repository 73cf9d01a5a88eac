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

const (
	// CrossResidualInput adds the input x0 after every cross layer.
	CrossResidualInput = "input"
	// CrossResidualLayer adds the output of the previous cross layer, as in
	// the DCN paper.
	CrossResidualLayer = "layer"
)

// CrossNetwork models explicit feature crosses:
//
//	x_{l+1} = x0 * (x_l w_l + b_l) + r_l
//
// where r_l is x0 or x_l depending on the residual mode. Every layer maps
// (batch, dim) to (batch, dim).
type CrossNetwork struct {
	layers   []*nn.LinearLayer
	residual string
}

func NewCrossNetwork(rng *rand.Rand, dim, numLayers int, residual string) *CrossNetwork {
	c := &CrossNetwork{residual: residual}
	for i := 0; i < numLayers; i++ {
		c.layers = append(c.layers, nn.NewLinear(rng, dim, 1))
	}
	return c
}

func (c *CrossNetwork) Forward(x0 *nn.Tensor) *nn.Tensor {
	x := x0
	for _, layer := range c.layers {
		s := layer.Forward(x)
		if c.residual == CrossResidualLayer {
			x = nn.Add(nn.Mul(x0, s), x)
		} else {
			x = nn.Add(nn.Mul(x0, s), x0)
		}
	}
	return x
}

func (c *CrossNetwork) Parameters() []*nn.Tensor {
	var params []*nn.Tensor
	for _, layer := range c.layers {
		params = append(params, layer.Parameters()...)
	}
	return params
}
