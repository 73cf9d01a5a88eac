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

import "github.com/gorse-io/deepctr/common/nn"

// BiInteraction pools second-order interactions of x (batch, field) through
// embeddings v (field, embed):
//
//	(x v)^2 - (x^2)(v^2)
//
// Component k of a row equals 2 * sum_{i<j} x_i x_j v_ik v_jk.
func BiInteraction(x, v *nn.Tensor) *nn.Tensor {
	return nn.Sub(nn.Square(nn.MatMul(x, v)), nn.MatMul(nn.Square(x), nn.Square(v)))
}
