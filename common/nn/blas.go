// Copyright 2026 gorse Project Authors
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
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

func general(t *Tensor) blas32.General {
	return blas32.General{
		Rows:   t.shape[0],
		Cols:   t.shape[1],
		Stride: t.shape[1],
		Data:   t.data,
	}
}

func transpose(trans bool) blas.Transpose {
	if trans {
		return blas.Trans
	}
	return blas.NoTrans
}

// gemm computes c = op(a) * op(b).
func gemm(transA, transB bool, a, b, c *Tensor) {
	blas32.Gemm(transpose(transA), transpose(transB), 1, general(a), general(b), 0, general(c))
}
