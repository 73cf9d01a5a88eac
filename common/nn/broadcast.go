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
	"fmt"

	"modernc.org/mathutil"
)

// broadcaster walks the output of a binary element-wise operation and the
// matching offsets of both inputs. Shapes are aligned from the right and a
// dimension of size 1 is stretched to the other size.
type broadcaster struct {
	shape   []int
	strides [2][]int
}

func newBroadcaster(a, b []int) *broadcaster {
	rank := mathutil.Max(len(a), len(b))
	shape := make([]int, rank)
	for i := 0; i < rank; i++ {
		da, db := dimAt(a, rank, i), dimAt(b, rank, i)
		switch {
		case da == db:
			shape[i] = da
		case da == 1:
			shape[i] = db
		case db == 1:
			shape[i] = da
		default:
			panic(fmt.Sprintf("shapes %v and %v are not broadcastable", a, b))
		}
	}
	return &broadcaster{
		shape:   shape,
		strides: [2][]int{broadcastStrides(a, shape), broadcastStrides(b, shape)},
	}
}

func dimAt(shape []int, rank, i int) int {
	offset := rank - len(shape)
	if i < offset {
		return 1
	}
	return shape[i-offset]
}

// broadcastStrides returns row-major strides of shape expressed in the output
// rank, with zero strides on stretched dimensions.
func broadcastStrides(shape, out []int) []int {
	rank := len(out)
	strides := make([]int, rank)
	stride := 1
	for i := rank - 1; i >= 0; i-- {
		d := dimAt(shape, rank, i)
		if d == 1 && out[i] != 1 {
			strides[i] = 0
		} else {
			strides[i] = stride
		}
		stride *= d
	}
	return strides
}

// each calls f with the flat output index and the flat indices of both inputs.
func (b *broadcaster) each(f func(i, ia, ib int)) {
	n := numElements(b.shape)
	rank := len(b.shape)
	index := make([]int, rank)
	sa, sb := b.strides[0], b.strides[1]
	ia, ib := 0, 0
	for i := 0; i < n; i++ {
		f(i, ia, ib)
		for d := rank - 1; d >= 0; d-- {
			index[d]++
			ia += sa[d]
			ib += sb[d]
			if index[d] < b.shape[d] {
				break
			}
			ia -= sa[d] * b.shape[d]
			ib -= sb[d] * b.shape[d]
			index[d] = 0
		}
	}
}
