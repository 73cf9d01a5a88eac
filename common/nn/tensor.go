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
	"fmt"
	"math/rand"
	"strings"

	"github.com/chewxy/math32"
	"github.com/gorse-io/deepctr/common/random"
)

type Tensor struct {
	data  []float32
	shape []int
	grad  *Tensor
	op    op
}

// NewTensor creates a tensor from row-major data. It panics if the length of
// data does not match the shape.
func NewTensor(data []float32, shape ...int) *Tensor {
	if n := numElements(shape); n != len(data) {
		panic(fmt.Sprintf("tensor of shape %v requires %d elements, but got %d", shape, n, len(data)))
	}
	return &Tensor{
		data:  data,
		shape: shape,
	}
}

func NewScalar(data float32) *Tensor {
	return &Tensor{
		data:  []float32{data},
		shape: []int{},
	}
}

// NewMatrix creates a (len(rows), len(rows[0])) tensor by copying rows.
func NewMatrix(rows [][]float32) *Tensor {
	if len(rows) == 0 {
		panic("matrix must have at least one row")
	}
	cols := len(rows[0])
	data := make([]float32, 0, len(rows)*cols)
	for _, row := range rows {
		if len(row) != cols {
			panic(fmt.Sprintf("ragged matrix: expected %d columns, but got %d", cols, len(row)))
		}
		data = append(data, row...)
	}
	return NewTensor(data, len(rows), cols)
}

// Ones creates a tensor filled with ones.
func Ones(shape ...int) *Tensor {
	data := make([]float32, numElements(shape))
	for i := range data {
		data[i] = 1
	}
	return &Tensor{
		data:  data,
		shape: shape,
	}
}

// Zeros creates a tensor filled with zeros.
func Zeros(shape ...int) *Tensor {
	return &Tensor{
		data:  make([]float32, numElements(shape)),
		shape: shape,
	}
}

// Normal creates a tensor filled with gaussian random values.
func Normal(rng *rand.Rand, mean, std float32, shape ...int) *Tensor {
	data := make([]float32, numElements(shape))
	for i := range data {
		data[i] = float32(rng.NormFloat64())*std + mean
	}
	return &Tensor{
		data:  data,
		shape: shape,
	}
}

// Uniform creates a tensor filled with values drawn from U(low, high).
func Uniform(rng *rand.Rand, low, high float32, shape ...int) *Tensor {
	return &Tensor{
		data:  random.Generator{Rand: rng}.UniformVector(numElements(shape), low, high),
		shape: shape,
	}
}

// XavierNormal creates a 2D tensor initialized by Glorot normal initialization,
// i.e. N(0, 2 / (fanIn + fanOut)).
func XavierNormal(rng *rand.Rand, fanIn, fanOut int) *Tensor {
	std := math32.Sqrt(2 / float32(fanIn+fanOut))
	return Normal(rng, 0, std, fanIn, fanOut)
}

func (t *Tensor) Shape() []int {
	return t.shape
}

func (t *Tensor) Data() []float32 {
	return t.data
}

// Rows splits a 2D tensor into rows without copying.
func (t *Tensor) Rows() [][]float32 {
	if len(t.shape) != 2 {
		panic("Rows requires a 2D tensor")
	}
	rows := make([][]float32, t.shape[0])
	for i := range rows {
		rows[i] = t.data[i*t.shape[1] : (i+1)*t.shape[1]]
	}
	return rows
}


func (t *Tensor) String() string {
	// Print scalar value
	if len(t.shape) == 0 {
		return fmt.Sprint(t.data[0])
	}

	builder := strings.Builder{}
	builder.WriteString("[")
	if len(t.data) <= 10 {
		for i := 0; i < len(t.data); i++ {
			builder.WriteString(fmt.Sprint(t.data[i]))
			if i != len(t.data)-1 {
				builder.WriteString(", ")
			}
		}
	} else {
		for i := 0; i < 5; i++ {
			builder.WriteString(fmt.Sprint(t.data[i]))
			builder.WriteString(", ")
		}
		builder.WriteString("..., ")
		for i := len(t.data) - 5; i < len(t.data); i++ {
			builder.WriteString(fmt.Sprint(t.data[i]))
			if i != len(t.data)-1 {
				builder.WriteString(", ")
			}
		}
	}
	builder.WriteString("]")
	return builder.String()
}

// Backward computes gradients of every tensor in the graph that produced t.
// Gradients of leaves accumulate until they are cleared by an optimizer.
func (t *Tensor) Backward() {
	t.grad = Ones(t.shape...)
	// Sort operations in topological order so that the gradient of a tensor
	// is complete before it is propagated to its inputs.
	var order []*Tensor
	visited := make(map[*Tensor]struct{})
	var visit func(x *Tensor)
	visit = func(x *Tensor) {
		if x.op == nil {
			return
		}
		if _, ok := visited[x]; ok {
			return
		}
		visited[x] = struct{}{}
		inputs, _ := x.op.inputsAndOutput()
		for _, input := range inputs {
			visit(input)
		}
		order = append(order, x)
	}
	visit(t)
	for i := len(order) - 1; i >= 0; i-- {
		y := order[i]
		if y.grad == nil {
			continue
		}
		inputs, _ := y.op.inputsAndOutput()
		grads := y.op.backward(y.grad)
		for j := range grads {
			if grads[j] == nil {
				continue
			}
			if inputs[j].grad == nil {
				inputs[j].grad = grads[j].clone()
			} else {
				inputs[j].grad.add(grads[j])
			}
		}
	}
}

func (t *Tensor) Grad() *Tensor {
	return t.grad
}

// IsFinite returns false if any element is NaN or infinite.
func (t *Tensor) IsFinite() bool {
	for _, v := range t.data {
		if math32.IsNaN(v) || math32.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (t *Tensor) clone() *Tensor {
	newData := make([]float32, len(t.data))
	copy(newData, t.data)
	return &Tensor{
		data:  newData,
		shape: cloneShape(t.shape),
	}
}

// add accumulates a tensor of the same size in place.
func (t *Tensor) add(other *Tensor) *Tensor {
	for i := range t.data {
		t.data[i] += other.data[i]
	}
	return t
}

func (t *Tensor) matMul(other *Tensor, transpose1, transpose2 bool) *Tensor {
	if len(t.shape) != 2 || len(other.shape) != 2 {
		panic(fmt.Sprintf("matMul requires 2D tensors, but got %v and %v", t.shape, other.shape))
	}
	m, k := t.shape[0], t.shape[1]
	if transpose1 {
		m, k = k, m
	}
	k2, n := other.shape[0], other.shape[1]
	if transpose2 {
		k2, n = n, k2
	}
	if k != k2 {
		panic(fmt.Sprintf("matMul: incompatible shapes %v and %v", t.shape, other.shape))
	}
	y := Zeros(m, n)
	gemm(transpose1, transpose2, t, other, y)
	return y
}

func numElements(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}

func cloneShape(shape []int) []int {
	return append([]int{}, shape...)
}
