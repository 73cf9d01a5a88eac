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

	"github.com/chewxy/math32"
)

// probability bounds keep sigmoid outputs inside the open interval (0, 1)
var (
	minProbability float32 = math32.SmallestNonzeroFloat32
	maxProbability float32 = math32.Nextafter(1, 0)
)

type op interface {
	String() string
	forward(inputs ...*Tensor) *Tensor
	backward(dy *Tensor) []*Tensor
	inputsAndOutput() ([]*Tensor, *Tensor)
	setInputs(inputs ...*Tensor)
	setOutput(y *Tensor)
}

type base struct {
	inputs []*Tensor
	output *Tensor
}

func (b *base) inputsAndOutput() ([]*Tensor, *Tensor) {
	return b.inputs, b.output
}

func (b *base) setInputs(inputs ...*Tensor) {
	b.inputs = inputs
}

func (b *base) setOutput(y *Tensor) {
	b.output = y
}

func apply[T op](f T, inputs ...*Tensor) *Tensor {
	y := f.forward(inputs...)
	f.setInputs(inputs...)
	f.setOutput(y)
	y.op = f
	return y
}

// elementwise is a broadcasting binary operation defined by its value and
// its partial derivatives.
type elementwise struct {
	base
	name string
	f    func(a, b float32) float32
	da   func(a, b, y float32) float32
	db   func(a, b, y float32) float32
}

func (e *elementwise) String() string {
	return e.name
}

func (e *elementwise) forward(inputs ...*Tensor) *Tensor {
	a, b := inputs[0], inputs[1]
	bc := newBroadcaster(a.shape, b.shape)
	y := Zeros(bc.shape...)
	bc.each(func(i, ia, ib int) {
		y.data[i] = e.f(a.data[ia], b.data[ib])
	})
	return y
}

func (e *elementwise) backward(dy *Tensor) []*Tensor {
	a, b := e.inputs[0], e.inputs[1]
	ga, gb := Zeros(cloneShape(a.shape)...), Zeros(cloneShape(b.shape)...)
	bc := newBroadcaster(a.shape, b.shape)
	bc.each(func(i, ia, ib int) {
		x0, x1, y := a.data[ia], b.data[ib], e.output.data[i]
		ga.data[ia] += dy.data[i] * e.da(x0, x1, y)
		gb.data[ib] += dy.data[i] * e.db(x0, x1, y)
	})
	return []*Tensor{ga, gb}
}

type square struct {
	base
}

func (s *square) String() string {
	return "Square"
}

func (s *square) forward(inputs ...*Tensor) *Tensor {
	y := inputs[0].clone()
	for i := range y.data {
		y.data[i] *= y.data[i]
	}
	return y
}

func (s *square) backward(dy *Tensor) []*Tensor {
	dx := s.inputs[0].clone()
	for i := range dx.data {
		dx.data[i] *= 2 * dy.data[i]
	}
	return []*Tensor{dx}
}

type sum struct {
	base
}

func (s *sum) String() string {
	return "Sum"
}

func (s *sum) forward(inputs ...*Tensor) *Tensor {
	x := inputs[0]
	y := NewScalar(0)
	for i := range x.data {
		y.data[0] += x.data[i]
	}
	return y
}

func (s *sum) backward(dy *Tensor) []*Tensor {
	dx := Zeros(cloneShape(s.inputs[0].shape)...)
	for i := range dx.data {
		dx.data[i] = dy.data[0]
	}
	return []*Tensor{dx}
}

type matMul struct {
	base
}

func (m *matMul) String() string {
	return "MatMul"
}

func (m *matMul) forward(inputs ...*Tensor) *Tensor {
	return inputs[0].matMul(inputs[1], false, false)
}

func (m *matMul) backward(dy *Tensor) []*Tensor {
	dx0 := dy.matMul(m.inputs[1], false, true)
	dx1 := m.inputs[0].matMul(dy, true, false)
	return []*Tensor{dx0, dx1}
}

type concat struct {
	base
}

func (c *concat) String() string {
	return "Concat"
}

func (c *concat) forward(inputs ...*Tensor) *Tensor {
	rows, cols := inputs[0].shape[0], 0
	for _, x := range inputs {
		cols += x.shape[1]
	}
	y := Zeros(rows, cols)
	for i := 0; i < rows; i++ {
		offset := i * cols
		for _, x := range inputs {
			width := x.shape[1]
			copy(y.data[offset:offset+width], x.data[i*width:(i+1)*width])
			offset += width
		}
	}
	return y
}

func (c *concat) backward(dy *Tensor) []*Tensor {
	rows, cols := dy.shape[0], dy.shape[1]
	grads := make([]*Tensor, len(c.inputs))
	for j, x := range c.inputs {
		grads[j] = Zeros(cloneShape(x.shape)...)
	}
	for i := 0; i < rows; i++ {
		offset := i * cols
		for j, x := range c.inputs {
			width := x.shape[1]
			copy(grads[j].data[i*width:(i+1)*width], dy.data[offset:offset+width])
			offset += width
		}
	}
	return grads
}

type sigmoid struct {
	base
}

func (s *sigmoid) String() string {
	return "Sigmoid"
}

func (s *sigmoid) forward(inputs ...*Tensor) *Tensor {
	y := inputs[0].clone()
	for i, x := range y.data {
		if x >= 0 {
			y.data[i] = 1 / (1 + math32.Exp(-x))
		} else {
			e := math32.Exp(x)
			y.data[i] = e / (1 + e)
		}
		y.data[i] = math32.Max(minProbability, math32.Min(maxProbability, y.data[i]))
	}
	return y
}

func (s *sigmoid) backward(dy *Tensor) []*Tensor {
	// dx = dy * y * (1 - y)
	dx := dy.clone()
	for i, y := range s.output.data {
		dx.data[i] *= y * (1 - y)
	}
	return []*Tensor{dx}
}

type relu struct {
	base
}

func (r *relu) String() string {
	return "ReLU"
}

func (r *relu) forward(inputs ...*Tensor) *Tensor {
	y := inputs[0].clone()
	for i := range y.data {
		y.data[i] = math32.Max(y.data[i], 0)
	}
	return y
}

func (r *relu) backward(dy *Tensor) []*Tensor {
	dx := dy.clone()
	for i, x := range r.inputs[0].data {
		if x <= 0 {
			dx.data[i] = 0
		}
	}
	return []*Tensor{dx}
}

// batchNorm normalizes every column of a (batch, features) tensor by the
// statistics of the batch.
type batchNorm struct {
	base
	eps    float32
	mean   []float32
	var_   []float32
	xHat   []float32
	invStd []float32
}

func (b *batchNorm) String() string {
	return "BatchNorm"
}

func (b *batchNorm) forward(inputs ...*Tensor) *Tensor {
	x, gamma, beta := inputs[0], inputs[1], inputs[2]
	rows, cols := x.shape[0], x.shape[1]
	b.mean = make([]float32, cols)
	b.var_ = make([]float32, cols)
	b.invStd = make([]float32, cols)
	b.xHat = make([]float32, len(x.data))
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			b.mean[j] += x.data[i*cols+j]
		}
	}
	for j := range b.mean {
		b.mean[j] /= float32(rows)
	}
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			d := x.data[i*cols+j] - b.mean[j]
			b.var_[j] += d * d
		}
	}
	for j := range b.var_ {
		b.var_[j] /= float32(rows)
		b.invStd[j] = 1 / math32.Sqrt(b.var_[j]+b.eps)
	}
	y := Zeros(rows, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			k := i*cols + j
			b.xHat[k] = (x.data[k] - b.mean[j]) * b.invStd[j]
			y.data[k] = b.xHat[k]*gamma.data[j] + beta.data[j]
		}
	}
	return y
}

func (b *batchNorm) backward(dy *Tensor) []*Tensor {
	gamma := b.inputs[1]
	rows, cols := dy.shape[0], dy.shape[1]
	dx := Zeros(rows, cols)
	dGamma := Zeros(cols)
	dBeta := Zeros(cols)
	sumDxHat := make([]float32, cols)
	sumDxHatXHat := make([]float32, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			k := i*cols + j
			dGamma.data[j] += dy.data[k] * b.xHat[k]
			dBeta.data[j] += dy.data[k]
			dxHat := dy.data[k] * gamma.data[j]
			sumDxHat[j] += dxHat
			sumDxHatXHat[j] += dxHat * b.xHat[k]
		}
	}
	n := float32(rows)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			k := i*cols + j
			dxHat := dy.data[k] * gamma.data[j]
			dx.data[k] = b.invStd[j] / n * (n*dxHat - sumDxHat[j] - b.xHat[k]*sumDxHatXHat[j])
		}
	}
	return []*Tensor{dx, dGamma, dBeta}
}

// binaryCrossEntropy is the negative log-likelihood of every target under
// its predicted probability.
type binaryCrossEntropy struct {
	base
}

func (b *binaryCrossEntropy) String() string {
	return "BinaryCrossEntropy"
}

func (b *binaryCrossEntropy) forward(inputs ...*Tensor) *Tensor {
	p, t := inputs[0], inputs[1]
	y := Zeros(cloneShape(p.shape)...)
	for i := range p.data {
		// log is clamped at -100 as in PyTorch
		logP := math32.Max(math32.Log(p.data[i]), -100)
		logQ := math32.Max(math32.Log(1-p.data[i]), -100)
		y.data[i] = -(t.data[i]*logP + (1-t.data[i])*logQ)
	}
	return y
}

func (b *binaryCrossEntropy) backward(dy *Tensor) []*Tensor {
	p, t := b.inputs[0], b.inputs[1]
	dp := Zeros(cloneShape(p.shape)...)
	for i := range p.data {
		q := math32.Max(minProbability, math32.Min(maxProbability, p.data[i]))
		dp.data[i] = dy.data[i] * (q - t.data[i]) / (q * (1 - q))
	}
	return []*Tensor{dp, nil}
}

func binary(name string, x0, x1 *Tensor,
	f func(a, b float32) float32,
	da, db func(a, b, y float32) float32) *Tensor {
	return apply(&elementwise{name: name, f: f, da: da, db: db}, x0, x1)
}

// Add returns the element-wise sum of two broadcastable tensors.
func Add(x0, x1 *Tensor) *Tensor {
	return binary("Add", x0, x1,
		func(a, b float32) float32 { return a + b },
		func(_, _, _ float32) float32 { return 1 },
		func(_, _, _ float32) float32 { return 1 })
}

// Sub returns the element-wise difference of two broadcastable tensors.
func Sub(x0, x1 *Tensor) *Tensor {
	return binary("Sub", x0, x1,
		func(a, b float32) float32 { return a - b },
		func(_, _, _ float32) float32 { return 1 },
		func(_, _, _ float32) float32 { return -1 })
}

// Mul returns the element-wise product of two broadcastable tensors.
func Mul(x0, x1 *Tensor) *Tensor {
	return binary("Mul", x0, x1,
		func(a, b float32) float32 { return a * b },
		func(_, b, _ float32) float32 { return b },
		func(a, _, _ float32) float32 { return a })
}

// Div returns the element-wise quotient of two broadcastable tensors.
func Div(x0, x1 *Tensor) *Tensor {
	return binary("Div", x0, x1,
		func(a, b float32) float32 { return a / b },
		func(_, b, _ float32) float32 { return 1 / b },
		func(a, b, _ float32) float32 { return -a / (b * b) })
}

// Square returns the element-wise square of a tensor.
func Square(x *Tensor) *Tensor {
	return apply(&square{}, x)
}

// Sum returns the sum of all elements in a tensor.
func Sum(x *Tensor) *Tensor {
	return apply(&sum{}, x)
}

// Mean returns the mean of all elements in a tensor.
func Mean(x *Tensor) *Tensor {
	return Div(Sum(x), NewScalar(float32(len(x.data))))
}

// MatMul returns the product of two matrices.
func MatMul(x, y *Tensor) *Tensor {
	return apply(&matMul{}, x, y)
}

// Concat joins matrices with the same number of rows along columns.
func Concat(xs ...*Tensor) *Tensor {
	if len(xs) == 0 {
		panic("Concat requires at least one tensor")
	}
	for _, x := range xs {
		if len(x.shape) != 2 || x.shape[0] != xs[0].shape[0] {
			panic(fmt.Sprintf("Concat requires matrices with %d rows, but got %v", xs[0].shape[0], x.shape))
		}
	}
	return apply(&concat{}, xs...)
}

func Sigmoid(x *Tensor) *Tensor {
	return apply(&sigmoid{}, x)
}

func ReLu(x *Tensor) *Tensor {
	return apply(&relu{}, x)
}

// BatchNorm normalizes columns of x by batch statistics and applies the affine
// transform gamma * x + beta. It returns the output together with the batch
// mean and biased variance.
func BatchNorm(x, gamma, beta *Tensor, eps float32) (*Tensor, []float32, []float32) {
	if len(x.shape) != 2 {
		panic(fmt.Sprintf("BatchNorm requires a 2D tensor, but got %v", x.shape))
	}
	f := &batchNorm{eps: eps}
	y := apply(f, x, gamma, beta)
	return y, f.mean, f.var_
}

// BCELoss returns the mean binary cross entropy between predicted
// probabilities and targets of the same shape.
func BCELoss(p, target *Tensor) *Tensor {
	if len(p.data) != len(target.data) {
		panic(fmt.Sprintf("BCELoss: predictions %v and targets %v differ in size", p.shape, target.shape))
	}
	return Mean(apply(&binaryCrossEntropy{}, p, target))
}
