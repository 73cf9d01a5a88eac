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
	"math/rand"

	"github.com/chewxy/math32"
	"github.com/juju/errors"
)

type Layer interface {
	Parameters() []*Tensor
	Forward(x *Tensor) *Tensor
}

// modal is implemented by layers that behave differently in training and
// evaluation mode.
type modal interface {
	SetTraining(training bool)
}

// SetTraining switches a layer between training and evaluation mode. Layers
// without modes are left untouched.
func SetTraining(l Layer, training bool) {
	if m, ok := l.(modal); ok {
		m.SetTraining(training)
	}
}

type LinearLayer struct {
	W *Tensor
	B *Tensor
}

// NewLinear creates a fully connected layer y = xW + b. Weights and biases
// are drawn from U(-1/sqrt(in), 1/sqrt(in)).
func NewLinear(rng *rand.Rand, in, out int) *LinearLayer {
	bound := 1 / math32.Sqrt(float32(in))
	return &LinearLayer{
		W: Uniform(rng, -bound, bound, in, out),
		B: Uniform(rng, -bound, bound, out),
	}
}

func (l *LinearLayer) Forward(x *Tensor) *Tensor {
	return Add(MatMul(x, l.W), l.B)
}

func (l *LinearLayer) Parameters() []*Tensor {
	return []*Tensor{l.W, l.B}
}

const (
	batchNormEps      = 1e-5
	batchNormMomentum = 0.1
)

// BatchNorm1d normalizes every feature of a (batch, features) input. Batch
// statistics are used in training mode and running statistics otherwise.
type BatchNorm1d struct {
	Gamma       *Tensor
	Beta        *Tensor
	RunningMean []float32
	RunningVar  []float32
	training    bool
}

func NewBatchNorm1d(features int) *BatchNorm1d {
	runningVar := make([]float32, features)
	for i := range runningVar {
		runningVar[i] = 1
	}
	return &BatchNorm1d{
		Gamma:       Ones(features),
		Beta:        Zeros(features),
		RunningMean: make([]float32, features),
		RunningVar:  runningVar,
		training:    true,
	}
}

func (b *BatchNorm1d) SetTraining(training bool) {
	b.training = training
}

func (b *BatchNorm1d) Parameters() []*Tensor {
	return []*Tensor{b.Gamma, b.Beta}
}

func (b *BatchNorm1d) Forward(x *Tensor) *Tensor {
	if !b.training {
		features := len(b.RunningMean)
		mean := make([]float32, features)
		invStd := make([]float32, features)
		for i := range mean {
			mean[i] = b.RunningMean[i]
			invStd[i] = 1 / math32.Sqrt(b.RunningVar[i]+batchNormEps)
		}
		xHat := Mul(Sub(x, NewTensor(mean, features)), NewTensor(invStd, features))
		return Add(Mul(xHat, b.Gamma), b.Beta)
	}
	n := x.shape[0]
	if n < 2 {
		panic(errors.NotValidf("batch normalization of %d sample in training mode", n))
	}
	y, mean, variance := BatchNorm(x, b.Gamma, b.Beta, batchNormEps)
	unbias := float32(n) / float32(n-1)
	for i := range mean {
		b.RunningMean[i] = (1-batchNormMomentum)*b.RunningMean[i] + batchNormMomentum*mean[i]
		b.RunningVar[i] = (1-batchNormMomentum)*b.RunningVar[i] + batchNormMomentum*variance[i]*unbias
	}
	return y
}

// DropoutLayer zeroes elements with probability p in training mode and scales
// the rest by 1/(1-p).
type DropoutLayer struct {
	p        float32
	rng      *rand.Rand
	training bool
}

func NewDropout(rng *rand.Rand, p float32) *DropoutLayer {
	return &DropoutLayer{p: p, rng: rng, training: true}
}

func (d *DropoutLayer) SetTraining(training bool) {
	d.training = training
}

func (d *DropoutLayer) Parameters() []*Tensor {
	return nil
}

func (d *DropoutLayer) Forward(x *Tensor) *Tensor {
	if !d.training || d.p == 0 {
		return x
	}
	mask := Zeros(cloneShape(x.shape)...)
	scale := 1 / (1 - d.p)
	for i := range mask.data {
		if d.rng.Float32() >= d.p {
			mask.data[i] = scale
		}
	}
	return Mul(x, mask)
}

type reluLayer struct{}

func NewReLU() Layer {
	return &reluLayer{}
}

func (r *reluLayer) Parameters() []*Tensor {
	return nil
}

func (r *reluLayer) Forward(x *Tensor) *Tensor {
	return ReLu(x)
}

type Sequential struct {
	Layers []Layer
}

func NewSequential(layers ...Layer) *Sequential {
	return &Sequential{Layers: layers}
}

func (s *Sequential) Parameters() []*Tensor {
	var params []*Tensor
	for _, l := range s.Layers {
		params = append(params, l.Parameters()...)
	}
	return params
}

func (s *Sequential) SetTraining(training bool) {
	for _, l := range s.Layers {
		SetTraining(l, training)
	}
}

func (s *Sequential) Forward(x *Tensor) *Tensor {
	for _, l := range s.Layers {
		x = l.Forward(x)
	}
	return x
}
