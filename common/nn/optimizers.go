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
	"github.com/chewxy/math32"
)

// Optimizer updates parameters from the gradients left by Backward.
type Optimizer interface {
	SetWeightDecay(rate float32)
	ZeroGrad()
	Step()
}

type baseOptimizer struct {
	params []*Tensor
	wd     float32
}

func (o *baseOptimizer) ZeroGrad() {
	for _, p := range o.params {
		p.grad = nil
	}
}

// SetWeightDecay adds wd * param to every gradient before the update.
func (o *baseOptimizer) SetWeightDecay(wd float32) {
	o.wd = wd
}

// step calls update with the decayed gradient of every parameter that
// received one.
func (o *baseOptimizer) step(update func(k int, p *Tensor, g []float32)) {
	for k, p := range o.params {
		if p.grad == nil {
			continue
		}
		g := make([]float32, len(p.data))
		for i := range g {
			g[i] = p.grad.data[i] + o.wd*p.data[i]
		}
		update(k, p, g)
	}
}

// SGD is stochastic gradient descent with optional momentum.
type SGD struct {
	baseOptimizer
	lr       float32
	momentum float32
	velocity [][]float32
}

func NewSGD(params []*Tensor, lr float32) *SGD {
	return &SGD{
		baseOptimizer: baseOptimizer{params: params},
		lr:            lr,
		velocity:      make([][]float32, len(params)),
	}
}

// SetMomentum keeps a velocity v = momentum * v + grad and steps along v.
func (s *SGD) SetMomentum(momentum float32) *SGD {
	s.momentum = momentum
	return s
}

func (s *SGD) Step() {
	s.step(func(k int, p *Tensor, g []float32) {
		if s.momentum > 0 {
			if s.velocity[k] == nil {
				s.velocity[k] = make([]float32, len(p.data))
			}
			v := s.velocity[k]
			for i := range g {
				v[i] = s.momentum*v[i] + g[i]
				g[i] = v[i]
			}
		}
		for i := range p.data {
			p.data[i] -= s.lr * g[i]
		}
	})
}

// Adam keeps bias-corrected first and second moments of every parameter.
type Adam struct {
	baseOptimizer
	lr    float32
	beta1 float32
	beta2 float32
	eps   float32
	m     [][]float32
	v     [][]float32
	t     int
}

func NewAdam(params []*Tensor, lr float32) *Adam {
	return &Adam{
		baseOptimizer: baseOptimizer{params: params},
		lr:            lr,
		beta1:         0.9,
		beta2:         0.999,
		eps:           1e-8,
		m:             make([][]float32, len(params)),
		v:             make([][]float32, len(params)),
	}
}

func (a *Adam) Step() {
	a.t++
	bias1 := 1 - math32.Pow(a.beta1, float32(a.t))
	bias2 := 1 - math32.Pow(a.beta2, float32(a.t))
	a.step(func(k int, p *Tensor, g []float32) {
		if a.m[k] == nil {
			a.m[k] = make([]float32, len(p.data))
			a.v[k] = make([]float32, len(p.data))
		}
		m, v := a.m[k], a.v[k]
		for i := range g {
			m[i] = a.beta1*m[i] + (1-a.beta1)*g[i]
			v[i] = a.beta2*v[i] + (1-a.beta2)*g[i]*g[i]
			p.data[i] -= a.lr * (m[i] / bias1) / (math32.Sqrt(v[i]/bias2) + a.eps)
		}
	})
}
