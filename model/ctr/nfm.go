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
	"github.com/c-bata/goptuna"
	"github.com/gorse-io/deepctr/common/nn"
	"github.com/gorse-io/deepctr/model"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

// NFM is the Neural Factorization Machine. Pooled pairwise interactions go
// through a deep network whose score is added to a linear term.
//
//	He, Xiangnan, and Tat-Seng Chua. "Neural factorization machines for
//	sparse predictive analytics." SIGIR 2017.
type NFM struct {
	BaseModel
	embedDim int
	// layers
	linear *nn.LinearLayer
	v      *nn.Tensor
	norm   *nn.BatchNorm1d
	drop   *nn.DropoutLayer
	deep   *DeepNetwork
}

func NewNFM(params model.Params) *NFM {
	nfm := new(NFM)
	nfm.SetParams(params)
	return nfm
}

func (nfm *NFM) Name() string {
	return "NFM"
}

func (nfm *NFM) SetParams(params model.Params) {
	nfm.setParams(params, TrainParams{
		NEpochs:   100,
		BatchSize: 256,
		Lr:        1e-2,
		Reg:       1e-6,
		Optimizer: OptimizerAdam,
	}, []int{256, 128, 64}, 0.5)
	nfm.embedDim = nfm.Params.GetInt(model.EmbedDim, 64)
}

func (nfm *NFM) SuggestParams(trial goptuna.Trial) model.Params {
	return model.Params{
		model.Lr:           lo.Must(trial.SuggestLogFloat(string(model.Lr), 1e-3, 1e-1)),
		model.Reg:          lo.Must(trial.SuggestLogFloat(string(model.Reg), 1e-7, 1e-3)),
		model.Dropout:      lo.Must(trial.SuggestDiscreteFloat(string(model.Dropout), 0, 0.5, 0.1)),
		model.EmbedDim:     int(lo.Must(trial.SuggestDiscreteFloat(string(model.EmbedDim), 16, 128, 16))),
		model.HiddenLayers: suggestHiddenLayers(trial),
	}
}

func (nfm *NFM) Init(fieldDim int) error {
	if err := nfm.validate(fieldDim); err != nil {
		return errors.Trace(err)
	}
	if nfm.embedDim <= 0 {
		return errors.NotValidf("embedding dimension %d", nfm.embedDim)
	}
	nfm.BaseModel.SetParams(nfm.Params)
	rng := nfm.GetRandomGenerator().Rand
	nfm.fieldDim = fieldDim
	nfm.linear = nn.NewLinear(rng, fieldDim, 1)
	nfm.v = nn.XavierNormal(rng, fieldDim, nfm.embedDim)
	nfm.norm = nn.NewBatchNorm1d(nfm.embedDim)
	nfm.drop = nn.NewDropout(rng, nfm.dropout)
	nfm.deep = NewDeepNetwork(rng, nfm.embedDim, nfm.hiddenLayers, nfm.dropout, true)
	return nil
}

func (nfm *NFM) Forward(x *nn.Tensor) *nn.Tensor {
	h := nfm.drop.Forward(nfm.norm.Forward(BiInteraction(x, nfm.v)))
	return nn.Sigmoid(nn.Add(nfm.linear.Forward(x), nfm.deep.Forward(h)))
}

func (nfm *NFM) Parameters() []*nn.Tensor {
	var params []*nn.Tensor
	params = append(params, nfm.linear.Parameters()...)
	params = append(params, nfm.v)
	params = append(params, nfm.norm.Parameters()...)
	params = append(params, nfm.deep.Parameters()...)
	return params
}

func (nfm *NFM) SetTraining(training bool) {
	nfm.norm.SetTraining(training)
	nfm.drop.SetTraining(training)
	nn.SetTraining(nfm.deep, training)
}

func (nfm *NFM) Predict(x [][]float32) []float32 {
	return predict(nfm, x)
}

func (nfm *NFM) Clear() {
	nfm.fieldDim = 0
	nfm.linear = nil
	nfm.v = nil
	nfm.norm = nil
	nfm.drop = nil
	nfm.deep = nil
}
