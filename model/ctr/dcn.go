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

// DCN is the Deep & Cross Network. A deep network and a cross network read
// the same input and a linear head scores their concatenated outputs.
//
//	Wang, Ruoxi, et al. "Deep & cross network for ad click predictions."
//	Proceedings of the ADKDD'17. 2017.
type DCN struct {
	BaseModel
	crossLayers int
	residual    string
	outputLayer bool
	// layers
	deep  *DeepNetwork
	cross *CrossNetwork
	head  *nn.LinearLayer
}

func NewDCN(params model.Params) *DCN {
	dcn := new(DCN)
	dcn.SetParams(params)
	return dcn
}

func (dcn *DCN) Name() string {
	return "DCN"
}

func (dcn *DCN) SetParams(params model.Params) {
	dcn.setParams(params, TrainParams{
		NEpochs:   50,
		BatchSize: 128,
		Lr:        1e-3,
		Reg:       1e-1,
		Optimizer: OptimizerAdam,
	}, []int{128, 64, 32}, 0.3)
	dcn.crossLayers = dcn.Params.GetInt(model.CrossLayers, 3)
	dcn.residual = dcn.Params.GetString(model.CrossResidual, CrossResidualInput)
	dcn.outputLayer = dcn.Params.GetBool(model.OutputLayer, false)
}

func (dcn *DCN) SuggestParams(trial goptuna.Trial) model.Params {
	return model.Params{
		model.Lr:           lo.Must(trial.SuggestLogFloat(string(model.Lr), 1e-4, 1e-2)),
		model.Reg:          lo.Must(trial.SuggestLogFloat(string(model.Reg), 1e-6, 1e-1)),
		model.Dropout:      lo.Must(trial.SuggestDiscreteFloat(string(model.Dropout), 0, 0.5, 0.1)),
		model.CrossLayers:  lo.Must(trial.SuggestInt(string(model.CrossLayers), 1, 4)),
		model.HiddenLayers: suggestHiddenLayers(trial),
	}
}

func (dcn *DCN) Init(fieldDim int) error {
	if err := dcn.validate(fieldDim); err != nil {
		return errors.Trace(err)
	}
	if dcn.crossLayers < 0 {
		return errors.NotValidf("number of cross layers %d", dcn.crossLayers)
	}
	if dcn.residual != CrossResidualInput && dcn.residual != CrossResidualLayer {
		return errors.NotValidf("cross residual %q", dcn.residual)
	}
	dcn.BaseModel.SetParams(dcn.Params)
	rng := dcn.GetRandomGenerator().Rand
	dcn.fieldDim = fieldDim
	dcn.deep = NewDeepNetwork(rng, fieldDim, dcn.hiddenLayers, dcn.dropout, dcn.outputLayer)
	dcn.cross = NewCrossNetwork(rng, fieldDim, dcn.crossLayers, dcn.residual)
	dcn.head = nn.NewLinear(rng, fieldDim+dcn.deep.OutputDim(), 1)
	return nil
}

func (dcn *DCN) Forward(x *nn.Tensor) *nn.Tensor {
	return nn.Sigmoid(dcn.head.Forward(nn.Concat(dcn.deep.Forward(x), dcn.cross.Forward(x))))
}

func (dcn *DCN) Parameters() []*nn.Tensor {
	var params []*nn.Tensor
	params = append(params, dcn.deep.Parameters()...)
	params = append(params, dcn.cross.Parameters()...)
	params = append(params, dcn.head.Parameters()...)
	return params
}

func (dcn *DCN) SetTraining(training bool) {
	nn.SetTraining(dcn.deep, training)
}

func (dcn *DCN) Predict(x [][]float32) []float32 {
	return predict(dcn, x)
}

func (dcn *DCN) Clear() {
	dcn.fieldDim = 0
	dcn.deep = nil
	dcn.cross = nil
	dcn.head = nil
}
