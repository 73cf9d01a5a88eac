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
	"context"
	"strconv"
	"strings"

	"github.com/c-bata/goptuna"
	"github.com/gorse-io/deepctr/common/nn"
	"github.com/gorse-io/deepctr/model"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const (
	OptimizerAdam = "adam"
	OptimizerSGD  = "sgd"
)

type Score struct {
	Precision float32
	Recall    float32
	Accuracy  float32
	AUC       float32
	LogLoss   float32
}

func (score Score) ZapFields() []zap.Field {
	return []zap.Field{
		zap.Float32("Accuracy", score.Accuracy),
		zap.Float32("Precision", score.Precision),
		zap.Float32("Recall", score.Recall),
		zap.Float32("AUC", score.AUC),
		zap.Float32("LogLoss", score.LogLoss),
	}
}

func (score Score) BetterThan(s Score) bool {
	return score.AUC > s.AUC
}

// Recorder receives the result of every epoch.
type Recorder interface {
	Record(ctx context.Context, epoch int, loss float32, score Score) error
}

type FitConfig struct {
	Verbose  int
	Patience int
	Recorder Recorder
}

func NewFitConfig() *FitConfig {
	return &FitConfig{
		Verbose:  10,
		Patience: 0,
	}
}

func (config *FitConfig) SetVerbose(verbose int) *FitConfig {
	config.Verbose = verbose
	return config
}

func (config *FitConfig) SetPatience(patience int) *FitConfig {
	config.Patience = patience
	return config
}

func (config *FitConfig) SetRecorder(recorder Recorder) *FitConfig {
	config.Recorder = recorder
	return config
}

func (config *FitConfig) LoadDefaultIfNil() *FitConfig {
	if config == nil {
		return NewFitConfig()
	}
	return config
}

// TrainParams are the hyper-parameters consumed by Trainer.
type TrainParams struct {
	NEpochs   int
	BatchSize int
	Lr        float32
	Reg       float32
	Optimizer string
	Momentum  float32
}

func (p TrainParams) Validate() error {
	if p.NEpochs <= 0 {
		return errors.NotValidf("number of epochs %d", p.NEpochs)
	}
	if p.BatchSize <= 1 {
		return errors.NotValidf("batch size %d", p.BatchSize)
	}
	if p.Lr <= 0 {
		return errors.NotValidf("learning rate %v", p.Lr)
	}
	if p.Reg < 0 {
		return errors.NotValidf("weight decay %v", p.Reg)
	}
	if p.Momentum < 0 || p.Momentum >= 1 {
		return errors.NotValidf("momentum %v", p.Momentum)
	}
	return nil
}

// Model is a click-through-rate model trained by Trainer.
type Model interface {
	model.Model
	// Name returns the model type, e.g. DCN.
	Name() string
	// Init validates hyper-parameters and creates weights for rows of
	// fieldDim features.
	Init(fieldDim int) error
	// FieldDim returns the input width, or zero before Init.
	FieldDim() int
	// Forward maps (batch, field_dim) to click probabilities (batch, 1).
	Forward(x *nn.Tensor) *nn.Tensor
	Parameters() []*nn.Tensor
	SetTraining(training bool)
	// Predict returns click probabilities in evaluation mode.
	Predict(x [][]float32) []float32
	TrainParams() TrainParams
	SuggestParams(trial goptuna.Trial) model.Params
}

// NewModel creates a model by name.
func NewModel(name string, params model.Params) (Model, error) {
	switch strings.ToLower(name) {
	case "dcn":
		return NewDCN(params), nil
	case "nfm":
		return NewNFM(params), nil
	}
	return nil, errors.NotSupportedf("model %s", name)
}

// BaseModel holds hyper-parameters shared by every model.
type BaseModel struct {
	model.BaseModel
	fieldDim     int
	nEpochs      int
	batchSize    int
	lr           float32
	reg          float32
	optimizer    string
	momentum     float32
	hiddenLayers []int
	dropout      float32
}

func (b *BaseModel) setParams(params model.Params, defaults TrainParams, hiddenLayers []int, dropout float32) {
	b.BaseModel.SetParams(params)
	b.nEpochs = b.Params.GetInt(model.NEpochs, defaults.NEpochs)
	b.batchSize = b.Params.GetInt(model.BatchSize, defaults.BatchSize)
	b.lr = b.Params.GetFloat32(model.Lr, defaults.Lr)
	b.reg = b.Params.GetFloat32(model.Reg, defaults.Reg)
	b.optimizer = b.Params.GetString(model.Optimizer, defaults.Optimizer)
	b.momentum = b.Params.GetFloat32(model.Momentum, defaults.Momentum)
	b.hiddenLayers = b.Params.GetIntSlice(model.HiddenLayers, hiddenLayers)
	b.dropout = b.Params.GetFloat32(model.Dropout, dropout)
}

func (b *BaseModel) validate(fieldDim int) error {
	if fieldDim <= 0 {
		return errors.NotValidf("field dimension %d", fieldDim)
	}
	if len(b.hiddenLayers) == 0 {
		return errors.NotValidf("empty hidden layers")
	}
	for _, dim := range b.hiddenLayers {
		if dim <= 0 {
			return errors.NotValidf("hidden layer width %d", dim)
		}
	}
	if b.dropout < 0 || b.dropout >= 1 {
		return errors.NotValidf("dropout %v", b.dropout)
	}
	return nil
}

func (b *BaseModel) FieldDim() int {
	return b.fieldDim
}

func (b *BaseModel) TrainParams() TrainParams {
	return TrainParams{
		NEpochs:   b.nEpochs,
		BatchSize: b.batchSize,
		Lr:        b.lr,
		Reg:       b.reg,
		Optimizer: b.optimizer,
		Momentum:  b.momentum,
	}
}

// predict runs a forward pass in evaluation mode.
func predict(m Model, x [][]float32) []float32 {
	if len(x) == 0 {
		return nil
	}
	m.SetTraining(false)
	y := m.Forward(nn.NewMatrix(x))
	return append([]float32{}, y.Data()...)
}

var hiddenLayerChoices = []string{"256,128,64", "128,64,32", "128,64", "64,32", "64"}

func suggestHiddenLayers(trial goptuna.Trial) []int {
	choice := lo.Must(trial.SuggestCategorical(string(model.HiddenLayers), hiddenLayerChoices))
	return ParseHiddenLayers(choice)
}

// ParseHiddenLayers parses comma separated layer widths. Invalid widths are
// returned as zero so that validation rejects them.
func ParseHiddenLayers(s string) []int {
	return lo.FilterMap(strings.Split(s, ","), func(field string, _ int) (int, bool) {
		field = strings.TrimSpace(field)
		if field == "" {
			return 0, false
		}
		dim, err := strconv.Atoi(field)
		if err != nil {
			return 0, true
		}
		return dim, true
	})
}
