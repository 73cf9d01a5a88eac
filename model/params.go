// Copyright 2020 gorse Project Authors
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

package model

import (
	"encoding/json"
	"reflect"

	"github.com/gorse-io/deepctr/common/log"
	"go.uber.org/zap"
)

/* ParamName */

// ParamName is the type of hyper-parameter names.
type ParamName string

// Predefined hyper-parameter names
const (
	Lr            ParamName = "Lr"            // learning rate
	Reg           ParamName = "Reg"           // weight decay
	NEpochs       ParamName = "NEpochs"       // number of epochs
	BatchSize     ParamName = "BatchSize"     // mini-batch size
	EmbedDim      ParamName = "EmbedDim"      // width of factorization embeddings
	HiddenLayers  ParamName = "HiddenLayers"  // widths of hidden layers
	Dropout       ParamName = "Dropout"       // dropout probability
	CrossLayers   ParamName = "CrossLayers"   // number of cross layers
	CrossResidual ParamName = "CrossResidual" // residual term of cross layers
	OutputLayer   ParamName = "OutputLayer"   // end the deep network with a scoring layer
	Optimizer     ParamName = "Optimizer"     // adam or sgd
	Momentum      ParamName = "Momentum"      // momentum of sgd
	RandomState   ParamName = "RandomState"   // random state (seed)
)

// Params stores hyper-parameters for an model. It is a map between strings
// (names) and interface{}s (values). For example, hyper-parameters for DCN
// is given by:
//
//	model.Params{
//		model.Lr:           0.001,
//		model.NEpochs:      50,
//		model.HiddenLayers: []int{128, 64, 32},
//		model.CrossLayers:  3,
//	}
type Params map[ParamName]interface{}

// Copy hyper-parameters.
func (parameters Params) Copy() Params {
	newParams := make(Params)
	for k, v := range parameters {
		newParams[k] = v
	}
	return newParams
}

func typeMismatch(method string, name ParamName, val any) {
	log.Logger().Error("unexpected type of hyper-parameter",
		zap.String("method", method),
		zap.String("name", string(name)),
		zap.Stringer("type", reflect.TypeOf(val)))
}

// GetInt gets a integer parameter by name. Returns _default if not exists or type doesn't match.
func (parameters Params) GetInt(name ParamName, _default int) int {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case int:
			return val
		default:
			typeMismatch("GetInt", name, val)
		}
	}
	return _default
}

// GetInt64 gets a int64 parameter by name. Returns _default if not exists or type doesn't match. The
// type will be converted if given int.
func (parameters Params) GetInt64(name ParamName, _default int64) int64 {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case int64:
			return val
		case int:
			return int64(val)
		default:
			typeMismatch("GetInt64", name, val)
		}
	}
	return _default
}

// GetBool gets a bool parameter by name. Returns _default if not exists or type doesn't match.
func (parameters Params) GetBool(name ParamName, _default bool) bool {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case bool:
			return val
		default:
			typeMismatch("GetBool", name, val)
		}
	}
	return _default
}

func (parameters Params) GetFloat32(name ParamName, _default float32) float32 {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case float32:
			return val
		case float64:
			return float32(val)
		case int:
			return float32(val)
		default:
			typeMismatch("GetFloat32", name, val)
		}
	}
	return _default
}

// GetString gets a string parameter. Returns _default if not exists or type doesn't match.
func (parameters Params) GetString(name ParamName, _default string) string {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case string:
			return val
		default:
			typeMismatch("GetString", name, val)
		}
	}
	return _default
}

// GetIntSlice gets a list of integers. Returns _default if not exists or type doesn't match.
func (parameters Params) GetIntSlice(name ParamName, _default []int) []int {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case []int:
			return val
		default:
			typeMismatch("GetIntSlice", name, val)
		}
	}
	return _default
}

func (parameters Params) Overwrite(params Params) Params {
	merged := make(Params)
	for k, v := range parameters {
		merged[k] = v
	}
	for k, v := range params {
		merged[k] = v
	}
	return merged
}

// ToString encodes hyper-parameters as JSON.
func (parameters Params) ToString() string {
	b, err := json.Marshal(parameters)
	if err != nil {
		log.Logger().Fatal("failed to marshal hyper-parameters", zap.Error(err))
	}
	return string(b)
}
