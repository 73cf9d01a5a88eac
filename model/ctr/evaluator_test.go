// Copyright 2021 gorse Project Authors
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
	"errors"
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
)

func TestPrecision(t *testing.T) {
	posPrediction := []float32{0.9, 0.8, 0.7}
	negPrediction := []float32{0.6}
	precision := Precision(posPrediction, negPrediction)
	assert.Equal(t, float32(0.75), precision)
	precision = Precision(nil, nil)
	assert.Zero(t, precision)
}

func TestRecall(t *testing.T) {
	posPrediction := []float32{0.9, 0.1, 0.2, 0.5}
	recall := Recall(posPrediction, nil)
	assert.Equal(t, float32(0.25), recall)
	recall = Recall(nil, nil)
	assert.Zero(t, recall)
}

func TestAccuracy(t *testing.T) {
	posPrediction := []float32{0.9, 0.8, 0.1, 0.2}
	negPrediction := []float32{0.9, 0.8, 0.1, 0.5}
	accuracy := Accuracy(posPrediction, negPrediction)
	assert.Equal(t, float32(0.5), accuracy)
	accuracy = Accuracy(nil, nil)
	assert.Zero(t, accuracy)
}

func TestLogLoss(t *testing.T) {
	logLoss := LogLoss([]float32{0.5}, []float32{0.5})
	assert.InDelta(t, math32.Ln2, logLoss, 1e-6)
	// log(0) is clamped
	logLoss = LogLoss([]float32{0}, nil)
	assert.InDelta(t, 100, logLoss, 1e-6)
	assert.Zero(t, LogLoss(nil, nil))
}

func TestAUC(t *testing.T) {
	auc, err := AUC([]float32{0.9, 0.8, 0.7}, []float32{0.1, 0.2, 0.3})
	assert.NoError(t, err)
	assert.Equal(t, float32(1), auc)
	auc, err = AUC([]float32{0.1, 0.2}, []float32{0.8, 0.9})
	assert.NoError(t, err)
	assert.Equal(t, float32(0), auc)
	// 3 of 4 pairs ordered
	auc, err = AUC([]float32{0.9, 0.4}, []float32{0.5, 0.1})
	assert.NoError(t, err)
	assert.Equal(t, float32(0.75), auc)
	// input is not modified
	pos := []float32{0.9, 0.4}
	_, _ = AUC(pos, []float32{0.5})
	assert.Equal(t, []float32{0.9, 0.4}, pos)
}

func TestAUCTies(t *testing.T) {
	auc, err := AUC([]float32{0.5, 0.5}, []float32{0.5, 0.5})
	assert.NoError(t, err)
	assert.Equal(t, float32(0.5), auc)
	// (1 + 0.5) / 2
	auc, err = AUC([]float32{0.5, 0.7}, []float32{0.5})
	assert.NoError(t, err)
	assert.Equal(t, float32(0.75), auc)
}

func TestAUCSingleClass(t *testing.T) {
	_, err := AUC([]float32{0.9, 0.8}, nil)
	assert.True(t, errors.Is(err, ErrUndefinedMetric))
	_, err = AUC(nil, []float32{0.1})
	assert.True(t, errors.Is(err, ErrUndefinedMetric))
}
