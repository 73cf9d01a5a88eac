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
	"fmt"
	"sort"

	"github.com/chewxy/math32"
	"github.com/gorse-io/deepctr/dataset"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"modernc.org/sortutil"
)

var (
	// ErrNumerical is returned when the loss becomes NaN or infinite.
	ErrNumerical = errors.New("numerical error")
	// ErrUndefinedMetric is returned when a metric is not defined for the
	// given samples, e.g. AUC of a single class.
	ErrUndefinedMetric = errors.New("undefined metric")
)

const (
	threshold     = 0.5
	evaluateBatch = 1024
)

// Evaluate scores a model on a dataset.
func Evaluate(m Model, testSet *dataset.Dataset) (Score, error) {
	if m.FieldDim() != testSet.FieldDim() {
		return Score{}, errors.NotValidf("dataset with %d fields for model with %d fields", testSet.FieldDim(), m.FieldDim())
	}
	var posPrediction, negPrediction []float32
	for _, indices := range testSet.Batches(evaluateBatch, nil) {
		x, y := testSet.Batch(indices)
		for i, p := range m.Predict(x) {
			if y[i] > 0 {
				posPrediction = append(posPrediction, p)
			} else {
				negPrediction = append(negPrediction, p)
			}
		}
	}
	score := Score{
		Precision: Precision(posPrediction, negPrediction),
		Recall:    Recall(posPrediction, negPrediction),
		Accuracy:  Accuracy(posPrediction, negPrediction),
		LogLoss:   LogLoss(posPrediction, negPrediction),
	}
	auc, err := AUC(posPrediction, negPrediction)
	if err != nil {
		return score, err
	}
	score.AUC = auc
	return score, nil
}

func Precision(posPrediction, negPrediction []float32) float32 {
	var tp, fp float32
	for _, p := range posPrediction {
		if p > threshold { // true positive
			tp++
		}
	}
	for _, p := range negPrediction {
		if p > threshold { // false positive
			fp++
		}
	}
	if tp+fp == 0 {
		return 0
	}
	return tp / (tp + fp)
}

func Recall(posPrediction, _ []float32) float32 {
	var tp, fn float32
	for _, p := range posPrediction {
		if p > threshold { // true positive
			tp++
		} else { // false negative
			fn++
		}
	}
	if tp+fn == 0 {
		return 0
	}
	return tp / (tp + fn)
}

func Accuracy(posPrediction, negPrediction []float32) float32 {
	var correct float32
	for _, p := range posPrediction {
		if p > threshold {
			correct++
		}
	}
	for _, p := range negPrediction {
		if p <= threshold {
			correct++
		}
	}
	if len(posPrediction)+len(negPrediction) == 0 {
		return 0
	}
	return correct / float32(len(posPrediction)+len(negPrediction))
}

// LogLoss is the mean binary cross entropy of predictions.
func LogLoss(posPrediction, negPrediction []float32) float32 {
	n := len(posPrediction) + len(negPrediction)
	if n == 0 {
		return 0
	}
	var sum float32
	for _, p := range posPrediction {
		sum -= math32.Max(math32.Log(p), -100)
	}
	for _, p := range negPrediction {
		sum -= math32.Max(math32.Log(1-p), -100)
	}
	return sum / float32(n)
}

// AUC is the probability that a random positive is ranked above a random
// negative, counting ties as one half.
func AUC(posPrediction, negPrediction []float32) (float32, error) {
	if len(posPrediction) == 0 || len(negPrediction) == 0 {
		return 0, fmt.Errorf("%w: AUC of %d positive and %d negative samples",
			ErrUndefinedMetric, len(posPrediction), len(negPrediction))
	}
	pos := lo.Map(posPrediction, func(p float32, _ int) float32 { return p })
	neg := lo.Map(negPrediction, func(p float32, _ int) float32 { return p })
	sort.Sort(sortutil.Float32Slice(pos))
	sort.Sort(sortutil.Float32Slice(neg))
	var sum float64
	var less, lessOrEqual int
	for _, p := range pos {
		// count negative samples with less prediction than current positive sample
		for less < len(neg) && neg[less] < p {
			less++
		}
		for lessOrEqual < len(neg) && neg[lessOrEqual] <= p {
			lessOrEqual++
		}
		sum += float64(less) + float64(lessOrEqual-less)/2
	}
	return float32(sum / float64(len(pos)*len(neg))), nil
}
