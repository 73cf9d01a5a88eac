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
	"context"
	"testing"

	"github.com/c-bata/goptuna"
	"github.com/c-bata/goptuna/tpe"
	"github.com/gorse-io/deepctr/dataset"
	"github.com/gorse-io/deepctr/model"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

// mockFit scores a model by its hyper-parameters without training.
func mockFit(_ context.Context, m Model, _, _ *dataset.Dataset, _ *FitConfig) (Score, error) {
	score := m.GetParams().GetFloat32(model.Dropout, 0)
	score += float32(len(m.GetParams().GetIntSlice(model.HiddenLayers, nil)))
	return Score{AUC: score}, nil
}

func TestTPE(t *testing.T) {
	search := NewModelSearch(context.Background(), map[string]ModelCreator{
		"dcn": func() Model { return NewDCN(nil) },
		"nfm": func() Model { return NewNFM(nil) },
	}, nil, nil, nil)
	search.fit = mockFit
	study, err := goptuna.CreateStudy("TestTPE",
		goptuna.StudyOptionDirection(goptuna.StudyDirectionMaximize),
		goptuna.StudyOptionSampler(tpe.NewSampler()))
	assert.NoError(t, err)
	err = study.Optimize(search.Objective, 10)
	assert.NoError(t, err)
	v, _ := study.GetBestValue()
	result := search.Result()
	assert.Contains(t, []string{"dcn", "nfm"}, result.Type)
	assert.InDelta(t, v, float64(result.Score.AUC), 1e-6)
	// parameters of the best trial are kept
	best, err := mockFit(context.Background(), newModelFromResult(result), nil, nil, nil)
	assert.NoError(t, err)
	assert.Equal(t, result.Score, best)
}

func newModelFromResult(result SearchResult) Model {
	m, _ := NewModel(result.Type, result.Params)
	return m
}

func TestOptimize(t *testing.T) {
	search := NewModelSearch(context.Background(), map[string]ModelCreator{
		"dcn": func() Model { return NewDCN(nil) },
	}, nil, nil, nil)
	search.fit = mockFit
	result, err := search.Optimize("TestOptimize", 5)
	assert.NoError(t, err)
	assert.Equal(t, "dcn", result.Type)
	assert.Contains(t, result.Params, model.CrossLayers)
	assert.Greater(t, result.Score.AUC, float32(0))
}

func TestSearchFitError(t *testing.T) {
	search := NewModelSearch(context.Background(), map[string]ModelCreator{
		"dcn": func() Model { return NewDCN(nil) },
	}, nil, nil, nil)
	search.fit = func(context.Context, Model, *dataset.Dataset, *dataset.Dataset, *FitConfig) (Score, error) {
		return Score{}, errors.New("fit failed")
	}
	_, err := search.Optimize("TestSearchFitError", 1)
	assert.Error(t, err)
}

func TestSearchNoModel(t *testing.T) {
	search := NewModelSearch(context.Background(), nil, nil, nil, nil)
	_, err := search.Optimize("TestSearchNoModel", 1)
	assert.Error(t, err)
}

func TestSearchTraining(t *testing.T) {
	trainSet, _, validSet, err := dataset.Synthetic(200, 5, 0).Split(0.8, 0.5, 0)
	assert.NoError(t, err)
	search := NewModelSearch(context.Background(), map[string]ModelCreator{
		"nfm": func() Model {
			return NewNFM(model.Params{model.NEpochs: 1, model.BatchSize: 32})
		},
	}, trainSet, validSet, NewFitConfig().SetVerbose(0))
	result, err := search.Optimize("TestSearchTraining", 2)
	assert.NoError(t, err)
	assert.Equal(t, "nfm", result.Type)
	assert.Equal(t, 1, result.Params.GetInt(model.NEpochs, 0))
}
