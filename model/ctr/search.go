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
	"sort"
	"sync"

	"github.com/c-bata/goptuna"
	"github.com/c-bata/goptuna/tpe"
	"github.com/gorse-io/deepctr/common/log"
	"github.com/gorse-io/deepctr/dataset"
	"github.com/gorse-io/deepctr/model"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

type ModelCreator func() Model

// SearchResult is the best trial of a model search.
type SearchResult struct {
	Type   string
	Params model.Params
	Score  Score
}

// ModelSearch is a goptuna objective that trains a model for each trial and
// keeps the one with the highest validation AUC.
type ModelSearch struct {
	ctx           context.Context
	modelCreators map[string]ModelCreator
	modelTypes    []string
	trainSet      *dataset.Dataset
	validSet      *dataset.Dataset
	config        *FitConfig
	fit           func(ctx context.Context, m Model, trainSet, validSet *dataset.Dataset, config *FitConfig) (Score, error)

	mu     sync.Mutex
	result SearchResult
}

func NewModelSearch(ctx context.Context, models map[string]ModelCreator, trainSet, validSet *dataset.Dataset, config *FitConfig) *ModelSearch {
	modelTypes := lo.Keys(models)
	sort.Strings(modelTypes)
	return &ModelSearch{
		ctx:           ctx,
		modelCreators: models,
		modelTypes:    modelTypes,
		trainSet:      trainSet,
		validSet:      validSet,
		config:        config,
		fit: func(ctx context.Context, m Model, trainSet, validSet *dataset.Dataset, config *FitConfig) (Score, error) {
			return NewTrainer().Fit(ctx, m, trainSet, validSet, config)
		},
	}
}

func (ms *ModelSearch) Objective(trial goptuna.Trial) (float64, error) {
	if len(ms.modelCreators) == 0 {
		return 0, errors.New("no model to search")
	}
	modelType, err := trial.SuggestCategorical("Model", ms.modelTypes)
	if err != nil {
		return 0, errors.Trace(err)
	}
	m := ms.modelCreators[modelType]()
	m.SetParams(m.GetParams().Overwrite(m.SuggestParams(trial)))
	log.Logger().Info("search "+modelType, zap.String("params", m.GetParams().ToString()))
	score, err := ms.fit(ms.ctx, m, ms.trainSet, ms.validSet, ms.config)
	if err != nil {
		return 0, errors.Trace(err)
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.result.Type == "" || score.BetterThan(ms.result.Score) {
		ms.result = SearchResult{
			Type:   modelType,
			Params: m.GetParams().Copy(),
			Score:  score,
		}
	}
	return float64(score.AUC), nil
}

func (ms *ModelSearch) Result() SearchResult {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.result
}

// Optimize runs a TPE study of numTrials trials and returns the best result.
func (ms *ModelSearch) Optimize(name string, numTrials int) (SearchResult, error) {
	study, err := goptuna.CreateStudy(name,
		goptuna.StudyOptionDirection(goptuna.StudyDirectionMaximize),
		goptuna.StudyOptionSampler(tpe.NewSampler()))
	if err != nil {
		return SearchResult{}, errors.Trace(err)
	}
	if err = study.Optimize(ms.Objective, numTrials); err != nil {
		return ms.Result(), errors.Trace(err)
	}
	result := ms.Result()
	if result.Type == "" {
		return result, errors.NotFoundf("model after %d trials", numTrials)
	}
	log.Logger().Info("complete model search",
		zap.String("model", result.Type),
		zap.Float32("auc", result.Score.AUC),
		zap.Any("params", result.Params))
	return result, nil
}
