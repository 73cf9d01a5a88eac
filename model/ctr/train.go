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
	"fmt"
	"time"

	"github.com/gorse-io/deepctr/common/log"
	"github.com/gorse-io/deepctr/common/monitor"
	"github.com/gorse-io/deepctr/common/nn"
	"github.com/gorse-io/deepctr/common/random"
	"github.com/gorse-io/deepctr/dataset"
	"github.com/gorse-io/deepctr/model"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// History records the learning curves of a training run.
type History struct {
	Loss      []float32 // loss of every iteration
	EpochLoss []float32 // mean loss of every epoch
	AUC       []float32 // validation AUC of every epoch
	Scores    []Score   // validation scores of every epoch
}

// Trainer fits models by mini-batch gradient descent on binary cross entropy.
type Trainer struct {
	history History
}

func NewTrainer() *Trainer {
	return &Trainer{}
}

// History returns the learning curves of the last call to Fit.
func (t *Trainer) History() History {
	return t.history
}

func newOptimizer(p TrainParams, params []*nn.Tensor) (nn.Optimizer, error) {
	switch p.Optimizer {
	case OptimizerAdam:
		return nn.NewAdam(params, p.Lr), nil
	case OptimizerSGD:
		return nn.NewSGD(params, p.Lr).SetMomentum(p.Momentum), nil
	}
	return nil, errors.NotSupportedf("optimizer %s", p.Optimizer)
}

// Fit initializes the model for the training set and trains it. The model is
// evaluated on the validation set after every epoch if the set is not empty.
// It returns the score of the last epoch.
func (t *Trainer) Fit(ctx context.Context, m Model, trainSet, validSet *dataset.Dataset, config *FitConfig) (Score, error) {
	config = config.LoadDefaultIfNil()
	t.history = History{}
	p := m.TrainParams()
	if err := p.Validate(); err != nil {
		return Score{}, errors.Trace(err)
	}
	if trainSet.Count() == 0 {
		return Score{}, errors.NotValidf("empty training set")
	}
	if validSet != nil && validSet.Count() > 0 && validSet.FieldDim() != trainSet.FieldDim() {
		return Score{}, errors.NotValidf("validation set with %d fields for training set with %d fields",
			validSet.FieldDim(), trainSet.FieldDim())
	}
	if err := m.Init(trainSet.FieldDim()); err != nil {
		return Score{}, errors.Trace(err)
	}
	optimizer, err := newOptimizer(p, m.Parameters())
	if err != nil {
		return Score{}, errors.Trace(err)
	}
	optimizer.SetWeightDecay(p.Reg)
	rng := random.New(m.GetParams().GetInt64(model.RandomState, 0))

	log.Logger().Info("fit "+m.Name(),
		zap.Int("train_set_size", trainSet.Count()),
		zap.Int("valid_set_size", lenOf(validSet)),
		zap.Int("field_dim", trainSet.FieldDim()),
		zap.Any("params", m.GetParams()))
	ctx, span := monitor.Start(ctx, m.Name()+".Fit", p.NEpochs)
	defer span.End()

	var (
		score     Score
		bestScore Score
		bestEpoch int
		iteration int
	)
	for epoch := 1; epoch <= p.NEpochs; epoch++ {
		startTime := time.Now()
		m.SetTraining(true)
		var sumLoss float32
		var numBatches int
		for _, indices := range trainSet.Batches(p.BatchSize, rng.Rand) {
			if err = ctx.Err(); err != nil {
				span.Fail(err)
				return score, fmt.Errorf("training interrupted at epoch %d: %w", epoch, err)
			}
			if len(indices) < 2 {
				log.Logger().Debug("skip mini-batch of a single sample", zap.Int("epoch", epoch))
				continue
			}
			rows, labels := trainSet.Batch(indices)
			x := nn.NewMatrix(rows)
			y := nn.NewTensor(labels, len(labels), 1)
			loss := nn.BCELoss(m.Forward(x), y)
			if !loss.IsFinite() {
				err = fmt.Errorf("%w: loss is %v at epoch %d iteration %d", ErrNumerical, loss, epoch, iteration+1)
				span.Fail(err)
				return score, err
			}
			optimizer.ZeroGrad()
			loss.Backward()
			optimizer.Step()

			iteration++
			l := loss.Data()[0]
			sumLoss += l
			numBatches++
			t.history.Loss = append(t.history.Loss, l)
			monitor.TrainLoss.WithLabelValues(m.Name()).Set(float64(l))
			monitor.TrainIterations.WithLabelValues(m.Name()).Inc()
			if config.Verbose > 0 && iteration%config.Verbose == 0 {
				log.Logger().Info("fit "+m.Name(),
					zap.Int("epoch", epoch),
					zap.Int("iter", iteration),
					zap.Float32("loss", l))
			}
		}
		var epochLoss float32
		if numBatches > 0 {
			epochLoss = sumLoss / float32(numBatches)
		}
		t.history.EpochLoss = append(t.history.EpochLoss, epochLoss)
		monitor.EpochSeconds.WithLabelValues(m.Name()).Observe(time.Since(startTime).Seconds())
		monitor.TrainEpoch.WithLabelValues(m.Name()).Set(float64(epoch))
		span.Add(1)

		if validSet == nil || validSet.Count() == 0 {
			log.Logger().Info("fit "+m.Name(),
				zap.Int("epoch", epoch),
				zap.Float32("loss", epochLoss))
			continue
		}
		score, err = Evaluate(m, validSet)
		if err != nil {
			span.Fail(err)
			return score, errors.Trace(err)
		}
		t.history.AUC = append(t.history.AUC, score.AUC)
		t.history.Scores = append(t.history.Scores, score)
		recordScore(m.Name(), score)
		log.Logger().Info("fit "+m.Name(), append([]zap.Field{
			zap.Int("epoch", epoch),
			zap.Float32("loss", epochLoss),
			zap.Duration("eval_time", time.Since(startTime)),
		}, score.ZapFields()...)...)
		if config.Recorder != nil {
			if err = config.Recorder.Record(ctx, epoch, epochLoss, score); err != nil {
				span.Fail(err)
				return score, errors.Trace(err)
			}
		}

		// early stopping
		if bestEpoch == 0 || score.BetterThan(bestScore) {
			bestScore = score
			bestEpoch = epoch
		} else if config.Patience > 0 && epoch-bestEpoch >= config.Patience {
			log.Logger().Info("early stopping "+m.Name(),
				zap.Int("epoch", epoch),
				zap.Int("best_epoch", bestEpoch),
				zap.Float32("best_auc", bestScore.AUC))
			break
		}
	}
	return score, nil
}

func recordScore(name string, score Score) {
	monitor.ValidScore.WithLabelValues(name, "auc").Set(float64(score.AUC))
	monitor.ValidScore.WithLabelValues(name, "precision").Set(float64(score.Precision))
	monitor.ValidScore.WithLabelValues(name, "recall").Set(float64(score.Recall))
	monitor.ValidScore.WithLabelValues(name, "accuracy").Set(float64(score.Accuracy))
	monitor.ValidScore.WithLabelValues(name, "log_loss").Set(float64(score.LogLoss))
}

func lenOf(d *dataset.Dataset) int {
	if d == nil {
		return 0
	}
	return d.Count()
}
