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

package history

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type StoreTestSuite struct {
	suite.Suite
	path  string
	store *Store
}

func (suite *StoreTestSuite) SetupTest() {
	var err error
	suite.path = fmt.Sprintf("sqlite://%s/history.db", suite.T().TempDir())
	suite.store, err = Open(suite.path)
	suite.NoError(err)
}

func (suite *StoreTestSuite) TearDownTest() {
	suite.NoError(suite.store.Close())
}

func (suite *StoreTestSuite) TestRun() {
	ctx := context.Background()
	id, err := suite.store.CreateRun(ctx, "DCN", map[string]any{"Lr": 0.001, "HiddenLayers": []int{64, 32}}, 800, 100)
	suite.NoError(err)
	suite.NotEmpty(id)

	run, err := suite.store.GetRun(ctx, id)
	suite.NoError(err)
	suite.Equal("DCN", run.Model)
	suite.Equal(StatusRunning, run.Status)
	suite.Equal(800, run.TrainSize)
	suite.Equal(100, run.ValidSize)
	suite.Equal(0.001, run.Params["Lr"])
	suite.Equal([]any{float64(64), float64(32)}, run.Params["HiddenLayers"])
	suite.WithinDuration(time.Now(), run.StartTime, time.Minute)
	suite.True(run.EndTime.IsZero())

	suite.NoError(suite.store.FinishRun(ctx, id, 0.8, nil))
	run, err = suite.store.GetRun(ctx, id)
	suite.NoError(err)
	suite.Equal(StatusComplete, run.Status)
	suite.Equal(float32(0.8), run.TestAUC)
	suite.False(run.EndTime.IsZero())
}

func (suite *StoreTestSuite) TestFailedRun() {
	ctx := context.Background()
	id, err := suite.store.CreateRun(ctx, "NFM", nil, 10, 0)
	suite.NoError(err)
	suite.NoError(suite.store.FinishRun(ctx, id, 0, errors.New("numerical error")))
	run, err := suite.store.GetRun(ctx, id)
	suite.NoError(err)
	suite.Equal(StatusFailed, run.Status)
	suite.Equal("numerical error", run.Error)
}

func (suite *StoreTestSuite) TestNotFound() {
	ctx := context.Background()
	_, err := suite.store.GetRun(ctx, "unknown")
	suite.True(errors.Is(err, errors.NotFound))
	err = suite.store.FinishRun(ctx, "unknown", 0, nil)
	suite.True(errors.Is(err, errors.NotFound))
}

func (suite *StoreTestSuite) TestListRuns() {
	ctx := context.Background()
	first, err := suite.store.CreateRun(ctx, "DCN", nil, 1, 1)
	suite.NoError(err)
	time.Sleep(10 * time.Millisecond)
	second, err := suite.store.CreateRun(ctx, "NFM", nil, 1, 1)
	suite.NoError(err)
	runs, err := suite.store.ListRuns(ctx)
	suite.NoError(err)
	suite.Len(runs, 2)
	suite.Equal(second, runs[0].ID)
	suite.Equal(first, runs[1].ID)
}

func (suite *StoreTestSuite) TestEpochs() {
	ctx := context.Background()
	id, err := suite.store.CreateRun(ctx, "DCN", nil, 1, 1)
	suite.NoError(err)
	for epoch := 3; epoch >= 1; epoch-- {
		suite.NoError(suite.store.AddEpoch(ctx, Epoch{
			RunID: id,
			Epoch: epoch,
			Loss:  float32(epoch) / 10,
			AUC:   0.5,
		}))
	}
	// overwrite
	suite.NoError(suite.store.AddEpoch(ctx, Epoch{RunID: id, Epoch: 2, Loss: 0.25, AUC: 0.75}))
	epochs, err := suite.store.GetEpochs(ctx, id)
	suite.NoError(err)
	suite.Len(epochs, 3)
	for i, epoch := range epochs {
		suite.Equal(i+1, epoch.Epoch)
		suite.Equal(id, epoch.RunID)
	}
	suite.Equal(float32(0.25), epochs[1].Loss)
	suite.Equal(float32(0.75), epochs[1].AUC)
	suite.Equal(float32(0.1), epochs[0].Loss)

	epochs, err = suite.store.GetEpochs(ctx, "unknown")
	suite.NoError(err)
	suite.Empty(epochs)
}

func (suite *StoreTestSuite) TestReopen() {
	ctx := context.Background()
	id, err := suite.store.CreateRun(ctx, "DCN", nil, 1, 1)
	suite.NoError(err)
	suite.NoError(suite.store.Close())
	suite.store, err = Open(suite.path)
	suite.NoError(err)
	_, err = suite.store.GetRun(ctx, id)
	suite.NoError(err)
}

func TestStore(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}

func TestOpenUnsupported(t *testing.T) {
	_, err := Open("redis://localhost:6379")
	assert.True(t, errors.Is(err, errors.NotSupported))
}
