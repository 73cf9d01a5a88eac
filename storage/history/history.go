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
	"database/sql"
	"encoding/json"
	"time"

	"github.com/XSAM/otelsql"
	"github.com/google/uuid"
	"github.com/gorse-io/deepctr/storage"
	"github.com/juju/errors"
	"go.opentelemetry.io/otel/attribute"
	_ "modernc.org/sqlite"
)

const (
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

// Run is a training run.
type Run struct {
	ID        string
	Model     string
	Params    map[string]any
	Status    string
	TrainSize int
	ValidSize int
	TestAUC   float32
	Error     string
	StartTime time.Time
	EndTime   time.Time
}

// Epoch is the validation result of one epoch in a run.
type Epoch struct {
	RunID     string
	Epoch     int
	Loss      float32
	AUC       float32
	Precision float32
	Recall    float32
	Accuracy  float32
	LogLoss   float32
	Time      time.Time
}

// Store keeps training runs and their learning curves in SQLite.
type Store struct {
	db *sql.DB
}

// Open a history store, e.g. sqlite:///path/to/history.db. Tables are created
// if not exist.
func Open(path string) (*Store, error) {
	dataSourceName, err := storage.SQLiteDataSource(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	s := new(Store)
	if s.db, err = otelsql.Open("sqlite", dataSourceName,
		otelsql.WithAttributes(attribute.String("db.system", "sqlite")),
		otelsql.WithSpanOptions(otelsql.SpanOptions{DisableErrSkip: true}),
	); err != nil {
		return nil, errors.Trace(err)
	}
	if err = s.init(); err != nil {
		_ = s.db.Close()
		return nil, errors.Trace(err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) init() error {
	if _, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	model TEXT,
	params TEXT,
	status TEXT,
	train_size INTEGER,
	valid_size INTEGER,
	test_auc REAL,
	error TEXT,
	start_time TIMESTAMP,
	end_time TIMESTAMP
);`); err != nil {
		return errors.Trace(err)
	}
	if _, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS epochs (
	run_id TEXT,
	epoch INTEGER,
	loss REAL,
	auc REAL,
	precision REAL,
	recall REAL,
	accuracy REAL,
	log_loss REAL,
	time TIMESTAMP,
	PRIMARY KEY (run_id, epoch)
);`); err != nil {
		return errors.Trace(err)
	}
	return nil
}

// CreateRun inserts a running run and returns its ID.
func (s *Store) CreateRun(ctx context.Context, model string, params map[string]any, trainSize, validSize int) (string, error) {
	data, err := json.Marshal(params)
	if err != nil {
		return "", errors.Trace(err)
	}
	id := uuid.NewString()
	if _, err = s.db.ExecContext(ctx, `
INSERT INTO runs (id, model, params, status, train_size, valid_size, test_auc, error, start_time)
VALUES (?, ?, ?, ?, ?, ?, 0, '', ?)
`, id, model, string(data), StatusRunning, trainSize, validSize, time.Now().UTC()); err != nil {
		return "", errors.Trace(err)
	}
	return id, nil
}

// AddEpoch inserts or replaces the result of an epoch.
func (s *Store) AddEpoch(ctx context.Context, epoch Epoch) error {
	if epoch.Time.IsZero() {
		epoch.Time = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO epochs (run_id, epoch, loss, auc, precision, recall, accuracy, log_loss, time)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(run_id, epoch) DO UPDATE SET
	loss = excluded.loss,
	auc = excluded.auc,
	precision = excluded.precision,
	recall = excluded.recall,
	accuracy = excluded.accuracy,
	log_loss = excluded.log_loss,
	time = excluded.time
`, epoch.RunID, epoch.Epoch, epoch.Loss, epoch.AUC, epoch.Precision, epoch.Recall, epoch.Accuracy,
		epoch.LogLoss, epoch.Time.UTC())
	return errors.Trace(err)
}

// FinishRun marks a run as complete, or failed if runErr is not nil.
func (s *Store) FinishRun(ctx context.Context, id string, testAUC float32, runErr error) error {
	status, message := StatusComplete, ""
	if runErr != nil {
		status, message = StatusFailed, runErr.Error()
	}
	result, err := s.db.ExecContext(ctx, `
UPDATE runs SET status = ?, test_auc = ?, error = ?, end_time = ? WHERE id = ?
`, status, testAUC, message, time.Now().UTC(), id)
	if err != nil {
		return errors.Trace(err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return errors.Trace(err)
	} else if n == 0 {
		return errors.NotFoundf("run %s", id)
	}
	return nil
}

// GetRun returns a run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	rs, err := s.db.QueryContext(ctx, `
SELECT id, model, params, status, train_size, valid_size, test_auc, error, start_time, end_time
FROM runs WHERE id = ?
`, id)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer rs.Close()
	if !rs.Next() {
		if err = rs.Err(); err != nil {
			return nil, errors.Trace(err)
		}
		return nil, errors.NotFoundf("run %s", id)
	}
	return scanRun(rs)
}

// ListRuns returns runs from the latest to the earliest.
func (s *Store) ListRuns(ctx context.Context) ([]*Run, error) {
	rs, err := s.db.QueryContext(ctx, `
SELECT id, model, params, status, train_size, valid_size, test_auc, error, start_time, end_time
FROM runs ORDER BY start_time DESC
`)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer rs.Close()
	var runs []*Run
	for rs.Next() {
		run, err := scanRun(rs)
		if err != nil {
			return nil, errors.Trace(err)
		}
		runs = append(runs, run)
	}
	return runs, errors.Trace(rs.Err())
}

func scanRun(rs *sql.Rows) (*Run, error) {
	var (
		run     Run
		params  string
		endTime sql.NullTime
	)
	if err := rs.Scan(&run.ID, &run.Model, &params, &run.Status, &run.TrainSize, &run.ValidSize,
		&run.TestAUC, &run.Error, &run.StartTime, &endTime); err != nil {
		return nil, errors.Trace(err)
	}
	if err := json.Unmarshal([]byte(params), &run.Params); err != nil {
		return nil, errors.Trace(err)
	}
	if endTime.Valid {
		run.EndTime = endTime.Time
	}
	return &run, nil
}

// GetEpochs returns the learning curve of a run ordered by epoch.
func (s *Store) GetEpochs(ctx context.Context, runID string) ([]Epoch, error) {
	rs, err := s.db.QueryContext(ctx, `
SELECT run_id, epoch, loss, auc, precision, recall, accuracy, log_loss, time
FROM epochs WHERE run_id = ? ORDER BY epoch
`, runID)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer rs.Close()
	var epochs []Epoch
	for rs.Next() {
		var epoch Epoch
		if err = rs.Scan(&epoch.RunID, &epoch.Epoch, &epoch.Loss, &epoch.AUC, &epoch.Precision,
			&epoch.Recall, &epoch.Accuracy, &epoch.LogLoss, &epoch.Time); err != nil {
			return nil, errors.Trace(err)
		}
		epochs = append(epochs, epoch)
	}
	return epochs, errors.Trace(rs.Err())
}
