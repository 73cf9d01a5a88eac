// Copyright 2022 gorse Project Authors
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

package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestSetLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deepctr.log")
	flagSet := pflag.NewFlagSet("test", pflag.ContinueOnError)
	AddFlags(flagSet)
	assert.NoError(t, flagSet.Parse([]string{"--log-path", path}))
	SetLogger(flagSet)
	// entries reach the file without Sync, which fails when stdout is a pipe
	Logger().Info("fit DCN", zap.Int("epoch", 1))

	data, err := os.ReadFile(path)
	assert.NoError(t, err)
	var entry map[string]any
	assert.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &entry))
	assert.Equal(t, "fit DCN", entry["msg"])
	assert.Equal(t, float64(1), entry["epoch"])
}

func TestSetWriter(t *testing.T) {
	var buf bytes.Buffer
	SetWriter(&buf, false)
	Logger().Debug("hidden")
	Logger().Info("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	buf.Reset()
	SetWriter(&buf, true)
	Logger().Debug("debug message")
	assert.Contains(t, buf.String(), "debug message")

	buf.Reset()
	SetWriter(&buf, false)
	GetErrorHandler().Handle(errors.New("exporter down"))
	assert.Contains(t, buf.String(), "exporter down")
}
