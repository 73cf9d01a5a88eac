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

package storage

import (
	"net/url"
	"strings"

	"github.com/juju/errors"
	"github.com/samber/lo"
)

const SQLitePrefix = "sqlite://"

// AppendURLParams appends query parameters to a data source name.
func AppendURLParams(rawURL string, params []lo.Tuple2[string, string]) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", errors.Trace(err)
	}
	q := parsed.Query()
	for _, tuple := range params {
		q.Add(tuple.A, tuple.B)
	}
	parsed.RawQuery = q.Encode()
	return parsed.String(), nil
}

// SQLiteDataSource converts a sqlite:// URL to a data source name for
// modernc.org/sqlite with busy timeout and WAL enabled.
func SQLiteDataSource(path string) (string, error) {
	if !strings.HasPrefix(path, SQLitePrefix) {
		return "", errors.NotSupportedf("database %s", path)
	}
	dataSourceName := path[len(SQLitePrefix):]
	if dataSourceName == "" {
		return "", errors.NotValidf("empty database path")
	}
	return AppendURLParams(dataSourceName, []lo.Tuple2[string, string]{
		{A: "_pragma", B: "busy_timeout(10000)"},
		{A: "_pragma", B: "journal_mode(wal)"},
	})
}
