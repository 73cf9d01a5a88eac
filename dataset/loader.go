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

package dataset

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/juju/errors"
	"github.com/samber/lo"
	"modernc.org/mathutil"
)

// ReadLines parse fields of each line for csv file.
func ReadLines(sc *bufio.Scanner, sep string, handler func(int, []string) bool) error {
	lineCount := 0               // line number of current position
	fields := make([]string, 0)  // fields for current line
	builder := strings.Builder{} // string builder for current field
	quoted := false              // whether current position in quote
	separator := []rune(sep)
	for sc.Scan() {
		// read line
		line := []rune(sc.Text())
		// start of line
		if quoted {
			builder.WriteString("\r\n")
		}
		// parse line
		for i := 0; i < len(line); i++ {
			if !quoted && hasRunePrefix(line[i:], separator) {
				// end of field
				fields = append(fields, builder.String())
				builder.Reset()
				i += len(separator) - 1
			} else if line[i] == '"' {
				if quoted {
					if i+1 >= len(line) || line[i+1] != '"' {
						// end of quoted
						quoted = false
					} else {
						i++
						builder.WriteRune('"')
					}
				} else {
					// start of quoted
					quoted = true
				}
			} else {
				builder.WriteRune(line[i])
			}
		}
		// end of line
		if !quoted {
			fields = append(fields, builder.String())
			builder.Reset()
			if !handler(lineCount, fields) {
				return nil
			}
			fields = []string{}
		}
		// increase line count
		lineCount++
	}
	return sc.Err()
}

func hasRunePrefix(s, prefix []rune) bool {
	if len(prefix) == 0 || len(s) < len(prefix) {
		return false
	}
	for i, r := range prefix {
		if s[i] != r {
			return false
		}
	}
	return true
}

// LoadCSV loads a dense dataset from a delimited text file. The label column
// is counted from the end if negative, so -1 is the last column. Numeric
// columns are used as they are and other columns are one-hot encoded.
func LoadCSV(path, sep string, header bool, labelColumn int) (*Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer file.Close()
	var (
		names   []string
		records [][]string
	)
	err = ReadLines(bufio.NewScanner(file), sep, func(i int, fields []string) bool {
		if header && i == 0 {
			names = fields
			return true
		}
		if len(fields) == 1 && strings.TrimSpace(fields[0]) == "" {
			return true
		}
		records = append(records, fields)
		return true
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	if len(records) == 0 {
		return nil, errors.NotValidf("empty file %s", path)
	}

	width := len(records[0])
	if names != nil && len(names) != width {
		return nil, errors.NotValidf("header has %d columns, expected %d", len(names), width)
	}
	if labelColumn < 0 {
		labelColumn += width
	}
	if labelColumn < 0 || labelColumn >= width {
		return nil, errors.NotValidf("label column %d of %d columns", labelColumn, width)
	}
	for i, record := range records {
		if len(record) != width {
			return nil, errors.NotValidf("line %d has %d columns, expected %d", i+1, len(record), width)
		}
	}
	if names == nil {
		names = lo.Map(lo.Range(width), func(i, _ int) string { return strconv.Itoa(i) })
	}

	// find categorical columns
	categories := make([]*Categories, width)
	for j := 0; j < width; j++ {
		if j == labelColumn {
			continue
		}
		for _, record := range records {
			if _, err := parseCell(record[j]); err != nil {
				categories[j] = NewCategories(names[j])
				break
			}
		}
		if categories[j] != nil {
			for _, record := range records {
				categories[j].Add(record[j])
			}
		}
	}
	var columns []string
	for j := 0; j < width; j++ {
		switch {
		case j == labelColumn:
		case categories[j] != nil:
			columns = append(columns, categories[j].Columns()...)
		default:
			columns = append(columns, names[j])
		}
	}

	features := make([][]float32, len(records))
	target := make([]float32, len(records))
	for i, record := range records {
		label, err := parseCell(record[labelColumn])
		if err != nil {
			return nil, errors.Annotatef(err, "label of line %d", i+1)
		}
		target[i] = label
		row := make([]float32, 0, len(columns))
		for j, cell := range record {
			switch {
			case j == labelColumn:
			case categories[j] != nil:
				row = categories[j].AppendOneHot(row, cell)
			default:
				value, _ := parseCell(cell)
				row = append(row, value)
			}
		}
		features[i] = row
	}
	d, err := New(features, target)
	if err != nil {
		return nil, errors.Trace(err)
	}
	d.columns = columns
	d.fieldDim = len(columns)
	return d, nil
}

// parseCell parses a numeric cell. Empty cells are zero.
func parseCell(cell string) (float32, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return 0, nil
	}
	value, err := strconv.ParseFloat(cell, 32)
	if err != nil {
		return 0, errors.Trace(err)
	}
	return float32(value), nil
}

// LoadLibFM loads a dataset in the libFM format, i.e. "label idx:value ..."
// per line. Sparse rows are densified to max_index + 1 columns and positive
// labels become 1, others 0.
func LoadLibFM(path string) (*Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer file.Close()
	type entry struct {
		index int
		value float32
	}
	var (
		rows     [][]entry
		target   []float32
		maxIndex = -1
	)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		// fetch target
		label, err := strconv.ParseFloat(fields[0], 32)
		if err != nil {
			return nil, errors.Trace(err)
		}
		target = append(target, lo.Ternary[float32](label > 0, 1, 0))
		// fetch features
		row := make([]entry, 0, len(fields)-1)
		for _, field := range fields[1:] {
			k, v, ok := strings.Cut(field, ":")
			if !ok {
				return nil, errors.NotValidf("feature %q", field)
			}
			index, err := strconv.Atoi(k)
			if err != nil {
				return nil, errors.Trace(err)
			}
			if index < 0 {
				return nil, errors.NotValidf("feature index %d", index)
			}
			value, err := strconv.ParseFloat(v, 32)
			if err != nil {
				return nil, errors.Trace(err)
			}
			row = append(row, entry{index: index, value: float32(value)})
			maxIndex = mathutil.Max(maxIndex, index)
		}
		rows = append(rows, row)
	}
	if err = scanner.Err(); err != nil {
		return nil, errors.Trace(err)
	}
	features := make([][]float32, len(rows))
	for i, row := range rows {
		features[i] = make([]float32, maxIndex+1)
		for _, e := range row {
			features[i][e.index] = e.value
		}
	}
	d, err := New(features, target)
	if err != nil {
		return nil, errors.Trace(err)
	}
	d.fieldDim = maxIndex + 1
	return d, nil
}
