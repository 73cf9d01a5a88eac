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

import "strings"

// Categories one-hot encodes a categorical column. Values are numbered in
// order of first appearance.
type Categories struct {
	name   string
	index  map[string]int
	values []string
	counts []int
}

func NewCategories(name string) *Categories {
	return &Categories{name: name, index: make(map[string]int)}
}

// Add counts value and returns its position in the one-hot vector.
func (c *Categories) Add(value string) int {
	value = strings.TrimSpace(value)
	if i, ok := c.index[value]; ok {
		c.counts[i]++
		return i
	}
	i := len(c.values)
	c.index[value] = i
	c.values = append(c.values, value)
	c.counts = append(c.counts, 1)
	return i
}

func (c *Categories) Len() int {
	return len(c.values)
}

// Count returns how many times value was added.
func (c *Categories) Count(value string) int {
	if i, ok := c.index[strings.TrimSpace(value)]; ok {
		return c.counts[i]
	}
	return 0
}

// Columns names the one-hot columns as name=value.
func (c *Categories) Columns() []string {
	columns := make([]string, len(c.values))
	for i, value := range c.values {
		columns[i] = c.name + "=" + value
	}
	return columns
}

// AppendOneHot appends the one-hot vector of value to row. Unknown values
// are encoded as all zeros.
func (c *Categories) AppendOneHot(row []float32, value string) []float32 {
	start := len(row)
	row = append(row, make([]float32, len(c.values))...)
	if i, ok := c.index[strings.TrimSpace(value)]; ok {
		row[start+i] = 1
	}
	return row
}
