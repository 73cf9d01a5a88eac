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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategories(t *testing.T) {
	c := NewCategories("city")
	assert.Equal(t, 0, c.Add("paris"))
	assert.Equal(t, 1, c.Add("tokyo"))
	assert.Equal(t, 1, c.Add(" tokyo "))
	assert.Equal(t, 2, c.Add("lima"))
	assert.Equal(t, 3, c.Len())
	assert.Equal(t, 2, c.Count("tokyo"))
	assert.Equal(t, 0, c.Count("rome"))
	assert.Equal(t, []string{"city=paris", "city=tokyo", "city=lima"}, c.Columns())

	row := c.AppendOneHot([]float32{7}, "lima")
	assert.Equal(t, []float32{7, 0, 0, 1}, row)
	row = c.AppendOneHot(nil, "rome")
	assert.Equal(t, []float32{0, 0, 0}, row)
}
