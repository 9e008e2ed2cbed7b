// Copyright 2024 CDA Sync Authors
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not
// use this file except in compliance with the License. You may obtain a copy of
// the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
// WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
// License for the specific language governing permissions and limitations under
// the License.

package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cda-sync/delta-sync/model"
)

func TestResult_AccumulatesWatermarksAndSchemaTimestamps(t *testing.T) {
	t.Parallel()

	start := time.Now()
	r := model.NewResult("orders", 0, 0, 10, 100, start)

	r.AddWatermark(100)
	r.AddWatermark(200)
	r.AddSchemaTimestamp(0)
	r.AddError("boom")
	r.AddWarning("careful")

	assert.Equal(t, []int64{100, 200}, r.Watermarks)
	assert.Equal(t, []int64{0}, r.SchemaTimestamps)
	assert.Equal(t, []string{"boom"}, r.Errors)
	assert.Equal(t, []string{"careful"}, r.Warnings)
}

func TestResult_FinishStampsTerminalState(t *testing.T) {
	t.Parallel()

	start := time.Now()
	r := model.NewResult("orders", 0, 0, 0, 0, start)

	require.Nil(t, r.ProcessFinishTime)

	finish := start.Add(time.Minute)
	r.Finish(finish, 200, 3)

	require.NotNil(t, r.ProcessFinishTime)
	require.NotNil(t, r.ProcessFinishWatermark)
	require.NotNil(t, r.ProcessFinishVersion)
	assert.Equal(t, finish, *r.ProcessFinishTime)
	assert.Equal(t, int64(200), *r.ProcessFinishWatermark)
	assert.Equal(t, int64(3), *r.ProcessFinishVersion)
}
