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

package model

import "time"

// Result accumulates the outcome of a single BatchProcessor run for one
// table. It is created at the start of the run, mutated only by its owning
// processor, and frozen once the processor returns: one writer, so no
// internal locking is needed.
type Result struct {
	Table                 string
	ProcessStartTime       time.Time
	ProcessStartWatermark  int64
	ProcessStartVersion    int64
	ManifestRecords        int64
	ManifestWatermark      int64
	ProcessFinishTime      *time.Time
	ProcessFinishWatermark *int64
	ProcessFinishVersion   *int64
	Watermarks             []int64
	SchemaTimestamps       []int64
	Errors                 []string
	Warnings               []string
}

// NewResult starts a Result for the given table at the given recovered
// start state.
func NewResult(table string, startWatermark, startVersion, manifestRecords, manifestWatermark int64, start time.Time) *Result {
	return &Result{
		Table:                 table,
		ProcessStartTime:      start,
		ProcessStartWatermark: startWatermark,
		ProcessStartVersion:   startVersion,
		ManifestRecords:       manifestRecords,
		ManifestWatermark:     manifestWatermark,
	}
}

// AddError appends an error message to the result.
func (r *Result) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
}

// AddWarning appends a warning message to the result.
func (r *Result) AddWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// AddWatermark records a successfully committed timestamp partition.
func (r *Result) AddWatermark(watermark int64) {
	r.Watermarks = append(r.Watermarks, watermark)
}

// AddSchemaTimestamp records a schema epoch whose first partition was
// committed during this run.
func (r *Result) AddSchemaTimestamp(schemaTimestamp int64) {
	r.SchemaTimestamps = append(r.SchemaTimestamps, schemaTimestamp)
}

// Finish stamps the result with its terminal watermark, version and finish
// time. It is called exactly once, whether the run completed, skipped, or
// aborted partway through.
func (r *Result) Finish(finishTime time.Time, watermark, version int64) {
	r.ProcessFinishTime = &finishTime
	r.ProcessFinishWatermark = &watermark
	r.ProcessFinishVersion = &version
}
