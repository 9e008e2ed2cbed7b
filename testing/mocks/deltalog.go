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

package mocks

import (
	"context"

	"github.com/parquet-go/parquet-go"

	"github.com/cda-sync/delta-sync/model"
)

// DeltaLog is a function-field fake of batch.DeltaLog, so processor tests
// can assert exactly which commits were made without a real Delta table.
type DeltaLog struct {
	ExistsFunc    func() bool
	WatermarkFunc func(ctx context.Context) model.Watermark
	CommitFunc    func(ctx context.Context, files []model.ParquetFile, schema *parquet.Schema, watermark, schemaTimestamp int64, mode model.Mode) error

	// Commits records every accepted call, in order, for assertions.
	Commits []Commit
}

// Commit is one recorded call to DeltaLog.Commit.
type Commit struct {
	Files           []model.ParquetFile
	Watermark       int64
	SchemaTimestamp int64
	Mode            model.Mode
}

// BaselineDeltaLog returns a DeltaLog reporting a fresh table (no existing
// log, watermark zero) that accepts every commit.
func BaselineDeltaLog() *DeltaLog {
	d := &DeltaLog{
		ExistsFunc: func() bool { return false },
		WatermarkFunc: func(ctx context.Context) model.Watermark {
			return model.Watermark{Value: 0, SchemaTimestamp: 0}
		},
	}
	d.CommitFunc = func(ctx context.Context, files []model.ParquetFile, schema *parquet.Schema, watermark, schemaTimestamp int64, mode model.Mode) error {
		d.Commits = append(d.Commits, Commit{Files: files, Watermark: watermark, SchemaTimestamp: schemaTimestamp, Mode: mode})
		return nil
	}
	return d
}

func (d *DeltaLog) Exists() bool {
	return d.ExistsFunc()
}

func (d *DeltaLog) Watermark(ctx context.Context) model.Watermark {
	return d.WatermarkFunc(ctx)
}

func (d *DeltaLog) Commit(ctx context.Context, files []model.ParquetFile, schema *parquet.Schema, watermark, schemaTimestamp int64, mode model.Mode) error {
	return d.CommitFunc(ctx, files, schema, watermark, schemaTimestamp, mode)
}
