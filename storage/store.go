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

// Package storage is the uniform facade over cloud object storage that
// spec.md §4.1 describes: list directory entries, read a parquet file's
// schema from its footer, read a JSON document, and delete a directory.
// Two variants, S3 and ADLS Gen2, satisfy the same Store interface so the
// rest of the pipeline never branches on which cloud it is talking to.
package storage

import (
	"context"

	"github.com/parquet-go/parquet-go"

	"github.com/cda-sync/delta-sync/model"
)

// Store is the capability set every BatchProcessor and Manifest needs from
// an object store. Implementations are not assumed safe for concurrent use
// across tables; the supervisor constructs one per worker.
type Store interface {
	// List returns the immediate children of dir, both files and
	// directories, in the order the backend lists them; the result is not
	// sorted, and callers that need an order sort it themselves. A
	// not-found directory returns an empty
	// slice and a nil error: callers distinguish "nothing here" from an
	// I/O failure by the error return alone.
	List(ctx context.Context, dir string) ([]model.DirEntry, error)

	// ReadParquetSchema reads only as much of path as is needed to parse
	// the Parquet footer and returns the resulting schema.
	ReadParquetSchema(ctx context.Context, path string) (*parquet.Schema, error)

	// ReadJSON reads and decodes the JSON document at path into v.
	ReadJSON(ctx context.Context, path string, v interface{}) error

	// DeleteDir recursively removes everything under uri. A transient I/O
	// failure is reported by returning false, not by an error: spec.md
	// treats log deletion as best-effort.
	DeleteDir(ctx context.Context, uri string) bool
}
