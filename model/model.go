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

// Package model holds the data types shared between the manifest, storage,
// delta log, batch and supervisor packages: the wire shapes of the upstream
// CDA export, the watermark state persisted in Delta commit metadata, and
// the per-run Result accumulator.
package model

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// FlexInt64 decodes a JSON int64 from either a bare number or a quoted
// string, matching the upstream manifest's inconsistent encoding of
// timestamp fields (observed as both "123" and 123 across exports).
type FlexInt64 int64

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexInt64) UnmarshalJSON(b []byte) error {
	var n int64
	if err := json.Unmarshal(b, &n); err == nil {
		*f = FlexInt64(n)
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("flexint64: %w", err)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("flexint64: %w", err)
	}
	*f = FlexInt64(n)
	return nil
}

// Mode is the write mode of a Delta commit.
type Mode string

// Valid commit modes. A fresh schema epoch starts with Overwrite; every
// other commit, including resumed partial epochs, uses Append.
const (
	ModeAppend    Mode = "append"
	ModeOverwrite Mode = "overwrite"
)

// TargetCloud selects which object store backs the Delta table being
// written to. The manifest and its parquet files always live on S3;
// TargetCloud only affects where the Delta log itself is hosted.
type TargetCloud string

const (
	TargetAzure TargetCloud = "azure"
	TargetAWS   TargetCloud = "aws"
)

// EntryType distinguishes files from directories when listing an object
// store prefix.
type EntryType int

const (
	EntryFile EntryType = iota
	EntryDir
)

// DirEntry is one entry returned by Store.List.
type DirEntry struct {
	Path     string
	Type     EntryType
	BaseName string
	Size     int64
	MtimeNs  int64
}

// ParquetFile describes one parquet file registered as a Delta Add action.
// Path is always rendered with the s3:// scheme regardless of which cloud
// actually hosts the Delta table; the table URI's scheme is what resolvers
// use, and the upstream's canonical naming is preserved verbatim.
type ParquetFile struct {
	Path           string
	Size           int64
	LastModifiedNs int64
}

// ManifestEntry is one table's entry from the upstream manifest document.
// Field tags match the upstream's camelCase wire names verbatim.
type ManifestEntry struct {
	Name                         string               `json:"-"`
	LastSuccessfulWriteTimestamp FlexInt64            `json:"lastSuccessfulWriteTimestamp"`
	TotalProcessedRecordsCount   FlexInt64            `json:"totalProcessedRecordsCount"`
	DataFilesPath                string               `json:"dataFilesPath"`
	SchemaHistory                map[string]FlexInt64 `json:"schemaHistory"`
}

// EntryPath returns the full schema-epoch directory URI for the given key
// (relative to DataFilesPath, not the s3:// scheme).
func (e ManifestEntry) EntryPath(schemaKey string) string {
	base := e.DataFilesPath
	for len(base) > 0 && base[len(base)-1] == '/' {
		base = base[:len(base)-1]
	}
	return base + "/" + schemaKey + "/"
}

// Watermark is the resumption state persisted in a Delta commit's custom
// metadata. A Value of -1 is a sentinel for corrupt/unknown state.
type Watermark struct {
	Value           int64
	SchemaTimestamp int64
}

// Corrupt reports whether this watermark is the StateCorruption sentinel.
func (w Watermark) Corrupt() bool {
	return w.Value == -1
}

// SchemaEpoch is one (key, URI, timestamp) triple selected from a table's
// schema history, ready to be processed in ascending timestamp order.
type SchemaEpoch struct {
	Key             string
	URI             string
	SchemaTimestamp int64
}
