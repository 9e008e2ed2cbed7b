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

// Package batch implements the per-table incremental ingestion state
// machine (spec.md §4.3): given a manifest entry and a Delta log handle, it
// walks the table's schema history in timestamp order, discovers parquet
// files newer than the last committed watermark, and registers them as
// Delta Add actions without touching the underlying data. It is grounded on
// the original guidewire.batch.Batch class, restructured into the
// teacher's state-machine-over-fakes shape (service/mapper processes a
// fixed sequence of steps against injected collaborators, see
// service/mapper/mapper.go in the teacher repo).
package batch

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/rs/zerolog"

	"github.com/cda-sync/delta-sync/model"
	"github.com/cda-sync/delta-sync/storage"
)

// DeltaLog is the capability Processor needs from a table's transaction
// log. *deltalog.Handle satisfies it; tests substitute a fake, the same way
// the teacher's service/mapper tests substitute fakes of Chain and Feeder.
type DeltaLog interface {
	Exists() bool
	Watermark(ctx context.Context) model.Watermark
	Commit(ctx context.Context, files []model.ParquetFile, schema *parquet.Schema, watermark, schemaTimestamp int64, mode model.Mode) error
}

// Processor runs exactly one table through one ingestion pass. It is
// constructed fresh for every (table, run) pair and emits exactly one
// Result; it holds no state that survives past Run returning.
type Processor struct {
	logger zerolog.Logger

	table string
	entry model.ManifestEntry
	store storage.Store
	log   DeltaLog
	reset bool

	result *model.Result
}

// New builds a Processor for table, backed by store (the source object
// store the manifest's parquet files live on) and log (the target Delta
// log handle). entry is the table's manifest row.
func New(logger zerolog.Logger, table string, entry model.ManifestEntry, store storage.Store, log DeltaLog, reset bool) *Processor {
	return &Processor{
		logger: logger.With().Str("table", table).Logger(),
		table:  table,
		entry:  entry,
		store:  store,
		log:    log,
		reset:  reset,
	}
}

// Run executes the ingestion pass and returns the accumulated Result. Run
// never panics and never returns a non-nil error for a per-table failure:
// failures are recorded on the Result (spec.md §4.3, §7), so the
// supervisor can isolate them without aborting other tables.
func (p *Processor) Run(ctx context.Context, now time.Time) *model.Result {
	wm := p.log.Watermark(ctx)

	lowWatermark := wm.Value
	schemaWatermark := wm.SchemaTimestamp
	if p.reset {
		lowWatermark = 0
		schemaWatermark = 0
	}

	startVersion := int64(0)
	p.result = model.NewResult(p.table, lowWatermark, startVersion, int64(p.entry.TotalProcessedRecordsCount), int64(p.entry.LastSuccessfulWriteTimestamp), now)

	if wm.Corrupt() && !p.reset {
		p.logger.Error().Msg("skipping batch: low watermark is -1, state is corrupt")
		p.result.AddError(model.ErrStateCorruption.Error())
		p.result.Finish(now, lowWatermark, startVersion)
		return p.result
	}

	if int64(p.entry.LastSuccessfulWriteTimestamp) <= lowWatermark {
		p.logger.Warn().Int64("low_watermark", lowWatermark).Msg("skipping batch: manifest entry matches or is older than the low watermark")
		p.result.AddWarning(model.ErrNothingNew.Error())
		p.result.Finish(now, lowWatermark, startVersion)
		return p.result
	}

	filepath := strings.TrimPrefix(p.entry.DataFilesPath, "s3://")
	if filepath == "" || len(p.entry.SchemaHistory) == 0 {
		p.logger.Error().Msg("missing dataFilesPath or schemaHistory for manifest entry")
		p.result.AddError(fmt.Sprintf("missing dataFilesPath or schemaHistory for %q", p.table))
		p.result.Finish(now, lowWatermark, startVersion)
		return p.result
	}

	epochs := planEpochs(filepath, p.entry.SchemaHistory, schemaWatermark)

	committedWatermark := lowWatermark
	for _, epoch := range epochs {
		p.logger.Info().Str("uri", epoch.URI).Msg("processing schema epoch")
		last, err := p.processEpoch(ctx, epoch, lowWatermark)
		if err != nil {
			p.logger.Error().Err(err).Str("uri", epoch.URI).Msg("error processing schema epoch, abandoning table")
			p.result.AddError(err.Error())
			break
		}
		if last > committedWatermark {
			committedWatermark = last
		}
	}

	version := int64(0)
	p.result.Finish(now, committedWatermark, version)
	return p.result
}

// planEpochs mirrors process_batch's schema-history ordering: entries are
// filtered to those whose value (schema timestamp) is at or beyond
// schemaWatermark and sorted ascending BY VALUE, not by key, because key
// order carries no temporal meaning in the upstream export.
func planEpochs(filepath string, history map[string]model.FlexInt64, schemaWatermark int64) []model.SchemaEpoch {
	type kv struct {
		key   string
		value int64
	}
	var filtered []kv
	for k, v := range history {
		if int64(v) >= schemaWatermark {
			filtered = append(filtered, kv{key: k, value: int64(v)})
		}
	}
	sort.Slice(filtered, func(i, j int) bool {
		if filtered[i].value != filtered[j].value {
			return filtered[i].value < filtered[j].value
		}
		return filtered[i].key < filtered[j].key
	})

	base := strings.TrimRight(filepath, "/")
	epochs := make([]model.SchemaEpoch, 0, len(filtered))
	for _, e := range filtered {
		epochs = append(epochs, model.SchemaEpoch{
			Key:             e.key,
			URI:             base + "/" + e.key + "/",
			SchemaTimestamp: e.value,
		})
	}
	return epochs
}

// processEpoch processes one schema epoch's timestamp-partition
// directories in ascending order and returns the highest watermark
// committed within it.
func (p *Processor) processEpoch(ctx context.Context, epoch model.SchemaEpoch, lowWatermark int64) (int64, error) {
	partial, dirs, err := p.listPartitions(ctx, epoch.URI, lowWatermark)
	if err != nil {
		return lowWatermark, fmt.Errorf("listing %s: %w", epoch.URI, err)
	}
	if partial {
		p.logger.Info().Str("uri", epoch.URI).Msg("found partial schema history, processing only new partitions")
	}

	var cachedSchema *parquet.Schema
	firstForEpoch := true
	highWatermark := lowWatermark

	for _, dir := range dirs {
		watermarkValue, ok := partitionWatermark(dir.BaseName)
		if !ok {
			p.logger.Warn().Str("dir", dir.Path).Msg("skipping non-numeric partition directory")
			continue
		}

		files, err := p.listParquetFiles(ctx, dir.Path)
		if err != nil {
			p.logger.Error().Err(err).Str("dir", dir.Path).Msg("failed to list parquet files")
			continue
		}
		if len(files) == 0 {
			p.logger.Warn().Str("dir", dir.Path).Msg("no parquet files found in partition, skipping")
			continue
		}

		mode := model.ModeAppend
		firstCommit := firstForEpoch
		if firstForEpoch {
			schema, err := p.resolveSchema(ctx, files)
			if err != nil {
				return highWatermark, fmt.Errorf("resolving schema for %s: %w", epoch.URI, err)
			}
			cachedSchema = schema
			firstForEpoch = false
			if !partial {
				mode = model.ModeOverwrite
			}
		}

		if err := p.log.Commit(ctx, toParquetFiles(files), cachedSchema, watermarkValue, epoch.SchemaTimestamp, mode); err != nil {
			return highWatermark, fmt.Errorf("committing partition %s: %w", dir.Path, err)
		}

		if firstCommit {
			p.result.AddSchemaTimestamp(epoch.SchemaTimestamp)
		}
		p.result.AddWatermark(watermarkValue)
		if watermarkValue > highWatermark {
			highWatermark = watermarkValue
		}
	}

	return highWatermark, nil
}

// listPartitions lists the timestamp-partition directories directly under
// uri and reports whether the result is a partial view of the full
// directory set: partial when some, but not all, directories have a
// numeric base name greater than lowWatermark. Directories whose base name
// is not numeric are excluded from both the full and filtered counts so
// they never skew the partial/fresh determination.
func (p *Processor) listPartitions(ctx context.Context, uri string, lowWatermark int64) (bool, []model.DirEntry, error) {
	entries, err := p.store.List(ctx, uri)
	if err != nil {
		return false, nil, err
	}

	var full, part []model.DirEntry
	for _, e := range entries {
		if e.Type != model.EntryDir {
			continue
		}
		v, ok := partitionWatermark(e.BaseName)
		if !ok {
			continue
		}
		full = append(full, e)
		if v > lowWatermark {
			part = append(part, e)
		}
	}

	sortDirsByWatermark(full)
	sortDirsByWatermark(part)

	if len(part) == 0 {
		return true, nil, nil
	}
	if len(part) < len(full) {
		return true, part, nil
	}
	return false, full, nil
}

func sortDirsByWatermark(dirs []model.DirEntry) {
	sort.Slice(dirs, func(i, j int) bool {
		vi, _ := partitionWatermark(dirs[i].BaseName)
		vj, _ := partitionWatermark(dirs[j].BaseName)
		return vi < vj
	})
}

func partitionWatermark(baseName string) (int64, bool) {
	v, err := strconv.ParseInt(baseName, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// listParquetFiles lists the parquet files directly under dir.
func (p *Processor) listParquetFiles(ctx context.Context, dir string) ([]model.DirEntry, error) {
	entries, err := p.store.List(ctx, dir)
	if err != nil {
		return nil, err
	}
	var files []model.DirEntry
	for _, e := range entries {
		if e.Type == model.EntryFile && strings.HasSuffix(e.Path, ".parquet") {
			files = append(files, e)
		}
	}
	return files, nil
}

// resolveSchema tries to read the parquet schema from files smallest-first
// (spec.md §4.3.2): small files are cheaper to probe and a corrupt footer
// on the smallest file should not block schema resolution if a larger file
// is readable.
func (p *Processor) resolveSchema(ctx context.Context, files []model.DirEntry) (*parquet.Schema, error) {
	sorted := make([]model.DirEntry, len(files))
	copy(sorted, files)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Size < sorted[j].Size })

	for _, f := range sorted {
		schema, err := p.store.ReadParquetSchema(ctx, f.Path)
		if err == nil {
			return schema, nil
		}
		p.logger.Warn().Err(err).Str("path", f.Path).Msg("failed to read schema, trying next file")
	}
	return nil, fmt.Errorf("no readable parquet schema found among %d candidate files", len(sorted))
}

func toParquetFiles(entries []model.DirEntry) []model.ParquetFile {
	files := make([]model.ParquetFile, 0, len(entries))
	for _, e := range entries {
		files = append(files, model.ParquetFile{
			Path:           "s3://" + strings.TrimPrefix(e.Path, "s3://"),
			Size:           e.Size,
			LastModifiedNs: e.MtimeNs,
		})
	}
	return files
}
