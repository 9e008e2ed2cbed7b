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

// Package deltalog manages the Delta Lake transaction log for one target
// table, per spec.md §4.2: probing for an existing log at construction,
// reading the watermark carried in the last commit's custom metadata, and
// committing batches of Add actions without touching the underlying data
// files. It wraps github.com/rivian/delta-go the way the original Python
// DeltaLog wraps the deltalake/delta-rs bindings.
package deltalog

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/parquet-go/parquet-go"
	delta "github.com/rivian/delta-go"
	"github.com/rs/zerolog"

	"github.com/cda-sync/delta-sync/config"
	"github.com/cda-sync/delta-sync/model"
)

// StorageOptions is the set of backend credentials delta-go needs to
// resolve logURI's scheme (s3:// or abfss://) into a concrete object store
// client, mirroring the original's self.storage_options dict built from
// guidewire.storage.Storage._storage_options.
type StorageOptions map[string]string

// TargetStorageOptions builds delta-go's storage options from the
// configuration's target-cloud credentials.
func TargetStorageOptions(cfg *config.Config) StorageOptions {
	switch cfg.TargetCloud {
	case model.TargetAzure:
		opts := StorageOptions{
			"azure_storage_account_name": cfg.TargetAzure.AccountName,
		}
		if cfg.TargetAzure.ServicePrincipal() {
			opts["azure_storage_tenant_id"] = cfg.TargetAzure.TenantID
			opts["azure_storage_client_id"] = cfg.TargetAzure.ClientID
			opts["azure_storage_client_secret"] = cfg.TargetAzure.ClientSecret
		} else {
			opts["azure_storage_account_key"] = cfg.TargetAzure.AccountKey
		}
		return opts
	case model.TargetAWS:
		return StorageOptions{
			"aws_region":            cfg.TargetS3.Region,
			"aws_access_key_id":     cfg.TargetS3.AccessKeyID,
			"aws_secret_access_key": cfg.TargetS3.SecretAccessKey,
			"aws_endpoint_url":      cfg.TargetS3.Endpoint,
		}
	default:
		return nil
	}
}

// Handle wraps one Delta table's transaction log. It is not safe for
// concurrent use across goroutines; the supervisor constructs one per
// worker, per spec.md §5.
type Handle struct {
	logger zerolog.Logger

	table     *delta.DeltaTable
	tableName string
	logURI    string
	opts      StorageOptions

	checkpointInterval int
	transactionCount   int

	exists bool
}

// New opens (or prepares to create) the Delta log for tableName at logURI,
// performing the probe step immediately, matching the original's
// DeltaLog.__init__ calling _log_exists() at construction time.
func New(ctx context.Context, logger zerolog.Logger, logURI, tableName string, opts StorageOptions, checkpointInterval int) (*Handle, error) {
	if tableName == "" || logURI == "" {
		return nil, &model.DeltaValidationError{Reason: "table name and log uri must be non-empty"}
	}

	h := &Handle{
		logger:             logger.With().Str("table", tableName).Logger(),
		tableName:          tableName,
		logURI:             logURI,
		opts:               opts,
		checkpointInterval: checkpointInterval,
	}
	if h.checkpointInterval <= 0 {
		h.checkpointInterval = 100
	}

	table, err := delta.OpenTable(ctx, logURI, map[string]string(opts))
	switch {
	case err == nil:
		h.table = table
		h.exists = true
	case delta.IsNotFound(err):
		h.logger.Debug().Str("log_uri", logURI).Msg("delta log does not exist yet")
		h.exists = false
	default:
		h.logger.Error().Err(err).Msg("error reading delta log")
		return nil, &model.DeltaError{Table: tableName, Err: fmt.Errorf("opening delta log: %w", err)}
	}

	return h, nil
}

// Exists reports whether the Delta table already has a transaction log.
func (h *Handle) Exists() bool {
	return h.exists
}

// Watermark returns the watermark and schema timestamp carried in the most
// recent commit's custom metadata. A table with no log reports zero on both
// fields. A log whose history cannot be read, or whose latest commit has
// missing or malformed metadata, reports the -1 sentinel on both fields
// (model.Watermark.Corrupt()).
func (h *Handle) Watermark(ctx context.Context) model.Watermark {
	if !h.exists || h.table == nil {
		return model.Watermark{Value: 0, SchemaTimestamp: 0}
	}

	commits, err := h.table.History(ctx, 1)
	if err != nil || len(commits) == 0 {
		return model.Watermark{Value: -1, SchemaTimestamp: -1}
	}

	meta := commits[0].Metadata
	watermark, err1 := strconv.ParseInt(meta["watermark"], 10, 64)
	schemaTS, err2 := strconv.ParseInt(meta["schema_timestamp"], 10, 64)
	if err1 != nil || err2 != nil {
		return model.Watermark{Value: -1, SchemaTimestamp: -1}
	}

	return model.Watermark{Value: watermark, SchemaTimestamp: schemaTS}
}

// Stats reports the table's current version, number of active files, and
// log URI. It returns a *model.DeltaError if the table does not exist.
func (h *Handle) Stats(ctx context.Context) (map[string]interface{}, error) {
	if !h.exists || h.table == nil {
		return nil, &model.DeltaError{Table: h.tableName, Err: fmt.Errorf("table does not exist")}
	}

	files, err := h.table.Files(ctx)
	if err != nil {
		return nil, &model.DeltaError{Table: h.tableName, Err: fmt.Errorf("listing files: %w", err)}
	}

	return map[string]interface{}{
		"version":   h.table.Version(),
		"num_files": len(files),
		"table_uri": h.logURI,
	}, nil
}

// Commit appends (or, for a brand new table, creates) one transaction
// containing an Add action per file, tagging the commit with watermark and
// schemaTimestamp as decimal-string custom metadata, per spec.md §4.2's
// commit-metadata contract. data_change is always false and partition
// values are always empty: this package only ever registers files that
// already exist, never rewrites data.
func (h *Handle) Commit(ctx context.Context, files []model.ParquetFile, parquetSchema *parquet.Schema, watermark, schemaTimestamp int64, mode model.Mode) error {
	if len(files) == 0 {
		return &model.DeltaValidationError{Reason: "at least one parquet file must be provided"}
	}
	if mode != model.ModeAppend && mode != model.ModeOverwrite {
		return &model.DeltaValidationError{Reason: fmt.Sprintf("mode must be append or overwrite, got %q", mode)}
	}

	schema, err := schemaFromParquet(parquetSchema)
	if err != nil {
		return &model.DeltaValidationError{Reason: fmt.Sprintf("converting parquet schema: %v", err)}
	}

	actions := make([]delta.Action, 0, len(files))
	for _, f := range files {
		if f.Path == "" || f.Size <= 0 || f.LastModifiedNs <= 0 {
			return &model.DeltaValidationError{Reason: fmt.Sprintf("invalid parquet file info for %q", f.Path)}
		}
		actions = append(actions, delta.Add{
			Path:             f.Path,
			Size:             f.Size,
			PartitionValues:  map[string]string{},
			ModificationTime: f.LastModifiedNs / int64(1e6),
			DataChange:       false,
			Stats:            "{}",
		})
	}

	commitProps := delta.CommitProperties{
		CustomMetadata: map[string]string{
			"watermark":        strconv.FormatInt(watermark, 10),
			"schema_timestamp": strconv.FormatInt(schemaTimestamp, 10),
		},
	}

	if !h.exists {
		h.table, err = delta.CreateTableWithAddActions(ctx, h.logURI, schema, actions, h.tableName, commitProps, map[string]string(h.opts))
		if err != nil {
			return &model.DeltaError{Table: h.tableName, Err: fmt.Errorf("creating table: %w", err)}
		}
		h.exists = true
	} else {
		txnMode := delta.WriteModeAppend
		if mode == model.ModeOverwrite {
			txnMode = delta.WriteModeOverwrite
		}
		if err := h.table.CreateWriteTransaction(ctx, actions, txnMode, schema, commitProps); err != nil {
			return &model.DeltaError{Table: h.tableName, Err: fmt.Errorf("committing transaction: %w", err)}
		}
		// Refreshing the in-memory table state is best effort: a transient
		// read failure here must not fail a commit that already succeeded.
		if err := h.table.UpdateIncremental(ctx); err != nil {
			h.logger.Warn().Err(err).Msg("failed to refresh delta log after transaction")
		}
	}

	h.transactionCount++
	if h.transactionCount%h.checkpointInterval == 0 {
		h.checkpoint(ctx)
	}

	return nil
}

func (h *Handle) checkpoint(ctx context.Context) {
	if h.table == nil {
		return
	}
	h.logger.Debug().Int("version", h.table.Version()).Msg("creating checkpoint")
	if err := h.table.CreateCheckpoint(ctx); err != nil {
		h.logger.Warn().Err(err).Msg("failed to create checkpoint")
		return
	}
	h.logger.Debug().Msg("checkpoint created")
}

// DeleteLog removes everything stored under logURI via the given object
// store, matching the original's remove_log "best effort, log and return
// false" contract. Parquet files that Add actions reference by their own
// s3:// paths outside logURI are not deleted.
func DeleteLog(ctx context.Context, store interface {
	DeleteDir(ctx context.Context, uri string) bool
}, logURI string) bool {
	return store.DeleteDir(ctx, logURI)
}

// URI builds the Delta log location for table under the configured target
// cloud, implementing spec.md §6's two URI shapes:
//
//	abfss://{container}@{account}.dfs.core.windows.net/{subfolder/}{table}/
//	s3://{bucket}/{prefix/}{table}/
func URI(cfg *config.Config, table string) string {
	table = strings.Trim(table, "/")

	switch cfg.TargetCloud {
	case model.TargetAzure:
		authority := cfg.TargetAzure.DFSAuthority
		if authority == "" {
			authority = cfg.TargetAzure.AccountName + ".dfs.core.windows.net"
		}
		scheme := cfg.TargetAzure.DFSScheme
		if scheme == "" {
			scheme = "abfss"
		}
		if cfg.TargetAzure.Subfolder != "" {
			return fmt.Sprintf("%s://%s@%s/%s/%s/", scheme, cfg.TargetAzure.Container, authority, strings.Trim(cfg.TargetAzure.Subfolder, "/"), table)
		}
		return fmt.Sprintf("%s://%s@%s/%s/", scheme, cfg.TargetAzure.Container, authority, table)
	case model.TargetAWS:
		prefix := strings.Trim(cfg.TargetS3.Prefix, "/")
		if prefix != "" {
			return fmt.Sprintf("s3://%s/%s/%s/", cfg.TargetS3.Bucket, prefix, table)
		}
		return fmt.Sprintf("s3://%s/%s/", cfg.TargetS3.Bucket, table)
	default:
		return ""
	}
}

// schemaFromParquet maps a parquet footer schema to the Delta primitive
// types delta-go expects, the Go equivalent of the original's
// Schema.from_arrow(table.schema) call. Only the top-level fields are
// mapped: nested groups and lists are not part of this ingestion path,
// since this package only registers files as Add actions and never reads
// or rewrites their column data.
func schemaFromParquet(s *parquet.Schema) (*delta.Schema, error) {
	if s == nil {
		return nil, fmt.Errorf("nil parquet schema")
	}

	fields := make([]delta.SchemaField, 0, len(s.Fields()))
	for _, f := range s.Fields() {
		fields = append(fields, delta.SchemaField{
			Name:     f.Name(),
			Type:     deltaPrimitiveType(f),
			Nullable: f.Optional(),
		})
	}

	return &delta.Schema{Fields: fields}, nil
}

func deltaPrimitiveType(f parquet.Field) string {
	switch f.Type().Kind() {
	case parquet.Boolean:
		return "boolean"
	case parquet.Int32:
		return "integer"
	case parquet.Int64:
		return "long"
	case parquet.Float:
		return "float"
	case parquet.Double:
		return "double"
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return "string"
	default:
		return "string"
	}
}
