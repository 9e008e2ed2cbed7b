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

package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/cda-sync/delta-sync/config"
	"github.com/cda-sync/delta-sync/model"
	"github.com/cda-sync/delta-sync/storage"
	"github.com/cda-sync/delta-sync/supervisor"
)

func main() {

	var (
		flagLevel    string
		flagTables   string
		flagExclude  string
		flagReset    bool
		flagParallel bool
		flagWorkers  int
	)

	pflag.StringVarP(&flagLevel, "log-level", "l", "info", "log output level")
	pflag.StringVarP(&flagTables, "tables", "t", "", "comma-separated list of table names to process (default: every table in the manifest)")
	pflag.StringVarP(&flagExclude, "exclude", "x", "", "comma-separated list of table names to skip; ignored when --tables is set")
	pflag.BoolVarP(&flagReset, "reset", "r", false, "delete each table's existing delta log and reprocess from watermark zero")
	pflag.BoolVarP(&flagParallel, "parallel", "p", true, "process tables concurrently, bounded by --workers")
	pflag.IntVarP(&flagWorkers, "workers", "w", 4, "maximum number of tables processed concurrently")
	pflag.Parse()

	zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }
	log := zerolog.New(os.Stderr).With().Timestamp().Logger().Level(zerolog.DebugLevel)
	level, err := zerolog.ParseLevel(flagLevel)
	if err != nil {
		log.Fatal().Err(err).Msg("could not parse log level")
	}
	log = log.Level(level)

	cfg := config.Load(os.LookupEnv)
	if err := config.Validate(cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-sig
		log.Warn().Msg("received interrupt, shutting down")
		cancel()
	}()

	sup := supervisor.New(log, cfg, newStores,
		supervisor.WithTables(splitNonEmpty(flagTables)),
		supervisor.WithExclude(splitNonEmpty(flagExclude)),
		supervisor.WithParallel(flagParallel),
		supervisor.WithWorkers(flagWorkers),
		supervisor.WithReset(flagReset),
	)

	results, err := sup.Run(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("run failed")
	}

	failed := 0
	for _, r := range results {
		entry := log.Info()
		if len(r.Errors) > 0 {
			failed++
			entry = log.Error()
		}
		entry.
			Str("table", r.Table).
			Int64("start_watermark", r.ProcessStartWatermark).
			Ints64("committed_watermarks", r.Watermarks).
			Strs("errors", r.Errors).
			Strs("warnings", r.Warnings).
			Msg("table processed")
	}

	if failed > 0 {
		log.Fatal().Int("failed", failed).Int("total", len(results)).Msg("one or more tables failed")
	}
}

// newStores builds the source (always S3, per spec.md: the manifest and
// its parquet files live on S3 regardless of target cloud) and target
// (S3 or ADLS Gen2, per cfg.TargetCloud) object stores for one worker.
func newStores(ctx context.Context, cfg *config.Config) (source, target storage.Store, err error) {
	source, err = storage.NewS3(ctx, storage.S3Options{
		Region:          cfg.SourceS3.Region,
		AccessKeyID:     cfg.SourceS3.AccessKeyID,
		SecretAccessKey: cfg.SourceS3.SecretAccessKey,
		Endpoint:        cfg.SourceS3.Endpoint,
	})
	if err != nil {
		return nil, nil, err
	}

	switch cfg.TargetCloud {
	case model.TargetAzure:
		target, err = storage.NewADLS(ctx, storage.AzureOptions{
			AccountName:   cfg.TargetAzure.AccountName,
			AccountKey:    cfg.TargetAzure.AccountKey,
			TenantID:      cfg.TargetAzure.TenantID,
			ClientID:      cfg.TargetAzure.ClientID,
			ClientSecret:  cfg.TargetAzure.ClientSecret,
			Container:     cfg.TargetAzure.Container,
			BlobAuthority: cfg.TargetAzure.BlobAuthority,
			BlobScheme:    cfg.TargetAzure.BlobScheme,
		})
	case model.TargetAWS:
		target, err = storage.NewS3(ctx, storage.S3Options{
			Region:          cfg.TargetS3.Region,
			AccessKeyID:     cfg.TargetS3.AccessKeyID,
			SecretAccessKey: cfg.TargetS3.SecretAccessKey,
			Endpoint:        cfg.TargetS3.Endpoint,
			PathStyle:       cfg.TargetS3.PathStyle,
		})
	default:
		target = source
	}
	if err != nil {
		return nil, nil, err
	}

	return source, target, nil
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
