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

package supervisor_test

import (
	"context"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cda-sync/delta-sync/batch"
	"github.com/cda-sync/delta-sync/config"
	"github.com/cda-sync/delta-sync/model"
	"github.com/cda-sync/delta-sync/storage"
	"github.com/cda-sync/delta-sync/supervisor"
	"github.com/cda-sync/delta-sync/testing/mocks"
)

func manifestDocument() map[string][]model.ManifestEntry {
	return map[string][]model.ManifestEntry{
		"orders":   {{DataFilesPath: "s3://bucket/orders", LastSuccessfulWriteTimestamp: 100}},
		"invoices": {{DataFilesPath: "s3://bucket/invoices", LastSuccessfulWriteTimestamp: 100}},
	}
}

func fakeStores() (*mocks.Store, supervisor.StoreFactory) {
	store := mocks.BaselineStore()
	store.ReadJSONFunc = func(ctx context.Context, path string, v interface{}) error {
		out := v.(*map[string][]model.ManifestEntry)
		*out = manifestDocument()
		return nil
	}
	factory := func(ctx context.Context, cfg *config.Config) (storage.Store, storage.Store, error) {
		return store, store, nil
	}
	return store, factory
}

// fakeDeltaLogs builds a supervisor.DeltaLogFactory that hands out a fresh
// mocks.DeltaLog per table, avoiding any real delta-go table probe.
func fakeDeltaLogs() supervisor.DeltaLogFactory {
	return func(ctx context.Context, logger zerolog.Logger, cfg *config.Config, table string) (batch.DeltaLog, error) {
		return mocks.BaselineDeltaLog(), nil
	}
}

func TestSupervisor_Run_OneResultPerTable(t *testing.T) {
	t.Parallel()

	log := zerolog.New(io.Discard)
	_, factory := fakeStores()
	cfg := &config.Config{ManifestLocation: "s3://bucket", TargetCloud: model.TargetAzure}

	sup := supervisor.New(log, cfg, factory, supervisor.WithParallel(false), supervisor.WithDeltaLogFactory(fakeDeltaLogs()))
	results, err := sup.Run(context.Background())

	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSupervisor_Run_ExplicitTableList(t *testing.T) {
	t.Parallel()

	log := zerolog.New(io.Discard)
	_, factory := fakeStores()
	cfg := &config.Config{ManifestLocation: "s3://bucket", TargetCloud: model.TargetAzure}

	sup := supervisor.New(log, cfg, factory, supervisor.WithTables([]string{"orders"}), supervisor.WithDeltaLogFactory(fakeDeltaLogs()))
	results, err := sup.Run(context.Background())

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "orders", results[0].Table)
}

func TestSupervisor_Run_ExcludeFiltersManifestTables(t *testing.T) {
	t.Parallel()

	log := zerolog.New(io.Discard)
	_, factory := fakeStores()
	cfg := &config.Config{ManifestLocation: "s3://bucket", TargetCloud: model.TargetAzure}

	sup := supervisor.New(log, cfg, factory, supervisor.WithExclude([]string{"invoices"}), supervisor.WithDeltaLogFactory(fakeDeltaLogs()))
	results, err := sup.Run(context.Background())

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "orders", results[0].Table)
}

func TestSupervisor_Run_UnknownTableProducesWarningNotPanic(t *testing.T) {
	t.Parallel()

	log := zerolog.New(io.Discard)
	_, factory := fakeStores()
	cfg := &config.Config{ManifestLocation: "s3://bucket", TargetCloud: model.TargetAzure}

	sup := supervisor.New(log, cfg, factory, supervisor.WithTables([]string{"does-not-exist"}))
	results, err := sup.Run(context.Background())

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.NotEmpty(t, results[0].Warnings)
}

func TestSupervisor_New_ClampsWorkersBelowOne(t *testing.T) {
	t.Parallel()

	log := zerolog.New(io.Discard)
	_, factory := fakeStores()
	cfg := &config.Config{ManifestLocation: "s3://bucket", TargetCloud: model.TargetAzure}

	// A workers value below 1 must not reach errgroup.SetLimit as-is:
	// SetLimit(0) would make every eg.Go call block forever.
	sup := supervisor.New(log, cfg, factory, supervisor.WithWorkers(0), supervisor.WithDeltaLogFactory(fakeDeltaLogs()))
	results, err := sup.Run(context.Background())

	require.NoError(t, err)
	assert.Len(t, results, 2)
}
