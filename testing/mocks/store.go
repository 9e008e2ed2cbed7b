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

// Store is a function-field fake of storage.Store, letting batch and
// manifest tests drive List/ReadParquetSchema/ReadJSON/DeleteDir without a
// real cloud backend.
type Store struct {
	ListFunc              func(ctx context.Context, dir string) ([]model.DirEntry, error)
	ReadParquetSchemaFunc func(ctx context.Context, path string) (*parquet.Schema, error)
	ReadJSONFunc          func(ctx context.Context, path string, v interface{}) error
	DeleteDirFunc         func(ctx context.Context, uri string) bool
}

// BaselineStore returns a Store whose every method succeeds trivially;
// tests override only the funcs they care about.
func BaselineStore() *Store {
	return &Store{
		ListFunc: func(ctx context.Context, dir string) ([]model.DirEntry, error) {
			return nil, nil
		},
		ReadParquetSchemaFunc: func(ctx context.Context, path string) (*parquet.Schema, error) {
			return parquet.SchemaOf(struct{}{}), nil
		},
		ReadJSONFunc: func(ctx context.Context, path string, v interface{}) error {
			return nil
		},
		DeleteDirFunc: func(ctx context.Context, uri string) bool {
			return true
		},
	}
}

func (s *Store) List(ctx context.Context, dir string) ([]model.DirEntry, error) {
	return s.ListFunc(ctx, dir)
}

func (s *Store) ReadParquetSchema(ctx context.Context, path string) (*parquet.Schema, error) {
	return s.ReadParquetSchemaFunc(ctx, path)
}

func (s *Store) ReadJSON(ctx context.Context, path string, v interface{}) error {
	return s.ReadJSONFunc(ctx, path, v)
}

func (s *Store) DeleteDir(ctx context.Context, uri string) bool {
	return s.DeleteDirFunc(ctx, uri)
}
