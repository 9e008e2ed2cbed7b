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

// Package manifest reads the upstream CDA export manifest: one JSON
// document at {location}/manifest.json mapping table name to a list of
// per-table metadata entries, the first of which is authoritative. This
// mirrors the original guidewire.manifest.Manifest class, loaded once per
// run through the same storage.Store facade the rest of the pipeline uses.
package manifest

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/cda-sync/delta-sync/model"
	"github.com/cda-sync/delta-sync/storage"
)

const fileName = "manifest.json"

// Manifest is the loaded, optionally table-filtered manifest document.
type Manifest struct {
	logger   zerolog.Logger
	location string
	entries  map[string][]model.ManifestEntry
}

// Load reads location/manifest.json through store and filters it down to
// tableNames, matching Manifest.__init__ + _initialize. A nil or empty
// tableNames keeps every table the manifest document lists.
func Load(ctx context.Context, logger zerolog.Logger, store storage.Store, location string, tableNames []string) (*Manifest, error) {
	if location == "" {
		return nil, &model.ValidationError{Field: "location", Reason: "cannot be empty"}
	}

	path := location
	if path[len(path)-1] != '/' {
		path += "/"
	}
	path += fileName

	logger.Info().Str("path", path).Msg("reading manifest")

	var raw map[string][]model.ManifestEntry
	if err := store.ReadJSON(ctx, path, &raw); err != nil {
		logger.Error().Err(err).Str("path", path).Msg("failed to read manifest")
		return nil, fmt.Errorf("reading manifest at %s: %w", path, err)
	}

	m := &Manifest{logger: logger, location: location}

	if len(tableNames) == 0 {
		m.entries = raw
	} else {
		wanted := make(map[string]bool, len(tableNames))
		for _, t := range tableNames {
			wanted[t] = true
		}
		m.entries = make(map[string][]model.ManifestEntry, len(tableNames))
		for k, v := range raw {
			if wanted[k] {
				m.entries[k] = v
			}
		}
	}

	logger.Info().Strs("tables", tableNames).Str("location", location).Msg("loaded manifest")
	return m, nil
}

// TableNames returns every table name the loaded manifest carries.
func (m *Manifest) TableNames() []string {
	names := make([]string, 0, len(m.entries))
	for k := range m.entries {
		names = append(names, k)
	}
	return names
}

// Read returns the first (authoritative) entry for table, with its Name
// field populated, or false if the table is absent or has no entries.
func (m *Manifest) Read(table string) (model.ManifestEntry, bool) {
	rows, ok := m.entries[table]
	if !ok || len(rows) == 0 {
		m.logger.Error().Str("table", table).Msg("table does not exist in manifest")
		return model.ManifestEntry{}, false
	}

	entry := rows[0]
	entry.Name = table
	return entry, true
}
