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

// Package config resolves the environment-variable surface described in
// spec.md §6 into a model.Config, and validates it before any table is
// processed. Resolution takes an injected lookup function rather than
// reading os.Environ directly, the same inversion the teacher applies to
// its bucket handle (bucket/gcp.NewReader takes a *storage.BucketHandle
// instead of constructing one), so tests never touch process environment.
package config

import (
	"strconv"

	"github.com/cda-sync/delta-sync/model"
)

// S3Credentials is one scope (SOURCE or TARGET) of S3 authentication.
type S3Credentials struct {
	Bucket          string
	Prefix          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
	PathStyle       bool
}

// AzureCredentials authenticates against ADLS Gen2, either via a storage
// account key or a service principal (tenant/client/secret).
type AzureCredentials struct {
	AccountName     string
	AccountKey      string
	TenantID        string
	ClientID        string
	ClientSecret    string
	Container       string
	Subfolder       string
	BlobAuthority   string
	BlobScheme      string
	DFSAuthority    string
	DFSScheme       string
}

// ServicePrincipal reports whether tenant/client/secret auth is configured.
func (a AzureCredentials) ServicePrincipal() bool {
	return a.TenantID != "" && a.ClientID != "" && a.ClientSecret != ""
}

// Config is the fully resolved environment-variable surface for one run.
type Config struct {
	ManifestLocation string
	TargetCloud      model.TargetCloud

	SourceS3 S3Credentials
	// TargetS3 is populated only when TargetCloud == model.TargetAWS.
	TargetS3 S3Credentials
	// TargetAzure is populated only when TargetCloud == model.TargetAzure.
	TargetAzure AzureCredentials

	CheckpointInterval int
	ShowProgress       bool
}

// Getenv is the injected lookup used by Load; os.LookupEnv satisfies it in
// production.
type Getenv func(key string) (string, bool)

// Load resolves a Config from the given environment lookup, applying the
// scope-prefixed-then-unscoped fallback rule from spec.md §6. It performs
// no validation; call Validate on the result before using it.
func Load(getenv Getenv) *Config {
	lookup := func(key string) string {
		v, _ := getenv(key)
		return v
	}
	fallback := func(scoped, unscoped string) string {
		if v := lookup(scoped); v != "" {
			return v
		}
		return lookup(unscoped)
	}

	cfg := &Config{
		ManifestLocation: lookup("AWS_MANIFEST_LOCATION"),
		TargetCloud:      model.TargetAzure,
	}

	if v := lookup("DELTA_TARGET_CLOUD"); v != "" {
		cfg.TargetCloud = model.TargetCloud(v)
	}

	cfg.SourceS3 = S3Credentials{
		Region:          fallback("AWS_SOURCE_REGION", "AWS_REGION"),
		AccessKeyID:     fallback("AWS_SOURCE_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID"),
		SecretAccessKey: fallback("AWS_SOURCE_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY"),
		Endpoint:        fallback("AWS_SOURCE_ENDPOINT_URL", "AWS_ENDPOINT_URL"),
	}

	switch cfg.TargetCloud {
	case model.TargetAzure:
		cfg.TargetAzure = AzureCredentials{
			AccountName:   lookup("AZURE_STORAGE_ACCOUNT_NAME"),
			AccountKey:    lookup("AZURE_STORAGE_ACCOUNT_KEY"),
			TenantID:      lookup("AZURE_TENANT_ID"),
			ClientID:      lookup("AZURE_CLIENT_ID"),
			ClientSecret:  lookup("AZURE_CLIENT_SECRET"),
			Container:     lookup("AZURE_STORAGE_ACCOUNT_CONTAINER"),
			Subfolder:     lookup("AZURE_STORAGE_SUBFOLDER"),
			BlobAuthority: lookup("AZURE_BLOB_STORAGE_AUTHORITY"),
			BlobScheme:    lookup("AZURE_BLOB_STORAGE_SCHEME"),
			DFSAuthority:  lookup("AZURE_DFS_STORAGE_AUTHORITY"),
			DFSScheme:     lookup("AZURE_DFS_STORAGE_SCHEME"),
		}
	case model.TargetAWS:
		cfg.TargetS3 = S3Credentials{
			Bucket:          fallback("AWS_TARGET_S3_BUCKET", "AWS_S3_BUCKET"),
			Prefix:          fallback("AWS_TARGET_S3_PREFIX", "AWS_S3_PREFIX"),
			Region:          fallback("AWS_TARGET_REGION", "AWS_REGION"),
			AccessKeyID:     fallback("AWS_TARGET_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID"),
			SecretAccessKey: fallback("AWS_TARGET_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY"),
			Endpoint:        fallback("AWS_TARGET_ENDPOINT_URL", "AWS_ENDPOINT_URL"),
		}
	}

	cfg.CheckpointInterval = 100
	if v := lookup("DELTA_LOG_CHECKPOINT_INTERVAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.CheckpointInterval = n
		}
	}

	cfg.ShowProgress = true
	if v := lookup("SHOW_TABLE_PROGRESS"); v == "0" {
		cfg.ShowProgress = false
	}

	return cfg
}
