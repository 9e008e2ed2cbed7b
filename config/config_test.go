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

package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cda-sync/delta-sync/config"
	"github.com/cda-sync/delta-sync/model"
)

func lookupFrom(env map[string]string) config.Getenv {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestLoad_DefaultsToAzureTarget(t *testing.T) {
	t.Parallel()

	cfg := config.Load(lookupFrom(nil))
	assert.Equal(t, model.TargetAzure, cfg.TargetCloud)
	assert.Equal(t, 100, cfg.CheckpointInterval)
	assert.True(t, cfg.ShowProgress)
}

func TestLoad_ScopedOverridesUnscoped(t *testing.T) {
	t.Parallel()

	cfg := config.Load(lookupFrom(map[string]string{
		"AWS_REGION":        "us-east-1",
		"AWS_SOURCE_REGION": "eu-west-1",
	}))
	assert.Equal(t, "eu-west-1", cfg.SourceS3.Region)
}

func TestLoad_FallsBackToUnscopedWhenScopedMissing(t *testing.T) {
	t.Parallel()

	cfg := config.Load(lookupFrom(map[string]string{
		"AWS_REGION": "us-east-1",
	}))
	assert.Equal(t, "us-east-1", cfg.SourceS3.Region)
}

func TestLoad_TargetAWSPopulatesTargetS3(t *testing.T) {
	t.Parallel()

	cfg := config.Load(lookupFrom(map[string]string{
		"DELTA_TARGET_CLOUD":    "aws",
		"AWS_TARGET_S3_BUCKET":  "my-bucket",
		"AWS_TARGET_REGION":     "us-west-2",
	}))
	assert.Equal(t, model.TargetAWS, cfg.TargetCloud)
	assert.Equal(t, "my-bucket", cfg.TargetS3.Bucket)
	assert.Equal(t, "us-west-2", cfg.TargetS3.Region)
	assert.Empty(t, cfg.TargetAzure.AccountName)
}

func TestLoad_CheckpointIntervalOverride(t *testing.T) {
	t.Parallel()

	cfg := config.Load(lookupFrom(map[string]string{
		"DELTA_LOG_CHECKPOINT_INTERVAL": "50",
	}))
	assert.Equal(t, 50, cfg.CheckpointInterval)
}

func TestLoad_ShowProgressDisabledByZero(t *testing.T) {
	t.Parallel()

	cfg := config.Load(lookupFrom(map[string]string{
		"SHOW_TABLE_PROGRESS": "0",
	}))
	assert.False(t, cfg.ShowProgress)
}

func TestValidate_RejectsUnknownTargetCloud(t *testing.T) {
	t.Parallel()

	cfg := config.Load(lookupFrom(map[string]string{"DELTA_TARGET_CLOUD": "gcp"}))
	err := config.Validate(cfg)
	require.Error(t, err)
}

func TestValidate_AzureServicePrincipalSatisfiesAccountKeyRequirement(t *testing.T) {
	t.Parallel()

	cfg := config.Load(lookupFrom(map[string]string{
		"AWS_MANIFEST_LOCATION":          "s3://bucket/manifest",
		"AWS_SOURCE_REGION":              "us-east-1",
		"AWS_SOURCE_ACCESS_KEY_ID":       "key",
		"AWS_SOURCE_SECRET_ACCESS_KEY":   "secret",
		"AZURE_STORAGE_ACCOUNT_NAME":     "account",
		"AZURE_STORAGE_ACCOUNT_CONTAINER": "container",
		"AZURE_TENANT_ID":                "tenant",
		"AZURE_CLIENT_ID":                "client",
		"AZURE_CLIENT_SECRET":            "secret",
	}))
	assert.NoError(t, config.Validate(cfg))
}

func TestValidate_MissingSourceCredentialsReported(t *testing.T) {
	t.Parallel()

	cfg := config.Load(lookupFrom(map[string]string{
		"AZURE_STORAGE_ACCOUNT_NAME":      "account",
		"AZURE_STORAGE_ACCOUNT_CONTAINER": "container",
		"AZURE_STORAGE_ACCOUNT_KEY":       "key",
	}))
	err := config.Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AWS_SOURCE_REGION")
}
