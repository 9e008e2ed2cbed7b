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

package deltalog_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cda-sync/delta-sync/config"
	"github.com/cda-sync/delta-sync/deltalog"
	"github.com/cda-sync/delta-sync/model"
)

func TestURI_AzureWithoutSubfolder(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		TargetCloud: model.TargetAzure,
		TargetAzure: config.AzureCredentials{
			Container:   "delta",
			AccountName: "myaccount",
		},
	}
	assert.Equal(t, "abfss://delta@myaccount.dfs.core.windows.net/orders/", deltalog.URI(cfg, "orders"))
}

func TestURI_AzureWithSubfolder(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		TargetCloud: model.TargetAzure,
		TargetAzure: config.AzureCredentials{
			Container:   "delta",
			AccountName: "myaccount",
			Subfolder:   "/cda/",
		},
	}
	assert.Equal(t, "abfss://delta@myaccount.dfs.core.windows.net/cda/orders/", deltalog.URI(cfg, "orders"))
}

func TestURI_AzureCustomAuthorityAndScheme(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		TargetCloud: model.TargetAzure,
		TargetAzure: config.AzureCredentials{
			Container:    "delta",
			AccountName:  "myaccount",
			DFSAuthority: "myaccount.dfs.core.chinacloudapi.cn",
			DFSScheme:    "abfs",
		},
	}
	assert.Equal(t, "abfs://delta@myaccount.dfs.core.chinacloudapi.cn/orders/", deltalog.URI(cfg, "orders"))
}

func TestURI_AWSWithoutPrefix(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		TargetCloud: model.TargetAWS,
		TargetS3: config.S3Credentials{
			Bucket: "my-bucket",
		},
	}
	assert.Equal(t, "s3://my-bucket/orders/", deltalog.URI(cfg, "orders"))
}

func TestURI_AWSWithPrefix(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		TargetCloud: model.TargetAWS,
		TargetS3: config.S3Credentials{
			Bucket: "my-bucket",
			Prefix: "/cda/",
		},
	}
	assert.Equal(t, "s3://my-bucket/cda/orders/", deltalog.URI(cfg, "orders"))
}

func TestURI_TrimsSlashesFromTableName(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		TargetCloud: model.TargetAWS,
		TargetS3:    config.S3Credentials{Bucket: "my-bucket"},
	}
	assert.Equal(t, "s3://my-bucket/orders/", deltalog.URI(cfg, "/orders/"))
}

func TestTargetStorageOptions_AzureAccountKey(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		TargetCloud: model.TargetAzure,
		TargetAzure: config.AzureCredentials{
			AccountName: "myaccount",
			AccountKey:  "secretkey",
		},
	}
	opts := deltalog.TargetStorageOptions(cfg)
	assert.Equal(t, "myaccount", opts["azure_storage_account_name"])
	assert.Equal(t, "secretkey", opts["azure_storage_account_key"])
	assert.NotContains(t, opts, "azure_storage_tenant_id")
}

func TestTargetStorageOptions_AzureServicePrincipal(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		TargetCloud: model.TargetAzure,
		TargetAzure: config.AzureCredentials{
			AccountName:  "myaccount",
			TenantID:     "tenant",
			ClientID:     "client",
			ClientSecret: "secret",
		},
	}
	opts := deltalog.TargetStorageOptions(cfg)
	assert.Equal(t, "tenant", opts["azure_storage_tenant_id"])
	assert.Equal(t, "client", opts["azure_storage_client_id"])
	assert.Equal(t, "secret", opts["azure_storage_client_secret"])
	assert.NotContains(t, opts, "azure_storage_account_key")
}

func TestTargetStorageOptions_AWS(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		TargetCloud: model.TargetAWS,
		TargetS3: config.S3Credentials{
			Region:          "us-east-1",
			AccessKeyID:     "key",
			SecretAccessKey: "secret",
		},
	}
	opts := deltalog.TargetStorageOptions(cfg)
	assert.Equal(t, "us-east-1", opts["aws_region"])
	assert.Equal(t, "key", opts["aws_access_key_id"])
	assert.Equal(t, "secret", opts["aws_secret_access_key"])
}
