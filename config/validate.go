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

package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"

	"github.com/cda-sync/delta-sync/model"
)

// cloudTag is a struct used only to run go-playground/validator's oneof
// check against the resolved TargetCloud, the same way api/rosetta in the
// teacher validates a request field against an enumerated set of values.
type cloudTag struct {
	TargetCloud string `validate:"oneof=azure aws"`
}

var validate = validator.New()

// Validate checks that every environment variable required for the
// resolved Config's target cloud is present, and that TargetCloud itself
// is one of the recognized values. Missing variables are grouped by role
// (common / source / target) into a *model.ConfigurationError, matching
// spec.md §6's error-message grouping.
func Validate(cfg *Config) error {
	var multi *multierror.Error

	if err := validate.Struct(cloudTag{TargetCloud: string(cfg.TargetCloud)}); err != nil {
		multi = multierror.Append(multi, fmt.Errorf("DELTA_TARGET_CLOUD: must be one of [azure aws], got %q", cfg.TargetCloud))
	}

	cerr := &model.ConfigurationError{}

	if cfg.ManifestLocation == "" {
		cerr.MissingCommon = append(cerr.MissingCommon, "AWS_MANIFEST_LOCATION")
	}

	if cfg.SourceS3.Region == "" {
		cerr.MissingSource = append(cerr.MissingSource, "AWS_SOURCE_REGION (or AWS_REGION)")
	}
	if cfg.SourceS3.AccessKeyID == "" {
		cerr.MissingSource = append(cerr.MissingSource, "AWS_SOURCE_ACCESS_KEY_ID (or AWS_ACCESS_KEY_ID)")
	}
	if cfg.SourceS3.SecretAccessKey == "" {
		cerr.MissingSource = append(cerr.MissingSource, "AWS_SOURCE_SECRET_ACCESS_KEY (or AWS_SECRET_ACCESS_KEY)")
	}

	switch cfg.TargetCloud {
	case model.TargetAzure:
		if cfg.TargetAzure.AccountName == "" {
			cerr.MissingTarget = append(cerr.MissingTarget, "AZURE_STORAGE_ACCOUNT_NAME")
		}
		if cfg.TargetAzure.Container == "" {
			cerr.MissingTarget = append(cerr.MissingTarget, "AZURE_STORAGE_ACCOUNT_CONTAINER")
		}
		if cfg.TargetAzure.AccountKey == "" && !cfg.TargetAzure.ServicePrincipal() {
			cerr.MissingTarget = append(cerr.MissingTarget, "AZURE_STORAGE_ACCOUNT_KEY (or AZURE_TENANT_ID/AZURE_CLIENT_ID/AZURE_CLIENT_SECRET)")
		}
	case model.TargetAWS:
		if cfg.TargetS3.Bucket == "" {
			cerr.MissingTarget = append(cerr.MissingTarget, "AWS_TARGET_S3_BUCKET (or AWS_S3_BUCKET)")
		}
		if cfg.TargetS3.Region == "" {
			cerr.MissingTarget = append(cerr.MissingTarget, "AWS_TARGET_REGION (or AWS_REGION)")
		}
		if cfg.TargetS3.AccessKeyID == "" {
			cerr.MissingTarget = append(cerr.MissingTarget, "AWS_TARGET_ACCESS_KEY_ID (or AWS_ACCESS_KEY_ID)")
		}
		if cfg.TargetS3.SecretAccessKey == "" {
			cerr.MissingTarget = append(cerr.MissingTarget, "AWS_TARGET_SECRET_ACCESS_KEY (or AWS_SECRET_ACCESS_KEY)")
		}
	}

	if !cerr.Empty() {
		multi = multierror.Append(multi, cerr)
	}

	return multi.ErrorOrNil()
}
