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

package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBaseName(t *testing.T) {
	t.Parallel()

	cases := []struct {
		path string
		want string
	}{
		{"bucket/orders/v1/100", "100"},
		{"bucket/orders/v1/100/", "100"},
		{"100", "100"},
		{"", ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, baseName(c.path))
	}
}

func TestTimeToNs(t *testing.T) {
	t.Parallel()

	assert.Equal(t, int64(0), timeToNs(nil))

	now := time.Unix(0, 123456789)
	assert.Equal(t, int64(123456789), timeToNs(&now))
}

func TestSplitURI(t *testing.T) {
	t.Parallel()

	cases := []struct {
		uri        string
		wantBucket string
		wantKey    string
	}{
		{"s3://bucket/orders/v1/", "bucket", "orders/v1/"},
		{"bucket/orders", "bucket", "orders"},
		{"s3://bucket", "bucket", ""},
		{"bucket", "bucket", ""},
	}
	for _, c := range cases {
		bucket, key := splitURI(c.uri)
		assert.Equal(t, c.wantBucket, bucket)
		assert.Equal(t, c.wantKey, key)
	}
}

func TestSplitADLS(t *testing.T) {
	t.Parallel()

	cases := []struct {
		uri  string
		want string
	}{
		{"abfss://container@account.dfs.core.windows.net/orders/v1/", "orders/v1/"},
		{"abfss://orders/v1/", "orders/v1/"},
		{"orders/v1/", "orders/v1/"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, splitADLS(c.uri))
	}
}
