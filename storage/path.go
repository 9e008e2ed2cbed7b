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
	"strings"
	"time"
)

// baseName returns the last path segment of a slash-separated key,
// mirroring pyarrow's FileInfo.base_name used by the original
// implementation to decide whether a directory name is numeric.
func baseName(path string) string {
	path = strings.TrimSuffix(path, "/")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}

// timeToNs converts an optional time.Time into epoch nanoseconds, or 0 if
// the pointer is nil.
func timeToNs(t *time.Time) int64 {
	if t == nil {
		return 0
	}
	return t.UnixNano()
}
