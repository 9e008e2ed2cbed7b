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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/parquet-go/parquet-go"

	"github.com/cda-sync/delta-sync/model"
)

// S3Options configures an S3-backed Store. It is a plain value so the same
// constructor serves both the SOURCE (manifest read) and TARGET (Delta
// write) credential scopes without the two scopes sharing any state.
type S3Options struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
	PathStyle       bool
}

// s3Store is the S3 variant of Store, backed by aws-sdk-go-v2.
type s3Store struct {
	client *s3.Client
}

// NewS3 builds a Store backed by AWS S3 (or an S3-compatible endpoint, for
// testing against local emulators).
func NewS3(ctx context.Context, opts S3Options) (Store, error) {
	creds := credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, "")

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(opts.Region),
		awsconfig.WithCredentialsProvider(creds),
	)
	if err != nil {
		return nil, fmt.Errorf("could not load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = &opts.Endpoint
		}
		o.UsePathStyle = opts.PathStyle
	})

	return &s3Store{client: client}, nil
}

// splitURI splits an s3://bucket/key... or bare bucket/key... URI into its
// bucket and key components.
func splitURI(uri string) (bucket, key string) {
	uri = strings.TrimPrefix(uri, "s3://")
	parts := strings.SplitN(uri, "/", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}

func (s *s3Store) List(ctx context.Context, dir string) ([]model.DirEntry, error) {
	bucket, prefix := splitURI(dir)
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	var entries []model.DirEntry
	var token *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            &bucket,
			Prefix:            &prefix,
			Delimiter:         strPtr("/"),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, &model.StorageError{Op: "list", Path: dir, Err: err}
		}

		for _, p := range out.CommonPrefixes {
			path := strings.TrimSuffix(*p.Prefix, "/")
			entries = append(entries, model.DirEntry{
				Path:     "s3://" + bucket + "/" + path,
				Type:     model.EntryDir,
				BaseName: baseName(path),
			})
		}
		for _, c := range out.Contents {
			if *c.Key == prefix {
				continue
			}
			entries = append(entries, model.DirEntry{
				Path:     "s3://" + bucket + "/" + *c.Key,
				Type:     model.EntryFile,
				BaseName: baseName(*c.Key),
				Size:     derefInt64(c.Size),
				MtimeNs:  timeToNs(c.LastModified),
			})
		}

		if out.NextContinuationToken == nil {
			break
		}
		token = out.NextContinuationToken
	}

	return entries, nil
}

func (s *s3Store) ReadParquetSchema(ctx context.Context, path string) (*parquet.Schema, error) {
	bucket, key := splitURI(path)

	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &bucket, Key: &key})
	if err != nil {
		return nil, &model.StorageError{Op: "head", Path: path, Err: err}
	}
	size := derefInt64(head.ContentLength)

	ra := &s3ReaderAt{ctx: ctx, client: s.client, bucket: bucket, key: key}
	file, err := parquet.OpenFile(ra, size)
	if err != nil {
		return nil, &model.StorageError{Op: "read_parquet_schema", Path: path, Err: err}
	}

	return file.Schema(), nil
}

func (s *s3Store) ReadJSON(ctx context.Context, path string, v interface{}) error {
	bucket, key := splitURI(path)

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &bucket, Key: &key})
	if err != nil {
		return &model.StorageError{Op: "read_json", Path: path, Err: err}
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return &model.StorageError{Op: "read_json", Path: path, Err: err}
	}

	if err := json.Unmarshal(body, v); err != nil {
		return &model.StorageError{Op: "read_json", Path: path, Err: err}
	}
	return nil
}

func (s *s3Store) DeleteDir(ctx context.Context, uri string) bool {
	bucket, prefix := splitURI(uri)
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	var token *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            &bucket,
			Prefix:            &prefix,
			ContinuationToken: token,
		})
		if err != nil {
			return false
		}

		for _, obj := range out.Contents {
			_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: &bucket, Key: obj.Key})
			if err != nil {
				return false
			}
		}

		if out.NextContinuationToken == nil {
			break
		}
		token = out.NextContinuationToken
	}
	return true
}

// s3ReaderAt implements io.ReaderAt over an S3 object via ranged GetObject
// calls, so parquet.OpenFile only pulls the footer bytes it needs rather
// than downloading the whole file.
type s3ReaderAt struct {
	ctx    context.Context
	client *s3.Client
	bucket string
	key    string
}

func (r *s3ReaderAt) ReadAt(p []byte, off int64) (int, error) {
	rangeHeader := fmt.Sprintf("bytes=%d-%d", off, off+int64(len(p))-1)
	out, err := r.client.GetObject(r.ctx, &s3.GetObjectInput{
		Bucket: &r.bucket,
		Key:    &r.key,
		Range:  &rangeHeader,
	})
	if err != nil {
		return 0, err
	}
	defer out.Body.Close()

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, out.Body); err != nil {
		return 0, err
	}
	n := copy(p, buf.Bytes())
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func strPtr(s string) *string { return &s }

func derefInt64(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}
