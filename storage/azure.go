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

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/service"
	"github.com/parquet-go/parquet-go"

	"github.com/cda-sync/delta-sync/model"
)

// AzureOptions configures an ADLS Gen2 Store. ADLS Gen2 is blob storage
// with a hierarchical namespace enabled, so the blob data-plane client
// (list/read/delete) is sufficient for everything this facade needs; there
// is no dependency on the separate Data Lake-specific SDK module.
type AzureOptions struct {
	AccountName   string
	AccountKey    string
	TenantID      string
	ClientID      string
	ClientSecret  string
	Container     string
	BlobAuthority string
	BlobScheme    string
}

type azureStore struct {
	container *container.Client
}

// NewADLS builds a Store backed by Azure Data Lake Storage Gen2, choosing
// storage-key or service-principal authentication the way spec.md §6
// describes: service principal first if all three of tenant/client/secret
// are set, otherwise the account key.
func NewADLS(ctx context.Context, opts AzureOptions) (Store, error) {
	scheme := opts.BlobScheme
	if scheme == "" {
		scheme = "https"
	}
	authority := opts.BlobAuthority
	if authority == "" {
		authority = opts.AccountName + ".blob.core.windows.net"
	}
	serviceURL := fmt.Sprintf("%s://%s/", scheme, authority)

	var svc *service.Client
	var err error
	switch {
	case opts.TenantID != "" && opts.ClientID != "" && opts.ClientSecret != "":
		cred, credErr := azidentity.NewClientSecretCredential(opts.TenantID, opts.ClientID, opts.ClientSecret, nil)
		if credErr != nil {
			return nil, fmt.Errorf("could not build azure service principal credential: %w", credErr)
		}
		svc, err = service.NewClient(serviceURL, cred, nil)
	case opts.AccountKey != "":
		cred, credErr := azblob.NewSharedKeyCredential(opts.AccountName, opts.AccountKey)
		if credErr != nil {
			return nil, fmt.Errorf("could not build azure shared key credential: %w", credErr)
		}
		svc, err = service.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	default:
		return nil, fmt.Errorf("azure storage credentials must be set")
	}
	if err != nil {
		return nil, fmt.Errorf("could not build azure service client: %w", err)
	}

	return &azureStore{container: svc.NewContainerClient(opts.Container)}, nil
}

// splitADLS strips a leading abfss://container@account.dfs.core.windows.net/
// or plain container-relative prefix down to the blob-name prefix.
func splitADLS(uri string) string {
	if i := strings.Index(uri, "windows.net/"); i >= 0 {
		return uri[i+len("windows.net/"):]
	}
	return strings.TrimPrefix(uri, "abfss://")
}

func (a *azureStore) List(ctx context.Context, dir string) ([]model.DirEntry, error) {
	prefix := splitADLS(dir)
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	var entries []model.DirEntry
	pager := a.container.NewListBlobsHierarchyPager("/", &container.ListBlobsHierarchyOptions{
		Prefix: &prefix,
	})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, &model.StorageError{Op: "list", Path: dir, Err: err}
		}
		for _, p := range page.Segment.BlobPrefixes {
			name := strings.TrimSuffix(*p.Name, "/")
			entries = append(entries, model.DirEntry{
				Path:     name,
				Type:     model.EntryDir,
				BaseName: baseName(name),
			})
		}
		for _, b := range page.Segment.BlobItems {
			entries = append(entries, model.DirEntry{
				Path:     *b.Name,
				Type:     model.EntryFile,
				BaseName: baseName(*b.Name),
				Size:     derefInt64(b.Properties.ContentLength),
				MtimeNs:  timeToNs(b.Properties.LastModified),
			})
		}
	}

	return entries, nil
}

func (a *azureStore) ReadParquetSchema(ctx context.Context, path string) (*parquet.Schema, error) {
	blobName := splitADLS(path)
	blob := a.container.NewBlobClient(blobName)

	props, err := blob.GetProperties(ctx, nil)
	if err != nil {
		return nil, &model.StorageError{Op: "head", Path: path, Err: err}
	}
	size := derefInt64(props.ContentLength)

	ra := &azureReaderAt{ctx: ctx, blob: blob}
	file, err := parquet.OpenFile(ra, size)
	if err != nil {
		return nil, &model.StorageError{Op: "read_parquet_schema", Path: path, Err: err}
	}

	return file.Schema(), nil
}

func (a *azureStore) ReadJSON(ctx context.Context, path string, v interface{}) error {
	blobName := splitADLS(path)
	blob := a.container.NewBlobClient(blobName)

	resp, err := blob.DownloadStream(ctx, nil)
	if err != nil {
		return &model.StorageError{Op: "read_json", Path: path, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &model.StorageError{Op: "read_json", Path: path, Err: err}
	}

	if err := json.Unmarshal(body, v); err != nil {
		return &model.StorageError{Op: "read_json", Path: path, Err: err}
	}
	return nil
}

func (a *azureStore) DeleteDir(ctx context.Context, uri string) bool {
	prefix := splitADLS(uri)
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	pager := a.container.NewListBlobsFlatPager(&container.ListBlobsFlatOptions{Prefix: &prefix})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return false
		}
		for _, b := range page.Segment.BlobItems {
			blob := a.container.NewBlobClient(*b.Name)
			if _, err := blob.Delete(ctx, nil); err != nil {
				return false
			}
		}
	}
	return true
}

// azureReaderAt implements io.ReaderAt over a blob via ranged downloads, so
// parquet.OpenFile only pulls the footer bytes it needs.
type azureReaderAt struct {
	ctx  context.Context
	blob *blob.Client
}

func (r *azureReaderAt) ReadAt(p []byte, off int64) (int, error) {
	count := int64(len(p))
	resp, err := r.blob.DownloadStream(r.ctx, &azblob.DownloadStreamOptions{
		Range: blob.HTTPRange{Offset: off, Count: count},
	})
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, resp.Body); err != nil {
		return 0, err
	}
	n := copy(p, buf.Bytes())
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}
