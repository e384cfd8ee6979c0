package archive

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	"github.com/kode4food/buildprops/internal/runs"
	"github.com/kode4food/buildprops/pkg/api"

	_ "gocloud.dev/blob/azureblob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/s3blob"
)

type (
	// BlobArchiver writes completed runs to a gocloud.dev bucket, supporting
	// S3, GCS, Azure Blob Storage and local directories
	BlobArchiver struct {
		bucket Bucket
		prefix string
	}

	// Bucket is the part of *blob.Bucket the archiver uses
	Bucket interface {
		WriteAll(context.Context, string, []byte, *blob.WriterOptions) error
		ReadAll(context.Context, string) ([]byte, error)
		Delete(context.Context, string) error
		Close() error
	}
)

var (
	ErrBucketRequired   = errors.New("bucket is required")
	ErrSnapshotRequired = errors.New("run snapshot is required")
	ErrArchiveNotFound  = errors.New("archived run not found")
)

var _ runs.Archiver = (*BlobArchiver)(nil)

// Open opens the bucket at bucketURL and returns an archiver writing under
// prefix
func Open(
	ctx context.Context, bucketURL, prefix string,
) (*BlobArchiver, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, err
	}
	return NewBlobArchiver(bucket, prefix)
}

// NewBlobArchiver wraps an already opened bucket
func NewBlobArchiver(bucket Bucket, prefix string) (*BlobArchiver, error) {
	if bucket == nil {
		return nil, ErrBucketRequired
	}
	return &BlobArchiver{bucket: bucket, prefix: prefix}, nil
}

// ArchiveRun writes the snapshot as JSON at <prefix>/runs/<job>/<id>.json
func (a *BlobArchiver) ArchiveRun(
	ctx context.Context, snap *runs.Snapshot,
) error {
	if snap == nil {
		return ErrSnapshotRequired
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	opts := &blob.WriterOptions{ContentType: "application/json"}
	return a.bucket.WriteAll(ctx, a.keyFor(snap.Run.Job, snap.Run.ID), data,
		opts,
	)
}

// Get reads an archived run back
func (a *BlobArchiver) Get(
	ctx context.Context, job string, id api.RunID,
) (*runs.Snapshot, error) {
	data, err := a.bucket.ReadAll(ctx, a.keyFor(job, id))
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, ErrArchiveNotFound
		}
		return nil, err
	}
	var snap runs.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Delete removes an archived run. Deleting a missing run is not an error
func (a *BlobArchiver) Delete(
	ctx context.Context, job string, id api.RunID,
) error {
	err := a.bucket.Delete(ctx, a.keyFor(job, id))
	if err != nil && gcerrors.Code(err) == gcerrors.NotFound {
		return nil
	}
	return err
}

// Close closes the underlying bucket
func (a *BlobArchiver) Close() error {
	return a.bucket.Close()
}

func (a *BlobArchiver) keyFor(job string, id api.RunID) string {
	key := "runs/" + job + "/" + string(id) + ".json"
	if a.prefix == "" {
		return key
	}
	if !strings.HasSuffix(a.prefix, "/") {
		return a.prefix + "/" + key
	}
	return a.prefix + key
}
