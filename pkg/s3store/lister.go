// Package s3store lists objects in an S3 bucket as registry entries, as an
// alternative to the Dropbox backend. Public download links are presigned
// GET URLs; the provider content hash is read from object user metadata.
package s3store

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/tlambert03/pooch-dropbox/pkg/registry"
)

// HashMetadataKey is the object user-metadata key holding the block-wise
// content hash, recorded at upload time.
const HashMetadataKey = "content-hash"

// DefaultExpiry is how long presigned URLs stay valid when no expiry is
// configured.
const DefaultExpiry = 7 * 24 * time.Hour

// ObjectAPI is the subset of the S3 client the lister consumes.
type ObjectAPI interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// PresignAPI generates presigned GET URLs.
type PresignAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Lister enumerates bucket objects under a key prefix. It implements
// registry.Lister.
type Lister struct {
	client    ObjectAPI
	presigner PresignAPI
	bucket    string
	expiry    time.Duration
}

// New creates a Lister for bucket using the given AWS configuration.
func New(cfg aws.Config, bucket string, expiry time.Duration) *Lister {
	client := s3.NewFromConfig(cfg)
	return NewWithClient(client, s3.NewPresignClient(client), bucket, expiry)
}

// NewWithClient creates a Lister over explicit API implementations.
func NewWithClient(client ObjectAPI, presigner PresignAPI, bucket string, expiry time.Duration) *Lister {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &Lister{
		client:    client,
		presigner: presigner,
		bucket:    bucket,
		expiry:    expiry,
	}
}

// ListFolder lists the objects under the folder key prefix, following
// pagination. When recursive is false a `/` delimiter confines the listing
// to the immediate folder. Folder markers (keys ending in `/`) are
// skipped.
func (l *Lister) ListFolder(ctx context.Context, folder string, recursive bool, extension string) ([]registry.Entry, error) {
	prefix := strings.TrimPrefix(folder, "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(l.bucket),
		Prefix: aws.String(prefix),
	}
	if !recursive {
		input.Delimiter = aws.String("/")
	}

	var entries []registry.Entry
	for {
		out, err := l.client.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("s3store: listing s3://%s/%s: %w", l.bucket, prefix, err)
		}

		for _, obj := range out.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, "/") {
				continue
			}
			if extension != "" && !strings.HasSuffix(key, extension) {
				continue
			}

			entry, err := l.entry(ctx, key, aws.ToInt64(obj.Size), aws.ToTime(obj.LastModified))
			if err != nil {
				return nil, err
			}
			entries = append(entries, entry)
		}

		if !aws.ToBool(out.IsTruncated) {
			break
		}
		input.ContinuationToken = out.NextContinuationToken
	}
	return entries, nil
}

func (l *Lister) entry(ctx context.Context, key string, size int64, lastModified time.Time) (registry.Entry, error) {
	head, err := l.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(l.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return registry.Entry{}, fmt.Errorf("s3store: head s3://%s/%s: %w", l.bucket, key, err)
	}

	presigned, err := l.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(l.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(l.expiry))
	if err != nil {
		return registry.Entry{}, fmt.Errorf("s3store: presign s3://%s/%s: %w", l.bucket, key, err)
	}

	return registry.Entry{
		Name:         path.Base(key),
		Path:         key,
		LastModified: lastModified,
		ContentHash:  head.Metadata[HashMetadataKey],
		URL:          presigned.URL,
		Size:         size,
		// Presigned URLs grant anyone access until expiry.
		Public: true,
	}, nil
}
