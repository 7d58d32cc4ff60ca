// Package s3 implements an S3/MinIO backend. Locations are addressed as
// s3://bucket/key. Object ETags double as md5 checksums for the rich
// listing fast path, except multipart ETags, which force a streamed hash.
package s3

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/aweris/castor"
)

const Scheme = "s3"

// Config holds connection settings. Zero values defer to the AWS default
// credential and region chain.
type Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
}

// Backend adapts S3-compatible object storage to the capability contract.
type Backend struct {
	client *awss3.Client
}

// New creates an S3 backend. A failed credential resolution surfaces as a
// MissingDepsError with a remediation hint rather than failing later
// mid-operation.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, &castor.MissingDepsError{
			Scheme: Scheme,
			Deps:   []string{"aws credentials"},
			Hint:   "configure credentials via environment, shared config, or castor's s3.access_key settings",
		}
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &Backend{client: client}, nil
}

func (b *Backend) Scheme() string { return Scheme }

// split decomposes an s3://bucket/key location.
func split(loc castor.Location) (bucket, key string) {
	bucket, key, _ = strings.Cut(loc.Path(), "/")
	return bucket, key
}

func (b *Backend) Exists(ctx context.Context, loc castor.Location) (bool, error) {
	bucket, key := split(loc)
	_, err := b.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	// Keys have no directory entries; a non-empty prefix counts.
	return b.hasPrefix(ctx, bucket, key+"/")
}

func (b *Backend) IsDir(ctx context.Context, loc castor.Location) (bool, error) {
	bucket, key := split(loc)
	return b.hasPrefix(ctx, bucket, key+"/")
}

func (b *Backend) hasPrefix(ctx context.Context, bucket, prefix string) (bool, error) {
	out, err := b.client.ListObjectsV2(ctx, &awss3.ListObjectsV2Input{
		Bucket:  aws.String(bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, fmt.Errorf("list %s/%s: %w", bucket, prefix, err)
	}
	return len(out.Contents) > 0, nil
}

func (b *Backend) WalkFiles(ctx context.Context, loc castor.Location) ([]castor.Location, error) {
	entries, err := b.ListDetail(ctx, loc)
	if err != nil {
		return nil, err
	}
	files := make([]castor.Location, len(entries))
	for i, entry := range entries {
		files[i] = entry.Loc
	}
	return files, nil
}

// ListDetail pages through the prefix, reporting each object's ETag as its
// checksum when it is a plain md5. Multipart ETags are withheld so the
// engine hashes those objects itself.
func (b *Backend) ListDetail(ctx context.Context, loc castor.Location) ([]castor.ListEntry, error) {
	bucket, key := split(loc)
	prefix := key
	if prefix != "" {
		prefix += "/"
	}

	var entries []castor.ListEntry
	paginator := awss3.NewListObjectsV2Paginator(b.client, &awss3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s/%s: %w", bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			entry := castor.ListEntry{
				Loc:  castor.NewLocation(Scheme, bucket+"/"+aws.ToString(obj.Key)),
				Size: castor.SizeUnknown,
			}
			if obj.Size != nil {
				entry.Size = *obj.Size
			}
			if sum := cleanETag(aws.ToString(obj.ETag)); sum != "" {
				entry.Sum = sum
			}
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// cleanETag strips quoting and rejects multipart ETags, which are not
// md5 digests of the content.
func cleanETag(etag string) string {
	etag = strings.Trim(etag, `"`)
	if etag == "" || strings.Contains(etag, "-") {
		return ""
	}
	return etag
}

func (b *Backend) GetFileHash(ctx context.Context, loc castor.Location) (castor.Hash, error) {
	bucket, key := split(loc)
	head, err := b.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return castor.Hash{}, fmt.Errorf("head %s: %w", loc, err)
	}

	size := castor.SizeUnknown
	if head.ContentLength != nil {
		size = *head.ContentLength
	}
	if sum := cleanETag(aws.ToString(head.ETag)); sum != "" {
		return castor.Hash{Algo: castor.AlgoMD5, Value: sum, Size: size}, nil
	}

	// Multipart upload: the ETag is useless, stream the object instead.
	out, err := b.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return castor.Hash{}, fmt.Errorf("get %s: %w", loc, err)
	}
	defer out.Body.Close()

	sum, n, err := castor.SumReader(castor.AlgoMD5, out.Body)
	if err != nil {
		return castor.Hash{}, fmt.Errorf("hash %s: %w", loc, err)
	}
	return castor.Hash{Algo: castor.AlgoMD5, Value: sum, Size: n}, nil
}

func (b *Backend) DownloadFile(ctx context.Context, from castor.Location, toPath string) error {
	bucket, key := split(from)
	out, err := b.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("get %s: %w", from, err)
	}
	defer out.Body.Close()

	f, err := os.OpenFile(toPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, out.Body); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (b *Backend) UploadFile(ctx context.Context, fromPath string, to castor.Location) error {
	f, err := os.Open(fromPath)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	bucket, key := split(to)
	_, err = b.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", to, err)
	}
	return nil
}

func (b *Backend) UploadStream(ctx context.Context, r io.Reader, to castor.Location) error {
	bucket, key := split(to)
	_, err := b.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   r,
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", to, err)
	}
	return nil
}

func (b *Backend) Remove(ctx context.Context, loc castor.Location) error {
	bucket, key := split(loc)
	_, err := b.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", loc, err)
	}
	return nil
}

func (b *Backend) Copy(ctx context.Context, from, to castor.Location) error {
	srcBucket, srcKey := split(from)
	dstBucket, dstKey := split(to)
	_, err := b.client.CopyObject(ctx, &awss3.CopyObjectInput{
		Bucket:     aws.String(dstBucket),
		Key:        aws.String(dstKey),
		CopySource: aws.String(srcBucket + "/" + srcKey),
	})
	if err != nil {
		return fmt.Errorf("copy %s -> %s: %w", from, to, err)
	}
	return nil
}
