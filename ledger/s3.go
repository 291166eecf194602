package ledger

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/ruteri/tee-dataroom-backend/interfaces"
)

// S3Ledger implements a ledger backend using Amazon S3 or compatible
// services. Rows are private objects keyed by table and URL-escaped row
// key.
type S3Ledger struct {
	client         *s3.S3
	writeClient    *s3.S3
	bucketName     string
	prefix         string
	log            *slog.Logger
	locationURI    string
	hasWriteAccess bool
}

// NewS3Ledger creates a new S3 ledger backend. If accessKey and secretKey
// are provided, the backend will have write access; otherwise it is
// read-only for publicly accessible buckets.
func NewS3Ledger(bucketName, prefix, region, endpoint, accessKey, secretKey string, log *slog.Logger) (*S3Ledger, error) {
	uri := fmt.Sprintf("s3://%s/%s?region=%s", bucketName, prefix, region)
	if endpoint != "" {
		uri += fmt.Sprintf("&endpoint=%s", endpoint)
	}
	if accessKey != "" {
		uri = fmt.Sprintf("s3://%s:***@%s/%s?region=%s", accessKey, bucketName, prefix, region)
		if endpoint != "" {
			uri += fmt.Sprintf("&endpoint=%s", endpoint)
		}
	}

	baseCfg := aws.Config{
		Region: aws.String(region),
	}
	if endpoint != "" {
		baseCfg.Endpoint = aws.String(endpoint)
	}

	baseSess, err := session.NewSession(&baseCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	readClient := s3.New(baseSess)

	hasWriteAccess := accessKey != "" && secretKey != ""
	writeClient := readClient
	if hasWriteAccess {
		writeCfg := baseCfg.Copy()
		writeCfg.Credentials = credentials.NewStaticCredentials(accessKey, secretKey, "")

		writeSess, err := session.NewSession(writeCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create AWS write session: %w", err)
		}
		writeClient = s3.New(writeSess)
	} else {
		log.Warn("No S3 credentials provided - write operations may fail unless bucket is public writable")
	}

	return &S3Ledger{
		client:         readClient,
		writeClient:    writeClient,
		bucketName:     bucketName,
		prefix:         strings.TrimSuffix(prefix, "/"),
		log:            log,
		locationURI:    uri,
		hasWriteAccess: hasWriteAccess,
	}, nil
}

// Table returns the named table.
func (l *S3Ledger) Table(name string) interfaces.Table {
	return &s3Table{backend: l, table: name}
}

// Available checks if the S3 backend is accessible by attempting to head
// the bucket.
func (l *S3Ledger) Available(ctx context.Context) bool {
	_, err := l.client.HeadBucketWithContext(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(l.bucketName),
	})
	if err != nil {
		l.log.Warn("S3 ledger unavailable",
			slog.String("bucket", l.bucketName),
			"err", err)
		return false
	}
	return true
}

// Name returns a unique identifier for this ledger backend.
func (l *S3Ledger) Name() string {
	return fmt.Sprintf("s3-%s", l.bucketName)
}

// LocationURI returns the URI that identifies this ledger backend.
func (l *S3Ledger) LocationURI() string {
	return l.locationURI
}

type s3Table struct {
	backend *S3Ledger
	table   string
}

// tablePrefix is the object key prefix shared by the table's rows.
func (t *s3Table) tablePrefix() string {
	if t.backend.prefix == "" {
		return t.table + "/"
	}
	return path.Join(t.backend.prefix, t.table) + "/"
}

func (t *s3Table) objectKey(key string) string {
	return t.tablePrefix() + url.PathEscape(key)
}

func (t *s3Table) Get(ctx context.Context, key string) ([]byte, error) {
	objectKey := t.objectKey(key)

	result, err := t.backend.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(t.backend.bucketName),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		if strings.Contains(err.Error(), "NoSuchKey") || strings.Contains(err.Error(), "404") {
			return nil, interfaces.ErrRowNotFound
		}
		t.backend.log.Error("Failed to get object from S3",
			slog.String("bucket", t.backend.bucketName),
			slog.String("key", objectKey),
			"err", err)
		return nil, fmt.Errorf("failed to get object from S3: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object body: %w", err)
	}

	t.backend.log.Debug("Fetched row from S3",
		slog.String("bucket", t.backend.bucketName),
		slog.String("key", objectKey),
		slog.Int("size", len(data)))

	return data, nil
}

func (t *s3Table) Set(ctx context.Context, key string, value []byte) error {
	objectKey := t.objectKey(key)

	// Ledger rows hold contract state, never make them public
	_, err := t.backend.writeClient.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket: aws.String(t.backend.bucketName),
		Key:    aws.String(objectKey),
		Body:   bytes.NewReader(value),
	})
	if err != nil {
		if !t.backend.hasWriteAccess {
			return fmt.Errorf("failed to upload object to S3 (no write credentials provided): %w", err)
		}
		return fmt.Errorf("failed to upload object to S3: %w", err)
	}

	t.backend.log.Debug("Stored row in S3",
		slog.String("bucket", t.backend.bucketName),
		slog.String("key", objectKey),
		slog.Int("size", len(value)))

	return nil
}

func (t *s3Table) Delete(ctx context.Context, key string) error {
	_, err := t.backend.writeClient.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(t.backend.bucketName),
		Key:    aws.String(t.objectKey(key)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object from S3: %w", err)
	}
	return nil
}

func (t *s3Table) Keys(ctx context.Context) ([]string, error) {
	prefix := t.tablePrefix()

	var keys []string
	err := t.backend.client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(t.backend.bucketName),
		Prefix: aws.String(prefix),
	}, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, object := range page.Contents {
			name := strings.TrimPrefix(aws.StringValue(object.Key), prefix)
			key, err := url.PathUnescape(name)
			if err != nil {
				continue
			}
			keys = append(keys, key)
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list objects in S3: %w", err)
	}
	return keys, nil
}
