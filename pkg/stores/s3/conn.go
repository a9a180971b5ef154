package s3

import (
	"context"
	"io"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

/*
Conn wraps a MinIO client pointed at any S3-compatible endpoint.
*/
type Conn struct {
	client *minio.Client
}

/*
NewConn dials the object store at endpoint using static credentials.
The endpoint is host:port, without a scheme.
*/
func NewConn(
	endpoint string,
	accessKey string,
	secretKey string,
	secure bool,
) (*Conn, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
	})

	if err != nil {
		return nil, err
	}

	return &Conn{client: client}, nil
}

/*
EnsureBucket creates the bucket when it does not exist yet.
*/
func (conn *Conn) EnsureBucket(ctx context.Context, bucket string) error {
	exists, err := conn.client.BucketExists(ctx, bucket)

	if err != nil {
		return err
	}

	if exists {
		return nil
	}

	log.Info("creating bucket", "bucket", bucket)
	return conn.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
}

/*
Put uploads an object under the given key.
*/
func (conn *Conn) Put(
	ctx context.Context,
	bucket string,
	key string,
	body io.Reader,
	size int64,
	contentType string,
) error {
	_, err := conn.client.PutObject(ctx, bucket, key, body, size, minio.PutObjectOptions{
		ContentType: contentType,
	})

	return err
}

/*
PresignedGet returns a time-limited download URL for an object.
*/
func (conn *Conn) PresignedGet(
	ctx context.Context,
	bucket string,
	key string,
	expires time.Duration,
) (string, error) {
	signed, err := conn.client.PresignedGetObject(ctx, bucket, key, expires, url.Values{})

	if err != nil {
		return "", err
	}

	return signed.String(), nil
}
