package s3

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/a2a-bridge/pkg/a2a"
)

/*
Vault stores file artifacts the agent returns inline and hands back
time-limited download links, so raw bytes never travel through the
chat channel.
*/
type Vault struct {
	conn    *Conn
	bucket  string
	linkTTL time.Duration
}

/*
NewVault prepares the artifact bucket and returns a vault that signs
download links valid for linkTTL.
*/
func NewVault(
	ctx context.Context, conn *Conn, bucket string, linkTTL time.Duration,
) (*Vault, error) {
	if linkTTL <= 0 {
		linkTTL = 24 * time.Hour
	}

	if err := conn.EnsureBucket(ctx, bucket); err != nil {
		return nil, fmt.Errorf("preparing artifact bucket: %w", err)
	}

	return &Vault{conn: conn, bucket: bucket, linkTTL: linkTTL}, nil
}

/*
Store uploads an inline file part under the task that produced it and
returns a presigned download link.
*/
func (vault *Vault) Store(
	ctx context.Context, taskID string, file *a2a.FilePart,
) (string, error) {
	raw, err := file.Decode()

	if err != nil {
		return "", fmt.Errorf("decoding file artifact: %w", err)
	}

	key := taskID + "/" + file.DisplayName()

	contentType := "application/octet-stream"
	if file.MimeType != nil && *file.MimeType != "" {
		contentType = *file.MimeType
	}

	if err := vault.conn.Put(
		ctx, vault.bucket, key, bytes.NewReader(raw), int64(len(raw)), contentType,
	); err != nil {
		return "", fmt.Errorf("uploading file artifact: %w", err)
	}

	link, err := vault.conn.PresignedGet(ctx, vault.bucket, key, vault.linkTTL)

	if err != nil {
		return "", fmt.Errorf("signing download link: %w", err)
	}

	log.Info("file artifact stored", "task_id", taskID, "key", key, "bytes", len(raw))
	return link, nil
}
