package storage

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"bastportal/internal/config"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
)

// signedURLTTL is how long a download link stays valid, in seconds.
const signedURLTTL = int64(15 * 60)

// OSSStore keeps files in an Aliyun OSS bucket. References are object keys.
type OSSStore struct {
	bucket *oss.Bucket
	prefix string
	now    func() time.Time
}

func NewOSSStore(cfg config.StorageConfig) (*OSSStore, error) {
	if cfg.OSSEndpoint == "" || cfg.OSSAccessKey == "" || cfg.OSSSecretKey == "" || cfg.OSSBucket == "" {
		return nil, fmt.Errorf("missing env: ALI_OSS_ENDPOINT/ACCESS_KEY/SECRET_KEY/BUCKET")
	}
	client, err := oss.New(cfg.OSSEndpoint, cfg.OSSAccessKey, cfg.OSSSecretKey)
	if err != nil {
		return nil, fmt.Errorf("oss.New: %w", err)
	}
	bkt, err := client.Bucket(cfg.OSSBucket)
	if err != nil {
		return nil, fmt.Errorf("client.Bucket: %w", err)
	}
	log.Printf("[OSS] using bucket %s prefix %q", cfg.OSSBucket, cfg.OSSPrefix)
	return &OSSStore{bucket: bkt, prefix: strings.Trim(cfg.OSSPrefix, "/"), now: time.Now}, nil
}

func (s *OSSStore) Save(ctx context.Context, name string, r io.Reader, contentType string) (string, error) {
	key := objectKey(s.prefix, name, s.now())
	opts := []oss.Option{
		oss.ContentType(contentType),
		oss.ContentDisposition(fmt.Sprintf("attachment; filename=%q", name)),
		oss.WithContext(ctx),
	}
	if contentType == "" {
		opts = opts[1:]
	}
	if err := s.bucket.PutObject(key, r, opts...); err != nil {
		return "", fmt.Errorf("oss put %s: %w", key, err)
	}
	return key, nil
}

func (s *OSSStore) URL(ctx context.Context, ref string) (string, error) {
	key, err := cleanRef(ref)
	if err != nil {
		return "", err
	}
	if s.prefix != "" && !strings.HasPrefix(key, s.prefix+"/") {
		return "", ErrInvalidReference
	}
	signed, err := s.bucket.SignURL(key, oss.HTTPGet, signedURLTTL)
	if err != nil {
		return "", fmt.Errorf("oss sign %s: %w", key, err)
	}
	return signed, nil
}
