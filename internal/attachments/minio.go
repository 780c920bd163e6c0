// Package attachments stores solicitation files (bid documents, scraped
// PDFs) in object storage, keyed by solicitation id and file name.
package attachments

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/automatter/rfptrack/internal/apperr"
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Storage is a thin wrapper around the object-store client.
type Storage struct {
	client *minio.Client
	bucket string
}

// NewStorage creates the client and ensures the bucket exists.
func NewStorage(cfg Config) (*Storage, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("attachment storage config missing")
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio new: %w", err)
	}
	s := &Storage{client: mc, bucket: cfg.Bucket}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := mc.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		exists, xerr := mc.BucketExists(ctx, s.bucket)
		if xerr != nil || !exists {
			return nil, fmt.Errorf("minio bucket ensure: %w", err)
		}
	}
	return s, nil
}

func objectName(solicitationID, name string) string {
	return solicitationID + "/" + name
}

// Put streams an attachment into the bucket.
func (s *Storage) Put(ctx context.Context, solicitationID, name, contentType string, r io.Reader, size int64) error {
	_, err := s.client.PutObject(ctx, s.bucket, objectName(solicitationID, name), r, size,
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("put attachment: %w", err)
	}
	return nil
}

// Get opens an attachment for reading. The caller closes the reader.
func (s *Storage) Get(ctx context.Context, solicitationID, name string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, objectName(solicitationID, name), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get attachment: %w", err)
	}
	// GetObject is lazy; stat to surface missing objects now
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" {
			return nil, apperr.Wrap(apperr.ErrNotFound, "attachment %s", name)
		}
		return nil, fmt.Errorf("stat attachment: %w", err)
	}
	return obj, nil
}

// Info describes a stored attachment.
type Info struct {
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"contentType"`
	Updated     time.Time `json:"updated"`
}

// List returns the attachments stored for a solicitation.
func (s *Storage) List(ctx context.Context, solicitationID string) ([]Info, error) {
	out := []Info{}
	prefix := solicitationID + "/"
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list attachments: %w", obj.Err)
		}
		out = append(out, Info{
			Name:        obj.Key[len(prefix):],
			Size:        obj.Size,
			ContentType: obj.ContentType,
			Updated:     obj.LastModified,
		})
	}
	return out, nil
}
