package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/automax/routing/internal/config"
	"github.com/automax/routing/internal/models"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// PlateSnapshot is the group tree as it stood right after a plate rebuild.
type PlateSnapshot struct {
	TakenAt time.Time              `json:"taken_at"`
	Reason  string                 `json:"reason"`
	Groups  []models.GroupResponse `json:"groups"`
}

// SnapshotStore keeps an audit copy of the tree topology.
type SnapshotStore interface {
	Save(ctx context.Context, snapshot *PlateSnapshot) (string, error)
}

type MinIOStorage struct {
	client     *minio.Client
	bucketName string
}

func NewMinIOStorage(cfg *config.MinIOConfig) (*MinIOStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &MinIOStorage{client: client, bucketName: cfg.BucketName}, nil
}

func snapshotObjectName(s *PlateSnapshot) string {
	return fmt.Sprintf("plates/%s/%s.json", s.TakenAt.UTC().Format("2006/01/02"), s.TakenAt.UTC().Format("150405.000000000"))
}

func (s *MinIOStorage) Save(ctx context.Context, snapshot *PlateSnapshot) (string, error) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return "", err
	}

	name := snapshotObjectName(snapshot)
	_, err = s.client.PutObject(ctx, s.bucketName, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload plate snapshot: %w", err)
	}
	return name, nil
}

// NopSnapshotStore drops snapshots, used when object storage is disabled.
type NopSnapshotStore struct{}

func (NopSnapshotStore) Save(context.Context, *PlateSnapshot) (string, error) {
	return "", nil
}
