package service

import (
	"context"
	"fmt"
	"io"
	"mfs_literacy_backend/internal/config"
	"mfs_literacy_backend/internal/model"
	"mfs_literacy_backend/internal/util"
	"mfs_literacy_backend/pkg/logger"
	"os"
	"path/filepath"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// ArchiveProvider 作文原文归档后端
type ArchiveProvider interface {
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	GetURL(key string) string
}

// LocalArchiveProvider 本地磁盘归档
type LocalArchiveProvider struct {
	Config *config.StorageConfig
}

func (p *LocalArchiveProvider) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error) {
	dst := filepath.Join(p.Config.LocalPath, key)
	dir := filepath.Dir(dst)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", err
		}
	}

	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, reader); err != nil {
		return "", err
	}
	return p.GetURL(key), nil
}

func (p *LocalArchiveProvider) Delete(ctx context.Context, key string) error {
	return os.Remove(filepath.Join(p.Config.LocalPath, key))
}

func (p *LocalArchiveProvider) GetURL(key string) string {
	return "/archive/" + key
}

// MinioArchiveProvider MinIO归档
type MinioArchiveProvider struct {
	Config *config.StorageConfig
	Client *minio.Client
}

func NewMinioArchiveProvider(cfg *config.StorageConfig) (*MinioArchiveProvider, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessID, cfg.MinioSecret, ""),
		Secure: false,
	})
	if err != nil {
		return nil, err
	}
	return &MinioArchiveProvider{Config: cfg, Client: client}, nil
}

func (p *MinioArchiveProvider) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error) {
	_, err := p.Client.PutObject(ctx, p.Config.MinioBucket, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", err
	}
	return p.GetURL(key), nil
}

func (p *MinioArchiveProvider) Delete(ctx context.Context, key string) error {
	return p.Client.RemoveObject(ctx, p.Config.MinioBucket, key, minio.RemoveObjectOptions{})
}

func (p *MinioArchiveProvider) GetURL(key string) string {
	return "/" + p.Config.MinioBucket + "/" + key
}

// OSSArchiveProvider 阿里云OSS归档
type OSSArchiveProvider struct {
	Config *config.StorageConfig
	Client *oss.Client
}

func NewOSSArchiveProvider(cfg *config.StorageConfig) (*OSSArchiveProvider, error) {
	client, err := oss.New(cfg.OSSEndpoint, cfg.OSSAccessKey, cfg.OSSSecretKey)
	if err != nil {
		return nil, err
	}
	return &OSSArchiveProvider{Config: cfg, Client: client}, nil
}

func (p *OSSArchiveProvider) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error) {
	bucket, err := p.Client.Bucket(p.Config.OSSBucket)
	if err != nil {
		return "", err
	}
	if err := bucket.PutObject(key, reader); err != nil {
		return "", err
	}
	return p.GetURL(key), nil
}

func (p *OSSArchiveProvider) Delete(ctx context.Context, key string) error {
	bucket, err := p.Client.Bucket(p.Config.OSSBucket)
	if err != nil {
		return err
	}
	return bucket.DeleteObject(key)
}

func (p *OSSArchiveProvider) GetURL(key string) string {
	return fmt.Sprintf("https://%s.%s/%s", p.Config.OSSBucket, p.Config.OSSEndpoint, key)
}

// ArchiveService 在事务提交后把作文原文归档到对象存储
// 归档失败只记日志，不回滚提交
type ArchiveService struct {
	Provider ArchiveProvider
}

func NewArchiveService(cfg *config.Config) *ArchiveService {
	var provider ArchiveProvider
	switch cfg.Storage.Type {
	case util.StorageMinio:
		p, err := NewMinioArchiveProvider(&cfg.Storage)
		if err == nil {
			provider = p
		}
	case util.StorageOSS:
		p, err := NewOSSArchiveProvider(&cfg.Storage)
		if err == nil {
			provider = p
		}
	}

	if provider == nil {
		provider = &LocalArchiveProvider{Config: &cfg.Storage}
	}

	return &ArchiveService{Provider: provider}
}

// ArchiveSubmission 归档键：essays/{learnerID}/{seq}-{指纹前12位}.txt
func (s *ArchiveService) ArchiveSubmission(ctx context.Context, sub *model.EssaySubmission) {
	fp := sub.Fingerprint
	if len(fp) > 12 {
		fp = fp[:12]
	}
	key := fmt.Sprintf("essays/%d/%d-%s.txt", sub.LearnerID, sub.Seq, fp)
	reader := strings.NewReader(sub.Text)
	if _, err := s.Provider.Put(ctx, key, reader, int64(len(sub.Text)), "text/plain; charset=utf-8"); err != nil {
		logger.Log.Warn("essay archive failed",
			zap.Uint("submission_id", sub.ID),
			zap.String("key", key),
			zap.Error(err),
		)
		return
	}
	logger.Log.Debug("essay archived", zap.String("key", key))
}
