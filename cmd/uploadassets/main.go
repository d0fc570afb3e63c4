// uploadassets pushes print-ready artwork files into the assets bucket in
// rate-limited batches. It is run out of band when new product artwork lands.
package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"

	cloudstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/framelane/api/internal/assets"
	"github.com/framelane/api/internal/platform/config"
	"github.com/framelane/api/internal/platform/observability"
)

func main() {
	var (
		dir    = flag.String("dir", "", "directory of artwork files to upload")
		prefix = flag.String("prefix", "products", "object name prefix inside the bucket")
		bucket = flag.String("bucket", "", "bucket override; defaults to the configured assets bucket")
	)
	flag.Parse()

	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()
	logger = logger.Named("uploadassets")

	if *dir == "" {
		logger.Fatal("-dir is required")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}
	bucketName := *bucket
	if bucketName == "" {
		bucketName = cfg.Storage.AssetsBucket
	}
	if bucketName == "" {
		logger.Fatal("no assets bucket configured")
	}

	ctx := context.Background()
	client, err := cloudstorage.NewClient(ctx)
	if err != nil {
		logger.Fatal("failed to initialise storage client", zap.Error(err))
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Warn("storage close error", zap.Error(err))
		}
	}()

	batch, err := collectAssets(*dir, *prefix)
	if err != nil {
		logger.Fatal("failed to read artwork directory", zap.Error(err))
	}
	if len(batch) == 0 {
		logger.Info("nothing to upload", zap.String("dir", *dir))
		return
	}

	uploader, err := assets.NewUploader(assets.UploaderDeps{
		Store:      assets.GCSObjectStore{Bucket: client.Bucket(bucketName)},
		BatchSize:  cfg.Uploads.BatchSize,
		BatchDelay: cfg.Uploads.BatchDelay,
		Logger: func(_ context.Context, event string, fields map[string]any) {
			zFields := make([]zap.Field, 0, len(fields))
			for k, v := range fields {
				zFields = append(zFields, zap.Any(k, v))
			}
			logger.Debug(event, zFields...)
		},
	})
	if err != nil {
		logger.Fatal("failed to initialise uploader", zap.Error(err))
	}

	report, err := uploader.UploadAll(ctx, batch)
	if err != nil {
		logger.Fatal("upload aborted", zap.Error(err), zap.Int("uploaded", report.Uploaded))
	}
	for _, failure := range report.Failures {
		logger.Warn("upload failed", zap.String("object", failure.Object), zap.Error(failure.Err))
	}
	logger.Info("upload complete",
		zap.Int("uploaded", report.Uploaded),
		zap.Int("failed", len(report.Failures)),
		zap.String("bucket", bucketName))
	if len(report.Failures) > 0 {
		os.Exit(1)
	}
}

func collectAssets(dir, prefix string) ([]assets.Asset, error) {
	var batch []assets.Asset
	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		object := filepath.ToSlash(rel)
		if prefix != "" {
			object = strings.TrimSuffix(prefix, "/") + "/" + object
		}
		contentType := mime.TypeByExtension(filepath.Ext(path))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		batch = append(batch, assets.Asset{
			Object:      object,
			ContentType: contentType,
			Data:        data,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return batch, nil
}
