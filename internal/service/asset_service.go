package service

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mpage/internal/filestore"
	appErr "github.com/xxxsen/mpage/internal/pkg/errors"
)

const maxAssetSize = 10 << 20

type Asset struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
}

// AssetReferrer answers whether any document mentions an asset key.
type AssetReferrer interface {
	ReferencesText(ctx context.Context, text string) (bool, error)
}

// AssetService stores files that documents link to. A nil store means
// uploads are disabled.
type AssetService struct {
	store filestore.Store
	refs  AssetReferrer
}

func NewAssetService(store filestore.Store, refs AssetReferrer) *AssetService {
	return &AssetService{store: store, refs: refs}
}

func (s *AssetService) Enabled() bool {
	return s != nil && s.store != nil
}

func (s *AssetService) Upload(ctx context.Context, name string, r io.ReadSeeker, size int64) (*Asset, error) {
	if !s.Enabled() {
		return nil, appErr.ErrNotFound
	}
	if size <= 0 || size > maxAssetSize {
		return nil, appErr.Invalid("file is empty or too large")
	}
	contentType, err := sniffContentType(r)
	if err != nil {
		return nil, err
	}
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 {
			ext = exts[0]
		}
	}
	key := newID() + ext
	if err := s.store.Save(ctx, key, r, size, contentType); err != nil {
		return nil, fmt.Errorf("save asset: %w", err)
	}
	logutil.GetLogger(ctx).Info("asset uploaded", zap.String("key", key), zap.String("name", name), zap.Int64("size", size))
	return &Asset{Key: key, URL: s.store.URL(key), Name: filepath.Base(name), ContentType: contentType}, nil
}

func (s *AssetService) Open(ctx context.Context, key string) (io.ReadCloser, string, error) {
	if !s.Enabled() || !filestore.ValidKey(key) {
		return nil, "", appErr.ErrNotFound
	}
	rc, err := s.store.Open(ctx, key)
	if err != nil {
		return nil, "", err
	}
	contentType := mime.TypeByExtension(filepath.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return rc, contentType, nil
}

func sniffContentType(r io.ReadSeeker) (string, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind upload: %w", err)
	}
	return http.DetectContentType(head[:n]), nil
}

// Sweep removes assets older than minAge that no document references.
// Stores that cannot list their content are left alone.
func (s *AssetService) Sweep(ctx context.Context, minAge time.Duration) (int, error) {
	if !s.Enabled() || s.refs == nil {
		return 0, nil
	}
	sw, ok := s.store.(filestore.Sweeper)
	if !ok {
		return 0, nil
	}
	objs, err := sw.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list assets: %w", err)
	}
	cutoff := time.Now().Add(-minAge)
	removed := 0
	for _, obj := range objs {
		if obj.ModTime.After(cutoff) {
			continue
		}
		used, err := s.refs.ReferencesText(ctx, obj.Key)
		if err != nil {
			return removed, fmt.Errorf("check references of %s: %w", obj.Key, err)
		}
		if used {
			continue
		}
		if err := sw.Remove(ctx, obj.Key); err != nil {
			return removed, fmt.Errorf("remove asset %s: %w", obj.Key, err)
		}
		logutil.GetLogger(ctx).Info("orphaned asset removed", zap.String("key", obj.Key), zap.Time("mtime", obj.ModTime))
		removed++
	}
	return removed, nil
}
