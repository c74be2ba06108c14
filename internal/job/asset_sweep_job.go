package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mpage/internal/service"
)

// AssetSweepJob deletes uploaded assets that no document links to.
type AssetSweepJob struct {
	assets *service.AssetService
	minAge time.Duration
}

func NewAssetSweepJob(assets *service.AssetService, minAge time.Duration) *AssetSweepJob {
	return &AssetSweepJob{assets: assets, minAge: minAge}
}

func (j *AssetSweepJob) Name() string {
	return "asset_sweep"
}

func (j *AssetSweepJob) Run(ctx context.Context) error {
	if j.assets == nil || !j.assets.Enabled() {
		return nil
	}
	minAge := j.minAge
	if minAge <= 0 {
		minAge = 24 * time.Hour
	}
	removed, err := j.assets.Sweep(ctx, minAge)
	if removed > 0 {
		logutil.GetLogger(ctx).Info("asset sweep removed files", zap.Int("count", removed))
	}
	return err
}
