package registry

import (
	"context"
	"time"

	"github.com/influxdata/sitefeatures"
	"go.uber.org/zap"
)

func newLoggingService(logger *zap.Logger, underlying sitefeatures.FeatureService) *loggingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &loggingService{
		logger:     logger,
		underlying: underlying,
	}
}

type loggingService struct {
	logger     *zap.Logger
	underlying sitefeatures.FeatureService
}

var _ sitefeatures.FeatureService = (*loggingService)(nil)

func (l loggingService) FindFeatures(ctx context.Context) (fs []*sitefeatures.FeatureInfo, err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			l.logger.Debug("failed to find features", zap.Error(err), dur)
			return
		}
		l.logger.Debug("features find", dur, zap.Int("count", len(fs)))
	}(time.Now())
	return l.underlying.FindFeatures(ctx)
}

func (l loggingService) FindFeature(ctx context.Context, id string) (f *sitefeatures.FeatureInfo, err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			l.logger.Debug("failed to find feature", zap.String("id", id), zap.Error(err), dur)
			return
		}
		l.logger.Debug("feature find", zap.String("id", id), dur)
	}(time.Now())
	return l.underlying.FindFeature(ctx, id)
}

func (l loggingService) SetEnabled(ctx context.Context, id string, enabled bool) (err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			l.logger.Debug("failed to set feature flag", zap.String("id", id), zap.Bool("enabled", enabled), zap.Error(err), dur)
			return
		}
		l.logger.Debug("feature flag set", zap.String("id", id), zap.Bool("enabled", enabled), dur)
	}(time.Now())
	return l.underlying.SetEnabled(ctx, id, enabled)
}
