package cloudmetrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const pushInterval = 30 * time.Minute

var Module = fx.Module("cloud.metrics",
	fx.Provide(func() *prometheus.Registry {
		return prometheus.NewRegistry()
	}),
	fx.Provide(NewPusher),
	fx.Provide(NewInstanceMetrics),
	fx.Invoke(runPushWorker),
)

func runPushWorker(lc fx.Lifecycle, pusher Pusher, instance *InstanceMetrics, registry *prometheus.Registry, logger *zap.Logger, db *gorm.DB) {
	if pusher == nil || instance == nil {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			logger.Info("starting cloud metrics background worker")
			go func() {
				ticker := time.NewTicker(pushInterval)
				defer ticker.Stop()

				// Initial push
				instance.Update(ctx, db)
				if err := pusher.Push(ctx, registry); err != nil {
					logger.Error("initial cloud metrics push failed", zap.Error(err))
				}

				for {
					select {
					case <-ticker.C:
						instance.Update(ctx, db)
						if err := pusher.Push(ctx, registry); err != nil {
							logger.Error("periodic cloud metrics push failed", zap.Error(err))
						}
					case <-ctx.Done():
						logger.Info("stopping cloud metrics background worker")
						return
					}
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
