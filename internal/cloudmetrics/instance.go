package cloudmetrics

import (
	"context"
	"runtime"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/sellora/internal/config"
	"gorm.io/gorm"
)

// InstanceMetrics is the accounting set a deployment reports to Sellora
// Cloud: tenant and seat counts plus coarse process health. It lives on its
// own registry so a push never drags the full engine series along.
type InstanceMetrics struct {
	organizations  prometheus.Gauge
	users          prometheus.Gauge
	activeSessions prometheus.Gauge
	memoryBytes    prometheus.Gauge
}

// NewInstanceMetrics registers the instance gauges on the push registry.
// Returns nil when cloud metrics are disabled.
func NewInstanceMetrics(cfg config.Config, registry *prometheus.Registry) *InstanceMetrics {
	if !cfg.IsCloud() || !cfg.Cloud.Metrics.Enabled || registry == nil {
		return nil
	}

	constLabels := prometheus.Labels{
		"instance_id": strings.TrimSpace(cfg.InstanceID),
		"version":     strings.TrimSpace(cfg.AppVersion),
	}

	m := &InstanceMetrics{
		organizations: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "sellora_instance_organizations",
			Help:        "Live organizations on this instance, soft-deleted excluded.",
			ConstLabels: constLabels,
		}),
		users: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "sellora_instance_users",
			Help:        "User accounts on this instance.",
			ConstLabels: constLabels,
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "sellora_instance_active_sessions",
			Help:        "Unexpired, unrevoked login sessions.",
			ConstLabels: constLabels,
		}),
		memoryBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "sellora_instance_memory_bytes",
			Help:        "Memory obtained from the OS by the process.",
			ConstLabels: constLabels,
		}),
	}
	registry.MustRegister(m.organizations, m.users, m.activeSessions, m.memoryBytes)
	return m
}

// Update refreshes the gauges from the database and the runtime. Count
// failures leave the previous value in place rather than reporting zero.
func (m *InstanceMetrics) Update(ctx context.Context, db *gorm.DB) {
	if m == nil {
		return
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	m.memoryBytes.Set(float64(mem.Sys))

	if db == nil {
		return
	}

	var count int64
	if err := db.WithContext(ctx).Table("organizations").Where("deleted_at IS NULL").Count(&count).Error; err == nil {
		m.organizations.Set(float64(count))
	}
	if err := db.WithContext(ctx).Table("users").Count(&count).Error; err == nil {
		m.users.Set(float64(count))
	}
	if err := db.WithContext(ctx).Table("sessions").
		Where("revoked_at IS NULL AND expires_at > ?", time.Now().UTC()).
		Count(&count).Error; err == nil {
		m.activeSessions.Set(float64(count))
	}
}
