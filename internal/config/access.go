package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// AccessConfig carries the operational knobs of the access-control layer.
// The permission catalog and the role map are compile-time constants and are
// deliberately absent here; only timing and flood-control values may change
// at runtime.
type AccessConfig struct {
	TrialGraceDays            int `mapstructure:"trialGraceDays"`
	MembershipCacheTTLSeconds int `mapstructure:"membershipCacheTTLSeconds"`
	RosterCacheTTLSeconds     int `mapstructure:"rosterCacheTTLSeconds"`
	DenyAuditPerMinute        int `mapstructure:"denyAuditPerMinute"`
	DenyAuditBurst            int `mapstructure:"denyAuditBurst"`
}

func DefaultAccessConfig() AccessConfig {
	return AccessConfig{
		TrialGraceDays:            7,
		MembershipCacheTTLSeconds: 30,
		RosterCacheTTLSeconds:     60,
		DenyAuditPerMinute:        60,
		DenyAuditBurst:            20,
	}
}

// TrialGrace is how long past trial end an organization keeps write access.
func (c AccessConfig) TrialGrace() time.Duration {
	return time.Duration(c.TrialGraceDays) * 24 * time.Hour
}

// MembershipCacheTTL bounds how stale a cached membership row may be.
func (c AccessConfig) MembershipCacheTTL() time.Duration {
	return time.Duration(c.MembershipCacheTTLSeconds) * time.Second
}

// RosterCacheTTL bounds how stale a cached team roster may be.
func (c AccessConfig) RosterCacheTTL() time.Duration {
	return time.Duration(c.RosterCacheTTLSeconds) * time.Second
}

type AccessConfigHolder struct {
	current atomic.Value // holds AccessConfig
}

func NewAccessConfigHolder() (*AccessConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("access")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/sellora/config") // Volume-mounted config
	v.AddConfigPath("/etc/sellora")            // System config
	v.AddConfigPath(".")                       // Current directory (dev mode)

	v.SetEnvPrefix("SELLORA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultAccessConfig()
		v.SetDefault("access.trialGraceDays", defaults.TrialGraceDays)
		v.SetDefault("access.membershipCacheTTLSeconds", defaults.MembershipCacheTTLSeconds)
		v.SetDefault("access.rosterCacheTTLSeconds", defaults.RosterCacheTTLSeconds)
		v.SetDefault("access.denyAuditPerMinute", defaults.DenyAuditPerMinute)
		v.SetDefault("access.denyAuditBurst", defaults.DenyAuditBurst)
	}

	var cfg AccessConfig
	if err := v.UnmarshalKey("access", &cfg); err != nil {
		return nil, err
	}
	if err := validateAccessConfig(cfg); err != nil {
		return nil, err
	}

	holder := &AccessConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated AccessConfig
		if err := v.UnmarshalKey("access", &updated); err != nil {
			log.Printf("[access-config] reload failed: %v", err)
			return
		}
		if err := validateAccessConfig(updated); err != nil {
			log.Printf("[access-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[access-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// Get returns the live config. A zero holder answers with the defaults, so
// hand-built holders in tests behave like a holder loaded without a file.
func (h *AccessConfigHolder) Get() AccessConfig {
	if cfg, ok := h.current.Load().(AccessConfig); ok {
		return cfg
	}
	return DefaultAccessConfig()
}

func validateAccessConfig(cfg AccessConfig) error {
	if cfg.TrialGraceDays < 0 {
		return errors.New("access.trialGraceDays cannot be negative")
	}
	if cfg.MembershipCacheTTLSeconds < 0 || cfg.RosterCacheTTLSeconds < 0 {
		return errors.New("access cache TTLs cannot be negative")
	}
	if cfg.DenyAuditPerMinute <= 0 || cfg.DenyAuditBurst <= 0 {
		return errors.New("access deny audit limits must be positive")
	}
	return nil
}
