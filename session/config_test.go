package session

import (
	"testing"
	"time"

	"github.com/becomeliminal/recall/provider"
)

func TestMergedConfig_NilGetsDefaults(t *testing.T) {
	cfg := mergedConfig(nil)
	if *cfg != *DefaultConfig {
		t.Errorf("got %+v, want DefaultConfig", cfg)
	}
}

func TestMergedConfig_ZeroFieldsFallBack(t *testing.T) {
	cfg := mergedConfig(&Config{RecentWindow: 3})

	if cfg.RecentWindow != 3 {
		t.Errorf("RecentWindow = %d, want the configured 3", cfg.RecentWindow)
	}
	if cfg.UserName != DefaultConfig.UserName || cfg.BotName != DefaultConfig.BotName {
		t.Error("speaker labels should fall back to defaults")
	}
	if cfg.RelatedLimit != DefaultConfig.RelatedLimit {
		t.Errorf("RelatedLimit = %d, want default %d", cfg.RelatedLimit, DefaultConfig.RelatedLimit)
	}
	if cfg.MaxTokens != DefaultConfig.MaxTokens {
		t.Errorf("MaxTokens = %d, want default %d", cfg.MaxTokens, DefaultConfig.MaxTokens)
	}
	if cfg.Retry != DefaultConfig.Retry {
		t.Errorf("Retry = %+v, want default policy", cfg.Retry)
	}
}

// A zero int field is indistinguishable from unset and becomes the
// default; negative values pass through untouched.
func TestMergedConfig_NegativeThresholdSurvives(t *testing.T) {
	cfg := mergedConfig(&Config{
		GroundedThreshold: -1,
		CompressThreshold: 0,
		Retry:             provider.RetryPolicy{MaxAttempts: 2, Delay: time.Second},
	})

	if cfg.GroundedThreshold != -1 {
		t.Errorf("GroundedThreshold = %d, want -1 preserved", cfg.GroundedThreshold)
	}
	if cfg.CompressThreshold != DefaultConfig.CompressThreshold {
		t.Errorf("CompressThreshold = %d, want default %d", cfg.CompressThreshold, DefaultConfig.CompressThreshold)
	}
	if cfg.Retry.MaxAttempts != 2 {
		t.Errorf("Retry.MaxAttempts = %d, want 2 preserved", cfg.Retry.MaxAttempts)
	}
}
