package core

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"k8s.io/apimachinery/pkg/labels"
)

// ValidateTriggerParams enforces the guardrails for trigger configuration.
func ValidateTriggerParams(params *TriggerParams) error {
	if params == nil {
		return fmt.Errorf("trigger params are required")
	}

	if params.RateLimit != nil && *params.RateLimit < 0 {
		return fmt.Errorf("rate_limit must be >= 0")
	}

	if params.FireDelay != nil && *params.FireDelay < 0 {
		return fmt.Errorf("fire_delay must be >= 0")
	}

	if params.LabelsSelector != "" {
		if _, err := labels.Parse(params.LabelsSelector); err != nil {
			return fmt.Errorf("invalid labels_selector %q: %w", params.LabelsSelector, err)
		}
	}

	return nil
}

// DefaultTriggerParams fills unset rate limit and fire delay.
func DefaultTriggerParams(params *TriggerParams) {
	if params.RateLimit == nil {
		rateLimit := DefaultRateLimitSeconds
		params.RateLimit = &rateLimit
	}

	if params.FireDelay == nil {
		fireDelay := DefaultFireDelaySeconds
		params.FireDelay = &fireDelay
	}
}

// ValidateSinkConfig checks the sink configuration and decodes its token.
func ValidateSinkConfig(cfg *SinkConfig) (SinkToken, error) {
	if cfg == nil {
		return SinkToken{}, fmt.Errorf("sink config is required")
	}

	if cfg.Name == "" {
		return SinkToken{}, fmt.Errorf("sink name is required")
	}

	if cfg.ClusterName == "" {
		return SinkToken{}, fmt.Errorf("cluster name is required")
	}

	if cfg.DiscoveryPeriod != 0 && time.Duration(cfg.DiscoveryPeriod)*time.Second < MinDiscoveryPeriod {
		return SinkToken{}, fmt.Errorf("discovery_period_sec must be >= %d", int(MinDiscoveryPeriod/time.Second))
	}

	return DecodeSinkToken(cfg.Token)
}

// DecodeSinkToken decodes a base64 encoded JSON sink token.
func DecodeSinkToken(token string) (SinkToken, error) {
	if token == "" {
		return SinkToken{}, fmt.Errorf("sink token is required")
	}

	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return SinkToken{}, fmt.Errorf("decode sink token: %w", err)
	}

	var decoded SinkToken
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return SinkToken{}, fmt.Errorf("parse sink token: %w", err)
	}

	if decoded.StoreURL == "" || decoded.AccountID == "" {
		return SinkToken{}, fmt.Errorf("sink token must carry store_url and account_id")
	}

	return decoded, nil
}

// DiscoveryPeriod resolves the polling interval for a sink.
// An explicit config value wins over DISCOVERY_PERIOD_SEC.
func DiscoveryPeriod(cfg SinkConfig) time.Duration {
	if cfg.DiscoveryPeriod > 0 {
		return time.Duration(cfg.DiscoveryPeriod) * time.Second
	}

	if environmentValue := os.Getenv("DISCOVERY_PERIOD_SEC"); environmentValue != "" {
		if parsed, err := strconv.Atoi(environmentValue); err == nil && time.Duration(parsed)*time.Second >= MinDiscoveryPeriod {
			return time.Duration(parsed) * time.Second
		}
	}

	return DefaultDiscoveryPeriod
}
