package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	config := Load()

	if config.Port != "8080" {
		t.Errorf("Load() Port = %v, want %v", config.Port, "8080")
	}
	if config.LogLevel != "info" {
		t.Errorf("Load() LogLevel = %v, want %v", config.LogLevel, "info")
	}
	if config.DatabaseURL != "" {
		t.Errorf("Load() DatabaseURL = %v, want empty", config.DatabaseURL)
	}
	if config.EventsExchange != "payouts" {
		t.Errorf("Load() EventsExchange = %v, want %v", config.EventsExchange, "payouts")
	}

	if config.FailureThreshold != 5 {
		t.Errorf("Load() FailureThreshold = %v, want 5", config.FailureThreshold)
	}
	if config.RecoveryTimeout != 5*time.Minute {
		t.Errorf("Load() RecoveryTimeout = %v, want 5m", config.RecoveryTimeout)
	}
	if config.MetricsWindow != time.Hour {
		t.Errorf("Load() MetricsWindow = %v, want 1h", config.MetricsWindow)
	}
	if config.MinScoreThreshold != 30 {
		t.Errorf("Load() MinScoreThreshold = %v, want 30", config.MinScoreThreshold)
	}
	if config.SplitThreshold != 5_000_000 {
		t.Errorf("Load() SplitThreshold = %v, want 5000000", config.SplitThreshold)
	}
	if config.MaxRetries != 3 {
		t.Errorf("Load() MaxRetries = %v, want 3", config.MaxRetries)
	}
	if config.BridgeOverheadPercent != 0.5 {
		t.Errorf("Load() BridgeOverheadPercent = %v, want 0.5", config.BridgeOverheadPercent)
	}
	if config.GatewayTimeout != 30*time.Second {
		t.Errorf("Load() GatewayTimeout = %v, want 30s", config.GatewayTimeout)
	}

	wantWeights := [5]int{30, 30, 15, 15, 10}
	if config.ScoreWeights != wantWeights {
		t.Errorf("Load() ScoreWeights = %v, want %v", config.ScoreWeights, wantWeights)
	}
	wantHubs := []string{"CM", "SN", "CI", "KE"}
	if len(config.BridgeHubs) != len(wantHubs) {
		t.Fatalf("Load() BridgeHubs = %v, want %v", config.BridgeHubs, wantHubs)
	}
	for i, hub := range wantHubs {
		if config.BridgeHubs[i] != hub {
			t.Errorf("Load() BridgeHubs[%d] = %v, want %v", i, config.BridgeHubs[i], hub)
		}
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("FAILURE_THRESHOLD", "3")
	t.Setenv("RECOVERY_TIMEOUT", "10m")
	t.Setenv("SPLIT_THRESHOLD", "2000000")
	t.Setenv("BRIDGE_HUBS", "cm, ga")
	t.Setenv("SCORE_WEIGHTS", "40,20,20,10,10")
	t.Setenv("GATEWAYS", "mtn_momo=https://momo.example;WAVE=https://wave.example")
	t.Setenv("GATEWAY_WAVE_API_KEY", "secret")

	config := Load()

	if config.Port != "9090" {
		t.Errorf("Load() Port = %v, want 9090", config.Port)
	}
	if config.FailureThreshold != 3 {
		t.Errorf("Load() FailureThreshold = %v, want 3", config.FailureThreshold)
	}
	if config.RecoveryTimeout != 10*time.Minute {
		t.Errorf("Load() RecoveryTimeout = %v, want 10m", config.RecoveryTimeout)
	}
	if config.SplitThreshold != 2_000_000 {
		t.Errorf("Load() SplitThreshold = %v, want 2000000", config.SplitThreshold)
	}

	// hubs are trimmed and uppercased
	if len(config.BridgeHubs) != 2 || config.BridgeHubs[0] != "CM" || config.BridgeHubs[1] != "GA" {
		t.Errorf("Load() BridgeHubs = %v, want [CM GA]", config.BridgeHubs)
	}

	wantWeights := [5]int{40, 20, 20, 10, 10}
	if config.ScoreWeights != wantWeights {
		t.Errorf("Load() ScoreWeights = %v, want %v", config.ScoreWeights, wantWeights)
	}

	// gateway names are lowercased, keys looked up by uppercased name
	if config.Gateways["mtn_momo"] != "https://momo.example" {
		t.Errorf("Load() Gateways[mtn_momo] = %v", config.Gateways["mtn_momo"])
	}
	if config.Gateways["wave"] != "https://wave.example" {
		t.Errorf("Load() Gateways[wave] = %v", config.Gateways["wave"])
	}
	if config.GatewayAPIKeys["wave"] != "secret" {
		t.Errorf("Load() GatewayAPIKeys[wave] = %v, want secret", config.GatewayAPIKeys["wave"])
	}
}

func TestLoadInvalidEnvFallsBackToDefaults(t *testing.T) {
	t.Setenv("FAILURE_THRESHOLD", "not-a-number")
	t.Setenv("RECOVERY_TIMEOUT", "soon")
	t.Setenv("SCORE_WEIGHTS", "1,2,3")

	config := Load()

	if config.FailureThreshold != 5 {
		t.Errorf("Load() FailureThreshold = %v, want default 5", config.FailureThreshold)
	}
	if config.RecoveryTimeout != 5*time.Minute {
		t.Errorf("Load() RecoveryTimeout = %v, want default 5m", config.RecoveryTimeout)
	}
	if config.ScoreWeights != [5]int{30, 30, 15, 15, 10} {
		t.Errorf("Load() ScoreWeights = %v, want defaults", config.ScoreWeights)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Port:                  "8080",
			FailureThreshold:      5,
			RecoveryTimeout:       5 * time.Minute,
			MetricsWindow:         time.Hour,
			MinScoreThreshold:     30,
			SplitThreshold:        5_000_000,
			MaxRetries:            3,
			BridgeOverheadPercent: 0.5,
			BridgeHubs:            []string{"CM"},
			GatewayTimeout:        30 * time.Second,
			ScoreWeights:          [5]int{30, 30, 15, 15, 10},
			AppFeePercent:         1.0,
		}
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("Validate() on valid config = %v, want nil", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"invalid port", func(c *Config) { c.Port = "notaport" }},
		{"port out of range", func(c *Config) { c.Port = "70000" }},
		{"zero failure threshold", func(c *Config) { c.FailureThreshold = 0 }},
		{"negative recovery timeout", func(c *Config) { c.RecoveryTimeout = -time.Second }},
		{"min score above 100", func(c *Config) { c.MinScoreThreshold = 101 }},
		{"zero split threshold", func(c *Config) { c.SplitThreshold = 0 }},
		{"zero max retries", func(c *Config) { c.MaxRetries = 0 }},
		{"negative bridge overhead", func(c *Config) { c.BridgeOverheadPercent = -1 }},
		{"no bridge hubs", func(c *Config) { c.BridgeHubs = nil }},
		{"zero gateway timeout", func(c *Config) { c.GatewayTimeout = 0 }},
		{"weights not summing to 100", func(c *Config) { c.ScoreWeights = [5]int{30, 30, 15, 15, 20} }},
		{"negative weight", func(c *Config) { c.ScoreWeights = [5]int{-10, 40, 30, 30, 10} }},
		{"negative app fee", func(c *Config) { c.AppFeePercent = -0.5 }},
		{"redis db out of range", func(c *Config) { c.RedisAddress = "localhost:6379"; c.RedisDB = 16 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			if err := c.Validate(); err == nil {
				t.Errorf("Validate() = nil, want error")
			}
		})
	}
}
