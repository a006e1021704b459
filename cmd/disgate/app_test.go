package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, path string, contents string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		t.Fatalf("create config dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    slog.Level
		wantErr bool
	}{
		{name: "debug", input: "debug", want: slog.LevelDebug},
		{name: "info", input: "info", want: slog.LevelInfo},
		{name: "warn", input: "warn", want: slog.LevelWarn},
		{name: "warning", input: "warning", want: slog.LevelWarn},
		{name: "error", input: "error", want: slog.LevelError},
		{name: "invalid", input: "trace", wantErr: true},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			got, err := parseLogLevel(testCase.input)
			if testCase.wantErr && err == nil {
				t.Fatal("expected error")
			}
			if !testCase.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if testCase.wantErr {
				return
			}
			if got != testCase.want {
				t.Fatalf("level = %v, want %v", got, testCase.want)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("loads all supported fields from config file", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "disgate.json")
		writeConfigFile(t, configPath, `{
			"log_level":"warn",
			"gateway_url":"wss://gateway.example/?v=9",
			"rest_base_url":"https://rest.example/api/v9",
			"metrics_addr":":9310",
			"bus":{
				"buffer":64,
				"workers":3,
				"handler_timeout":"7s"
			},
			"cache":{
				"disabled_events":["TYPING_START"],
				"emit_raw_events":true,
				"load_all_members":true,
				"message_limit":500
			}
		}`)
		t.Setenv(envConfigFile, configPath)
		t.Setenv(envToken, "token-value")

		cfg, err := loadConfig()
		if err != nil {
			t.Fatalf("load config failed: %v", err)
		}

		if cfg.logLevel != slog.LevelWarn {
			t.Fatalf("log level = %v, want %v", cfg.logLevel, slog.LevelWarn)
		}
		if cfg.gatewayURL != "wss://gateway.example/?v=9" {
			t.Fatalf("gateway url = %q", cfg.gatewayURL)
		}
		if cfg.restBaseURL != "https://rest.example/api/v9" {
			t.Fatalf("rest base url = %q", cfg.restBaseURL)
		}
		if cfg.metricsAddr != ":9310" {
			t.Fatalf("metrics addr = %q, want :9310", cfg.metricsAddr)
		}
		if cfg.token != "token-value" {
			t.Fatalf("token = %q, want token-value", cfg.token)
		}
		if cfg.busBuffer != 64 {
			t.Fatalf("bus buffer = %d, want 64", cfg.busBuffer)
		}
		if cfg.busWorkers != 3 {
			t.Fatalf("bus workers = %d, want 3", cfg.busWorkers)
		}
		if cfg.busTimeout != 7*time.Second {
			t.Fatalf("bus timeout = %s, want 7s", cfg.busTimeout)
		}
		if len(cfg.engineOptions) != 4 {
			t.Fatalf("engine options = %d, want one per cache flag", len(cfg.engineOptions))
		}
	})

	t.Run("loads fallback path bin/config/disgate.json when no explicit path is set", func(t *testing.T) {
		workDir := t.TempDir()
		configPath := filepath.Join(workDir, "bin", "config", "disgate.json")
		writeConfigFile(t, configPath, `{
			"gateway_url":"wss://fallback.example/",
			"rest_base_url":"https://fallback.example/api"
		}`)

		currentDir, err := os.Getwd()
		if err != nil {
			t.Fatalf("get working directory: %v", err)
		}
		if err := os.Chdir(workDir); err != nil {
			t.Fatalf("chdir to temp work dir: %v", err)
		}
		t.Cleanup(func() {
			if err := os.Chdir(currentDir); err != nil {
				t.Fatalf("restore working directory: %v", err)
			}
		})
		t.Setenv(envConfigFile, "")
		t.Setenv(envToken, "token-value")

		cfg, err := loadConfig()
		if err != nil {
			t.Fatalf("load config failed: %v", err)
		}

		if cfg.gatewayURL != "wss://fallback.example/" {
			t.Fatalf("gateway url = %q, want fallback", cfg.gatewayURL)
		}
	})

	t.Run("invalid config values fail", func(t *testing.T) {
		tests := []struct {
			name       string
			fileJSON   string
			wantErrSub string
		}{
			{
				name:       "invalid log level",
				fileJSON:   `{"log_level":"trace","gateway_url":"wss://g","rest_base_url":"https://r"}`,
				wantErrSub: "unknown log level",
			},
			{
				name:       "invalid bus timeout",
				fileJSON:   `{"gateway_url":"wss://g","rest_base_url":"https://r","bus":{"handler_timeout":"bad"}}`,
				wantErrSub: "parse bus handler_timeout",
			},
			{
				name:       "unknown field",
				fileJSON:   `{"gateway_url":"wss://g","rest_base_url":"https://r","surprise":1}`,
				wantErrSub: "decode config file",
			},
			{
				name:       "missing gateway url",
				fileJSON:   `{"rest_base_url":"https://r"}`,
				wantErrSub: "gateway_url is required",
			},
			{
				name:       "missing rest base url",
				fileJSON:   `{"gateway_url":"wss://g"}`,
				wantErrSub: "rest_base_url is required",
			},
		}

		for _, testCase := range tests {
			testCase := testCase
			t.Run(testCase.name, func(t *testing.T) {
				configPath := filepath.Join(t.TempDir(), "disgate.json")
				writeConfigFile(t, configPath, testCase.fileJSON)
				t.Setenv(envConfigFile, configPath)
				t.Setenv(envToken, "token-value")

				_, err := loadConfig()
				if err == nil {
					t.Fatal("expected error")
				}
				if !strings.Contains(err.Error(), testCase.wantErrSub) {
					t.Fatalf("error = %v, want substring %q", err, testCase.wantErrSub)
				}
			})
		}
	})

	t.Run("missing token fails", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "disgate.json")
		writeConfigFile(t, configPath, `{"gateway_url":"wss://g","rest_base_url":"https://r"}`)
		t.Setenv(envConfigFile, configPath)
		t.Setenv(envToken, "")

		_, err := loadConfig()
		if err == nil || !strings.Contains(err.Error(), envToken) {
			t.Fatalf("error = %v, want missing token", err)
		}
	})
}
