package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlagsLoad_Precedence(t *testing.T) {
	path := writeTempJSON(t, "", "", map[string]any{
		"server_url":    "https://from-json.example.com",
		"database_path": "/json/logbook.db",
		"sync_interval": "1m",
	})

	tests := []struct {
		name     string
		args     []string
		expected func(c *Config)
	}{
		{
			name:     "defaults only",
			args:     nil,
			expected: func(c *Config) {},
		},
		{
			name: "json overrides defaults",
			args: []string{"--config", path},
			expected: func(c *Config) {
				c.ServerURL = "https://from-json.example.com"
				c.DatabasePath = "/json/logbook.db"
				c.SyncInterval = time.Minute
			},
		},
		{
			name: "flags override json",
			args: []string{"-c", path, "-s", "http://flag:9000", "--push-timeout", "1s", "--s3-bucket", "b"},
			expected: func(c *Config) {
				c.ServerURL = "http://flag:9000"
				c.DatabasePath = "/json/logbook.db"
				c.SyncInterval = time.Minute
				c.PushEntryTimeout = time.Second
				c.S3Bucket = "b"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
			f := RegisterFlags(fs)
			require.NoError(t, fs.Parse(tt.args))

			got, err := f.Load()
			require.NoError(t, err)

			want := &Config{}
			want.LoadDefaults()
			tt.expected(want)
			assert.Empty(t, cmp.Diff(want, got))
		})
	}
}

func TestFlagsLoad_InvalidValues(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	f := RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--sync-interval", "0s"}))

	_, err := f.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sync interval")

	fs = pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.Error(t, fs.Parse([]string{"--push-timeout", "abc"}))
}
