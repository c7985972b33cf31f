package settings_test

import (
	"log/slog"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wandb/chunkup/internal/chunkupload"
	"github.com/wandb/chunkup/internal/settings"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CHUNKUP_TARGET", "s3://bucket/{{.Name}}")

	s, err := settings.Load(settings.LoadParams{
		Fs:   afero.NewMemMapFs(),
		Home: "/home/user",
	})

	require.NoError(t, err)
	assert.Equal(t, "s3://bucket/{{.Name}}", s.Target)
	assert.Equal(t, chunkupload.DefaultChunkSize, s.ChunkSize)
	assert.Equal(t, chunkupload.DefaultChunkUploadRetries, s.ChunkUploadRetries)
	assert.Equal(t, 5*time.Minute, s.HTTPTimeout)
	assert.Equal(t, "json", s.Output)
	assert.Equal(t, 2*time.Second, s.ProgressInterval)
}

func TestLoad_ConfigFileAndEnv(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/home/user/.chunkup.yaml", []byte(`
target: gs://bucket/{{.Name}}
chunk_size: 1024
http_timeout: 30s
s3:
  region: eu-west-1
  path_style: true
`), 0o644))
	t.Setenv("CHUNKUP_CHUNK_UPLOAD_RETRIES", "3")
	t.Setenv("CHUNKUP_S3_ENDPOINT", "http://localhost:9000")
	t.Setenv("CHUNKUP_SENTRY_DSN", "https://key@sentry.example/1")

	s, err := settings.Load(settings.LoadParams{Fs: fs, Home: "/home/user"})

	require.NoError(t, err)
	assert.Equal(t, "gs://bucket/{{.Name}}", s.Target)
	assert.EqualValues(t, 1024, s.ChunkSize)
	assert.Equal(t, 3, s.ChunkUploadRetries)
	assert.Equal(t, 30*time.Second, s.HTTPTimeout)
	assert.Equal(t, settings.S3Settings{
		Region:    "eu-west-1",
		Endpoint:  "http://localhost:9000",
		PathStyle: true,
	}, s.S3)
	assert.Equal(t, "https://key@sentry.example/1", s.SentryDSN)
}

func TestLoad_FlagsOverrideConfig(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/chunkup.yaml", []byte(`
target: gs://bucket/{{.Name}}
output: json
`), 0o644))
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	settings.AddFlags(flags)
	require.NoError(t, flags.Parse([]string{
		"--output=yaml",
		"--chunk-size=4096",
		"--log-level=debug",
	}))
	v := viper.New()
	require.NoError(t, settings.BindFlags(v, flags))

	s, err := settings.Load(settings.LoadParams{
		Viper:      v,
		Fs:         fs,
		ConfigFile: "/etc/chunkup.yaml",
	})

	require.NoError(t, err)
	assert.Equal(t, "gs://bucket/{{.Name}}", s.Target)
	assert.Equal(t, "yaml", s.Output)
	assert.EqualValues(t, 4096, s.ChunkSize)
	level, err := s.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoad_InvalidNumbersUseDefaults(t *testing.T) {
	t.Setenv("CHUNKUP_TARGET", "s3://bucket/x")
	t.Setenv("CHUNKUP_CHUNK_SIZE", "-5")
	t.Setenv("CHUNKUP_CHUNK_UPLOAD_RETRIES", "0")

	s, err := settings.Load(settings.LoadParams{
		Fs:   afero.NewMemMapFs(),
		Home: "/home/user",
	})

	require.NoError(t, err)
	assert.Equal(t, chunkupload.DefaultChunkSize, s.ChunkSize)
	assert.Equal(t, chunkupload.DefaultChunkUploadRetries, s.ChunkUploadRetries)
}

func TestLoad_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "no target",
			env:     map[string]string{},
			wantErr: "target or sign_endpoint",
		},
		{
			name: "bad output",
			env: map[string]string{
				"CHUNKUP_TARGET": "s3://b/k",
				"CHUNKUP_OUTPUT": "xml",
			},
			wantErr: "invalid output format",
		},
		{
			name: "bad log level",
			env: map[string]string{
				"CHUNKUP_SIGN_ENDPOINT": "https://example.com/sign",
				"CHUNKUP_LOG_LEVEL":     "loud",
			},
			wantErr: "invalid log level",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			_, err := settings.Load(settings.LoadParams{
				Fs:   afero.NewMemMapFs(),
				Home: "/home/user",
			})

			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestLoad_MissingExplicitConfigFile(t *testing.T) {
	_, err := settings.Load(settings.LoadParams{
		Fs:         afero.NewMemMapFs(),
		ConfigFile: "/missing.yaml",
	})

	assert.Error(t, err)
}
