package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	for _, k := range []string{
		"APP_ENV", "HTTP_ADDR", "REPOSITORY", "KAFKA_BROKERS", "DEDUP", "HTTP_HANDLER_TIMEOUT", "HTTP_STEP_TIMEOUT",
		"OUTBOX_ENABLED", "OUTBOX_BATCH_SIZE", "OUTBOX_POLL_INTERVAL", "TRACING_EXPORTER", "WORKER_HTTP_ADDR",
	} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "dev", cfg.AppEnv)
	require.Equal(t, ":8080", cfg.HTTPAddr)
	require.Equal(t, ":8081", cfg.WorkerHTTPAddr)
	require.Equal(t, "postgres", cfg.Repository)
	require.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	require.Equal(t, "pipe.step.scheduled.v1", cfg.TopicScheduled)
	require.Equal(t, "off", cfg.Dedup)
	require.Equal(t, 45*time.Second, cfg.HTTPHandlerTimeout)
	require.Equal(t, 30*time.Second, cfg.HTTPStepTimeout)
	require.False(t, cfg.OutboxEnabled)
	require.Equal(t, 50, cfg.OutboxBatchSize)
	require.Equal(t, time.Second, cfg.OutboxPollInterval)
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("REPOSITORY", "sqlite")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("HTTP_HANDLER_TIMEOUT", "3s")
	t.Setenv("HTTP_STEP_TIMEOUT", "2s")
	t.Setenv("OUTBOX_BATCH_SIZE", "7")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "sqlite", cfg.Repository)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	require.Equal(t, 3*time.Second, cfg.HTTPHandlerTimeout)
	require.Equal(t, 2*time.Second, cfg.HTTPStepTimeout)
	require.Equal(t, 7, cfg.OutboxBatchSize)
}

func TestLoadReportsMalformedValues(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("OUTBOX_POLL_INTERVAL", "every second")
	t.Setenv("OUTBOX_BATCH_SIZE", "-1")
	t.Setenv("KAFKA_ENABLED", "sometimes")
	t.Setenv("DEDUP", "redis")

	cfg, err := Load()
	require.Error(t, err)
	for _, key := range []string{"OUTBOX_POLL_INTERVAL", "OUTBOX_BATCH_SIZE", "KAFKA_ENABLED", "DEDUP"} {
		require.ErrorContains(t, err, key)
	}

	// Bad values fall back to defaults so the caller can still log with cfg.
	require.Equal(t, time.Second, cfg.OutboxPollInterval)
	require.Equal(t, 50, cfg.OutboxBatchSize)
	require.Equal(t, "off", cfg.Dedup)
}

func TestLoadRejectsHandlerTimeoutNotAboveStepTimeout(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HTTP_HANDLER_TIMEOUT", "15s")
	t.Setenv("HTTP_STEP_TIMEOUT", "30s")

	_, err := Load()
	require.ErrorContains(t, err, "HTTP_HANDLER_TIMEOUT (15s) must exceed HTTP_STEP_TIMEOUT (30s)")
}

func TestDotEnvDoesNotOverrideEnvironment(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	content := "# local\nexport APP_ENV=\"staging\"\nSQLITE_PATH='/tmp/wf.db'\n\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0o600))

	t.Setenv("SQLITE_PATH", "/data/override.db")
	// t.Setenv registers cleanup; unset afterwards so the .env value applies.
	t.Setenv("APP_ENV", "")
	require.NoError(t, os.Unsetenv("APP_ENV"))

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "staging", cfg.AppEnv)
	require.Equal(t, "/data/override.db", cfg.SQLitePath)
}

func TestParseDotEnv(t *testing.T) {
	vars, err := parseDotEnv(strings.NewReader("A=1\n# c\nexport B = \"two words\"\nC='x'\nD=\nE=\"unterminated\n"))
	require.NoError(t, err)
	require.Equal(t, [][2]string{{"A", "1"}, {"B", "two words"}, {"C", "x"}, {"D", ""}, {"E", "\"unterminated"}}, vars)

	_, err = parseDotEnv(strings.NewReader("A=1\nbroken-line\n"))
	require.EqualError(t, err, "2: expected KEY=VALUE")

	_, err = parseDotEnv(strings.NewReader("=value\n"))
	require.Error(t, err)
}
