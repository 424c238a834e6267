// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/sitekit/internal/validate"
)

// devEnv is the smallest environment that assembles for development.
func devEnv(overrides map[string]string) map[string]string {
	env := map[string]string{
		"ENV":           "development",
		"ALLOWED_HOSTS": `["localhost", "testserver"]`,
		"SECRET_KEY":    "not-a-real-secret",
		"DB_ENGINE":     "sqlite",
		"DB_NAME":       "site.db",
		"SITE_ID":       "1",
		"ADMINS":        `[["Ops", "ops@example.com"]]`,
		"MANAGERS":      `[]`,
	}
	for k, v := range overrides {
		env[k] = v
	}
	return env
}

// deployedEnv returns a complete environment for a deployed tag.
func deployedEnv(t *testing.T, tag Environment, overrides map[string]string) map[string]string {
	t.Helper()
	base := map[string]string{
		"ENV":           string(tag),
		"ALLOWED_HOSTS": `["www.example.com", ".example.org"]`,
		"DB_ENGINE":     "mysql",
		"DB_USER":       "site",
		"DB_PASSWORD":   "hunter22",
		"DB_HOST":       "db.internal",
		"DB_PORT":       "3306",
		"MEDIA_ROOT":    filepath.Join(t.TempDir(), "media"),
		"STATIC_ROOT":   filepath.Join(t.TempDir(), "static"),
	}
	for k, v := range overrides {
		base[k] = v
	}
	return devEnv(base)
}

func resolve(t *testing.T, env map[string]string) (Config, error) {
	t.Helper()
	return Resolve(MapSource(env), WithRootDir(t.TempDir()))
}

func requireKind(t *testing.T, err error, kind error, key string) {
	t.Helper()
	require.Error(t, err)
	assert.ErrorIs(t, err, kind)
	var ce *ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, key, ce.Key)
}

func TestResolveEnvironmentTag(t *testing.T) {
	for _, tag := range Environments() {
		t.Run(string(tag), func(t *testing.T) {
			got, err := ResolveEnvironmentTag(MapSource(map[string]string{"ENV": string(tag)}))
			require.NoError(t, err)
			assert.Equal(t, tag, got)
		})
	}

	for _, raw := range []string{"dev", "prod", "Production", "qa", ""} {
		t.Run("reject "+raw, func(t *testing.T) {
			_, err := ResolveEnvironmentTag(MapSource(map[string]string{"ENV": raw}))
			requireKind(t, err, ErrUnknownEnvironment, EnvKey)
		})
	}

	t.Run("missing", func(t *testing.T) {
		_, err := ResolveEnvironmentTag(MapSource(nil))
		requireKind(t, err, ErrUnknownEnvironment, EnvKey)
	})
}

func TestAssemble_UnknownTag(t *testing.T) {
	_, err := Assemble(Environment("qa"), MapSource(devEnv(nil)))
	requireKind(t, err, ErrUnknownEnvironment, EnvKey)
}

func TestAssemble_ProductionRejectsDebug(t *testing.T) {
	_, err := resolve(t, deployedEnv(t, Production, map[string]string{"DEBUG": "True"}))
	requireKind(t, err, ErrDisallowedCombination, "DEBUG")

	cfg, err := resolve(t, deployedEnv(t, Staging, map[string]string{"DEBUG": "True"}))
	require.NoError(t, err)
	assert.True(t, cfg.Debug)
}

func TestAssemble_StoragePaths(t *testing.T) {
	for _, tag := range []Environment{Production, Staging} {
		t.Run(string(tag)+" requires paths", func(t *testing.T) {
			env := deployedEnv(t, tag, nil)
			delete(env, "MEDIA_ROOT")
			_, err := resolve(t, env)
			requireKind(t, err, ErrMissingVariable, "MEDIA_ROOT")

			env = deployedEnv(t, tag, nil)
			delete(env, "STATIC_ROOT")
			_, err = resolve(t, env)
			requireKind(t, err, ErrMissingVariable, "STATIC_ROOT")
		})
	}

	for _, tag := range []Environment{Development, Test} {
		t.Run(string(tag)+" defaults paths", func(t *testing.T) {
			root := t.TempDir()
			cfg, err := Resolve(MapSource(devEnv(map[string]string{"ENV": string(tag)})), WithRootDir(root))
			require.NoError(t, err)

			assert.Equal(t, filepath.Join(root, "media"), cfg.Storage.MediaRoot)
			assert.Equal(t, filepath.Join(root, "staticfiles"), cfg.Storage.StaticRoot)
			info, err := os.Stat(cfg.Storage.MediaRoot)
			require.NoError(t, err, "media root is created on demand")
			assert.True(t, info.IsDir())
		})
	}

	t.Run("local override", func(t *testing.T) {
		media := filepath.Join(t.TempDir(), "uploads")
		cfg, err := resolve(t, devEnv(map[string]string{"MEDIA_ROOT": media}))
		require.NoError(t, err)
		assert.Equal(t, media, cfg.Storage.MediaRoot)
		assert.DirExists(t, media)
	})

	t.Run("deployed paths must be absolute", func(t *testing.T) {
		_, err := resolve(t, deployedEnv(t, Production, map[string]string{"MEDIA_ROOT": "media"}))
		requireKind(t, err, ErrInvalidLiteral, "MEDIA_ROOT")
	})
}

func TestAssemble_ErrorReportingRequiresDSN(t *testing.T) {
	_, err := resolve(t, devEnv(map[string]string{"SENTRY_ENABLED": "True"}))
	requireKind(t, err, ErrMissingVariable, "SENTRY_DSN")

	cfg, err := resolve(t, devEnv(map[string]string{
		"SENTRY_ENABLED": "True",
		"SENTRY_DSN":     "https://public@o0.ingest.sentry.io/1",
	}))
	require.NoError(t, err)
	assert.True(t, cfg.ErrorReporting.Enabled)
	assert.Equal(t, []string{"http", "tasks"}, cfg.ErrorReporting.Integrations)

	cfg, err = resolve(t, devEnv(map[string]string{"SENTRY_DSN": "ignored when disabled"}))
	require.NoError(t, err)
	assert.False(t, cfg.ErrorReporting.Enabled)
	assert.Empty(t, cfg.ErrorReporting.DSN)
}

func TestAssemble_LogLevel(t *testing.T) {
	_, err := resolve(t, devEnv(map[string]string{"LOG_LEVEL": "VERBOSE"}))
	requireKind(t, err, ErrInvalidLogLevel, "LOG_LEVEL")

	cfg, err := resolve(t, devEnv(map[string]string{"LOG_LEVEL": "DEBUG"}))
	require.NoError(t, err)
	assert.Equal(t, validate.LogLevelDebug, cfg.Logging.Level)

	cfg, err = resolve(t, devEnv(nil))
	require.NoError(t, err)
	assert.Equal(t, validate.LogLevelError, cfg.Logging.Level, "ERROR is the default")
}

func TestAssemble_EmailRequiresAllFields(t *testing.T) {
	full := map[string]string{
		"EMAIL_ENABLED":       "True",
		"DEFAULT_FROM_EMAIL":  "site@example.com",
		"EMAIL_HOST":          "smtp.example.com",
		"EMAIL_PORT":          "465",
		"EMAIL_HOST_USER":     "mailer",
		"EMAIL_HOST_PASSWORD": "app-password",
		"EMAIL_USE_SSL":       "True",
		"SERVER_EMAIL":        "errors@example.com",
	}
	cfg, err := resolve(t, devEnv(full))
	require.NoError(t, err)
	assert.Equal(t, MailSMTP, cfg.Email.Backend)
	assert.Equal(t, 465, cfg.Email.Port)
	assert.True(t, cfg.Email.UseSSL)

	for key := range full {
		if key == "EMAIL_ENABLED" {
			continue
		}
		t.Run("missing "+key, func(t *testing.T) {
			env := devEnv(full)
			delete(env, key)
			_, err := resolve(t, env)
			requireKind(t, err, ErrMissingVariable, key)
		})
	}

	cfg, err = resolve(t, devEnv(nil))
	require.NoError(t, err)
	assert.Equal(t, MailConsole, cfg.Email.Backend)
}

func TestAssemble_RequiredVariables(t *testing.T) {
	for _, key := range []string{"ALLOWED_HOSTS", "SECRET_KEY", "DB_NAME", "SITE_ID", "ADMINS", "MANAGERS"} {
		t.Run(key, func(t *testing.T) {
			env := devEnv(nil)
			delete(env, key)
			_, err := resolve(t, env)
			requireKind(t, err, ErrMissingVariable, key)
		})
	}

	t.Run("mysql needs connection parameters", func(t *testing.T) {
		env := devEnv(map[string]string{"DB_ENGINE": "mysql"})
		_, err := resolve(t, env)
		requireKind(t, err, ErrMissingVariable, "DB_USER")
	})
}

func TestAssemble_InvalidLiterals(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"DEBUG", "maybe"},
		{"ALLOWED_HOSTS", "example.com"},
		{"ALLOWED_HOSTS", `["bad host name"]`},
		{"ADMINS", `[["only-a-name"]]`},
		{"SITE_ID", "one"},
		{"SITE_SCHEME", "ftp"},
		{"DB_ENGINE", "postgres"},
		{"CACHE_BACKEND", "memcached"},
		{"TASK_WORKERS", "0"},
		{"OTEL_SAMPLING_RATE", "2"},
		{"SERVER_READ_TIMEOUT", "soon"},
		{"LOG_FORMAT", "xml"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			_, err := resolve(t, devEnv(map[string]string{tt.key: tt.value}))
			requireKind(t, err, ErrInvalidLiteral, tt.key)
		})
	}
}

func TestAssemble_EnvironmentBranches(t *testing.T) {
	prod, err := resolve(t, deployedEnv(t, Production, nil))
	require.NoError(t, err)
	staging, err := resolve(t, deployedEnv(t, Staging, nil))
	require.NoError(t, err)
	dev, err := resolve(t, devEnv(nil))
	require.NoError(t, err)
	test, err := resolve(t, devEnv(map[string]string{"ENV": "test", "CACHE_BACKEND": "redis"}))
	require.NoError(t, err)

	assert.True(t, prod.Security.SSLRedirect)
	assert.False(t, staging.Security.SSLRedirect)
	assert.False(t, dev.Security.SSLRedirect)
	assert.False(t, prod.Security.TrustProxyHeaders, "X-Forwarded-Proto is ignored unless enabled")

	proxied, err := resolve(t, deployedEnv(t, Production, map[string]string{"TRUST_PROXY_HEADERS": "True"}))
	require.NoError(t, err)
	assert.True(t, proxied.Security.TrustProxyHeaders)

	for _, cfg := range []Config{prod, staging, dev, test} {
		assert.True(t, cfg.Security.ContentTypeNosniff)
		assert.True(t, cfg.Security.SessionCookieSecure)
		assert.True(t, cfg.Security.SessionCookieHTTPOnly)
		assert.True(t, cfg.Security.CSRFCookieSecure)
	}

	assert.Equal(t, TemplateCached, prod.Templates.Strategy)
	assert.Equal(t, TemplateCached, staging.Templates.Strategy)
	assert.False(t, prod.Templates.AppDirs)
	assert.Equal(t, TemplateHotReload, dev.Templates.Strategy)
	assert.Equal(t, TemplateHotReload, test.Templates.Strategy)

	assert.True(t, prod.Storage.ManifestStorage)
	assert.False(t, dev.Storage.ManifestStorage)

	assert.Equal(t, LogFormatJSON, prod.Logging.Format)
	assert.Equal(t, LogFormatConsole, dev.Logging.Format)
	assert.NotEmpty(t, dev.Logging.File)
	assert.Empty(t, test.Logging.File)

	assert.Equal(t, CacheRedis, prod.Cache.Backend)
	assert.Equal(t, "127.0.0.1:6379", prod.Cache.Location)
	assert.Equal(t, CacheMemory, dev.Cache.Backend)
	assert.Equal(t, CacheDummy, test.Cache.Backend, "test always disables caching")

	assert.Equal(t, []string{"127.0.0.1"}, dev.InternalIPs)
	assert.Empty(t, prod.InternalIPs)

	assert.Equal(t, []string{"www.example.com", ".example.org"}, prod.AllowedHosts)
	assert.Equal(t, "admin", dev.Site.AdminPath)
	assert.Equal(t, "http", dev.Site.Scheme)
	assert.Equal(t, 30*time.Second, dev.Server.WriteTimeout)
	assert.Equal(t, 24*time.Hour, dev.Tasks.BeatInterval)
}

func TestAssemble_DebugToolbarComponents(t *testing.T) {
	cfg, err := resolve(t, devEnv(map[string]string{"DEBUG": "True"}))
	require.NoError(t, err)
	assert.True(t, cfg.DevelopmentDebug())
	assert.Contains(t, cfg.InstalledComponents, "debug_toolbar")
	assert.Equal(t, MiddlewareDebugToolbar, cfg.Middleware[0])

	cfg, err = resolve(t, deployedEnv(t, Staging, map[string]string{"DEBUG": "True"}))
	require.NoError(t, err)
	assert.False(t, cfg.DevelopmentDebug())
	assert.NotContains(t, cfg.InstalledComponents, "debug_toolbar")
	assert.Equal(t, MiddlewareRecoverer, cfg.Middleware[0])
}

func TestAssemble_AdminCredentials(t *testing.T) {
	_, err := resolve(t, devEnv(map[string]string{"ADMIN_USERNAME": "root"}))
	requireKind(t, err, ErrDisallowedCombination, "ADMIN_PASSWORD")

	_, err = resolve(t, devEnv(map[string]string{"ADMIN_USERNAME": "root", "ADMIN_PASSWORD": "12345678"}))
	requireKind(t, err, ErrInvalidLiteral, "ADMIN_PASSWORD")

	cfg, err := resolve(t, devEnv(map[string]string{"ADMIN_USERNAME": "root", "ADMIN_PASSWORD": "correct-horse-battery"}))
	require.NoError(t, err)
	assert.True(t, cfg.Security.AdminEnabled())
}

func TestAssemble_TaskBroker(t *testing.T) {
	_, err := resolve(t, devEnv(map[string]string{"TASK_BROKER": "amqp"}))
	requireKind(t, err, ErrMissingVariable, "TASK_BROKER_URL")

	_, err = resolve(t, devEnv(map[string]string{"TASK_BROKER": "redis", "TASK_BROKER_URL": "amqp://localhost"}))
	requireKind(t, err, ErrInvalidLiteral, "TASK_BROKER_URL")

	cfg, err := resolve(t, devEnv(map[string]string{"TASK_BROKER": "redis", "TASK_BROKER_URL": "redis://127.0.0.1:6379/2"}))
	require.NoError(t, err)
	assert.Equal(t, BrokerRedis, cfg.Tasks.Broker)
}

func TestAssemble_FirstFailureWins(t *testing.T) {
	env := devEnv(map[string]string{"DEBUG": "nope", "LOG_LEVEL": "VERBOSE"})
	delete(env, "SECRET_KEY")
	_, err := resolve(t, env)
	requireKind(t, err, ErrInvalidLiteral, "DEBUG")
	assert.False(t, errors.Is(err, ErrInvalidLogLevel))
}

func TestAssemble_IsDeterministic(t *testing.T) {
	root := t.TempDir()
	src := MapSource(deployedEnv(t, Staging, nil))
	a, err := Resolve(src, WithRootDir(root))
	require.NoError(t, err)
	b, err := Resolve(src, WithRootDir(root))
	require.NoError(t, err)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("assembly is not deterministic (-first +second):\n%s", diff)
	}
}

func TestConfig_CloneIsDeep(t *testing.T) {
	cfg, err := resolve(t, devEnv(nil))
	require.NoError(t, err)

	clone := cfg.Clone()
	if diff := cmp.Diff(cfg, clone); diff != "" {
		t.Fatalf("clone differs (-orig +clone):\n%s", diff)
	}

	clone.AllowedHosts[0] = "evil.example"
	clone.People.Admins[0].Email = "evil@example.com"
	clone.Middleware[0] = "none"
	assert.Equal(t, "localhost", cfg.AllowedHosts[0])
	assert.Equal(t, "ops@example.com", cfg.People.Admins[0].Email)
	assert.Equal(t, MiddlewareRecoverer, cfg.Middleware[0])
}

func TestResolve_OSSource(t *testing.T) {
	for k, v := range devEnv(nil) {
		t.Setenv(k, v)
	}
	cfg, err := Resolve(OSSource(), WithRootDir(t.TempDir()))
	require.NoError(t, err)
	assert.Equal(t, Development, cfg.Environment)
	assert.Equal(t, 1, cfg.Site.ID)
}
