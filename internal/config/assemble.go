// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/sitekit/internal/log"
	"github.com/ManuGH/sitekit/internal/validate"
)

// Option adjusts assembly.
type Option func(*options)

type options struct {
	rootDir string
	logger  *zerolog.Logger
}

// WithRootDir fixes the project root instead of reading SITE_ROOT.
func WithRootDir(dir string) Option {
	return func(o *options) { o.rootDir = dir }
}

// WithLogger sets the logger used for resolution debug output.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = &l }
}

// Resolve reads the environment tag and assembles the configuration for it.
func Resolve(src Source, opts ...Option) (Config, error) {
	env, err := ResolveEnvironmentTag(src)
	if err != nil {
		return Config{}, err
	}
	return Assemble(env, src, opts...)
}

// Assemble builds the configuration for env from src. It either returns a
// complete Config or the first ConfigurationError encountered. The only side
// effect is creating the media directory for local environments.
func Assemble(env Environment, src Source, opts ...Option) (Config, error) {
	if !env.Valid() {
		return Config{}, newError(ErrUnknownEnvironment, EnvKey, fmt.Sprintf("%q is not one of %v", env, Environments()), nil)
	}
	reg, err := Schema()
	if err != nil {
		return Config{}, err
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	logger := log.WithComponent("config")
	if o.logger != nil {
		logger = *o.logger
	}

	b := &builder{env: env, src: src, schema: reg, logger: logger, rootDir: o.rootDir}
	cfg := b.build()
	if b.err != nil {
		return Config{}, b.err
	}

	logger.Info().
		Str("env", string(cfg.Environment)).
		Bool("debug", cfg.Debug).
		Str("templates", string(cfg.Templates.Strategy)).
		Str("cache", string(cfg.Cache.Backend)).
		Str("broker", string(cfg.Tasks.Broker)).
		Msg("configuration assembled")
	return cfg, nil
}

// builder runs the assembly steps in order. The first failure is kept and
// every later read becomes a no-op.
type builder struct {
	env     Environment
	src     Source
	schema  *Registry
	logger  zerolog.Logger
	rootDir string
	err     error
}

func (b *builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

func (b *builder) ok() bool { return b.err == nil }

func (b *builder) readBinding(bind Binding) Value {
	if b.err != nil {
		return Value{}
	}
	v, err := readVariable(b.logger, b.src, bind)
	if err != nil {
		b.fail(err)
		return Value{}
	}
	return v
}

func (b *builder) read(key string) Value {
	return b.readBinding(b.schema.MustLookup(key))
}

// readOr reads key with a default computed at assembly time.
func (b *builder) readOr(key, fallback string) Value {
	bind := b.schema.MustLookup(key)
	bind.Default = def(fallback)
	return b.readBinding(bind)
}

func (b *builder) str(key string) string             { return b.read(key).String() }
func (b *builder) boolean(key string) bool           { return b.read(key).Bool() }
func (b *builder) integer(key string) int            { return b.read(key).Int() }
func (b *builder) duration(key string) time.Duration { return b.read(key).Duration() }

func (b *builder) build() Config {
	cfg := Config{Environment: b.env}

	cfg.Debug = b.boolean("DEBUG")
	if b.ok() && b.env == Production && cfg.Debug {
		b.fail(disallowed("DEBUG", "debug mode is not allowed in production"))
	}

	cfg.RootDir = b.root()
	cfg.Storage = b.storage(cfg.RootDir)
	cfg.InstalledComponents, cfg.Middleware = components(cfg.Environment, cfg.Debug)
	if b.env == Development {
		cfg.InternalIPs = []string{"127.0.0.1"}
	}
	cfg.Database = b.database()
	cfg.Cache = b.cache(cfg.RootDir)
	cfg.Security = b.security()
	cfg.AllowedHosts = b.allowedHosts()
	cfg.Templates = b.templates(cfg.RootDir)
	cfg.Locale = LocaleConfig{
		LanguageCode: "en",
		TimeZone:     "UTC",
		UseI18N:      true,
		UseTZ:        true,
		LocalePaths:  []string{filepath.Join(cfg.RootDir, "locale")},
	}
	cfg.Logging = b.logging(cfg.RootDir)
	cfg.ErrorReporting = b.errorReporting()
	cfg.Email = b.email()
	cfg.Site = b.site()
	cfg.People = PeopleConfig{
		Admins:   b.read("ADMINS").People(),
		Managers: b.read("MANAGERS").People(),
	}
	cfg.Tasks = b.tasks()
	cfg.Server = b.server()
	cfg.Telemetry = b.telemetry()

	if b.ok() {
		b.validate(cfg)
	}
	if b.ok() && !b.env.Deployed() {
		b.ensureMediaRoot(cfg.Storage.MediaRoot)
	}
	return cfg
}

func (b *builder) root() string {
	dir := b.rootDir
	if dir == "" {
		dir = b.str("SITE_ROOT")
	}
	if !b.ok() {
		return ""
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		b.fail(invalid("SITE_ROOT", err))
		return ""
	}
	return abs
}

func (b *builder) storage(root string) StorageConfig {
	s := StorageConfig{
		MediaURL:  "/media/",
		StaticURL: "/static/",
		StaticDirs: []string{
			filepath.Join(root, "static"),
			filepath.Join(root, "web", "static"),
		},
		ManifestStorage: b.env.Deployed(),
	}
	if b.env.Deployed() {
		s.MediaRoot = b.str("MEDIA_ROOT")
		s.StaticRoot = b.str("STATIC_ROOT")
		return s
	}
	s.MediaRoot = b.readOr("MEDIA_ROOT", filepath.Join(root, "media")).String()
	s.StaticRoot = b.readOr("STATIC_ROOT", filepath.Join(root, "staticfiles")).String()
	return s
}

func (b *builder) ensureMediaRoot(dir string) {
	v := validate.New()
	v.Directory("MEDIA_ROOT", dir, false)
	if err := v.Err(); err != nil {
		b.fail(invalid("MEDIA_ROOT", err))
	}
}

func (b *builder) database() DatabaseConfig {
	db := DatabaseConfig{Engine: DatabaseEngine(b.str("DB_ENGINE"))}
	if !b.ok() {
		return db
	}
	switch db.Engine {
	case EngineMySQL:
		db.Name = b.str("DB_NAME")
		db.User = b.str("DB_USER")
		db.Password = b.str("DB_PASSWORD")
		db.Host = b.str("DB_HOST")
		db.Port = b.integer("DB_PORT")
	case EngineSQLite:
		db.Name = b.str("DB_NAME")
	default:
		b.fail(invalid("DB_ENGINE", fmt.Errorf("unsupported engine %q (allowed: mysql, sqlite)", db.Engine)))
	}
	return db
}

func (b *builder) cache(root string) CacheConfig {
	backend := CacheBackend(b.str("CACHE_BACKEND"))
	location := b.str("CACHE_LOCATION")
	if !b.ok() {
		return CacheConfig{}
	}

	switch {
	case b.env == Test:
		return CacheConfig{Backend: CacheDummy}
	case backend == "" && b.env.Deployed():
		backend = CacheRedis
	case backend == "":
		backend = CacheMemory
	}

	switch backend {
	case CacheRedis:
		if location == "" {
			location = "127.0.0.1:6379"
		}
	case CacheFile:
		if location == "" {
			location = filepath.Join(root, "cache")
		}
	case CacheMemory, CacheDummy:
	default:
		b.fail(invalid("CACHE_BACKEND", fmt.Errorf("unsupported backend %q (allowed: memory, redis, file, dummy)", backend)))
	}
	return CacheConfig{Backend: backend, Location: location}
}

func (b *builder) security() SecurityConfig {
	s := SecurityConfig{
		SecretKey:             b.str("SECRET_KEY"),
		SSLRedirect:           b.env == Production,
		ContentTypeNosniff:    true,
		SessionCookieSecure:   true,
		SessionCookieHTTPOnly: true,
		CSRFCookieSecure:      true,
		XFrameOptions:         "DENY",
		TrustProxyHeaders:     b.boolean("TRUST_PROXY_HEADERS"),
		PasswordPolicy:        DefaultPasswordPolicy(),
		AdminUsername:         b.str("ADMIN_USERNAME"),
		AdminPassword:         b.str("ADMIN_PASSWORD"),
	}
	if !b.ok() {
		return s
	}
	switch {
	case s.AdminUsername == "" && s.AdminPassword == "":
	case s.AdminUsername == "":
		b.fail(disallowed("ADMIN_USERNAME", "ADMIN_PASSWORD is set without a username"))
	case s.AdminPassword == "":
		b.fail(disallowed("ADMIN_PASSWORD", "ADMIN_USERNAME is set without a password"))
	default:
		if err := s.PasswordPolicy.Check(s.AdminUsername, s.AdminPassword); err != nil {
			b.fail(invalid("ADMIN_PASSWORD", err))
		}
	}
	return s
}

func (b *builder) allowedHosts() []string {
	raw := b.read("ALLOWED_HOSTS").Strings()
	if !b.ok() {
		return nil
	}
	hosts := make([]string, 0, len(raw))
	for _, h := range raw {
		n, err := NormalizeHostPattern(h)
		if err != nil {
			b.fail(invalid("ALLOWED_HOSTS", err))
			return nil
		}
		hosts = append(hosts, n)
	}
	return hosts
}

func (b *builder) templates(root string) TemplateConfig {
	t := TemplateConfig{
		Dirs: []string{
			filepath.Join(root, "templates"),
			filepath.Join(root, "web", "templates"),
		},
	}
	if b.env.Deployed() {
		t.Strategy = TemplateCached
		t.AppDirs = false
	} else {
		t.Strategy = TemplateHotReload
		t.AppDirs = true
	}
	return t
}

func (b *builder) logging(root string) LoggingConfig {
	raw := b.str("LOG_LEVEL")
	format := LogFormat(b.str("LOG_FORMAT"))
	if !b.ok() {
		return LoggingConfig{}
	}
	level, err := validate.ParseLogLevel(raw)
	if err != nil {
		b.fail(newError(ErrInvalidLogLevel, "LOG_LEVEL", fmt.Sprintf("%q", raw), err))
		return LoggingConfig{}
	}

	switch format {
	case "":
		if b.env.Deployed() {
			format = LogFormatJSON
		} else {
			format = LogFormatConsole
		}
	case LogFormatJSON, LogFormatConsole, LogFormatKeyValue:
	default:
		b.fail(invalid("LOG_FORMAT", fmt.Errorf("unsupported format %q (allowed: json, console, key_value)", format)))
		return LoggingConfig{}
	}

	l := LoggingConfig{Level: level, Format: format}
	if b.env == Development {
		l.File = filepath.Join(root, "logs", "sitekit.log")
	}
	return l
}

func (b *builder) errorReporting() ErrorReportingConfig {
	r := ErrorReportingConfig{Enabled: b.boolean("SENTRY_ENABLED")}
	if !r.Enabled {
		return r
	}
	r.DSN = b.str("SENTRY_DSN")
	r.Integrations = []string{"http", "tasks"}
	return r
}

func (b *builder) email() EmailConfig {
	e := EmailConfig{Enabled: b.boolean("EMAIL_ENABLED"), Backend: MailConsole}
	if !e.Enabled {
		return e
	}
	e.Backend = MailSMTP
	e.DefaultFrom = b.str("DEFAULT_FROM_EMAIL")
	e.Host = b.str("EMAIL_HOST")
	e.Port = b.integer("EMAIL_PORT")
	e.HostUser = b.str("EMAIL_HOST_USER")
	e.HostPassword = b.str("EMAIL_HOST_PASSWORD")
	e.UseSSL = b.boolean("EMAIL_USE_SSL")
	e.ServerEmail = b.str("SERVER_EMAIL")
	return e
}

func (b *builder) site() SiteConfig {
	s := SiteConfig{
		Scheme:    b.str("SITE_SCHEME"),
		ID:        b.integer("SITE_ID"),
		AdminPath: strings.Trim(b.str("SITE_ADMIN_PATH"), "/"),
	}
	if b.ok() && s.AdminPath == "" {
		b.fail(invalid("SITE_ADMIN_PATH", errors.New("admin path cannot be the site root")))
	}
	return s
}

func (b *builder) tasks() TaskConfig {
	t := TaskConfig{
		Broker:       TaskBroker(b.str("TASK_BROKER")),
		BrokerURL:    b.str("TASK_BROKER_URL"),
		Queue:        b.str("TASK_QUEUE"),
		Workers:      b.integer("TASK_WORKERS"),
		BeatInterval: b.duration("TASK_BEAT_INTERVAL"),
	}
	if !b.ok() {
		return t
	}
	switch t.Broker {
	case BrokerMemory:
	case BrokerRedis, BrokerAMQP:
		if t.BrokerURL == "" {
			b.fail(newError(ErrMissingVariable, "TASK_BROKER_URL", "required when TASK_BROKER="+string(t.Broker), nil))
		}
	default:
		b.fail(invalid("TASK_BROKER", fmt.Errorf("unsupported broker %q (allowed: memory, redis, amqp)", t.Broker)))
	}
	return t
}

func (b *builder) server() ServerConfig {
	return ServerConfig{
		ListenAddr:      b.str("LISTEN_ADDR"),
		MetricsAddr:     b.str("METRICS_ADDR"),
		ReadTimeout:     b.duration("SERVER_READ_TIMEOUT"),
		WriteTimeout:    b.duration("SERVER_WRITE_TIMEOUT"),
		IdleTimeout:     b.duration("SERVER_IDLE_TIMEOUT"),
		ShutdownTimeout: b.duration("SERVER_SHUTDOWN_TIMEOUT"),
		RateLimitRPM:    b.integer("RATE_LIMIT_RPM"),
	}
}

func (b *builder) telemetry() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      b.boolean("OTEL_ENABLED"),
		Exporter:     b.str("OTEL_EXPORTER"),
		Endpoint:     b.str("OTEL_ENDPOINT"),
		SamplingRate: b.read("OTEL_SAMPLING_RATE").Float(),
	}
}

// validate applies range and format checks that need more than one value.
func (b *builder) validate(cfg Config) {
	v := validate.New()

	v.NotEmpty("SECRET_KEY", cfg.Security.SecretKey)
	v.NotEmpty("DB_NAME", cfg.Database.Name)
	v.OneOf("SITE_SCHEME", cfg.Site.Scheme, []string{"http", "https"})
	v.Positive("SITE_ID", cfg.Site.ID)
	if cfg.Database.Engine == EngineMySQL {
		v.Port("DB_PORT", cfg.Database.Port)
	}
	if cfg.Environment.Deployed() {
		v.AbsolutePath("MEDIA_ROOT", cfg.Storage.MediaRoot)
		v.AbsolutePath("STATIC_ROOT", cfg.Storage.StaticRoot)
	}
	if cfg.ErrorReporting.Enabled {
		v.URL("SENTRY_DSN", cfg.ErrorReporting.DSN, []string{"http", "https"})
	}
	if cfg.Email.Enabled {
		v.NotEmpty("EMAIL_HOST", cfg.Email.Host)
		v.Port("EMAIL_PORT", cfg.Email.Port)
		v.Email("DEFAULT_FROM_EMAIL", cfg.Email.DefaultFrom)
		v.Email("SERVER_EMAIL", cfg.Email.ServerEmail)
	}
	for i, p := range cfg.People.Admins {
		v.Email(fmt.Sprintf("ADMINS[%d]", i), p.Email)
	}
	for i, p := range cfg.People.Managers {
		v.Email(fmt.Sprintf("MANAGERS[%d]", i), p.Email)
	}
	switch cfg.Tasks.Broker {
	case BrokerRedis:
		v.URL("TASK_BROKER_URL", cfg.Tasks.BrokerURL, []string{"redis", "rediss"})
	case BrokerAMQP:
		v.URL("TASK_BROKER_URL", cfg.Tasks.BrokerURL, []string{"amqp", "amqps"})
	}
	v.NotEmpty("TASK_QUEUE", cfg.Tasks.Queue)
	v.Range("TASK_WORKERS", cfg.Tasks.Workers, 1, 256)
	v.NotEmpty("LISTEN_ADDR", cfg.Server.ListenAddr)
	v.NonNegative("RATE_LIMIT_RPM", cfg.Server.RateLimitRPM)
	v.OneOf("OTEL_EXPORTER", cfg.Telemetry.Exporter, []string{"grpc", "http"})
	v.FloatRange("OTEL_SAMPLING_RATE", cfg.Telemetry.SamplingRate, 0, 1)

	if err := v.Err(); err != nil {
		var ve validate.ValidationError
		key := ""
		if errors.As(err, &ve) {
			key = ve.Field()
		}
		b.fail(invalid(key, err))
	}
}

// components returns the installed component list and middleware chain.
// Development with debug adds the toolbar and puts its middleware first.
func components(env Environment, debug bool) ([]string, []string) {
	installed := []string{
		"admin",
		"sites",
		"sitemaps",
		"staticfiles",
		"templates",
		"tasks",
		"tasks.beat",
		"health",
	}
	middleware := []string{
		MiddlewareRecoverer,
		MiddlewareRequestID,
		MiddlewareLogging,
		MiddlewareMetrics,
		MiddlewareTracing,
		MiddlewareSecurity,
		MiddlewareAllowedHosts,
		MiddlewareLocale,
		MiddlewareCSRF,
		MiddlewareCurrentSite,
		MiddlewareRateLimit,
	}
	if env == Development && debug {
		installed = append(installed, "debug_toolbar")
		middleware = append([]string{MiddlewareDebugToolbar}, middleware...)
	}
	return installed, middleware
}

// Middleware names, outermost first.
const (
	MiddlewareDebugToolbar = "debug_toolbar"
	MiddlewareRecoverer    = "recoverer"
	MiddlewareRequestID    = "request_id"
	MiddlewareLogging      = "logging"
	MiddlewareMetrics      = "metrics"
	MiddlewareTracing      = "tracing"
	MiddlewareSecurity     = "security"
	MiddlewareAllowedHosts = "allowed_hosts"
	MiddlewareLocale       = "locale"
	MiddlewareCSRF         = "csrf"
	MiddlewareCurrentSite  = "current_site"
	MiddlewareRateLimit    = "rate_limit"
)
