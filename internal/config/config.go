// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config resolves the site configuration from environment variables.
//
// Resolution runs once at process start. The result is an immutable Config
// value handed to every collaborator; nothing reads the environment later.
package config

import (
	"time"

	"github.com/ManuGH/sitekit/internal/validate"
)

// Config is the resolved configuration. Treat it as read-only; use Clone
// to derive variants.
type Config struct {
	Environment Environment
	Debug       bool
	RootDir     string

	AllowedHosts        []string
	InternalIPs         []string
	InstalledComponents []string
	Middleware          []string

	Database       DatabaseConfig
	Cache          CacheConfig
	Security       SecurityConfig
	Templates      TemplateConfig
	Storage        StorageConfig
	Logging        LoggingConfig
	ErrorReporting ErrorReportingConfig
	Email          EmailConfig
	Site           SiteConfig
	Locale         LocaleConfig
	People         PeopleConfig
	Tasks          TaskConfig
	Server         ServerConfig
	Telemetry      TelemetryConfig
}

// DevelopmentDebug reports whether diagnostic routes and the toolbar are on.
func (c Config) DevelopmentDebug() bool {
	return c.Environment == Development && c.Debug
}

type DatabaseEngine string

const (
	EngineMySQL  DatabaseEngine = "mysql"
	EngineSQLite DatabaseEngine = "sqlite"
)

type DatabaseConfig struct {
	Engine   DatabaseEngine
	Name     string
	User     string
	Password string
	Host     string
	Port     int
}

type CacheBackend string

const (
	CacheMemory CacheBackend = "memory"
	CacheRedis  CacheBackend = "redis"
	CacheFile   CacheBackend = "file"
	CacheDummy  CacheBackend = "dummy"
)

type CacheConfig struct {
	Backend  CacheBackend
	Location string
}

// PasswordPolicy mirrors the checks applied to admin passwords.
type PasswordPolicy struct {
	MinLength     int
	RejectNumeric bool
	RejectCommon  bool
	RejectSimilar bool
}

type SecurityConfig struct {
	SecretKey             string
	SSLRedirect           bool
	ContentTypeNosniff    bool
	SessionCookieSecure   bool
	SessionCookieHTTPOnly bool
	CSRFCookieSecure      bool
	XFrameOptions         string
	TrustProxyHeaders     bool
	PasswordPolicy        PasswordPolicy
	AdminUsername         string
	AdminPassword         string
}

// AdminEnabled is true when admin credentials are configured.
func (s SecurityConfig) AdminEnabled() bool {
	return s.AdminUsername != "" && s.AdminPassword != ""
}

// TemplateStrategy selects how templates are loaded.
type TemplateStrategy string

const (
	// TemplateCached parses every template once and strips inter-tag whitespace.
	TemplateCached TemplateStrategy = "cached"
	// TemplateHotReload reparses templates after they change on disk.
	TemplateHotReload TemplateStrategy = "hot-reload"
)

type TemplateConfig struct {
	Strategy TemplateStrategy
	Dirs     []string
	AppDirs  bool // also search the embedded defaults
}

type StorageConfig struct {
	MediaRoot       string
	MediaURL        string
	StaticRoot      string
	StaticURL       string
	StaticDirs      []string
	ManifestStorage bool
}

type LogFormat string

const (
	LogFormatJSON     LogFormat = "json"
	LogFormatConsole  LogFormat = "console"
	LogFormatKeyValue LogFormat = "key_value"
)

type LoggingConfig struct {
	Level  validate.LogLevel
	Format LogFormat
	File   string // rotating file in development, empty otherwise
}

type ErrorReportingConfig struct {
	Enabled      bool
	DSN          string
	Integrations []string
}

type MailBackend string

const (
	MailSMTP    MailBackend = "smtp"
	MailConsole MailBackend = "console"
)

type EmailConfig struct {
	Enabled      bool
	Backend      MailBackend
	DefaultFrom  string
	Host         string
	Port         int
	HostUser     string
	HostPassword string
	UseSSL       bool
	ServerEmail  string
}

type SiteConfig struct {
	Scheme    string
	ID        int
	AdminPath string
}

type LocaleConfig struct {
	LanguageCode string
	TimeZone     string
	UseI18N      bool
	UseTZ        bool
	LocalePaths  []string
}

type PeopleConfig struct {
	Admins   []Person
	Managers []Person
}

type TaskBroker string

const (
	BrokerMemory TaskBroker = "memory"
	BrokerRedis  TaskBroker = "redis"
	BrokerAMQP   TaskBroker = "amqp"
)

type TaskConfig struct {
	Broker       TaskBroker
	BrokerURL    string
	Queue        string
	Workers      int
	BeatInterval time.Duration
}

type ServerConfig struct {
	ListenAddr      string
	MetricsAddr     string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	RateLimitRPM    int
}

type TelemetryConfig struct {
	Enabled      bool
	Exporter     string
	Endpoint     string
	SamplingRate float64
}

// Clone returns a deep copy.
func (c Config) Clone() Config {
	out := c
	out.AllowedHosts = cloneStrings(c.AllowedHosts)
	out.InternalIPs = cloneStrings(c.InternalIPs)
	out.InstalledComponents = cloneStrings(c.InstalledComponents)
	out.Middleware = cloneStrings(c.Middleware)
	out.Templates.Dirs = cloneStrings(c.Templates.Dirs)
	out.Storage.StaticDirs = cloneStrings(c.Storage.StaticDirs)
	out.ErrorReporting.Integrations = cloneStrings(c.ErrorReporting.Integrations)
	out.Locale.LocalePaths = cloneStrings(c.Locale.LocalePaths)
	out.People.Admins = append([]Person(nil), c.People.Admins...)
	out.People.Managers = append([]Person(nil), c.People.Managers...)
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}
