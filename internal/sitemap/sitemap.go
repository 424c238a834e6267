// SPDX-License-Identifier: MIT

// Package sitemap renders /sitemap.xml for the current site and caches it.
package sitemap

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"time"

	"github.com/ManuGH/sitekit/internal/cache"
	"github.com/ManuGH/sitekit/internal/config"
	"github.com/ManuGH/sitekit/internal/metrics"
	"github.com/ManuGH/sitekit/internal/storage"
	"github.com/ManuGH/sitekit/internal/telemetry"
	"go.opentelemetry.io/otel/trace"
)

const (
	// CacheKey holds the rendered document.
	CacheKey = "sitemap:xml"
	// CacheTTL bounds staleness when the beat is not running.
	CacheTTL = 24 * time.Hour

	xmlns = "http://www.sitemaps.org/schemas/sitemap/0.9"
)

// SiteSource resolves the site the sitemap describes.
type SiteSource interface {
	Current(ctx context.Context, id int) (storage.Site, error)
}

// Page is one static page listed in the sitemap.
type Page struct {
	Path       string
	ChangeFreq string
	Priority   float64
}

// DefaultPages lists the pages served by the site.
var DefaultPages = []Page{{Path: "/", ChangeFreq: "daily", Priority: 1.0}}

type urlset struct {
	XMLName xml.Name `xml:"urlset"`
	Xmlns   string   `xml:"xmlns,attr"`
	URLs    []entry  `xml:"url"`
}

type entry struct {
	Loc        string `xml:"loc"`
	ChangeFreq string `xml:"changefreq,omitempty"`
	Priority   string `xml:"priority,omitempty"`
}

// Builder renders and caches the sitemap.
type Builder struct {
	cache   cache.Cache
	backend string
	sites   SiteSource
	site    config.SiteConfig
	pages   []Page
	tracer  trace.Tracer
}

// New creates a Builder. backend labels cache metrics.
func New(c cache.Cache, backend config.CacheBackend, sites SiteSource, site config.SiteConfig) *Builder {
	return &Builder{
		cache:   c,
		backend: string(backend),
		sites:   sites,
		site:    site,
		pages:   DefaultPages,
		tracer:  telemetry.Tracer("sitekit/sitemap"),
	}
}

// XML returns the cached document, building it on a miss.
func (b *Builder) XML(ctx context.Context) ([]byte, error) {
	_, span := b.tracer.Start(ctx, "sitemap.lookup")
	doc, hit := b.cache.Get(CacheKey)
	span.SetAttributes(telemetry.CacheAttributes(b.backend, CacheKey, hit)...)
	span.End()
	metrics.RecordCacheLookup(b.backend, hit)
	if hit {
		return doc, nil
	}
	return b.Refresh(ctx)
}

// Refresh rebuilds the document and replaces the cached copy.
func (b *Builder) Refresh(ctx context.Context) ([]byte, error) {
	doc, err := b.Build(ctx)
	if err != nil {
		return nil, err
	}
	b.cache.Set(CacheKey, doc, CacheTTL)
	return doc, nil
}

// Invalidate drops the cached document.
func (b *Builder) Invalidate() {
	b.cache.Delete(CacheKey)
}

// Build renders the document without touching the cache.
func (b *Builder) Build(ctx context.Context) ([]byte, error) {
	site, err := b.sites.Current(ctx, b.site.ID)
	if err != nil {
		return nil, fmt.Errorf("sitemap: %w", err)
	}
	scheme := b.site.Scheme
	if scheme == "" {
		scheme = "https"
	}

	set := urlset{Xmlns: xmlns}
	for _, p := range b.pages {
		loc := url.URL{Scheme: scheme, Host: site.Domain, Path: p.Path}
		set.URLs = append(set.URLs, entry{
			Loc:        loc.String(),
			ChangeFreq: p.ChangeFreq,
			Priority:   fmt.Sprintf("%.1f", p.Priority),
		})
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(set); err != nil {
		return nil, fmt.Errorf("sitemap: encode: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
