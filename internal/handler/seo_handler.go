package handler

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go-blog-app/internal/cache"
	"go-blog-app/internal/logger"
	"go-blog-app/internal/service"
)

// SeoHandler holds dependencies for SEO-related handlers.
type SeoHandler struct {
	posts   service.PostServicer
	cache   cache.Store
	ttl     time.Duration
	baseURL string
	log     logger.Logger
}

// NewSeoHandler creates a new SeoHandler. Absolute URLs are built from baseURL.
func NewSeoHandler(ps service.PostServicer, c cache.Store, ttl time.Duration, baseURL string, log logger.Logger) *SeoHandler {
	return &SeoHandler{
		posts:   ps,
		cache:   c,
		ttl:     ttl,
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     log,
	}
}

// robotsHandler serves robots.txt pointing crawlers at the sitemap.
func (h *SeoHandler) robotsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "User-agent: *")
	fmt.Fprintln(w, "Allow: /")
	fmt.Fprintln(w, "Disallow: /post/new/")
	fmt.Fprintln(w, "Disallow: /auth/")
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "Sitemap: %s/sitemap.xml\n", h.baseURL)
}

const sitemapDateFormat = "2006-01-02"

type sitemapURL struct {
	XMLName    xml.Name `xml:"url"`
	Loc        string   `xml:"loc"`
	LastMod    string   `xml:"lastmod,omitempty"`
	ChangeFreq string   `xml:"changefreq"`
	Priority   string   `xml:"priority"`
}

type urlSet struct {
	XMLName xml.Name     `xml:"urlset"`
	Xmlns   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

// sitemapHandler serves sitemap.xml listing published posts, categories
// and tags. The document is cached until the next write.
func (h *SeoHandler) sitemapHandler(w http.ResponseWriter, r *http.Request) {
	body, err := h.sitemap(r)
	if err != nil {
		h.log.Error(err, "Failed to build sitemap")
		http.Error(w, "Failed to generate sitemap XML", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.Write(body)
}

func (h *SeoHandler) sitemap(r *http.Request) ([]byte, error) {
	ctx := r.Context()
	if h.cache != nil {
		cached, err := h.cache.Get(ctx, cache.KeySitemap)
		if err != nil {
			h.log.Error(err, "Failed to read cached sitemap")
		} else if cached != nil {
			return cached, nil
		}
	}

	entries, err := h.posts.SitemapEntries(ctx)
	if err != nil {
		return nil, err
	}

	set := urlSet{Xmlns: "http://www.sitemaps.org/schemas/sitemap/0.9"}
	for _, p := range entries.Posts {
		set.URLs = append(set.URLs, sitemapURL{
			Loc:        h.baseURL + postURL(p),
			LastMod:    p.UpdatedAt.Format(sitemapDateFormat),
			ChangeFreq: "weekly",
			Priority:   "0.9",
		})
	}
	for _, c := range entries.Categories {
		set.URLs = append(set.URLs, sitemapURL{
			Loc:        h.baseURL + "/category/" + c.Slug + "/",
			ChangeFreq: "weekly",
			Priority:   "0.6",
		})
	}
	for _, t := range entries.Tags {
		set.URLs = append(set.URLs, sitemapURL{
			Loc:        h.baseURL + "/tag/" + t.Slug + "/",
			ChangeFreq: "monthly",
			Priority:   "0.4",
		})
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	encoder := xml.NewEncoder(&buf)
	encoder.Indent("", "  ")
	if err := encoder.Encode(set); err != nil {
		return nil, err
	}

	if h.cache != nil {
		if err := h.cache.Set(ctx, cache.KeySitemap, buf.Bytes(), h.ttl); err != nil {
			h.log.Error(err, "Failed to cache sitemap")
		}
	}
	return buf.Bytes(), nil
}
