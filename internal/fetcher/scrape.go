package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/newspulse/aggregator/internal/apperr"
	"github.com/newspulse/aggregator/internal/domain"
	"github.com/newspulse/aggregator/pkg/stringsutil"
)

// fetchScrape extracts articles from an HTML page using the source's
// configured CSS selectors. Relative links are resolved against the page URL.
func (f *SourceFetcher) fetchScrape(ctx context.Context, source domain.NewsSource) ([]domain.RawArticle, error) {
	sel := source.Selectors
	if sel == nil || sel.Item == "" {
		return nil, fmt.Errorf("scraper source %s has no selectors configured", source.Name)
	}

	body, err := f.get(ctx, source, source.FetchURL())
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, apperr.NewParse("html", err)
	}

	base, err := url.Parse(source.FetchURL())
	if err != nil {
		return nil, apperr.NewFetch(source.Name, fmt.Errorf("invalid source url: %w", err))
	}

	now := time.Now().UTC()
	var articles []domain.RawArticle

	doc.Find(sel.Item).Each(func(i int, s *goquery.Selection) {
		title := stringsutil.CollapseWhitespace(s.Find(sel.Title).First().Text())
		link := resolveLink(base, linkHref(s, sel.Link))
		if title == "" && link == "" {
			slog.Debug("skipping scraped item without title or link", "source", source.Name, "index", i)
			return
		}

		var content string
		if sel.Summary != "" {
			content = stringsutil.CollapseWhitespace(s.Find(sel.Summary).First().Text())
		}

		var image string
		if sel.Image != "" {
			image = resolveLink(base, s.Find(sel.Image).First().AttrOr("src", ""))
		}

		articles = append(articles, domain.RawArticle{
			Title:       title,
			Content:     content,
			Summary:     stringsutil.Summarize(content, summaryMaxLen),
			URL:         link,
			PublishedAt: now,
			ImageURL:    image,
			SourceID:    source.ID,
			SourceName:  source.Name,
			FetchedAt:   now,
		})
	})

	return f.filterBatch(source, articles), nil
}

// linkHref reads the href from the link selector, or from the item itself
// when the item element is the anchor.
func linkHref(s *goquery.Selection, linkSel string) string {
	if linkSel == "" {
		return s.AttrOr("href", "")
	}
	return s.Find(linkSel).First().AttrOr("href", "")
}

func resolveLink(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
