package fetcher

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/newspulse/aggregator/internal/apperr"
	"github.com/newspulse/aggregator/internal/domain"
	"github.com/newspulse/aggregator/pkg/stringsutil"
)

// rssDocument is the RSS 2.0 shape: rss > channel > item.
type rssDocument struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title          string       `xml:"title"`
	Link           string       `xml:"link"`
	GUID           string       `xml:"guid"`
	Description    string       `xml:"description"`
	ContentEncoded string       `xml:"encoded"` // content:encoded
	PubDate        string       `xml:"pubDate"`
	Author         string       `xml:"author"`
	Creator        string       `xml:"creator"` // dc:creator
	Enclosure      mediaElement `xml:"enclosure"`
	MediaContent   mediaElement `xml:"content"` // media:content
	MediaThumbnail mediaElement `xml:"thumbnail"`
}

type mediaElement struct {
	URL  string `xml:"url,attr"`
	Type string `xml:"type,attr"`
}

// atomDocument is the Atom shape: feed > entry.
type atomDocument struct {
	XMLName xml.Name    `xml:"feed"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title     string     `xml:"title"`
	ID        string     `xml:"id"`
	Links     []atomLink `xml:"link"`
	Summary   string     `xml:"summary"`
	Content   string     `xml:"content"`
	Published string     `xml:"published"`
	Updated   string     `xml:"updated"`
	Author    struct {
		Name string `xml:"name"`
	} `xml:"author"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

// feedItem is the normalized item shape both feed dialects map into before
// becoming RawArticles.
type feedItem struct {
	Title     string
	Link      string
	GUID      string
	Content   string
	Published string
	Author    string
	ImageURL  string
}

func (f *SourceFetcher) fetchFeed(ctx context.Context, source domain.NewsSource) ([]domain.RawArticle, error) {
	body, err := f.get(ctx, source, source.FetchURL())
	if err != nil {
		return nil, err
	}

	items, err := parseFeed(body)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", source.Name, err)
	}

	articles := make([]domain.RawArticle, 0, len(items))
	for _, item := range items {
		article, ok := mapFeedItem(source, item)
		if !ok {
			slog.Debug("skipping feed item without title or identifier", "source", source.Name)
			continue
		}
		articles = append(articles, article)
	}

	return f.filterBatch(source, articles), nil
}

// parseFeed detects the feed dialect by root element and normalizes items
// into a single list.
func parseFeed(data []byte) ([]feedItem, error) {
	root, err := rootElement(data)
	if err != nil {
		return nil, apperr.NewParse("xml", err)
	}

	switch root {
	case "rss":
		var doc rssDocument
		if err := xml.Unmarshal(data, &doc); err != nil {
			return nil, apperr.NewParse("xml", err)
		}
		items := make([]feedItem, 0, len(doc.Channel.Items))
		for _, it := range doc.Channel.Items {
			items = append(items, normalizeRSSItem(it))
		}
		return items, nil

	case "feed":
		var doc atomDocument
		if err := xml.Unmarshal(data, &doc); err != nil {
			return nil, apperr.NewParse("xml", err)
		}
		items := make([]feedItem, 0, len(doc.Entries))
		for _, entry := range doc.Entries {
			items = append(items, normalizeAtomEntry(entry))
		}
		return items, nil

	default:
		return nil, apperr.NewParse("xml", fmt.Errorf("unsupported feed root element <%s>", root))
	}
}

// rootElement returns the local name of the document's root element.
func rootElement(data []byte) (string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := decoder.Token()
		if err != nil {
			if err == io.EOF {
				return "", fmt.Errorf("no root element found")
			}
			return "", err
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start.Name.Local, nil
		}
	}
}

func normalizeRSSItem(it rssItem) feedItem {
	content := it.ContentEncoded
	if content == "" {
		content = it.Description
	}

	author := it.Author
	if author == "" {
		author = it.Creator
	}

	return feedItem{
		Title:     strings.TrimSpace(it.Title),
		Link:      strings.TrimSpace(it.Link),
		GUID:      strings.TrimSpace(it.GUID),
		Content:   content,
		Published: strings.TrimSpace(it.PubDate),
		Author:    strings.TrimSpace(author),
		ImageURL:  firstImageCandidate(it),
	}
}

func normalizeAtomEntry(entry atomEntry) feedItem {
	content := entry.Content
	if content == "" {
		content = entry.Summary
	}

	published := entry.Published
	if published == "" {
		published = entry.Updated
	}

	var link, image string
	for _, l := range entry.Links {
		switch {
		case l.Rel == "enclosure" && strings.HasPrefix(l.Type, "image/") && image == "":
			image = l.Href
		case (l.Rel == "" || l.Rel == "alternate") && link == "":
			link = l.Href
		}
	}

	return feedItem{
		Title:     strings.TrimSpace(entry.Title),
		Link:      strings.TrimSpace(link),
		GUID:      strings.TrimSpace(entry.ID),
		Content:   content,
		Published: strings.TrimSpace(published),
		Author:    strings.TrimSpace(entry.Author.Name),
		ImageURL:  image,
	}
}

// firstImageCandidate probes the usual RSS image locations in order.
func firstImageCandidate(it rssItem) string {
	if it.Enclosure.URL != "" && (it.Enclosure.Type == "" || strings.HasPrefix(it.Enclosure.Type, "image/")) {
		return it.Enclosure.URL
	}
	if it.MediaContent.URL != "" {
		return it.MediaContent.URL
	}
	if it.MediaThumbnail.URL != "" {
		return it.MediaThumbnail.URL
	}
	return ""
}

// mapFeedItem turns a normalized feed item into a RawArticle. Items missing
// both a title and a stable identifier are dropped.
func mapFeedItem(source domain.NewsSource, item feedItem) (domain.RawArticle, bool) {
	if item.Title == "" && item.Link == "" && item.GUID == "" {
		return domain.RawArticle{}, false
	}

	link := item.Link
	if link == "" && strings.HasPrefix(item.GUID, "http") {
		link = item.GUID
	}

	content := stringsutil.StripMarkup(item.Content)

	article := domain.RawArticle{
		Title:       stringsutil.StripMarkup(item.Title),
		Content:     content,
		Summary:     stringsutil.Summarize(content, summaryMaxLen),
		URL:         link,
		PublishedAt: parseTime(item.Published),
		Author:      item.Author,
		ImageURL:    item.ImageURL,
		SourceID:    source.ID,
		SourceName:  source.Name,
		FetchedAt:   time.Now().UTC(),
	}
	if item.GUID != "" || len(source.Categories) > 0 {
		article.Metadata = map[string]any{}
		if item.GUID != "" {
			article.Metadata["guid"] = item.GUID
		}
		if len(source.Categories) > 0 {
			article.Metadata["categories"] = source.Categories
		}
	}

	return article, true
}
