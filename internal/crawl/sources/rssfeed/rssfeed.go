// Package rssfeed provides the feed-based source strategy. It iterates the
// managed feed list, converts entries into papers, and offers them with
// permissive keyword matching since feed metadata is sparse.
package rssfeed

import (
	"context"
	"strings"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"

	"github.com/paperharbor/acquisition-service/internal/crawl"
	"github.com/paperharbor/acquisition-service/internal/domain"
	"github.com/paperharbor/acquisition-service/internal/feeds"
	"github.com/paperharbor/acquisition-service/internal/observability"
)

const (
	// SourceName is the identifier used in crawl requests.
	SourceName = "rss"

	defaultRatePerMinute = 20
)

// Config carries the strategy's knobs.
type Config struct {
	RatePerMinute int
}

// Strategy crawls the configured feed list.
type Strategy struct {
	reader  *feeds.Reader
	list    *feeds.List
	tracker *crawl.Tracker
	limiter *crawl.Limiter
	metrics *observability.Metrics
	logger  zerolog.Logger
}

var _ crawl.Source = (*Strategy)(nil)

// New creates the feed source over the shared feed list.
func New(cfg Config, reader *feeds.Reader, list *feeds.List, metrics *observability.Metrics, logger zerolog.Logger) *Strategy {
	if cfg.RatePerMinute <= 0 {
		cfg.RatePerMinute = defaultRatePerMinute
	}
	return &Strategy{
		reader:  reader,
		list:    list,
		tracker: crawl.NewTracker(SourceName),
		limiter: crawl.NewLimiter(cfg.RatePerMinute, crawl.DefaultJitter),
		metrics: metrics,
		logger:  logger.With().Str("source", SourceName).Logger(),
	}
}

func (s *Strategy) Name() string    { return SourceName }
func (s *Strategy) Confidence() int { return 70 }

// Status returns a copy of the strategy's progress.
func (s *Strategy) Status() crawl.Status { return s.tracker.Snapshot() }

// Initialize is a no-op; feed fetching needs no session.
func (s *Strategy) Initialize(context.Context) error { return nil }

// Cleanup is a no-op.
func (s *Strategy) Cleanup() {}

// Crawl walks every configured feed. One unusable feed is recorded on the
// feed's health entry and never stops the others.
func (s *Strategy) Crawl(ctx context.Context, run *crawl.Run) error {
	configured := s.list.All()
	s.tracker.Begin(len(configured))
	defer s.tracker.End()

	for i, feed := range configured {
		if run.Done() || ctx.Err() != nil {
			return ctx.Err()
		}
		s.tracker.SetPage(i + 1)

		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}

		parsed, err := s.reader.Fetch(ctx, feed.URL)
		if err != nil {
			s.metrics.FeedFetches.WithLabelValues("error").Inc()
			s.list.MarkError(feed.URL, err.Error())
			s.tracker.SetError(err.Error())
			s.logger.Warn().Err(err).Str("feed", feed.Name).Msg("feed unusable, skipping")
			continue
		}
		s.metrics.FeedFetches.WithLabelValues("ok").Inc()
		s.list.MarkOK(feed.URL)

		saved, err := s.processEntries(ctx, run, feed, parsed)
		s.tracker.AddFound(saved)
		if err != nil {
			s.tracker.SetError(err.Error())
			return err
		}
	}
	return nil
}

func (s *Strategy) processEntries(ctx context.Context, run *crawl.Run, feed feeds.Feed, parsed *gofeed.Feed) (int, error) {
	saved := 0
	for _, item := range parsed.Items {
		if run.Done() || ctx.Err() != nil {
			break
		}
		if item == nil {
			continue
		}

		paper := s.entryToPaper(feed, parsed, item)
		if paper == nil {
			s.metrics.PapersDiscarded.WithLabelValues(SourceName).Inc()
			continue
		}

		ok, err := run.OfferPermissive(ctx, SourceName, paper)
		if err != nil {
			return saved, err
		}
		if ok {
			saved++
		}
	}
	return saved, nil
}

// entryToPaper converts one feed entry. Identity is the entry GUID when
// present, else the link, hashed to a short stable token.
func (s *Strategy) entryToPaper(feed feeds.Feed, parsed *gofeed.Feed, item *gofeed.Item) *domain.Paper {
	title := feeds.Sanitize(item.Title)
	if title == "" {
		return nil
	}

	identity := strings.TrimSpace(item.GUID)
	if identity == "" {
		identity = strings.TrimSpace(item.Link)
	}
	if identity == "" {
		return nil
	}

	venue := feed.Name
	if venue == "" {
		venue = parsed.Title
	}

	paper := &domain.Paper{
		NaturalKey:  domain.HashKey("feed", identity),
		Title:       title,
		Abstract:    s.abstract(item),
		Authors:     s.authors(item),
		URL:         strings.TrimSpace(item.Link),
		Keywords:    s.keywords(item, title),
		Categories:  item.Categories,
		Venue:       venue,
		Source:      domain.SourceTypeRSS,
		PublishedAt: item.PublishedParsed,
	}
	if paper.PublishedAt == nil {
		paper.PublishedAt = item.UpdatedParsed
	}
	return paper
}

// abstract picks the cleanest summary field and sanitizes it.
func (s *Strategy) abstract(item *gofeed.Item) string {
	for _, candidate := range []string{item.Description, item.Content} {
		if text := feeds.Sanitize(candidate); text != "" {
			return text
		}
	}
	return domain.AbstractPending
}

// authors prefers the structured author list, then the Dublin Core creator,
// then a source-attributed placeholder.
func (s *Strategy) authors(item *gofeed.Item) []string {
	var names []string
	for _, person := range item.Authors {
		if person != nil && strings.TrimSpace(person.Name) != "" {
			names = append(names, strings.TrimSpace(person.Name))
		}
	}
	if len(names) == 0 && item.DublinCoreExt != nil {
		for _, creator := range item.DublinCoreExt.Creator {
			for _, part := range strings.Split(creator, ",") {
				if name := strings.TrimSpace(part); name != "" {
					names = append(names, name)
				}
			}
		}
	}
	if len(names) == 0 {
		return []string{"Unknown (rss)"}
	}
	return names
}

// keywords merges the entry's categories with the fixed vocabulary terms
// found in the title and abstract.
func (s *Strategy) keywords(item *gofeed.Item, title string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(term string) {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			return
		}
		if _, dup := seen[term]; dup {
			return
		}
		seen[term] = struct{}{}
		out = append(out, term)
	}

	for _, category := range item.Categories {
		add(category)
	}

	haystack := strings.ToLower(title + " " + item.Description)
	for _, term := range vocabulary {
		if strings.Contains(haystack, term) {
			add(term)
		}
	}
	return out
}

// vocabulary is the fixed set of domain terms tagged onto entries when they
// appear in the text. It keeps sparsely categorized feeds filterable.
var vocabulary = []string{
	"machine learning",
	"deep learning",
	"neural network",
	"artificial intelligence",
	"gene editing",
	"crispr",
	"genomics",
	"proteomics",
	"bioinformatics",
	"synthetic biology",
	"drug discovery",
	"immunology",
	"immunotherapy",
	"cancer",
	"vaccine",
	"microbiome",
	"neuroscience",
	"protein structure",
	"single cell",
	"clinical trial",
}
