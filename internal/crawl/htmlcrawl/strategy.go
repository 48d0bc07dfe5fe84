package htmlcrawl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/paperharbor/acquisition-service/internal/browser"
	"github.com/paperharbor/acquisition-service/internal/crawl"
	"github.com/paperharbor/acquisition-service/internal/domain"
	"github.com/paperharbor/acquisition-service/internal/observability"
)

const (
	// defaultMaxEmptyPages ends the run after this many consecutive pages
	// that are empty or fail past the retry budget.
	defaultMaxEmptyPages = 3

	// defaultMaxReconnects bounds session reinitializations per run.
	defaultMaxReconnects = 2

	// selectorWaitTimeout bounds the wait for result containers to render.
	selectorWaitTimeout = 10 * time.Second
)

// errSessionLost marks reconnect exhaustion. Unlike an ordinary page failure
// it ends the source; without a session there is nothing left to crawl with.
var errSessionLost = errors.New("browser session lost")

// Options carries the engine knobs shared by all site strategies.
type Options struct {
	MaxEmptyPages int
	MaxReconnects int
}

func (o *Options) applyDefaults() {
	if o.MaxEmptyPages <= 0 {
		o.MaxEmptyPages = defaultMaxEmptyPages
	}
	if o.MaxReconnects <= 0 {
		o.MaxReconnects = defaultMaxReconnects
	}
}

// Strategy is the browser-automated source engine, instantiated once per
// site profile.
type Strategy struct {
	profile Profile
	opts    Options
	session browser.Session
	tracker *crawl.Tracker
	limiter *crawl.Limiter
	metrics *observability.Metrics
	logger  zerolog.Logger
}

// Compile-time check that Strategy satisfies the source contract.
var _ crawl.Source = (*Strategy)(nil)

// New creates a strategy for the given site profile over the given session.
func New(profile Profile, session browser.Session, opts Options, metrics *observability.Metrics, logger zerolog.Logger) *Strategy {
	opts.applyDefaults()
	return &Strategy{
		profile: profile,
		opts:    opts,
		session: session,
		tracker: crawl.NewTracker(profile.Name),
		limiter: crawl.NewLimiter(profile.RatePerMinute, crawl.DefaultJitter),
		metrics: metrics,
		logger:  logger.With().Str("source", profile.Name).Logger(),
	}
}

func (s *Strategy) Name() string    { return s.profile.Name }
func (s *Strategy) Confidence() int { return s.profile.Confidence }

// Status returns a copy of the strategy's progress.
func (s *Strategy) Status() crawl.Status { return s.tracker.Snapshot() }

// Initialize launches the browser session and opens the crawl page.
func (s *Strategy) Initialize(ctx context.Context) error {
	if err := s.session.Initialize(ctx); err != nil {
		return err
	}
	return s.session.Setup(ctx, browser.PageOptions{
		Headers:           s.profile.Headers,
		AllowedAssetHosts: s.profile.AllowedAssetHosts,
	})
}

// Cleanup releases the browser session.
func (s *Strategy) Cleanup() { s.session.Cleanup() }

// Crawl walks result pages until the run is done, the page cap is hit, the
// next-page link disappears, or too many consecutive pages come up empty or
// dead. A single page that still fails after retries is skipped, not fatal;
// only a lost session or a cancelled context ends the source early.
func (s *Strategy) Crawl(ctx context.Context, run *crawl.Run) error {
	s.tracker.Begin(s.profile.MaxPages)
	defer s.tracker.End()

	pageURL := s.profile.SearchURL(run.Filters.Keywords, 1)
	emptyStreak := 0

	for page := 1; page <= s.profile.MaxPages; page++ {
		if run.Done() || ctx.Err() != nil {
			return ctx.Err()
		}
		s.tracker.SetPage(page)

		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}

		items, err := s.loadPage(ctx, run, pageURL)
		if err != nil {
			s.tracker.SetError(err.Error())
			if errors.Is(err, errSessionLost) || ctx.Err() != nil {
				return fmt.Errorf("page %d: %w", page, err)
			}
			s.logger.Warn().Err(err).Int("page", page).Str("url", pageURL).
				Msg("page failed past retries, skipping")
			emptyStreak++
			if emptyStreak >= s.opts.MaxEmptyPages {
				s.logger.Info().Int("page", page).Msg("too many dead pages, ending run")
				return nil
			}
			// The failed page never rendered a next-page link, so rebuild
			// the URL from the page number instead.
			pageURL = s.profile.SearchURL(run.Filters.Keywords, page+1)
			continue
		}
		s.metrics.PagesCrawled.WithLabelValues(s.profile.Name).Inc()

		if len(items) == 0 {
			emptyStreak++
			s.logger.Debug().Int("page", page).Int("streak", emptyStreak).
				Msg("empty result page")
			if emptyStreak >= s.opts.MaxEmptyPages {
				s.logger.Info().Int("page", page).Msg("too many empty pages, ending run")
				return nil
			}
		} else {
			emptyStreak = 0
		}

		// Resolve pagination before item processing; detail fetches navigate
		// away from the result page.
		nextURL, nextErr := s.session.NextPageURL(ctx, s.profile.NextPageSelector)

		saved, err := s.processItems(ctx, run, items)
		s.tracker.AddFound(saved)
		if err != nil {
			s.tracker.SetError(err.Error())
			return err
		}

		if run.Done() {
			return nil
		}
		if nextErr != nil {
			s.logger.Warn().Err(nextErr).Msg("pagination link unresolvable, ending run")
			return nil
		}
		if nextURL == "" {
			s.logger.Info().Int("page", page).Msg("no next page, ending run")
			return nil
		}
		pageURL = nextURL
	}
	return nil
}

// loadPage navigates to a result page and extracts its raw items, retrying
// through the run's policy and reinitializing the session when it dies.
func (s *Strategy) loadPage(ctx context.Context, run *crawl.Run, pageURL string) ([]browser.RawItem, error) {
	var items []browser.RawItem
	start := time.Now()
	defer func() {
		s.metrics.PageDuration.WithLabelValues(s.profile.Name).Observe(time.Since(start).Seconds())
	}()

	err := run.Retry.Do(ctx, func() error {
		if err := s.ensureSession(ctx); err != nil {
			return err
		}
		extracted, err := s.extractPage(ctx, pageURL)
		if err != nil {
			return err
		}
		items = extracted
		return nil
	}, func(attempt int, err error) {
		s.metrics.PageRetries.WithLabelValues(s.profile.Name).Inc()
		s.logger.Warn().Err(err).Int("attempt", attempt).Str("url", pageURL).
			Msg("page attempt failed, retrying")
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Strategy) extractPage(ctx context.Context, pageURL string) ([]browser.RawItem, error) {
	if err := s.session.Navigate(ctx, pageURL); err != nil {
		return nil, err
	}
	if err := s.session.WaitForSelector(ctx, s.profile.Selectors.Container, selectorWaitTimeout); err != nil {
		// Containers never rendering means an empty result page, not a
		// failed one.
		if errors.Is(err, domain.ErrTimeout) {
			return nil, nil
		}
		return nil, err
	}
	return s.session.Extract(ctx, s.profile.Selectors)
}

// ensureSession reinitializes a dead session, bounded per call.
func (s *Strategy) ensureSession(ctx context.Context) error {
	if s.session.Alive() {
		return nil
	}

	var err error
	for attempt := 1; attempt <= s.opts.MaxReconnects; attempt++ {
		s.logger.Warn().Int("attempt", attempt).Msg("session lost, reinitializing")
		s.session.Cleanup()
		s.metrics.BrowserRestarts.Inc()
		if err = s.Initialize(ctx); err == nil {
			return nil
		}
	}
	return fmt.Errorf("%w: reinitialize failed: %v", errSessionLost, err)
}

// processItems normalizes and offers every extracted item, backfilling
// abstracts from detail pages within the per-page budget. It returns the
// number of papers persisted from this page.
func (s *Strategy) processItems(ctx context.Context, run *crawl.Run, items []browser.RawItem) (int, error) {
	saved := 0
	detailBudget := s.profile.DetailFetchLimit

	for _, item := range items {
		if run.Done() || ctx.Err() != nil {
			break
		}

		paper := s.normalize(item)
		if paper == nil {
			s.metrics.PapersDiscarded.WithLabelValues(s.profile.Name).Inc()
			continue
		}

		if paper.Abstract == domain.AbstractPending && detailBudget > 0 && item.Link != "" {
			detailBudget--
			s.fetchDetail(ctx, item.Link, paper)
		}

		ok, err := run.Offer(ctx, s.profile.Name, paper)
		if err != nil {
			return saved, err
		}
		if ok {
			saved++
		}
	}
	return saved, nil
}

// fetchDetail navigates to an item's page to recover the abstract and, when
// the listing had none, the identifier. Failures leave the placeholder in
// place; the item is still offered.
func (s *Strategy) fetchDetail(ctx context.Context, link string, paper *domain.Paper) {
	s.metrics.DetailFetches.WithLabelValues(s.profile.Name).Inc()

	if err := s.session.Navigate(ctx, link); err != nil {
		s.logger.Debug().Err(err).Str("url", link).Msg("detail fetch failed")
		return
	}
	if s.profile.DetailAbstract != "" {
		// Abstracts render client-side on some sites; wait for the
		// container, but a timeout just means this page has none.
		if err := s.session.WaitForSelector(ctx, s.profile.DetailAbstract, selectorWaitTimeout); err != nil && !errors.Is(err, domain.ErrTimeout) {
			s.logger.Debug().Err(err).Str("url", link).Msg("detail wait failed")
			return
		}
		if text, err := s.session.EvaluateSelector(ctx, s.profile.DetailAbstract, "text"); err == nil && text != "" {
			paper.Abstract = text
		}
	}
	if s.profile.DetailIdentifier != "" {
		if text, err := s.session.EvaluateSelector(ctx, s.profile.DetailIdentifier, "text"); err == nil && text != "" {
			paper.NaturalKey = s.naturalKey(text, paper.URL, paper.Title)
		}
	}
}
