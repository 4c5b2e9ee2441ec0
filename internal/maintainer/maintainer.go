// Package maintainer implements the funnel consistency maintainer, the
// out-of-band batch process that keeps the monotonic funnel invariant
// (impressions >= clicks >= purchases) true per story and day despite lossy
// client delivery.
//
// Each run, over a trailing lookback window of days:
//
//  1. Click repair: for every (story, day) cohort where attributed
//     purchases exceed recorded clicks, insert synthetic clicks, flagged
//     as such, in bounded batches. A purchase attributed to a story
//     implies the click happened even when delivery lost it.
//  2. Impression repair: likewise insert synthetic impressions wherever
//     recorded impressions fall short of the repaired click count.
//  3. Refresh: rewrite the funnel_daily aggregate view from the repaired
//     fact counts.
//  4. Housekeeping: prune idempotency reservations past their TTL.
//
// Runs are single-flight within the process: a tick that fires while the
// previous run is still working is skipped. The scheduler must not run two
// replicas of this job over the same window; with multiple server replicas
// a store-level advisory lock would be needed.
//
// Maintainer failures are logged and retried on the next scheduled run;
// they never block the request path, which only shares the store.
package maintainer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/glowcart/commerce-backend/internal/domain"
	"github.com/glowcart/commerce-backend/internal/repo"
)

var (
	// runsTotal counts maintainer runs by outcome (ok, error, skipped).
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "funnel_maintainer_runs_total",
			Help: "Total funnel maintainer runs by outcome.",
		},
		[]string{"outcome"},
	)

	// syntheticTotal counts synthetic impressions inserted by backfill.
	syntheticTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "funnel_maintainer_synthetic_impressions_total",
			Help: "Synthetic impressions inserted to repair funnel cohorts.",
		},
	)

	// syntheticClicksTotal counts synthetic clicks inserted by backfill.
	syntheticClicksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "funnel_maintainer_synthetic_clicks_total",
			Help: "Synthetic clicks inserted to repair funnel cohorts.",
		},
	)

	// refreshedTotal counts funnel_daily rows written by refresh.
	refreshedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "funnel_maintainer_rows_refreshed_total",
			Help: "funnel_daily rows written by the maintainer.",
		},
	)
)

func init() {
	prometheus.MustRegister(runsTotal, syntheticTotal, syntheticClicksTotal, refreshedTotal)
}

// ErrAlreadyRunning is returned by RunOnce when a previous run still holds
// the single-flight lock.
var ErrAlreadyRunning = errors.New("maintainer run already in progress")

// Maintainer repairs and re-aggregates the story funnel. Construct with a
// live DB handle; zero values for Lookback/BatchSize are replaced with
// conservative defaults.
type Maintainer struct {
	DB        *gorm.DB
	Lookback  time.Duration
	BatchSize int

	mu sync.Mutex
}

// cohortKey identifies a (story, day) bucket.
type cohortKey struct {
	StoryID string
	Day     string
}

// RunOnce executes one maintenance pass. It returns ErrAlreadyRunning when
// invoked concurrently with itself.
func (m *Maintainer) RunOnce(ctx context.Context) error {
	if !m.mu.TryLock() {
		runsTotal.WithLabelValues("skipped").Inc()
		return ErrAlreadyRunning
	}
	defer m.mu.Unlock()

	start := time.Now()
	err := m.run(ctx, start.UTC())
	if err != nil {
		runsTotal.WithLabelValues("error").Inc()
		log.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("funnel maintainer run failed")
		return err
	}
	runsTotal.WithLabelValues("ok").Inc()
	log.Info().Dur("elapsed", time.Since(start)).Msg("funnel maintainer run complete")
	return nil
}

// Run invokes RunOnce on every tick of interval until ctx is cancelled.
// Errors are logged by RunOnce and retried on the next tick.
func (m *Maintainer) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			_ = m.RunOnce(ctx)
		}
	}
}

func (m *Maintainer) run(ctx context.Context, now time.Time) error {
	lookback := m.Lookback
	if lookback <= 0 {
		lookback = 30 * 24 * time.Hour
	}
	batch := m.BatchSize
	if batch < 1 {
		batch = 500
	}
	since := now.Add(-lookback)

	imps, err := repo.DailyImpressionCounts(ctx, m.DB, since, now)
	if err != nil {
		return err
	}
	clicks, err := repo.DailyClickCounts(ctx, m.DB, since, now)
	if err != nil {
		return err
	}
	purchases, err := repo.DailyPurchaseCounts(ctx, m.DB, since, now)
	if err != nil {
		return err
	}

	impByKey := indexCounts(imps)
	clickByKey := indexCounts(clicks)
	purchaseByKey := indexCounts(purchases)

	// Backfill synthetic clicks up to the attributed-purchase count for
	// each cohort. A purchase attributed to a story implies the click
	// happened even when delivery lost it. Synthetic clicks carry no user
	// or product, so the attribution lookup never matches them.
	clickFill := make([]domain.StoryClick, 0)
	for key, want := range purchaseByKey {
		have := clickByKey[key]
		if have >= want {
			continue
		}
		clickedAt, err := middayUTC(key.Day)
		if err != nil {
			log.Warn().Str("day", key.Day).Msg("skipping cohort with unparseable day")
			continue
		}
		for i := have; i < want; i++ {
			clickFill = append(clickFill, domain.StoryClick{
				ID:        uuid.NewString(),
				StoryID:   key.StoryID,
				ClickedAt: clickedAt,
				Synthetic: true,
				CreatedAt: now,
			})
		}
		clickByKey[key] = want
	}
	if err := repo.CreateClicksBatch(ctx, m.DB, clickFill, batch); err != nil {
		return err
	}
	if n := len(clickFill); n > 0 {
		syntheticClicksTotal.Add(float64(n))
		log.Info().Int("synthetic_clicks", n).Msg("funnel click backfill inserted")
	}

	// Then backfill synthetic impressions up to the larger of the repaired
	// click and attributed-purchase counts, so the full chain
	// impressions >= clicks >= purchases holds for every cohort.
	backfill := make([]domain.Impression, 0)
	for key, want := range targets(clickByKey, purchaseByKey) {
		have := impByKey[key]
		if have >= want {
			continue
		}
		viewedAt, err := middayUTC(key.Day)
		if err != nil {
			log.Warn().Str("day", key.Day).Msg("skipping cohort with unparseable day")
			continue
		}
		for i := have; i < want; i++ {
			backfill = append(backfill, domain.Impression{
				ID:        uuid.NewString(),
				StoryID:   key.StoryID,
				ViewedAt:  viewedAt,
				Synthetic: true,
				CreatedAt: now,
			})
		}
		impByKey[key] = want
	}
	if err := repo.CreateImpressionsBatch(ctx, m.DB, backfill, batch); err != nil {
		return err
	}
	if n := len(backfill); n > 0 {
		syntheticTotal.Add(float64(n))
		log.Info().Int("synthetic_impressions", n).Msg("funnel backfill inserted")
	}

	// Refresh the aggregate view from the repaired counts.
	refreshed := 0
	for key := range union(impByKey, clickByKey, purchaseByKey) {
		row := &domain.FunnelDaily{
			Day:         key.Day,
			StoryID:     key.StoryID,
			Impressions: impByKey[key],
			Clicks:      clickByKey[key],
			Purchases:   purchaseByKey[key],
			RefreshedAt: now,
		}
		if err := repo.UpsertFunnelDaily(ctx, m.DB, row); err != nil {
			return err
		}
		refreshed++
	}
	refreshedTotal.Add(float64(refreshed))

	if pruned, err := repo.PruneIdempotency(ctx, m.DB, now); err != nil {
		// Housekeeping only; the invariant work above already committed.
		log.Warn().Err(err).Msg("idempotency prune failed")
	} else if pruned > 0 {
		log.Info().Int64("pruned", pruned).Msg("expired idempotency keys pruned")
	}

	return nil
}

// indexCounts folds query rows into a map keyed by (story, day).
func indexCounts(rows []repo.FunnelCount) map[cohortKey]int64 {
	out := make(map[cohortKey]int64, len(rows))
	for _, r := range rows {
		out[cohortKey{StoryID: r.StoryID, Day: r.Day}] = r.N
	}
	return out
}

// targets returns, per cohort, the impression count required to satisfy the
// funnel invariant: max(clicks, purchases).
func targets(clicks, purchases map[cohortKey]int64) map[cohortKey]int64 {
	out := make(map[cohortKey]int64, len(clicks))
	for k, n := range clicks {
		out[k] = n
	}
	for k, n := range purchases {
		if n > out[k] {
			out[k] = n
		}
	}
	return out
}

// union returns the set of cohorts present in any of the maps.
func union(ms ...map[cohortKey]int64) map[cohortKey]struct{} {
	out := make(map[cohortKey]struct{})
	for _, m := range ms {
		for k := range m {
			out[k] = struct{}{}
		}
	}
	return out
}

// middayUTC parses a YYYY-MM-DD day into noon UTC of that day, a timestamp
// guaranteed to fall inside the cohort's day bucket.
func middayUTC(day string) (time.Time, error) {
	d, err := time.Parse("2006-01-02", day)
	if err != nil {
		return time.Time{}, err
	}
	return d.Add(12 * time.Hour), nil
}
