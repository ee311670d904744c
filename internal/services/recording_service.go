// Package services – RecordingService
//
// This file implements the recording aggregator. Recordings live at the
// provider; the local call log only knows who called whom. A listing is
// therefore two provider queries (one unbounded for the total, one for the
// page) followed by concurrent call-log lookups that enrich each recording
// with caller metadata.
//
// Observability: public methods are OpenTelemetry-instrumented with the
// filter and paging parameters as span attributes.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/tbourn/go-call-router/internal/cache"
	"github.com/tbourn/go-call-router/internal/domain"
	"github.com/tbourn/go-call-router/internal/twilio"
	"github.com/tbourn/go-call-router/internal/utils"
)

const (
	defaultPageSize = 10
	maxPageSize     = 1000
	// statsSampleSize is the single provider page inspected for audio stats.
	statsSampleSize = 1000
	unknown         = "Unknown"
	dateLayout      = "2006-01-02"
)

// RecordingGateway lists provider recordings.
type RecordingGateway interface {
	ListRecordings(ctx context.Context, f twilio.RecordingFilter) ([]twilio.Recording, error)
}

// CallLookup finds the local call record for a provider CallSid.
type CallLookup interface {
	FindCallBySid(ctx context.Context, db *gorm.DB, callSid string) (*domain.CallRecord, error)
}

// SnapshotCache stores serialized snapshots. Implementations must treat a
// missing key as (nil, false, nil).
type SnapshotCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

// RecordingQuery is the raw listing filter as received from the client.
type RecordingQuery struct {
	Date       string
	DateAfter  string
	DateBefore string
	Page       int
	PageSize   int
}

// RecordingItem is a provider recording joined with its local call record.
type RecordingItem struct {
	Sid          string    `json:"sid"`
	CallSid      string    `json:"callSid"`
	DateCreated  time.Time `json:"dateCreated"`
	Duration     string    `json:"duration"`
	Status       string    `json:"status"`
	RecordingURL string    `json:"recordingUrl"`
	From         string    `json:"from"`
	To           string    `json:"to"`
	CreatedAt    string    `json:"createdAt"`
}

// RecordingPage is one page of enriched recordings.
//
// NextPage is set whenever the page came back full. That is a heuristic: a
// full last page still advertises a next page, which then comes back empty.
type RecordingPage struct {
	Page       int             `json:"page"`
	PageSize   int             `json:"pageSize"`
	NextPage   *int            `json:"nextPage"`
	TotalPages int             `json:"totalPages"`
	Recordings []RecordingItem `json:"recordings"`
}

// AudioStats counts recordings created in rolling calendar windows.
type AudioStats struct {
	Today      int `json:"audio_received_today"`
	Yesterday  int `json:"audio_received_yesterday"`
	Last7Days  int `json:"audio_received_last_7_days"`
	Last30Days int `json:"audio_received_last_30_days"`
}

// RecordingService aggregates provider recordings with the local call log.
type RecordingService struct {
	DB      *gorm.DB
	Calls   CallLookup
	Gateway RecordingGateway

	// Timeout bounds each gateway call. Zero disables the bound.
	Timeout time.Duration
	// CountTimeout bounds the unpaged query that walks every provider page
	// to count the matches. Zero falls back to Timeout.
	CountTimeout time.Duration
	// Concurrency caps in-flight call-log lookups.
	Concurrency int
	// Location defines day boundaries for AudioStats.
	Location *time.Location

	// Cache optionally memoizes AudioStats for CacheTTL.
	Cache    SnapshotCache
	CacheTTL time.Duration

	// Now is the clock; tests pin it.
	Now func() time.Time
}

// NewRecordingService returns a service with UTC day boundaries, 8 concurrent
// lookups and no cache.
func NewRecordingService(db *gorm.DB, calls CallLookup, gw RecordingGateway, timeout time.Duration) *RecordingService {
	return &RecordingService{
		DB:          db,
		Calls:       calls,
		Gateway:     gw,
		Timeout:     timeout,
		Concurrency: 8,
		Location:    time.UTC,
		CacheTTL:    time.Minute,
		Now:         time.Now,
	}
}

// filterFromQuery validates the dates and builds the provider filter.
// "date" expands to the whole day and explicit bounds override it.
func filterFromQuery(q RecordingQuery) (twilio.RecordingFilter, error) {
	var f twilio.RecordingFilter
	if q.Date != "" {
		d, err := time.Parse(dateLayout, q.Date)
		if err != nil {
			return f, fmt.Errorf("%w: date=%q", ErrInvalidDate, q.Date)
		}
		f.DateCreatedAfter = d.Format(dateLayout)
		f.DateCreatedBefore = d.AddDate(0, 0, 1).Format(dateLayout)
	}
	if q.DateAfter != "" {
		if _, err := time.Parse(dateLayout, q.DateAfter); err != nil {
			return f, fmt.Errorf("%w: dateAfter=%q", ErrInvalidDate, q.DateAfter)
		}
		f.DateCreatedAfter = q.DateAfter
	}
	if q.DateBefore != "" {
		if _, err := time.Parse(dateLayout, q.DateBefore); err != nil {
			return f, fmt.Errorf("%w: dateBefore=%q", ErrInvalidDate, q.DateBefore)
		}
		f.DateCreatedBefore = q.DateBefore
	}
	return f, nil
}

// normalizePaging clamps page to >= 0 and pageSize to [1, 1000], with
// sizes below 1 falling back to the default.
func normalizePaging(page, pageSize int) (int, int) {
	return utils.Paging(page, pageSize, defaultPageSize, maxPageSize)
}

// FilteredRecordings returns one page of provider recordings enriched with
// caller metadata from the local call log.
func (s *RecordingService) FilteredRecordings(ctx context.Context, q RecordingQuery) (*RecordingPage, error) {
	ctx, span := otel.Tracer("services/RecordingService").Start(ctx, "FilteredRecordings",
		trace.WithAttributes(
			attribute.String("filter.date", q.Date),
			attribute.String("filter.date_after", q.DateAfter),
			attribute.String("filter.date_before", q.DateBefore),
			attribute.Int("page", q.Page),
			attribute.Int("page_size", q.PageSize),
		),
	)
	defer span.End()

	base, err := filterFromQuery(q)
	if err != nil {
		return nil, err
	}
	page, pageSize := normalizePaging(q.Page, q.PageSize)

	var all, items []twilio.Recording
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		all, err = s.listWithin(gctx, base, s.countTimeout())
		return err
	})
	g.Go(func() error {
		f := base
		f.Page, f.Limit = page, pageSize
		var err error
		items, err = s.list(gctx, f)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	enriched, err := s.enrich(ctx, items)
	if err != nil {
		return nil, err
	}

	total := len(all)
	out := &RecordingPage{
		Page:       page,
		PageSize:   pageSize,
		TotalPages: utils.TotalPages(total, pageSize),
		Recordings: enriched,
	}
	if len(items) == pageSize {
		next := page + 1
		out.NextPage = &next
	}
	span.SetAttributes(attribute.Int("recordings.total", total))
	return out, nil
}

// list runs one gateway query under the configured timeout.
func (s *RecordingService) list(ctx context.Context, f twilio.RecordingFilter) ([]twilio.Recording, error) {
	return s.listWithin(ctx, f, s.Timeout)
}

func (s *RecordingService) countTimeout() time.Duration {
	if s.CountTimeout > 0 {
		return s.CountTimeout
	}
	return s.Timeout
}

func (s *RecordingService) listWithin(ctx context.Context, f twilio.RecordingFilter, timeout time.Duration) ([]twilio.Recording, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	recs, err := s.Gateway.ListRecordings(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%w: list recordings (after=%q before=%q page=%d limit=%d): %w",
			ErrUpstream, f.DateCreatedAfter, f.DateCreatedBefore, f.Page, f.Limit, err)
	}
	return recs, nil
}

// enrich joins each recording with its call record. Lookups run concurrently
// and preserve input order. A missing record yields "Unknown" fields; any
// other store error fails the whole batch.
func (s *RecordingService) enrich(ctx context.Context, recs []twilio.Recording) ([]RecordingItem, error) {
	out := make([]RecordingItem, len(recs))
	g, gctx := errgroup.WithContext(ctx)
	limit := s.Concurrency
	if limit < 1 {
		limit = 8
	}
	g.SetLimit(limit)

	for i, r := range recs {
		g.Go(func() error {
			item := RecordingItem{
				Sid:          r.Sid,
				CallSid:      r.CallSid,
				DateCreated:  r.DateCreated,
				Duration:     r.Duration,
				Status:       r.Status,
				RecordingURL: r.MediaURL,
				From:         unknown,
				To:           unknown,
				CreatedAt:    unknown,
			}
			rec, err := s.Calls.FindCallBySid(gctx, s.DB, r.CallSid)
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
			case err != nil:
				return fmt.Errorf("%w: find call %s: %w", ErrPersistence, r.CallSid, err)
			default:
				item.From = rec.From
				item.To = rec.To
				item.CreatedAt = rec.CreatedAt.UTC().Format(time.RFC3339)
			}
			out[i] = item
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// AudioStats counts recordings created today, yesterday, and in the last 7
// and 30 days, with day boundaries in the configured location. Only the most
// recent 1000 recordings are inspected.
func (s *RecordingService) AudioStats(ctx context.Context) (AudioStats, error) {
	ctx, span := otel.Tracer("services/RecordingService").Start(ctx, "AudioStats")
	defer span.End()

	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}
	now := s.now().In(loc)
	key := cache.AudioStatsKey(now)

	if s.Cache != nil {
		// Cache failures fall through to the provider.
		if b, ok, err := s.Cache.Get(ctx, key); err == nil && ok {
			var st AudioStats
			if json.Unmarshal(b, &st) == nil {
				span.SetAttributes(attribute.Bool("cache.hit", true))
				return st, nil
			}
		}
	}

	recs, err := s.list(ctx, twilio.RecordingFilter{Limit: statsSampleSize})
	if err != nil {
		return AudioStats{}, err
	}
	st := bucketRecordings(recs, now)

	if s.Cache != nil && s.CacheTTL > 0 {
		if b, err := json.Marshal(st); err == nil {
			_ = s.Cache.Set(ctx, key, b, s.CacheTTL)
		}
	}
	return st, nil
}

// bucketRecordings counts recordings against day boundaries derived from
// now's location.
func bucketRecordings(recs []twilio.Recording, now time.Time) AudioStats {
	startOfToday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	startOfYesterday := startOfToday.AddDate(0, 0, -1)
	start7 := startOfToday.AddDate(0, 0, -7)
	start30 := startOfToday.AddDate(0, 0, -30)

	var st AudioStats
	for _, r := range recs {
		d := r.DateCreated
		if d.IsZero() {
			continue
		}
		if !d.Before(startOfToday) {
			st.Today++
		}
		if !d.Before(startOfYesterday) && d.Before(startOfToday) {
			st.Yesterday++
		}
		if !d.Before(start7) {
			st.Last7Days++
		}
		if !d.Before(start30) {
			st.Last30Days++
		}
	}
	return st
}

func (s *RecordingService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
