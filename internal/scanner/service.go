package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/robfig/cron/v3"

	"github.com/dwizi/permit-tracker/internal/heartbeat"
	"github.com/dwizi/permit-tracker/internal/recreation"
	"github.com/dwizi/permit-tracker/internal/tracking"
)

const (
	componentName = "scanner"

	defaultSchedule        = "@every 15m"
	defaultConcurrency     = 4
	defaultSiteTimeout     = 20 * time.Second
	defaultLookaheadMonths = 2
)

type TrackingStore interface {
	ListTrackingLists(ctx context.Context) ([]tracking.List, error)
}

type AvailabilitySource interface {
	MonthAvailability(ctx context.Context, permitID, siteID string, month time.Month, year int) (map[civil.Date]recreation.DayAvailability, error)
}

type Sender interface {
	Send(ctx context.Context, destination, text string) error
}

type Config struct {
	// Schedule is a cron spec or descriptor such as "@every 15m".
	Schedule            string
	RunOnStart          bool
	Concurrency         int
	SiteTimeout         time.Duration
	LookaheadMonths     int
	FallbackDestination string
}

type Service struct {
	store    TrackingStore
	source   AvailabilitySource
	sender   Sender
	cfg      Config
	schedule cron.Schedule
	logger   *slog.Logger
	reporter heartbeat.Reporter
	now      func() time.Time
}

func New(store TrackingStore, source AvailabilitySource, sender Sender, cfg Config, logger *slog.Logger) (*Service, error) {
	if strings.TrimSpace(cfg.Schedule) == "" {
		cfg.Schedule = defaultSchedule
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.SiteTimeout <= 0 {
		cfg.SiteTimeout = defaultSiteTimeout
	}
	if cfg.LookaheadMonths < 1 {
		cfg.LookaheadMonths = defaultLookaheadMonths
	}
	cfg.FallbackDestination = strings.TrimSpace(cfg.FallbackDestination)
	schedule, err := cron.ParseStandard(strings.TrimSpace(cfg.Schedule))
	if err != nil {
		return nil, fmt.Errorf("parse scan schedule %q: %w", cfg.Schedule, err)
	}
	return &Service{
		store:    store,
		source:   source,
		sender:   sender,
		cfg:      cfg,
		schedule: schedule,
		logger:   logger,
		now:      time.Now,
	}, nil
}

func (s *Service) SetHeartbeatReporter(reporter heartbeat.Reporter) {
	s.reporter = reporter
}

// Start runs a scan at every schedule activation until ctx is done. Scan
// errors are logged and reported; they never stop the loop.
func (s *Service) Start(ctx context.Context) error {
	if s.store == nil || s.source == nil || s.sender == nil {
		if s.reporter != nil {
			s.reporter.Disabled(componentName, "dependencies missing")
		}
		<-ctx.Done()
		return nil
	}
	if s.reporter != nil {
		s.reporter.Starting(componentName, "started")
	}
	s.logger.Info("scanner started", "schedule", s.cfg.Schedule, "concurrency", s.cfg.Concurrency)
	if s.cfg.RunOnStart {
		s.tick(ctx)
	} else if s.reporter != nil {
		s.reporter.Beat(componentName, "waiting for first scan")
	}

	for {
		next := s.schedule.Next(s.now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			if s.reporter != nil {
				s.reporter.Stopped(componentName, "stopped")
			}
			s.logger.Info("scanner stopped")
			return nil
		case <-timer.C:
		}
		s.tick(ctx)
	}
}

func (s *Service) tick(ctx context.Context) {
	report, err := s.ScanOnce(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		if s.reporter != nil {
			s.reporter.Degrade(componentName, "scan failed", err)
		}
		s.logger.Error("scan failed", "error", err)
		return
	}
	if s.reporter == nil {
		return
	}
	if report.SitesQueried > 0 && report.SiteFailures == report.SitesQueried {
		s.reporter.Degrade(componentName, "every site query failed", fmt.Errorf("%d site queries failed", report.SiteFailures))
		return
	}
	s.reporter.Beat(componentName, report.Summary())
}
