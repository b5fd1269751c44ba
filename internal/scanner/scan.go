package scanner

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dwizi/permit-tracker/internal/tracking"
)

// Report describes one scan tick.
type Report struct {
	TickID        string    `json:"tick_id"`
	StartedAt     time.Time `json:"started_at"`
	Duration      string    `json:"duration"`
	Users         int       `json:"users"`
	SitesQueried  int       `json:"sites_queried"`
	SiteFailures  int       `json:"site_failures"`
	AlertsSent    int       `json:"alerts_sent"`
	AlertFailures int       `json:"alert_failures"`
	Alerts        []Alert   `json:"alerts"`
}

func (r Report) Summary() string {
	return fmt.Sprintf("users=%d sites=%d failures=%d alerts=%d", r.Users, r.SitesQueried, r.SiteFailures, r.AlertsSent)
}

// Alert is the digest for one permit area of one user.
type Alert struct {
	UserID      string       `json:"user_id"`
	Destination string       `json:"destination"`
	PermitID    string       `json:"permit_id"`
	PermitName  string       `json:"permit_name"`
	Dates       []civil.Date `json:"dates"`
	Lines       []AreaDates  `json:"lines"`
	Sent        bool         `json:"sent"`
}

type AreaDates struct {
	StartingArea string       `json:"starting_area"`
	Dates        []civil.Date `json:"dates"`
}

type siteJob struct {
	permitKey    int
	startingArea string
	permitID     string
	site         tracking.Site
	months       []monthKey
}

type siteResult struct {
	dates  []civil.Date
	failed bool
}

type permitRef struct {
	list   tracking.List
	permit tracking.PermitArea
}

// ScanOnce reads every tracking list, queries availability for each tracked
// site and sends one alert per permit area that has open dates.
func (s *Service) ScanOnce(ctx context.Context) (Report, error) {
	started := s.now()
	report := Report{TickID: "scan-" + uuid.NewString(), StartedAt: started.UTC(), Alerts: []Alert{}}
	logger := s.logger.With("tick_id", report.TickID)

	lists, err := s.store.ListTrackingLists(ctx)
	if err != nil {
		return report, fmt.Errorf("list tracking lists: %w", err)
	}
	report.Users = len(lists)
	today := civil.DateOf(started)

	permits := []permitRef{}
	jobs := []siteJob{}
	for _, list := range lists {
		for _, permit := range list.PermitAreas {
			key := len(permits)
			permits = append(permits, permitRef{list: list, permit: permit})
			for _, area := range permit.StartingAreas {
				for _, site := range area.Sites {
					months := monthsToQuery(site, today, s.cfg.LookaheadMonths)
					if len(months) == 0 {
						continue
					}
					jobs = append(jobs, siteJob{
						permitKey:    key,
						startingArea: area.Name,
						permitID:     permit.ID,
						site:         site,
						months:       months,
					})
				}
			}
		}
	}
	report.SitesQueried = len(jobs)

	results := make([]siteResult, len(jobs))
	var failures atomic.Int64
	var group errgroup.Group
	group.SetLimit(s.cfg.Concurrency)
	for index := range jobs {
		job := jobs[index]
		group.Go(func() error {
			dates, err := s.querySite(ctx, job, today)
			if err != nil {
				failures.Add(1)
				results[index].failed = true
				logger.Warn("site query failed", "permit_id", job.permitID, "site_id", job.site.ID, "error", err)
				return nil
			}
			results[index].dates = dates
			return nil
		})
	}
	_ = group.Wait()
	report.SiteFailures = int(failures.Load())
	if err := ctx.Err(); err != nil {
		return report, err
	}

	byPermit := make([]map[string][]civil.Date, len(permits))
	for index, job := range jobs {
		if len(results[index].dates) == 0 {
			continue
		}
		if byPermit[job.permitKey] == nil {
			byPermit[job.permitKey] = map[string][]civil.Date{}
		}
		byPermit[job.permitKey][job.startingArea] = tracking.UnionDates(byPermit[job.permitKey][job.startingArea], results[index].dates)
	}

	for key, areas := range byPermit {
		if len(areas) == 0 {
			continue
		}
		ref := permits[key]
		alert := buildAlert(ref, areas, s.cfg.FallbackDestination)
		if alert.Destination == "" {
			logger.Warn("alert skipped, no destination", "user_id", ref.list.UserID, "permit_id", ref.permit.ID)
			report.Alerts = append(report.Alerts, alert)
			continue
		}
		if err := s.sender.Send(ctx, alert.Destination, FormatAlert(alert)); err != nil {
			report.AlertFailures++
			logger.Warn("alert send failed", "user_id", alert.UserID, "permit_id", alert.PermitID, "destination", alert.Destination, "error", err)
		} else {
			alert.Sent = true
			report.AlertsSent++
			logger.Info("alert sent", "user_id", alert.UserID, "permit_id", alert.PermitID, "dates", len(alert.Dates))
		}
		report.Alerts = append(report.Alerts, alert)
	}

	report.Duration = time.Since(started).Round(time.Millisecond).String()
	logger.Info("scan completed",
		"users", report.Users,
		"sites", report.SitesQueried,
		"site_failures", report.SiteFailures,
		"alerts", report.AlertsSent,
	)
	return report, nil
}

// querySite returns the bookable dates of one site, limited to the site's
// tracked dates unless it is unrestricted. Each month query gets its own timeout.
func (s *Service) querySite(ctx context.Context, job siteJob, today civil.Date) ([]civil.Date, error) {
	restricted := !job.site.Unrestricted()
	tracked := map[civil.Date]struct{}{}
	if restricted {
		for _, date := range job.site.Dates {
			tracked[date] = struct{}{}
		}
	}
	found := []civil.Date{}
	for _, month := range job.months {
		queryCtx, cancel := context.WithTimeout(ctx, s.cfg.SiteTimeout)
		days, err := s.source.MonthAvailability(queryCtx, job.permitID, job.site.ID, month.month, month.year)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("%04d-%02d: %w", month.year, month.month, err)
		}
		for date, day := range days {
			if !day.Bookable() || date.Before(today) {
				continue
			}
			if restricted {
				if _, ok := tracked[date]; !ok {
					continue
				}
			}
			found = append(found, date)
		}
	}
	return tracking.NormalizeDates(found), nil
}

func buildAlert(ref permitRef, areas map[string][]civil.Date, fallback string) Alert {
	alert := Alert{
		UserID:      ref.list.UserID,
		Destination: ref.list.Destination,
		PermitID:    ref.permit.ID,
		PermitName:  ref.permit.Name,
	}
	if alert.Destination == "" {
		alert.Destination = fallback
	}
	if alert.PermitName == "" {
		alert.PermitName = ref.permit.ID
	}
	// Lines follow the starting-area order of the stored tree.
	seen := map[string]bool{}
	for _, area := range ref.permit.StartingAreas {
		dates, ok := areas[area.Name]
		if !ok || seen[area.Name] {
			continue
		}
		seen[area.Name] = true
		alert.Lines = append(alert.Lines, AreaDates{StartingArea: area.Name, Dates: dates})
		alert.Dates = tracking.UnionDates(alert.Dates, dates)
	}
	return alert
}

type monthKey struct {
	year  int
	month time.Month
}

// monthsToQuery lists the months a site must be queried for. Tracked dates
// select their own months, skipping the past; an unrestricted site covers the
// current month plus lookahead-1 following months.
func monthsToQuery(site tracking.Site, today civil.Date, lookahead int) []monthKey {
	if site.Unrestricted() {
		months := make([]monthKey, 0, lookahead)
		first := time.Date(today.Year, today.Month, 1, 0, 0, 0, 0, time.UTC)
		for offset := 0; offset < lookahead; offset++ {
			month := first.AddDate(0, offset, 0)
			months = append(months, monthKey{year: month.Year(), month: month.Month()})
		}
		return months
	}
	seen := map[monthKey]struct{}{}
	months := []monthKey{}
	for _, date := range site.Dates {
		if date.Before(today) {
			continue
		}
		key := monthKey{year: date.Year, month: date.Month}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		months = append(months, key)
	}
	sort.Slice(months, func(i, j int) bool {
		if months[i].year != months[j].year {
			return months[i].year < months[j].year
		}
		return months[i].month < months[j].month
	})
	return months
}
