package recreation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"github.com/dwizi/permit-tracker/internal/tracking"
)

const (
	defaultBaseURL = "https://www.recreation.gov"
	defaultTimeout = 20 * time.Second
	otherDistrict  = "Other"
	userAgent      = "permit-tracker/1.0"
)

var (
	// ErrNotFound is any 404 from the API; LookupPermit reports it as
	// ErrPermitNotFound.
	ErrNotFound        = errors.New("not found")
	ErrPermitNotFound  = errors.New("permit not found")
	ErrUnexpectedShape = errors.New("unexpected response shape")
)

// DayAvailability is the quota state of one calendar day for one site.
type DayAvailability struct {
	Remaining  int
	IsHidden   bool
	WalkupOnly bool
}

// Bookable reports whether the day can be reserved online right now.
func (d DayAvailability) Bookable() bool {
	return !d.IsHidden && !d.WalkupOnly && d.Remaining > 0
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type permitContentResponse struct {
	Payload *struct {
		Name      string                     `json:"name"`
		Divisions map[string]permitDivision `json:"divisions"`
	} `json:"payload"`
}

type permitDivision struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	District string `json:"district"`
}

// LookupPermit loads a permit and groups its divisions into starting areas
// by district. Areas and their sites are sorted by name.
func (c *Client) LookupPermit(ctx context.Context, permitID string) (tracking.PermitArea, error) {
	permitID = strings.TrimSpace(permitID)
	if permitID == "" {
		return tracking.PermitArea{}, ErrPermitNotFound
	}
	endpoint := fmt.Sprintf("%s/api/permitcontent/%s", c.baseURL, url.PathEscape(permitID))

	var payload permitContentResponse
	if err := c.getJSON(ctx, endpoint, &payload); err != nil {
		if errors.Is(err, ErrNotFound) {
			err = ErrPermitNotFound
		}
		return tracking.PermitArea{}, fmt.Errorf("lookup permit %s: %w", permitID, err)
	}
	if payload.Payload == nil || payload.Payload.Divisions == nil {
		return tracking.PermitArea{}, fmt.Errorf("lookup permit %s: %w", permitID, ErrUnexpectedShape)
	}

	byDistrict := map[string][]tracking.Site{}
	for key, division := range payload.Payload.Divisions {
		id := strings.TrimSpace(division.ID)
		if id == "" {
			id = strings.TrimSpace(key)
		}
		if id == "" {
			continue
		}
		district := strings.TrimSpace(division.District)
		if district == "" {
			district = otherDistrict
		}
		byDistrict[district] = append(byDistrict[district], tracking.Site{ID: id, Name: strings.TrimSpace(division.Name)})
	}

	permit := tracking.PermitArea{
		ID:            permitID,
		Name:          strings.TrimSpace(payload.Payload.Name),
		StartingAreas: make([]tracking.StartingArea, 0, len(byDistrict)),
	}
	for district, sites := range byDistrict {
		sort.Slice(sites, func(i, j int) bool {
			if sites[i].Name == sites[j].Name {
				return sites[i].ID < sites[j].ID
			}
			return sites[i].Name < sites[j].Name
		})
		permit.StartingAreas = append(permit.StartingAreas, tracking.StartingArea{Name: district, Sites: sites})
	}
	sort.Slice(permit.StartingAreas, func(i, j int) bool {
		return permit.StartingAreas[i].Name < permit.StartingAreas[j].Name
	})
	if permit.Name == "" {
		permit.Name = permitID
	}
	return permit, nil
}

type availabilityResponse struct {
	Payload *struct {
		QuotaTypeMaps map[string]map[string]struct {
			Remaining  int  `json:"remaining"`
			IsHidden   bool `json:"is_hidden"`
			ShowWalkup bool `json:"show_walkup"`
		} `json:"quota_type_maps"`
	} `json:"payload"`
}

const dailyQuotaKey = "ConstantQuotaUsageDaily"

// MonthAvailability returns the per-day quota of one site for a month.
func (c *Client) MonthAvailability(ctx context.Context, permitID, siteID string, month time.Month, year int) (map[civil.Date]DayAvailability, error) {
	query := url.Values{}
	query.Set("month", strconv.Itoa(int(month)))
	query.Set("year", strconv.Itoa(year))
	endpoint := fmt.Sprintf(
		"%s/api/permititinerary/%s/division/%s/availability/month?%s",
		c.baseURL,
		url.PathEscape(strings.TrimSpace(permitID)),
		url.PathEscape(strings.TrimSpace(siteID)),
		query.Encode(),
	)

	var payload availabilityResponse
	if err := c.getJSON(ctx, endpoint, &payload); err != nil {
		return nil, fmt.Errorf("availability %s/%s: %w", permitID, siteID, err)
	}
	if payload.Payload == nil || payload.Payload.QuotaTypeMaps == nil {
		return nil, fmt.Errorf("availability %s/%s: %w", permitID, siteID, ErrUnexpectedShape)
	}
	daily, ok := payload.Payload.QuotaTypeMaps[dailyQuotaKey]
	if !ok {
		return nil, fmt.Errorf("availability %s/%s: missing %s: %w", permitID, siteID, dailyQuotaKey, ErrUnexpectedShape)
	}

	days := make(map[civil.Date]DayAvailability, len(daily))
	for key, value := range daily {
		date, err := parseDayKey(key)
		if err != nil {
			continue
		}
		days[date] = DayAvailability{
			Remaining:  value.Remaining,
			IsHidden:   value.IsHidden,
			WalkupOnly: value.ShowWalkup,
		}
	}
	return days, nil
}

// parseDayKey accepts "2026-06-15" as well as timestamps starting with it.
func parseDayKey(key string) (civil.Date, error) {
	key = strings.TrimSpace(key)
	if len(key) > 10 {
		key = key[:10]
	}
	return civil.ParseDate(key)
}

func (c *Client) getJSON(ctx context.Context, endpoint string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(res.Body).Decode(target); err != nil {
		return fmt.Errorf("decode response: %w: %v", ErrUnexpectedShape, err)
	}
	return nil
}
