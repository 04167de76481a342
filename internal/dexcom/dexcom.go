// Package dexcom is the client for the Dexcom CGM API.
//
// It covers two things:
//   - the OAuth 2.0 authorization-code flow that links a user's Dexcom
//     account (AuthURL, Exchange)
//   - fetching estimated glucose values for a time window (FetchSamples)
//
// golang.org/x/oauth2 supplies the flow and an *http.Client that adds the
// "Authorization: Bearer" header and refreshes expired tokens.
package dexcom

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"github.com/geniesugar/glucose-monitor/internal/apperror"
)

// MaxWindow is the longest range the EGV endpoint accepts in one request.
const MaxWindow = 30 * 24 * time.Hour

// timeLayout is the UTC timestamp format the API expects in query strings.
const timeLayout = "2006-01-02T15:04:05"

// Sample is one estimated glucose value.
type Sample struct {
	Value     float64
	Timestamp time.Time // UTC, provider-assigned
}

// Config configures a Provider.
type Config struct {
	BaseURL      string // e.g. https://api.dexcom.com or https://sandbox-api.dexcom.com
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Timeout      time.Duration
}

// Provider talks to one Dexcom environment.
type Provider struct {
	baseURL    string
	oauth      *oauth2.Config
	httpClient *http.Client
}

func NewProvider(cfg Config) *Provider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Provider{
		baseURL: cfg.BaseURL,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"offline_access"},
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.BaseURL + "/v2/oauth2/login",
				TokenURL:  cfg.BaseURL + "/v2/oauth2/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: &http.Client{Timeout: timeout},
	}
}

// AuthURL returns the Dexcom login page URL. state must be echoed back on
// the callback and checked against the value stored in the user's cookie.
func (p *Provider) AuthURL(state string) string {
	return p.oauth.AuthCodeURL(state)
}

// Exchange trades an authorization code for a token.
func (p *Provider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	tok, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, apperror.Provider("dexcom", fmt.Errorf("exchanging authorization code: %w", err))
	}
	return tok, nil
}

// egvResponse accepts both the v3 ("records") and the older v2 ("egvs")
// response shapes.
type egvResponse struct {
	Records []egv `json:"records"`
	EGVs    []egv `json:"egvs"`
}

type egv struct {
	SystemTime string   `json:"systemTime"`
	Value      *float64 `json:"value"`
}

// FetchSamples returns the EGVs recorded in [start, end]. Windows longer than
// MaxWindow, or with end before start, are rejected before any request is
// made. A non-200 status, transport error or timeout is apperror.ErrProvider.
func (p *Provider) FetchSamples(ctx context.Context, tok *oauth2.Token, start, end time.Time) ([]Sample, error) {
	start, end = start.UTC(), end.UTC()
	if end.Before(start) {
		return nil, apperror.ValidationFailed("window", "window end is before start")
	}
	if end.Sub(start) > MaxWindow {
		return nil, apperror.ValidationFailed("window", "window exceeds 30 days")
	}
	if tok == nil || tok.AccessToken == "" {
		return nil, apperror.NotConnected("missing Dexcom access token")
	}

	q := url.Values{}
	q.Set("startDate", start.Format(timeLayout))
	q.Set("endDate", end.Format(timeLayout))
	endpoint := p.baseURL + "/v3/users/self/egvs?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dexcom: building request: %w", err)
	}

	client := p.oauth.Client(context.WithValue(ctx, oauth2.HTTPClient, p.httpClient), tok)
	resp, err := client.Do(req)
	if err != nil {
		return nil, apperror.Provider("dexcom", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperror.Provider("dexcom", fmt.Errorf("egvs returned status %d", resp.StatusCode))
	}

	var body egvResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, apperror.Provider("dexcom", fmt.Errorf("decoding egvs response: %w", err))
	}

	records := body.Records
	if len(records) == 0 {
		records = body.EGVs
	}

	samples := make([]Sample, 0, len(records))
	for _, r := range records {
		if r.SystemTime == "" || r.Value == nil {
			continue
		}
		ts, err := parseSystemTime(r.SystemTime)
		if err != nil {
			continue
		}
		samples = append(samples, Sample{Value: *r.Value, Timestamp: ts})
	}
	return samples, nil
}

// parseSystemTime accepts RFC 3339 with an offset, or a bare timestamp that
// Dexcom documents as UTC. Fractional seconds are accepted by both layouts.
func parseSystemTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.ParseInLocation(timeLayout, s, time.UTC); err == nil {
		return t, nil
	}
	return time.Time{}, errors.New("dexcom: unrecognised systemTime " + s)
}
