// Package store provides Nightscout-backed implementations of the
// engine's GlucoseStore, CarbStore, DoseStore and PumpStatusProvider
// collaborator ports.
package store

import (
	"context"
	"crypto/sha1" //nolint:gosec // required for Nightscout API secret hashing (legacy API requirement)
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/openloop/loopengine/internal/loopmodel"
	"github.com/openloop/loopengine/internal/mathkernel"
)

// glucoseEntry mirrors a Nightscout /api/v1/entries/sgv record.
type glucoseEntry struct {
	SGV        float64 `json:"sgv"`
	DateMillis int64   `json:"date"`
	Device     string  `json:"device"`
}

func (e glucoseEntry) time() time.Time { return time.UnixMilli(e.DateMillis) }

// treatment mirrors a Nightscout /api/v1/treatments record, as narrowly
// as the engine needs: carb grams or insulin units and a timestamp.
type treatment struct {
	EventType  string  `json:"eventType"`
	Carbs      float64 `json:"carbs"`
	Insulin    float64 `json:"insulin"`
	CreatedAt  string  `json:"created_at"`
	DateMillis int64   `json:"date"`
}

func (t treatment) time() time.Time {
	if t.DateMillis != 0 {
		return time.UnixMilli(t.DateMillis)
	}
	parsed, err := time.Parse(time.RFC3339, t.CreatedAt)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

// pumpStatusEntry mirrors a Nightscout /api/v1/devicestatus record's
// pump telemetry fields.
type pumpStatusEntry struct {
	CreatedAt string `json:"created_at"`
	Pump      struct {
		Clock              string `json:"clock"`
		ReservoirRemaining int    `json:"reservoir"`
		Iob                struct {
			TimeRemaining float64 `json:"timeLeft"`
		} `json:"iob"`
	} `json:"pump"`
}

// Client is a Nightscout API client shared by the Glucose, Carb, Dose
// and PumpStatus adapters below.
type Client struct {
	baseURL    string
	apiSecret  string
	apiToken   string
	useToken   bool
	httpClient *http.Client
}

// NewClient constructs a Nightscout client against baseURL.
func NewClient(baseURL, apiSecret, apiToken string, useToken bool) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiSecret: apiSecret,
		apiToken:  apiToken,
		useToken:  useToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func hashSecret(secret string) string {
	hasher := sha1.New() //nolint:gosec // required for Nightscout API
	hasher.Write([]byte(secret))
	return hex.EncodeToString(hasher.Sum(nil))
}

func (c *Client) buildRequest(ctx context.Context, method, endpoint string, params url.Values, body io.Reader) (*http.Request, error) {
	fullURL := c.baseURL + endpoint
	if params != nil {
		fullURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	if c.useToken && c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	} else if c.apiSecret != "" {
		req.Header.Set("API-SECRET", hashSecret(c.apiSecret))
	}

	return req, nil
}

func (c *Client) doRequest(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, loopmodel.NewMissingData(fmt.Sprintf("nightscout request failed: %v", err))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("nightscout API error %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

// GlucoseAdapter implements engine.GlucoseStore against Nightscout's
// entries endpoint, computing the momentum effect with mathkernel.
type GlucoseAdapter struct {
	client   *Client
	momentum mathkernel.Momentum
}

// NewGlucoseAdapter constructs a GlucoseAdapter using the default
// momentum curve (adapted from the teacher's trend calculator).
func NewGlucoseAdapter(client *Client) *GlucoseAdapter {
	return &GlucoseAdapter{client: client, momentum: mathkernel.DefaultMomentum()}
}

func (a *GlucoseAdapter) LatestGlucose(ctx context.Context) (*loopmodel.GlucoseSample, error) {
	samples, err := a.recentSamples(ctx, 5)
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, nil
	}
	return &samples[0], nil
}

func (a *GlucoseAdapter) RecentMomentumEffect(ctx context.Context, anchor time.Time) (loopmodel.EffectSeries, error) {
	samples, err := a.recentSamples(ctx, 5)
	if err != nil {
		return nil, err
	}
	trend := mathkernel.Trend(samples)
	return a.momentum.Effect(trend, anchor, 60*time.Minute, 5*time.Minute), nil
}

func (a *GlucoseAdapter) recentSamples(ctx context.Context, count int) ([]loopmodel.GlucoseSample, error) {
	params := url.Values{}
	params.Set("count", fmt.Sprintf("%d", count))

	req, err := a.client.buildRequest(ctx, http.MethodGet, "/api/v1/entries/sgv", params, nil)
	if err != nil {
		return nil, err
	}
	body, err := a.client.doRequest(req)
	if err != nil {
		return nil, err
	}

	var entries []glucoseEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("parsing entries: %w", err)
	}

	samples := make([]loopmodel.GlucoseSample, 0, len(entries))
	for _, e := range entries {
		samples = append(samples, loopmodel.GlucoseSample{At: e.time(), MgDL: e.SGV, Source: e.Device})
	}
	return samples, nil
}

// CarbAdapter implements engine.CarbStore against Nightscout's
// treatments endpoint, computing the carb glucose effect with mathkernel.
type CarbAdapter struct {
	client *Client
	curve  mathkernel.CarbCurve
	// CarbSensitivity is mg/dL raised per gram absorbed (ISF/ICR),
	// supplied at construction since the store has no access to the
	// per-decision configuration snapshot.
	CarbSensitivity float64
}

// NewCarbAdapter constructs a CarbAdapter using the default absorption
// curve (adapted from the teacher's carbsAbsorbed helper).
func NewCarbAdapter(client *Client, carbSensitivity float64) *CarbAdapter {
	return &CarbAdapter{client: client, curve: mathkernel.DefaultCarbCurve(), CarbSensitivity: carbSensitivity}
}

func (a *CarbAdapter) GlucoseEffects(ctx context.Context, startAfter time.Time) (loopmodel.EffectSeries, error) {
	entries, err := a.recentCarbEntries(ctx, startAfter.Add(-a.curveWindow()))
	if err != nil {
		return nil, err
	}
	return a.curve.Effect(entries, startAfter, 4*time.Hour, 5*time.Minute, a.CarbSensitivity), nil
}

func (a *CarbAdapter) curveWindow() time.Duration {
	return time.Duration(a.curve.AbsorptionMinutes) * time.Minute
}

func (a *CarbAdapter) AddCarbEntry(ctx context.Context, grams float64, at time.Time) error {
	payload, err := json.Marshal(struct {
		EventType string `json:"eventType"`
		Carbs     float64 `json:"carbs"`
		CreatedAt string  `json:"created_at"`
	}{
		EventType: "Carb Correction",
		Carbs:     grams,
		CreatedAt: at.Format(time.RFC3339),
	})
	if err != nil {
		return err
	}

	req, err := a.client.buildRequest(ctx, http.MethodPost, "/api/v1/treatments", nil, strings.NewReader(string(payload)))
	if err != nil {
		return err
	}
	_, err = a.client.doRequest(req)
	return err
}

func (a *CarbAdapter) recentCarbEntries(ctx context.Context, from time.Time) ([]mathkernel.Entry, error) {
	treatments, err := a.fetchTreatments(ctx, from)
	if err != nil {
		return nil, err
	}
	entries := make([]mathkernel.Entry, 0, len(treatments))
	for _, t := range treatments {
		if t.Carbs > 0 {
			entries = append(entries, mathkernel.Entry{At: t.time(), Grams: t.Carbs})
		}
	}
	return entries, nil
}

func (a *CarbAdapter) fetchTreatments(ctx context.Context, from time.Time) ([]treatment, error) {
	return fetchTreatments(ctx, a.client, from)
}

// DoseAdapter implements engine.DoseStore against Nightscout's
// treatments endpoint, computing the insulin glucose effect with
// mathkernel.
type DoseAdapter struct {
	client *Client
	curve  mathkernel.InsulinCurve
	// ISF is insulin sensitivity factor (mg/dL drop per unit),
	// supplied at construction for the same reason as CarbSensitivity.
	ISF float64
}

// NewDoseAdapter constructs a DoseAdapter using the default piecewise-linear
// activity curve (adapted from the teacher's oref_engine.go).
func NewDoseAdapter(client *Client, isf float64) *DoseAdapter {
	return &DoseAdapter{client: client, curve: mathkernel.DefaultInsulinCurve(), ISF: isf}
}

func (a *DoseAdapter) GlucoseEffects(ctx context.Context, startAfter time.Time) (loopmodel.EffectSeries, error) {
	doses, err := a.recentDoses(ctx, startAfter.Add(-time.Duration(a.curve.DIAMinutes)*time.Minute))
	if err != nil {
		return nil, err
	}
	return a.curve.Effect(doses, startAfter, 6*time.Hour, 5*time.Minute, a.ISF), nil
}

func (a *DoseAdapter) recentDoses(ctx context.Context, from time.Time) ([]mathkernel.Dose, error) {
	treatments, err := fetchTreatments(ctx, a.client, from)
	if err != nil {
		return nil, err
	}
	doses := make([]mathkernel.Dose, 0, len(treatments))
	for _, t := range treatments {
		if t.Insulin > 0 {
			doses = append(doses, mathkernel.Dose{At: t.time(), Units: t.Insulin})
		}
	}
	return doses, nil
}

func fetchTreatments(ctx context.Context, client *Client, from time.Time) ([]treatment, error) {
	params := url.Values{}
	params.Set("find[created_at][$gte]", from.Format(time.RFC3339))
	params.Set("count", "200")

	req, err := client.buildRequest(ctx, http.MethodGet, "/api/v1/treatments", params, nil)
	if err != nil {
		return nil, err
	}
	body, err := client.doRequest(req)
	if err != nil {
		return nil, err
	}

	var treatments []treatment
	if err := json.Unmarshal(body, &treatments); err != nil {
		return nil, fmt.Errorf("parsing treatments: %w", err)
	}
	return treatments, nil
}

// PumpStatusAdapter implements engine.PumpStatusProvider against
// Nightscout's devicestatus endpoint.
type PumpStatusAdapter struct {
	client *Client
}

// NewPumpStatusAdapter constructs a PumpStatusAdapter.
func NewPumpStatusAdapter(client *Client) *PumpStatusAdapter {
	return &PumpStatusAdapter{client: client}
}

func (a *PumpStatusAdapter) Latest(ctx context.Context) (*loopmodel.PumpStatus, error) {
	params := url.Values{}
	params.Set("count", "1")

	req, err := a.client.buildRequest(ctx, http.MethodGet, "/api/v1/devicestatus", params, nil)
	if err != nil {
		return nil, err
	}
	body, err := a.client.doRequest(req)
	if err != nil {
		return nil, err
	}

	var entries []pumpStatusEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("parsing devicestatus: %w", err)
	}
	if len(entries) == 0 {
		return nil, nil
	}

	entry := entries[0]
	// Prefer the pump's own clock; fall back to the upload time when the
	// record carries no pump clock.
	stamp := entry.Pump.Clock
	if stamp == "" {
		stamp = entry.CreatedAt
	}
	at, err := time.Parse(time.RFC3339, stamp)
	if err != nil {
		return nil, fmt.Errorf("parsing devicestatus timestamp: %w", err)
	}

	return &loopmodel.PumpStatus{
		At:            at,
		TimeRemaining: time.Duration(entry.Pump.Iob.TimeRemaining * float64(time.Minute)),
	}, nil
}
