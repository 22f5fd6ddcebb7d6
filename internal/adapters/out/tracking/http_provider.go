package tracking

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"tracking/internal/core/domain/model/shipment"
	"tracking/internal/core/ports"
)

// HTTPProvider is a vendor adapter for carriers exposing the common
// aggregator tracking API: GET {base}/v1/track?awb=... returning a scan
// list. Carriers with bespoke formats get their own adapter; this one covers
// every aggregator-fronted carrier with just a base URL and token.
type HTTPProvider struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPProvider creates an adapter for an aggregator-style tracking API.
func NewHTTPProvider(baseURL, token string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

// trackResponse is the aggregator's wire format.
type trackResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Bucket  *int   `json:"bucket"`
	Scans   []struct {
		Timestamp   time.Time `json:"timestamp"`
		StatusCode  string    `json:"status_code"`
		Description string    `json:"description"`
		Location    string    `json:"location"`
		Bucket      *int      `json:"bucket"`
		RTO         bool      `json:"rto"`
	} `json:"scans"`
}

// Track polls the aggregator for one AWB. Transport and non-2xx failures
// surface as ErrProviderUnavailable so reconciliation schedules a retry.
func (p *HTTPProvider) Track(ctx context.Context, req ports.TrackRequest) (ports.TrackResult, error) {
	endpoint := fmt.Sprintf("%s/v1/track?awb=%s", p.baseURL, url.QueryEscape(req.AWB))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return ports.TrackResult{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return ports.TrackResult{}, fmt.Errorf("%w: %v", ports.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ports.TrackResult{}, fmt.Errorf("%w: status %d", ports.ErrProviderUnavailable, resp.StatusCode)
	}

	var body trackResponse
	if err = json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return ports.TrackResult{}, fmt.Errorf("%w: %v", ports.ErrProviderUnavailable, err)
	}

	result := ports.TrackResult{
		Success:      body.Success,
		Message:      body.Message,
		LatestBucket: toBucket(body.Bucket),
	}
	for _, scan := range body.Scans {
		raw, _ := json.Marshal(scan)
		result.Events = append(result.Events, ports.ProviderEvent{
			Timestamp:   scan.Timestamp,
			StatusCode:  scan.StatusCode,
			Description: scan.Description,
			Location:    scan.Location,
			Bucket:      toBucket(scan.Bucket),
			RTO:         scan.RTO,
			Raw:         raw,
		})
	}

	return result, nil
}

func toBucket(raw *int) *shipment.Bucket {
	if raw == nil {
		return nil
	}
	bucket := shipment.Bucket(*raw)
	return &bucket
}
