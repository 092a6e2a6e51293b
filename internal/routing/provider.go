package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"swiftdash/internal/models"
)

// HTTPProvider calls an external directions endpoint that answers the common
// {coordinates, distance{text,value}, duration{text,value}, steps} JSON shape
// (distance value in meters, duration value in seconds).
type HTTPProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPProvider builds a provider for baseURL. apiKey may be empty.
func NewHTTPProvider(baseURL, apiKey string, timeout time.Duration) *HTTPProvider {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type directionsResponse struct {
	Coordinates []struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"coordinates"`
	Distance struct {
		Text  string  `json:"text"`
		Value float64 `json:"value"`
	} `json:"distance"`
	Duration struct {
		Text  string  `json:"text"`
		Value float64 `json:"value"`
	} `json:"duration"`
	Steps []struct {
		Instruction string  `json:"instruction"`
		Distance    float64 `json:"distance"`
		Duration    float64 `json:"duration"`
	} `json:"steps"`
}

func (p *HTTPProvider) GetDirections(ctx context.Context, origin, dest models.GeoPoint) (*Directions, error) {
	query := url.Values{}
	query.Set("origin", fmt.Sprintf("%f,%f", origin.Latitude, origin.Longitude))
	query.Set("destination", fmt.Sprintf("%f,%f", dest.Latitude, dest.Longitude))
	if p.apiKey != "" {
		query.Set("key", p.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("directions provider returned %d", resp.StatusCode)
	}

	var body directionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	if len(body.Coordinates) == 0 {
		return nil, fmt.Errorf("directions provider returned no coordinates")
	}

	directions := &Directions{
		DistanceKm:      body.Distance.Value / 1000,
		DurationMinutes: body.Duration.Value / 60,
	}
	for _, c := range body.Coordinates {
		directions.Coordinates = append(directions.Coordinates, models.GeoPoint{
			Latitude:  c.Latitude,
			Longitude: c.Longitude,
		})
	}
	for _, s := range body.Steps {
		directions.Steps = append(directions.Steps, Step{
			Instruction:     s.Instruction,
			DistanceKm:      s.Distance / 1000,
			DurationMinutes: s.Duration / 60,
		})
	}
	return directions, nil
}
