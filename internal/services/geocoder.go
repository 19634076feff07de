package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/adedejiosvaldo/safecall/backend/internal/models"
)

const mapboxGeocodingURL = "https://api.mapbox.com/geocoding/v5/mapbox.places"

// MapboxGeocoder reverse geocodes through the Mapbox Geocoding v5 API.
type MapboxGeocoder struct {
	token   string
	baseURL string
	client  *http.Client
}

func NewMapboxGeocoder(token string, client *http.Client) *MapboxGeocoder {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &MapboxGeocoder{token: token, baseURL: mapboxGeocodingURL, client: client}
}

type mapboxResponse struct {
	Features []struct {
		Address string `json:"address"`
		Text    string `json:"text"`
		Context []struct {
			ID   string `json:"id"`
			Text string `json:"text"`
		} `json:"context"`
	} `json:"features"`
}

func (g *MapboxGeocoder) ReverseGeocode(ctx context.Context, lat, lng float64) ([]models.Address, error) {
	endpoint := fmt.Sprintf("%s/%s,%s.json?%s", g.baseURL,
		formatCoord(lng), formatCoord(lat),
		url.Values{
			"access_token": {g.token},
			"types":        {"address"},
			"limit":        {"1"},
		}.Encode(),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mapbox request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("mapbox returned status %d", resp.StatusCode)
	}

	var body mapboxResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode mapbox response: %w", err)
	}

	addresses := make([]models.Address, 0, len(body.Features))
	for _, f := range body.Features {
		addr := models.Address{
			Street: strings.TrimSpace(f.Address + " " + f.Text),
		}
		for _, c := range f.Context {
			switch {
			case strings.HasPrefix(c.ID, "place."):
				addr.City = c.Text
			case strings.HasPrefix(c.ID, "region."):
				addr.Region = c.Text
			}
		}
		addresses = append(addresses, addr)
	}
	return addresses, nil
}
