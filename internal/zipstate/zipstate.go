// Package zipstate resolves US ZIP codes to state abbreviations.
package zipstate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/veriscript-health/clarity/internal/domain"
)

const defaultBaseURL = "https://api.zippopotam.us/us"

// Resolutions rarely change; a day keeps lookups warm without
// holding on to stale data forever.
const cacheTTL = 24 * time.Hour

var reZIP = regexp.MustCompile(`^\d{5}$`)

// ErrInvalidZIP indicates the input is not a 5-digit US ZIP code.
var ErrInvalidZIP = fmt.Errorf("invalid zip code")

// ErrNotFound indicates the ZIP code is not a known US ZIP.
var ErrNotFound = fmt.Errorf("zip code not found")

// Service resolves ZIP codes via the Zippopotam API with caching.
type Service struct {
	cache   domain.Cache
	client  *http.Client
	baseURL string
}

// NewService creates a new ZIP resolution service.
func NewService(cache domain.Cache) *Service {
	return &Service{
		cache:   cache,
		client:  &http.Client{Timeout: 5 * time.Second},
		baseURL: defaultBaseURL,
	}
}

// WithClient overrides the HTTP client (used in tests).
func (s *Service) WithClient(client *http.Client) *Service {
	s.client = client
	return s
}

// WithBaseURL overrides the API base URL (used in tests).
func (s *Service) WithBaseURL(baseURL string) *Service {
	s.baseURL = baseURL
	return s
}

type zippopotamResponse struct {
	Places []struct {
		StateAbbreviation string `json:"state abbreviation"`
	} `json:"places"`
}

// Resolve returns the two-letter state abbreviation for a ZIP code.
// Results are cached; a cache failure falls through to the API.
func (s *Service) Resolve(ctx context.Context, zip string) (string, error) {
	if !reZIP.MatchString(zip) {
		return "", ErrInvalidZIP
	}

	cacheKey := "zip:" + zip

	if s.cache != nil {
		if val, err := s.cache.Get(ctx, cacheKey); err == nil && val != nil {
			return string(val), nil
		}
	}

	state, err := s.fetch(ctx, zip)
	if err != nil {
		return "", err
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, cacheKey, []byte(state), cacheTTL)
	}

	return state, nil
}

// fetch queries the Zippopotam API for a ZIP code.
func (s *Service) fetch(ctx context.Context, zip string) (string, error) {
	url := fmt.Sprintf("%s/%s", s.baseURL, zip)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("zip lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("zip lookup returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var parsed zippopotamResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if len(parsed.Places) == 0 {
		return "", ErrNotFound
	}

	state := parsed.Places[0].StateAbbreviation
	if state == "" {
		return "", ErrNotFound
	}

	return state, nil
}
