package adt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"hims-billing-backend/config"
	"hims-billing-backend/internal/store"
)

// BedFeedApplier persists a snapshot of the bed board.
type BedFeedApplier interface {
	ApplyBedFeed(ctx context.Context, now time.Time, items []store.BedFeedItem) error
}

// Service keeps the local bed board in step with the hospital ADT system.
type Service struct {
	cfg      *config.ADTConfig
	store    BedFeedApplier
	client   *http.Client
	onChange func()
}

// NewService creates a new ADT sync service. onChange, when set, runs after
// every successful sync.
func NewService(cfg *config.ADTConfig, s BedFeedApplier, onChange func()) *Service {
	var transport http.RoundTripper = &http.Transport{}
	if cfg.HTTPProxy != "" {
		proxyURL, err := url.Parse(cfg.HTTPProxy)
		if err != nil {
			log.Printf("Warning: Invalid proxy URL %q: %v. ADT sync will not use a proxy.", cfg.HTTPProxy, err)
		} else {
			transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}

	return &Service{
		cfg:   cfg,
		store: s,
		client: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
		},
		onChange: onChange,
	}
}

// Run syncs the bed board in a loop until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		log.Println("ADT sync is disabled. Not starting.")
		return
	}
	log.Println("Starting ADT sync service...")

	s.SyncOnce(ctx)

	timer := time.NewTimer(s.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("ADT sync service shutting down.")
			return
		case <-timer.C:
			s.SyncOnce(ctx)
			timer.Reset(s.cfg.Interval)
		}
	}
}

// SyncOnce pulls every page of the bed board and applies it. A failed page
// keeps what was fetched before it; beds not in the feed are left unchanged.
func (s *Service) SyncOnce(ctx context.Context) error {
	log.Println("Executing ADT sync cycle...")
	now := time.Now().UTC()

	var allItems []store.BedFeedItem
	total := 1
	pageSize := s.cfg.Request.PageSize
	var fetchErr error
	for page := 1; (page-1)*pageSize < total; page++ {
		resp, err := s.fetchPage(ctx, page)
		if err != nil {
			log.Printf("Error fetching page %d: %v", page, err)
			fetchErr = err
			break
		}
		if resp.Data.Total == 0 || len(resp.Data.Items) == 0 {
			break
		}
		total = resp.Data.Total
		allItems = append(allItems, resp.Data.Items...)
		log.Printf("Fetched page %d/%d, total beds so far: %d", page, (total+pageSize-1)/pageSize, len(allItems))
	}

	if fetchErr != nil && len(allItems) == 0 {
		log.Println("ADT sync aborted due to fetch error with no beds retrieved.")
		return fetchErr
	}
	if len(allItems) == 0 {
		log.Println("ADT sync finished: no beds to process.")
		return nil
	}

	if err := s.store.ApplyBedFeed(ctx, now, allItems); err != nil {
		log.Printf("Error applying bed feed: %v", err)
		return err
	}
	if s.onChange != nil {
		s.onChange()
	}

	log.Printf("ADT sync finished: %d beds applied.", len(allItems))
	return fetchErr
}

func (s *Service) fetchPage(ctx context.Context, page int) (*ApiResponse, error) {
	payload := make(map[string]any)
	for k, v := range s.cfg.Request.Payload {
		payload[k] = v
	}
	payload["page"] = page
	payload["pageSize"] = s.cfg.Request.PageSize

	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Request.URL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range s.cfg.Request.Headers {
		req.Header.Set(key, value)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("received non-200 status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var apiResp ApiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal api response: %w", err)
	}

	if apiResp.Code != 0 {
		return nil, fmt.Errorf("ADT returned non-zero application code: %d", apiResp.Code)
	}

	return &apiResp, nil
}
