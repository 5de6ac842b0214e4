package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/indexlab/hedging-engine/internal/model"
)

// RestAdapter talks to a venue's order gateway over HTTP. The gateway
// contract is the same for the internal matching engine and for external
// venue bridges: PUT the order set, DELETE to cancel, GET balances.
type RestAdapter struct {
	name    string
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

// NewRestAdapter creates an adapter for one venue gateway.
func NewRestAdapter(name, baseURL, apiKey string, logger *slog.Logger) *RestAdapter {
	return &RestAdapter{
		name:    name,
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger.With("exchange", name),
	}
}

func (a *RestAdapter) Name() string { return a.name }

func (a *RestAdapter) Apply(ctx context.Context, assetPairID string, orders []model.LimitOrder) ([]OrderReport, error) {
	body, err := json.Marshal(orders)
	if err != nil {
		return nil, err
	}

	req, err := a.newRequest(ctx, http.MethodPut, "/orders/"+url.PathEscape(assetPairID), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	resp, err := a.client.Do(req)
	if err != nil {
		a.logger.Error("apply orders failed", "asset_pair_id", assetPairID, "error", err)
		return nil, fmt.Errorf("%w: %s", ErrNotReachable, a.name)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var reports []OrderReport
		if err := json.NewDecoder(resp.Body).Decode(&reports); err != nil {
			return nil, fmt.Errorf("decode order reports from %s: %w", a.name, err)
		}
		return reports, nil
	case resp.StatusCode == http.StatusBadRequest:
		var fail struct {
			Reason string `json:"reason"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&fail)
		return nil, &RejectedError{Exchange: a.name, Reason: fail.Reason}
	default:
		return nil, fmt.Errorf("%w: %s returned %d", ErrNotReachable, a.name, resp.StatusCode)
	}
}

func (a *RestAdapter) Cancel(ctx context.Context, assetPairID string) error {
	req, err := a.newRequest(ctx, http.MethodDelete, "/orders/"+url.PathEscape(assetPairID), nil)
	if err != nil {
		return err
	}

	resp, err := a.client.Do(req)
	if err != nil {
		a.logger.Error("cancel failed", "asset_pair_id", assetPairID, "error", err)
		return fmt.Errorf("%w: %s", ErrNotReachable, a.name)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("%w: %s returned %d", ErrNotReachable, a.name, resp.StatusCode)
	}
	return nil
}

func (a *RestAdapter) Balances(ctx context.Context) ([]model.Balance, error) {
	req, err := a.newRequest(ctx, http.MethodGet, "/balances", nil)
	if err != nil {
		return nil, err
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotReachable, a.name)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned %d", ErrNotReachable, a.name, resp.StatusCode)
	}

	var balances []model.Balance
	if err := json.NewDecoder(resp.Body).Decode(&balances); err != nil {
		return nil, fmt.Errorf("decode balances from %s: %w", a.name, err)
	}
	for i := range balances {
		balances[i].Exchange = a.name
	}
	return balances, nil
}

func (a *RestAdapter) newRequest(ctx context.Context, method, path string, body *bytes.Reader) (*http.Request, error) {
	var req *http.Request
	var err error
	if body == nil {
		req, err = http.NewRequestWithContext(ctx, method, a.baseURL+path, nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	}
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if a.apiKey != "" {
		req.Header.Set("X-Api-Key", a.apiKey)
	}
	return req, nil
}
