package accounts

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"trainee_notification_service/internal/domain/account"
)

// HTTPResolver calls the external identity/account service. All calls carry
// the client's bounded timeout so an identity outage cannot block the
// reminder planner indefinitely.
type HTTPResolver struct {
	baseURL string
	client  *http.Client
}

func NewHTTPResolver(baseURL string, timeout time.Duration) *HTTPResolver {
	return &HTTPResolver{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type accountDTO struct {
	Identity    string `json:"identity"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

func (r *HTTPResolver) Resolve(ctx context.Context, personID string) ([]account.Account, error) {
	endpoint := fmt.Sprintf("%s/api/accounts?personId=%s", r.baseURL, url.QueryEscape(personID))
	var dtos []accountDTO
	if err := r.getJSON(ctx, endpoint, &dtos); err != nil {
		return nil, err
	}

	accounts := make([]account.Account, 0, len(dtos))
	for _, dto := range dtos {
		accounts = append(accounts, account.Account(dto))
	}
	return accounts, nil
}

func (r *HTTPResolver) Details(ctx context.Context, identity string) (*account.Account, error) {
	endpoint := fmt.Sprintf("%s/api/accounts/%s", r.baseURL, url.PathEscape(identity))
	var dto accountDTO
	if err := r.getJSON(ctx, endpoint, &dto); err != nil {
		return nil, err
	}
	acct := account.Account(dto)
	return &acct, nil
}

func (r *HTTPResolver) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build account request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("account service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("account service returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode account response: %w", err)
	}
	return nil
}

// CachedResolver decorates a Resolver with a TTL cache. The reminder
// planner resolves the same person once per reminder kind per event, so
// even a short TTL removes most identity-service round trips.
type CachedResolver struct {
	inner account.Resolver
	ttl   time.Duration

	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	accounts  []account.Account
	expiresAt time.Time
}

func NewCachedResolver(inner account.Resolver, ttl time.Duration) *CachedResolver {
	return &CachedResolver{
		inner:   inner,
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

func (c *CachedResolver) Resolve(ctx context.Context, personID string) ([]account.Account, error) {
	c.mu.Lock()
	entry, ok := c.entries[personID]
	c.mu.Unlock()
	if ok && time.Now().Before(entry.expiresAt) {
		return entry.accounts, nil
	}

	accounts, err := c.inner.Resolve(ctx, personID)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.entries[personID] = cacheEntry{accounts: accounts, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()
	return accounts, nil
}

// Details is not cached: it is only used on operator paths, not in the
// planner's hot loop.
func (c *CachedResolver) Details(ctx context.Context, identity string) (*account.Account, error) {
	return c.inner.Details(ctx, identity)
}
