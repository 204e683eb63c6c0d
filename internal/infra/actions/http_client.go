package actions

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"trainee_notification_service/internal/domain/action"
)

// HTTPClient calls the external Action Status service. Callers treat any
// error here as "no information" (the reminder fires anyway), so the client
// only has to fail fast, hence the bounded timeout.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type actionDTO struct {
	ActionType  string     `json:"actionType"`
	CompletedAt *time.Time `json:"completedAt"`
}

func (c *HTTPClient) ListActions(ctx context.Context, personID, entityID string) ([]action.Action, error) {
	endpoint := fmt.Sprintf("%s/api/actions?personId=%s&entityId=%s",
		c.baseURL, url.QueryEscape(personID), url.QueryEscape(entityID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build action status request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("action status service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("action status service returned status %d", resp.StatusCode)
	}

	var dtos []actionDTO
	if err := json.NewDecoder(resp.Body).Decode(&dtos); err != nil {
		return nil, fmt.Errorf("failed to decode action status response: %w", err)
	}

	actions := make([]action.Action, 0, len(dtos))
	for _, dto := range dtos {
		a := action.Action{Type: dto.ActionType}
		if dto.CompletedAt != nil {
			a.CompletedAt = sql.NullTime{Time: *dto.CompletedAt, Valid: true}
		}
		actions = append(actions, a)
	}
	return actions, nil
}
