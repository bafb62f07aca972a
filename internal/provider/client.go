package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// API is the read surface of the event-management provider. orgURL is the
// organizer's API base (e.g. https://tickets.example.com/api/v1/organizers/acme)
// and token its access credential. Implementations must be safe for
// concurrent use; the engine fans out calls across events and organizers.
type API interface {
	FetchEventSettings(ctx context.Context, orgURL, token, eventID string) (*Settings, error)
	FetchItems(ctx context.Context, orgURL, token, eventID string) ([]Item, error)
	FetchEvent(ctx context.Context, orgURL, token, eventID string) (*EventMeta, error)
	FetchOrders(ctx context.Context, orgURL, token, eventID string) ([]Order, error)
}

// Client talks to the provider's REST API over a shared pooled http.Client.
type Client struct {
	HTTP *http.Client
}

func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{HTTP: httpClient}
}

// paginatedResponse is the provider's list envelope. Next is an absolute
// URL to the following page, or null on the last page.
type paginatedResponse struct {
	Count   int             `json:"count"`
	Next    *string         `json:"next"`
	Results json.RawMessage `json:"results"`
}

func (c *Client) getJSON(ctx context.Context, url, token string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Token "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("provider request %s failed: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("provider request %s returned %d: %s", url, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("provider response %s not decodable: %w", url, err)
	}
	return nil
}

// getPaginated walks the Next chain, appending each page's raw results to
// the decode target via the supplied appender.
func (c *Client) getPaginated(ctx context.Context, url, token string, appendPage func(json.RawMessage) error) error {
	next := &url
	for next != nil {
		var page paginatedResponse
		if err := c.getJSON(ctx, *next, token, &page); err != nil {
			return err
		}
		if err := appendPage(page.Results); err != nil {
			return err
		}
		next = page.Next
	}
	return nil
}

func (c *Client) FetchEventSettings(ctx context.Context, orgURL, token, eventID string) (*Settings, error) {
	var settings Settings
	url := fmt.Sprintf("%s/events/%s/settings/", orgURL, eventID)
	if err := c.getJSON(ctx, url, token, &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

func (c *Client) FetchItems(ctx context.Context, orgURL, token, eventID string) ([]Item, error) {
	var items []Item
	url := fmt.Sprintf("%s/events/%s/items/", orgURL, eventID)
	err := c.getPaginated(ctx, url, token, func(raw json.RawMessage) error {
		var page []Item
		if err := json.Unmarshal(raw, &page); err != nil {
			return fmt.Errorf("provider items page not decodable: %w", err)
		}
		items = append(items, page...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (c *Client) FetchEvent(ctx context.Context, orgURL, token, eventID string) (*EventMeta, error) {
	var meta EventMeta
	url := fmt.Sprintf("%s/events/%s/", orgURL, eventID)
	if err := c.getJSON(ctx, url, token, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (c *Client) FetchOrders(ctx context.Context, orgURL, token, eventID string) ([]Order, error) {
	var orders []Order
	url := fmt.Sprintf("%s/events/%s/orders/", orgURL, eventID)
	err := c.getPaginated(ctx, url, token, func(raw json.RawMessage) error {
		var page []Order
		if err := json.Unmarshal(raw, &page); err != nil {
			return fmt.Errorf("provider orders page not decodable: %w", err)
		}
		orders = append(orders, page...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return orders, nil
}
