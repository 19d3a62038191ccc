package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vondrachek/linkboard/backend/internal/models"
)

// ErrProfileNotFound is returned when a referenced author has no profile, or
// a profile with no username, at the identity provider.
var ErrProfileNotFound = errors.New("identity: profile not found")

// maxBatchSize bounds a single upstream user-list request.
const maxBatchSize = 100

// Client resolves identity-provider user ids to public profiles. One shared,
// long-lived Client is constructed at process start and reused across
// requests.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// profile is the provider's wire shape for a public user record.
type profile struct {
	ID              string `json:"id"`
	Username        string `json:"username"`
	ProfileImageURL string `json:"profile_image_url"`
}

// ResolveAuthors maps every id to its public profile, batching distinct ids
// into as few upstream calls as possible. Any id without a usable profile
// fails the whole lookup; callers never receive partial results.
func (c *Client) ResolveAuthors(ctx context.Context, ids []string) (map[string]models.Author, error) {
	distinct := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		distinct = append(distinct, id)
	}

	authors := make(map[string]models.Author, len(distinct))
	for start := 0; start < len(distinct); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(distinct) {
			end = len(distinct)
		}
		if err := c.fetchBatch(ctx, distinct[start:end], authors); err != nil {
			return nil, err
		}
	}

	for _, id := range distinct {
		author, ok := authors[id]
		if !ok || author.Username == "" {
			return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, id)
		}
	}

	return authors, nil
}

func (c *Client) fetchBatch(ctx context.Context, ids []string, authors map[string]models.Author) error {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(len(ids)))
	for _, id := range ids {
		query.Add("user_id", id)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/users?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("identity: building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("identity: fetching users: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("identity: unexpected status %d", resp.StatusCode)
	}

	var profiles []profile
	if err := json.NewDecoder(resp.Body).Decode(&profiles); err != nil {
		return fmt.Errorf("identity: decoding users: %w", err)
	}

	for _, p := range profiles {
		authors[p.ID] = models.Author{
			ID:             p.ID,
			Username:       p.Username,
			ProfilePicture: p.ProfileImageURL,
		}
	}

	return nil
}
