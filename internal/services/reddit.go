// Reddit API implementation of [Service]
//
// Endpoint shapes based on https://www.reddit.com/dev/api/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/natanlao/rdx/internal/models"
	"github.com/natanlao/rdx/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	redditTokenURL = "https://www.reddit.com/api/v1/access_token"
	redditBaseURL  = "https://oauth.reddit.com"

	// Listing endpoints cap out at 100 items per page.
	pageLimit = 100
)

// thing is the generic Reddit envelope: a kind tag plus a kind-specific payload.
type thing struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// listing is a paginated Reddit listing response.
type listing struct {
	Kind string `json:"kind"`
	Data struct {
		After    string  `json:"after"`
		Children []thing `json:"children"`
	} `json:"data"`
}

// subredditData is the subset of a t5 payload we read from subscription listings.
type subredditData struct {
	DisplayName string `json:"display_name"`
}

// userData is one entry of the /api/v1/me/friends UserList.
type userData struct {
	Name string `json:"name"`
}

// savedData is the shared subset of t1/t3 payloads appearing in saved listings.
type savedData struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`      // submissions
	LinkTitle  string  `json:"link_title"` // comments carry their parent's title
	Subreddit  string  `json:"subreddit"`
	Author     string  `json:"author"`
	Permalink  string  `json:"permalink"`
	CreatedUTC float64 `json:"created_utc"`
	Over18     bool    `json:"over_18"`
}

// RedditService implements [Service] for one account using the OAuth2
// password grant available to script-type apps.
type RedditService struct {
	account    shared.AccountConfig
	config     *oauth2.Config
	token      *oauth2.Token
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string

	// Overridable in tests; default to the public Reddit endpoints.
	baseURL  string
	tokenURL string
}

// NewRedditService creates a service bound to one account's credentials.
func NewRedditService(account shared.AccountConfig, httpCfg shared.HTTPConfig) (*RedditService, error) {
	if account.ClientID == "" || account.ClientSecret == "" {
		return nil, fmt.Errorf("%w for account %q", shared.ErrMissingCredentials, account.Username)
	}

	userAgent := httpCfg.UserAgent
	if userAgent == "" {
		userAgent = "la.natan.rdx:v0.1.0"
	}

	// Reddit allows 60 requests per minute per OAuth client.
	limit := httpCfg.RateLimit
	if limit <= 0 {
		limit = 1.0
	}

	return &RedditService{
		account:    account,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(limit), 1),
		userAgent:  userAgent,
		baseURL:    redditBaseURL,
		tokenURL:   redditTokenURL,
	}, nil
}

func (s *RedditService) Name() string {
	return "Reddit"
}

func (s *RedditService) Username() string {
	return s.account.Username
}

// Identity returns the script-app client id. The safety guard compares these
// because Reddit requires one key pair per account; equal identities mean the
// caller is about to sync an account onto itself.
func (s *RedditService) Identity() string {
	return s.account.ClientID
}

// userAgentTransport injects the configured User-Agent into every request,
// including the token exchange. Reddit throttles the default Go user agent.
type userAgentTransport struct {
	agent string
	base  http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.agent)
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}

// Authenticate performs the OAuth2 password grant with the account's
// username, the interactively supplied password, and the script-app keys.
func (s *RedditService) Authenticate(ctx context.Context, password string) error {
	s.config = &oauth2.Config{
		ClientID:     s.account.ClientID,
		ClientSecret: s.account.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  s.tokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}

	tokenClient := &http.Client{
		Transport: &userAgentTransport{agent: s.userAgent},
		Timeout:   30 * time.Second,
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, tokenClient)

	token, err := s.config.PasswordCredentialsToken(ctx, s.account.Username, password)
	if err != nil {
		return fmt.Errorf("%w for /u/%s: %v", shared.ErrAuthFailed, s.account.Username, err)
	}

	s.token = token
	return nil
}

// doRequest performs an authenticated, rate-limited request against the API.
// form and body are mutually exclusive; body is JSON-encoded.
func (s *RedditService) doRequest(ctx context.Context, method, endpoint string, query, form url.Values, body, result any) error {
	if s.token == nil {
		return fmt.Errorf("%w: call Authenticate first", shared.ErrNotAuthenticated)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	apiURL := s.baseURL + endpoint
	if len(query) > 0 {
		apiURL += "?" + query.Encode()
	}

	var reqBody io.Reader
	contentType := ""
	switch {
	case form != nil:
		reqBody = strings.NewReader(form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case body != nil:
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.token.AccessToken)
	req.Header.Set("User-Agent", s.userAgent)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s %s: status %d", shared.ErrAPIRequest, method, endpoint, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// paginate walks a listing endpoint until the after cursor runs out,
// invoking visit for every child.
func (s *RedditService) paginate(ctx context.Context, endpoint string, visit func(thing) error) error {
	after := ""
	for {
		query := url.Values{"limit": {fmt.Sprint(pageLimit)}}
		if after != "" {
			query.Set("after", after)
		}

		var page listing
		if err := s.doRequest(ctx, http.MethodGet, endpoint, query, nil, nil, &page); err != nil {
			return err
		}

		for _, child := range page.Data.Children {
			if err := visit(child); err != nil {
				return err
			}
		}

		if page.Data.After == "" || len(page.Data.Children) == 0 {
			return nil
		}
		after = page.Data.After
	}
}

// ListSubscriptions retrieves the full set of subscribed subreddit names.
func (s *RedditService) ListSubscriptions(ctx context.Context) (map[string]struct{}, error) {
	subs := make(map[string]struct{})
	err := s.paginate(ctx, "/subreddits/mine/subscriber", func(child thing) error {
		var sub subredditData
		if err := json.Unmarshal(child.Data, &sub); err != nil {
			return fmt.Errorf("failed to decode subreddit: %w", err)
		}
		if sub.DisplayName != "" {
			subs[sub.DisplayName] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return subs, nil
}

// ListFriends retrieves the full set of friended usernames.
func (s *RedditService) ListFriends(ctx context.Context) (map[string]struct{}, error) {
	var userList struct {
		Data struct {
			Children []userData `json:"children"`
		} `json:"data"`
	}

	if err := s.doRequest(ctx, http.MethodGet, "/api/v1/me/friends", nil, nil, nil, &userList); err != nil {
		return nil, err
	}

	friends := make(map[string]struct{}, len(userList.Data.Children))
	for _, friend := range userList.Data.Children {
		if friend.Name != "" {
			friends[friend.Name] = struct{}{}
		}
	}
	return friends, nil
}

// ListSaved retrieves all saved submissions and comments, newest-first as the
// listing API returns them. Chronological ordering is the caller's concern.
func (s *RedditService) ListSaved(ctx context.Context) ([]models.SavedItem, error) {
	var items []models.SavedItem
	endpoint := fmt.Sprintf("/user/%s/saved", url.PathEscape(s.account.Username))

	err := s.paginate(ctx, endpoint, func(child thing) error {
		kind, err := models.ParseKind(child.Kind)
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrUnexpectedKind, err)
		}

		var data savedData
		if err := json.Unmarshal(child.Data, &data); err != nil {
			return fmt.Errorf("failed to decode saved item: %w", err)
		}

		title := data.Title
		if kind == models.KindComment {
			title = data.LinkTitle
		}

		items = append(items, models.SavedItem{
			Kind:      kind,
			ID:        data.ID,
			Title:     title,
			Subreddit: data.Subreddit,
			Author:    data.Author,
			Permalink: data.Permalink,
			CreatedAt: time.Unix(int64(data.CreatedUTC), 0).UTC(),
			NSFW:      data.Over18,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// Preferences retrieves the account's full flat preference map, unfiltered.
func (s *RedditService) Preferences(ctx context.Context) (map[string]any, error) {
	prefs := make(map[string]any)
	if err := s.doRequest(ctx, http.MethodGet, "/api/v1/me/prefs", nil, nil, nil, &prefs); err != nil {
		return nil, err
	}
	return prefs, nil
}

// UpdatePreferences overwrites the account's preferences in one bulk PATCH.
func (s *RedditService) UpdatePreferences(ctx context.Context, prefs map[string]any) error {
	return s.doRequest(ctx, http.MethodPatch, "/api/v1/me/prefs", nil, nil, prefs, nil)
}

// Subscribe subscribes the account to a subreddit by display name.
func (s *RedditService) Subscribe(ctx context.Context, subreddit string) error {
	form := url.Values{"action": {"sub"}, "sr_name": {subreddit}}
	return s.doRequest(ctx, http.MethodPost, "/api/subscribe", nil, form, nil, nil)
}

// Unsubscribe removes a subreddit subscription.
func (s *RedditService) Unsubscribe(ctx context.Context, subreddit string) error {
	form := url.Values{"action": {"unsub"}, "sr_name": {subreddit}}
	return s.doRequest(ctx, http.MethodPost, "/api/subscribe", nil, form, nil, nil)
}

// Friend adds a user to the account's friend list.
func (s *RedditService) Friend(ctx context.Context, username string) error {
	endpoint := fmt.Sprintf("/api/v1/me/friends/%s", url.PathEscape(username))
	return s.doRequest(ctx, http.MethodPut, endpoint, nil, nil, map[string]string{"name": username}, nil)
}

// Unfriend removes a user from the account's friend list.
func (s *RedditService) Unfriend(ctx context.Context, username string) error {
	endpoint := fmt.Sprintf("/api/v1/me/friends/%s", url.PathEscape(username))
	return s.doRequest(ctx, http.MethodDelete, endpoint, nil, nil, nil, nil)
}

// Save marks a submission or comment as saved.
func (s *RedditService) Save(ctx context.Context, key models.ItemKey) error {
	form := url.Values{"id": {key.String()}}
	return s.doRequest(ctx, http.MethodPost, "/api/save", nil, form, nil, nil)
}

// Unsave removes a submission or comment from the saved listing.
func (s *RedditService) Unsave(ctx context.Context, key models.ItemKey) error {
	form := url.Values{"id": {key.String()}}
	return s.doRequest(ctx, http.MethodPost, "/api/unsave", nil, form, nil, nil)
}
