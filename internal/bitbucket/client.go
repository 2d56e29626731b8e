// internal/bitbucket/client.go
package bitbucket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/oauth2"

	"bitbucket-commit-mirror/internal/model"
	"bitbucket-commit-mirror/internal/timeutil"
)

// DefaultPageSize matches the changeset page size older deployments of this
// pipeline requested.
const DefaultPageSize = 30

// Credentials selects the authentication mode: a non-empty Token wins and is
// sent as an OAuth bearer, otherwise Username/Password are sent as HTTP
// Basic auth.
type Credentials struct {
	Username string
	Password string
	Token    string
}

// Client talks to the Bitbucket REST API for one organization.
type Client struct {
	baseURL  string
	org      string
	creds    Credentials
	pageSize int
	http     *http.Client
	logger   *slog.Logger
}

// NewClient creates and configures a new Client instance. When a token is
// configured the underlying http.Client handles the bearer header via
// oauth2.
func NewClient(baseURL, org string, creds Credentials, pageSize int, logger *slog.Logger) *Client {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	httpClient := &http.Client{Timeout: 30 * time.Second}
	if creds.Token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: creds.Token})
		httpClient = oauth2.NewClient(context.Background(), ts)
	}
	return &Client{
		baseURL:  baseURL,
		org:      org,
		creds:    creds,
		pageSize: pageSize,
		http:     httpClient,
		logger:   logger,
	}
}

// Repositories fetches the listing of all repositories visible to the
// configured credentials. Failures here are fatal for a sync cycle.
func (c *Client) Repositories(ctx context.Context) ([]model.Repository, error) {
	body, err := c.get(ctx, c.baseURL+"/user/repositories")
	if err != nil {
		return nil, fmt.Errorf("repository listing failed: %w", err)
	}

	var repos []model.Repository
	if err := json.Unmarshal(body, &repos); err != nil {
		return nil, fmt.Errorf("failed to decode repository listing: %w", err)
	}
	return repos, nil
}

// changesetsResponse mirrors the history endpoint's envelope. A nil
// Changesets pointer distinguishes a missing list from an empty one.
type changesetsResponse struct {
	Changesets *[]changeset `json:"changesets"`
}

type changeset struct {
	Node         string `json:"node"`
	RawAuthor    string `json:"raw_author"`
	UTCTimestamp string `json:"utctimestamp"`
	Timestamp    string `json:"timestamp"`
}

// Changesets fetches one page of commit history for repo, most-recent-first,
// anchored at the optional start revision. ok is false when the response
// carries no changeset list or a changeset cannot be interpreted, which the
// caller treats as end of data rather than an error.
func (c *Client) Changesets(ctx context.Context, repo, start string) (commits []model.Commit, ok bool, err error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(c.pageSize))
	if start != "" {
		q.Set("start", start)
	}
	endpoint := fmt.Sprintf("%s/repositories/%s/%s/changesets?%s",
		c.baseURL, url.PathEscape(c.org), url.PathEscape(repo), q.Encode())

	c.logger.Debug("Fetching changesets page", "repo", repo, "start", start)

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, false, fmt.Errorf("changesets fetch for %s failed: %w", repo, err)
	}

	var page changesetsResponse
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, false, fmt.Errorf("failed to decode changesets for %s: %w", repo, err)
	}
	if page.Changesets == nil {
		c.logger.Warn("Changesets response carried no changeset list, stopping repository", "repo", repo)
		return nil, false, nil
	}

	commits = make([]model.Commit, 0, len(*page.Changesets))
	for _, cs := range *page.Changesets {
		commit, err := toInternalCommit(cs)
		if err != nil {
			c.logger.Warn("Skipping remainder of repository on malformed changeset",
				"repo", repo, "node", cs.Node, "error", err)
			return nil, false, nil
		}
		commits = append(commits, commit)
	}
	return commits, true, nil
}

// get performs one authenticated GET and returns the response body.
// Non-2xx statuses are transport failures and propagate.
func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if c.creds.Token == "" {
		req.SetBasicAuth(c.creds.Username, c.creds.Password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, endpoint)
	}
	return body, nil
}

// toInternalCommit translates one wire changeset into our internal model.
// Both timestamps keep their rendered wall clocks so the display offset
// between them can still be computed.
func toInternalCommit(cs changeset) (model.Commit, error) {
	utc, err := timeutil.Parse(cs.UTCTimestamp)
	if err != nil {
		return model.Commit{}, fmt.Errorf("bad utctimestamp: %w", err)
	}
	local, err := timeutil.Parse(cs.Timestamp)
	if err != nil {
		return model.Commit{}, fmt.Errorf("bad timestamp: %w", err)
	}
	return model.Commit{
		Node:            cs.Node,
		RawAuthor:       cs.RawAuthor,
		UTCTimestamp:    utc,
		LocalTimestamp:  local,
		RawUTCTimestamp: cs.UTCTimestamp,
	}, nil
}
