package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type User struct {
	Login        string `json:"login"`
	ID           string `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	IsHireable   bool   `json:"isHireable"`
	DiskUsage    int64  `json:"-"`
	PublicRepos  int    `json:"-"`
	PrivateRepos int    `json:"-"`
}

type Language struct {
	Name string `json:"name"`
}

type Owner struct {
	Login string `json:"login"`
}

type Repository struct {
	Name            string    `json:"name"`
	Owner           Owner     `json:"owner"`
	IsPrivate       bool      `json:"isPrivate"`
	IsFork          bool      `json:"isFork"`
	PrimaryLanguage *Language `json:"primaryLanguage"`
}

// Language returns the primary language name, empty when GitHub has none.
func (r Repository) Language() string {
	if r.PrimaryLanguage == nil {
		return ""
	}
	return r.PrimaryLanguage.Name
}

// DisplayName hides private repositories in log output.
func (r Repository) DisplayName() string {
	if r.IsPrivate {
		return "[private]"
	}
	return r.Owner.Login + "/" + r.Name
}

type Branch struct {
	Name string `json:"name"`
}

type Commit struct {
	Additions     int    `json:"additions"`
	Deletions     int    `json:"deletions"`
	CommittedDate string `json:"committedDate"`
	OID           string `json:"oid"`
}

// Viewer returns the authenticated user.
func (c *Client) Viewer(ctx context.Context) (*User, error) {
	res, err := c.Get(ctx, QueryViewer, nil)
	if err != nil {
		return nil, err
	}
	var data struct {
		Viewer struct {
			User
			Repositories struct {
				TotalDiskUsage int64 `json:"totalDiskUsage"`
			} `json:"repositories"`
			PublicRepos struct {
				TotalCount int `json:"totalCount"`
			} `json:"publicRepos"`
			PrivateRepos struct {
				TotalCount int `json:"totalCount"`
			} `json:"privateRepos"`
		} `json:"viewer"`
	}
	if err := decodeData(res, &data); err != nil {
		return nil, fmt.Errorf("failed to decode viewer: %w", err)
	}
	u := data.Viewer.User
	// totalDiskUsage is reported in kilobytes.
	u.DiskUsage = data.Viewer.Repositories.TotalDiskUsage * 1024
	u.PublicRepos = data.Viewer.PublicRepos.TotalCount
	u.PrivateRepos = data.Viewer.PrivateRepos.TotalCount
	return &u, nil
}

// RepositoriesContributedTo lists repositories the user recently committed to,
// their own included.
func (c *Client) RepositoriesContributedTo(ctx context.Context, login string) ([]Repository, error) {
	var repos []Repository
	err := c.nodes(ctx, QueryReposContributedTo, map[string]string{"username": login}, &repos)
	return repos, err
}

// UserRepositories lists non-fork repositories the user owns or collaborates on.
func (c *Client) UserRepositories(ctx context.Context, login string) ([]Repository, error) {
	var repos []Repository
	err := c.nodes(ctx, QueryUserRepositoryList, map[string]string{"username": login}, &repos)
	return repos, err
}

func (c *Client) Branches(ctx context.Context, owner, name string) ([]Branch, error) {
	var branches []Branch
	err := c.nodes(ctx, QueryRepoBranchList, map[string]string{"owner": owner, "name": name}, &branches)
	return branches, err
}

// Commits lists the commits on branch authored by the user with node id authorID.
func (c *Client) Commits(ctx context.Context, owner, name, branch, authorID string) ([]Commit, error) {
	params := map[string]string{"owner": owner, "name": name, "branch": branch, "id": authorID}
	var commits []Commit
	err := c.nodes(ctx, QueryRepoCommitList, params, &commits)
	return commits, err
}

func (c *Client) DefaultBranch(ctx context.Context, owner, name string) (string, error) {
	res, err := c.Get(ctx, QueryRepoDefaultBranch, map[string]string{"owner": owner, "name": name})
	if err != nil {
		return "", err
	}
	var data struct {
		Repository struct {
			DefaultBranchRef *Branch `json:"defaultBranchRef"`
		} `json:"repository"`
	}
	if err := decodeData(res, &data); err != nil {
		return "", fmt.Errorf("failed to decode default branch: %w", err)
	}
	if data.Repository.DefaultBranchRef == nil {
		return "", fmt.Errorf("repository %s/%s has no default branch", owner, name)
	}
	return data.Repository.DefaultBranchRef.Name, nil
}

// ProfileViews returns the total view count of a repository over the last
// fourteen days, as reported by the REST traffic endpoint.
func (c *Client) ProfileViews(ctx context.Context, owner, name string) (int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	url := fmt.Sprintf("%s/repos/%s/%s/traffic/views", c.apiURL, owner, name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("traffic views request failed: %w", err)
	}
	defer resp.Body.Close()
	c.metrics.ObserveRequest("traffic_views", resp.StatusCode)
	if resp.StatusCode != http.StatusOK {
		return 0, &QueryError{Query: "traffic_views", Status: resp.StatusCode, Body: resp.Status}
	}

	var views struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&views); err != nil {
		return 0, fmt.Errorf("failed to decode traffic views: %w", err)
	}
	return views.Count, nil
}

func (c *Client) nodes(ctx context.Context, name string, params map[string]string, out any) error {
	res, err := c.Get(ctx, name, params)
	if err != nil {
		return err
	}
	raw, ok := res.([]json.RawMessage)
	if !ok {
		return fmt.Errorf("query '%s' is not paginated", name)
	}
	buf, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(buf, out); err != nil {
		return fmt.Errorf("failed to decode '%s' nodes: %w", name, err)
	}
	return nil
}

func decodeData(res any, out any) error {
	raw, ok := res.(json.RawMessage)
	if !ok {
		return fmt.Errorf("unexpected result type %T", res)
	}
	if len(raw) == 0 || string(raw) == "null" {
		return fmt.Errorf("empty data")
	}
	return json.Unmarshal(raw, out)
}

// ParseCommitDate parses a committedDate value.
func ParseCommitDate(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
