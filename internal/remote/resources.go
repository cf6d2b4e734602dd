package remote

import (
	"context"
	"errors"
	"fmt"
	"net/url"
)

// Static resource names.
const (
	ResourceLinguist      = "linguist"
	ResourceContributions = "github_stats"
)

const (
	linguistURL      = "https://cdn.jsdelivr.net/gh/github/linguist@master/lib/linguist/languages.yml"
	contributionsURL = "https://github-contributions.vercel.app/api/v1/"
)

// GitHubResources returns the static resources that depend on the user login.
func GitHubResources(login string) map[string]string {
	return map[string]string{
		ResourceLinguist:      linguistURL,
		ResourceContributions: contributionsURL + url.PathEscape(login),
	}
}

// Language is one entry of the linguist languages.yml table.
type Language struct {
	Type  string `yaml:"type"`
	Color string `yaml:"color"`
}

// ContributionYear is the yearly total reported by github-contributions.
type ContributionYear struct {
	Year  string `json:"year"`
	Total int    `json:"total"`
}

type ContributionStats struct {
	Years []ContributionYear `json:"years"`
}

// LastYear returns the contribution count of the most recent year, if any.
func (c *ContributionStats) LastYear() (ContributionYear, bool) {
	if c == nil || len(c.Years) == 0 {
		return ContributionYear{}, false
	}
	return c.Years[0], true
}

// Languages reads the linguist table. A table that is still being computed
// yields an empty map.
func (l *Loader) Languages(ctx context.Context) (map[string]Language, error) {
	langs := map[string]Language{}
	if err := l.YAML(ctx, ResourceLinguist, &langs); err != nil {
		if errors.Is(err, ErrNotReady) {
			return map[string]Language{}, nil
		}
		return nil, fmt.Errorf("failed to load linguist languages: %w", err)
	}
	return langs, nil
}

// Contributions reads the contribution counts. Nil means not ready.
func (l *Loader) Contributions(ctx context.Context) (*ContributionStats, error) {
	var stats ContributionStats
	if err := l.JSON(ctx, ResourceContributions, &stats); err != nil {
		if errors.Is(err, ErrNotReady) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load contributions: %w", err)
	}
	return &stats, nil
}
