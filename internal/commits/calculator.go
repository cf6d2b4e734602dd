// Package commits aggregates a user's commit history into yearly line
// counts per language and per-commit timestamps.
package commits

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"wakareadme/internal/debug"
	"wakareadme/internal/github"
	"wakareadme/internal/metrics"
	"wakareadme/internal/storage"
)

// fullResultKey holds the whole calculation for debug runs.
const fullResultKey = "commits_data"

// Source lists branches and commits of a repository.
type Source interface {
	Branches(ctx context.Context, owner, name string) ([]github.Branch, error)
	Commits(ctx context.Context, owner, name, branch, authorID string) ([]github.Commit, error)
}

type Options struct {
	// AuthorID is the GitHub node id whose commits are counted.
	AuthorID    string
	Ignored     func(repo string) bool
	Concurrency int
	DebugRun    bool
	Log         *debug.Logger
	Metrics     *metrics.Recorder
}

type Calculator struct {
	source Source
	cache  storage.Cache
	opts   Options
}

// Result is the cached shape of one repository or of a full run.
type Result struct {
	Yearly YearlyData `json:"yearly_data"`
	Dates  DateData   `json:"date_data"`
}

// NewCalculator builds a calculator. cache may be nil to disable caching.
func NewCalculator(source Source, cache storage.Cache, opts Options) *Calculator {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Ignored == nil {
		opts.Ignored = func(string) bool { return false }
	}
	return &Calculator{source: source, cache: cache, opts: opts}
}

func cacheKey(repo github.Repository) string {
	return RepoKey(repo) + "_commits"
}

// Calculate walks every branch of every repository not ignored and sums the
// additions and deletions of the author's commits under the repository's
// primary language.
func (c *Calculator) Calculate(ctx context.Context, repos []github.Repository) (YearlyData, DateData, error) {
	log := c.opts.Log
	log.Info("Calculating commit data...")

	if c.opts.DebugRun {
		if res, ok := c.cached(ctx, fullResultKey); ok {
			if at, ok, err := c.cache.LastModified(ctx, fullResultKey); err == nil && ok {
				log.Good("Commit data restored from cache (saved %s)!", at.UTC().Format(time.RFC3339))
			} else {
				log.Good("Commit data restored from cache!")
			}
			return res.Yearly, res.Dates, nil
		}
		log.Warn("No cached commit data found, recalculating...")
	}

	var active []github.Repository
	for _, repo := range repos {
		if c.opts.Ignored(repo.Name) {
			log.Trace("Skipping ignored repository %s", repo.DisplayName())
			continue
		}
		active = append(active, repo)
	}

	total := Result{Yearly: YearlyData{}, Dates: DateData{}}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Concurrency)
	for i, repo := range active {
		g.Go(func() error {
			res, err := c.repository(gctx, repo, i, len(active))
			if err != nil {
				return fmt.Errorf("failed to calculate commits of %s: %w", repo.DisplayName(), err)
			}
			mu.Lock()
			total.Yearly.Merge(res.Yearly)
			total.Dates.Merge(res.Dates)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	log.Good("Commit data calculated!")

	if c.opts.DebugRun && c.cache != nil {
		if err := c.cache.Put(ctx, fullResultKey, total); err != nil {
			log.Warn("Failed to cache commit data: %v", err)
		} else {
			log.Good("Commit data saved to cache!")
		}
	}
	return total.Yearly, total.Dates, nil
}

func (c *Calculator) repository(ctx context.Context, repo github.Repository, idx, total int) (Result, error) {
	log := c.opts.Log
	key := cacheKey(repo)

	if res, ok := c.cached(ctx, key); ok {
		log.Info("\t%d/%d Using cached data for repo: %s", idx+1, total, repo.DisplayName())
		return res, nil
	}
	log.Info("\t%d/%d Retrieving repo: %s", idx+1, total, repo.DisplayName())

	res := Result{Yearly: YearlyData{}, Dates: DateData{}}
	branches, err := c.source.Branches(ctx, repo.Owner.Login, repo.Name)
	if err != nil {
		return res, err
	}
	if len(branches) == 0 {
		log.Warn("\t\tBranch data not found, skipping repository...")
		return res, nil
	}

	lang := repo.Language()
	for _, branch := range branches {
		list, err := c.source.Commits(ctx, repo.Owner.Login, repo.Name, branch.Name, c.opts.AuthorID)
		if err != nil {
			return res, err
		}
		for _, commit := range list {
			when, err := github.ParseCommitDate(commit.CommittedDate)
			if err != nil {
				log.Warn("\t\tSkipping commit %s with bad date %q", commit.OID, commit.CommittedDate)
				continue
			}
			res.Dates.Set(RepoKey(repo), branch.Name, commit.OID, commit.CommittedDate)
			if lang != "" {
				res.Yearly.Add(when.Year(), Quarter(when), lang, commit.Additions, commit.Deletions)
			}
		}
	}

	if c.cache != nil {
		if err := c.cache.Put(ctx, key, res); err != nil {
			log.Warn("Failed to cache commits of %s: %v", repo.DisplayName(), err)
		}
	}
	return res, nil
}

func (c *Calculator) cached(ctx context.Context, key string) (Result, bool) {
	if c.cache == nil {
		return Result{}, false
	}
	raw, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.opts.Log.Warn("Cache lookup for %s failed: %v", key, err)
	}
	c.opts.Metrics.ObserveCache(ok)
	if !ok {
		return Result{}, false
	}

	var res Result
	if err := json.Unmarshal(raw, &res); err != nil {
		c.opts.Log.Warn("Discarding unreadable cache entry %s: %v", key, err)
		return Result{}, false
	}
	if res.Yearly == nil {
		res.Yearly = YearlyData{}
	}
	if res.Dates == nil {
		res.Dates = DateData{}
	}
	return res, true
}
