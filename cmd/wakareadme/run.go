package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"wakareadme/internal/commits"
	"wakareadme/internal/config"
	"wakareadme/internal/debug"
	"wakareadme/internal/docstore"
	"wakareadme/internal/git"
	"wakareadme/internal/github"
	"wakareadme/internal/metrics"
	"wakareadme/internal/pipeline"
	"wakareadme/internal/remote"
	"wakareadme/internal/storage"
	"wakareadme/internal/wakatime"
)

var (
	workDir   string
	cloneRepo bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch statistics, update the README section and push it",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return runUpdate(cmd.Context(), cfg)
	},
}

func init() {
	runCmd.Flags().StringVarP(&workDir, "workdir", "w", "", "Existing git working tree holding the README")
	runCmd.Flags().BoolVar(&cloneRepo, "clone", false, "Clone the <login>/<login> profile repository and work in it")
}

func runUpdate(ctx context.Context, cfg *config.Config) error {
	log := debug.New(os.Stderr, debug.ParseLevel(cfg.DebugLogging, cfg.LogLevel))
	bench := debug.NewTracker()
	rec := metrics.New()
	httpClient := &http.Client{Timeout: 60 * time.Second}

	fmt.Println("🚀 Starting README statistics update...")

	gh := github.NewClient(cfg.GHToken,
		github.WithAPIURL(cfg.GitHubAPIURL),
		github.WithHTTPClient(httpClient),
		github.WithLogger(log),
		github.WithMetrics(rec),
		github.WithLimiter(rate.NewLimiter(rate.Limit(10), 10)),
	)
	viewer, err := gh.Viewer(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch GitHub user: %w", err)
	}

	loader := remote.NewLoader(httpClient, log, rec)
	defer loader.Close()
	loader.Load(ctx, wakatime.Resources(cfg.WakatimeAPIURL, cfg.WakatimeAPIKey))
	loader.Load(ctx, remote.GitHubResources(viewer.Login))

	waka, err := wakatime.NewClient(loader)
	if err != nil {
		return err
	}

	cache, err := openCache(cfg, viewer.Login)
	if err != nil {
		return err
	}
	defer cache.Close()

	calc := commits.NewCalculator(gh, cache, commits.Options{
		AuthorID:    viewer.ID,
		Ignored:     cfg.IsIgnored,
		Concurrency: cfg.MaxConcurrency,
		DebugRun:    cfg.DebugRun,
		Log:         log,
		Metrics:     rec,
	})

	docs, repo, err := openWorkspace(ctx, cfg, viewer.Login)
	if err != nil {
		return err
	}

	runner := pipeline.NewRunner(cfg, pipeline.Deps{
		Waka:      waka,
		GitHub:    gh,
		Resources: loader,
		Commits:   calc,
		Docs:      docs,
		Repo:      repo,
		Log:       log,
		Bench:     bench,
		Metrics:   rec,
		Out:       os.Stdout,
	})
	out, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("✨ Run %s finished (changed=%t, pushed=%t).\n", out.RunID, out.Changed, out.Pushed)
	return nil
}

func openCache(cfg *config.Config, owner string) (storage.Cache, error) {
	ttl := time.Duration(cfg.CacheTTLDays) * 24 * time.Hour
	if !cfg.UseCache {
		return storage.NewMemoryStore(ttl), nil
	}
	store, err := storage.NewSQLiteStore(cfg.CachePath, owner, ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	return store, nil
}

// openWorkspace returns the document store and, when the document lives in a
// git working tree, the repository to commit to.
func openWorkspace(ctx context.Context, cfg *config.Config, login string) (docstore.Store, pipeline.Committer, error) {
	switch {
	case workDir != "":
		return docstore.NewFSStore(workDir), git.Open(workDir), nil
	case cloneRepo:
		dir := filepath.Join(os.TempDir(), "wakareadme-"+login)
		if err := os.RemoveAll(dir); err != nil {
			return nil, nil, err
		}
		fmt.Printf("📥 Cloning %s/%s...\n", login, login)
		repo, err := git.Clone(ctx, git.CloneURL("", cfg.GHToken, login, login), dir)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to clone profile repository: %w", err)
		}
		return docstore.NewFSStore(dir), repo, nil
	default:
		docs, err := docstore.Open(ctx, cfg.Store)
		if err != nil {
			return nil, nil, err
		}
		return docs, nil, nil
	}
}
