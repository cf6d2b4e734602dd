// Package pipeline runs one update: fetch statistics, render the report,
// patch it into the document and commit the result.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"wakareadme/internal/commits"
	"wakareadme/internal/config"
	"wakareadme/internal/debug"
	"wakareadme/internal/docstore"
	"wakareadme/internal/git"
	"wakareadme/internal/github"
	"wakareadme/internal/metrics"
	"wakareadme/internal/remote"
	"wakareadme/internal/report"
	"wakareadme/internal/section"
	"wakareadme/internal/wakatime"
)

// OutputName is the GitHub Actions output carrying the rendered block.
const OutputName = "README_STATS"

type WakaSource interface {
	Stats(ctx context.Context) (*wakatime.Stats, error)
	AllTime(ctx context.Context) (*wakatime.AllTime, error)
}

type GitHubSource interface {
	commits.Source
	Viewer(ctx context.Context) (*github.User, error)
	UserRepositories(ctx context.Context, login string) ([]github.Repository, error)
	RepositoriesContributedTo(ctx context.Context, login string) ([]github.Repository, error)
	ProfileViews(ctx context.Context, owner, name string) (int, error)
	DefaultBranch(ctx context.Context, owner, name string) (string, error)
}

type ResourceSource interface {
	Languages(ctx context.Context) (map[string]remote.Language, error)
	Contributions(ctx context.Context) (*remote.ContributionStats, error)
}

// Committer is the git working tree holding the document.
type Committer interface {
	CurrentBranch(ctx context.Context) (string, error)
	Checkout(ctx context.Context, branch string) error
	Add(ctx context.Context, paths ...string) error
	Commit(ctx context.Context, message string, author git.Author) error
	CommitSingle(ctx context.Context, branch, message string, author git.Author) error
	Push(ctx context.Context, branch string, force bool) error
	HasChanges(ctx context.Context) (bool, error)
	ChangedFiles(ctx context.Context) ([]git.FileChange, error)
}

// Deps are the collaborators of a run. Repo may be nil when the document
// store is not a git working tree.
type Deps struct {
	Waka      WakaSource
	GitHub    GitHubSource
	Resources ResourceSource
	Commits   *commits.Calculator
	Docs      docstore.Store
	Repo      Committer
	Log       *debug.Logger
	Bench     *debug.Tracker
	Metrics   *metrics.Recorder
	// Out receives progress lines and the debug run diff.
	Out io.Writer
}

type Runner struct {
	cfg    *config.Config
	deps   Deps
	report *RunReport
	now    func() time.Time
	getenv func(string) string
}

// Outcome summarises a finished run.
type Outcome struct {
	RunID    string
	Block    string
	Document string
	Changed  bool
	Pushed   bool
	Diff     string
}

func NewRunner(cfg *config.Config, deps Deps) *Runner {
	if deps.Out == nil {
		deps.Out = io.Discard
	}
	mode := "update"
	if cfg.DebugRun {
		mode = "debug"
	}
	return &Runner{
		cfg:    cfg,
		deps:   deps,
		report: NewRunReport(mode, cfg.ReadmePath, cfg.SectionName, deps.Metrics),
		now:    time.Now,
		getenv: os.Getenv,
	}
}

func (r *Runner) Report() *RunReport { return r.report }

// Run executes every stage. Outputs (GitHub output, run report, metrics) are
// written even when a stage fails.
func (r *Runner) Run(ctx context.Context) (*Outcome, error) {
	out := &Outcome{RunID: r.report.RunID}
	err := r.run(ctx, out)

	r.report.Summary.DocumentChanged = out.Changed
	r.report.Summary.Pushed = out.Pushed
	r.deps.Metrics.SetDocumentChanged(out.Changed)
	r.deps.Metrics.MarkFinished(r.now())

	if oerr := r.outputsStage(out); oerr != nil && err == nil {
		err = oerr
	}
	return out, err
}

func (r *Runner) run(ctx context.Context, out *Outcome) error {
	stats, err := r.fetchStage(ctx)
	if err != nil {
		return err
	}
	if err := r.commitsStage(ctx, stats); err != nil {
		return err
	}

	h := r.report.BeginStage("assemble")
	assembler := report.NewAssembler(r.cfg.SymbolVersion, r.cfg.UpdatedDateFormat)
	out.Block = assembler.Produce(*stats, r.cfg.Sections)
	r.report.EndStage(h, "ok", map[string]float64{"block_bytes": float64(len(out.Block))}, nil, nil)
	fmt.Fprintln(r.deps.Out, "📝 Report assembled.")

	previous, err := r.patchStage(ctx, stats.User, out)
	if err != nil {
		return err
	}
	if !out.Changed {
		fmt.Fprintln(r.deps.Out, "✅ No changes detected.")
		return nil
	}
	return r.persistStage(ctx, stats.User, previous, out)
}

func (r *Runner) fetchStage(ctx context.Context) (*report.Statistics, error) {
	h := r.report.BeginStage("fetch")
	stats, counters, err := r.fetch(ctx)
	r.report.EndStage(h, "ok", counters, nil, err)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(r.deps.Out, "📡 Fetched statistics for %s.\n", stats.User.Login)
	return stats, nil
}

func (r *Runner) fetch(ctx context.Context) (*report.Statistics, map[string]float64, error) {
	sec := r.cfg.Sections
	log := r.deps.Log
	stats := &report.Statistics{}
	counters := map[string]float64{}

	done := r.deps.Bench.Start("Fetch Viewer", nil)
	user, err := r.deps.GitHub.Viewer(ctx)
	done()
	if err != nil {
		return nil, counters, fmt.Errorf("failed to fetch GitHub user: %w", err)
	}
	stats.User = user
	log.Good("User %s fetched.", user.Login)

	needCommits := sec.LinesOfCode || sec.LocChart || sec.Commit || sec.DaysOfWeek
	needWaka := sec.Commit || sec.DaysOfWeek || sec.Timezone || sec.Language || sec.Editors || sec.Projects || sec.OS

	if needWaka {
		done := r.deps.Bench.Start("Fetch WakaTime Stats", nil)
		stats.Waka, err = r.deps.Waka.Stats(ctx)
		done()
		if errors.Is(err, remote.ErrNotReady) {
			log.Warn("WakaTime stats are still being calculated.")
			r.report.AddSignal("waka_not_ready", "fetch", "warning", "WakaTime stats are still being calculated", 0)
		} else if err != nil {
			return nil, counters, fmt.Errorf("failed to fetch WakaTime stats: %w", err)
		}
	}
	if sec.TotalCodeTime {
		stats.AllTime, err = r.deps.Waka.AllTime(ctx)
		if errors.Is(err, remote.ErrNotReady) {
			r.report.AddSignal("waka_all_time_not_ready", "fetch", "warning", "WakaTime all time stats are still being calculated", 0)
		} else if err != nil {
			return nil, counters, fmt.Errorf("failed to fetch WakaTime all time stats: %w", err)
		}
	}

	if needCommits || sec.LanguagePerRepo {
		done := r.deps.Bench.Start("Fetch Repositories", nil)
		stats.Repositories, err = r.deps.GitHub.UserRepositories(ctx, user.Login)
		done()
		if err != nil {
			return nil, counters, fmt.Errorf("failed to list repositories: %w", err)
		}
		counters["repositories"] = float64(len(stats.Repositories))
	}
	if sec.Commit || sec.DaysOfWeek {
		stats.ContributedTo, err = r.deps.GitHub.RepositoriesContributedTo(ctx, user.Login)
		if err != nil {
			return nil, counters, fmt.Errorf("failed to list contributed repositories: %w", err)
		}
		counters["contributed_repositories"] = float64(len(stats.ContributedTo))
	}

	if sec.ShortInfo {
		stats.Contributions, err = r.deps.Resources.Contributions(ctx)
		if err != nil {
			return nil, counters, err
		}
		if stats.Contributions == nil {
			r.report.AddSignal("contributions_not_ready", "fetch", "info", "contribution counts are not available yet", 0)
		}
	}
	if sec.LocChart {
		stats.Linguist, err = r.deps.Resources.Languages(ctx)
		if err != nil {
			return nil, counters, err
		}
		counters["linguist_languages"] = float64(len(stats.Linguist))
	}
	if sec.ProfileViews {
		stats.ProfileViews, err = r.deps.GitHub.ProfileViews(ctx, user.Login, user.Login)
		if err != nil {
			// Traffic needs push access to the profile repository.
			log.Warn("Profile views unavailable: %v", err)
			r.report.AddSignal("profile_views_unavailable", "fetch", "warning", err.Error(), 0)
		}
	}
	return stats, counters, nil
}

func (r *Runner) commitsStage(ctx context.Context, stats *report.Statistics) error {
	sec := r.cfg.Sections
	h := r.report.BeginStage("commits")
	if !(sec.LinesOfCode || sec.LocChart || sec.Commit || sec.DaysOfWeek) || r.deps.Commits == nil {
		r.report.EndStage(h, "skipped", nil, []string{"no section needs commit data"}, nil)
		return nil
	}

	done := r.deps.Bench.Start("Calculate Commit Data", map[string]string{"repositories": fmt.Sprint(len(stats.Repositories))})
	yearly, dates, err := r.deps.Commits.Calculate(ctx, stats.Repositories)
	done()
	if err != nil {
		r.report.EndStage(h, "error", nil, nil, err)
		return err
	}
	stats.Yearly, stats.Dates = yearly, dates
	r.report.EndStage(h, "ok", map[string]float64{
		"years":     float64(len(yearly)),
		"additions": float64(yearly.TotalAdditions()),
	}, nil, nil)
	return nil
}

// patchStage splices the block into the document and returns the original
// text. A git working tree is first moved to the pull branch, or to the
// default branch of the profile repository when none is configured.
func (r *Runner) patchStage(ctx context.Context, user *github.User, out *Outcome) (string, error) {
	h := r.report.BeginStage("patch")
	if r.deps.Repo != nil {
		branch := r.cfg.PullBranchName
		if branch == "" {
			var err error
			if branch, err = r.deps.GitHub.DefaultBranch(ctx, user.Login, user.Login); err != nil {
				r.report.EndStage(h, "error", nil, nil, err)
				return "", fmt.Errorf("failed to resolve default branch of %s/%s: %w", user.Login, user.Login, err)
			}
		}
		if err := r.deps.Repo.Checkout(ctx, branch); err != nil {
			r.report.EndStage(h, "error", nil, nil, err)
			return "", fmt.Errorf("failed to checkout %s: %w", branch, err)
		}
	}

	doc, err := r.deps.Docs.Load(ctx, r.cfg.ReadmePath)
	if err != nil {
		r.report.EndStage(h, "error", nil, nil, err)
		return "", err
	}

	start, end := section.Markers(r.cfg.SectionName)
	res, err := section.Apply(doc, start, end, section.MatchLineEndings(doc, out.Block))
	if err != nil {
		if names := section.Names(doc); len(names) > 0 {
			r.deps.Log.Problem("Sections present in %s: %s", r.cfg.ReadmePath, strings.Join(names, ", "))
		}
		r.report.AddSignal("section_invalid", "patch", "critical", err.Error(), 0)
		r.report.EndStage(h, "error", nil, nil, err)
		return "", fmt.Errorf("failed to patch %s: %w", r.cfg.ReadmePath, err)
	}
	out.Document = res.Document
	out.Changed = res.Changed
	r.report.EndStage(h, "ok", map[string]float64{"changed": boolValue(res.Changed)}, nil, nil)
	return doc, nil
}

func (r *Runner) persistStage(ctx context.Context, user *github.User, previous string, out *Outcome) error {
	h := r.report.BeginStage("persist")

	if r.cfg.DebugRun {
		out.Diff = documentDiff(previous, out.Document)
		fmt.Fprintf(r.deps.Out, "🔍 Debug run, %s is not pushed. Diff:\n%s\n", r.cfg.ReadmePath, out.Diff)
		r.report.EndStage(h, "skipped", nil, []string{"debug run"}, nil)
		return nil
	}

	if err := r.deps.Docs.Save(ctx, r.cfg.ReadmePath, out.Document); err != nil {
		r.report.EndStage(h, "error", nil, nil, err)
		return fmt.Errorf("failed to save %s: %w", r.cfg.ReadmePath, err)
	}
	fmt.Fprintf(r.deps.Out, "💾 Saved %s.\n", r.cfg.ReadmePath)

	if r.deps.Repo == nil {
		r.report.EndStage(h, "ok", nil, []string{"document store is not a git working tree"}, nil)
		return nil
	}

	counters := map[string]float64{}
	pushed, err := r.commitAndPush(ctx, user, counters)
	out.Pushed = pushed
	counters["pushed"] = boolValue(pushed)
	r.report.EndStage(h, "ok", counters, nil, err)
	return err
}

func (r *Runner) commitAndPush(ctx context.Context, user *github.User, counters map[string]float64) (bool, error) {
	repo := r.deps.Repo
	author := git.ResolveAuthor(r.cfg.CommitByMe, r.cfg.CommitUsername, r.cfg.CommitEmail, user.Login, user.Email)

	dirty, err := repo.HasChanges(ctx)
	if err != nil {
		return false, err
	}
	if !dirty {
		r.deps.Log.Warn("Working tree is clean after saving, nothing to commit.")
		return false, nil
	}

	changes, err := repo.ChangedFiles(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to inspect working tree: %w", err)
	}
	target := path.Clean(filepath.ToSlash(r.cfg.ReadmePath))
	var unrelated []string
	for _, c := range changes {
		if c.Path == target {
			counters["lines_added"] += float64(c.Added)
			counters["lines_deleted"] += float64(c.Deleted)
			continue
		}
		unrelated = append(unrelated, c.Path)
	}
	if len(unrelated) > 0 {
		msg := "working tree has other changes: " + strings.Join(unrelated, ", ")
		r.deps.Log.Warn("%s", msg)
		r.report.AddSignal("unrelated_changes", "persist", "warning", msg, float64(len(unrelated)))
		if r.cfg.CommitSingle {
			// The single commit snapshots the whole tree.
			return false, errors.New("refusing to squash " + msg)
		}
	}

	if r.cfg.CommitSingle {
		branch := r.cfg.PushBranchName
		if branch == "" {
			branch = r.cfg.PullBranchName
		}
		if branch == "" {
			if branch, err = repo.CurrentBranch(ctx); err != nil {
				return false, err
			}
		}
		if err := repo.CommitSingle(ctx, branch, r.cfg.CommitMessage, author); err != nil {
			return false, fmt.Errorf("failed to commit: %w", err)
		}
		if err := repo.Push(ctx, r.cfg.PushBranchName, true); err != nil {
			return false, fmt.Errorf("failed to push: %w", err)
		}
	} else {
		if err := repo.Add(ctx, r.cfg.ReadmePath); err != nil {
			return false, fmt.Errorf("failed to stage %s: %w", r.cfg.ReadmePath, err)
		}
		if err := repo.Commit(ctx, r.cfg.CommitMessage, author); err != nil {
			return false, fmt.Errorf("failed to commit: %w", err)
		}
		if err := repo.Push(ctx, r.cfg.PushBranchName, false); err != nil {
			return false, fmt.Errorf("failed to push: %w", err)
		}
	}
	fmt.Fprintf(r.deps.Out, "🚀 Pushed as %s.\n", author)
	return true, nil
}

func (r *Runner) outputsStage(out *Outcome) error {
	h := r.report.BeginStage("outputs")
	var errs []error

	if path := r.getenv("GITHUB_OUTPUT"); path != "" && out.Block != "" {
		if err := writeGitHubOutput(path, OutputName, out.Block); err != nil {
			errs = append(errs, fmt.Errorf("failed to write GitHub output: %w", err))
		}
	} else if out.Block != "" {
		r.deps.Log.Info("Rendered block:\n%s", out.Block)
	}

	if r.cfg.MetricsTextfile != "" {
		if err := r.deps.Metrics.WriteTextfile(r.cfg.MetricsTextfile); err != nil {
			errs = append(errs, fmt.Errorf("failed to write metrics: %w", err))
		}
	}

	err := errors.Join(errs...)
	r.report.EndStage(h, "ok", nil, nil, err)

	if r.cfg.ReportPath != "" {
		if serr := r.report.Save(r.cfg.ReportPath); serr != nil {
			err = errors.Join(err, fmt.Errorf("failed to save run report: %w", serr))
		}
	}
	r.deps.Log.Trace("%s", r.deps.Bench.Summary())
	return err
}

// writeGitHubOutput appends a multi-line value using a random heredoc delimiter.
func writeGitHubOutput(path, name, value string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	delim := "EOF_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	_, werr := fmt.Fprintf(f, "%s<<%s\n%s\n%s\n", name, delim, value, delim)
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	return werr
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
