// Package git drives the git binary to commit and push the updated document.
package git

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// FileChange counts the lines a working tree change adds to and removes from
// one file.
type FileChange struct {
	Path    string
	Added   int
	Deleted int
}

type Author struct {
	Name  string
	Email string
}

func (a Author) String() string {
	return fmt.Sprintf("%s <%s>", a.Name, a.Email)
}

// BotAuthor signs commits that are not made on the user's behalf.
var BotAuthor = Author{Name: "readme-bot", Email: "41898282+github-actions[bot]@users.noreply.github.com"}

// ResolveAuthor picks the commit author. With byMe the explicit name and
// email win over the viewer's login and email; otherwise the bot signs.
func ResolveAuthor(byMe bool, name, email, login, loginEmail string) Author {
	if !byMe {
		return BotAuthor
	}
	if name == "" {
		name = login
	}
	if email == "" {
		email = loginEmail
	}
	if email == "" {
		email = login + "@users.noreply.github.com"
	}
	return Author{Name: name, Email: email}
}

// CloneURL embeds a token into an HTTPS GitHub URL.
func CloneURL(host, token, owner, name string) string {
	if host == "" {
		host = "github.com"
	}
	return fmt.Sprintf("https://x-access-token:%s@%s/%s/%s.git", token, host, owner, name)
}

// Repo is a working tree on disk.
type Repo struct {
	Dir string
}

func Open(dir string) *Repo {
	return &Repo{Dir: dir}
}

// Clone clones url into dir and returns the working tree.
func Clone(ctx context.Context, url, dir string) (*Repo, error) {
	if _, err := run(ctx, "", "clone", url, dir); err != nil {
		return nil, err
	}
	return Open(dir), nil
}

func run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return out, fmt.Errorf("git %s failed: %w: %s", args[0], err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

func (r *Repo) git(ctx context.Context, args ...string) ([]byte, error) {
	return run(ctx, r.Dir, args...)
}

func (r *Repo) CurrentBranch(ctx context.Context) (string, error) {
	out, err := r.git(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// Checkout switches to branch, creating it when it does not exist. An empty
// branch keeps the default branch checked out by the clone.
func (r *Repo) Checkout(ctx context.Context, branch string) error {
	if branch == "" {
		return nil
	}
	if _, err := r.git(ctx, "checkout", branch); err == nil {
		return nil
	}
	_, err := r.git(ctx, "checkout", "-b", branch)
	return err
}

func (r *Repo) Add(ctx context.Context, paths ...string) error {
	_, err := r.git(ctx, append([]string{"add", "--"}, paths...)...)
	return err
}

// Commit records staged changes as author, who is also used as committer.
func (r *Repo) Commit(ctx context.Context, message string, author Author) error {
	_, err := r.git(ctx,
		"-c", "user.name="+author.Name,
		"-c", "user.email="+author.Email,
		"commit", "-m", message, "--author", author.String())
	return err
}

// CommitSingle replaces the history of branch with one orphan commit holding
// the current tree. The branch has to be force pushed afterwards.
func (r *Repo) CommitSingle(ctx context.Context, branch, message string, author Author) error {
	const tmp = "wakareadme-single"
	if _, err := r.git(ctx, "checkout", "--orphan", tmp); err != nil {
		return err
	}
	if _, err := r.git(ctx, "add", "-A"); err != nil {
		return err
	}
	if err := r.Commit(ctx, message, author); err != nil {
		return err
	}
	if _, err := r.git(ctx, "branch", "-M", branch); err != nil {
		return err
	}
	return nil
}

// Push sends branch to origin, an empty branch meaning the current one.
func (r *Repo) Push(ctx context.Context, branch string, force bool) error {
	args := []string{"push"}
	if force {
		args = append(args, "--force")
	}
	args = append(args, "origin")
	if branch == "" {
		args = append(args, "HEAD")
	} else {
		args = append(args, "HEAD:refs/heads/"+branch)
	}
	_, err := r.git(ctx, args...)
	return err
}

// HasChanges reports uncommitted changes in the working tree.
func (r *Repo) HasChanges(ctx context.Context) (bool, error) {
	out, err := r.git(ctx, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return len(bytes.TrimSpace(out)) > 0, nil
}

// ChangedFiles summarises the uncommitted changes of tracked files against HEAD.
func (r *Repo) ChangedFiles(ctx context.Context) ([]FileChange, error) {
	out, err := r.git(ctx, "diff", "-U0", "--no-color", "--no-ext-diff", "HEAD")
	if err != nil {
		return nil, err
	}
	return parseDiff(out)
}

// hunkHeader matches "@@ -old[,len] +new[,len] @@"; an omitted length is 1.
var hunkHeader = regexp.MustCompile(`^@@ -\d+(?:,(\d+))? \+\d+(?:,(\d+))? @@`)

func parseDiff(output []byte) ([]FileChange, error) {
	var (
		changes []FileChange
		oldPath string
		cur     *FileChange
		inHunk  bool
	)
	flush := func() {
		if cur != nil {
			changes = append(changes, *cur)
			cur = nil
		}
	}

	sc := bufio.NewScanner(bytes.NewReader(output))
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "diff --git "):
			flush()
			oldPath, inHunk = "", false
		case inHunk && !strings.HasPrefix(line, "@@"):
			// Hunk bodies may start with "--- " or "+++ " too.
		case strings.HasPrefix(line, "--- "):
			oldPath = strings.TrimPrefix(strings.TrimPrefix(line, "--- "), "a/")
		case strings.HasPrefix(line, "+++ "):
			path := strings.TrimPrefix(line, "+++ ")
			if path == "/dev/null" {
				path = oldPath
			}
			cur = &FileChange{Path: strings.TrimPrefix(path, "b/")}
		case cur != nil && strings.HasPrefix(line, "@@"):
			m := hunkHeader.FindStringSubmatch(line)
			if m == nil {
				return nil, fmt.Errorf("malformed hunk header %q", line)
			}
			cur.Deleted += hunkLength(m[1])
			cur.Added += hunkLength(m[2])
			inHunk = true
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	flush()
	return changes, nil
}

func hunkLength(s string) int {
	if s == "" {
		return 1
	}
	n, _ := strconv.Atoi(s)
	return n
}
