package commits

import (
	"sort"
	"time"

	"wakareadme/internal/github"
)

// Lines counts added and deleted lines.
type Lines struct {
	Add int `json:"add"`
	Del int `json:"del"`
}

// YearlyData maps year -> quarter (1..4) -> language -> line counts.
type YearlyData map[int]map[int]map[string]*Lines

// DateData maps repository (see RepoKey) -> branch -> commit oid -> committed date.
type DateData map[string]map[string]map[string]string

// Quarter returns the calendar quarter of t, 1 through 4.
func Quarter(t time.Time) int {
	return (int(t.Month())-1)/3 + 1
}

func (y YearlyData) Add(year, quarter int, language string, add, del int) {
	quarters, ok := y[year]
	if !ok {
		quarters = make(map[int]map[string]*Lines)
		y[year] = quarters
	}
	langs, ok := quarters[quarter]
	if !ok {
		langs = make(map[string]*Lines)
		quarters[quarter] = langs
	}
	l, ok := langs[language]
	if !ok {
		l = &Lines{}
		langs[language] = l
	}
	l.Add += add
	l.Del += del
}

func (y YearlyData) Merge(other YearlyData) {
	for year, quarters := range other {
		for quarter, langs := range quarters {
			for lang, l := range langs {
				y.Add(year, quarter, lang, l.Add, l.Del)
			}
		}
	}
}

// TotalAdditions sums additions over every year, quarter and language.
func (y YearlyData) TotalAdditions() int {
	total := 0
	for _, quarters := range y {
		for _, langs := range quarters {
			for _, l := range langs {
				total += l.Add
			}
		}
	}
	return total
}

// Years returns the recorded years in ascending order.
func (y YearlyData) Years() []int {
	years := make([]int, 0, len(y))
	for year := range y {
		years = append(years, year)
	}
	sort.Ints(years)
	return years
}

// LanguageTotals sums additions per language for one year.
func (y YearlyData) LanguageTotals(year int) map[string]int {
	out := make(map[string]int)
	for _, langs := range y[year] {
		for lang, l := range langs {
			out[lang] += l.Add
		}
	}
	return out
}

// RepoKey identifies a repository in DateData and in the cache.
func RepoKey(repo github.Repository) string {
	return repo.Owner.Login + "/" + repo.Name
}

func (d DateData) Set(repo, branch, oid, date string) {
	branches, ok := d[repo]
	if !ok {
		branches = make(map[string]map[string]string)
		d[repo] = branches
	}
	commits, ok := branches[branch]
	if !ok {
		commits = make(map[string]string)
		branches[branch] = commits
	}
	commits[oid] = date
}

func (d DateData) Merge(other DateData) {
	for repo, branches := range other {
		for branch, commits := range branches {
			for oid, date := range commits {
				d.Set(repo, branch, oid, date)
			}
		}
	}
}

// Dates returns every distinct commit date of the repository keyed repo, deduplicated by oid across branches.
func (d DateData) Dates(repo string) []string {
	seen := make(map[string]string)
	for _, commits := range d[repo] {
		for oid, date := range commits {
			seen[oid] = date
		}
	}
	out := make([]string, 0, len(seen))
	for _, date := range seen {
		out = append(out, date)
	}
	sort.Strings(out)
	return out
}
