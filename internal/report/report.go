// Package report renders collected statistics into the Markdown block that
// is spliced into the README section.
package report

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"wakareadme/internal/commits"
	"wakareadme/internal/config"
	"wakareadme/internal/github"
	"wakareadme/internal/remote"
	"wakareadme/internal/wakatime"
)

// MaxLanguages caps the languages drawn in the lines of code timeline.
const MaxLanguages = 5

// Statistics is everything a report can draw from. Missing parts are nil and
// the sections that need them are skipped.
type Statistics struct {
	Waka          *wakatime.Stats
	AllTime       *wakatime.AllTime
	Contributions *remote.ContributionStats
	User          *github.User
	Repositories  []github.Repository
	// ContributedTo limits which repositories count towards commit times.
	ContributedTo []github.Repository
	Yearly        commits.YearlyData
	Dates         commits.DateData
	Linguist      map[string]remote.Language
	ProfileViews  int
}

type Assembler struct {
	format     Formatter
	dateFormat string
	now        func() time.Time
}

func NewAssembler(symbolVersion int, dateFormat string) *Assembler {
	return &Assembler{
		format:     NewFormatter(symbolVersion),
		dateFormat: dateFormat,
		now:        time.Now,
	}
}

// Produce renders the enabled sections in a fixed order.
func (a *Assembler) Produce(stats Statistics, opts config.Sections) string {
	var b strings.Builder

	if opts.ProfileViews {
		fmt.Fprintf(&b, "![Profile Views](http://img.shields.io/badge/%s-%d-blue)\n\n", url.PathEscape("Profile Views"), stats.ProfileViews)
	}
	if opts.LinesOfCode && stats.Yearly != nil {
		fmt.Fprintf(&b, "![Lines of code](https://img.shields.io/badge/%s-%s%%20%s-blue)\n\n",
			url.PathEscape("From Hello World I've Written"),
			url.PathEscape(humanize.Comma(int64(stats.Yearly.TotalAdditions()))),
			url.PathEscape("lines of code"))
	}
	if opts.ShortInfo {
		b.WriteString(a.shortInfo(stats))
	}
	if opts.TotalCodeTime && stats.AllTime != nil {
		fmt.Fprintf(&b, "![Code Time](http://img.shields.io/badge/%s-%s-blue)\n\n", url.PathEscape("Code Time"), url.PathEscape(stats.AllTime.Text))
	}
	if opts.Commit || opts.DaysOfWeek {
		b.WriteString(a.commitTimes(stats, opts))
	}
	if opts.Timezone || opts.Language || opts.Editors || opts.Projects || opts.OS {
		b.WriteString(a.wakaBlock(stats.Waka, opts))
	}
	if opts.LanguagePerRepo {
		b.WriteString(a.languagePerRepo(stats.Repositories))
	}
	if opts.LocChart && stats.Yearly != nil {
		b.WriteString(a.locTimeline(stats.Yearly, stats.Linguist))
	}
	if opts.UpdatedDate {
		fmt.Fprintf(&b, "\n Last Updated on %s", a.now().UTC().Format(a.dateFormat))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (a *Assembler) shortInfo(stats Statistics) string {
	var b strings.Builder
	b.WriteString("**🐱 My GitHub Data** \n\n")
	if year, ok := stats.Contributions.LastYear(); ok {
		fmt.Fprintf(&b, "> 🏆 %s Contributions in the Year %s\n > \n", humanize.Comma(int64(year.Total)), year.Year)
	}
	if u := stats.User; u != nil {
		fmt.Fprintf(&b, "> 📦 %s Used in GitHub's Storage \n > \n", humanize.Bytes(uint64(max(u.DiskUsage, 0))))
		if u.IsHireable {
			b.WriteString("> 💼 Opted to Hire\n > \n")
		} else {
			b.WriteString("> 🚫 Not Opted to Hire\n > \n")
		}
		fmt.Fprintf(&b, "> 📜 %d Public %s \n > \n", u.PublicRepos, plural(u.PublicRepos, "Repository", "Repositories"))
		fmt.Fprintf(&b, "> 🔑 %d Owned Private %s \n\n", u.PrivateRepos, plural(u.PrivateRepos, "Repository", "Repositories"))
	}
	return b.String()
}

var dayParts = []string{"🌞 Morning", "🌆 Daytime", "🌃 Evening", "🌙 Night"}

// commitTimes buckets commit dates by time of day and weekday in the
// WakaTime timezone, UTC when it is unknown.
func (a *Assembler) commitTimes(stats Statistics, opts config.Sections) string {
	loc := time.UTC
	if stats.Waka != nil && stats.Waka.Timezone != "" {
		if l, err := time.LoadLocation(stats.Waka.Timezone); err == nil {
			loc = l
		}
	}

	// Night [0,6), Morning [6,12), Daytime [12,18), Evening [18,24).
	var quarters [4]int
	var weekdays [7]int
	for _, repo := range stats.ContributedTo {
		for _, raw := range stats.Dates.Dates(commits.RepoKey(repo)) {
			t, err := github.ParseCommitDate(raw)
			if err != nil {
				continue
			}
			t = t.In(loc)
			quarters[t.Hour()/6]++
			weekdays[t.Weekday()]++
		}
	}
	parts := [4]int{quarters[1], quarters[2], quarters[3], quarters[0]}
	sumDay := parts[0] + parts[1] + parts[2] + parts[3]

	var b strings.Builder
	if opts.Commit {
		entries := make([]Entry, len(parts))
		for i, n := range parts {
			entries[i] = Entry{Name: dayParts[i], Text: fmt.Sprintf("%d commits", n), Percent: percentOf(n, sumDay)}
		}
		title := "I am an Early 🐤"
		if parts[0]+parts[1] < parts[2]+parts[3] {
			title = "I am a Night 🦉"
		}
		fmt.Fprintf(&b, "**%s** \n\n```text\n%s\n```\n", title, a.format.MakeList(entries, 7, false))
	}

	if opts.DaysOfWeek {
		sumWeek := 0
		for _, n := range weekdays {
			sumWeek += n
		}
		entries := make([]Entry, len(weekdays))
		best := 0
		for i, n := range weekdays {
			entries[i] = Entry{Name: time.Weekday(i).String(), Text: fmt.Sprintf("%d commits", n), Percent: percentOf(n, sumWeek)}
			if n > weekdays[best] {
				best = i
			}
		}
		fmt.Fprintf(&b, "📅 **I am Most Productive on %s** \n\n```text\n%s\n```\n", time.Weekday(best), a.format.MakeList(entries, 7, true))
	}
	if b.Len() == 0 {
		return ""
	}
	return b.String() + "\n\n"
}

func (a *Assembler) wakaBlock(stats *wakatime.Stats, opts config.Sections) string {
	if stats == nil || !stats.IsCodingActivityVisible {
		return ""
	}
	const noActivity = "No Activity Tracked This Week"
	list := func(items []wakatime.Item) string {
		if len(items) == 0 {
			return noActivity
		}
		entries := make([]Entry, len(items))
		for i, it := range items {
			entries[i] = Entry{Name: it.Name, Text: it.Text, Percent: it.Percent}
		}
		return a.format.MakeList(entries, defaultTop, true)
	}

	var b strings.Builder
	b.WriteString("📊 **This Week I Spent My Time On** \n\n```text\n")
	if opts.Timezone {
		fmt.Fprintf(&b, "🕑︎ Timezone: %s\n\n", stats.Timezone)
	}
	if opts.Language {
		fmt.Fprintf(&b, "💬 Programming Languages: \n%s\n\n", list(stats.Languages))
	}
	if opts.Editors {
		fmt.Fprintf(&b, "🔥 Editors: \n%s\n\n", list(stats.Editors))
	}
	if opts.Projects {
		fmt.Fprintf(&b, "🐱‍💻 Projects: \n%s\n\n", list(stats.Projects))
	}
	if opts.OS {
		fmt.Fprintf(&b, "💻 Operating System: \n%s\n\n", list(stats.OperatingSystems))
	}
	out := strings.TrimSuffix(b.String(), "\n")
	return out + "```\n\n"
}

type counted struct {
	name  string
	count int
}

// byCount orders by count descending, then by name.
func byCount(m map[string]int) []counted {
	out := make([]counted, 0, len(m))
	for name, n := range m {
		out = append(out, counted{name, n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].name < out[j].name
	})
	return out
}

func (a *Assembler) languagePerRepo(repos []github.Repository) string {
	counts := make(map[string]int)
	total := 0
	for _, r := range repos {
		if lang := r.Language(); lang != "" {
			counts[lang]++
			total++
		}
	}
	if total == 0 {
		return ""
	}

	ranked := byCount(counts)
	entries := make([]Entry, len(ranked))
	for i, c := range ranked {
		entries[i] = Entry{Name: c.name, Text: fmt.Sprintf("%d %s", c.count, plural(c.count, "repo", "repos")), Percent: percentOf(c.count, total)}
	}
	return fmt.Sprintf("**I Mostly Code in %s** \n\n```text\n%s\n```\n\n", ranked[0].name, a.format.MakeList(entries, defaultTop, true))
}

// locTimeline is the text rendition of the yearly lines of code chart: the
// most written languages overall, broken down per year.
func (a *Assembler) locTimeline(yearly commits.YearlyData, linguist map[string]remote.Language) string {
	overall := make(map[string]int)
	for _, year := range yearly.Years() {
		for lang, n := range yearly.LanguageTotals(year) {
			if l, ok := linguist[lang]; ok && l.Type != "" && l.Type != "programming" {
				continue
			}
			overall[lang] += n
		}
	}
	ranked := byCount(overall)
	if len(ranked) == 0 {
		return ""
	}
	if len(ranked) > MaxLanguages {
		ranked = ranked[:MaxLanguages]
	}

	var b strings.Builder
	b.WriteString("**Timeline**\n\n```text\n")
	for _, year := range yearly.Years() {
		totals := yearly.LanguageTotals(year)
		sum := 0
		for _, c := range ranked {
			sum += totals[c.name]
		}
		if sum == 0 {
			continue
		}
		entries := make([]Entry, 0, len(ranked))
		for _, c := range ranked {
			if n := totals[c.name]; n > 0 {
				entries = append(entries, Entry{Name: c.name, Text: humanize.Comma(int64(n)) + " lines", Percent: percentOf(n, sum)})
			}
		}
		fmt.Fprintf(&b, "%d\n%s\n\n", year, a.format.MakeList(entries, MaxLanguages, true))
	}

	var legend []string
	for _, c := range ranked {
		if l, ok := linguist[c.name]; ok && l.Color != "" {
			legend = append(legend, c.name+" "+l.Color)
		}
	}
	if len(legend) > 0 {
		fmt.Fprintf(&b, "Colours: %s\n", strings.Join(legend, ", "))
	}
	return strings.TrimRight(b.String(), "\n") + "\n```\n\n"
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
