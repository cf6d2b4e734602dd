package report

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wakareadme/internal/commits"
	"wakareadme/internal/config"
	"wakareadme/internal/github"
	"wakareadme/internal/remote"
	"wakareadme/internal/wakatime"
)

func TestSymbols(t *testing.T) {
	cases := map[int][2]string{1: {"█", "░"}, 2: {"⣿", "⣀"}, 3: {"⬛", "⬜"}, 9: {"█", "░"}}
	for v, want := range cases {
		done, empty := Symbols(v)
		assert.Equal(t, want[0], done)
		assert.Equal(t, want[1], empty)
	}
}

func TestMakeGraph(t *testing.T) {
	f := NewFormatter(1)
	assert.Equal(t, strings.Repeat("░", 25), f.MakeGraph(0))
	assert.Equal(t, strings.Repeat("█", 25), f.MakeGraph(100))
	// 12.5 rounds half to even.
	assert.Equal(t, strings.Repeat("█", 12)+strings.Repeat("░", 13), f.MakeGraph(50))
	assert.Equal(t, strings.Repeat("█", 14)+strings.Repeat("░", 11), f.MakeGraph(54))
	assert.Equal(t, strings.Repeat("█", 25), f.MakeGraph(140))
}

func TestMakeListLayout(t *testing.T) {
	f := NewFormatter(1)
	out := f.MakeList([]Entry{{Name: "Go", Text: "10 hrs", Percent: 50}}, 5, false)

	want := "Go" + strings.Repeat(" ", 23) + "10 hrs" + strings.Repeat(" ", 14) + f.MakeGraph(50) + "   50.00 % "
	assert.Equal(t, want, out)
}

func TestMakeListSortsAndLimits(t *testing.T) {
	f := NewFormatter(2)
	entries := []Entry{
		{Name: "Java", Text: "3 hrs", Percent: 20},
		{Name: "Python", Text: "10 hrs", Percent: 50},
		{Name: "JavaScript", Text: "5 hrs", Percent: 30},
		{Name: "C", Text: "1 hr", Percent: 5},
	}

	lines := strings.Split(f.MakeList(entries, 3, true), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "Python "))
	assert.True(t, strings.HasPrefix(lines[1], "JavaScript "))
	assert.True(t, strings.HasPrefix(lines[2], "Java "))

	unsorted := strings.Split(f.MakeList(entries, 0, false), "\n")
	require.Len(t, unsorted, 4)
	assert.True(t, strings.HasPrefix(unsorted[0], "Java "))
	assert.Contains(t, unsorted[3], "05.00 %")
}

func TestMakeListTruncatesLongNames(t *testing.T) {
	f := NewFormatter(1)
	out := f.MakeList([]Entry{{Name: strings.Repeat("A", 50), Text: "t", Percent: 1}}, 5, false)
	assert.True(t, strings.HasPrefix(out, strings.Repeat("A", 25)+"t"))
}

func repoWith(name, lang string) github.Repository {
	r := github.Repository{Name: name, Owner: github.Owner{Login: "octo"}}
	if lang != "" {
		r.PrimaryLanguage = &github.Language{Name: lang}
	}
	return r
}

func fixedAssembler() *Assembler {
	a := NewAssembler(1, "2006-01-02")
	a.now = func() time.Time { return time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC) }
	return a
}

func TestLanguagePerRepo(t *testing.T) {
	a := fixedAssembler()
	out := a.Produce(Statistics{Repositories: []github.Repository{
		repoWith("a", "Python"), repoWith("b", "Python"), repoWith("c", "Go"), repoWith("d", ""),
	}}, config.Sections{LanguagePerRepo: true})

	assert.Contains(t, out, "**I Mostly Code in Python**")
	assert.Contains(t, out, "2 repos")
	assert.Contains(t, out, "1 repo ")
	assert.Contains(t, out, "66.67 %")
}

func TestLanguagePerRepoWithoutLanguages(t *testing.T) {
	a := fixedAssembler()
	out := a.Produce(Statistics{Repositories: []github.Repository{repoWith("a", "")}}, config.Sections{LanguagePerRepo: true})
	assert.Empty(t, out)
}

func TestCommitTimes(t *testing.T) {
	dates := commits.DateData{}
	dates.Set("octo/repo1", "main", "c1", "2023-01-15T10:30:00Z") // Sunday morning
	dates.Set("octo/repo1", "main", "c2", "2023-01-15T14:30:00Z") // Sunday daytime
	dates.Set("octo/repo1", "dev", "c3", "2023-01-16T20:30:00Z")  // Monday evening
	dates.Set("acme/repo1", "main", "c4", "2023-01-16T02:00:00Z") // same name, other owner

	a := fixedAssembler()
	out := a.Produce(Statistics{
		Waka:          &wakatime.Stats{Timezone: "UTC"},
		ContributedTo: []github.Repository{repoWith("repo1", "Go")},
		Dates:         dates,
	}, config.Sections{Commit: true, DaysOfWeek: true})

	assert.Contains(t, out, "**I am an Early 🐤**")
	assert.Contains(t, out, "🌞 Morning")
	assert.Contains(t, out, "1 commits")
	assert.Contains(t, out, "0 commits")
	assert.Contains(t, out, "📅 **I am Most Productive on Sunday**")
	assert.Contains(t, out, "66.67 %")
}

func TestCommitTimesNight(t *testing.T) {
	dates := commits.DateData{}
	dates.Set("octo/r", "main", "c1", "2023-01-15T23:30:00Z")
	dates.Set("octo/r", "main", "c2", "2023-01-16T03:00:00Z")

	out := fixedAssembler().Produce(Statistics{
		ContributedTo: []github.Repository{repoWith("r", "")},
		Dates:         dates,
	}, config.Sections{Commit: true})

	assert.Contains(t, out, "**I am a Night 🦉**")
	assert.NotContains(t, out, "Most Productive")
}

func TestWakaBlock(t *testing.T) {
	stats := &wakatime.Stats{
		Timezone:                "Europe/Berlin",
		IsCodingActivityVisible: true,
		Languages:               []wakatime.Item{{Name: "Go", Text: "3 hrs", Percent: 75}, {Name: "YAML", Text: "1 hr", Percent: 25}},
	}
	out := fixedAssembler().Produce(Statistics{Waka: stats}, config.Sections{Timezone: true, Language: true, Editors: true})

	assert.True(t, strings.HasPrefix(out, "📊 **This Week I Spent My Time On** \n\n```text\n"))
	assert.Contains(t, out, "🕑︎ Timezone: Europe/Berlin")
	assert.Contains(t, out, "💬 Programming Languages: \nGo ")
	assert.Contains(t, out, "🔥 Editors: \nNo Activity Tracked This Week")
	assert.True(t, strings.HasSuffix(out, "```"))

	stats.IsCodingActivityVisible = false
	assert.Empty(t, fixedAssembler().Produce(Statistics{Waka: stats}, config.Sections{Language: true}))
}

func TestBadgesAndShortInfo(t *testing.T) {
	yearly := commits.YearlyData{}
	yearly.Add(2023, 1, "Go", 1200, 3)
	yearly.Add(2024, 2, "Go", 34, 0)

	out := fixedAssembler().Produce(Statistics{
		ProfileViews:  17,
		Yearly:        yearly,
		AllTime:       &wakatime.AllTime{Text: "1,234 hrs 5 mins"},
		Contributions: &remote.ContributionStats{Years: []remote.ContributionYear{{Year: "2024", Total: 1520}}},
		User:          &github.User{DiskUsage: 2_500_000, IsHireable: true, PublicRepos: 1, PrivateRepos: 3},
	}, config.Sections{ProfileViews: true, LinesOfCode: true, ShortInfo: true, TotalCodeTime: true, UpdatedDate: true})

	assert.Contains(t, out, "![Profile Views](http://img.shields.io/badge/Profile%20Views-17-blue)")
	assert.Contains(t, out, "-1%2C234%20lines%20of%20code-blue)")
	assert.Contains(t, out, "> 🏆 1,520 Contributions in the Year 2024")
	assert.Contains(t, out, "> 📦 2.5 MB Used in GitHub's Storage")
	assert.Contains(t, out, "> 💼 Opted to Hire")
	assert.Contains(t, out, "> 📜 1 Public Repository")
	assert.Contains(t, out, "> 🔑 3 Owned Private Repositories")
	assert.Contains(t, out, "![Code Time](http://img.shields.io/badge/Code%20Time-1%2C234%20hrs%205%20mins-blue)")
	assert.True(t, strings.HasSuffix(out, "Last Updated on 2024-03-09"))

	// Sections appear in their fixed order.
	assert.Less(t, strings.Index(out, "Profile Views"), strings.Index(out, "Lines of code"))
	assert.Less(t, strings.Index(out, "My GitHub Data"), strings.Index(out, "Code Time"))
}

func TestLocTimeline(t *testing.T) {
	yearly := commits.YearlyData{}
	yearly.Add(2023, 1, "Go", 300, 0)
	yearly.Add(2023, 4, "Python", 100, 0)
	yearly.Add(2024, 2, "Go", 50, 0)
	yearly.Add(2024, 2, "Markdown", 5000, 0)

	out := fixedAssembler().Produce(Statistics{
		Yearly: yearly,
		Linguist: map[string]remote.Language{
			"Go":       {Type: "programming", Color: "#00ADD8"},
			"Markdown": {Type: "prose"},
		},
	}, config.Sections{LocChart: true})

	assert.Contains(t, out, "**Timeline**")
	assert.Contains(t, out, "2023\nGo ")
	assert.Contains(t, out, "75.00 %")
	assert.Contains(t, out, "2024\nGo ")
	assert.NotContains(t, out, "Markdown")
	assert.Contains(t, out, "Colours: Go #00ADD8")
}

func TestProduceNothingEnabled(t *testing.T) {
	assert.Empty(t, fixedAssembler().Produce(Statistics{}, config.Sections{}))
}
