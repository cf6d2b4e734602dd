package report

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"
)

const (
	graphCells = 25
	nameWidth  = 25
	textWidth  = 20
	defaultTop = 5
)

var symbolSets = map[int][2]string{
	1: {"█", "░"},
	2: {"⣿", "⣀"},
	3: {"⬛", "⬜"},
}

// Symbols returns the done and empty cell of a graph symbol set. Unknown
// versions fall back to set 1.
func Symbols(version int) (done, empty string) {
	set, ok := symbolSets[version]
	if !ok {
		set = symbolSets[1]
	}
	return set[0], set[1]
}

// Entry is one line of a list.
type Entry struct {
	Name    string
	Text    string
	Percent float64
}

// Formatter renders progress bars and aligned lists.
type Formatter struct {
	done, empty string
}

func NewFormatter(symbolVersion int) Formatter {
	done, empty := Symbols(symbolVersion)
	return Formatter{done: done, empty: empty}
}

// MakeGraph draws a 25 cell bar, one done cell per four percent rounded half
// to even.
func (f Formatter) MakeGraph(percent float64) string {
	n := int(math.RoundToEven(percent / 4))
	n = max(0, min(graphCells, n))
	return strings.Repeat(f.done, n) + strings.Repeat(f.empty, graphCells-n)
}

// MakeList keeps the first top entries and optionally orders them by
// percent, highest first. A top of zero or less means five.
func (f Formatter) MakeList(entries []Entry, top int, sorted bool) string {
	if top <= 0 {
		top = defaultTop
	}
	if len(entries) > top {
		entries = entries[:top]
	}
	if sorted {
		entries = append([]Entry(nil), entries...)
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].Percent > entries[j].Percent })
	}

	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("%s%s%s   %05.2f %% ",
			pad(truncate(e.Name, nameWidth), nameWidth),
			pad(e.Text, textWidth),
			f.MakeGraph(e.Percent),
			e.Percent))
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func pad(s string, n int) string {
	if w := utf8.RuneCountInString(s); w < n {
		return s + strings.Repeat(" ", n-w)
	}
	return s
}

// percentOf rounds part/whole to two decimals; zero when whole is zero.
func percentOf(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(whole)*10000) / 100
}
