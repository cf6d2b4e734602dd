package section

import (
	"bufio"
	"regexp"
	"strings"
)

var startMarker = regexp.MustCompile(`<!--START_SECTION:([^>]*?)-->`)

// Names lists the section names with a start marker in document, in order of
// first appearance.
func Names(document string) []string {
	var names []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(strings.NewReader(document))
	scanner.Buffer(make([]byte, 0, 64*1024), len(document)+1)
	for scanner.Scan() {
		for _, m := range startMarker.FindAllStringSubmatch(scanner.Text(), -1) {
			if !seen[m[1]] {
				seen[m[1]] = true
				names = append(names, m[1])
			}
		}
	}
	return names
}
