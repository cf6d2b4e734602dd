package section

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testStart = "<!--START-->"
	testEnd   = "<!--END-->"
)

func TestPatch_ReplacesSpanOnly(t *testing.T) {
	doc := "# Title\n\nintro\n<!--START-->\nold stats\nmore old\n<!--END-->\n\nfooter\n"

	out, err := Patch(doc, testStart, testEnd, "new stats")
	require.NoError(t, err)

	assert.Equal(t, "# Title\n\nintro\n<!--START-->\nnew stats\n<!--END-->\n\nfooter\n", out)
	assert.True(t, strings.HasPrefix(out, doc[:strings.Index(doc, testStart)]))
	assert.True(t, strings.HasSuffix(out, doc[strings.Index(doc, testEnd):]))
}

func TestPatch_ContainsReplacementVerbatim(t *testing.T) {
	docs := []string{
		"<!--START--><!--END-->",
		"a<!--START-->\n\n<!--END-->b",
		"x\n<!--START-->\n```text\ncode\n```\n<!--END-->",
	}
	repl := "line one\n\n**bold** `code` $1 \\n\nline three"

	for _, doc := range docs {
		out, err := Patch(doc, testStart, testEnd, repl)
		require.NoError(t, err)
		assert.Contains(t, out, testStart+"\n"+repl+"\n"+testEnd)
	}
}

func TestPatch_Idempotent(t *testing.T) {
	doc := "head\n<!--START-->\nwhatever\n<!--END-->\ntail"
	repl := "![badge](https://img.shields.io/badge/x-y-z)\n\n```text\nGo  10 hrs  ████░░ 40.00 %\n```"

	once, err := Patch(doc, testStart, testEnd, repl)
	require.NoError(t, err)
	twice, err := Patch(once, testStart, testEnd, repl)
	require.NoError(t, err)

	assert.Equal(t, once, twice)
}

func TestPatch_MissingMarker(t *testing.T) {
	_, err := Patch("no markers here", "<!--START-->", "<!--END-->", "x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMarkerNotFound))

	_, err = Patch("<!--START--> only start", testStart, testEnd, "x")
	require.ErrorIs(t, err, ErrMarkerNotFound)

	var me *MarkerError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, testEnd, me.Marker)
}

func TestPatch_DuplicateMarker(t *testing.T) {
	doc := "<!--START-->\na\n<!--START-->\nb\n<!--END-->"

	_, err := Patch(doc, testStart, testEnd, "x")
	require.ErrorIs(t, err, ErrAmbiguousMarker)

	var me *MarkerError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, testStart, me.Marker)
	assert.Equal(t, 2, me.Count)
	assert.Contains(t, err.Error(), "2 occurrences")

	_, err = Patch("<!--START-->\n<!--END-->\n<!--END-->", testStart, testEnd, "x")
	assert.ErrorIs(t, err, ErrAmbiguousMarker)
}

func TestPatch_OrderViolation(t *testing.T) {
	_, err := Patch("<!--END-->\nbody\n<!--START-->", testStart, testEnd, "x")
	assert.ErrorIs(t, err, ErrMalformedOrder)
}

func TestPatch_EmptyReplacementRoundTrip(t *testing.T) {
	doc := "top\n<!--START-->\nenriched\ncontent\n<!--END-->\nbottom\n"
	original := "enriched\ncontent"

	emptied, err := Patch(doc, testStart, testEnd, "")
	require.NoError(t, err)
	assert.Equal(t, "top\n<!--START-->\n\n<!--END-->\nbottom\n", emptied)

	restored, err := Patch(emptied, testStart, testEnd, original)
	require.NoError(t, err)
	assert.Equal(t, doc, restored)
}

func TestPatch_PreservesCRLF(t *testing.T) {
	doc := "a\r\n<!--START-->\r\nold\r\n<!--END-->\r\nb\r\n"
	block := MatchLineEndings(doc, "one\ntwo")
	assert.Equal(t, "one\r\ntwo", block)

	out, err := Patch(doc, testStart, testEnd, block)
	require.NoError(t, err)
	assert.Equal(t, "a\r\n<!--START-->\r\none\r\ntwo\r\n<!--END-->\r\nb\r\n", out)

	again, err := Patch(out, testStart, testEnd, block)
	require.NoError(t, err)
	assert.Equal(t, out, again)
}

func TestPatch_KeepsReplacementLineEndings(t *testing.T) {
	doc := "a\n<!--START-->\nold\n<!--END-->\nb\n"

	out, err := Patch(doc, testStart, testEnd, "one\r\ntwo")
	require.NoError(t, err)
	assert.Equal(t, "a\n<!--START-->\none\r\ntwo\n<!--END-->\nb\n", out)

	got, err := Extract(out, testStart, testEnd)
	require.NoError(t, err)
	assert.Equal(t, "one\r\ntwo", got)
}

func TestMatchLineEndings(t *testing.T) {
	assert.Equal(t, "x\ny", MatchLineEndings("lf\n", "x\r\ny"))
	assert.Equal(t, "x\r\ny\r\nz", MatchLineEndings("crlf\r\n", "x\ny\r\nz"))
	assert.Equal(t, "x\ny", MatchLineEndings("single line", "x\ny"))
}

func TestPatch_RejectsMarkerInReplacement(t *testing.T) {
	doc := "a\n<!--START-->\nold\n<!--END-->\nb\n"

	for _, block := range []string{"project <!--END--> stats", "<!--START--> twice <!--START-->"} {
		out, err := Patch(doc, testStart, testEnd, block)
		require.ErrorIs(t, err, ErrMarkerInBlock)
		assert.Empty(t, out)

		var me *MarkerError
		require.True(t, errors.As(err, &me))
		assert.Contains(t, block, me.Marker)
	}

	_, err := Apply(doc, testStart, testEnd, "keeps <!--START_SECTION:other--> text")
	assert.NoError(t, err)
}

func TestApply_ReportsChange(t *testing.T) {
	doc := "<!--START-->\nsame\n<!--END-->"

	res, err := Apply(doc, testStart, testEnd, "same")
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, doc, res.Document)

	res, err = Apply(doc, testStart, testEnd, "different")
	require.NoError(t, err)
	assert.True(t, res.Changed)
}

func TestExtract(t *testing.T) {
	doc := "x\n<!--START-->\nline 1\nline 2\n<!--END-->\ny"

	got, err := Extract(doc, testStart, testEnd)
	require.NoError(t, err)
	assert.Equal(t, "line 1\nline 2", got)

	patched, err := Patch(doc, testStart, testEnd, got)
	require.NoError(t, err)
	assert.Equal(t, doc, patched)

	_, err = Extract("nothing", testStart, testEnd)
	assert.ErrorIs(t, err, ErrMarkerNotFound)
}

func TestPatchNamed(t *testing.T) {
	start, end := Markers("waka")
	assert.Equal(t, "<!--START_SECTION:waka-->", start)
	assert.Equal(t, "<!--END_SECTION:waka-->", end)

	doc := "<!--START_SECTION:waka-->\nOld content\n<!--END_SECTION:waka-->"
	out, err := PatchNamed(doc, "waka", "New stats")
	require.NoError(t, err)
	assert.Equal(t, "<!--START_SECTION:waka-->\nNew stats\n<!--END_SECTION:waka-->", out)

	_, err = PatchNamed(doc, "other", "New stats")
	assert.ErrorIs(t, err, ErrMarkerNotFound)
}

func TestNames(t *testing.T) {
	doc := "# Me\r\n<!--START_SECTION:waka--><!--END_SECTION:waka-->\n" +
		"text <!--START_SECTION:blog-->\n<!--END_SECTION:blog-->\n<!--START_SECTION:waka-->\n"
	assert.Equal(t, []string{"waka", "blog"}, Names(doc))
	assert.Empty(t, Names("no markers here"))
}
