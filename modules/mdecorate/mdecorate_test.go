package mdecorate

import (
	"regexp"
	"strings"
	"testing"

	assert "github.com/stretchr/testify/require"
)

func TestDecorate(t *testing.T) {
	assert.Equal(t,
		"<strong>strong</strong> and <em>em</em>",
		Decorate("**strong** and *em*", nil),
	)

	// Nil and empty options are equivalent.
	assert.Equal(t, Decorate("*em*", nil), Decorate("*em*", &Options{}))

	// Empty pairs still match, so four stars are an empty strong.
	assert.Equal(t, "<strong></strong>", Decorate("****", nil))
	assert.Equal(t, "<em></em>", Decorate("**", &Options{}))

	// Unmatched syntax is left alone.
	assert.Equal(t, "2 * 3 = 6", Decorate("2 * 3 = 6", nil))
	assert.Equal(t, "[not a link]", Decorate("[not a link]", nil))
}

func TestDecorate_Order(t *testing.T) {
	// Bold before emphasis.
	assert.Equal(t, "<strong>a</strong><em>b</em>", Decorate("**a***b*", nil))

	// Code runs after bold, so bold inside code is still rendered.
	assert.Equal(t, "<code><strong>x</strong></code>", Decorate("`**x**`", nil))
}

func TestDecorate_Idempotent(t *testing.T) {
	source := strings.Join([]string{
		"<p>**bold** *em* `code` ~~del~~<br>",
		"[link](/a) ![img](/b.png)<br>",
		"### Heading<br>",
		"> quote<br>",
		"><br>",
		"----<br>",
		"#### Sub</p>",
	}, "\n")

	options := &Options{Extended: true, LineQuotes: true}
	once := Decorate(source, options)
	assert.Equal(t, once, Decorate(once, options))
}

func TestDecorate_Paragraphs(t *testing.T) {
	assert.Equal(t, strings.Join([]string{
		`<p>Intro with <strong>bold</strong>.</p>`,
		`<h3>Section</h3>`,
		`<p>See <a href="https://example.com">example</a>.</p>`,
		`<hr>`,
		`<p style="text-align: right;">signed</p>`,
	}, "\n"), Decorate(strings.Join([]string{
		`<p>Intro with **bold**.<br>`,
		`### Section<br>`,
		`See [example](https://example.com).</p>`,
		`<hr>`,
		`<p style="text-align: right;">signed</p>`,
	}, "\n"), nil))
}

func TestTransformCode(t *testing.T) {
	assert.Equal(t, "<code>x := 1</code>", transformCode("`x := 1`", nil))
	assert.Equal(t, "`", transformCode("`", nil))
}

func TestTransformEmphasisDots(t *testing.T) {
	extended := &Options{Extended: true}

	assert.Equal(t,
		`<span style="text-emphasis: dot;">dots</span>`,
		transformEmphasisDots("^^^dots^^^", extended),
	)

	assert.Equal(t,
		`<span style="text-emphasis: circle;">text</span>`,
		transformEmphasisDots("^^circle^^text^^^", extended),
	)

	assert.Equal(t,
		`<span style="text-emphasis: open sesame;">text</span>`,
		transformEmphasisDots("^^open sesame^^text^^^", extended),
	)

	// Both forms on one line stay separate.
	assert.Equal(t,
		`<span style="text-emphasis: circle;">text</span> and `+
			`<span style="text-emphasis: dot;">plain</span>`,
		transformEmphasisDots("^^circle^^text^^^ and ^^^plain^^^", extended),
	)

	assert.Equal(t,
		`<span style="text-emphasis: dot;">a</span> and `+
			`<span style="text-emphasis: dot;">b</span>`,
		transformEmphasisDots("^^^a^^^ and ^^^b^^^", extended),
	)

	// Only in the extended dialect.
	assert.Equal(t, "^^^dots^^^", transformEmphasisDots("^^^dots^^^", &Options{}))
}

func TestTransformImages(t *testing.T) {
	assert.Equal(t,
		`<img src="/assets/a.jpg" alt="A photo">`,
		transformImages("![A photo](/assets/a.jpg)", nil),
	)

	assert.Equal(t,
		`<img src="/assets/a.jpg" alt="">`,
		transformImages("![](/assets/a.jpg)", nil),
	)
}

func TestTransformLinks(t *testing.T) {
	assert.Equal(t,
		`<a href="https://example.com">Example</a>`,
		transformLinks("[Example](https://example.com)", nil),
	)

	// Adjacent links are both matched.
	assert.Equal(t,
		`<a href="/a">a</a><a href="/b">b</a>`,
		transformLinks("[a](/a)[b](/b)", nil),
	)

	// Images are left for transformImages.
	assert.Equal(t,
		"![alt](/a.png)",
		transformLinks("![alt](/a.png)", nil),
	)

	// Through the full pipeline images and links coexist.
	assert.Equal(t,
		`<img src="/a.png" alt="alt"> and <a href="/b">b</a>`,
		Decorate("![alt](/a.png) and [b](/b)", nil),
	)
}

func TestTransformRuby(t *testing.T) {
	assert.Equal(t,
		"<ruby>漢字<rp>(<rt>かんじ</rt><rp>)</rp></ruby>",
		transformRuby("||漢字||かんじ||", &Options{Extended: true}),
	)

	assert.Equal(t, "||漢字||かんじ||", transformRuby("||漢字||かんじ||", &Options{}))
}

func TestTransformStrikethrough(t *testing.T) {
	assert.Equal(t, "<del>gone</del>", transformStrikethrough("~~gone~~", nil))
}

func TestTransformHorizontalRules(t *testing.T) {
	assert.Equal(t, "<hr>", transformHorizontalRules("---", nil))
	assert.Equal(t, "<hr>", transformHorizontalRules("------", nil))
	assert.Equal(t, "<hr>", transformHorizontalRules("<p>-----</p>", nil))

	// Not the only thing on the line.
	assert.Equal(t, "--- not a rule", transformHorizontalRules("--- not a rule", nil))
	assert.Equal(t, "--", transformHorizontalRules("--", nil))
}

func TestTransformHeaders(t *testing.T) {
	assert.Equal(t, "<h3>Title</h3>", transformHeaders3("### Title", nil))
	assert.Equal(t, "<h4>Sub</h4>", transformHeaders4("#### Sub", nil))

	// The h3 rule doesn't see h4 lines because those run first.
	assert.Equal(t, "<h4>Sub</h4>", Decorate("#### Sub", nil))

	// Requires a space after the hashes.
	assert.Equal(t, "###Title", transformHeaders3("###Title", nil))

	// Interrupting a paragraph closes it and reopens it afterwards.
	assert.Equal(t,
		"<p>first</p>\n<h3>Title</h3>\n<p>second</p>",
		transformHeaders3("<p>first<br>\n### Title<br>\nsecond</p>", nil),
	)

	// Reopening keeps the paragraph's attributes.
	assert.Equal(t,
		"<h3>T</h3>\n<p style=\"text-align: center;\">rest</p>",
		transformHeaders3("<p style=\"text-align: center;\">### T<br>\nrest</p>", nil),
	)

	// Consecutive headers don't leave empty paragraphs between them.
	assert.Equal(t,
		"<h3>A</h3>\n<h3>B</h3>\n<p>text</p>",
		transformHeaders3("<p>### A<br>\n### B<br>\ntext</p>", nil),
	)
}

func TestTransformBlockquotes(t *testing.T) {
	lineQuotes := &Options{LineQuotes: true}

	assert.Equal(t,
		"<blockquote>quoted<br>\nmore</blockquote>",
		transformBlockquotes("<p>> quoted<br>\n> more</p>", lineQuotes),
	)

	// A line of only `>` closes the quote.
	assert.Equal(t,
		"<blockquote>quoted</blockquote>\n<p>after</p>",
		transformBlockquotes("<p>> quoted<br>\n><br>\nafter</p>", lineQuotes),
	)

	// Quote at the end of a paragraph.
	assert.Equal(t,
		"<p>before</p>\n<blockquote>quoted</blockquote>",
		transformBlockquotes("<p>before<br>\n> quoted</p>", lineQuotes),
	)

	// Without paragraph markup.
	assert.Equal(t,
		"<blockquote>a<br>\nb</blockquote>\nc",
		transformBlockquotes("> a\n> b\nc", lineQuotes),
	)

	// Quotes in separate paragraphs stay separate.
	assert.Equal(t,
		"<blockquote>a</blockquote>\n<blockquote>b</blockquote>",
		transformBlockquotes("<p>> a</p>\n<p>> b</p>", lineQuotes),
	)

	// A lone `>` has nothing to close.
	assert.Equal(t, "<p>></p>", transformBlockquotes("<p>></p>", lineQuotes))

	// Only with line quotes enabled.
	assert.Equal(t, "<p>> a</p>", transformBlockquotes("<p>> a</p>", &Options{}))
}

func TestReplaceAllSubmatchFunc(t *testing.T) {
	re := regexp.MustCompile(`(\w)=(\w)`)

	assert.Equal(t, "b:a, d:c!", replaceAllSubmatchFunc(re, "a=b, c=d!", func(groups []string) string {
		return groups[2] + ":" + groups[1]
	}))

	assert.Equal(t, "none", replaceAllSubmatchFunc(re, "none", func(groups []string) string {
		return "x"
	}))
}

func TestSplitLine(t *testing.T) {
	assert.Equal(t, line{open: "<p>", core: "a", close: "<br>"}, splitLine("<p>a<br>"))
	assert.Equal(t, line{core: "b", close: "</p>"}, splitLine("b</p>"))
	assert.Equal(t, line{open: `<p class="right">`, core: "c"}, splitLine(`<p class="right">c`))
	assert.Equal(t, line{core: "<pre>d"}, splitLine("<pre>d"))
}
