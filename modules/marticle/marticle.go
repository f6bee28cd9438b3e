// Package marticle parses nemulo source articles.
//
// A source article is a plain text file named like `YYYYMMDD-slug.md`. It
// starts with a `# ` heading followed by `* key: value` metadata lines, then
// has `## summary`, `## article`, and `## see more` sections. Bodies are
// grouped into paragraphs, structured according to the selected dialect, and
// then handed to mdecorate for inline markup.
package marticle

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/xerrors"

	"github.com/nemulo/nemulo/modules/mdecorate"
	"github.com/nemulo/nemulo/modules/mfile"
	"github.com/nemulo/nemulo/modules/mmarkdown"
)

//////////////////////////////////////////////////////////////////////////////
//
//
//
// Public
//
//
//
//////////////////////////////////////////////////////////////////////////////

// Alignment selects the paragraph alignment dialect.
type Alignment string

// Alignment dialects.
const (
	// AlignmentMarkers recognizes `>><<` (centered) and `>>>>` (right
	// aligned) at the start of a paragraph.
	AlignmentMarkers Alignment = "markers"

	// AlignmentLegacy recognizes `=>` (right aligned), `=|` (centered), and
	// `=<` (left aligned) directly after a paragraph's opening tag.
	AlignmentLegacy Alignment = "legacy"
)

// Blockquote selects the blockquote dialect.
type Blockquote string

// Blockquote dialects.
const (
	// BlockquoteLine quotes lines prefixed with `> `. These are resolved by
	// mdecorate.
	BlockquoteLine Blockquote = "line"

	// BlockquoteBlock quotes everything between a line starting with `>>>`
	// and one starting with `<<<`.
	BlockquoteBlock Blockquote = "block"
)

// Markup selects how article bodies are rendered.
type Markup string

// Markup dialects.
const (
	// MarkupNemulo renders bodies with paragraph assembly and mdecorate.
	MarkupNemulo Markup = "nemulo"

	// MarkupMarkdown renders bodies as Markdown.
	MarkupMarkdown Markup = "markdown"
)

// Options configures parsing and rendering of articles. Empty values select
// the defaults: marker alignment, line blockquotes, and the nemulo markup.
type Options struct {
	Alignment  Alignment
	Blockquote Blockquote

	// DestRoot is the directory that destination paths are computed under.
	// Defaults to the current directory.
	DestRoot string

	// Extended enables the extended inline dialect of mdecorate.
	Extended bool

	Markup Markup
}

// ErrBadDate is returned when neither an article's `date` metadata nor its
// filename contain a valid date.
var ErrBadDate = errors.New("no valid date in metadata or filename")

// ErrBadFilename is returned when an article's filename doesn't look like
// `YYYYMMDD-slug.md`.
var ErrBadFilename = errors.New("filename doesn't match YYYYMMDD-slug.md")

// ParseError is a failure to read or parse a single article. It's never fatal
// to a build. The article is skipped instead.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("error parsing article '%s': %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Sections holds the raw lines of an article's sections. Blank lines are kept
// because they separate paragraphs.
type Sections struct {
	Article []string
	SeeMore []string
	Summary []string
}

// Article is a single source article.
type Article struct {
	// CardImage is a URL from `card_image` metadata.
	CardImage string

	// Date is the article's date formatted as YYYYMMDD.
	Date string

	// Heading is the text of the article's `# ` line.
	Heading string

	Labels []string

	// Metadata contains every `* key: value` pair verbatim, recognized or
	// not.
	Metadata map[string]string

	Sections Sections

	// Slug is the filesystem safe name of the article used in its
	// destination path.
	Slug string

	// SourcePath is the path to the article's source file.
	SourcePath string

	// Summary is the plain text from `summary` metadata.
	Summary string

	// Time is Date parsed.
	Time time.Time

	// Title is from `title` metadata, the heading, or the filename in that
	// order of preference.
	Title string

	// Warnings are problems that were recovered from during parsing.
	Warnings []string

	options *Options
	parsed  bool
}

// NewArticle initializes an article for the source file at path.
func NewArticle(path string, options *Options) *Article {
	if options == nil {
		options = &Options{}
	}

	return &Article{
		Metadata:   make(map[string]string),
		SourcePath: path,
		options:    options,
	}
}

// ParseFilename extracts the raw date and slug from an article's base
// filename.
func ParseFilename(base string) (string, string, error) {
	matches := filenameRE.FindStringSubmatch(base)
	if matches == nil {
		return "", "", xerrors.Errorf("'%s': %w", base, ErrBadFilename)
	}

	return matches[1], mfile.SanitizeFilename(matches[2]), nil
}

// Read reads the article's source file and parses it.
func (a *Article) Read() error {
	data, err := os.ReadFile(a.SourcePath)
	if err != nil {
		return &ParseError{Path: a.SourcePath, Err: xerrors.Errorf("error reading file: %w", err)}
	}

	s := strings.ReplaceAll(string(data), "\r\n", "\n")
	return a.Parse(strings.Split(strings.TrimSuffix(s, "\n"), "\n"))
}

// Parse populates the article from the lines of its source. Any state from a
// previous parse is discarded.
func (a *Article) Parse(lines []string) error {
	a.reset()

	fileDate, name, err := ParseFilename(filepath.Base(a.SourcePath))
	if err != nil {
		return &ParseError{Path: a.SourcePath, Err: err}
	}
	a.Slug = name

	a.splitSections(lines)

	for key, value := range a.Metadata {
		value = strings.TrimSpace(value)

		switch key {
		case "card_image":
			a.CardImage = value
		case "filename":
			if value != "" {
				a.Slug = mfile.SanitizeFilename(value)
			}
		case "labels":
			a.Labels = ParseLabels(value)
		case "summary":
			a.Summary = strings.TrimSpace(StripTags(StripComments(value)))
		case "title":
			a.Title = value
		}
	}

	if err := a.resolveDate(fileDate); err != nil {
		return &ParseError{Path: a.SourcePath, Err: err}
	}

	if len(a.Labels) < 1 {
		a.Labels = []string{defaultLabel}
	}

	if a.Title == "" {
		a.Title = a.Heading
	}
	if a.Title == "" {
		matches := filenameRE.FindStringSubmatch(filepath.Base(a.SourcePath))
		a.Title = strings.ReplaceAll(matches[2], "_", " ")
	}

	a.parsed = true
	return nil
}

// DestinationPath is where the article's rendered page is written to, like
// `{DestRoot}/{YYYY}/{MMDD}-{slug}.html`. It's empty until the article has
// been parsed.
func (a *Article) DestinationPath() string {
	if !a.parsed {
		return ""
	}

	root := a.options.DestRoot
	if root == "" {
		root = "."
	}

	return filepath.Join(root, filepath.FromSlash(a.URLPath()))
}

// URLPath is the article's path relative to the destination root, like
// `2023/0915-slug.html`.
func (a *Article) URLPath() string {
	if !a.parsed {
		return ""
	}

	return path.Join(a.Date[:4], a.Date[4:]+"-"+a.Slug+".html")
}

// MakeArticle renders the whole article body to HTML. `:break` markers are
// dropped.
func (a *Article) MakeArticle() string {
	if a.options.Markup == MarkupMarkdown {
		first, last := divideLines(a.Sections.Article)
		return renderMarkdown(append(append([]string{}, first...), last...))
	}

	first, last := DivideParts(a.assemble(a.Sections.Article))
	return a.decorate(append(append([]string{}, first...), last...))
}

// MakeParts renders the article body to HTML in two parts divided at its
// first `:break` marker. Without a marker, the whole body is the teaser and
// the rest is empty.
func (a *Article) MakeParts() (string, string) {
	if a.options.Markup == MarkupMarkdown {
		first, last := divideLines(a.Sections.Article)
		return renderMarkdown(first), renderMarkdown(last)
	}

	first, last := DivideParts(a.assemble(a.Sections.Article))
	return a.decorate(first), a.decorate(last)
}

// MakeSeeMore renders the `## see more` section to HTML.
func (a *Article) MakeSeeMore() string {
	if a.options.Markup == MarkupMarkdown {
		return renderMarkdown(a.Sections.SeeMore)
	}

	return a.decorate(a.assemble(a.Sections.SeeMore))
}

// MakeSummary returns the article's plain text summary. A `## summary`
// section takes precedence over `summary` metadata.
func (a *Article) MakeSummary() string {
	var lines []string
	for _, l := range a.Sections.Summary {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}

	if len(lines) < 1 {
		return a.Summary
	}

	return strings.TrimSpace(StripTags(strings.Join(lines, "\n")))
}

// NeedsRebuild reports whether the article's destination is missing or older
// than its source.
func (a *Article) NeedsRebuild() (bool, error) {
	return mfile.NeedsRebuild(a.SourcePath, a.DestinationPath())
}

// DivideParts splits assembled blocks at the first `:break` paragraph. Any
// further markers are dropped.
func DivideParts(blocks []string) ([]string, []string) {
	var (
		first, last []string
		divided     bool
	)

	for _, block := range blocks {
		if strings.HasPrefix(block, breakBlockPrefix) {
			divided = true
			continue
		}

		if divided {
			last = append(last, block)
		} else {
			first = append(first, block)
		}
	}

	return first, last
}

// ParseLabels splits a comma separated list of labels. Labels are trimmed and
// empty ones are dropped.
func ParseLabels(s string) []string {
	var labels []string
	for _, label := range strings.Split(s, ",") {
		if label = strings.TrimSpace(label); label != "" {
			labels = append(labels, label)
		}
	}
	return labels
}

// SplitParagraphs groups lines into paragraphs of trimmed, non-blank lines
// separated by blank lines.
func SplitParagraphs(lines []string) [][]string {
	var (
		current    []string
		paragraphs [][]string
	)

	for _, l := range lines {
		l = strings.TrimSpace(l)

		if l == "" {
			if len(current) > 0 {
				paragraphs = append(paragraphs, current)
				current = nil
			}
			continue
		}

		current = append(current, l)
	}

	if len(current) > 0 {
		paragraphs = append(paragraphs, current)
	}

	return paragraphs
}

// StripComments removes `<!-- ... -->` comments from s, including ones that
// span lines. An unterminated comment removes everything after it. Lines
// left blank only because they contained a comment are removed as well.
func StripComments(s string) string {
	return strings.Join(stripCommentLines(strings.Split(s, "\n")), "\n")
}

// StripTags removes HTML tags and comments from s, leaving its text.
func StripTags(s string) string {
	var sb strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))

	for {
		switch z.Next() {
		case html.ErrorToken:
			return sb.String()
		case html.TextToken:
			sb.Write(z.Raw())
		}
	}
}

//////////////////////////////////////////////////////////////////////////////
//
//
//
// Private
//
//
//
//////////////////////////////////////////////////////////////////////////////

const (
	blockQuoteClose  = "<<<"
	blockQuoteOpen   = ">>>"
	breakBlockPrefix = "<p>:break"
	breakMarker      = ":break"
	centerMarker     = ">><<"
	commentClose     = "-->"
	commentOpen      = "<!--"
	defaultLabel     = "Uncategorized"
	horizontalRule   = "---"
	lineBreak        = "<br>"
	quoteMarker      = `"""`
	rightMarker      = ">>>>"
)

// Layouts accepted in `date` metadata.
var dateLayouts = []string{
	"20060102",
	"2006-01-02",
	"2006/01/02",
	"2006/01/02 15:04",
	time.RFC3339,
}

var (
	doubleBreakRE = regexp.MustCompile(`<br>(?:\s*<br>)+\s*`)
	edgeBreaksRE  = regexp.MustCompile(`^(?:\s*<br>)+\s*|(?:\s*<br>)+\s*$`)
	filenameRE    = regexp.MustCompile(`^(\d{8})-(.+)\.md$`)
	metadataRE    = regexp.MustCompile(`^\* (\w+): (.*)$`)
)

var legacyAlignmentReplacer = strings.NewReplacer(
	"<p>=>", `<p class="right">`,
	"<p>=|", `<p class="center">`,
	"<p>=<", "<p>",
)

type state int

const (
	statePreamble state = iota
	stateMetadata
	stateSummary
	stateArticle
	stateSeeMore
)

// Sections are introduced by headers that begin with one of these.
var sectionHeaders = []struct {
	prefix string
	state  state
}{
	{"## article", stateArticle},
	{"## see more", stateSeeMore},
	{"## summary", stateSummary},
}

// A run of lines that's either inside or outside a `>>>`/`<<<` quote.
type region struct {
	lines  []string
	quoted bool
}

// Groups lines into paragraphs and turns each into an HTML block according to
// the configured dialects.
func (a *Article) assemble(lines []string) []string {
	var blocks []string

	for _, r := range a.regions(lines) {
		var regionBlocks []string
		for _, p := range SplitParagraphs(r.lines) {
			regionBlocks = append(regionBlocks, a.transformParagraph(p))
		}

		if !r.quoted {
			blocks = append(blocks, regionBlocks...)
			continue
		}

		if len(regionBlocks) > 0 {
			blocks = append(blocks,
				"<blockquote>"+strings.Join(regionBlocks, "\n")+"</blockquote>")
		}
	}

	if a.options.Alignment == AlignmentLegacy {
		for i, block := range blocks {
			blocks[i] = legacyAlignmentReplacer.Replace(block)
		}
	}

	return blocks
}

func (a *Article) decorate(blocks []string) string {
	if len(blocks) < 1 {
		return ""
	}

	return mdecorate.Decorate(strings.Join(blocks, "\n"), &mdecorate.Options{
		Extended:   a.options.Extended,
		LineQuotes: a.options.Blockquote != BlockquoteBlock,
	})
}

func (a *Article) isAlignmentMarker(l string) bool {
	return a.options.Alignment != AlignmentLegacy && strings.HasPrefix(l, rightMarker)
}

// Splits lines into quoted and unquoted regions when the block dialect is
// selected. Text after `>>>` starts the quote and text after `<<<` ends it.
// An unterminated quote runs to the end of the section.
func (a *Article) regions(lines []string) []region {
	if a.options.Blockquote != BlockquoteBlock {
		return []region{{lines: lines}}
	}

	var (
		current region
		regions []region
	)

	flush := func(quoted bool) {
		if len(current.lines) > 0 {
			regions = append(regions, current)
		}
		current = region{quoted: quoted}
	}

	for _, l := range lines {
		t := strings.TrimSpace(l)

		switch {
		case strings.HasPrefix(t, blockQuoteOpen) && !a.isAlignmentMarker(t):
			flush(true)
			if rest := strings.TrimSpace(t[len(blockQuoteOpen):]); rest != "" {
				current.lines = append(current.lines, rest)
			}

		case current.quoted && strings.HasPrefix(t, blockQuoteClose):
			if rest := strings.TrimSpace(t[len(blockQuoteClose):]); rest != "" {
				current.lines = append(current.lines, rest)
			}
			flush(false)

		default:
			current.lines = append(current.lines, l)
		}
	}

	flush(false)
	return regions
}

func (a *Article) reset() {
	a.CardImage = ""
	a.Date = ""
	a.Heading = ""
	a.Labels = nil
	a.Metadata = make(map[string]string)
	a.Sections = Sections{}
	a.Slug = ""
	a.Summary = ""
	a.Time = time.Time{}
	a.Title = ""
	a.Warnings = nil
	a.parsed = false
}

// Prefers a valid `date` from metadata, then the filename's date.
func (a *Article) resolveDate(fileDate string) error {
	if explicit, ok := a.Metadata["date"]; ok {
		t, err := parseDate(strings.TrimSpace(explicit))
		if err == nil {
			a.setDate(t)
			return nil
		}

		a.Warnings = append(a.Warnings,
			fmt.Sprintf("unparseable date metadata %q; using filename date", explicit))
	}

	t, err := parseDate(fileDate)
	if err != nil {
		return ErrBadDate
	}

	a.setDate(t)
	return nil
}

func (a *Article) setDate(t time.Time) {
	a.Date = t.Format("20060102")
	a.Time = t
}

// Classifies lines with a small state machine. Header lines switch states and
// are consumed. Comments are stripped from each section on its own so that an
// unterminated comment never runs past the end of its section.
func (a *Article) splitSections(lines []string) {
	var (
		buffers = make(map[state][]string)
		st      = statePreamble
	)

scan:
	for _, l := range lines {
		if strings.HasPrefix(l, "# ") {
			st = stateMetadata
			if a.Heading == "" {
				a.Heading = strings.TrimSpace(l[2:])
			}
			continue
		}

		for _, header := range sectionHeaders {
			if strings.HasPrefix(l, header.prefix) {
				st = header.state
				continue scan
			}
		}

		switch st {
		case statePreamble:
			// Anything before the first heading is ignored.

		case stateSummary, stateArticle, stateSeeMore:
			// Unrecognized sections are left out of content.
			if strings.HasPrefix(l, "## ") {
				continue
			}
			fallthrough

		default:
			buffers[st] = append(buffers[st], l)
		}
	}

	for _, l := range stripCommentLines(buffers[stateMetadata]) {
		if matches := metadataRE.FindStringSubmatch(l); matches != nil {
			a.Metadata[matches[1]] = matches[2]
		}
	}

	a.Sections.Summary = sectionLines(buffers[stateSummary])
	a.Sections.Article = sectionLines(buffers[stateArticle])
	a.Sections.SeeMore = sectionLines(buffers[stateSeeMore])
}

func (a *Article) transformParagraph(p []string) string {
	first := p[0]

	if a.options.Alignment != AlignmentLegacy {
		switch {
		case strings.HasPrefix(first, centerMarker):
			return wrapParagraph(stripMarker(p, centerMarker), `<p style="text-align: center;">`)
		case strings.HasPrefix(first, rightMarker):
			return wrapParagraph(stripMarker(p, rightMarker), `<p style="text-align: right;">`)
		}
	}

	if len(p) == 1 && first == horizontalRule {
		return "<hr>"
	}

	joined := strings.Join(p, lineBreak+"\n")
	if len(joined) >= 2*len(quoteMarker) &&
		strings.HasPrefix(joined, quoteMarker) && strings.HasSuffix(joined, quoteMarker) {
		inner := joined[len(quoteMarker) : len(joined)-len(quoteMarker)]
		inner = edgeBreaksRE.ReplaceAllLiteralString(inner, "")
		inner = doubleBreakRE.ReplaceAllLiteralString(inner, lineBreak+"\n")
		return "<blockquote>" + strings.TrimSpace(inner) + "</blockquote>"
	}

	return wrapParagraph(p, "<p>")
}

// Splits raw lines at the first line that's only a `:break` marker.
func divideLines(lines []string) ([]string, []string) {
	var (
		first, last []string
		divided     bool
	)

	for _, l := range lines {
		if strings.TrimSpace(l) == breakMarker {
			divided = true
			continue
		}

		if divided {
			last = append(last, l)
		} else {
			first = append(first, l)
		}
	}

	return first, last
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, xerrors.Errorf("unrecognized date: %q", s)
}

func renderMarkdown(lines []string) string {
	if len(lines) < 1 {
		return ""
	}

	return strings.TrimSpace(string(mmarkdown.Render([]byte(strings.Join(lines, "\n")))))
}

// Strips comments from a section's lines and blanks lines that are only
// whitespace.
func sectionLines(lines []string) []string {
	if len(lines) < 1 {
		return nil
	}

	out := stripCommentLines(lines)
	for i, l := range out {
		if strings.TrimSpace(l) == "" {
			out[i] = ""
		}
	}
	return out
}

// Walks lines keeping track of whether a comment is open across line
// boundaries. Text before and after a multi-line comment is joined into a
// single line.
func stripCommentLines(lines []string) []string {
	var (
		carry     string
		inComment bool
		out       []string
	)

	for _, l := range lines {
		var sb strings.Builder
		hadComment := false

		if inComment {
			end := strings.Index(l, commentClose)
			if end < 0 {
				continue
			}

			sb.WriteString(carry)
			carry = ""
			inComment = false
			hadComment = true
			l = l[end+len(commentClose):]
		}

		for {
			start := strings.Index(l, commentOpen)
			if start < 0 {
				sb.WriteString(l)
				break
			}

			sb.WriteString(l[:start])
			hadComment = true

			rest := l[start+len(commentOpen):]
			end := strings.Index(rest, commentClose)
			if end < 0 {
				inComment = true
				break
			}

			l = rest[end+len(commentClose):]
		}

		if inComment {
			carry = sb.String()
			continue
		}

		s := sb.String()
		if hadComment && strings.TrimSpace(s) == "" {
			continue
		}

		out = append(out, s)
	}

	if inComment && strings.TrimSpace(carry) != "" {
		out = append(out, carry)
	}

	return out
}

// Removes an alignment marker from a paragraph's first line, dropping the
// line if nothing else is on it.
func stripMarker(p []string, marker string) []string {
	first := strings.TrimSpace(strings.TrimPrefix(p[0], marker))
	if first == "" {
		return p[1:]
	}

	return append([]string{first}, p[1:]...)
}

// Wraps lines in a paragraph joined by breaks. A double break splits the
// paragraph in two, both opened with the same tag.
func wrapParagraph(lines []string, opener string) string {
	content := strings.Join(lines, lineBreak+"\n")
	content = edgeBreaksRE.ReplaceAllLiteralString(content, "")
	content = doubleBreakRE.ReplaceAllLiteralString(content, "</p>\n\n"+opener)
	return opener + content + "</p>"
}
