// Package mdecorate applies the inline and line-level markup of the nemulo
// text dialect to article bodies that have already been assembled into
// paragraphs.
//
// Decoration is a fixed, ordered list of substitutions. Order matters: bold
// must be resolved before emphasis because both use asterisks, and images
// are distinguished from links by their leading bang. Unmatched syntax is
// left as literal text.
package mdecorate

import (
	"regexp"
	"strings"
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

// Options describes the dialect that Decorate renders.
type Options struct {
	// Extended enables the extended inline dialect: `^^^text^^^` emphasis
	// dots, `^^style^^text^^^` emphasis with a custom style, and
	// `||base||reading||` ruby annotations.
	Extended bool

	// LineQuotes enables blockquotes written as `> ` prefixed lines, closed
	// early by a line of only `>`. Deployments using the `>>>`/`<<<` block
	// markers leave this off because those are resolved during paragraph
	// assembly.
	LineQuotes bool
}

// Decorate transforms nemulo markup in s into HTML.
func Decorate(s string, options *Options) string {
	if options == nil {
		options = &Options{}
	}

	for _, f := range transformers {
		s = f(s, options)
	}

	return s
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

// The decorator's pipeline, in order.
var transformers = []func(string, *Options) string{
	transformStrong,
	transformEmphasis,
	transformCode,
	transformEmphasisDots,
	transformRuby,
	transformStrikethrough,
	transformLinks,
	transformImages,
	transformHorizontalRules,
	transformHeaders4,
	transformHeaders3,
	transformBlockquotes,
}

const (
	lineBreakMarker      = "<br>"
	paragraphCloseMarker = "</p>"
	quoteCloseMarker     = ">"
	quoteLinePrefix      = "> "
)

var (
	codeRE           = regexp.MustCompile("`(.+?)`")
	emphasisDotsRE   = regexp.MustCompile(`\^\^\^([^^]+?)\^\^\^`)
	emphasisRE       = regexp.MustCompile(`\*(.*?)\*`)
	emphasisStyledRE = regexp.MustCompile(`\^\^([\w -]+?)\^\^([^^]+?)\^\^\^`)
	header3RE        = regexp.MustCompile(`^### +(.+?)\s*$`)
	header4RE        = regexp.MustCompile(`^#### +(.+?)\s*$`)
	horizontalRuleRE = regexp.MustCompile(`^-{3,}$`)
	imageRE          = regexp.MustCompile(`!\[([^\]]*)\]\(([^)\s]+)\)`)
	linkRE           = regexp.MustCompile(`(!?)\[([^\]]+)\]\(([^)\s]+)\)`)
	paragraphOpenRE  = regexp.MustCompile(`^<p(?:\s[^>]*)?>`)
	rubyRE           = regexp.MustCompile(`\|\|(.+?)\|\|(.+?)\|\|`)
	strikethroughRE  = regexp.MustCompile(`~~(.+?)~~`)
	strongRE         = regexp.MustCompile(`\*\*(.*?)\*\*`)
)

func transformStrong(source string, options *Options) string {
	return strongRE.ReplaceAllString(source, "<strong>$1</strong>")
}

func transformEmphasis(source string, options *Options) string {
	return emphasisRE.ReplaceAllString(source, "<em>$1</em>")
}

func transformCode(source string, options *Options) string {
	return codeRE.ReplaceAllString(source, "<code>$1</code>")
}

// Emphasis dots (boten) are drawn with CSS text-emphasis. The plain form uses
// the default dot and the styled form substitutes its own value. The styled
// form goes first because its closing `^^^` looks like a plain opener.
func transformEmphasisDots(source string, options *Options) string {
	if !options.Extended {
		return source
	}

	source = emphasisStyledRE.ReplaceAllString(source,
		`<span style="text-emphasis: $1;">$2</span>`)
	return emphasisDotsRE.ReplaceAllString(source,
		`<span style="text-emphasis: dot;">$1</span>`)
}

func transformRuby(source string, options *Options) string {
	if !options.Extended {
		return source
	}

	return rubyRE.ReplaceAllString(source,
		"<ruby>$1<rp>(<rt>$2</rt><rp>)</rp></ruby>")
}

func transformStrikethrough(source string, options *Options) string {
	return strikethroughRE.ReplaceAllString(source, "<del>$1</del>")
}

// Links are matched along with an optional leading bang so that images are
// skipped here and left for transformImages. Go's regexp has no lookbehind,
// and consuming the preceding character instead would miss adjacent links.
func transformLinks(source string, options *Options) string {
	return replaceAllSubmatchFunc(linkRE, source, func(groups []string) string {
		if groups[1] == "!" {
			return groups[0]
		}

		return `<a href="` + groups[3] + `">` + groups[2] + `</a>`
	})
}

func transformImages(source string, options *Options) string {
	return imageRE.ReplaceAllString(source, `<img src="$2" alt="$1">`)
}

func transformHorizontalRules(source string, options *Options) string {
	return rewriteBlocks(source, func(lines []line, i int) (string, int) {
		if horizontalRuleRE.MatchString(lines[i].core) {
			return "<hr>", 1
		}
		return "", 0
	})
}

func transformHeaders4(source string, options *Options) string {
	return rewriteBlocks(source, headerMatcher(header4RE, "h4"))
}

func transformHeaders3(source string, options *Options) string {
	return rewriteBlocks(source, headerMatcher(header3RE, "h3"))
}

// Consecutive `> ` lines become a single blockquote with their prefixes
// removed and their lines separated by breaks. A line of only `>` ends the
// quote early and is dropped; on its own it's left as literal text.
func transformBlockquotes(source string, options *Options) string {
	if !options.LineQuotes {
		return source
	}

	return rewriteBlocks(source, func(lines []line, i int) (string, int) {
		var quoted []string

		j := i
		for ; j < len(lines); j++ {
			l := lines[j]

			// A new paragraph always ends the quote.
			if j > i && l.open != "" {
				break
			}

			if l.core == quoteCloseMarker {
				if len(quoted) > 0 {
					j++
				}
				break
			}

			if !strings.HasPrefix(l.core, quoteLinePrefix) {
				break
			}

			quoted = append(quoted, strings.TrimPrefix(l.core, quoteLinePrefix))

			if l.close == paragraphCloseMarker {
				j++
				break
			}
		}

		if len(quoted) < 1 {
			return "", 0
		}

		return "<blockquote>" + strings.Join(quoted, lineBreakMarker+"\n") + "</blockquote>", j - i
	})
}

func headerMatcher(re *regexp.Regexp, tag string) blockMatcher {
	return func(lines []line, i int) (string, int) {
		matches := re.FindStringSubmatch(lines[i].core)
		if matches == nil {
			return "", 0
		}

		return "<" + tag + ">" + matches[1] + "</" + tag + ">", 1
	}
}

// line is a single line of assembled output split into the paragraph markup
// that wraps it and its content.
type line struct {
	// open is a paragraph opening tag like `<p>` or `<p class="right">` that
	// starts the line.
	open string

	// core is the line's content without paragraph markup.
	core string

	// close is `<br>` or `</p>` if the line ends with one.
	close string
}

func splitLine(s string) line {
	var l line

	if open := paragraphOpenRE.FindString(s); open != "" {
		l.open = open
		s = s[len(open):]
	}

	switch {
	case strings.HasSuffix(s, lineBreakMarker):
		l.close = lineBreakMarker
	case strings.HasSuffix(s, paragraphCloseMarker):
		l.close = paragraphCloseMarker
	}

	l.core = s[:len(s)-len(l.close)]
	return l
}

// blockMatcher inspects lines starting at index i. If they start a block, it
// returns the block's HTML and the number of lines it replaces. Otherwise it
// returns zero lines.
type blockMatcher func(lines []line, i int) (string, int)

// Rewrites lines matched by match into block-level elements. Blocks can't
// live inside a paragraph, so when one interrupts a paragraph the paragraph
// is closed before it and reopened with the same opening tag after it. The
// `<p>` and `<br>` fragments that wrapped the block's own lines are dropped.
func rewriteBlocks(source string, match blockMatcher) string {
	raw := strings.Split(source, "\n")

	lines := make([]line, len(raw))
	for i, s := range raw {
		lines[i] = splitLine(s)
	}

	var (
		inParagraph bool
		opener      string
		out         = make([]string, 0, len(raw))
		reopen      bool
	)

	for i := 0; i < len(lines); {
		l := lines[i]

		if l.open != "" {
			inParagraph = true
			opener = l.open
		}

		block, n := match(lines, i)
		if n < 1 {
			s := raw[i]
			if reopen {
				s = opener + s
				reopen = false
			}
			out = append(out, s)

			if l.close == paragraphCloseMarker {
				inParagraph = false
			}

			i++
			continue
		}

		// The block interrupts a paragraph that already has content, which
		// must be closed first.
		if inParagraph && l.open == "" && !reopen && len(out) > 0 {
			last := strings.TrimSuffix(out[len(out)-1], lineBreakMarker)
			out[len(out)-1] = last + paragraphCloseMarker
		}

		reopen = false
		out = append(out, block)

		switch lines[i+n-1].close {
		case lineBreakMarker:
			reopen = inParagraph
		case paragraphCloseMarker:
			inParagraph = false
		}

		i += n
	}

	return strings.Join(out, "\n")
}

// Like regexp's ReplaceAllStringFunc, but passes submatches to f.
func replaceAllSubmatchFunc(re *regexp.Regexp, source string, f func([]string) string) string {
	var sb strings.Builder
	last := 0

	for _, loc := range re.FindAllStringSubmatchIndex(source, -1) {
		groups := make([]string, len(loc)/2)
		for i := range groups {
			if loc[2*i] >= 0 {
				groups[i] = source[loc[2*i]:loc[2*i+1]]
			}
		}

		sb.WriteString(source[last:loc[0]])
		sb.WriteString(f(groups))
		last = loc[1]
	}

	sb.WriteString(source[last:])
	return sb.String()
}
