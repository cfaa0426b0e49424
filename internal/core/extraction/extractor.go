package extraction

import (
	"regexp"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/agenthands/intake/internal/config"
	"github.com/agenthands/intake/internal/core/model"
)

// fieldMatcher finds one field. A nil label regexp marks a pattern that
// failed to compile; the field is then always absent.
type fieldMatcher struct {
	field model.Field
	label *regexp.Regexp
	value *regexp.Regexp
	clean func(string) string
}

// Extractor pulls a fixed set of fields out of request text. It holds only
// compiled patterns and is safe for concurrent use.
type Extractor struct {
	fields []fieldMatcher
	// every label of every field; a captured value never runs past one
	boundary *regexp.Regexp
	// any label ending exactly at the end of the input
	tail   *regexp.Regexp
	logger *zap.Logger
}

func NewExtractor(patterns []config.FieldPattern, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Extractor{logger: logger}

	var allLabels []string
	for _, p := range patterns {
		m := fieldMatcher{field: p.Field, clean: strings.TrimSpace}
		if p.Numeric {
			m.clean = stripThousands
		}

		label, value, err := compile(p)
		if err != nil {
			logger.Warn("extraction: pattern disabled",
				zap.String("field", string(p.Field)),
				zap.Error(err),
			)
		} else {
			m.label = label
			m.value = value
			allLabels = append(allLabels, p.Labels...)
		}
		e.fields = append(e.fields, m)
	}

	if len(allLabels) > 0 {
		e.boundary = regexp.MustCompile(labelExpr(allLabels))
		e.tail = regexp.MustCompile(labelExpr(allLabels) + `\z`)
	}
	return e
}

// compile builds the label and value expressions for one pattern. Labels
// match case-insensitively anywhere in the text, including glued to the
// preceding word.
func compile(p config.FieldPattern) (*regexp.Regexp, *regexp.Regexp, error) {
	if len(p.Labels) == 0 {
		return nil, nil, eris.New("pattern has no labels")
	}
	label, err := regexp.Compile(labelExpr(p.Labels))
	if err != nil {
		return nil, nil, eris.Wrap(err, "label expression")
	}
	value, err := regexp.Compile(`(?i)^\s*(` + p.Value + `+)`)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "value expression %q", p.Value)
	}
	return label, value, nil
}

func labelExpr(labels []string) string {
	alts := make([]string, 0, len(labels))
	for _, l := range labels {
		words := strings.Fields(l)
		for i, w := range words {
			words[i] = regexp.QuoteMeta(w)
		}
		alts = append(alts, strings.Join(words, `\s+`))
	}
	// longest first so "Sub-Request Type" is preferred over shorter overlaps
	sort.SliceStable(alts, func(i, j int) bool { return len(alts[i]) > len(alts[j]) })
	return `(?i)((?:` + strings.Join(alts, "|") + `)\s*:)`
}

func stripThousands(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), ",", "")
}

// Extract returns the fields found in text. Fields are matched
// independently; the first labelled occurrence of each wins.
func (e *Extractor) Extract(text string) model.ExtractedFields {
	var out model.ExtractedFields
	for _, m := range e.fields {
		out = out.With(m.field, e.match(m, text))
	}
	return out
}

func (e *Extractor) match(m fieldMatcher, text string) (result *string) {
	if m.label == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("extraction: field match failed",
				zap.String("field", string(m.field)),
				zap.Any("panic", r),
			)
			result = nil
		}
	}()

	start := -1
	for _, loc := range m.label.FindAllStringSubmatchIndex(text, -1) {
		if !e.shadowed(text, loc[2], loc[3]) {
			start = loc[3]
			break
		}
	}
	if start < 0 {
		return nil
	}
	end := len(text)
	if next := e.nextLabel(text, start); next >= 0 {
		end = next
	}
	if nl := strings.IndexAny(text[start:end], "\r\n"); nl >= 0 {
		// allow the value to begin on the line after the label
		if strings.TrimSpace(text[start:start+nl]) != "" {
			end = start + nl
		}
	}

	v := m.value.FindStringSubmatch(text[start:end])
	if v == nil {
		return nil
	}
	value := m.clean(v[1])
	if value == "" {
		return nil
	}
	return &value
}

// shadowed reports whether the label found at text[from:to] is the tail of a
// longer configured label ending at the same colon, as "Request Type:" is
// inside "Sub-Request Type:".
func (e *Extractor) shadowed(text string, from, to int) bool {
	if e.tail == nil {
		return false
	}
	loc := e.tail.FindStringIndex(text[:to])
	return loc != nil && loc[0] < from
}

// nextLabel returns the offset of the first label starting at or after pos,
// or -1.
func (e *Extractor) nextLabel(text string, pos int) int {
	if e.boundary == nil {
		return -1
	}
	loc := e.boundary.FindStringSubmatchIndex(text[pos:])
	if loc == nil {
		return -1
	}
	return pos + loc[2]
}
