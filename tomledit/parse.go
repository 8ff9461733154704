package tomledit

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ParseFile reads and parses a TOML document from disk.
func ParseFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Parse(path, data)
}

// Parse parses TOML content into a lossless document. The document retains
// all whitespace, comments, and quoting so that Serialize reproduces the
// input exactly.
func Parse(name string, data []byte) (*Document, error) {
	p := &parser{name: name, src: string(data)}
	return p.parse()
}

type parser struct {
	name string
	src  string
	pos  int
}

func (p *parser) errf(at int, format string, args ...any) *ParseError {
	line, col := 1, 1
	for i := 0; i < at && i < len(p.src); i++ {
		if p.src[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return &ParseError{
		Pos:     Position{Filename: p.name, Line: line, Column: col},
		Message: fmt.Sprintf(format, args...),
	}
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

// skipTrivia consumes whitespace, newlines, and full comment lines, returning
// the consumed text.
func (p *parser) skipTrivia() string {
	start := p.pos
	for !p.eof() {
		c := p.src[p.pos]
		if c == ' ' || c == '\t' || c == '\r' || c == '\n' {
			p.pos++
			continue
		}
		if c == '#' {
			for !p.eof() && p.src[p.pos] != '\n' {
				p.pos++
			}
			continue
		}
		break
	}
	return p.src[start:p.pos]
}

// skipInlineSpace consumes spaces and tabs only.
func (p *parser) skipInlineSpace() {
	for !p.eof() {
		c := p.src[p.pos]
		if c != ' ' && c != '\t' {
			break
		}
		p.pos++
	}
}

// restOfLine consumes trailing spaces, an optional comment, and the line
// terminator, returning the consumed text.
func (p *parser) restOfLine() (string, error) {
	start := p.pos
	p.skipInlineSpace()
	if !p.eof() && p.src[p.pos] == '#' {
		for !p.eof() && p.src[p.pos] != '\n' {
			p.pos++
		}
	}
	if p.eof() {
		return p.src[start:p.pos], nil
	}
	if p.src[p.pos] == '\r' {
		p.pos++
	}
	if p.eof() {
		return p.src[start:p.pos], nil
	}
	if p.src[p.pos] != '\n' {
		return "", p.errf(p.pos, "expected newline, found %q", p.src[p.pos])
	}
	p.pos++
	return p.src[start:p.pos], nil
}

func (p *parser) parse() (*Document, error) {
	doc := &Document{name: p.name}
	root := &Table{doc: doc}
	doc.blocks = append(doc.blocks, root)
	current := root

	for {
		trivia := p.skipTrivia()
		if p.eof() {
			doc.trailer = trivia
			break
		}
		if p.peek() == '[' {
			tbl, err := p.parseHeader(doc, trivia)
			if err != nil {
				return nil, err
			}
			doc.blocks = append(doc.blocks, tbl)
			current = tbl
			continue
		}
		ent, err := p.parseEntry(trivia)
		if err != nil {
			return nil, err
		}
		current.entries = append(current.entries, ent)
	}

	for _, b := range doc.blocks {
		b.sorted = keysAreSorted(b.entries)
	}
	return doc, nil
}

func (p *parser) parseHeader(doc *Document, trivia string) (*Table, error) {
	start := p.pos
	p.pos++ // consume '['
	array := false
	if !p.eof() && p.peek() == '[' {
		array = true
		p.pos++
	}
	p.skipInlineSpace()
	_, path, err := p.parseKey()
	if err != nil {
		return nil, err
	}
	p.skipInlineSpace()
	if p.eof() || p.peek() != ']' {
		return nil, p.errf(p.pos, "expected ']' in table header")
	}
	p.pos++
	if array {
		if p.eof() || p.peek() != ']' {
			return nil, p.errf(p.pos, "expected ']]' in array table header")
		}
		p.pos++
	}
	if _, err := p.restOfLine(); err != nil {
		return nil, err
	}
	return &Table{
		doc:    doc,
		trivia: trivia,
		header: p.src[start:p.pos],
		path:   path,
		array:  array,
	}, nil
}

func (p *parser) parseEntry(trivia string) (*Entry, error) {
	rawKey, key, err := p.parseKey()
	if err != nil {
		return nil, err
	}
	p.skipInlineSpace()
	if p.eof() || p.peek() != '=' {
		return nil, p.errf(p.pos, "expected '=' after key %q", strings.Join(key, "."))
	}
	eqStart := p.pos - lenTrailingSpace(p.src[:p.pos])
	p.pos++
	p.skipInlineSpace()
	eq := p.src[eqStart:p.pos]
	val, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	suffix, err := p.restOfLine()
	if err != nil {
		return nil, err
	}
	return &Entry{
		trivia: trivia,
		rawKey: rawKey,
		key:    key,
		eq:     eq,
		val:    val,
		suffix: suffix,
	}, nil
}

func lenTrailingSpace(s string) int {
	n := 0
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] != ' ' && s[i] != '\t' {
			break
		}
		n++
	}
	return n
}

// parseKey parses a possibly dotted key, returning the raw text and the
// decoded segments.
func (p *parser) parseKey() (string, []string, error) {
	start := p.pos
	var parts []string
	for {
		seg, err := p.parseKeySegment()
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, seg)
		mark := p.pos
		p.skipInlineSpace()
		if !p.eof() && p.peek() == '.' {
			p.pos++
			p.skipInlineSpace()
			continue
		}
		p.pos = mark
		break
	}
	return p.src[start:p.pos], parts, nil
}

func (p *parser) parseKeySegment() (string, error) {
	if p.eof() {
		return "", p.errf(p.pos, "unexpected end of input in key")
	}
	switch p.peek() {
	case '"':
		return p.parseBasicString(false)
	case '\'':
		return p.parseLiteralString(false)
	}
	start := p.pos
	for !p.eof() {
		c := p.src[p.pos]
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '-' || c == '_' {
			p.pos++
			continue
		}
		break
	}
	if p.pos == start {
		return "", p.errf(p.pos, "invalid key character %q", p.peek())
	}
	return p.src[start:p.pos], nil
}

func (p *parser) parseValue() (*Value, error) {
	if p.eof() {
		return nil, p.errf(p.pos, "unexpected end of input, expected a value")
	}
	start := p.pos
	switch p.peek() {
	case '"':
		if strings.HasPrefix(p.src[p.pos:], `"""`) {
			s, err := p.parseBasicString(true)
			if err != nil {
				return nil, err
			}
			return &Value{kind: KindString, raw: p.src[start:p.pos], str: s}, nil
		}
		s, err := p.parseBasicString(false)
		if err != nil {
			return nil, err
		}
		return &Value{kind: KindString, raw: p.src[start:p.pos], str: s}, nil
	case '\'':
		multi := strings.HasPrefix(p.src[p.pos:], "'''")
		s, err := p.parseLiteralString(multi)
		if err != nil {
			return nil, err
		}
		return &Value{kind: KindString, raw: p.src[start:p.pos], str: s}, nil
	case '[':
		return p.parseArray()
	case '{':
		return p.parseInlineTable()
	}
	return p.parseScalar()
}

func (p *parser) parseBasicString(multi bool) (string, error) {
	start := p.pos
	delim := `"`
	if multi {
		delim = `"""`
	}
	p.pos += len(delim)
	if multi && !p.eof() && p.peek() == '\n' {
		p.pos++
	}
	var sb strings.Builder
	for {
		if p.eof() {
			return "", p.errf(start, "unterminated string")
		}
		if strings.HasPrefix(p.src[p.pos:], delim) {
			p.pos += len(delim)
			// A multiline delimiter may be followed by up to two extra quotes
			// that belong to the content.
			for multi && !p.eof() && p.peek() == '"' {
				sb.WriteByte('"')
				p.pos++
			}
			return sb.String(), nil
		}
		c := p.src[p.pos]
		if c == '\\' {
			p.pos++
			if p.eof() {
				return "", p.errf(start, "unterminated string")
			}
			e := p.src[p.pos]
			switch e {
			case 'n':
				sb.WriteByte('\n')
				p.pos++
			case 't':
				sb.WriteByte('\t')
				p.pos++
			case 'r':
				sb.WriteByte('\r')
				p.pos++
			case 'b':
				sb.WriteByte('\b')
				p.pos++
			case 'f':
				sb.WriteByte('\f')
				p.pos++
			case '"':
				sb.WriteByte('"')
				p.pos++
			case '\\':
				sb.WriteByte('\\')
				p.pos++
			case 'u', 'U':
				n := 4
				if e == 'U' {
					n = 8
				}
				p.pos++
				if p.pos+n > len(p.src) {
					return "", p.errf(start, "truncated unicode escape")
				}
				code, err := strconv.ParseUint(p.src[p.pos:p.pos+n], 16, 32)
				if err != nil {
					return "", p.errf(p.pos, "invalid unicode escape")
				}
				sb.WriteRune(rune(code))
				p.pos += n
			case '\n', ' ', '\t', '\r':
				if !multi {
					return "", p.errf(p.pos, "invalid escape character %q", e)
				}
				// Line-ending backslash: trim following whitespace.
				for !p.eof() {
					c := p.src[p.pos]
					if c != ' ' && c != '\t' && c != '\n' && c != '\r' {
						break
					}
					p.pos++
				}
			default:
				return "", p.errf(p.pos, "invalid escape character %q", e)
			}
			continue
		}
		if c == '\n' && !multi {
			return "", p.errf(start, "unterminated string")
		}
		sb.WriteByte(c)
		p.pos++
	}
}

func (p *parser) parseLiteralString(multi bool) (string, error) {
	start := p.pos
	delim := "'"
	if multi {
		delim = "'''"
	}
	p.pos += len(delim)
	if multi && !p.eof() && p.peek() == '\n' {
		p.pos++
	}
	end := strings.Index(p.src[p.pos:], delim)
	if end < 0 {
		return "", p.errf(start, "unterminated literal string")
	}
	if !multi && strings.Contains(p.src[p.pos:p.pos+end], "\n") {
		return "", p.errf(start, "unterminated literal string")
	}
	s := p.src[p.pos : p.pos+end]
	p.pos += end + len(delim)
	return s, nil
}

func (p *parser) parseArray() (*Value, error) {
	start := p.pos
	p.pos++ // consume '['
	v := &Value{kind: KindArray}
	for {
		preStart := p.pos
		p.skipTrivia()
		pre := p.src[preStart:p.pos]
		if p.eof() {
			return nil, p.errf(start, "unterminated array")
		}
		if p.peek() == ']' {
			p.pos++
			v.tail = pre
			break
		}
		elem, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		postStart := p.pos
		p.skipTrivia()
		if !p.eof() && p.peek() == ',' {
			p.pos++
		}
		v.items = append(v.items, &arrayItem{pre: pre, val: elem, post: p.src[postStart:p.pos]})
	}
	v.raw = p.src[start:p.pos]
	return v, nil
}

func (p *parser) parseInlineTable() (*Value, error) {
	start := p.pos
	p.pos++ // consume '{'
	v := &Value{kind: KindInlineTable}
	for {
		preStart := p.pos
		p.skipInlineSpace()
		pre := p.src[preStart:p.pos]
		if p.eof() {
			return nil, p.errf(start, "unterminated inline table")
		}
		if p.peek() == '}' {
			p.pos++
			v.tail = pre
			break
		}
		rawKey, key, err := p.parseKey()
		if err != nil {
			return nil, err
		}
		p.skipInlineSpace()
		if p.eof() || p.peek() != '=' {
			return nil, p.errf(p.pos, "expected '=' in inline table")
		}
		eqStart := p.pos - lenTrailingSpace(p.src[:p.pos])
		p.pos++
		p.skipInlineSpace()
		eq := p.src[eqStart:p.pos]
		elem, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		postStart := p.pos
		p.skipInlineSpace()
		if !p.eof() && p.peek() == ',' {
			p.pos++
		}
		v.fields = append(v.fields, &inlineEntry{
			pre:    pre,
			rawKey: rawKey,
			key:    strings.Join(key, "."),
			eq:     eq,
			val:    elem,
			post:   p.src[postStart:p.pos],
		})
	}
	v.raw = p.src[start:p.pos]
	return v, nil
}

func (p *parser) parseScalar() (*Value, error) {
	start := p.pos
	for !p.eof() {
		c := p.src[p.pos]
		if c == ',' || c == ']' || c == '}' || c == '#' || c == '\n' || c == '\r' {
			break
		}
		p.pos++
	}
	raw := strings.TrimRight(p.src[start:p.pos], " \t")
	p.pos = start + len(raw)
	if raw == "" {
		return nil, p.errf(start, "expected a value")
	}
	switch raw {
	case "true":
		return &Value{kind: KindBool, raw: raw, b: true}, nil
	case "false":
		return &Value{kind: KindBool, raw: raw, b: false}, nil
	}
	if looksLikeDatetime(raw) {
		return &Value{kind: KindDatetime, raw: raw}, nil
	}
	clean := strings.ReplaceAll(raw, "_", "")
	if isPrefixedInt(clean) || !strings.ContainsAny(clean, ".eE") {
		if i, err := strconv.ParseInt(clean, 0, 64); err == nil {
			return &Value{kind: KindInteger, raw: raw, i: i}, nil
		}
	}
	if _, err := strconv.ParseFloat(clean, 64); err == nil {
		return &Value{kind: KindFloat, raw: raw}, nil
	}
	switch clean {
	case "inf", "+inf", "-inf", "nan", "+nan", "-nan":
		return &Value{kind: KindFloat, raw: raw}, nil
	}
	return nil, p.errf(start, "invalid value %q", raw)
}

func isPrefixedInt(s string) bool {
	return strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0o") || strings.HasPrefix(s, "0b")
}

// looksLikeDatetime detects offset/local date-times, dates, and times.
func looksLikeDatetime(s string) bool {
	if len(s) < 8 {
		return false
	}
	if s[2] == ':' {
		return true // local time, e.g. 07:32:00
	}
	// Dates start with a four-digit year.
	for i := 0; i < 4; i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s[4] == '-'
}

func keysAreSorted(entries []*Entry) bool {
	for i := 1; i < len(entries); i++ {
		if entries[i-1].key[0] > entries[i].key[0] {
			return false
		}
	}
	return true
}
