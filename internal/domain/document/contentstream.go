package document

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf16"
)

// kerningSpace is the TJ displacement (thousandths of an em) beyond which a
// gap is rendered as a space.
const kerningSpace = 200

// baselineTolerance is how far (user space units) two baselines may differ
// and still belong to the same line.
const baselineTolerance = 1.0

type operand struct {
	text   string
	num    float64
	isNum  bool
	isText bool
	array  []operand
}

// ContentStreamText replays the text operators of a decoded page content
// stream (Tj, TJ, ', ", Td, TD, T*, Tm) and returns the page as lines.
// Text drawn at a different baseline starts a new line; text repositioned on
// the same baseline is separated by a space.
func ContentStreamText(data []byte) string {
	p := &streamParser{data: data}
	w := &lineWriter{}

	var stack []operand
	var y, lineY float64
	scale := 1.0
	haveLine, moved := false, false

	show := func(s string) {
		if s == "" {
			return
		}
		if haveLine && math.Abs(y-lineY) > baselineTolerance {
			w.newline()
		} else if moved {
			w.space()
		}
		w.text(s)
		lineY, haveLine, moved = y, true, false
	}

	for {
		tok, ok := p.next()
		if !ok {
			break
		}

		switch {
		case tok.isText || tok.isNum || tok.array != nil:
			stack = append(stack, tok)
			continue
		case tok.text == "":
			continue
		}

		switch tok.text {
		case "BT":
			y, scale, moved = 0, 1, true
		case "Tm":
			if nums := numbers(stack); len(nums) >= 6 {
				n := len(nums)
				y, scale, moved = nums[n-1], nums[n-3], true
				if scale == 0 {
					scale = 1
				}
			}
		case "Td", "TD":
			if nums := numbers(stack); len(nums) >= 2 {
				y += nums[len(nums)-1] * scale
				moved = true
			}
		case "T*":
			w.newline()
			haveLine = false
		case "Tj":
			show(lastText(stack))
		case "'", "\"":
			w.newline()
			haveLine = false
			show(lastText(stack))
		case "TJ":
			if n := len(stack); n > 0 {
				for _, item := range stack[n-1].array {
					if item.isNum {
						if -item.num > kerningSpace {
							moved = true
						}
						continue
					}
					show(item.text)
				}
			}
		case "ID":
			p.skipInlineImage()
		}
		stack = stack[:0]
	}

	return w.String()
}

func lastText(stack []operand) string {
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i].isText {
			return stack[i].text
		}
	}
	return ""
}

func numbers(stack []operand) []float64 {
	nums := make([]float64, 0, len(stack))
	for _, op := range stack {
		if op.isNum {
			nums = append(nums, op.num)
		}
	}
	return nums
}

// lineWriter accumulates text into trimmed, non-empty lines.
type lineWriter struct {
	lines   []string
	current strings.Builder
}

func (w *lineWriter) text(s string) {
	w.current.WriteString(s)
}

func (w *lineWriter) space() {
	if w.current.Len() > 0 {
		w.current.WriteByte(' ')
	}
}

func (w *lineWriter) newline() {
	line := strings.Join(strings.Fields(w.current.String()), " ")
	if line != "" {
		w.lines = append(w.lines, line)
	}
	w.current.Reset()
}

func (w *lineWriter) String() string {
	w.newline()
	return strings.Join(w.lines, "\n")
}

type streamParser struct {
	data []byte
	pos  int
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func isWhite(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '\f', 0:
		return true
	}
	return false
}

func (p *streamParser) skipWhite() {
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		if isWhite(c) {
			p.pos++
			continue
		}
		if c == '%' {
			for p.pos < len(p.data) && p.data[p.pos] != '\n' && p.data[p.pos] != '\r' {
				p.pos++
			}
			continue
		}
		return
	}
}

// next returns the following operand or operator. Operators are returned as
// an operand with only text set and isText false.
func (p *streamParser) next() (operand, bool) {
	p.skipWhite()
	if p.pos >= len(p.data) {
		return operand{}, false
	}

	c := p.data[p.pos]
	switch {
	case c == '(':
		p.pos++
		return operand{text: p.literal(), isText: true}, true
	case c == '<' && p.pos+1 < len(p.data) && p.data[p.pos+1] == '<':
		p.pos += 2
		return operand{}, true
	case c == '>' && p.pos+1 < len(p.data) && p.data[p.pos+1] == '>':
		p.pos += 2
		return operand{}, true
	case c == '<':
		p.pos++
		return operand{text: p.hex(), isText: true}, true
	case c == '[':
		p.pos++
		items := []operand{}
		for {
			p.skipWhite()
			if p.pos >= len(p.data) {
				break
			}
			if p.data[p.pos] == ']' {
				p.pos++
				break
			}
			item, ok := p.next()
			if !ok {
				break
			}
			if item.isText || item.isNum {
				items = append(items, item)
			}
		}
		return operand{array: items}, true
	case c == '/':
		p.pos++
		p.word()
		return operand{}, true
	case c == ']' || c == ')' || c == '>' || c == '{' || c == '}':
		p.pos++
		return operand{}, true
	}

	word := p.word()
	if word == "" {
		p.pos++
		return operand{}, true
	}
	if n, err := strconv.ParseFloat(word, 64); err == nil {
		return operand{num: n, isNum: true}, true
	}
	return operand{text: word}, true
}

func (p *streamParser) word() string {
	start := p.pos
	for p.pos < len(p.data) && !isWhite(p.data[p.pos]) && !isDelimiter(p.data[p.pos]) {
		p.pos++
	}
	return string(p.data[start:p.pos])
}

func (p *streamParser) literal() string {
	var raw []byte
	depth := 1
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		p.pos++
		switch c {
		case '\\':
			if p.pos >= len(p.data) {
				return decodeBytes(raw)
			}
			e := p.data[p.pos]
			p.pos++
			switch e {
			case 'n':
				raw = append(raw, '\n')
			case 'r':
				raw = append(raw, '\r')
			case 't':
				raw = append(raw, '\t')
			case 'b':
				raw = append(raw, '\b')
			case 'f':
				raw = append(raw, '\f')
			case '\r', '\n':
				// line continuation
			default:
				if e >= '0' && e <= '7' {
					val := int(e - '0')
					for i := 0; i < 2 && p.pos < len(p.data) && p.data[p.pos] >= '0' && p.data[p.pos] <= '7'; i++ {
						val = val*8 + int(p.data[p.pos]-'0')
						p.pos++
					}
					raw = append(raw, byte(val))
				} else {
					raw = append(raw, e)
				}
			}
		case '(':
			depth++
			raw = append(raw, c)
		case ')':
			depth--
			if depth == 0 {
				return decodeBytes(raw)
			}
			raw = append(raw, c)
		default:
			raw = append(raw, c)
		}
	}
	return decodeBytes(raw)
}

func (p *streamParser) hex() string {
	var raw []byte
	var hi byte
	half := false
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		p.pos++
		if c == '>' {
			break
		}
		v, ok := hexValue(c)
		if !ok {
			continue
		}
		if half {
			raw = append(raw, hi<<4|v)
		} else {
			hi = v
		}
		half = !half
	}
	if half {
		raw = append(raw, hi<<4)
	}
	return decodeBytes(raw)
}

func (p *streamParser) skipInlineImage() {
	for p.pos+2 < len(p.data) {
		if isWhite(p.data[p.pos]) && p.data[p.pos+1] == 'E' && p.data[p.pos+2] == 'I' &&
			(p.pos+3 >= len(p.data) || isWhite(p.data[p.pos+3])) {
			p.pos += 3
			return
		}
		p.pos++
	}
	p.pos = len(p.data)
}

func hexValue(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// decodeBytes turns a PDF string into text: UTF-16BE when it carries a BOM,
// otherwise one rune per byte (PDFDocEncoding/WinAnsi share Latin-1 for the
// characters statements use).
func decodeBytes(raw []byte) string {
	if len(raw) >= 2 && raw[0] == 0xFE && raw[1] == 0xFF {
		units := make([]uint16, 0, (len(raw)-2)/2)
		for i := 2; i+1 < len(raw); i += 2 {
			units = append(units, uint16(raw[i])<<8|uint16(raw[i+1]))
		}
		return string(utf16.Decode(units))
	}

	var sb strings.Builder
	sb.Grow(len(raw))
	for _, b := range raw {
		sb.WriteRune(rune(b))
	}
	return sb.String()
}
