package compiler

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var bubblingAtRules = map[string]struct{}{
	"@media":     {},
	"@supports":  {},
	"@document":  {},
	"@container": {},
}

// parser 在一次 Parse 内有效，记录读取过的文件与当前导入栈（用于检测循环导入）。
type parser struct {
	syntax Syntax
	files  []string
	seen   map[string]struct{}
	stack  []string
}

func newParser(syntax Syntax) *parser {
	return &parser{
		syntax: syntax,
		seen:   make(map[string]struct{}),
	}
}

func (p *parser) record(path string) {
	if _, ok := p.seen[path]; ok {
		return
	}
	p.seen[path] = struct{}{}
	p.files = append(p.files, path)
}

func (p *parser) parseFile(path string) ([]*Node, error) {
	for _, open := range p.stack {
		if open == path {
			return nil, &CompileError{File: path, Message: "import cycle detected"}
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &CompileError{File: path, Message: "cannot read stylesheet", Err: err}
	}
	p.record(path)

	p.stack = append(p.stack, path)
	defer func() { p.stack = p.stack[:len(p.stack)-1] }()

	s := &scanner{src: stripComments(string(data)), file: path}
	return p.parseBlock(s, false)
}

func (p *parser) parseBlock(s *scanner, nested bool) ([]*Node, error) {
	var nodes []*Node
	for {
		s.skipSpace()
		if s.eof() {
			if nested {
				return nil, errorAt(s.file, s.lineAt(s.pos), "unclosed block")
			}
			return nodes, nil
		}
		if s.peek() == '}' {
			if !nested {
				return nil, errorAt(s.file, s.lineAt(s.pos), "unexpected }")
			}
			s.pos++
			return nodes, nil
		}

		start := s.pos
		text, term := s.readStatement()
		text = strings.TrimSpace(text)
		line := s.lineAt(start)

		if term == '{' {
			children, err := p.parseBlock(s, true)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, blockNode(text, children, s.file, line))
			continue
		}
		if text == "" {
			continue
		}
		stmt, err := p.statement(s, text, line)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, stmt...)
	}
}

func blockNode(header string, children []*Node, file string, line int) *Node {
	if strings.HasPrefix(header, "@") {
		keyword := header
		if idx := strings.IndexAny(header, " \t\n("); idx > 0 {
			keyword = header[:idx]
		}
		_, bubble := bubblingAtRules[strings.ToLower(keyword)]
		return &Node{Kind: KindAtBlock, Name: header, Bubble: bubble, Children: children, File: file, Line: line}
	}
	return &Node{Kind: KindRule, Name: header, Children: children, File: file, Line: line}
}

func (p *parser) statement(s *scanner, text string, line int) ([]*Node, error) {
	switch {
	case strings.HasPrefix(text, "$"):
		idx := strings.Index(text, ":")
		if idx <= 1 {
			return nil, errorAt(s.file, line, "invalid variable declaration: %s", text)
		}
		value := strings.TrimSpace(text[idx+1:])
		def := false
		for _, flag := range []string{"!default", "!global"} {
			if strings.HasSuffix(value, flag) {
				value = strings.TrimSpace(strings.TrimSuffix(value, flag))
				def = def || flag == "!default"
			}
		}
		return []*Node{{
			Kind:    KindVariable,
			Name:    strings.TrimSpace(text[1:idx]),
			Value:   value,
			Default: def,
			File:    s.file,
			Line:    line,
		}}, nil
	case hasKeyword(text, "@import"):
		return p.imports(s, strings.TrimSpace(text[len("@import"):]), line)
	case strings.HasPrefix(text, "@"):
		return []*Node{{Kind: KindAtStatement, Name: text, File: s.file, Line: line}}, nil
	default:
		idx := strings.Index(text, ":")
		if idx <= 0 {
			return nil, errorAt(s.file, line, "invalid declaration: %s", text)
		}
		return []*Node{{
			Kind:  KindDeclaration,
			Name:  strings.TrimSpace(text[:idx]),
			Value: strings.TrimSpace(text[idx+1:]),
			File:  s.file,
			Line:  line,
		}}, nil
	}
}

// imports 展开 @import：可解析的本地样式文件内联进当前位置，
// url()/.css/远程地址/带媒体查询的导入原样保留给浏览器处理。
func (p *parser) imports(s *scanner, list string, line int) ([]*Node, error) {
	var nodes []*Node
	for _, item := range splitTopLevel(list, ',') {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		name, ok := unquote(item)
		if !ok || p.syntax == SyntaxCSS || isPlainCSSImport(name) {
			nodes = append(nodes, &Node{Kind: KindAtStatement, Name: "@import " + item, File: s.file, Line: line})
			continue
		}

		target, found := resolveImport(filepath.Dir(s.file), name)
		if !found {
			return nil, &CompileError{
				File:    s.file,
				Line:    line,
				Message: fmt.Sprintf("import not found: %s", name),
				Err:     fs.ErrNotExist,
			}
		}
		imported, err := p.parseFile(target)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, imported...)
	}
	return nodes, nil
}

func isPlainCSSImport(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".css") ||
		strings.HasPrefix(lower, "http://") ||
		strings.HasPrefix(lower, "https://") ||
		strings.HasPrefix(lower, "//")
}

func resolveImport(dir, name string) (string, bool) {
	base := filepath.Join(dir, filepath.FromSlash(name))
	var candidates []string
	switch strings.ToLower(filepath.Ext(base)) {
	case ".scss":
		candidates = []string{base, partialName(base)}
	default:
		candidates = []string{base + ".scss", partialName(base + ".scss")}
	}
	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, true
		}
	}
	return "", false
}

func partialName(path string) string {
	return filepath.Join(filepath.Dir(path), "_"+filepath.Base(path))
}

// unquote 仅接受完整的单/双引号字符串，其余（如 url(...) 或带媒体查询）返回 false。
func unquote(item string) (string, bool) {
	if len(item) < 2 {
		return "", false
	}
	q := item[0]
	if (q != '"' && q != '\'') || item[len(item)-1] != q {
		return "", false
	}
	inner := item[1 : len(item)-1]
	if strings.IndexByte(inner, q) >= 0 {
		return "", false
	}
	return inner, true
}

func hasKeyword(text, keyword string) bool {
	if !strings.HasPrefix(text, keyword) {
		return false
	}
	if len(text) == len(keyword) {
		return true
	}
	switch text[len(keyword)] {
	case ' ', '\t', '\n', '\r', '"', '\'':
		return true
	}
	return false
}

// stripComments 去掉 /* */ 与 // 注释，保留换行以维持行号。
func stripComments(src string) string {
	var b strings.Builder
	b.Grow(len(src))
	var quote byte
	parens := 0
	for i := 0; i < len(src); i++ {
		c := src[i]
		if quote != 0 {
			b.WriteByte(c)
			if c == '\\' && i+1 < len(src) {
				i++
				b.WriteByte(src[i])
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch {
		case c == '"' || c == '\'':
			quote = c
		case c == '(':
			parens++
		case c == ')' && parens > 0:
			parens--
		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			end := strings.Index(src[i+2:], "*/")
			if end < 0 {
				end = len(src) - i - 2
			} else {
				end += 2
			}
			for _, r := range src[i : i+2+end] {
				if r == '\n' {
					b.WriteByte('\n')
				}
			}
			i += 1 + end
			continue
		case c == '/' && parens == 0 && i+1 < len(src) && src[i+1] == '/':
			for i < len(src) && src[i] != '\n' {
				i++
			}
			if i < len(src) {
				b.WriteByte('\n')
			}
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

type scanner struct {
	src  string
	pos  int
	file string
}

func (s *scanner) eof() bool  { return s.pos >= len(s.src) }
func (s *scanner) peek() byte { return s.src[s.pos] }

func (s *scanner) lineAt(pos int) int {
	if pos > len(s.src) {
		pos = len(s.src)
	}
	return 1 + strings.Count(s.src[:pos], "\n")
}

func (s *scanner) skipSpace() {
	for !s.eof() {
		switch s.peek() {
		case ' ', '\t', '\n', '\r', '\f':
			s.pos++
		default:
			return
		}
	}
}

// readStatement 读取到顶层的 ';'、'{' 或 '}' 为止。';' 与 '{' 会被消费，'}' 留给调用方。
// 引号、括号与 #{...} 插值内部的分隔符不参与判断。
func (s *scanner) readStatement() (string, byte) {
	start := s.pos
	var quote byte
	depth := 0
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		if quote != 0 {
			if c == '\\' {
				s.pos += 2
				continue
			}
			if c == quote {
				quote = 0
			}
			s.pos++
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '(', '[':
			depth++
		case ')', ']':
			if depth > 0 {
				depth--
			}
		case '#':
			if s.pos+1 < len(s.src) && s.src[s.pos+1] == '{' {
				if end := strings.IndexByte(s.src[s.pos:], '}'); end > 0 {
					s.pos += end + 1
					continue
				}
			}
		case ';', '{':
			if depth == 0 {
				text := s.src[start:s.pos]
				s.pos++
				return text, c
			}
		case '}':
			if depth == 0 {
				return s.src[start:s.pos], c
			}
		}
		s.pos++
	}
	if s.pos > len(s.src) {
		s.pos = len(s.src)
	}
	return s.src[start:], 0
}

// splitTopLevel 按分隔符切分，忽略引号与括号内部。
func splitTopLevel(text string, sep byte) []string {
	var parts []string
	var quote byte
	depth, last := 0, 0
	for i := 0; i < len(text); i++ {
		c := text[i]
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '(', '[':
			depth++
		case ')', ']':
			if depth > 0 {
				depth--
			}
		case sep:
			if depth == 0 {
				parts = append(parts, text[last:i])
				last = i + 1
			}
		}
	}
	return append(parts, text[last:])
}
