package compiler

import (
	"math"
	"strconv"
	"strings"
)

// outNode 是展开嵌套后的输出结构：普通规则只有 header+decls，
// at 块通过 children 承载内部规则。raw 非空时表示原样输出的语句。
type outNode struct {
	header   string
	selector []string
	decls    []declaration
	children []*outNode
	raw      string
	isAt     bool
	file     string
	line     int
}

type declaration struct {
	property string
	value    string
}

type scope struct {
	vars   map[string]string
	parent *scope
}

func newScope(parent *scope) *scope {
	return &scope{vars: make(map[string]string), parent: parent}
}

func (s *scope) lookup(name string) (string, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if v, ok := cur.vars[name]; ok {
			return v, true
		}
	}
	return "", false
}

type walkContext struct {
	selectors []string
	scope     *scope
	container *[]*outNode
}

type renderer struct {
	opts Options
}

func (r *renderer) render(tree *Tree) ([]byte, error) {
	var top []*outNode
	ctx := walkContext{scope: newScope(nil), container: &top}
	if err := r.walk(tree.Nodes, ctx, nil); err != nil {
		return nil, err
	}
	var b strings.Builder
	r.emit(&b, top, 0)
	out := b.String()
	if r.opts.Style != StyleCompressed {
		out = strings.TrimRight(out, "\n")
		if out != "" {
			out += "\n"
		}
	}
	return []byte(out), nil
}

func (r *renderer) walk(nodes []*Node, ctx walkContext, current *outNode) error {
	for _, n := range nodes {
		switch n.Kind {
		case KindVariable:
			if r.opts.Syntax == SyntaxCSS {
				continue
			}
			if n.Default {
				if _, ok := ctx.scope.lookup(n.Name); ok {
					continue
				}
			}
			value, err := r.evaluate(n.Value, ctx.scope, n)
			if err != nil {
				return err
			}
			ctx.scope.vars[n.Name] = value

		case KindDeclaration:
			if current == nil {
				return errorAt(n.File, n.Line, "declaration outside of a rule: %s", n.Name)
			}
			property, err := r.interpolate(n.Name, ctx.scope, n)
			if err != nil {
				return err
			}
			value, err := r.evaluate(n.Value, ctx.scope, n)
			if err != nil {
				return err
			}
			current.decls = append(current.decls, declaration{property: property, value: value})

		case KindRule:
			header, err := r.interpolate(n.Name, ctx.scope, n)
			if err != nil {
				return err
			}
			selectors := combineSelectors(ctx.selectors, splitSelectors(header))
			rule := &outNode{selector: selectors, file: n.File, line: n.Line}
			*ctx.container = append(*ctx.container, rule)
			inner := walkContext{selectors: selectors, scope: newScope(ctx.scope), container: ctx.container}
			if err := r.walk(n.Children, inner, rule); err != nil {
				return err
			}

		case KindAtBlock:
			prelude, err := r.interpolate(n.Name, ctx.scope, n)
			if err != nil {
				return err
			}
			at := &outNode{header: prelude, isAt: true, file: n.File, line: n.Line}
			*ctx.container = append(*ctx.container, at)
			if !n.Bubble {
				inner := walkContext{scope: newScope(ctx.scope), container: &at.children}
				if err := r.walk(n.Children, inner, at); err != nil {
					return err
				}
				continue
			}
			inner := walkContext{selectors: ctx.selectors, scope: newScope(ctx.scope), container: &at.children}
			var holder *outNode
			if len(ctx.selectors) > 0 {
				holder = &outNode{selector: ctx.selectors, file: n.File, line: n.Line}
				at.children = append(at.children, holder)
			}
			if err := r.walk(n.Children, inner, holder); err != nil {
				return err
			}

		case KindAtStatement:
			stmt, err := r.interpolate(n.Name, ctx.scope, n)
			if err != nil {
				return err
			}
			*ctx.container = append(*ctx.container, &outNode{raw: stmt, file: n.File, line: n.Line})
		}
	}
	return nil
}

func (r *renderer) emit(b *strings.Builder, nodes []*outNode, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, n := range nodes {
		if n.empty() {
			continue
		}
		switch {
		case n.raw != "":
			r.emitRaw(b, n, indent)
		case n.isAt:
			r.emitAt(b, n, depth)
		default:
			r.emitRule(b, n, indent)
		}
	}
}

func (n *outNode) empty() bool {
	if n.raw != "" {
		return false
	}
	if len(n.decls) > 0 {
		return false
	}
	for _, c := range n.children {
		if !c.empty() {
			return false
		}
	}
	return true
}

func (r *renderer) emitRaw(b *strings.Builder, n *outNode, indent string) {
	if r.opts.Style == StyleCompressed {
		b.WriteString(compressValue(n.raw))
		b.WriteByte(';')
		return
	}
	b.WriteString(indent)
	b.WriteString(n.raw)
	b.WriteString(";\n")
	if r.opts.Style == StyleExpanded {
		b.WriteByte('\n')
	}
}

func (r *renderer) emitRule(b *strings.Builder, n *outNode, indent string) {
	switch r.opts.Style {
	case StyleCompressed:
		b.WriteString(strings.Join(compressAll(n.selector), ","))
		b.WriteByte('{')
		for i, d := range n.decls {
			if i > 0 {
				b.WriteByte(';')
			}
			b.WriteString(d.property)
			b.WriteByte(':')
			b.WriteString(compressValue(d.value))
		}
		b.WriteByte('}')
	case StyleCompact:
		r.lineComment(b, n, indent)
		b.WriteString(indent)
		b.WriteString(strings.Join(n.selector, ", "))
		b.WriteString(" {")
		for _, d := range n.decls {
			b.WriteString(" ")
			b.WriteString(d.property)
			b.WriteString(": ")
			b.WriteString(d.value)
			b.WriteByte(';')
		}
		b.WriteString(" }\n")
	default:
		r.lineComment(b, n, indent)
		b.WriteString(indent)
		b.WriteString(strings.Join(n.selector, ",\n"+indent))
		b.WriteString(" {\n")
		for _, d := range n.decls {
			b.WriteString(indent)
			b.WriteString("  ")
			b.WriteString(d.property)
			b.WriteString(": ")
			b.WriteString(d.value)
			b.WriteString(";\n")
		}
		b.WriteString(indent)
		b.WriteString("}\n\n")
	}
}

func (r *renderer) emitAt(b *strings.Builder, n *outNode, depth int) {
	indent := strings.Repeat("  ", depth)
	if r.opts.Style == StyleCompressed {
		b.WriteString(compressValue(n.header))
		b.WriteByte('{')
		for i, d := range n.decls {
			if i > 0 {
				b.WriteByte(';')
			}
			b.WriteString(d.property)
			b.WriteByte(':')
			b.WriteString(compressValue(d.value))
		}
		if len(n.decls) > 0 && len(n.children) > 0 {
			b.WriteByte(';')
		}
		r.emit(b, n.children, depth+1)
		b.WriteByte('}')
		return
	}

	r.lineComment(b, n, indent)
	b.WriteString(indent)
	b.WriteString(n.header)
	b.WriteString(" {\n")
	for _, d := range n.decls {
		b.WriteString(indent)
		b.WriteString("  ")
		b.WriteString(d.property)
		b.WriteString(": ")
		b.WriteString(d.value)
		b.WriteString(";\n")
	}
	var inner strings.Builder
	r.emit(&inner, n.children, depth+1)
	b.WriteString(strings.TrimRight(inner.String(), "\n"))
	if inner.Len() > 0 {
		b.WriteByte('\n')
	}
	b.WriteString(indent)
	b.WriteString("}\n")
	if r.opts.Style == StyleExpanded {
		b.WriteByte('\n')
	}
}

func (r *renderer) lineComment(b *strings.Builder, n *outNode, indent string) {
	if !r.opts.LineComments || n.file == "" {
		return
	}
	b.WriteString(indent)
	b.WriteString("/* line ")
	b.WriteString(strconv.Itoa(n.line))
	b.WriteString(", ")
	b.WriteString(n.file)
	b.WriteString(" */\n")
}

// interpolate 只处理 #{...}，用于选择器、属性名与 at 规则 prelude。
func (r *renderer) interpolate(text string, sc *scope, n *Node) (string, error) {
	if r.opts.Syntax == SyntaxCSS || !strings.Contains(text, "#{") {
		return text, nil
	}
	var b strings.Builder
	for {
		start := strings.Index(text, "#{")
		if start < 0 {
			b.WriteString(text)
			return b.String(), nil
		}
		end := strings.IndexByte(text[start:], '}')
		if end < 0 {
			return "", errorAt(n.File, n.Line, "unterminated interpolation")
		}
		b.WriteString(text[:start])
		value, err := r.evaluate(text[start+2:start+end], sc, n)
		if err != nil {
			return "", err
		}
		v, _ := unquoteLoose(value)
		b.WriteString(v)
		text = text[start+end+1:]
	}
}

// evaluate 依次执行插值、变量替换与白名单函数调用。
func (r *renderer) evaluate(value string, sc *scope, n *Node) (string, error) {
	if r.opts.Syntax == SyntaxCSS {
		return value, nil
	}
	value, err := r.interpolate(value, sc, n)
	if err != nil {
		return "", err
	}
	value, err = substituteVariables(value, sc, n)
	if err != nil {
		return "", err
	}
	return r.callFunctions(value, n)
}

func substituteVariables(value string, sc *scope, n *Node) (string, error) {
	if !strings.Contains(value, "$") {
		return value, nil
	}
	var b strings.Builder
	for i := 0; i < len(value); i++ {
		c := value[i]
		if c != '$' {
			b.WriteByte(c)
			continue
		}
		j := i + 1
		for j < len(value) && isIdentByte(value[j]) {
			j++
		}
		if j == i+1 {
			b.WriteByte(c)
			continue
		}
		name := value[i+1 : j]
		v, ok := sc.lookup(name)
		if !ok {
			return "", errorAt(n.File, n.Line, "undefined variable: $%s", name)
		}
		b.WriteString(v)
		i = j - 1
	}
	return b.String(), nil
}

// callFunctions 由内向外求值已启用的函数；参数不是纯数值时保留原文，
// 以免误伤 CSS 自带的 min()/max()/calc() 等写法。
func (r *renderer) callFunctions(value string, n *Node) (string, error) {
	if len(r.opts.Functions) == 0 {
		return value, nil
	}
	var b strings.Builder
	for i := 0; i < len(value); i++ {
		if !isIdentByte(value[i]) || (i > 0 && isIdentByte(value[i-1])) {
			b.WriteByte(value[i])
			continue
		}
		j := i
		for j < len(value) && isIdentByte(value[j]) {
			j++
		}
		name := strings.ToLower(value[i:j])
		fn, enabled := r.opts.Functions[name]
		if !enabled || j >= len(value) || value[j] != '(' {
			b.WriteString(value[i:j])
			i = j - 1
			continue
		}
		end := matchingParen(value, j)
		if end < 0 {
			return "", errorAt(n.File, n.Line, "unbalanced parentheses in %s()", name)
		}
		inner, err := r.callFunctions(value[j+1:end], n)
		if err != nil {
			return "", err
		}
		result, ok, err := applyFunction(fn, inner)
		if err != nil {
			return "", &CompileError{File: n.File, Line: n.Line, Message: name + "()", Err: err}
		}
		if ok {
			b.WriteString(result)
		} else {
			b.WriteString(value[i:j])
			b.WriteByte('(')
			b.WriteString(inner)
			b.WriteByte(')')
		}
		i = end
	}
	return b.String(), nil
}

func applyFunction(fn Func, rawArgs string) (string, bool, error) {
	var args []float64
	unit := ""
	if strings.TrimSpace(rawArgs) != "" {
		for _, part := range splitTopLevel(rawArgs, ',') {
			num, u, ok := parseNumber(strings.TrimSpace(part))
			if !ok {
				return "", false, nil
			}
			if u != "" {
				if unit != "" && unit != u {
					return "", false, nil
				}
				unit = u
			}
			args = append(args, num)
		}
	}
	result, err := fn(args)
	if err != nil {
		return "", false, err
	}
	return formatNumber(result) + unit, true, nil
}

func parseNumber(text string) (float64, string, bool) {
	end := 0
	for end < len(text) {
		c := text[end]
		if (c >= '0' && c <= '9') || c == '.' || ((c == '-' || c == '+') && end == 0) {
			end++
			continue
		}
		break
	}
	if end == 0 {
		return 0, "", false
	}
	num, err := strconv.ParseFloat(text[:end], 64)
	if err != nil {
		return 0, "", false
	}
	unit := text[end:]
	for i := 0; i < len(unit); i++ {
		c := unit[i]
		if !(c >= 'a' && c <= 'z') && !(c >= 'A' && c <= 'Z') && c != '%' {
			return 0, "", false
		}
	}
	return num, unit, true
}

func formatNumber(v float64) string {
	rounded := math.Round(v*1e5) / 1e5
	if rounded == 0 {
		rounded = 0 // -0
	}
	return strconv.FormatFloat(rounded, 'f', -1, 64)
}

func matchingParen(text string, open int) int {
	depth := 0
	for i := open; i < len(text); i++ {
		switch text[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func isIdentByte(c byte) bool {
	return c == '-' || c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func unquoteLoose(value string) (string, bool) {
	if v, ok := unquote(strings.TrimSpace(value)); ok {
		return v, true
	}
	return value, false
}

func splitSelectors(header string) []string {
	parts := splitTopLevel(header, ',')
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Join(strings.Fields(p), " ")
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// combineSelectors 计算父子选择器的笛卡尔积，子选择器中的 & 替换为父选择器。
func combineSelectors(parents, children []string) []string {
	if len(parents) == 0 {
		out := make([]string, 0, len(children))
		for _, c := range children {
			out = append(out, strings.ReplaceAll(c, "&", ""))
		}
		return out
	}
	out := make([]string, 0, len(parents)*len(children))
	for _, p := range parents {
		for _, c := range children {
			if strings.Contains(c, "&") {
				out = append(out, strings.ReplaceAll(c, "&", p))
			} else {
				out = append(out, p+" "+c)
			}
		}
	}
	return out
}

func compressAll(items []string) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = compress(item, ",>+~")
	}
	return out
}

func compressValue(value string) string {
	return compress(value, ",")
}

// compress 折叠空白，并去掉 tight 中字符两侧的空格；引号内保持原样。
func compress(value, tight string) string {
	var b strings.Builder
	var quote byte
	pendingSpace := false
	for i := 0; i < len(value); i++ {
		c := value[i]
		if quote != 0 {
			b.WriteByte(c)
			if c == quote {
				quote = 0
			}
			continue
		}
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			pendingSpace = true
			continue
		}
		if strings.IndexByte(tight, c) >= 0 {
			pendingSpace = false
			b.WriteByte(c)
			for i+1 < len(value) && strings.IndexByte(" \t\n\r", value[i+1]) >= 0 {
				i++
			}
			continue
		}
		if pendingSpace && b.Len() > 0 {
			b.WriteByte(' ')
		}
		pendingSpace = false
		if c == '"' || c == '\'' {
			quote = c
		}
		b.WriteByte(c)
	}
	return b.String()
}
