package compiler

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Style 控制输出格式。
type Style string

const (
	StyleExpanded   Style = "expanded"
	StyleCompact    Style = "compact"
	StyleCompressed Style = "compressed"
)

// Syntax 决定源文件按何种方言解析。
type Syntax string

const (
	// SyntaxSCSS 支持变量、嵌套、插值与函数。
	SyntaxSCSS Syntax = "scss"
	// SyntaxCSS 仅解析 @import 与嵌套，变量与函数原样输出。
	SyntaxCSS Syntax = "css"
)

// ParseStyle 将配置中的字符串标准化为 Style。
func ParseStyle(raw string) (Style, error) {
	switch Style(strings.ToLower(strings.TrimSpace(raw))) {
	case "", StyleExpanded:
		return StyleExpanded, nil
	case StyleCompact:
		return StyleCompact, nil
	case StyleCompressed:
		return StyleCompressed, nil
	default:
		return "", fmt.Errorf("unsupported output style: %s", raw)
	}
}

// ParseSyntax 将配置中的字符串标准化为 Syntax。
func ParseSyntax(raw string) (Syntax, error) {
	switch Syntax(strings.ToLower(strings.TrimSpace(raw))) {
	case "", SyntaxSCSS:
		return SyntaxSCSS, nil
	case SyntaxCSS:
		return SyntaxCSS, nil
	default:
		return "", fmt.Errorf("unsupported syntax: %s", raw)
	}
}

// Options 是进程级别的编译配置，启动时构建一次后只读共享。
type Options struct {
	Style        Style
	Syntax       Syntax
	Debug        bool
	LineComments bool
	Functions    map[string]Func
}

// NewOptions 根据名称从内置函数表中挑选可调用扩展，未知名称直接报错。
func NewOptions(style, syntax string, debug, lineComments bool, functions []string) (Options, error) {
	s, err := ParseStyle(style)
	if err != nil {
		return Options{}, err
	}
	syn, err := ParseSyntax(syntax)
	if err != nil {
		return Options{}, err
	}
	funcs := make(map[string]Func, len(functions))
	for _, name := range functions {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		fn, ok := LookupBuiltin(key)
		if !ok {
			return Options{}, fmt.Errorf("unknown function: %s", name)
		}
		funcs[key] = fn
	}
	return Options{
		Style:        s,
		Syntax:       syn,
		Debug:        debug,
		LineComments: lineComments,
		Functions:    funcs,
	}, nil
}

// FunctionNames 返回已启用的函数名（已排序）。
func (o Options) FunctionNames() []string {
	names := make([]string, 0, len(o.Functions))
	for name := range o.Functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Serialize 输出稳定的文本表示，字段顺序固定且函数名排序，
// 逻辑相等的两份 Options 总是得到相同结果。
func (o Options) Serialize() string {
	var b strings.Builder
	b.WriteString("style=")
	b.WriteString(string(o.Style))
	b.WriteString(";syntax=")
	b.WriteString(string(o.Syntax))
	b.WriteString(";debug=")
	b.WriteString(strconv.FormatBool(o.Debug))
	b.WriteString(";line_comments=")
	b.WriteString(strconv.FormatBool(o.LineComments))
	b.WriteString(";functions=")
	b.WriteString(strings.Join(o.FunctionNames(), ","))
	return b.String()
}
