package compiler

import (
	"errors"
	"io"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

// Compiler 将 Parse（读取文件、展开导入）与 Render（求值并输出）拆开，
// 使调用方可以先拿到 Tree.Files 计算指纹，必要时才执行渲染。
type Compiler struct {
	opts   Options
	logger *logrus.Logger
}

// New 构建编译器；logger 为空时丢弃调试日志。
func New(opts Options, logger *logrus.Logger) *Compiler {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	if opts.Style == "" {
		opts.Style = StyleExpanded
	}
	if opts.Syntax == "" {
		opts.Syntax = SyntaxSCSS
	}
	return &Compiler{opts: opts, logger: logger}
}

// Options 返回编译器使用的配置副本。
func (c *Compiler) Options() Options {
	return c.opts
}

// Parse 读取根文件并递归展开 @import，返回的 Tree.Files 以根文件开头。
func (c *Compiler) Parse(path string) (*Tree, error) {
	if path == "" {
		return nil, &CompileError{Message: "stylesheet path required"}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &CompileError{File: path, Message: "cannot resolve stylesheet path", Err: err}
	}

	started := time.Now()
	p := newParser(c.opts.Syntax)
	nodes, err := p.parseFile(abs)
	if err != nil {
		return nil, err
	}
	tree := &Tree{Root: abs, Files: p.files, Nodes: nodes}

	if c.opts.Debug {
		c.logger.WithFields(logrus.Fields{
			"action":     "parse",
			"file":       abs,
			"files":      len(tree.Files),
			"nodes":      len(nodes),
			"elapsed_ms": time.Since(started).Milliseconds(),
		}).Debug("stylesheet_parsed")
	}
	return tree, nil
}

// Render 按配置的输出风格生成最终样式文本。
func (c *Compiler) Render(tree *Tree) ([]byte, error) {
	if tree == nil {
		return nil, errors.New("nil tree")
	}
	started := time.Now()
	r := &renderer{opts: c.opts}
	out, err := r.render(tree)
	if err != nil {
		return nil, err
	}
	if c.opts.Debug {
		c.logger.WithFields(logrus.Fields{
			"action":     "render",
			"file":       tree.Root,
			"bytes":      len(out),
			"style":      string(c.opts.Style),
			"elapsed_ms": time.Since(started).Milliseconds(),
		}).Debug("stylesheet_rendered")
	}
	return out, nil
}
