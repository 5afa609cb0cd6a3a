package compiler

import "fmt"

// CompileError 描述解析或渲染阶段的失败，File/Line 指向出错的源文件位置。
type CompileError struct {
	File    string
	Line    int
	Message string
	Err     error
}

func (e *CompileError) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	switch {
	case e.File != "" && e.Line > 0:
		return fmt.Sprintf("%s (%s line %d)", msg, e.File, e.Line)
	case e.File != "":
		return fmt.Sprintf("%s (%s)", msg, e.File)
	default:
		return msg
	}
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

func errorAt(file string, line int, format string, args ...any) *CompileError {
	return &CompileError{File: file, Line: line, Message: fmt.Sprintf(format, args...)}
}
