package compiler

// NodeKind 区分语法树节点类型。
type NodeKind int

const (
	KindDeclaration NodeKind = iota
	KindVariable
	KindRule
	KindAtBlock
	KindAtStatement
)

// Node 是解析结果的统一节点表示：
//   - Declaration: Name=属性, Value=值
//   - Variable: Name=变量名（不含 $）, Value=值, Default=是否带 !default
//   - Rule: Name=选择器原文, Children=块内节点
//   - AtBlock: Name=完整 prelude（如 "@media screen"）, Children=块内节点,
//     Bubble=条件块（@media/@supports），嵌套在规则内时继承外层选择器
//   - AtStatement: Name=完整语句（不含分号）
type Node struct {
	Kind     NodeKind
	Name     string
	Value    string
	Default  bool
	Bubble   bool
	Children []*Node
	File     string
	Line     int
}

// Tree 是一次 Parse 的产物。Files 按首次读取顺序列出根文件及其全部导入文件（去重），
// 供指纹计算使用；Render 可以多次调用而不重新读取磁盘。
type Tree struct {
	Root  string
	Files []string
	Nodes []*Node
}

// Imports 返回除根文件以外被读取的文件。
func (t *Tree) Imports() []string {
	if t == nil || len(t.Files) <= 1 {
		return nil
	}
	out := make([]string, 0, len(t.Files)-1)
	for _, f := range t.Files {
		if f != t.Root {
			out = append(out, f)
		}
	}
	return out
}
