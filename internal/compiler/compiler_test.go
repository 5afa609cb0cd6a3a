package compiler

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func mustOptions(t *testing.T, style string, functions ...string) Options {
	t.Helper()
	opts, err := NewOptions(style, "scss", false, false, functions)
	require.NoError(t, err)
	return opts
}

func compile(t *testing.T, opts Options, src string) string {
	t.Helper()
	root := writeFile(t, t.TempDir(), "main.scss", src)
	c := New(opts, nil)
	tree, err := c.Parse(root)
	require.NoError(t, err)
	out, err := c.Render(tree)
	require.NoError(t, err)
	return string(out)
}

const nestedSource = `$primary: #336699;
.nav {
  color: $primary;
  a { text-decoration: none; }
  &:hover { color: red; }
}
`

func TestParseReportsImportedFiles(t *testing.T) {
	dir := t.TempDir()
	root := writeFile(t, dir, "main.scss", "@import \"vars\";\n@import \"partials/button\";\nbody { color: $text; }\n")
	vars := writeFile(t, dir, "_vars.scss", "$text: #333;\n")
	button := writeFile(t, dir, "partials/_button.scss", "@import \"../vars\";\n.btn { color: $text; }\n")

	tree, err := New(mustOptions(t, "expanded"), nil).Parse(root)
	require.NoError(t, err)

	assert.Equal(t, []string{root, vars, button}, tree.Files)
	assert.Equal(t, []string{vars, button}, tree.Imports())
	assert.Equal(t, root, tree.Root)
}

func TestRenderOutputStyles(t *testing.T) {
	tests := []struct {
		style string
		want  string
	}{
		{
			style: "expanded",
			want:  ".nav {\n  color: #336699;\n}\n\n.nav a {\n  text-decoration: none;\n}\n\n.nav:hover {\n  color: red;\n}\n",
		},
		{
			style: "compact",
			want:  ".nav { color: #336699; }\n.nav a { text-decoration: none; }\n.nav:hover { color: red; }\n",
		},
		{
			style: "compressed",
			want:  ".nav{color:#336699}.nav a{text-decoration:none}.nav:hover{color:red}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.style, func(t *testing.T) {
			assert.Equal(t, tt.want, compile(t, mustOptions(t, tt.style), nestedSource))
		})
	}
}

func TestRenderBubblesMediaQueries(t *testing.T) {
	src := ".a {\n  color: red;\n  @media (max-width: 600px) {\n    color: blue;\n  }\n}\n"
	want := ".a {\n  color: red;\n}\n\n@media (max-width: 600px) {\n  .a {\n    color: blue;\n  }\n}\n"
	assert.Equal(t, want, compile(t, mustOptions(t, "expanded"), src))
}

func TestRenderSelectorListsAndParentReference(t *testing.T) {
	src := "h1, h2 {\n  .title, & > small { margin: 0; }\n}\n"
	out := compile(t, mustOptions(t, "compact"), src)
	assert.Equal(t, "h1 .title, h1 > small, h2 .title, h2 > small { margin: 0; }\n", out)
}

func TestRenderKeyframesAreNotPrefixed(t *testing.T) {
	src := ".spinner {\n  animation: spin 1s;\n}\n@keyframes spin {\n  from { transform: rotate(0deg); }\n  to { transform: rotate(360deg); }\n}\n"
	out := compile(t, mustOptions(t, "compressed"), src)
	assert.Equal(t, ".spinner{animation:spin 1s}@keyframes spin{from{transform:rotate(0deg)}to{transform:rotate(360deg)}}", out)
}

func TestRenderInterpolationAndDefaults(t *testing.T) {
	src := "$side: left;\n$gap: 1px;\n$gap: 2px !default;\n.m-#{$side} { margin-#{$side}: $gap; }\n"
	assert.Equal(t, ".m-left {\n  margin-left: 1px;\n}\n", compile(t, mustOptions(t, "expanded"), src))
}

func TestRenderEvaluatesEnabledFunctions(t *testing.T) {
	src := ".box {\n  width: sqrt(16px);\n  height: pow(2, 3);\n  margin: min(10px, 2vw);\n  padding: calc(100% - 10px);\n  top: cos(0);\n}\n"
	out := compile(t, mustOptions(t, "compact", "sqrt", "pow", "min"), src)
	assert.Equal(t, ".box { width: 4px; height: 8; margin: min(10px, 2vw); padding: calc(100% - 10px); top: cos(0); }\n", out)
}

func TestRenderLineComments(t *testing.T) {
	opts, err := NewOptions("expanded", "scss", false, true, nil)
	require.NoError(t, err)
	root := writeFile(t, t.TempDir(), "main.scss", "\n.a { color: red; }\n")

	c := New(opts, nil)
	tree, err := c.Parse(root)
	require.NoError(t, err)
	out, err := c.Render(tree)
	require.NoError(t, err)

	assert.Equal(t, "/* line 2, "+root+" */\n.a {\n  color: red;\n}\n", string(out))
}

func TestRenderStripsComments(t *testing.T) {
	src := "// heading\n.a {\n  /* inline */ color: red; // trailing\n  background: url(http://example.com/x.png);\n}\n"
	out := compile(t, mustOptions(t, "compact"), src)
	assert.Equal(t, ".a { color: red; background: url(http://example.com/x.png); }\n", out)
}

func TestCSSSyntaxLeavesImportsAndVariables(t *testing.T) {
	opts, err := NewOptions("expanded", "css", false, false, nil)
	require.NoError(t, err)
	dir := t.TempDir()
	root := writeFile(t, dir, "plain.css", "@import \"theme\";\n.a { color: $x; }\n")
	writeFile(t, dir, "_theme.scss", ".b { color: red; }\n")

	c := New(opts, nil)
	tree, err := c.Parse(root)
	require.NoError(t, err)
	assert.Equal(t, []string{root}, tree.Files)
	assert.Empty(t, tree.Imports())

	out, err := c.Render(tree)
	require.NoError(t, err)
	assert.Equal(t, "@import \"theme\";\n\n.a {\n  color: $x;\n}\n", string(out))
}

func TestPlainCSSImportsArePassedThrough(t *testing.T) {
	src := "@import url(reset.css);\n@import \"print.css\";\n.a { color: red; }\n"
	out := compile(t, mustOptions(t, "compact"), src)
	assert.Equal(t, "@import url(reset.css);\n@import \"print.css\";\n.a { color: red; }\n", out)
}

func TestParseErrors(t *testing.T) {
	t.Run("missing root", func(t *testing.T) {
		_, err := New(mustOptions(t, "expanded"), nil).Parse(filepath.Join(t.TempDir(), "missing.scss"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, fs.ErrNotExist))
	})

	t.Run("missing import", func(t *testing.T) {
		root := writeFile(t, t.TempDir(), "main.scss", ".a { color: red; }\n@import \"nope\";\n")
		_, err := New(mustOptions(t, "expanded"), nil).Parse(root)
		var ce *CompileError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, 2, ce.Line)
		assert.Contains(t, ce.Error(), "import not found: nope")
		assert.True(t, errors.Is(err, fs.ErrNotExist))
	})

	t.Run("import cycle", func(t *testing.T) {
		dir := t.TempDir()
		root := writeFile(t, dir, "a.scss", "@import \"b\";\n")
		writeFile(t, dir, "b.scss", "@import \"a\";\n")
		_, err := New(mustOptions(t, "expanded"), nil).Parse(root)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "import cycle")
	})

	t.Run("unclosed block", func(t *testing.T) {
		root := writeFile(t, t.TempDir(), "main.scss", ".a {\n  color: red;\n")
		_, err := New(mustOptions(t, "expanded"), nil).Parse(root)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unclosed block")
	})
}

func TestRenderUndefinedVariable(t *testing.T) {
	root := writeFile(t, t.TempDir(), "main.scss", ".a {\n  color: $missing;\n}\n")
	c := New(mustOptions(t, "expanded"), nil)
	tree, err := c.Parse(root)
	require.NoError(t, err)

	_, err = c.Render(tree)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 2, ce.Line)
	assert.Equal(t, root, ce.File)
	assert.Contains(t, ce.Error(), "undefined variable: $missing")
}

func TestOptionsSerializeIsStable(t *testing.T) {
	a, err := NewOptions("Expanded", "", false, false, []string{"sqrt", "pow", "rand"})
	require.NoError(t, err)
	b, err := NewOptions("expanded", "scss", false, false, []string{"rand", "sqrt", "pow"})
	require.NoError(t, err)
	assert.Equal(t, a.Serialize(), b.Serialize())
	assert.Equal(t, "style=expanded;syntax=scss;debug=false;line_comments=false;functions=pow,rand,sqrt", a.Serialize())

	c, err := NewOptions("compressed", "scss", false, false, []string{"rand", "sqrt", "pow"})
	require.NoError(t, err)
	assert.NotEqual(t, a.Serialize(), c.Serialize())
}

func TestNewOptionsRejectsUnknownValues(t *testing.T) {
	_, err := NewOptions("nested-ish", "scss", false, false, nil)
	assert.Error(t, err)
	_, err = NewOptions("expanded", "sass", false, false, nil)
	assert.Error(t, err)
	_, err = NewOptions("expanded", "scss", false, false, []string{"eval"})
	assert.Error(t, err)
}
