package styles

import (
	"fmt"
	"strings"
)

const errorRule = `body::before {
  display: block;
  padding: 5px;
  white-space: pre;
  font-family: monospace;
  font-size: 8pt;
  line-height: 17px;
  overflow: hidden;
  content: '%s';
}
`

var cssStringEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	"\r\n", `\A `,
	"\n", `\A `,
	"\r", `\A `,
)

// ErrorStylesheet 将失败转换为一段可见的样式：页面顶部以等宽字体显示错误信息。
func ErrorStylesheet(err error) []byte {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return []byte(fmt.Sprintf(errorRule, cssStringEscaper.Replace(msg)))
}
