package styles

import "strings"

// IsFreshForClient 判断浏览器缓存是否仍然有效：仅当客户端带了校验值且与当前指纹完全一致。
func IsFreshForClient(client string, present bool, server string) bool {
	if !present || server == "" {
		return false
	}
	return client == server
}

// normalizeETag 去掉 If-None-Match 上的引号与弱校验前缀，列表与 * 不做解释。
func normalizeETag(value string) string {
	value = strings.TrimSpace(value)
	value = strings.TrimPrefix(value, "W/")
	if len(value) >= 2 && strings.HasPrefix(value, "\"") && strings.HasSuffix(value, "\"") {
		value = value[1 : len(value)-1]
	}
	return value
}

// quoteETag 输出符合 RFC 7232 的强校验值。
func quoteETag(fp string) string {
	return "\"" + fp + "\""
}
