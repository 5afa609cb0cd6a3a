// Package styles 编排一次样式请求：解析源文件、计算指纹、与浏览器协商，
// 再在磁盘缓存命中与重新渲染之间选择，最后写出带缓存头的响应。
package styles
