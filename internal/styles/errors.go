package styles

import "fmt"

// BadRequestError 表示请求本身无法处理，例如缺少 file 参数或路径越界。
type BadRequestError struct {
	Reason string
}

func (e *BadRequestError) Error() string {
	return fmt.Sprintf("bad request: %s", e.Reason)
}

// CacheWriteError 记录写缓存失败，仅用于日志，请求照常返回渲染结果。
type CacheWriteError struct {
	Fingerprint string
	Err         error
}

func (e *CacheWriteError) Error() string {
	return fmt.Sprintf("cache write %s: %v", e.Fingerprint, e.Err)
}

func (e *CacheWriteError) Unwrap() error {
	return e.Err
}
