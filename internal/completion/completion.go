package completion

import "context"

// Request 描述一次补全请求。
type Request struct {
	System string
	Prompt string
}

// Response 是模型返回的文本结果。
type Response struct {
	Text string
}

// Client 定义了调用文本补全模型的统一接口。
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}
