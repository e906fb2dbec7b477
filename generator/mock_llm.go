package generator

import (
	"context"
	"strings"
)

// MockLLM 离线占位实现，便于本地调试，不调用外部模型。
type MockLLM struct{}

func (m MockLLM) Complete(_ context.Context, prompt Prompt) (string, error) {
	// 把提示词逐行回显成一篇短稿。
	var sb strings.Builder
	sb.WriteString("# 자동 생성 예시 기사\n\n")
	for _, line := range strings.Split(prompt.User, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}
