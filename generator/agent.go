package generator

import (
	"context"
	"errors"
)

// Agent 负责构建提示词并调用 LLM 生成或修订稿件。
type Agent struct {
	llm LLMClient
}

func NewAgent(llm LLMClient) (*Agent, error) {
	if llm == nil {
		return nil, errors.New("llm client is required")
	}
	return &Agent{llm: llm}, nil
}

// Generate 根据表单与参考内容生成首稿。
func (a *Agent) Generate(ctx context.Context, req Requirements, reference string) (string, error) {
	return a.complete(ctx, BuildGeneratePrompt(req, reference))
}

// Modify 按修改请求修订 source，earlier 为先前的请求。
func (a *Agent) Modify(ctx context.Context, source, request string, earlier []string) (string, error) {
	return a.complete(ctx, BuildModifyPrompt(source, request, earlier))
}

func (a *Agent) complete(ctx context.Context, prompt Prompt) (string, error) {
	raw, err := a.llm.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	return PostProcess(raw)
}
