package generator

import (
	"fmt"
	"strings"
)

// MinArticleChars 是提示词要求的最少字数，仅作指令，不校验输出长度。
const MinArticleChars = 1000

// Prompt 表示发送给 LLM 的消息集合。
type Prompt struct {
	System  string
	User    string
	History []Message
}

// Message 用于少量历史（可选）。
type Message struct {
	Role    string
	Content string
}

const systemPrompt = "당신은 보도자료 형식의 기사를 작성하는 전문 기자입니다. 설명이나 인사말 없이 기사 제목과 본문만 출력하세요."

func lengthInstruction() string {
	return fmt.Sprintf("최종 결과물은 한글로 %d자 이상이어야한다", MinArticleChars)
}

// BuildGeneratePrompt 根据表单和参考内容（格式示例）生成首稿提示词。
func BuildGeneratePrompt(req Requirements, reference string) Prompt {
	var sb strings.Builder
	sb.WriteString("다음 정보를 바탕으로 기사를 작성해주세요:\n")
	sb.WriteString(fmt.Sprintf("형식 참고 예시: %s\n", reference))
	sb.WriteString(fmt.Sprintf("기관/조직: %s\n", req.Organization))
	sb.WriteString(fmt.Sprintf("사업명: %s\n", req.Project))
	sb.WriteString(fmt.Sprintf("업체명: %s\n", req.Company))
	sb.WriteString(fmt.Sprintf("핵심 키워드: %s\n", req.Keywords))
	sb.WriteString(fmt.Sprintf("추가 내용: %s\n", req.Additional))
	sb.WriteString(lengthInstruction())

	return Prompt{
		System: systemPrompt,
		User:   sb.String(),
	}
}

// BuildModifyPrompt 生成修订提示词，先前的修改请求作为历史一并发送。
func BuildModifyPrompt(source, request string, earlier []string) Prompt {
	var sb strings.Builder
	sb.WriteString("원본 기사:\n")
	sb.WriteString(source)
	sb.WriteString("\n\n수정 요청 사항:\n")
	sb.WriteString(request)
	sb.WriteString("\n\n위의 요청 사항을 반영하여 기사를 수정해라\n")
	sb.WriteString("최종 결과물 앞에, \"생성하겠습니다.\", \"수정한 결과입니다\" 등의 메시지가 반드시 없이 바로 기사 제목과 내용이 나와야한다.\n")
	sb.WriteString(lengthInstruction())

	var msgs []Message
	for _, r := range earlier {
		if strings.TrimSpace(r) == "" {
			continue
		}
		msgs = append(msgs, Message{Role: "user", Content: "이전 수정 요청: " + r})
	}

	return Prompt{
		System:  systemPrompt,
		User:    sb.String(),
		History: msgs,
	}
}
