package rag

import (
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
)

// EmptyStoreAnswer 索引为空时返回的固定答复；属于正常结果，不触发生成调用。
const EmptyStoreAnswer = "No documents have been indexed yet. Ingest a document from the library before asking questions."

// degradedAnswer 查询链路内部故障时降级返回的答复
const degradedAnswer = "I could not produce an answer right now because a backing service failed. Please try again in a moment."

// systemPrompt 固定的行为约束：利用上下文与历史解释非正式指代、
// 综合转述而非照搬原文、为模糊问题推断意图、按需产出结构化摘要、
// 上下文不足时明确说明而不是编造。
const systemPrompt = `You are a research assistant answering questions about a personal document library.

Follow these rules:
- Answer using ONLY the provided context passages and the conversation history.
- Interpret informal references such as "this chapter" or "this pdf" from the context and history.
- Synthesize and explain in your own words; do not quote long passages verbatim.
- If the question is vague, infer the most likely intent and answer it.
- When the user asks for a summary, respond with a structured summary (short headings or bullet points).
- If the context is insufficient to answer, say so explicitly instead of fabricating an answer.`

// BuildMessages 将召回分片、历史轮次与当前问题组装为一次生成请求
func BuildMessages(chunks []*ScoredChunk, turns []ChatTurn, question string) []*schema.Message {
	var sb strings.Builder

	sb.WriteString("Context passages:\n")
	if len(chunks) == 0 {
		sb.WriteString("(none)\n")
	}
	for i, c := range chunks {
		ref := c.Source
		if c.Page > 0 {
			ref = fmt.Sprintf("%s, p.%d", c.Source, c.Page)
		}
		sb.WriteString(fmt.Sprintf("[%d] (%s) %s\n", i+1, ref, compactOneLine(c.Text)))
	}

	if len(turns) > 0 {
		sb.WriteString("\nConversation history:\n")
		for _, t := range turns {
			sb.WriteString("User: ")
			sb.WriteString(compactOneLine(t.User))
			sb.WriteString("\nAssistant: ")
			sb.WriteString(compactOneLine(t.Assistant))
			sb.WriteString("\n")
		}
	}

	sb.WriteString("\nQuestion: ")
	sb.WriteString(strings.TrimSpace(question))

	return []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(sb.String()),
	}
}

// ExtractSources 按首次命中顺序收集去重后的来源文件名；永不返回 nil
func ExtractSources(chunks []*ScoredChunk) []string {
	sources := make([]string, 0, len(chunks))
	seen := make(map[string]struct{}, len(chunks))
	for _, c := range chunks {
		s := strings.TrimSpace(c.Source)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		sources = append(sources, s)
	}
	return sources
}

func compactOneLine(s string) string {
	out := strings.ReplaceAll(s, "\r\n", "\n")
	out = strings.ReplaceAll(out, "\r", "\n")
	out = strings.ReplaceAll(out, "\n", " ")
	out = strings.TrimSpace(out)
	for strings.Contains(out, "  ") {
		out = strings.ReplaceAll(out, "  ", " ")
	}
	return out
}
