package rag

// NormalizeHistory 将原始消息序列规整为问答轮次。
// 位置 i 为 user 且 i+1 为 assistant 时配成一轮并前进 2；
// 否则丢弃位置 i 的消息继续扫描。末尾未配对的消息一律丢弃。
func NormalizeHistory(messages []Message) []ChatTurn {
	var turns []ChatTurn
	i := 0
	for i < len(messages)-1 {
		if messages[i].Role == RoleUser && messages[i+1].Role == RoleAssistant {
			turns = append(turns, ChatTurn{
				User:      messages[i].Content,
				Assistant: messages[i+1].Content,
			})
			i += 2
			continue
		}
		i++
	}
	return turns
}
