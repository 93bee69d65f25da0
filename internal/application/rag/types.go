package rag

// 消息角色
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Chunk 索引的原子单元：一段有界的文档文本及其来源元数据。
// 摄取时创建，落库后不再修改。
type Chunk struct {
	ID         string
	BatchID    string
	Source     string
	Page       int
	ChunkIndex int
	Text       string
	Vector     []float32
}

// ScoredChunk 检索命中的分片及其相似度得分
type ScoredChunk struct {
	Chunk
	Score float64
}

// SearchParams 向量检索参数
type SearchParams struct {
	QueryVector []float32
	TopK        int
	// Source 非空时仅检索 metadata.source 精确匹配的分片
	Source string
}

// Message 边界层校验后的单条原始会话消息
type Message struct {
	Role    string
	Content string
}

// ChatTurn 一次完整的问答往返，由原始历史配对得到，仅在单次查询内存活
type ChatTurn struct {
	User      string
	Assistant string
}

// QueryContext 单次问答操作的全部输入
type QueryContext struct {
	Question     string
	SourceFilter string
	History      []Message
}

// Answer 问答结果：答案文本与按首次命中顺序去重的来源文件名
type Answer struct {
	Text    string   `json:"text"`
	Sources []string `json:"sources"`
}

// IngestReport 单次摄取的结果摘要
type IngestReport struct {
	Source  string
	BatchID string
	Pages   int
	Chunks  int
}

// PageSegment 文档加载产出的页级文本段
type PageSegment struct {
	Page int
	Text string
}
