package rag

import (
	"math"
)

const (
	defaultTopK      = 8
	defaultFetchK    = 20
	defaultMMRLambda = 0.5
)

// mmrSelect 最大边际相关性（MMR）选择：从候选池中迭代挑出
// lambda*relevance - (1-lambda)*max_similarity(已选) 最大的分片，直到凑满 k 个。
// 首个选择为相关性最高的候选。
func mmrSelect(query []float32, candidates []*ScoredChunk, k int, lambda float64) []*ScoredChunk {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}
	if k > len(candidates) {
		k = len(candidates)
	}
	if lambda < 0 {
		lambda = 0
	}
	if lambda > 1 {
		lambda = 1
	}

	// 相关性统一用本地余弦计算，不依赖后端的度量方向；
	// 候选缺少向量时回退到后端返回的得分。
	relevance := make([]float64, len(candidates))
	for i, c := range candidates {
		if len(c.Vector) > 0 && len(query) > 0 {
			relevance[i] = cosineSimilarity(query, c.Vector)
		} else {
			relevance[i] = c.Score
		}
	}

	selected := make([]*ScoredChunk, 0, k)
	picked := make([]bool, len(candidates))

	for len(selected) < k {
		best := -1
		bestScore := math.Inf(-1)
		for i, c := range candidates {
			if picked[i] {
				continue
			}
			score := relevance[i]
			if len(selected) > 0 {
				maxSim := math.Inf(-1)
				for _, s := range selected {
					sim := cosineSimilarity(c.Vector, s.Vector)
					if sim > maxSim {
						maxSim = sim
					}
				}
				score = lambda*relevance[i] - (1-lambda)*maxSim
			}
			if score > bestScore {
				bestScore = score
				best = i
			}
		}
		if best < 0 {
			break
		}
		picked[best] = true
		selected = append(selected, candidates[best])
	}
	return selected
}

// cosineSimilarity 余弦相似度；任一向量为零向量时返回 0
func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
