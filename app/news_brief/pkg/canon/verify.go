package canon

import (
	"fmt"

	"github.com/iWorld-y/news_brief/app/news_brief/pkg/model"
)

// Verify 校验去重结果的不变量：数量不超过上限、去重键与分组 ID 唯一、排名连续
func Verify(out []model.CanonicalArticle, maxArticles int) error {
	if len(out) > maxArticles {
		return fmt.Errorf("canonicalize returned %d articles, limit %d", len(out), maxArticles)
	}
	keys := make(map[string]int, len(out))
	ids := make(map[string]int, len(out))
	for i, a := range out {
		if a.RelevanceRank != i {
			return fmt.Errorf("article %d has rank %d", i, a.RelevanceRank)
		}
		key := NormalizeURL(a.URL)
		if j, ok := keys[key]; ok {
			return fmt.Errorf("articles %d and %d share url key %s", j, i, key)
		}
		keys[key] = i
		if j, ok := ids[a.DedupGroupID]; ok {
			return fmt.Errorf("articles %d and %d share group id %s", j, i, a.DedupGroupID)
		}
		ids[a.DedupGroupID] = i
	}
	return nil
}
