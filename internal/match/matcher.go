package match

import (
	"fmt"
	"sort"
	"strings"

	"TechHub-Embassy/internal/catalog"
	xerrors "TechHub-Embassy/internal/errors"
	"TechHub-Embassy/internal/project"
	"github.com/sahilm/fuzzy"
)

// 各评分分量的权重，总和为 1。
const (
	weightTags     = 0.4
	weightKeywords = 0.3
	weightCategory = 0.15
	weightIndustry = 0.15
)

// Config 控制匹配器的筛选行为。
type Config struct {
	// ConfidenceFloor 是候选进入结果的最低置信度。
	ConfidenceFloor float64
	// MaxPerCategory 限制每个类目保留的候选数量。
	MaxPerCategory int
}

func (c *Config) applyDefaults() {
	if c.ConfidenceFloor <= 0 {
		c.ConfidenceFloor = 0.35
	}
	if c.MaxPerCategory <= 0 {
		c.MaxPerCategory = 20
	}
}

// Matcher 将用例与一份目录快照进行匹配。无内部状态，可并发使用。
type Matcher struct {
	cfg Config
}

// NewMatcher 创建 Matcher。
func NewMatcher(cfg Config) *Matcher {
	cfg.applyDefaults()
	return &Matcher{cfg: cfg}
}

// Match 对快照执行一次完整匹配。必选类目中没有候选越过置信度下限时
// 返回 NO_MATCH_FOUND，并在错误元数据里携带查询词项。
func (m *Matcher) Match(uc *project.UseCase, snap *catalog.Snapshot) (*project.ResourceMatch, error) {
	if uc == nil {
		return nil, xerrors.New(xerrors.CodeValidation, "用例不能为空")
	}
	if snap == nil || snap.Len() == 0 {
		return nil, noMatch(Query{}, "目录快照为空")
	}

	query := BuildQuery(uc)
	mandatory := uc.MandatoryCategories()

	byCategory := make(map[catalog.Category][]project.Candidate, len(mandatory))
	var candidates []project.Candidate
	for _, category := range catalog.Categories {
		scored := m.scoreCategory(uc, query, snap.Entries(category))
		if len(scored) == 0 {
			continue
		}
		byCategory[category] = scored
		candidates = append(candidates, scored...)
	}

	for _, category := range mandatory {
		if len(byCategory[category]) == 0 {
			return nil, noMatch(query, fmt.Sprintf("类目 %s 没有越过置信度下限的候选", category))
		}
	}

	bom := enrichBOM(uc, assembleBOM(mandatory, byCategory))

	return &project.ResourceMatch{
		UseCaseID:  uc.ID,
		Candidates: candidates,
		BOM:        bom,
	}, nil
}

// scoreCategory 对一个类目的条目评分并按得分排序。entries 已按
// 更新时间倒序、id 升序排列，稳定排序保证平分时沿用该顺序。
func (m *Matcher) scoreCategory(uc *project.UseCase, query Query, entries []catalog.Entry) []project.Candidate {
	scored := make([]project.Candidate, 0, len(entries))
	for _, entry := range entries {
		score, rationale := m.score(uc, query, entry)
		if score < m.cfg.ConfidenceFloor {
			continue
		}
		scored = append(scored, project.Candidate{
			ResourceID: entry.ID,
			Title:      entry.Title,
			Category:   entry.Category,
			Confidence: score,
			Rationale:  rationale,
		})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Confidence > scored[j].Confidence
	})
	if len(scored) > m.cfg.MaxPerCategory {
		scored = scored[:m.cfg.MaxPerCategory]
	}
	return scored
}

func (m *Matcher) score(uc *project.UseCase, query Query, entry catalog.Entry) (float64, string) {
	tagHits := 0
	for _, tag := range query.Tags {
		if entry.HasTag(tag) {
			tagHits++
		}
	}
	tagScore := 0.0
	if len(query.Tags) > 0 {
		tagScore = float64(tagHits) / float64(len(query.Tags))
	}

	keywordHits := keywordMatches(query.Keywords, entry)
	keywordScore := 0.0
	if len(query.Keywords) > 0 {
		keywordScore = float64(keywordHits) / float64(len(query.Keywords))
	}

	categoryScore := 0.0
	if len(uc.ResourcePreferences) == 0 {
		categoryScore = 1.0
	} else {
		for _, preferred := range uc.ResourcePreferences {
			if entry.Category == preferred {
				categoryScore = 1.0
				break
			}
		}
	}

	industryScore := 0.0
	if entry.ServesIndustry(uc.Industry) {
		industryScore = 1.0
	}

	total := weightTags*tagScore +
		weightKeywords*keywordScore +
		weightCategory*categoryScore +
		weightIndustry*industryScore
	if total > 1 {
		total = 1
	}
	if total < 0 {
		total = 0
	}

	rationale := fmt.Sprintf("tags %d/%d, keywords %d/%d, industry %v",
		tagHits, len(query.Tags), keywordHits, len(query.Keywords), industryScore > 0)
	return total, rationale
}

// keywordMatches 统计有多少查询关键词能在条目的关键词、标题或标签中
// 找到模糊匹配。
func keywordMatches(keywords []string, entry catalog.Entry) int {
	if len(keywords) == 0 {
		return 0
	}
	targets := make([]string, 0, len(entry.Keywords)+len(entry.Tags)+1)
	targets = append(targets, strings.ToLower(entry.Title))
	for _, keyword := range entry.Keywords {
		targets = append(targets, strings.ToLower(keyword))
	}
	for _, tag := range entry.Tags {
		targets = append(targets, strings.ToLower(tag))
	}

	hits := 0
	for _, keyword := range keywords {
		results := fuzzy.Find(keyword, targets)
		if len(results) > 0 && results[0].Score >= 0 {
			hits++
		}
	}
	return hits
}

// assembleBOM 按贪心策略为每个必选类目挑选得分最高且尚未被占用的
// 候选。不做回溯，局部最优冲突时沿用先到先得的结果。
func assembleBOM(mandatory []catalog.Category, byCategory map[catalog.Category][]project.Candidate) []project.BOMItem {
	used := make(map[string]struct{})
	bom := make([]project.BOMItem, 0, len(mandatory))
	for _, category := range mandatory {
		for _, candidate := range byCategory[category] {
			if _, taken := used[candidate.ResourceID]; taken {
				continue
			}
			used[candidate.ResourceID] = struct{}{}
			bom = append(bom, project.BOMItem{
				ResourceID: candidate.ResourceID,
				Title:      candidate.Title,
				Category:   candidate.Category,
				Capability: strings.ToLower(string(category)),
				Quantity:   1,
				Required:   true,
			})
			break
		}
	}
	return bom
}

func noMatch(query Query, message string) error {
	return xerrors.New(xerrors.CodeNoMatchFound, message,
		xerrors.WithMetadata("query_terms", strings.Join(query.Terms(), " ")))
}
