package match

import (
	"sort"
	"strings"

	"TechHub-Embassy/internal/project"
)

// Query 是从用例推导出的匹配查询：标签集合与自由文本关键词。
type Query struct {
	Tags     []string
	Keywords []string
}

// Terms 返回查询的全部词项，用于错误上报。
func (q Query) Terms() []string {
	terms := make([]string, 0, len(q.Tags)+len(q.Keywords))
	terms = append(terms, q.Tags...)
	terms = append(terms, q.Keywords...)
	return terms
}

// BuildQuery 从用例的结构化字段与描述文本推导查询向量。
func BuildQuery(uc *project.UseCase) Query {
	tagSet := make(map[string]struct{})
	addTag := func(raw string) {
		tag := strings.ToLower(strings.TrimSpace(raw))
		if tag != "" {
			tagSet[tag] = struct{}{}
		}
	}
	addTag(uc.Industry)
	addTag(uc.CloudPreference)
	for _, dep := range uc.Constraints.Dependencies {
		addTag(dep)
	}
	for _, item := range uc.Constraints.Compliance {
		addTag(item)
	}

	keywordSet := make(map[string]struct{})
	collect := func(text string) {
		for _, token := range tokenize(text) {
			keywordSet[token] = struct{}{}
		}
	}
	collect(uc.Title)
	collect(uc.Description)
	collect(uc.Outcome)
	for _, criterion := range uc.SuccessCriteria {
		collect(criterion)
	}

	query := Query{
		Tags:     make([]string, 0, len(tagSet)),
		Keywords: make([]string, 0, len(keywordSet)),
	}
	for tag := range tagSet {
		query.Tags = append(query.Tags, tag)
	}
	for keyword := range keywordSet {
		query.Keywords = append(query.Keywords, keyword)
	}
	sort.Strings(query.Tags)
	sort.Strings(query.Keywords)
	return query
}

// stopwords 过滤掉对匹配没有区分度的常见词。
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"by": {}, "for": {}, "from": {}, "in": {}, "into": {}, "is": {}, "it": {},
	"of": {}, "on": {}, "or": {}, "our": {}, "that": {}, "the": {}, "to": {},
	"we": {}, "with": {}, "want": {}, "need": {}, "using": {},
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-')
	})
	tokens := make([]string, 0, len(fields))
	for _, field := range fields {
		if len(field) < 2 {
			continue
		}
		if _, ok := stopwords[field]; ok {
			continue
		}
		tokens = append(tokens, field)
	}
	return tokens
}
