package catalog

import "strings"

// Category 表示目录资源的类别。
type Category string

const (
	CategoryDemo      Category = "Demo"
	CategorySolution  Category = "Solution"
	CategoryComponent Category = "Component"
)

// Categories 按固定顺序列出全部资源类别。
var Categories = []Category{CategoryDemo, CategorySolution, CategoryComponent}

// IsValidCategory 检查给定的类别是否为支持的枚举值。
func IsValidCategory(category Category) bool {
	switch category {
	case CategoryDemo, CategorySolution, CategoryComponent:
		return true
	default:
		return false
	}
}

// ParseCategory 宽松地解析类别字符串。
func ParseCategory(raw string) (Category, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "demo":
		return CategoryDemo, true
	case "solution":
		return CategorySolution, true
	case "component":
		return CategoryComponent, true
	default:
		return "", false
	}
}

// Entry 描述目录中的一项可匹配资源。目录在一次请求内是只读的，
// 条目不会被核心修改。
type Entry struct {
	ID          string   `json:"id" yaml:"id"`
	Title       string   `json:"title" yaml:"title"`
	Category    Category `json:"category" yaml:"category"`
	Tags        []string `json:"tags" yaml:"tags"`
	Keywords    []string `json:"keywords" yaml:"keywords"`
	Description string   `json:"description" yaml:"description"`
	Industries  []string `json:"industries" yaml:"industries"`
	Link        string   `json:"link" yaml:"link"`
	UpdatedAt   int64    `json:"updated_at" yaml:"updated_at"`
}

// HasTag 判断条目是否带有指定能力标签（大小写不敏感）。
func (e Entry) HasTag(tag string) bool {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" {
		return false
	}
	for _, candidate := range e.Tags {
		if strings.ToLower(strings.TrimSpace(candidate)) == tag {
			return true
		}
	}
	return false
}

// ServesIndustry 判断条目是否面向指定行业。无行业约束的条目视为通用。
func (e Entry) ServesIndustry(industry string) bool {
	industry = strings.ToLower(strings.TrimSpace(industry))
	if industry == "" || len(e.Industries) == 0 {
		return true
	}
	for _, candidate := range e.Industries {
		normalized := strings.ToLower(strings.TrimSpace(candidate))
		if normalized == industry || normalized == "general" {
			return true
		}
	}
	return false
}
