package parser

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// CategoryRule maps any of its keywords onto a category label.
type CategoryRule struct {
	Category string   `yaml:"category"`
	Keywords []string `yaml:"keywords"`
}

// DefaultRules is the built-in keyword table. Order matters: the first
// rule with a matching keyword wins.
func DefaultRules() []CategoryRule {
	return []CategoryRule{
		{Category: "food", Keywords: []string{
			"breakfast", "lunch", "dinner", "brunch", "coffee", "snack", "meal", "food", "tea", "drink",
			"早餐", "午餐", "晚餐", "宵夜", "早午餐", "咖啡", "飲料", "便當", "點心", "吃", "餐", "飯", "麵",
		}},
		{Category: "transport", Keywords: []string{
			"taxi", "uber", "bus", "mrt", "metro", "train", "gas", "fuel", "parking", "toll",
			"計程車", "公車", "捷運", "高鐵", "火車", "加油", "油錢", "停車", "交通",
		}},
		{Category: "housing", Keywords: []string{
			"rent", "mortgage", "房租", "租金", "房貸",
		}},
		{Category: "utilities", Keywords: []string{
			"electricity", "water bill", "internet", "phone bill", "utility",
			"電費", "水費", "瓦斯", "網路", "電話費", "手機費",
		}},
		{Category: "medical", Keywords: []string{
			"doctor", "medicine", "pharmacy", "hospital", "clinic", "dentist",
			"看診", "醫院", "診所", "藥", "掛號",
		}},
		{Category: "education", Keywords: []string{
			"book", "course", "tuition", "class",
			"書", "課", "學費", "補習",
		}},
		{Category: "entertainment", Keywords: []string{
			"movie", "game", "netflix", "spotify", "concert", "karaoke", "ktv",
			"電影", "遊戲", "唱歌", "演唱會",
		}},
		{Category: "shopping", Keywords: []string{
			"shopping", "clothes", "shoes", "amazon",
			"購物", "網購", "衣服", "鞋", "日用品",
		}},
		{Category: "salary", Keywords: []string{
			"salary", "payroll", "paycheck", "bonus",
			"薪水", "薪資", "獎金", "紅利",
		}},
	}
}

// LoadRules reads a YAML list of category rules from path.
//
// Example:
//
//	- category: pets
//	  keywords: [vet, kibble, 寵物]
func LoadRules(path string) ([]CategoryRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read category rules: %w", err)
	}

	var rules []CategoryRule
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse category rules: %w", err)
	}

	for i, rule := range rules {
		if strings.TrimSpace(rule.Category) == "" {
			return nil, fmt.Errorf("category rule %d: empty category", i)
		}
		if len(rule.Keywords) == 0 {
			return nil, fmt.Errorf("category rule %q: no keywords", rule.Category)
		}
	}
	return rules, nil
}

// categorize returns the category of the first rule with a keyword that
// is a case-insensitive substring of text.
func categorize(rules []CategoryRule, text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, rule := range rules {
		for _, kw := range rule.Keywords {
			if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
				return rule.Category, true
			}
		}
	}
	return "", false
}
