package tools

import (
	"sort"
	"strings"
)

var actionWords = []string{"create", "add", "schedule", "send", "search", "find", "get", "show"}

// Step is one entry of an execution plan.
type Step struct {
	Tool                 string `json:"tool"`
	Purpose              string `json:"purpose"`
	RequiresConfirmation bool   `json:"requires_confirmation,omitempty"`
}

// Suggestion is a ranked tool with the order in which to call it and its helpers.
type Suggestion struct {
	Tool                 string   `json:"tool_name"`
	Category             Category `json:"category"`
	Description          string   `json:"description"`
	Score                int      `json:"score"`
	RequiredParams       []string `json:"required_params"`
	Helpers              []string `json:"helper_tools"`
	RequiresConfirmation bool     `json:"requires_confirmation"`
	UsagePattern         string   `json:"typical_usage_pattern,omitempty"`
	Plan                 []Step   `json:"execution_order"`
}

// Suggest ranks tools by relevance to a free-text query. Tools scoring zero are dropped.
func (c *Catalog) Suggest(query string, limit int) []Suggestion {
	q := strings.ToLower(query)
	queryWords := wordSet(q)

	type scored struct {
		idx   int
		score int
	}
	var ranked []scored
	for i, d := range c.defs {
		score := 0
		for _, kw := range d.Keywords {
			if strings.Contains(q, strings.ToLower(kw)) {
				score += 3
			}
		}
		for w := range wordSet(strings.ToLower(d.Description)) {
			if queryWords[w] {
				score++
			}
		}
		name := strings.ToLower(d.Name)
		for _, w := range actionWords {
			if strings.Contains(q, w) && strings.Contains(name, w) {
				score += 5
			}
		}
		if score > 0 {
			ranked = append(ranked, scored{idx: i, score: score})
		}
	}
	sort.SliceStable(ranked, func(a, b int) bool { return ranked[a].score > ranked[b].score })
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}

	out := make([]Suggestion, 0, len(ranked))
	for _, r := range ranked {
		d := c.defs[r.idx]
		out = append(out, Suggestion{
			Tool:                 d.Name,
			Category:             d.Category,
			Description:          d.Description,
			Score:                r.score,
			RequiredParams:       d.RequiredParams(),
			Helpers:              append([]string(nil), d.Helpers...),
			RequiresConfirmation: d.RequiresConfirmation,
			UsagePattern:         d.Usage,
			Plan:                 c.Plan(d),
		})
	}
	return out
}

// Plan lists the helpers of d followed by d itself.
func (c *Catalog) Plan(d Definition) []Step {
	steps := make([]Step, 0, len(d.Helpers)+1)
	for _, h := range d.Helpers {
		steps = append(steps, Step{Tool: h, Purpose: "get required data for " + d.Name})
	}
	return append(steps, Step{Tool: d.Name, Purpose: "execute main action", RequiresConfirmation: d.RequiresConfirmation})
}

func wordSet(s string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range strings.Fields(s) {
		out[w] = true
	}
	return out
}

var intentKeywords = []struct {
	intent   string
	keywords []string
}{
	{"search", []string{"find", "search", "show", "list", "get", "who", "which"}},
	{"create", []string{"create", "add", "make", "schedule", "send"}},
	{"report", []string{"report", "analytics", "how many", "count", "performance", "metrics"}},
	{"email", []string{"email", "send", "message", "contact", "reach out"}},
	{"meeting", []string{"meeting", "schedule", "appointment", "interview", "call"}},
}

var timeKeywords = []string{"yesterday", "today", "tomorrow", "week", "month", "year", "last", "this", "next"}

// Entities flags the record types a query mentions.
type Entities struct {
	Candidates bool     `json:"candidates"`
	Jobs       bool     `json:"jobs"`
	Companies  bool     `json:"companies"`
	TimeRange  []string `json:"time_range"`
}

// QueryAnalysis is a keyword-level reading of a free-text query.
type QueryAnalysis struct {
	Intents    []string `json:"intents"`
	Entities   Entities `json:"entities"`
	Complexity string   `json:"complexity"`
}

// AnalyzeQuery detects intents, mentioned entities and time references by substring match.
// A query with more than one intent is rated high complexity.
func AnalyzeQuery(query string) QueryAnalysis {
	q := strings.ToLower(query)
	a := QueryAnalysis{Intents: []string{}, Complexity: "low"}
	for _, ik := range intentKeywords {
		if containsAny(q, ik.keywords...) {
			a.Intents = append(a.Intents, ik.intent)
		}
	}
	a.Entities = Entities{
		Candidates: containsAny(q, "candidate", "people"),
		Jobs:       containsAny(q, "job", "position"),
		Companies:  containsAny(q, "company", "client"),
		TimeRange:  []string{},
	}
	for _, kw := range timeKeywords {
		if strings.Contains(q, kw) {
			a.Entities.TimeRange = append(a.Entities.TimeRange, kw)
		}
	}
	if len(a.Intents) > 1 {
		a.Complexity = "high"
	}
	return a
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
