package insights

import (
	"strconv"
	"strings"
)

const (
	InsightImprovement = "improvement"
	InsightSuccess     = "success"
	InsightTrend       = "trend"
	InsightAnomaly     = "anomaly"
	InsightGeneral     = "general"
)

type Insight struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

type Analysis struct {
	Summary         string    `json:"summary"`
	Insights        []Insight `json:"insights"`
	KeyTakeaways    []string  `json:"key_takeaways"`
	ActionItems     []string  `json:"action_items"`
	Recommendations []string  `json:"recommendations"`
}

const (
	sectionNone            = ""
	sectionSummary         = "summary"
	sectionKeyTakeaways    = "key takeaways"
	sectionActionItems     = "action items"
	sectionRecommendations = "recommendations"
)

// parseAnalysis splits the model's free-text answer into sections. Models
// follow the prompt's layout loosely, so parsing is line-oriented and
// tolerant: unknown lines fold into the current section, "Insight:" lines are
// collected wherever they appear.
func parseAnalysis(text string) Analysis {
	var analysis Analysis

	section := sectionNone

	var summary []string

	for line := range strings.Lines(text) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if content, ok := cutHeader(line, "Insight:"); ok {
			if content != "" {
				analysis.Insights = append(analysis.Insights, Insight{
					Type:    classifyInsight(content),
					Content: content,
				})
			}

			continue
		}

		if content, ok := cutHeader(line, "Summary:"); ok {
			section = sectionSummary
			if content != "" {
				summary = append(summary, content)
			}

			continue
		}

		if content, ok := cutHeader(line, "Key Takeaways:"); ok {
			section = sectionKeyTakeaways
			if content != "" {
				analysis.KeyTakeaways = append(analysis.KeyTakeaways, content)
			}

			continue
		}

		if content, ok := cutHeader(line, "Action Items:"); ok {
			section = sectionActionItems
			if content != "" {
				analysis.ActionItems = append(analysis.ActionItems, content)
			}

			continue
		}

		if content, ok := cutHeader(line, "Recommendations:"); ok {
			section = sectionRecommendations
			if content != "" {
				analysis.Recommendations = append(analysis.Recommendations, content)
			}

			continue
		}

		item := trimBullet(line)

		switch section {
		case sectionSummary:
			summary = append(summary, item)
		case sectionKeyTakeaways:
			analysis.KeyTakeaways = append(analysis.KeyTakeaways, item)
		case sectionActionItems:
			analysis.ActionItems = append(analysis.ActionItems, item)
		case sectionRecommendations:
			analysis.Recommendations = append(analysis.Recommendations, item)
		}
	}

	analysis.Summary = strings.Join(summary, " ")

	return analysis
}

func cutHeader(line, header string) (string, bool) {
	if len(line) < len(header) || !strings.EqualFold(line[:len(header)], header) {
		return "", false
	}

	return strings.TrimSpace(line[len(header):]), true
}

func trimBullet(line string) string {
	trimmed := strings.TrimLeft(line, "-*• \t")

	// Numbered lists: "1. do the thing"
	if i := strings.IndexByte(trimmed, '.'); i > 0 && i <= 3 {
		if _, err := strconv.Atoi(trimmed[:i]); err == nil {
			trimmed = strings.TrimSpace(trimmed[i+1:])
		}
	}

	return strings.TrimSpace(trimmed)
}

var keywordTypes = []struct {
	insightType string
	keywords    []string
}{
	{InsightImprovement, []string{"improve", "better", "enhance", "optimiz", "could have"}},
	{InsightSuccess, []string{"success", "achieved", "resolved", "completed", "won"}},
	{InsightTrend, []string{"trend", "increas", "decreas", "pattern", "recurring", "consistently"}},
	{InsightAnomaly, []string{"unusual", "unexpected", "anomal", "outlier", "deviat"}},
}

// classifyInsight buckets an insight by keyword; first match wins in the
// order improvement, success, trend, anomaly.
func classifyInsight(content string) string {
	lowered := strings.ToLower(content)

	for _, entry := range keywordTypes {
		for _, keyword := range entry.keywords {
			if strings.Contains(lowered, keyword) {
				return entry.insightType
			}
		}
	}

	return InsightGeneral
}
