package extract

import (
	"regexp"
	"strings"
)

// SummaryInstruction системная инструкция для разбора документа.
const SummaryInstruction = "Extract summary, key actions, and KPIs. " +
	"Answer in three sections titled exactly \"Summary:\", \"Key Actions:\" and \"KPIs:\"."

var (
	summaryRe = regexp.MustCompile(`(?s)Summary:\s*(.*?)\s*Key Actions:`)
	actionsRe = regexp.MustCompile(`(?s)Key Actions:\s*(.*?)\s*KPIs:`)
	kpisRe    = regexp.MustCompile(`(?s)KPIs:\s*(.*)`)
	bulletRe  = regexp.MustCompile(`^(?:[-*•]|\d+[.)])\s*`)
)

// Summary разобранный ответ модели.
type Summary struct {
	Summary    string
	KeyActions []string
	KPIs       []string
}

// ParseSummary делит ответ на секции "Summary:", "Key Actions:" и "KPIs:".
// Отсутствующая секция остаётся пустой.
func ParseSummary(content string) Summary {
	var s Summary
	if m := summaryRe.FindStringSubmatch(content); m != nil {
		s.Summary = strings.TrimSpace(m[1])
	}
	if m := actionsRe.FindStringSubmatch(content); m != nil {
		s.KeyActions = splitItems(m[1])
	}
	if m := kpisRe.FindStringSubmatch(content); m != nil {
		s.KPIs = splitItems(m[1])
	}
	return s
}

func splitItems(block string) []string {
	var items []string
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(bulletRe.ReplaceAllString(strings.TrimSpace(line), ""))
		if line != "" {
			items = append(items, line)
		}
	}
	return items
}
