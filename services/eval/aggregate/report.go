// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package aggregate

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianBench/services/eval/pipeline"
)

// ReportConfig carries the run configuration echoed at the top of
// the Markdown report.
type ReportConfig struct {
	Models        []string
	ScenarioCount int
	MaxRetries    int
	RetryDelayS   float64
	TimeoutS      float64
	AnchorDate    string
}

// Report renders the run summary as a Markdown document: the
// configuration block, retry statistics, per-model tables and
// rankings, focus-area analyses, the per-scenario breakdown, and the
// error analysis.
func Report(summary *Summary, results []*pipeline.Result, cfg ReportConfig) string {
	var b strings.Builder

	b.WriteString("# Model Tool Calling Test Results Summary\n\n")
	b.WriteString("## Test Configuration\n")
	fmt.Fprintf(&b, "- **Date**: %s\n", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "- **Models Tested**: %s\n", strings.Join(cfg.Models, ", "))
	fmt.Fprintf(&b, "- **Database State**: Empty (reset between tests)\n")
	fmt.Fprintf(&b, "- **Test Scenarios**: %d scenarios\n", cfg.ScenarioCount)
	fmt.Fprintf(&b, "- **Total Tests**: %d\n", len(results))
	fmt.Fprintf(&b, "- **Current Date Context**: %s (explicitly provided to models)\n", cfg.AnchorDate)
	fmt.Fprintf(&b, "- **Retry Configuration**: Max %d retries per test, %.1fs delay, %.0fs timeout\n",
		cfg.MaxRetries, cfg.RetryDelayS, cfg.TimeoutS)

	writeRetrySection(&b, summary, len(cfg.Models))
	writeOverallSection(&b, summary)
	writeRankingsSection(&b, summary)
	writeTaskScoreSection(&b, summary)
	writeFocusSection(&b, "Parameter Extraction Analysis", summary.ParameterExtraction,
		[]string{"semantic_accuracy", "title_accuracy", "priority_accuracy", "date_accuracy", "completeness"},
		[]string{"Semantic Accuracy", "Title Accuracy", "Priority Accuracy", "Date Accuracy", "Completeness"})
	writeFocusSection(&b, "Workflow Planning Analysis", summary.WorkflowPlanning,
		[]string{"sequence_logic", "dependency_awareness", "efficiency", "context_usage"},
		[]string{"Sequence Logic", "Dependency Awareness", "Efficiency", "Context Usage"})
	writePipelineSection(&b, summary)
	writeScenarioSection(&b, summary)
	writeErrorSection(&b, results)

	return b.String()
}

func writeRetrySection(b *strings.Builder, summary *Summary, modelCount int) {
	rs := summary.RetryStats
	b.WriteString("\n## Retry Statistics Summary\n\n")
	rate := 0.0
	if rs.TotalTests > 0 {
		rate = float64(rs.TestsWithRetries) / float64(rs.TotalTests)
	}
	fmt.Fprintf(b, "- **Tests Requiring Retries**: %d/%d (%.1f%%)\n", rs.TestsWithRetries, rs.TotalTests, rate*100)
	fmt.Fprintf(b, "- **Total Retry Attempts**: %d\n", rs.TotalRetries)
	avgRetries := float64(rs.TotalRetries)
	if rs.TestsWithRetries > 0 {
		avgRetries /= float64(rs.TestsWithRetries)
	}
	fmt.Fprintf(b, "- **Average Retries per Failed Test**: %.1f\n", avgRetries)
	withRetries := "None"
	if len(rs.ModelsWithRetries) > 0 {
		withRetries = strings.Join(rs.ModelsWithRetries, ", ")
	}
	fmt.Fprintf(b, "- **Models with Retry Issues**: %d/%d (%s)\n", len(rs.ModelsWithRetries), modelCount, withRetries)

	if len(rs.RetryReasons) > 0 {
		b.WriteString("\n### Most Common Retry Reasons\n\n")
		b.WriteString("| Reason | Occurrences |\n|--------|-------------|\n")
		type rc struct {
			reason string
			count  int
		}
		reasons := make([]rc, 0, len(rs.RetryReasons))
		for reason, count := range rs.RetryReasons {
			reasons = append(reasons, rc{reason, count})
		}
		sort.Slice(reasons, func(i, j int) bool {
			if reasons[i].count != reasons[j].count {
				return reasons[i].count > reasons[j].count
			}
			return reasons[i].reason < reasons[j].reason
		})
		if len(reasons) > 10 {
			reasons = reasons[:10]
		}
		for _, r := range reasons {
			fmt.Fprintf(b, "| %s | %d |\n", r.reason, r.count)
		}
	}
}

func writeOverallSection(b *strings.Builder, summary *Summary) {
	b.WriteString("\n## Overall Results\n\n")
	b.WriteString("| Model | Success Rate | Tool Accuracy | Response Time | Total Tests | Retry Rate |\n")
	b.WriteString("|-------|-------------|---------------|---------------|-------------|------------|\n")
	for _, model := range summary.Models {
		st := summary.ModelStats[model]
		fmt.Fprintf(b, "| %s | %.1f%% | %.1f%% | %.2fs | %d | %.1f%% |\n",
			model, st.AvgSuccessRate*100, st.AvgToolAccuracy*100, st.AvgResponseTime, st.TotalTests, st.RetryRate*100)
	}
}

func writeRankingsSection(b *strings.Builder, summary *Summary) {
	b.WriteString("\n## Model Rankings\n\n")
	b.WriteString("| Rank | Model | Success Rate | Tool Accuracy | Response Time |\n")
	b.WriteString("|------|-------|-------------|---------------|---------------|\n")
	ranked := append([]string(nil), summary.Models...)
	sort.Slice(ranked, func(i, j int) bool {
		a, c := summary.ModelStats[ranked[i]], summary.ModelStats[ranked[j]]
		if a.AvgSuccessRate != c.AvgSuccessRate {
			return a.AvgSuccessRate > c.AvgSuccessRate
		}
		return ranked[i] < ranked[j]
	})
	for i, model := range ranked {
		st := summary.ModelStats[model]
		fmt.Fprintf(b, "| %d | %s | %.1f%% | %.1f%% | %.2fs |\n",
			i+1, model, st.AvgSuccessRate*100, st.AvgToolAccuracy*100, st.AvgResponseTime)
	}
}

func writeTaskScoreSection(b *strings.Builder, summary *Summary) {
	if len(summary.TaskRanking) == 0 {
		return
	}
	b.WriteString("\n## Task Score Leaderboard\n\n")
	b.WriteString("Task Score = 0.7·success + 0.2·latency + 0.1·stability\n\n")
	b.WriteString("| Rank | Model | Task Score | Latency Score | Stability Score |\n")
	b.WriteString("|------|-------|-----------|---------------|------------------|\n")
	for i, entry := range summary.TaskRanking {
		st := summary.ModelStats[entry.Model]
		fmt.Fprintf(b, "| %d | %s | %.3f | %.3f | %.3f |\n",
			i+1, entry.Model, entry.TaskScore, st.AvgLatencyScore, st.AvgStabilityScore)
	}
	if best, ok := summary.BestInClass["best_task_score"]; ok {
		fmt.Fprintf(b, "\n- **Best Task Score**: %s\n", best)
	}
}

func writeFocusSection(b *strings.Builder, title string, focus FocusAverages, keys, headers []string) {
	if len(focus.ModelAverages) == 0 {
		return
	}
	fmt.Fprintf(b, "\n## %s\n\n", title)
	fmt.Fprintf(b, "| Model | %s | Tests |\n", strings.Join(headers, " | "))
	b.WriteString("|-------|" + strings.Repeat("------|", len(headers)+1) + "\n")

	models := make([]string, 0, len(focus.ModelAverages))
	for m := range focus.ModelAverages {
		models = append(models, m)
	}
	sort.Strings(models)
	for _, model := range models {
		avgs := focus.ModelAverages[model]
		cells := make([]string, 0, len(keys))
		for _, k := range keys {
			cells = append(cells, fmt.Sprintf("%.1f%%", avgs[k]*100))
		}
		fmt.Fprintf(b, "| %s | %s | %d |\n", model, strings.Join(cells, " | "), int(avgs["tests"]))
	}
	if focus.BestModel != "" {
		fmt.Fprintf(b, "\n- **Best Model**: %s (%.1f%%)\n", focus.BestModel, focus.BestScore*100)
	}
}

func writePipelineSection(b *strings.Builder, summary *Summary) {
	if len(summary.Pipeline.Extraction) == 0 {
		return
	}
	b.WriteString("\n## Pipeline Phase Breakdown\n\n")
	b.WriteString("| Model | Extraction Tool F1 | Verification Acceptance F1 | Execution Success Rate |\n")
	b.WriteString("|-------|-------------------|----------------------------|------------------------|\n")
	models := make([]string, 0, len(summary.Pipeline.Extraction))
	for m := range summary.Pipeline.Extraction {
		models = append(models, m)
	}
	sort.Strings(models)
	for _, model := range models {
		ext := summary.Pipeline.Extraction[model]
		ver := summary.Pipeline.Verification[model]
		exe := summary.Pipeline.Execution[model]
		fmt.Fprintf(b, "| %s | %.1f%% | %.1f%% | %.1f%% |\n",
			model, ext.ToolF1*100, ver.AcceptanceF1*100, exe.SuccessRate*100)
	}
	if summary.Pipeline.BestInClass != nil {
		fmt.Fprintf(b, "\n- **Pipeline Best-in-Class**: %s (%s)\n",
			summary.Pipeline.BestInClass.Winner, summary.Pipeline.BestInClass.Details)
	}
}

func writeScenarioSection(b *strings.Builder, summary *Summary) {
	if len(summary.Scenarios) == 0 {
		return
	}
	b.WriteString("\n## Detailed Test Breakdown\n\n### By Scenario\n")
	names := make([]string, 0, len(summary.Scenarios))
	for name := range summary.Scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(b, "\n#### %s\n", titleCase(name))
		b.WriteString("| Model | Success Rate | Tool Accuracy | Response Time |\n")
		b.WriteString("|-------|-------------|---------------|---------------|\n")
		perModel := summary.Scenarios[name]
		models := make([]string, 0, len(perModel))
		for m := range perModel {
			models = append(models, m)
		}
		sort.Strings(models)
		for _, model := range models {
			cell := perModel[model]
			fmt.Fprintf(b, "| %s | %.1f%% | %.1f%% | %.2fs |\n",
				model, cell.SuccessRate*100, cell.ToolAccuracy*100, cell.AvgTimeS)
		}
	}
}

func writeErrorSection(b *strings.Builder, results []*pipeline.Result) {
	b.WriteString("\n## Detailed Error Analysis\n")

	type modelErrors struct {
		parsing    []string
		validation []string
		failed     []string
	}
	byModel := map[string]*modelErrors{}
	var order []string
	for _, res := range results {
		me := byModel[res.Model]
		if me == nil {
			me = &modelErrors{}
			byModel[res.Model] = me
			order = append(order, res.Model)
		}
		if res.Metrics.ParsingErrors == 0 && res.Metrics.ValidationErrors == 0 {
			continue
		}
		me.failed = append(me.failed, res.Scenario)
		for _, call := range res.ToolCalls {
			for _, e := range call.ParsingErrors {
				me.parsing = append(me.parsing, fmt.Sprintf("%s: %s", res.Scenario, e))
			}
			for _, e := range call.ValidationErrors {
				me.validation = append(me.validation, fmt.Sprintf("%s: %s", res.Scenario, e))
			}
		}
	}
	sort.Strings(order)
	for _, model := range order {
		me := byModel[model]
		fmt.Fprintf(b, "\n#### %s\n", model)
		writeErrorList(b, "Parsing Errors", me.parsing)
		writeErrorList(b, "Validation Errors", me.validation)
		if len(me.parsing) == 0 && len(me.validation) == 0 {
			b.WriteString("**No parsing or validation errors detected**\n")
		}
		failed := "None"
		if len(me.failed) > 0 {
			failed = strings.Join(me.failed, ", ")
		}
		fmt.Fprintf(b, "**Failed Scenarios:** %s\n", failed)
	}
}

func writeErrorList(b *strings.Builder, title string, errs []string) {
	if len(errs) == 0 {
		return
	}
	fmt.Fprintf(b, "**%s:**\n", title)
	shown := errs
	if len(shown) > 5 {
		shown = shown[:5]
	}
	for _, e := range shown {
		fmt.Fprintf(b, "- %s\n", e)
	}
	if len(errs) > 5 {
		fmt.Fprintf(b, "- ... and %d more\n", len(errs)-5)
	}
}

func titleCase(name string) string {
	words := strings.Split(strings.ReplaceAll(name, "_", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
