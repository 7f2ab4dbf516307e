// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package aggregate rolls a run's results up into per-model,
// per-format, per-phase, and per-scenario statistics, selects
// Best-in-Class models, and computes the composite Task Score.
package aggregate

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianBench/services/eval/pipeline"
	"github.com/AleutianAI/AleutianBench/services/eval/score"
)

// DefaultSLASeconds is the latency SLA applied when a fixture does
// not declare its own.
const DefaultSLASeconds = 10.0

// TaskScore blends correctness, latency, and stability into one
// comparable number per model.
const (
	taskWeightSuccess   = 0.7
	taskWeightLatency   = 0.2
	taskWeightStability = 0.1
)

// ModelStats is the per-model rollup.
type ModelStats struct {
	AvgSuccessRate    float64    `json:"avg_success_rate"`
	AvgToolAccuracy   float64    `json:"avg_tool_accuracy"`
	AvgResponseTime   float64    `json:"avg_response_time_s"`
	TotalTests        int        `json:"total_tests"`
	RetryRate         float64    `json:"retry_rate"`
	AvgToolUsage      score.PRF1 `json:"avg_tool_usage"`
	TaskScore         float64    `json:"task_score"`
	AvgLatencyScore   float64    `json:"avg_latency_score"`
	AvgStabilityScore float64    `json:"avg_stability_score"`
}

// FormatStats is the per-output-format rollup across all models.
type FormatStats struct {
	FormatName       string   `json:"format_name"`
	AvgSuccessRate   float64  `json:"avg_success_rate"`
	AvgToolAccuracy  float64  `json:"avg_tool_accuracy"`
	AvgResponseTime  float64  `json:"avg_response_time_s"`
	AvgToolUsageF1   float64  `json:"avg_tool_usage_f1"`
	TotalTests       int      `json:"total_tests"`
	TestsWithRetries int      `json:"tests_with_retries"`
	RetryRate        float64  `json:"retry_rate"`
	Models           []string `json:"models"`
}

// RetryStats summarizes gateway retry behavior across the run.
type RetryStats struct {
	TotalTests        int            `json:"total_tests"`
	TestsWithRetries  int            `json:"tests_with_retries"`
	TotalRetries      int            `json:"total_retry_attempts"`
	MaxRetriesPerTest int            `json:"max_retries_per_test"`
	RetryReasons      map[string]int `json:"retry_reasons"`
	ModelsWithRetries []string       `json:"models_with_retries"`
}

// ExtractionAvg, VerificationAvg, and ExecutionAvg are the per-model
// phase rollups.
type ExtractionAvg struct {
	ToolF1             float64 `json:"tool_f1"`
	OrderAdherence     float64 `json:"order_adherence"`
	ParameterReadiness float64 `json:"parameter_readiness"`
}

type VerificationAvg struct {
	AcceptanceF1    float64 `json:"acceptance_f1"`
	HallucinationF1 float64 `json:"hallucination_f1"`
}

type ExecutionAvg struct {
	SuccessRate  float64 `json:"success_rate"`
	ToolAccuracy float64 `json:"tool_accuracy"`
	ToolUsageF1  float64 `json:"tool_usage_f1"`
}

// PipelineBest names the majority-of-phase-wins winner.
type PipelineBest struct {
	Winner  string `json:"winner"`
	Details string `json:"details"`
}

// PipelineStats groups the per-phase rollups.
type PipelineStats struct {
	Extraction   map[string]ExtractionAvg   `json:"extraction"`
	Verification map[string]VerificationAvg `json:"verification"`
	Execution    map[string]ExecutionAvg    `json:"execution"`
	BestInClass  *PipelineBest              `json:"best_in_class,omitempty"`
}

// TaskRank is one entry in the Task Score leaderboard.
type TaskRank struct {
	Model     string  `json:"model"`
	TaskScore float64 `json:"task_score"`
}

// FocusAverages rolls up one evaluation focus (parameter extraction
// or workflow planning) per model.
type FocusAverages struct {
	ModelAverages map[string]map[string]float64 `json:"model_averages"`
	BestModel     string                        `json:"best_model,omitempty"`
	BestScore     float64                       `json:"best_score"`
}

// ScenarioCell is one model's averaged standing on one scenario.
type ScenarioCell struct {
	SuccessRate  float64 `json:"success_rate"`
	ToolAccuracy float64 `json:"tool_accuracy"`
	AvgTimeS     float64 `json:"avg_time_s"`
}

// Provenance records the knobs that shaped the run.
type Provenance struct {
	AnchorDate string `json:"anchor_date"`
	Phase      string `json:"phase"`
	Format     string `json:"format,omitempty"`
}

// Summary is the run's terminal aggregate artifact.
type Summary struct {
	Timestamp           string                             `json:"timestamp"`
	Models              []string                           `json:"models"`
	ModelStats          map[string]ModelStats              `json:"model_stats"`
	FormatStats         map[string]FormatStats             `json:"format_stats"`
	RetryStats          RetryStats                         `json:"retry_stats"`
	BestInClass         map[string]string                  `json:"best_in_class"`
	TaskRanking         []TaskRank                         `json:"task_ranking"`
	ParameterExtraction FocusAverages                      `json:"parameter_extraction"`
	WorkflowPlanning    FocusAverages                      `json:"workflow_planning"`
	Pipeline            PipelineStats                      `json:"pipeline"`
	Scenarios           map[string]map[string]ScenarioCell `json:"scenarios"`
	Provenance          Provenance                         `json:"provenance"`
}

// LatencyScore maps a response time onto [0,1]: 1.0 at or under the
// SLA, 0.0 at three times the SLA, linear in between.
func LatencyScore(responseTime, sla float64) float64 {
	if sla <= 0 {
		sla = DefaultSLASeconds
	}
	switch {
	case responseTime <= sla:
		return 1.0
	case responseTime >= 3*sla:
		return 0.0
	default:
		return 1.0 - (responseTime-sla)/(2*sla)
	}
}

// StabilityScore maps retry attempts onto [0,1]: each retry costs
// half the score.
func StabilityScore(retryAttempts int) float64 {
	s := 1.0 - 0.5*float64(retryAttempts)
	if s < 0 {
		return 0.0
	}
	return s
}

type modelAccum struct {
	successRates   []float64
	toolAccuracies []float64
	responseTimes  []float64
	usage          []score.PRF1
	latencyScores  []float64
	stability      []float64
	totalTests     int
	withRetries    int
}

type formatAccum struct {
	name           string
	successRates   []float64
	toolAccuracies []float64
	responseTimes  []float64
	usageF1s       []float64
	totalTests     int
	withRetries    int
	models         map[string]bool
}

type phaseAccum struct {
	toolF1, orderAdherence, paramReadiness []float64
	acceptanceF1, hallucinationF1          []float64
	successRate, toolAccuracy, toolUsageF1 []float64
}

// Build computes the full summary from a run's results.
func Build(results []*pipeline.Result, prov Provenance) *Summary {
	models := map[string]*modelAccum{}
	formats := map[string]*formatAccum{}
	phases := map[string]*phaseAccum{}
	scenarios := map[string]map[string]*scenarioAccum{}
	retry := RetryStats{RetryReasons: map[string]int{}}
	retryModels := map[string]bool{}

	for _, res := range results {
		m := models[res.Model]
		if m == nil {
			m = &modelAccum{}
			models[res.Model] = m
		}
		f := formats[string(res.FormatType)]
		if f == nil {
			f = &formatAccum{name: res.FormatName, models: map[string]bool{}}
			formats[string(res.FormatType)] = f
		}

		attempts := res.RetryInfo.RetryAttempts
		retry.TotalTests++
		if attempts > 0 {
			retry.TestsWithRetries++
			retry.TotalRetries += attempts
			if attempts > retry.MaxRetriesPerTest {
				retry.MaxRetriesPerTest = attempts
			}
			retryModels[res.Model] = true
			for _, reason := range res.RetryInfo.RetryReasons {
				retry.RetryReasons[reason]++
			}
			m.withRetries++
			f.withRetries++
		}

		met := res.Metrics
		m.successRates = append(m.successRates, met.SuccessRate)
		m.toolAccuracies = append(m.toolAccuracies, met.ToolAccuracy)
		m.responseTimes = append(m.responseTimes, met.ResponseTime)
		m.usage = append(m.usage, met.ToolUsage)
		m.latencyScores = append(m.latencyScores, LatencyScore(met.ResponseTime, res.SLASeconds))
		m.stability = append(m.stability, StabilityScore(attempts))
		m.totalTests++

		f.successRates = append(f.successRates, met.SuccessRate)
		f.toolAccuracies = append(f.toolAccuracies, met.ToolAccuracy)
		f.responseTimes = append(f.responseTimes, met.ResponseTime)
		f.usageF1s = append(f.usageF1s, met.ToolUsage.F1)
		f.totalTests++
		f.models[res.Model] = true

		accumulatePhases(phases, res)
		accumulateScenario(scenarios, res)
	}

	summary := &Summary{
		Timestamp:   time.Now().Format("2006-01-02_15-04-05"),
		ModelStats:  map[string]ModelStats{},
		FormatStats: map[string]FormatStats{},
		RetryStats:  retry,
		BestInClass: map[string]string{},
		Pipeline: PipelineStats{
			Extraction:   map[string]ExtractionAvg{},
			Verification: map[string]VerificationAvg{},
			Execution:    map[string]ExecutionAvg{},
		},
		Scenarios:  map[string]map[string]ScenarioCell{},
		Provenance: prov,
	}
	summary.RetryStats.ModelsWithRetries = sortedKeys(retryModels)

	for name, acc := range models {
		summary.Models = append(summary.Models, name)
		usage := score.PRF1{}
		for _, u := range acc.usage {
			usage.Precision += u.Precision
			usage.Recall += u.Recall
			usage.F1 += u.F1
		}
		if n := float64(len(acc.usage)); n > 0 {
			usage.Precision /= n
			usage.Recall /= n
			usage.F1 /= n
		}
		latency := mean(acc.latencyScores, 1.0)
		stability := mean(acc.stability, 1.0)
		successRate := mean(acc.successRates, 0)
		retryRate := 0.0
		if acc.totalTests > 0 {
			retryRate = float64(acc.withRetries) / float64(acc.totalTests)
		}
		summary.ModelStats[name] = ModelStats{
			AvgSuccessRate:    successRate,
			AvgToolAccuracy:   mean(acc.toolAccuracies, 0),
			AvgResponseTime:   mean(acc.responseTimes, 0),
			TotalTests:        acc.totalTests,
			RetryRate:         retryRate,
			AvgToolUsage:      usage,
			TaskScore:         taskWeightSuccess*successRate + taskWeightLatency*latency + taskWeightStability*stability,
			AvgLatencyScore:   latency,
			AvgStabilityScore: stability,
		}
	}
	sort.Strings(summary.Models)

	for key, acc := range formats {
		retryRate := 0.0
		if acc.totalTests > 0 {
			retryRate = float64(acc.withRetries) / float64(acc.totalTests)
		}
		summary.FormatStats[key] = FormatStats{
			FormatName:       acc.name,
			AvgSuccessRate:   mean(acc.successRates, 0),
			AvgToolAccuracy:  mean(acc.toolAccuracies, 0),
			AvgResponseTime:  mean(acc.responseTimes, 0),
			AvgToolUsageF1:   mean(acc.usageF1s, 0),
			TotalTests:       acc.totalTests,
			TestsWithRetries: acc.withRetries,
			RetryRate:        retryRate,
			Models:           sortedKeys(acc.models),
		}
	}

	summary.BestInClass = bestInClass(summary.ModelStats)
	summary.TaskRanking = taskRanking(summary.ModelStats)
	summary.ParameterExtraction = focusAverages(results, "parameter_extraction")
	summary.WorkflowPlanning = focusAverages(results, "workflow_planning")
	fillPipeline(&summary.Pipeline, phases)
	for name, perModel := range scenarios {
		cellMap := map[string]ScenarioCell{}
		for model, acc := range perModel {
			n := float64(acc.count)
			cellMap[model] = ScenarioCell{
				SuccessRate:  acc.successRate / n,
				ToolAccuracy: acc.toolAccuracy / n,
				AvgTimeS:     acc.timeS / n,
			}
		}
		summary.Scenarios[name] = cellMap
	}
	return summary
}

type scenarioAccum struct {
	successRate, toolAccuracy, timeS float64
	count                            int
}

func accumulateScenario(scenarios map[string]map[string]*scenarioAccum, res *pipeline.Result) {
	name := res.Scenario
	if name == "" {
		name = "unknown"
	}
	perModel := scenarios[name]
	if perModel == nil {
		perModel = map[string]*scenarioAccum{}
		scenarios[name] = perModel
	}
	acc := perModel[res.Model]
	if acc == nil {
		acc = &scenarioAccum{}
		perModel[res.Model] = acc
	}
	acc.successRate += res.Metrics.SuccessRate
	acc.toolAccuracy += res.Metrics.ToolAccuracy
	acc.timeS += res.Metrics.ResponseTime
	acc.count++
}

// accumulatePhases credits each phase's metrics to the model that
// actually ran the phase, which may differ from the run's primary
// model under step-specific model lists.
func accumulatePhases(phases map[string]*phaseAccum, res *pipeline.Result) {
	get := func(model string) *phaseAccum {
		if model == "" {
			model = res.Model
		}
		acc := phases[model]
		if acc == nil {
			acc = &phaseAccum{}
			phases[model] = acc
		}
		return acc
	}
	if ex := res.Pipeline.Extract; ex != nil {
		acc := get(ex.Model)
		acc.toolF1 = append(acc.toolF1, ex.Metrics.ToolF1)
		acc.orderAdherence = append(acc.orderAdherence, ex.Metrics.OrderAdherence)
		acc.paramReadiness = append(acc.paramReadiness, ex.Metrics.ParameterReadiness)
	}
	if v := res.Pipeline.Verify; v != nil {
		acc := get(v.Model)
		acc.acceptanceF1 = append(acc.acceptanceF1, v.Metrics.AcceptanceF1)
		acc.hallucinationF1 = append(acc.hallucinationF1, v.Metrics.HallucinationF1)
	}
	if ex := res.Pipeline.Execute; ex != nil {
		acc := get(ex.Model)
		acc.successRate = append(acc.successRate, ex.Metrics.SuccessRate)
		acc.toolAccuracy = append(acc.toolAccuracy, ex.Metrics.ToolAccuracy)
		acc.toolUsageF1 = append(acc.toolUsageF1, ex.Metrics.ToolUsageF1)
	}
}

func fillPipeline(ps *PipelineStats, phases map[string]*phaseAccum) {
	extScores := map[string]float64{}
	verScores := map[string]float64{}
	exeScores := map[string]float64{}
	for model, acc := range phases {
		if len(acc.toolF1) > 0 {
			ps.Extraction[model] = ExtractionAvg{
				ToolF1:             mean(acc.toolF1, 0),
				OrderAdherence:     mean(acc.orderAdherence, 0),
				ParameterReadiness: mean(acc.paramReadiness, 0),
			}
			extScores[model] = ps.Extraction[model].ToolF1
		}
		if len(acc.acceptanceF1) > 0 {
			ps.Verification[model] = VerificationAvg{
				AcceptanceF1:    mean(acc.acceptanceF1, 0),
				HallucinationF1: mean(acc.hallucinationF1, 0),
			}
			verScores[model] = ps.Verification[model].AcceptanceF1
		}
		if len(acc.successRate) > 0 {
			ps.Execution[model] = ExecutionAvg{
				SuccessRate:  mean(acc.successRate, 0),
				ToolAccuracy: mean(acc.toolAccuracy, 0),
				ToolUsageF1:  mean(acc.toolUsageF1, 0),
			}
			exeScores[model] = ps.Execution[model].SuccessRate
		}
	}
	ps.BestInClass = pipelineBest(extScores, verScores, exeScores)
}

// pipelineBest picks the model winning the majority of phases
// (highest average score per phase); ties break on the lowest
// average rank across all three phases.
func pipelineBest(ext, ver, exe map[string]float64) *PipelineBest {
	if len(ext) == 0 || len(ver) == 0 || len(exe) == 0 {
		return nil
	}
	rExt, rVer, rExe := ranks(ext), ranks(ver), ranks(exe)

	all := map[string]bool{}
	for m := range rExt {
		all[m] = true
	}
	for m := range rVer {
		all[m] = true
	}
	for m := range rExe {
		all[m] = true
	}

	wins := map[string]int{}
	avgRank := map[string]float64{}
	for m := range all {
		avgRank[m] = float64(rankOrLast(rExt, m)+rankOrLast(rVer, m)+rankOrLast(rExe, m)) / 3.0
	}
	for _, r := range []map[string]int{rExt, rVer, rExe} {
		wins[topRanked(r)]++
	}

	maxWins := 0
	for _, w := range wins {
		if w > maxWins {
			maxWins = w
		}
	}
	var contenders []string
	for m, w := range wins {
		if w == maxWins {
			contenders = append(contenders, m)
		}
	}
	sort.Strings(contenders)
	winner := contenders[0]
	for _, m := range contenders[1:] {
		if avgRank[m] < avgRank[winner] {
			winner = m
		}
	}
	return &PipelineBest{
		Winner:  winner,
		Details: fmt.Sprintf("Wins: %s | Avg rank: %s", formatIntMap(wins), formatFloatMap(avgRank)),
	}
}

// rankOrLast reads a model's rank, treating a model absent from the
// phase as ranked below everyone who competed in it.
func rankOrLast(r map[string]int, model string) int {
	if rank, ok := r[model]; ok {
		return rank
	}
	return len(r) + 1
}

// ranks assigns 1-based ranks by descending score, breaking score
// ties by model name so results are deterministic.
func ranks(scores map[string]float64) map[string]int {
	type entry struct {
		model string
		score float64
	}
	entries := make([]entry, 0, len(scores))
	for m, s := range scores {
		entries = append(entries, entry{m, s})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].score != entries[j].score {
			return entries[i].score > entries[j].score
		}
		return entries[i].model < entries[j].model
	})
	out := map[string]int{}
	for i, e := range entries {
		out[e.model] = i + 1
	}
	return out
}

func topRanked(r map[string]int) string {
	for m, rank := range r {
		if rank == 1 {
			return m
		}
	}
	return ""
}

func bestInClass(stats map[string]ModelStats) map[string]string {
	best := map[string]string{}
	pick := func(better func(a, b ModelStats) bool) string {
		var winner string
		for _, model := range sortedStatKeys(stats) {
			if winner == "" || better(stats[model], stats[winner]) {
				winner = model
			}
		}
		return winner
	}
	if len(stats) == 0 {
		return best
	}
	best["best_success_rate"] = pick(func(a, b ModelStats) bool { return a.AvgSuccessRate > b.AvgSuccessRate })
	best["best_tool_accuracy"] = pick(func(a, b ModelStats) bool { return a.AvgToolAccuracy > b.AvgToolAccuracy })
	best["fastest_response"] = pick(func(a, b ModelStats) bool { return a.AvgResponseTime < b.AvgResponseTime })
	best["best_task_score"] = pick(func(a, b ModelStats) bool { return a.TaskScore > b.TaskScore })
	return best
}

func taskRanking(stats map[string]ModelStats) []TaskRank {
	ranking := make([]TaskRank, 0, len(stats))
	for model, st := range stats {
		ranking = append(ranking, TaskRank{Model: model, TaskScore: st.TaskScore})
	}
	sort.Slice(ranking, func(i, j int) bool {
		if ranking[i].TaskScore != ranking[j].TaskScore {
			return ranking[i].TaskScore > ranking[j].TaskScore
		}
		return ranking[i].Model < ranking[j].Model
	})
	return ranking
}

// focusAverages rolls up the per-model detail scores for one
// evaluation focus. The best model is selected by semantic accuracy
// for parameter extraction and by the core-three average for
// workflow planning.
func focusAverages(results []*pipeline.Result, focus string) FocusAverages {
	buckets := map[string]map[string][]float64{}
	for _, res := range results {
		if res.EvaluationFocus != focus {
			continue
		}
		var series map[string]float64
		switch focus {
		case "parameter_extraction":
			if res.Metrics.ParameterScores == nil {
				continue
			}
			p := res.Metrics.ParameterScores
			series = map[string]float64{
				"semantic_accuracy": p.SemanticAccuracy,
				"title_accuracy":    p.TitleAccuracy,
				"priority_accuracy": p.PriorityAccuracy,
				"date_accuracy":     p.DateAccuracy,
				"completeness":      p.CompletenessScore,
			}
		case "workflow_planning":
			if res.Metrics.WorkflowScores == nil {
				continue
			}
			w := res.Metrics.WorkflowScores
			series = map[string]float64{
				"sequence_logic":        w.SequenceLogic,
				"dependency_awareness":  w.DependencyAwareness,
				"efficiency":            w.Efficiency,
				"context_usage":         w.ContextUsage,
				"error_anticipation":    w.ErrorAnticipation,
				"workflow_completeness": w.Completeness,
			}
		default:
			continue
		}
		bucket := buckets[res.Model]
		if bucket == nil {
			bucket = map[string][]float64{}
			buckets[res.Model] = bucket
		}
		for k, v := range series {
			bucket[k] = append(bucket[k], v)
		}
	}

	out := FocusAverages{ModelAverages: map[string]map[string]float64{}}
	for model, series := range buckets {
		avgs := map[string]float64{}
		tests := 0
		for k, vals := range series {
			avgs[k] = mean(vals, 0)
			tests = len(vals)
		}
		avgs["tests"] = float64(tests)
		out.ModelAverages[model] = avgs

		var headline float64
		if focus == "parameter_extraction" {
			headline = avgs["semantic_accuracy"]
		} else {
			headline = (avgs["sequence_logic"] + avgs["dependency_awareness"] + avgs["efficiency"]) / 3.0
		}
		if out.BestModel == "" || headline > out.BestScore ||
			(headline == out.BestScore && model < out.BestModel) {
			out.BestScore = headline
			out.BestModel = model
		}
	}
	return out
}

func mean(vals []float64, empty float64) float64 {
	if len(vals) == 0 {
		return empty
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedStatKeys(stats map[string]ModelStats) []string {
	out := make([]string, 0, len(stats))
	for k := range stats {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func formatIntMap(m map[string]int) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, m[k]))
	}
	return strings.Join(parts, ", ")
}

func formatFloatMap(m map[string]float64) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%.2f", k, m[k]))
	}
	return strings.Join(parts, ", ")
}
