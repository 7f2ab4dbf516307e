// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scenario

import "github.com/AleutianAI/AleutianBench/services/eval/toolcall"

// Builtin returns the default scenario suite used when no fixture
// directory is supplied: simple CRUD prompts, parameter-extraction
// probes, multi-step workflow plans, and decomposition scenarios
// tagged for pipeline evaluation.
//
// The returned slice is freshly allocated on every call so callers
// may filter it without affecting later runs.
func Builtin() []Scenario {
	return []Scenario{
		{
			Name:          "create_simple",
			Prompt:        "Add a todo item: 'Buy groceries' with high priority for tomorrow. Use the create_todo tool.",
			ExpectedTools: []string{toolcall.ToolCreateTodo},
			Complexity:    1,
		},
		{
			Name:          "list_simple",
			Prompt:        "Show me all my pending todos. Use the list_todos tool.",
			ExpectedTools: []string{toolcall.ToolListTodos},
			Complexity:    1,
		},
		{
			Name:          "update_with_context",
			Prompt:        "Mark the grocery shopping task as completed. Use the update_todo tool with the correct ID.",
			ExpectedTools: []string{toolcall.ToolUpdateTodo},
			Complexity:    2,
			Setup: Setup{
				CreateTodos: []map[string]toolcall.Value{
					{
						"title":    toolcall.String("Buy groceries"),
						"priority": toolcall.String("high"),
						"notes":    toolcall.String("Grocery shopping task"),
					},
				},
			},
		},
		{
			Name:   "workflow_multiple",
			Prompt: "Create 3 todos: 'Buy groceries' (high priority), 'Call dentist' (medium), and 'Read book' (low priority). Then show me what's due today and mark the grocery task as completed.",
			ExpectedTools: []string{
				toolcall.ToolCreateTodo, toolcall.ToolCreateTodo, toolcall.ToolCreateTodo,
				toolcall.ToolListTodos, toolcall.ToolUpdateTodo,
			},
			Complexity: 3,
		},
		{
			Name:   "workflow_complex",
			Prompt: "Add a todo for 'Team meeting' scheduled for tomorrow, then list all my high priority tasks, and update the meeting's notes to include 'Prepare quarterly report'.",
			ExpectedTools: []string{
				toolcall.ToolCreateTodo, toolcall.ToolListTodos, toolcall.ToolUpdateTodo,
			},
			Complexity: 4,
		},
		{
			Name:          "edge_case_boolean",
			Prompt:        "Create a todo 'Test task' and immediately mark it completed using the update_todo tool.",
			ExpectedTools: []string{toolcall.ToolCreateTodo, toolcall.ToolUpdateTodo},
			Complexity:    2,
		},
		{
			Name:          "edge_case_null_date",
			Prompt:        "Create a todo 'Unscheduled task' with no specific date (null scheduledFor) and low priority.",
			ExpectedTools: []string{toolcall.ToolCreateTodo},
			Complexity:    2,
		},
		{
			Name:   "precision_test",
			Prompt: "Create todo 'Precise test' scheduled for exactly 2025-08-07 with medium priority, then get that specific todo by its ID, then delete it.",
			ExpectedTools: []string{
				toolcall.ToolCreateTodo, toolcall.ToolGetTodo, toolcall.ToolDeleteTodo,
			},
			Complexity: 3,
		},

		// Parameter-extraction probes: score how faithfully argument
		// values are pulled out of the prompt.
		{
			Name:          "extraction_simple",
			Prompt:        "Add a todo item: 'Buy groceries' with high priority for tomorrow.",
			ExpectedTools: []string{toolcall.ToolCreateTodo},
			ExpectedParameters: &ExpectedParameters{Flat: map[string]toolcall.Value{
				"title":        toolcall.String("Buy groceries"),
				"priority":     toolcall.String("high"),
				"scheduledFor": toolcall.String("tomorrow"),
			}},
			Complexity:      2,
			EvaluationFocus: "parameter_extraction",
		},
		{
			Name:          "extraction_inference",
			Prompt:        "I need to schedule an urgent meeting with the client for next week.",
			ExpectedTools: []string{toolcall.ToolCreateTodo},
			ExpectedParameters: &ExpectedParameters{Flat: map[string]toolcall.Value{
				"title":    toolcall.String("meeting with client"),
				"priority": toolcall.String("high"), // inferred from "urgent"
			}},
			Complexity:      3,
			EvaluationFocus: "parameter_extraction",
		},
		{
			Name:          "extraction_mixed_format",
			Prompt:        "Create a low-priority reminder to 'Call mom' sometime this week, and add notes that it's for her birthday planning.",
			ExpectedTools: []string{toolcall.ToolCreateTodo},
			ExpectedParameters: &ExpectedParameters{Flat: map[string]toolcall.Value{
				"title":    toolcall.String("Call mom"),
				"priority": toolcall.String("low"),
				"notes":    toolcall.String("birthday planning"),
			}},
			Complexity:      3,
			EvaluationFocus: "parameter_extraction",
		},
		{
			Name:          "extraction_implicit_date",
			Prompt:        "Add 'Submit project report' - it's due on August 7th, 2025, so it's quite important.",
			ExpectedTools: []string{toolcall.ToolCreateTodo},
			ExpectedParameters: &ExpectedParameters{Flat: map[string]toolcall.Value{
				"title":        toolcall.String("Submit project report"),
				"scheduledFor": toolcall.String("2025-08-07"),
				"priority":     toolcall.String("high"), // inferred from "quite important"
			}},
			Complexity:      4,
			EvaluationFocus: "parameter_extraction",
		},

		// Workflow-planning scenarios: score ordering, dependency
		// awareness, and efficiency of multi-step plans.
		{
			Name:          "workflow_create_update_sequence",
			Prompt:        "Create a todo 'Review documents', then immediately mark it as completed. Make sure to use the correct ID.",
			ExpectedTools: []string{toolcall.ToolCreateTodo, toolcall.ToolUpdateTodo},
			WorkflowExpectations: &WorkflowExpectations{
				LogicalOrder: []string{toolcall.ToolCreateTodo, toolcall.ToolUpdateTodo},
				Dependencies: []Dependency{
					{Prerequisite: toolcall.ToolCreateTodo, Dependent: toolcall.ToolUpdateTodo, Requirement: "parameter_usage"},
				},
				MinimalSteps: 2,
				ContextRequirements: []ContextRequirement{
					{Source: toolcall.ToolCreateTodo, Target: toolcall.ToolUpdateTodo, Parameter: "id"},
				},
				RequiredOperations: []string{toolcall.ToolCreateTodo, toolcall.ToolUpdateTodo},
			},
			Complexity:      3,
			EvaluationFocus: "workflow_planning",
		},
		{
			Name:          "workflow_list_then_update",
			Prompt:        "Show me all pending todos, then mark the first one you find as high priority.",
			ExpectedTools: []string{toolcall.ToolListTodos, toolcall.ToolUpdateTodo},
			WorkflowExpectations: &WorkflowExpectations{
				LogicalOrder: []string{toolcall.ToolListTodos, toolcall.ToolUpdateTodo},
				Dependencies: []Dependency{
					{Prerequisite: toolcall.ToolListTodos, Dependent: toolcall.ToolUpdateTodo, Requirement: "order"},
				},
				MinimalSteps:       2,
				ErrorScenarios:     []string{"check_existence_before_update"},
				RequiredOperations: []string{toolcall.ToolListTodos, toolcall.ToolUpdateTodo},
			},
			Complexity:      3,
			EvaluationFocus: "workflow_planning",
		},
		{
			Name:   "workflow_complex_planning",
			Prompt: "Create three todos: 'Morning run' (high priority, tomorrow), 'Buy coffee' (medium priority), and 'Review emails' (low priority, today). Then show me only the high priority ones, and finally delete the coffee todo.",
			ExpectedTools: []string{
				toolcall.ToolCreateTodo, toolcall.ToolCreateTodo, toolcall.ToolCreateTodo,
				toolcall.ToolListTodos, toolcall.ToolDeleteTodo,
			},
			WorkflowExpectations: &WorkflowExpectations{
				LogicalOrder: []string{
					toolcall.ToolCreateTodo, toolcall.ToolCreateTodo, toolcall.ToolCreateTodo,
					toolcall.ToolListTodos, toolcall.ToolDeleteTodo,
				},
				MinimalSteps:       5,
				RequiredOperations: []string{toolcall.ToolCreateTodo, toolcall.ToolListTodos, toolcall.ToolDeleteTodo},
				ErrorScenarios:     []string{"validate_id_before_delete"},
			},
			Complexity:      4,
			EvaluationFocus: "workflow_planning",
		},
		{
			Name:          "workflow_conditional_logic",
			Prompt:        "List all todos first. If there are any pending ones, create a new todo 'Review pending items' with high priority. If not, create 'All caught up!' with low priority.",
			ExpectedTools: []string{toolcall.ToolListTodos, toolcall.ToolCreateTodo},
			WorkflowExpectations: &WorkflowExpectations{
				LogicalOrder: []string{toolcall.ToolListTodos, toolcall.ToolCreateTodo},
				Dependencies: []Dependency{
					{Prerequisite: toolcall.ToolListTodos, Dependent: toolcall.ToolCreateTodo, Requirement: "order"},
				},
				MinimalSteps: 2,
				ContextRequirements: []ContextRequirement{
					{Source: toolcall.ToolListTodos, Target: toolcall.ToolCreateTodo, Parameter: "title"},
				},
				RequiredOperations: []string{toolcall.ToolListTodos, toolcall.ToolCreateTodo},
			},
			Complexity:      4,
			EvaluationFocus: "workflow_planning",
		},

		// Decomposition scenarios tagged for full pipeline evaluation.
		{
			Name:   "decomposition_basic_multi",
			Prompt: "Add 'Buy groceries' (high) for tomorrow and 'Call dentist' (medium). Then show pending and mark groceries done.",
			ExpectedTools: []string{
				toolcall.ToolCreateTodo, toolcall.ToolCreateTodo,
				toolcall.ToolListTodos, toolcall.ToolUpdateTodo,
			},
			Complexity:      3,
			EvaluationFocus: "pipeline",
		},
		{
			Name:            "decomposition_conditional",
			Prompt:          "List todos; if none, create a default 'Starter task' (low); else update first to high priority.",
			ExpectedTools:   []string{toolcall.ToolListTodos, toolcall.ToolCreateTodo},
			Complexity:      3,
			EvaluationFocus: "pipeline",
		},
		{
			Name:            "decomposition_cleanup",
			Prompt:          "Create a todo 'Temp note', then delete it.",
			ExpectedTools:   []string{toolcall.ToolCreateTodo, toolcall.ToolDeleteTodo},
			Complexity:      2,
			EvaluationFocus: "pipeline",
		},
		{
			Name:            "filter_high_priority_week",
			Prompt:          "Show high-priority pending tasks scheduled this week.",
			ExpectedTools:   []string{toolcall.ToolListTodos},
			Complexity:      2,
			EvaluationFocus: "pipeline",
		},
		{
			Name:          "search_and_update",
			Prompt:        "Search for any task about dentist and then mark it completed.",
			ExpectedTools: []string{toolcall.ToolSearchTodos, toolcall.ToolUpdateTodo},
			Complexity:    3,
			Setup: Setup{
				CreateTodos: []map[string]toolcall.Value{
					{
						"title":    toolcall.String("Call dentist"),
						"notes":    toolcall.String("schedule appointment"),
						"priority": toolcall.String("medium"),
					},
					{
						"title":    toolcall.String("Buy groceries"),
						"notes":    toolcall.String("milk and eggs"),
						"priority": toolcall.String("low"),
					},
				},
			},
			EvaluationFocus: "pipeline",
		},
	}
}
