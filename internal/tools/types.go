// Package tools provides the catalog of daemon tools exposed to coding
// agents over the tool protocol (C19's Tool Dispatcher routes by name into
// this registry).
//
// Each tool wraps one component operation (indexing, retrieval, planning,
// execution, review, memory) behind a uniform name/schema/execute shape, so
// the dispatcher can validate arguments and invoke any of them identically.
//
// Architecture:
//
//	Tool name → Registry.Get() → schema validation → Tool.Execute()
package tools

import (
	"context"
)

// ToolCategory groups tools by the subsystem they front, matching the
// component groupings in the system overview.
type ToolCategory string

const (
	// CategoryIndexing covers index_workspace, index_status, reindex_workspace,
	// clear_index, tool_manifest.
	CategoryIndexing ToolCategory = "/indexing"

	// CategoryRetrieval covers codebase_retrieval, semantic_search, get_file,
	// get_context_for_prompt, enhance_prompt.
	CategoryRetrieval ToolCategory = "/retrieval"

	// CategoryPlanning covers create_plan, refine_plan, visualize_plan,
	// save_plan, load_plan, list_plans, delete_plan, view_history,
	// compare_plan_versions, rollback_plan.
	CategoryPlanning ToolCategory = "/planning"

	// CategoryExecution covers execute_plan, request_approval,
	// respond_approval, start_step, complete_step, fail_step, view_progress.
	CategoryExecution ToolCategory = "/execution"

	// CategoryReview covers review_changes, review_git_diff, review_diff,
	// review_auto, check_invariants, run_static_analysis, scrub_secrets,
	// validate_content.
	CategoryReview ToolCategory = "/review"

	// CategoryReactive covers reactive_review_pr, get_review_status,
	// pause_review, resume_review, get_review_telemetry.
	CategoryReactive ToolCategory = "/reactive"

	// CategoryMemory covers add_memory, list_memories.
	CategoryMemory ToolCategory = "/memory"

	// CategoryGeneral is for tools usable across every category.
	CategoryGeneral ToolCategory = "/general"
)

// Property describes a single parameter property for JSON schema.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Default     any    `json:"default,omitempty"`
	Enum        []any  `json:"enum,omitempty"`
	// Items describes array element schema (required for type="array")
	Items *PropertyItems `json:"items,omitempty"`
}

// PropertyItems describes the schema for array elements.
type PropertyItems struct {
	Type string `json:"type"`
}

// ToolSchema defines the JSON schema for tool arguments.
// This enables LLM tool calling with proper validation.
type ToolSchema struct {
	// Required lists parameters that must be provided.
	Required []string `json:"required"`

	// Properties describes each parameter.
	Properties map[string]Property `json:"properties"`
}

// ExecuteFunc is the signature for tool execution.
// Returns the result string and any error.
type ExecuteFunc func(ctx context.Context, args map[string]any) (string, error)

// Tool defines one named, schema-validated operation exposed over the tool
// protocol. Tools are registered in the Registry and dispatched by name.
type Tool struct {
	// Name is the unique identifier for the tool, as listed in the tool
	// catalog (e.g. "semantic_search", "create_plan", "review_diff").
	Name string

	// Description explains what the tool does.
	// Used for LLM tool calling and documentation.
	Description string

	// Category classifies the tool for intent filtering.
	Category ToolCategory

	// Execute runs the tool with the given arguments.
	Execute ExecuteFunc

	// Schema defines the expected arguments.
	Schema ToolSchema

	// Priority is used when multiple tools match.
	// Higher priority tools are preferred (default 50).
	Priority int

	// RequiresContext indicates if the tool needs session context.
	RequiresContext bool
}

// Validate checks if the tool definition is valid.
func (t *Tool) Validate() error {
	if t.Name == "" {
		return ErrToolNameEmpty
	}
	if t.Execute == nil {
		return ErrToolExecuteNil
	}
	return nil
}

// WithPriority returns a copy of the tool with the given priority.
func (t *Tool) WithPriority(priority int) *Tool {
	copy := *t
	copy.Priority = priority
	return &copy
}

// ToolResult wraps the result of tool execution with metadata.
type ToolResult struct {
	// ToolName identifies which tool was executed.
	ToolName string

	// Result is the string output from the tool.
	Result string

	// Error is set if the tool failed.
	Error error

	// DurationMs is how long execution took.
	DurationMs int64
}

// IsSuccess returns true if the tool executed without error.
func (r *ToolResult) IsSuccess() bool {
	return r.Error == nil
}
