// Package schemas holds the wire-level types shared between the resolution
// engine, the CLI commands, and the report/journal sinks. Internal packages
// exchange these instead of their private types so that every outcome the
// engine produces can be serialized as-is.
package schemas

import (
	"time"
)

// -- Target Description Schemas --

// TargetSpec is the semantic description of a UI control the engine should
// locate. It deliberately carries no selectors: labels, role and tag hints
// are all the caller knows about a framework-rendered control.
type TargetSpec struct {
	// Labels are accepted accessible names / visible labels, in priority
	// order. The first label is used for direct accessibility queries; all
	// of them are matched during scans.
	Labels []string `json:"labels"`
	// Role is the expected accessibility role ("button", "textbox", "link").
	// Empty means any role.
	Role string `json:"role,omitempty"`
	// Tags are the element tags the in-page scan considers. Empty means the
	// scan's default interactive set.
	Tags []string `json:"tags,omitempty"`
	// Substring permits partial text matches in the in-page scan. Exact
	// matches always win over substring matches.
	Substring bool `json:"substring,omitempty"`
	// ClickOnResolve lets the in-page strategies activate the control at
	// resolution time instead of handing coordinates back to the executor.
	ClickOnResolve bool `json:"click_on_resolve,omitempty"`
}

// Describe returns a short human-readable form for logs and reports.
func (t TargetSpec) Describe() string {
	if len(t.Labels) == 0 {
		return "<unnamed " + t.nonEmptyRole() + ">"
	}
	return t.Labels[0]
}

func (t TargetSpec) nonEmptyRole() string {
	if t.Role == "" {
		return "element"
	}
	return t.Role
}

// -- Resolution Schemas --

// StrategyName identifies which resolution strategy produced a result.
type StrategyName string

const (
	StrategyNone      StrategyName = ""
	StrategyAXQuery   StrategyName = "ax-query"
	StrategyAXScan    StrategyName = "ax-scan"
	StrategyDOMScript StrategyName = "dom-script"
	StrategyFrameScan StrategyName = "frame-scan"
)

// ActionMethod records how the executor (or an in-page strategy) performed
// the action.
type ActionMethod string

const (
	MethodNone             ActionMethod = ""
	MethodNativeInvoke     ActionMethod = "native-invoke"
	MethodSyntheticPointer ActionMethod = "synthetic-pointer"
	MethodInPage           ActionMethod = "in-page"
	MethodInsertText       ActionMethod = "insert-text"
	MethodPropertySetter   ActionMethod = "property-setter"
	MethodSyntheticKey     ActionMethod = "synthetic-key"
)

// ActionOutcome is the executor's result for one performed action.
type ActionOutcome struct {
	Success bool         `json:"success"`
	Method  ActionMethod `json:"method"`
	X       float64      `json:"x,omitempty"`
	Y       float64      `json:"y,omitempty"`
	Detail  string       `json:"detail,omitempty"`
}

// -- Run Report Schemas --

// FlowName identifies a composite flow run by the engine.
type FlowName string

const (
	FlowSendMessage        FlowName = "send_message"
	FlowNewChat            FlowName = "new_chat"
	FlowDeleteConversation FlowName = "delete_conversation"
	FlowVerifyReady        FlowName = "verify_ready"
	FlowClick              FlowName = "click"
)

// RunReport is the terminal result of one engine run: which flow ran
// against which target, how many attempts it took, and what won.
type RunReport struct {
	RunID     string         `json:"run_id"`
	Flow      FlowName       `json:"flow"`
	Target    string         `json:"target"`
	PageURL   string         `json:"page_url,omitempty"`
	StartedAt time.Time      `json:"started_at"`
	Elapsed   time.Duration  `json:"elapsed"`
	Attempts  int            `json:"attempts"`
	Success   bool           `json:"success"`
	Strategy  StrategyName   `json:"strategy,omitempty"`
	Outcome   *ActionOutcome `json:"outcome,omitempty"`
	Verified  bool           `json:"verified"`
	Error     string         `json:"error,omitempty"`
}
