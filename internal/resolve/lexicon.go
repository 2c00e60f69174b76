// File: internal/resolve/lexicon.go

package resolve

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/xkilldash9x/pagepilot/api/schemas"
	"github.com/xkilldash9x/pagepilot/internal/config"
)

// Action names a semantic UI intent the lexicon can label.
type Action string

const (
	ActionSend    Action = "send"
	ActionDelete  Action = "delete"
	ActionMore    Action = "more"
	ActionConfirm Action = "confirm"
	ActionNewChat Action = "newchat"
)

// Built-in labels cover the Chinese and English chat surfaces this tool
// grew up on, highest-priority first.
var builtinLabels = map[Action][]string{
	ActionSend:    {"发送", "Send", "Send message", "Submit"},
	ActionDelete:  {"删除", "删除对话", "Delete", "Delete conversation", "Remove"},
	ActionMore:    {"更多", "更多操作", "More", "More options", "···"},
	ActionConfirm: {"确认", "确定", "Confirm", "OK", "Yes"},
	ActionNewChat: {"新对话", "新建对话", "开启新对话", "New chat", "New conversation"},
}

// Placeholder fragments that mark a chat input, matched case-insensitively.
var builtinPlaceholderPatterns = []string{
	`输入`,
	`消息`,
	`发消息`,
	`问我`,
	`message`,
	`ask`,
	`send a`,
	`type`,
}

// Lexicon maps semantic actions to accepted UI labels in priority order.
// Configuration appends to the built-ins, never replaces them.
type Lexicon struct {
	labels       map[Action][]string
	placeholders []*regexp.Regexp
}

// NewLexicon merges the built-in vocabulary with configured extras.
// Placeholder patterns are regular expressions compiled case-insensitive;
// a bad pattern fails construction.
func NewLexicon(cfg config.LexiconConfig) (*Lexicon, error) {
	l := &Lexicon{labels: make(map[Action][]string, len(builtinLabels))}
	for action, labels := range builtinLabels {
		l.labels[action] = append([]string(nil), labels...)
	}
	for action, extra := range cfg.ExtraLabels {
		a := Action(action)
		l.labels[a] = append(l.labels[a], extra...)
	}

	patterns := append([]string(nil), builtinPlaceholderPatterns...)
	patterns = append(patterns, cfg.PlaceholderPatterns...)
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("lexicon: bad placeholder pattern %q: %w", p, err)
		}
		l.placeholders = append(l.placeholders, re)
	}
	return l, nil
}

// Labels returns the label list for an action, copied so callers cannot
// mutate the lexicon.
func (l *Lexicon) Labels(a Action) []string {
	return append([]string(nil), l.labels[a]...)
}

// MatchesLabel reports whether text names the action. Latin labels match
// on trimmed case-insensitive equality; any label also matches by
// containment, which covers buttons that decorate the label with icons
// or counts.
func (l *Lexicon) MatchesLabel(a Action, text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	for _, label := range l.labels[a] {
		if strings.EqualFold(trimmed, label) || strings.Contains(trimmed, label) {
			return true
		}
	}
	return false
}

// MatchesPlaceholder reports whether a placeholder string marks a chat
// input.
func (l *Lexicon) MatchesPlaceholder(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	for _, re := range l.placeholders {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// ButtonSpec builds a target spec for a labelled button-like control.
func (l *Lexicon) ButtonSpec(a Action) schemas.TargetSpec {
	return schemas.TargetSpec{
		Labels:    l.Labels(a),
		Role:      "button",
		Substring: true,
	}
}

// InputSpec builds a target spec for the chat input box. Inputs are
// found structurally rather than by label, so the spec carries editable
// tags and no labels.
func (l *Lexicon) InputSpec() schemas.TargetSpec {
	return schemas.TargetSpec{
		Role: "textbox",
		Tags: []string{"textarea", `[contenteditable="true"]`, `[contenteditable=""]`, `input[type="text"]`},
	}
}
