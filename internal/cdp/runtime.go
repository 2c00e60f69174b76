// File: internal/cdp/runtime.go
package cdp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chromedp/cdproto/runtime"
)

// RemoteObject is the slice of Runtime.RemoteObject this client needs.
// Value stays raw until the caller knows what to decode it into.
type RemoteObject struct {
	Type        string                 `json:"type,omitempty"`
	Subtype     string                 `json:"subtype,omitempty"`
	ClassName   string                 `json:"className,omitempty"`
	Value       json.RawMessage        `json:"value,omitempty"`
	Description string                 `json:"description,omitempty"`
	ObjectID    runtime.RemoteObjectID `json:"objectId,omitempty"`
}

// DecodeValue unmarshals a by-value result into out.
func (o *RemoteObject) DecodeValue(out interface{}) error {
	if o == nil || len(o.Value) == 0 {
		return fmt.Errorf("cdp: remote object carries no value")
	}
	return jsonx.Unmarshal(o.Value, out)
}

type exceptionDetails struct {
	Text       string        `json:"text,omitempty"`
	LineNumber int64         `json:"lineNumber,omitempty"`
	Exception  *RemoteObject `json:"exception,omitempty"`
}

func (d *exceptionDetails) message() string {
	if d.Exception != nil && d.Exception.Description != "" {
		return d.Exception.Description
	}
	return d.Text
}

type evaluateParams struct {
	Expression    string                     `json:"expression"`
	ContextID     runtime.ExecutionContextID `json:"contextId,omitempty"`
	ReturnByValue bool                       `json:"returnByValue,omitempty"`
	AwaitPromise  bool                       `json:"awaitPromise,omitempty"`
}

type evaluateResult struct {
	Result           *RemoteObject     `json:"result,omitempty"`
	ExceptionDetails *exceptionDetails `json:"exceptionDetails,omitempty"`
}

// Evaluate runs an expression in the page's main world and returns its
// by-value result. A thrown exception comes back as an error, not a
// result.
func (c *Client) Evaluate(ctx context.Context, expression string) (*RemoteObject, error) {
	return c.evaluate(ctx, evaluateParams{
		Expression:    expression,
		ReturnByValue: true,
		AwaitPromise:  true,
	})
}

// EvaluateInContext runs an expression inside a specific execution
// context, typically an isolated world created for one frame.
func (c *Client) EvaluateInContext(ctx context.Context, contextID runtime.ExecutionContextID, expression string) (*RemoteObject, error) {
	return c.evaluate(ctx, evaluateParams{
		Expression:    expression,
		ContextID:     contextID,
		ReturnByValue: true,
		AwaitPromise:  true,
	})
}

// EvaluateHandle runs an expression in the main world and returns a live
// handle to its result instead of a by-value copy. The caller owns the
// handle and should release it when done.
func (c *Client) EvaluateHandle(ctx context.Context, expression string) (*RemoteObject, error) {
	return c.evaluate(ctx, evaluateParams{
		Expression:   expression,
		AwaitPromise: true,
	})
}

// EvaluateHandleInContext is EvaluateHandle scoped to one execution
// context.
func (c *Client) EvaluateHandleInContext(ctx context.Context, contextID runtime.ExecutionContextID, expression string) (*RemoteObject, error) {
	return c.evaluate(ctx, evaluateParams{
		Expression:   expression,
		ContextID:    contextID,
		AwaitPromise: true,
	})
}

func (c *Client) evaluate(ctx context.Context, params evaluateParams) (*RemoteObject, error) {
	var res evaluateResult
	if err := c.Call(ctx, "Runtime.evaluate", params, &res); err != nil {
		return nil, err
	}
	if res.ExceptionDetails != nil {
		return nil, fmt.Errorf("cdp: script threw: %s", res.ExceptionDetails.message())
	}
	return res.Result, nil
}

type callArgument struct {
	Value json.RawMessage `json:"value,omitempty"`
}

type callFunctionOnParams struct {
	FunctionDeclaration string                 `json:"functionDeclaration"`
	ObjectID            runtime.RemoteObjectID `json:"objectId,omitempty"`
	Arguments           []callArgument         `json:"arguments,omitempty"`
	ReturnByValue       bool                   `json:"returnByValue,omitempty"`
	AwaitPromise        bool                   `json:"awaitPromise,omitempty"`
}

// CallFunctionOn invokes a function with `this` bound to the live object
// behind objectID. Arguments are passed by value.
func (c *Client) CallFunctionOn(ctx context.Context, objectID runtime.RemoteObjectID, declaration string, args ...interface{}) (*RemoteObject, error) {
	params := callFunctionOnParams{
		FunctionDeclaration: declaration,
		ObjectID:            objectID,
		ReturnByValue:       true,
		AwaitPromise:        true,
	}
	for _, a := range args {
		b, err := jsonx.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("cdp: marshal call argument: %w", err)
		}
		params.Arguments = append(params.Arguments, callArgument{Value: b})
	}

	var res evaluateResult
	if err := c.Call(ctx, "Runtime.callFunctionOn", params, &res); err != nil {
		return nil, err
	}
	if res.ExceptionDetails != nil {
		return nil, fmt.Errorf("cdp: script threw: %s", res.ExceptionDetails.message())
	}
	return res.Result, nil
}

// ReleaseObject frees a remote handle once the current attempt is done
// with it. Failures are not fatal to the caller and can be ignored.
func (c *Client) ReleaseObject(ctx context.Context, objectID runtime.RemoteObjectID) error {
	return c.Call(ctx, "Runtime.releaseObject", map[string]interface{}{"objectId": objectID}, nil)
}
