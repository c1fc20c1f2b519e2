package authz

import (
	"context"
	"fmt"
	"os"

	"github.com/open-policy-agent/opa/v1/rego"
)

const policyQuery = "data.sessiongate.authz.allow"

// Default Rego policy: admins may do anything, /v1/admin requires the admin
// role, and any other authenticated principal is allowed through.
const defaultRegoPolicy = `package sessiongate.authz

import rego.v1

default allow := false

allow if {
	"admin" in input.roles
}

allow if {
	not startswith(input.path, "/v1/admin")
	input.subject != ""
}
`

// Input is the decision input for a single request.
type Input struct {
	Subject string   `json:"subject"`
	Roles   []string `json:"roles"`
	Method  string   `json:"method"`
	Path    string   `json:"path"`
}

// Evaluator answers allow/deny for authenticated requests using OPA Rego.
// The policy is compiled once at construction.
type Evaluator struct {
	query rego.PreparedEvalQuery
}

// New compiles the default policy.
func New(ctx context.Context) (*Evaluator, error) {
	return NewWithPolicy(ctx, defaultRegoPolicy)
}

// NewFromFile compiles a policy loaded from path, falling back to the default
// policy when path is empty.
func NewFromFile(ctx context.Context, path string) (*Evaluator, error) {
	if path == "" {
		return New(ctx)
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy %s: %w", path, err)
	}
	return NewWithPolicy(ctx, string(src))
}

// NewWithPolicy compiles the given Rego module. The module must define
// data.sessiongate.authz.allow.
func NewWithPolicy(ctx context.Context, policy string) (*Evaluator, error) {
	query, err := rego.New(
		rego.Query(policyQuery),
		rego.Module("authz.rego", policy),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile authz policy: %w", err)
	}
	return &Evaluator{query: query}, nil
}

// Allow evaluates the policy for the given input. A policy that returns no
// result denies.
func (e *Evaluator) Allow(ctx context.Context, in Input) (bool, error) {
	rs, err := e.query.Eval(ctx, rego.EvalInput(in))
	if err != nil {
		return false, fmt.Errorf("eval authz policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, nil
	}
	allowed, ok := rs[0].Expressions[0].Value.(bool)
	if !ok {
		return false, nil
	}
	return allowed, nil
}
