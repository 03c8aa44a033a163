package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/odyssey-erp/odyssey-rbac/internal/rbac"
)

// Exit codes returned by CheckCommand.
const (
	CheckExitAllowed = 0
	CheckExitError   = 1
	CheckExitDenied  = 10
)

// ActorSource resolves a user id into an authorization snapshot.
type ActorSource interface {
	LookupActor(ctx context.Context, actorID int64) (rbac.Actor, error)
}

// CheckCLI evaluates a single permission from the command line.
type CheckCLI struct {
	actors    ActorSource
	evaluator *rbac.Evaluator
}

// NewCheckCLI constructs the helper.
func NewCheckCLI(actors ActorSource, evaluator *rbac.Evaluator) (*CheckCLI, error) {
	if actors == nil || evaluator == nil {
		return nil, errors.New("check cli: actors and evaluator are required")
	}
	return &CheckCLI{actors: actors, evaluator: evaluator}, nil
}

// CheckOptions defines available flags for the check command.
type CheckOptions struct {
	UserID     int64
	Codename   string
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// CheckSummary is the JSON form of a decision.
type CheckSummary struct {
	UserID   int64  `json:"user_id"`
	Codename string `json:"codename"`
	Outcome  string `json:"outcome"`
	Allowed  bool   `json:"allowed"`
}

// CheckCommand prints the decision for one user and codename.
func (c *CheckCLI) CheckCommand(ctx context.Context, opts CheckOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.UserID <= 0 {
		_, _ = fmt.Fprintln(opts.Stderr, "check: --user is required and must be positive")
		return CheckExitError
	}
	codename := strings.TrimSpace(opts.Codename)
	if codename == "" {
		_, _ = fmt.Fprintln(opts.Stderr, "check: --perm is required")
		return CheckExitError
	}

	actor, err := c.actors.LookupActor(ctx, opts.UserID)
	if err != nil && !errors.Is(err, rbac.ErrActorNotFound) {
		_, _ = fmt.Fprintf(opts.Stderr, "check: lookup user %d: %v\n", opts.UserID, err)
		return CheckExitError
	}
	decision, err := c.evaluator.Check(ctx, actor, codename)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "check: %v\n", err)
		return CheckExitError
	}

	summary := CheckSummary{UserID: opts.UserID, Codename: codename, Outcome: string(decision.Outcome), Allowed: decision.Allowed()}
	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(summary); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "check: encode json: %v\n", err)
			return CheckExitError
		}
	} else {
		_, _ = fmt.Fprintf(opts.Stdout, "user %d %s: %s\n", summary.UserID, summary.Codename, summary.Outcome)
	}
	if !summary.Allowed {
		return CheckExitDenied
	}
	return CheckExitAllowed
}
