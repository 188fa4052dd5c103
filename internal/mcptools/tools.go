// Package mcptools exposes the scheduler to MCP clients (assistants and
// editors) as a small set of tools over the same controller the HTTP API
// uses.
package mcptools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fpang/autopost/internal/scheduler"
	"github.com/fpang/autopost/internal/store"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ErrPendingNotFound is returned by approve and reject for unknown ids.
var ErrPendingNotFound = errors.New("pending post not found")

const defaultHistoryLimit = 20

// Trigger starts ticks and reports the next fire time.
type Trigger interface {
	TriggerNow() bool
	NextRun() *time.Time
}

// Approver acts on the approval queue.
type Approver interface {
	Approve(ctx context.Context, id string) (bool, error)
	Reject(ctx context.Context, id string) (bool, error)
}

// Reporter builds the status report.
type Reporter interface {
	Report(ctx context.Context, nextRun *time.Time) scheduler.Report
}

// Deps are the backends the tools call.
type Deps struct {
	Store    *store.Store
	Trigger  Trigger
	Approver Approver
	Status   Reporter
}

// NewServer returns an MCP server with every tool registered.
func NewServer(version string, d Deps) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "autopost", Version: version}, nil)
	t := &tools{d}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "schedule_status",
		Description: "Next scheduled run and pre-flight checks (schedule, folder, fresh photos, public URL, token).",
	}, t.scheduleStatus)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "run_now",
		Description: "Start one posting run immediately. Results appear in the history.",
	}, t.runNow)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_pending",
		Description: "List posts waiting for approval.",
	}, t.listPending)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "approve_pending",
		Description: "Publish a pending post by id.",
	}, t.approvePending)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "reject_pending",
		Description: "Discard a pending post by id without publishing.",
	}, t.rejectPending)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_history",
		Description: "List recent publish attempts, newest first.",
	}, t.listHistory)
	return server
}

type tools struct {
	Deps
}

// --- inputs and outputs ---

type noInput struct{}

type idInput struct {
	ID string `json:"id" jsonschema:"the pending post id, e.g. pp-V1StGXR8_Z5jdHi6B-myT"`
}

type historyInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum entries to return (default 20)"`
}

type runNowOutput struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

type pendingOutput struct {
	Pending []store.PendingPost `json:"pending"`
}

type actionOutput struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
}

type historyOutput struct {
	History []store.HistoryEntry `json:"history"`
	Total   int                  `json:"total"`
}

// --- handlers ---

// Outputs holding timestamps are typed any: no output schema is inferred.

func (t *tools) scheduleStatus(ctx context.Context, _ *mcp.CallToolRequest, _ noInput) (*mcp.CallToolResult, any, error) {
	return nil, t.Status.Report(ctx, t.Trigger.NextRun()), nil
}

func (t *tools) runNow(ctx context.Context, _ *mcp.CallToolRequest, _ noInput) (*mcp.CallToolResult, runNowOutput, error) {
	if !t.Trigger.TriggerNow() {
		return nil, runNowOutput{Message: "A run is already in progress"}, nil
	}
	return nil, runNowOutput{Started: true, Message: "Job triggered, check history in ~30s"}, nil
}

func (t *tools) listPending(ctx context.Context, _ *mcp.CallToolRequest, _ noInput) (*mcp.CallToolResult, any, error) {
	return nil, pendingOutput{Pending: t.Store.LoadPending(ctx).Value}, nil
}

func (t *tools) approvePending(ctx context.Context, _ *mcp.CallToolRequest, in idInput) (*mcp.CallToolResult, actionOutput, error) {
	found, err := t.Approver.Approve(ctx, in.ID)
	if err != nil {
		return nil, actionOutput{}, fmt.Errorf("approve %s: %w", in.ID, err)
	}
	if !found {
		return nil, actionOutput{}, fmt.Errorf("approve %s: %w", in.ID, ErrPendingNotFound)
	}
	return nil, actionOutput{ID: in.ID, Success: true}, nil
}

func (t *tools) rejectPending(ctx context.Context, _ *mcp.CallToolRequest, in idInput) (*mcp.CallToolResult, actionOutput, error) {
	found, err := t.Approver.Reject(ctx, in.ID)
	if err != nil {
		return nil, actionOutput{}, fmt.Errorf("reject %s: %w", in.ID, err)
	}
	if !found {
		return nil, actionOutput{}, fmt.Errorf("reject %s: %w", in.ID, ErrPendingNotFound)
	}
	return nil, actionOutput{ID: in.ID, Success: true}, nil
}

func (t *tools) listHistory(ctx context.Context, _ *mcp.CallToolRequest, in historyInput) (*mcp.CallToolResult, any, error) {
	history := t.Store.LoadHistory(ctx).Value
	limit := in.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	out := historyOutput{History: history, Total: len(history)}
	if len(history) > limit {
		out.History = history[:limit]
	}
	return nil, out, nil
}
