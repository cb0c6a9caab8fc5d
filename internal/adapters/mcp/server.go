// Package mcpadapter exposes the applicant workflow as MCP tools bound to the
// logged-in session.
package mcpadapter

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/eteeap-applicant-client/internal/core/domain"
	"github.com/kirillkom/eteeap-applicant-client/internal/core/ports"
	"github.com/kirillkom/eteeap-applicant-client/internal/core/usecase"
)

const serverName = "eteeap-applicant"

type Tools struct {
	workflow ports.ApplicantWorkflow
	sessions ports.SessionStore
	logger   *slog.Logger
}

func NewTools(workflow ports.ApplicantWorkflow, sessions ports.SessionStore, logger *slog.Logger) *Tools {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tools{workflow: workflow, sessions: sessions, logger: logger}
}

// NewServer registers every applicant tool on a fresh MCP server.
func NewServer(tools *Tools, version string) *server.MCPServer {
	s := server.NewMCPServer(serverName, version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s.AddTool(mcp.NewTool("list_courses",
		mcp.WithDescription("List the courses an ETEEAP applicant can choose from."),
		mcp.WithReadOnlyHintAnnotation(true),
	), tools.ListCourses)

	s.AddTool(mcp.NewTool("select_course",
		mcp.WithDescription("Save a course as the applicant's 1st, 2nd or 3rd preference."),
		mcp.WithNumber("slot", mcp.Required(), mcp.Description("Preference slot, 1 to 3."), mcp.Min(1), mcp.Max(3)),
		mcp.WithString("course_id", mcp.Required(), mcp.Description("Course id from list_courses.")),
		mcp.WithIdempotentHintAnnotation(true),
	), tools.SelectCourse)

	s.AddTool(mcp.NewTool("track_application",
		mcp.WithDescription("Show application status, course preferences, uploaded and missing documents."),
		mcp.WithReadOnlyHintAnnotation(true),
	), tools.TrackApplication)

	s.AddTool(mcp.NewTool("submit_application",
		mcp.WithDescription("Submit the application. Requires the Informative Copy of TOR; an existing application is never duplicated."),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	), tools.SubmitApplication)

	return s
}

func (t *Tools) ListCourses(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	courses, err := t.workflow.ListCourses(ctx)
	if err != nil {
		return t.failure("list_courses", err), nil
	}
	return jsonResult(map[string]any{"courses": courses})
}

func (t *Tools) SelectCourse(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	session, err := t.session(ctx)
	if err != nil {
		return t.failure("select_course", err), nil
	}
	slot := req.GetInt("slot", 0)
	courseID, err := req.RequireString("course_id")
	if err != nil {
		return mcp.NewToolResultError("course_id is required"), nil
	}

	prefs, err := t.workflow.SelectCourse(ctx, session, slot-1, courseID)
	if err != nil {
		return t.failure("select_course", err), nil
	}
	return jsonResult(map[string]any{
		"preferences": prefs,
		"notice":      usecase.SuccessNotice(usecase.PreferenceSavedMessage),
	})
}

func (t *Tools) TrackApplication(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	session, err := t.session(ctx)
	if err != nil {
		return t.failure("track_application", err), nil
	}
	view, err := t.workflow.Track(ctx, session)
	if err != nil {
		return t.failure("track_application", err), nil
	}
	return jsonResult(view)
}

func (t *Tools) SubmitApplication(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	session, err := t.session(ctx)
	if err != nil {
		return t.failure("submit_application", err), nil
	}
	result, err := t.workflow.Submit(ctx, session)
	if err != nil {
		return t.failure("submit_application", err), nil
	}
	return jsonResult(map[string]any{
		"outcome":     result.Outcome,
		"application": result.Application,
		"notice":      usecase.SubmissionNotice(result),
	})
}

func (t *Tools) session(ctx context.Context) (domain.Session, error) {
	session, err := t.sessions.Load(ctx)
	if err != nil {
		return domain.Session{}, err
	}
	if !session.HasApplicant() {
		return domain.Session{}, domain.ErrNoSession
	}
	return session, nil
}

func (t *Tools) failure(tool string, err error) *mcp.CallToolResult {
	notice := usecase.NoticeFor(err)
	t.logger.Warn("mcp_tool_failed", "tool", tool, "error", err)
	return mcp.NewToolResultError(notice.Message)
}

func jsonResult(payload any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}
