package main

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"eyecare-intake/internal/consultation"
)

func newMCPCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the interview as MCP tools over stdio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := wireApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()
			return server.ServeStdio(newMCPServer(a.service, a.questionnaire))
		},
	}
}

func newMCPServer(svc consultation.Service, questionnaire *consultation.Questionnaire) *server.MCPServer {
	s := server.NewMCPServer("eyecare-intake", version, server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool("start_intake",
		mcp.WithDescription("Start an eye-care intake interview from the patient's description of the problem. Returns the session id and the first question."),
		mcp.WithString("condition", mcp.Required(), mcp.Description("The patient's own description of the eye problem")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		condition, err := req.RequireString("condition")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return toolResult(svc.Start(ctx, condition))
	})

	s.AddTool(mcp.NewTool("answer_intake",
		mcp.WithDescription("Answer the pending question of an intake session. Returns the next question, or the recommendation and summary once the interview is complete."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id returned by start_intake")),
		mcp.WithString("answer", mcp.Required(), mcp.Description("An option text or a free-text answer")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("session_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		answer, err := req.RequireString("answer")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return toolResult(svc.SubmitAnswer(ctx, id, answer))
	})

	s.AddTool(mcp.NewTool("get_intake",
		mcp.WithDescription("Fetch the current state of an intake session."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id returned by start_intake")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("session_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return toolResult(svc.Get(ctx, id))
	})

	if questionnaire != nil {
		s.AddTool(mcp.NewTool("generate_questionnaire",
			mcp.WithDescription("Generate three to five multiple-choice follow-up questions for an eye complaint in one call, without starting a session."),
			mcp.WithString("condition", mcp.Required(), mcp.Description("The patient's own description of the eye problem")),
		), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			condition, err := req.RequireString("condition")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return toolResult(questionnaire.Questions(ctx, condition))
		})
	}

	return s
}

// toolResult reports domain errors to the model as tool errors rather than
// protocol failures.
func toolResult[T any](v T, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(b)), nil
}
