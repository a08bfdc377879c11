package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kirillkom/lore-assistant/internal/core/domain"
)

type SearchResultOutput struct {
	WikiID  string  `json:"wiki_id"`
	Title   string  `json:"title"`
	Chunk   int     `json:"chunk"`
	Score   float64 `json:"score"`
	Content string  `json:"content"`
}

type SearchOutput struct {
	Results []SearchResultOutput `json:"results"`
	Count   int                  `json:"count"`
}

func (s *Server) registerTools() {
	s.server.AddTool(mcp.NewTool("search_lore",
		mcp.WithDescription("Semantic search over the indexed S.T.A.L.K.E.R. wiki"),
		mcp.WithString("query", mcp.Required(), mcp.Description("search query")),
		mcp.WithNumber("top_k", mcp.Description("maximum number of results")),
	), s.handleSearch)

	if s.answerer == nil {
		return
	}
	roles := make([]string, 0, len(domain.KnownRoles()))
	for _, role := range domain.KnownRoles() {
		roles = append(roles, string(role))
	}
	s.server.AddTool(mcp.NewTool("ask_lore",
		mcp.WithDescription("Answer a question about the game world using retrieved wiki passages"),
		mcp.WithString("question", mcp.Required(), mcp.Description("question to answer")),
		mcp.WithString("role", mcp.Enum(roles...), mcp.Description("persona of the answer")),
	), s.handleAsk)
}

func (s *Server) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	topK := request.GetInt("top_k", s.topK)

	results, err := s.searcher.Search(ctx, query, topK)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	output := SearchOutput{
		Results: make([]SearchResultOutput, len(results)),
		Count:   len(results),
	}
	for i := range results {
		output.Results[i] = SearchResultOutput{
			WikiID:  results[i].Payload.Metadata.WikiID.String(),
			Title:   results[i].Payload.Metadata.Title,
			Chunk:   results[i].Payload.Metadata.Chunk,
			Score:   results[i].Score,
			Content: results[i].Payload.Content,
		}
	}
	return jsonResult(output)
}

func (s *Server) handleAsk(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	role, err := domain.ParseRole(request.GetString("role", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	answer := s.answerer.GenerateAnswer(ctx, question, role)
	if answer.Degraded {
		return mcp.NewToolResultError("no answer could be generated: " + answer.Reason), nil
	}
	return mcp.NewToolResultText(answer.Text), nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}
