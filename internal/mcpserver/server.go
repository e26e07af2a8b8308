// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes slide search tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/churryboy/ppt/internal/apperr"
	"github.com/churryboy/ppt/internal/ingest"
	"github.com/churryboy/ppt/internal/models"
	"github.com/churryboy/ppt/internal/search"
)

const (
	rankingURI   = "ppt://ranking-model"
	defaultLimit = 20
	maxLimit     = 200
)

// Searcher runs ranked queries over slides and archives.
type Searcher interface {
	Query(ctx context.Context, text string, limit int) ([]search.Result, error)
	QueryArchive(ctx context.Context, text string, limit int) ([]search.ArchiveResult, error)
}

// Decks reads the deck catalog.
type Decks interface {
	List(ctx context.Context, limit, offset int) ([]models.Deck, int, error)
	Get(ctx context.Context, id string) (*ingest.DeckDetail, error)
}

// Server wraps the MCP server with slide search tools.
type Server struct {
	mcp    *server.MCPServer
	search Searcher
	decks  Decks
}

// New creates a new MCP server with all tools registered.
func New(searcher Searcher, decks Decks) *Server {
	s := &Server{search: searcher, decks: decks}

	s.mcp = server.NewMCPServer(
		"ppt-search",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_slides",
		mcp.WithDescription("Search slide titles, body text and speaker notes. "+
			"Results are ranked by the weighted model described in the "+
			rankingURI+" resource."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search text, matched case-insensitively as a substring")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 20)")),
	), s.searchSlides)

	s.mcp.AddTool(mcp.NewTool("search_archive",
		mcp.WithDescription("Search archived slides. Archived slides survive deletion of their source deck."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search text")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 20)")),
	), s.searchArchive)

	s.mcp.AddTool(mcp.NewTool("list_decks",
		mcp.WithDescription("List uploaded decks, newest first, with their conversion state."),
		mcp.WithNumber("limit", mcp.Description("Page size (default 20)")),
		mcp.WithNumber("offset", mcp.Description("Number of decks to skip")),
	), s.listDecks)

	s.mcp.AddTool(mcp.NewTool("get_deck",
		mcp.WithDescription("Read one deck with the text layers of every slide."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Deck id as returned by list_decks")),
	), s.getDeck)

	s.mcp.AddTool(mcp.NewTool("get_ranking_model",
		mcp.WithDescription("Returns how search results are scored and ordered."),
	), s.getRankingModel)

	s.mcp.AddResource(
		mcp.NewResource(rankingURI, "Search Ranking Model",
			mcp.WithResourceDescription("Layer weights and ordering rules used by slide search."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readRankingResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) searchSlides(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.search.Query(ctx, query, limitArg(req))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results)
}

func (s *Server) searchArchive(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.search.QueryArchive(ctx, query, limitArg(req))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results)
}

func (s *Server) listDecks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	offset := req.GetInt("offset", 0)
	if offset < 0 {
		return mcp.NewToolResultError("offset must not be negative"), nil
	}
	decks, total, err := s.decks.List(ctx, limitArg(req), offset)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"decks": decks, "total": total})
}

func (s *Server) getDeck(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d, err := s.decks.Get(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("deck not found: %s", id)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(d)
}

func (s *Server) getRankingModel(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(RankingModel), nil
}

func (s *Server) readRankingResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      rankingURI,
			MIMEType: "text/markdown",
			Text:     RankingModel,
		},
	}, nil
}

// limitArg reads the optional limit argument, clamped to [1, maxLimit].
func limitArg(req mcp.CallToolRequest) int {
	n := req.GetInt("limit", defaultLimit)
	switch {
	case n < 1:
		return defaultLimit
	case n > maxLimit:
		return maxLimit
	}
	return n
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}
