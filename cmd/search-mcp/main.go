package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/maltedev/amazon-search-scraper/internal/app"
	"github.com/maltedev/amazon-search-scraper/internal/config"
	"github.com/maltedev/amazon-search-scraper/internal/logging"
	"github.com/maltedev/amazon-search-scraper/internal/models"
	"github.com/maltedev/amazon-search-scraper/internal/scraper"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type toolResult struct {
	Status   string                 `json:"status"`
	Reason   string                 `json:"reason,omitempty"`
	Products []models.ProductRecord `json:"products"`
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// stdout carries the MCP protocol.
	logger := logging.NewWithWriter(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

	if err := run(cfg, logger); err != nil {
		logger.Error("mcp server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	a, err := app.Build(context.Background(), cfg, nil, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize search service: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("failed to release resources", "error", err)
		}
	}()

	return server.ServeStdio(newServer(a.Service))
}

func newServer(svc *scraper.Service) *server.MCPServer {
	s := server.NewMCPServer(
		"amazon-search",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	searchTool := mcp.NewTool("search_products",
		mcp.WithDescription("Search Amazon for a keyword and return the products on the first results page (title, rating, review count, image URL)."),
		mcp.WithString("keyword",
			mcp.Required(),
			mcp.Description("Free-text search keyword, e.g. 'wireless mouse'"),
		),
	)

	s.AddTool(searchTool, handleSearch(svc))
	return s
}

func handleSearch(svc *scraper.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		keyword, err := request.RequireString("keyword")
		if err != nil {
			return mcp.NewToolResultError("keyword is required"), nil
		}

		outcome, err := svc.Search(ctx, keyword)
		if err != nil {
			if errors.Is(err, scraper.ErrEmptyKeyword) {
				return mcp.NewToolResultError("keyword is required"), nil
			}
			return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
		}

		data, err := json.MarshalIndent(toolResult{
			Status:   outcome.Status(),
			Reason:   outcome.Reason,
			Products: outcome.Products,
		}, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to encode results: %v", err)), nil
		}

		return mcp.NewToolResultText(string(data)), nil
	}
}
