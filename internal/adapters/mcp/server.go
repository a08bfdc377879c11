// Package mcp exposes lore search and answering as MCP tools over stdio.
package mcp

import (
	"errors"

	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/lore-assistant/internal/core/ports"
)

const (
	ServerName = "lore-assistant"
	Version    = "0.1.0"
)

var ErrMissingSearcher = errors.New("mcp: searcher is required")

type Server struct {
	searcher ports.Searcher
	answerer ports.Answerer
	topK     int
	server   *server.MCPServer
}

// NewServer registers search_lore always and ask_lore only when answerer is
// not nil.
func NewServer(searcher ports.Searcher, answerer ports.Answerer, defaultTopK int) (*Server, error) {
	if searcher == nil {
		return nil, ErrMissingSearcher
	}
	if defaultTopK <= 0 {
		defaultTopK = 5
	}
	s := &Server{
		searcher: searcher,
		answerer: answerer,
		topK:     defaultTopK,
		server: server.NewMCPServer(
			ServerName,
			Version,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
	}
	s.registerTools()
	return s, nil
}

// ServeStdio blocks until stdin closes or the process receives a signal.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.server)
}
