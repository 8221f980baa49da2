package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/druginfo/internal/core/domain"
)

const (
	// uriScheme is the custom URI scheme for druginfo resources.
	uriScheme = "druginfo://"

	// productResourceLimit caps the chunks returned for one product.
	productResourceLimit = 20
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "products/{name}",
		Name:        "product-label",
		Description: "Stored label passages of a drug product, matched by name",
		MIMEType:    "application/json",
	}, s.handleProductResource)
}

// handleProductResource returns stored chunks whose product name contains
// the requested name.
func (s *Server) handleProductResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Products == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	name := extractProductName(req.Params.URI)
	if name == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	docs, err := s.ports.Products.FindByProduct(ctx, name, productResourceLimit)
	if err != nil && !errors.Is(err, domain.ErrNoResults) {
		return nil, fmt.Errorf("finding product %q: %w", name, err)
	}
	if len(docs) == 0 {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	type passage struct {
		ID       int64             `json:"id"`
		Product  string            `json:"product_name"`
		Content  string            `json:"content"`
		Metadata map[string]string `json:"metadata"`
	}

	passages := make([]passage, len(docs))
	for i := range docs {
		passages[i] = passage{
			ID:       docs[i].ID,
			Product:  docs[i].ProductName(),
			Content:  docs[i].Content,
			Metadata: docs[i].Metadata,
		}
	}

	data, err := json.MarshalIndent(passages, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling passages: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractProductName extracts the product name from a URI like
// druginfo://products/{name}. The name may be percent-encoded.
func extractProductName(uri string) string {
	const prefix = uriScheme + "products/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	name := strings.TrimPrefix(uri, prefix)
	if decoded, err := url.PathUnescape(name); err == nil {
		name = decoded
	}
	return strings.TrimSpace(name)
}
