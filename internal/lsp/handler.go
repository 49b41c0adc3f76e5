package lsp

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

var log = commonlog.GetLogger("gneiss.lsp")

// Define the set of supported semantic token types (indices are part of the protocol legend)
var SemanticTokenTypes = []string{
	"keyword",
	"type",
	"function",
	"variable",
	"label",
	"number",
	"string",
	"comment",
	"macro",
}

// Define the set of supported semantic token modifiers
var SemanticTokenModifiers = []string{
	"declaration",
	"instrumentation",
}

// GneissHandler implements the LSP server handlers for .ll documents
type GneissHandler struct {
	mu       sync.RWMutex
	content  map[string]string
	analyses map[string]*Analysis
}

// NewGneissHandler creates and returns a new GneissHandler instance
func NewGneissHandler() *GneissHandler {
	return &GneissHandler{
		content:  make(map[string]string),
		analyses: make(map[string]*Analysis),
	}
}

// Initialize responds to the LSP client's initialize request and advertises the server's capabilities
func (h *GneissHandler) Initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	log.Info("LSP Initialize called")

	return &protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync: &protocol.TextDocumentSyncOptions{
				OpenClose: ptrBool(true),
				Change:    ptrSyncKind(protocol.TextDocumentSyncKindFull),
			},
			HoverProvider: true,
			SemanticTokensProvider: &protocol.SemanticTokensOptions{
				Legend: protocol.SemanticTokensLegend{
					TokenTypes:     SemanticTokenTypes,
					TokenModifiers: SemanticTokenModifiers,
				},
				Full: ptrBool(true),
			},
		},
	}, nil
}

// Initialized is called after the client receives the server's capabilities and completes initialization
func (h *GneissHandler) Initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	log.Info("Gneiss LSP Initialized")
	return nil
}

// Shutdown handles the LSP shutdown request
func (h *GneissHandler) Shutdown(ctx *glsp.Context) error {
	log.Info("Gneiss LSP Shutdown")
	return nil
}

// SetTrace accepts trace level changes; the server logs through commonlog
// regardless.
func (h *GneissHandler) SetTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	log.Debugf("trace set to %s", params.Value)
	return nil
}

// TextDocumentDidOpen handles file open notifications from the editor
func (h *GneissHandler) TextDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	log.Infof("Opened file: %s", params.TextDocument.URI)

	text := params.TextDocument.Text
	analysis, err := h.update(params.TextDocument.URI, &text)
	if err != nil {
		return fmt.Errorf("failed to analyze document: %w", err)
	}

	sendDiagnosticNotification(ctx, params.TextDocument.URI, analysis.Diagnostics)
	return nil
}

// TextDocumentDidClose handles file close notifications from the editor
func (h *GneissHandler) TextDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	log.Infof("Closed file: %s", params.TextDocument.URI)

	rawURI := params.TextDocument.URI

	path, err := uriToPath(rawURI)
	if err != nil {
		return fmt.Errorf("failed to convert URI %s: %w", rawURI, err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.content, path)
	delete(h.analyses, path)

	return nil
}

// TextDocumentDidChange handles file change notifications from the editor.
// The server syncs full documents, so the last change holds the text.
func (h *GneissHandler) TextDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	log.Infof("Changed file: %s", params.TextDocument.URI)

	var text *string
	for _, change := range params.ContentChanges {
		if whole, ok := change.(protocol.TextDocumentContentChangeEventWhole); ok {
			t := whole.Text
			text = &t
		}
	}

	analysis, err := h.update(params.TextDocument.URI, text)
	if err != nil {
		return fmt.Errorf("failed to analyze document: %w", err)
	}

	sendDiagnosticNotification(ctx, params.TextDocument.URI, analysis.Diagnostics)
	return nil
}

// TextDocumentHover shows, on a function header, how many trace calls each
// pass would insert into that function.
func (h *GneissHandler) TextDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	rawURI := params.TextDocument.URI

	path, err := uriToPath(rawURI)
	if err != nil {
		return nil, fmt.Errorf("failed to convert URI %s: %w", rawURI, err)
	}

	analysis, err := h.getOrUpdate(ctx, path, rawURI)
	if err != nil {
		return nil, err
	}

	fn, ok := analysis.FunctionAt(int(params.Position.Line))
	if !ok || len(analysis.Preview) == 0 {
		return nil, nil
	}

	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: analysis.PreviewText(fn),
		},
	}, nil
}

// TextDocumentSemanticTokensFull handles semantic token requests for the entire document
func (h *GneissHandler) TextDocumentSemanticTokensFull(ctx *glsp.Context, params *protocol.SemanticTokensParams) (*protocol.SemanticTokens, error) {
	log.Debugf("TextDocumentSemanticTokensFull called for: %s", params.TextDocument.URI)

	rawURI := params.TextDocument.URI

	path, err := uriToPath(rawURI)
	if err != nil {
		return nil, fmt.Errorf("failed to convert URI %s: %w", rawURI, err)
	}

	analysis, err := h.getOrUpdate(ctx, path, rawURI)
	if err != nil {
		return nil, err
	}

	h.mu.RLock()
	source := h.content[path]
	h.mu.RUnlock()

	tokens := collectSemanticTokens(source, analysis.Module)

	return &protocol.SemanticTokens{
		Data: encodeSemanticTokens(tokens),
	}, nil
}

func (h *GneissHandler) getOrUpdate(ctx *glsp.Context, path string, rawURI protocol.DocumentUri) (*Analysis, error) {
	h.mu.RLock()
	analysis, ok := h.analyses[path]
	h.mu.RUnlock()

	if ok {
		return analysis, nil
	}

	analysis, err := h.update(rawURI, nil)
	if err != nil {
		return nil, err
	}
	sendDiagnosticNotification(ctx, rawURI, analysis.Diagnostics)
	return analysis, nil
}

// update analyzes the document. A nil text means the editor did not send
// one and the file is read from disk.
func (h *GneissHandler) update(rawURI protocol.DocumentUri, text *string) (*Analysis, error) {
	path, err := uriToPath(rawURI)
	if err != nil {
		return nil, fmt.Errorf("failed to convert URI %s: %w", rawURI, err)
	}

	var source string
	if text != nil {
		source = *text
	} else {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read file %s: %w", path, err)
		}
		source = string(content)
	}

	analysis := Analyze(path, source)

	h.mu.Lock()
	h.content[path] = source
	h.analyses[path] = analysis
	h.mu.Unlock()

	return analysis, nil
}

// Convert URI to platform-local file path
func uriToPath(rawURI string) (string, error) {
	u, err := url.Parse(rawURI)
	if err != nil {
		return "", fmt.Errorf("invalid URI %s: %w", rawURI, err)
	}

	path := u.Path

	// On Windows, remove leading slash (e.g., /C:/...) → C:/...
	if runtime.GOOS == "windows" && strings.HasPrefix(path, "/") && len(path) > 3 && path[2] == ':' {
		path = path[1:]
	}

	return filepath.FromSlash(path), nil
}

func sendDiagnosticNotification(ctx *glsp.Context, uri protocol.URI, diagnostics []protocol.Diagnostic) {
	if ctx.Notify == nil {
		return
	}

	diagnosticsJSON, err := json.MarshalIndent(diagnostics, "", "  ")
	if err != nil {
		log.Errorf("Failed to marshal diagnostics: %s", err)
		return
	}

	log.Debugf("Sending diagnostics: %s", diagnosticsJSON)

	ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, &protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

func ptrBool(b bool) *bool {
	return &b
}

func ptrSyncKind(k protocol.TextDocumentSyncKind) *protocol.TextDocumentSyncKind {
	return &k
}
