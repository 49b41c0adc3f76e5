// SPDX-License-Identifier: Apache-2.0
package main

import (
	"flag"
	"os"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"

	"gneiss/internal/lsp"
)

const lsName = "gneiss" // Name identifier for the language server

var (
	version = "0.1.0"        // Server version
	handler protocol.Handler // Protocol handler instance (wired up below)
)

func main() {
	verbosity := flag.Int("v", 1, "log verbosity")
	logPath := flag.String("log", "", "log file, stderr when empty")
	flag.Parse()

	// Logs must never go to stdout, which carries the protocol
	if *logPath != "" {
		commonlog.Configure(*verbosity, logPath)
	} else {
		commonlog.Configure(*verbosity, nil)
	}
	log := commonlog.GetLogger("gneiss.lsp.main")

	gneissHandler := lsp.NewGneissHandler()

	handler = protocol.Handler{
		Initialize:                     gneissHandler.Initialize,
		Initialized:                    gneissHandler.Initialized,
		Shutdown:                       gneissHandler.Shutdown,
		SetTrace:                       gneissHandler.SetTrace,
		TextDocumentDidOpen:            gneissHandler.TextDocumentDidOpen,
		TextDocumentDidClose:           gneissHandler.TextDocumentDidClose,
		TextDocumentDidChange:          gneissHandler.TextDocumentDidChange,
		TextDocumentHover:              gneissHandler.TextDocumentHover,
		TextDocumentSemanticTokensFull: gneissHandler.TextDocumentSemanticTokensFull,
	}

	s := server.NewServer(&handler, lsName, false)

	log.Infof("Starting gneiss LSP server %s...", version)

	err := s.RunStdio()
	if err != nil {
		log.Errorf("Error starting gneiss LSP server: %s", err)
		os.Exit(1)
	}
}
