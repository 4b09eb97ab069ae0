// Package main provides the VoxForm CLI: structured dictation sessions
// where a hosted model extracts fields from speech or typed text into a
// live record panel.
//
// Usage:
//
//	voxform [flags] <command>
//
// Commands:
//
//	chat    - Turn-based text session
//	voice   - Realtime voice session
//	list    - List archived encounters
//
// Configuration is read from ~/.voxform/config.yaml, overridable per run
// with flags. The API key comes from GEMINI_API_KEY.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
