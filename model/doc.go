// Package model defines the provider-agnostic abstractions for interacting
// with language models inside tandemrev.
//
// Core goals:
//   - Normalize tool / function call representation (ToolDefinition, ToolCall)
//   - Keep request/response shapes minimal and transport independent
//   - Facilitate lightweight scripting for tests (ScriptedCompleter)
//
// Providers (model/openrouter, model/anthropic) implement the Completer
// interface from this package so the review engine remains decoupled from
// vendor SDKs.
package model
