// Copyright 2026 The Plantwatch Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for the Plantwatch
// service.
//
// Configuration is loaded from a single file specified by either the
// PLANTWATCH_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). There are no fallbacks and no automatic file
// search. Files are YAML; a file ending in .jsonc is read as JSON with
// comments.
//
// The file may contain development and production sections that
// override base values when [Config].Environment matches. Without an
// explicit production section, production switches logging to JSON.
//
// ${HOME} and ${VAR:-default} patterns are expanded in store.path and
// query.socket_path after loading. No other environment variables
// override config values.
//
// This package depends on no other Plantwatch packages.
package config
