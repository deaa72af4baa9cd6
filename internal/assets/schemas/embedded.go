// Package schemasassets provides embedded JSON schemas for standalone binary behavior.
//
// Schemas are embedded at compile time so manifest validation works in
// installed binaries and library consumers without schema files on disk.
package schemasassets

import _ "embed"

// ExperimentManifestSchema is the embedded experiment-manifest JSON schema.
//
//go:embed experiment-manifest.schema.json
var ExperimentManifestSchema []byte
