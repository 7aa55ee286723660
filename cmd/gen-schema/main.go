// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Command gen-schema writes the JSON Schema of every API request body.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/holomush/authd/internal/web"
)

func main() {
	if err := os.MkdirAll("schemas", 0o750); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating directory: %v\n", err)
		os.Exit(1)
	}

	for _, rs := range web.RequestSchemas() {
		schema, err := web.GenerateSchema(rs)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error generating %s schema: %v\n", rs.Name, err)
			os.Exit(1)
		}

		outPath := filepath.Join("schemas", rs.Name+".schema.json")
		if err := os.WriteFile(outPath, schema, 0o600); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing file: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Generated %s\n", outPath)
	}
}
