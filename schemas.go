package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/invopop/jsonschema"
	"github.com/openchami/node-waker/internal/api/waker"
	"github.com/openchami/node-waker/internal/localnet"
	"github.com/openchami/node-waker/internal/registry"
	"github.com/spf13/cobra"
)

func schemasCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "schemas",
		Short: "Write the JSON schemas of the API documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return generateAndWriteSchemas(dir)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "schemas/", "directory to store JSON schemas")
	return cmd
}

func generateAndWriteSchemas(path string) error {
	schemas := map[string]*jsonschema.Schema{
		"Client.json":       waker.ClientSchema(),
		"Interface.json":    jsonschema.Reflect(&localnet.Interface{}),
		"Status.json":       jsonschema.Reflect(&registry.Status{}),
		"WakeResponse.json": jsonschema.Reflect(&waker.WakeResponse{}),
	}

	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("creating schema directory: %w", err)
	}

	for filename, schema := range schemas {
		data, err := json.MarshalIndent(schema, "", "  ")
		if err != nil {
			return fmt.Errorf("generating JSON schema for %s: %w", filename, err)
		}
		fullpath := filepath.Join(path, filename)
		if err := os.WriteFile(fullpath, data, 0644); err != nil {
			return fmt.Errorf("writing JSON schema to %s: %w", fullpath, err)
		}
		fmt.Printf("Schema written to %s\n", fullpath)
	}
	return nil
}
