package main

import (
	"fmt"
	"os"
	"sort"

	mcpsvr "github.com/slackhub/slackhub/internal/mcp"
)

func main() {
	tools := mcpsvr.ToolDefinitions()

	fmt.Fprintln(os.Stdout, "# MCP Tools (Generated)")
	fmt.Fprintln(os.Stdout)
	fmt.Fprintln(os.Stdout, "This file is generated from `internal/mcp/server.go`.")
	fmt.Fprintln(os.Stdout)

	for _, tool := range tools {
		fmt.Fprintf(os.Stdout, "- `%s`\n", tool.Name)
		if tool.Description != "" {
			fmt.Fprintf(os.Stdout, "  - Description: %s\n", tool.Description)
		}

		requiredSet := make(map[string]bool, len(tool.InputSchema.Required))
		for _, r := range tool.InputSchema.Required {
			requiredSet[r] = true
		}

		keys := make([]string, 0, len(tool.InputSchema.Properties))
		for k := range tool.InputSchema.Properties {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		if len(keys) > 0 {
			fmt.Fprintln(os.Stdout, "  - Input:")
			for _, k := range keys {
				req := "optional"
				if requiredSet[k] {
					req = "required"
				}
				fmt.Fprintf(os.Stdout, "    - `%s` (%s)\n", k, req)
			}
		}
		fmt.Fprintln(os.Stdout)
	}
}
