package config

import (
	"fmt"
	"io"
	"slices"
)

const (
	EnvIcePanelAPIKey         = "ICEPANEL_API_KEY"
	EnvIcePanelOrganizationID = "ICEPANEL_ORGANIZATION_ID"

	IcePanelServerName  = "icepanel"
	IcePanelToolPattern = "mcp__icepanel__*"
)

// BaseTools are always pre-approved for the runtime.
var BaseTools = []string{"Skill", "Bash", "Read", "Write", "Glob", "Grep"}

// Capabilities is the result of the credential check. It is computed once
// at startup and read-only afterwards.
type Capabilities struct {
	Enabled      bool
	AllowedTools []string
	MCPServers   map[string]MCPServer
}

// IcePanelServer returns the launch descriptor for the IcePanel MCP server.
func IcePanelServer(apiKey, organizationID string) MCPServer {
	return MCPServer{
		Command: "npx",
		Args:    []string{"-y", "@icepanel/mcp-server@latest"},
		Env: map[string]string{
			"API_KEY":         apiKey,
			"ORGANIZATION_ID": organizationID,
		},
	}
}

// Gate decides whether the IcePanel tool provider is registered. Both
// credentials must be non-empty; values are forwarded as read. A one-line status notice (plus a hint when
// disabled) is written to notice.
func Gate(lookup func(string) string, notice io.Writer) Capabilities {
	if notice == nil {
		notice = io.Discard
	}
	apiKey := lookup(EnvIcePanelAPIKey)
	orgID := lookup(EnvIcePanelOrganizationID)

	caps := Capabilities{
		AllowedTools: slices.Clone(BaseTools),
		MCPServers:   map[string]MCPServer{},
	}
	if apiKey == "" || orgID == "" {
		_, _ = fmt.Fprintln(notice, "IcePanel credentials not found - only Mermaid mode is available.")
		_, _ = fmt.Fprintf(notice, "To enable IcePanel mode, set %s and %s in .env\n", EnvIcePanelAPIKey, EnvIcePanelOrganizationID)
		return caps
	}

	caps.Enabled = true
	caps.MCPServers[IcePanelServerName] = IcePanelServer(apiKey, orgID)
	caps.AllowedTools = append(caps.AllowedTools, IcePanelToolPattern)
	_, _ = fmt.Fprintln(notice, "IcePanel mode available (credentials found)")
	return caps
}
