package version

const (
	Name    = "birdwatch-mcp"
	Title   = "Birdwatch X (Twitter) MCP Server"
	Version = "0.3.0"

	ProtocolVersion = "2025-06-18"
)

var SupportedProtocolVersions = []string{
	"2025-06-18",
	"2025-03-26",
	"2024-11-05",
}
