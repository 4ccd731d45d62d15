// Package exitcode provides the process exit codes of luacomposer
package exitcode

// Exit codes for the luacomposer CLI
const (
	Success         = 0
	GeneralError    = 1
	ConfigError     = 2
	SanitizeError   = 3
	GraphError      = 4
	FileSystemError = 5
	NetworkError    = 6
	PolicyError     = 7
	SyntaxError     = 8
)

// String returns a human-readable description of the exit code
func String(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case ConfigError:
		return "Configuration error"
	case SanitizeError:
		return "Sanitization error"
	case GraphError:
		return "Dependency graph error"
	case FileSystemError:
		return "File system error"
	case NetworkError:
		return "Network error"
	case PolicyError:
		return "Dependency policy violation"
	case SyntaxError:
		return "Lua syntax error"
	default:
		return "Unknown error"
	}
}
