package codegen

// Runtime defaults compiled into generated servers. The README configuration
// table renders the same values.
const (
	DefaultAllowedHosts    = "*"
	DefaultMaxResponseSize = 10 * 1024 * 1024
	DefaultHTTPTimeoutMS   = 15000
	DefaultScriptTimeoutMS = 5000

	errorExcerptChars = 500
	stackExcerptLines = 3
)

// Fixed packaging choices for generated bundles.
const (
	baseImage        = "node:20-alpine"
	packageVersion   = "1.0.0"
	mcpSDKPackage    = "@modelcontextprotocol/sdk"
	mcpSDKVersion    = "^1.0.0"
	ajvPackage       = "ajv"
	ajvVersion       = "^8.12.0"
	serverVersion    = "1.0.0"
	bytesPerMegabyte = 1024 * 1024
	millisPerSecond  = 1000
)

type runtimeDefaults struct {
	AllowedHosts      string
	MaxResponseSize   int
	MaxResponseMB     int
	HTTPTimeoutMS     int
	HTTPTimeoutSec    int
	ScriptTimeoutMS   int
	ErrorExcerptChars int
	StackExcerptLines int
}

func defaults() runtimeDefaults {
	return runtimeDefaults{
		AllowedHosts:      DefaultAllowedHosts,
		MaxResponseSize:   DefaultMaxResponseSize,
		MaxResponseMB:     DefaultMaxResponseSize / bytesPerMegabyte,
		HTTPTimeoutMS:     DefaultHTTPTimeoutMS,
		HTTPTimeoutSec:    DefaultHTTPTimeoutMS / millisPerSecond,
		ScriptTimeoutMS:   DefaultScriptTimeoutMS,
		ErrorExcerptChars: errorExcerptChars,
		StackExcerptLines: stackExcerptLines,
	}
}
