package config

const (
	// TransportStreamableHTTP is the streamable HTTP transport.
	TransportStreamableHTTP = "streamable-http"
	// TransportSSE is the Server-Sent Events transport.
	TransportSSE = "sse"
	// TransportStdio is the standard I/O transport.
	TransportStdio = "stdio"
)

// Config is the top-level configuration for the proxy.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Cache    CacheConfig    `yaml:"cache"`
	Query    QueryConfig    `yaml:"query"`
	Token    TokenConfig    `yaml:"token"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig controls the MCP listener.
type ServerConfig struct {
	Host      string `yaml:"host,omitempty"`      // Host to bind to (default: localhost)
	Port      int    `yaml:"port,omitempty"`      // Port for the MCP endpoint (default: 8040)
	Transport string `yaml:"transport,omitempty"` // Transport to use (default: streamable-http)
}

// UpstreamConfig names the upstream services. Hosts are bare hostnames;
// the client prepends https://.
type UpstreamConfig struct {
	OrchestratorHost string `yaml:"orchestratorHost,omitempty"`
	CoreAPIHost      string `yaml:"coreApiHost,omitempty"`
	CredmgrHost      string `yaml:"credmgrHost,omitempty"`
	CallTimeoutSecs  int    `yaml:"callTimeoutSeconds,omitempty"`
}

// CacheConfig controls the background resource snapshots.
type CacheConfig struct {
	RefreshIntervalSecs int `yaml:"refreshIntervalSeconds,omitempty"` // default: 300
	MaxFetch            int `yaml:"maxFetch,omitempty"`               // per-collection record cap (default: 5000)
}

// QueryConfig carries the pagination ceilings.
type QueryConfig struct {
	DefaultLimit int `yaml:"defaultLimit,omitempty"` // default: 200
	MaxUnsorted  int `yaml:"maxUnsorted,omitempty"`  // default: 500
	MaxSorted    int `yaml:"maxSorted,omitempty"`    // default: 5000
}

// TokenConfig controls credential refresh.
type TokenConfig struct {
	ExpiryMarginSecs int `yaml:"expiryMarginSeconds,omitempty"` // default: 300
}

// LogConfig selects log verbosity and output format.
type LogConfig struct {
	Level  string `yaml:"level,omitempty"`  // debug, info, warn, error (default: info)
	Format string `yaml:"format,omitempty"` // text or json (default: text)
}

// Default returns the built-in configuration, pointed at the production
// FABRIC control-plane hosts.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:      "localhost",
			Port:      8040,
			Transport: TransportStreamableHTTP,
		},
		Upstream: UpstreamConfig{
			OrchestratorHost: "orchestrator.fabric-testbed.net",
			CoreAPIHost:      "uis.fabric-testbed.net",
			CredmgrHost:      "cm.fabric-testbed.net",
			CallTimeoutSecs:  30,
		},
		Cache: CacheConfig{
			RefreshIntervalSecs: 300,
			MaxFetch:            5000,
		},
		Query: QueryConfig{
			DefaultLimit: 200,
			MaxUnsorted:  500,
			MaxSorted:    5000,
		},
		Token: TokenConfig{
			ExpiryMarginSecs: 300,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
