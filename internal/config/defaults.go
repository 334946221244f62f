package config

const (
	bytesPerMB = 1024 * 1024

	defaultProjectName       = "fragmenter"
	defaultSourceDir         = "~/fragmenter/ifc"
	defaultLogDir            = "~/.local/share/fragmenter/logs"
	defaultUploadDir         = "~/.local/share/fragmenter/uploads"
	defaultPrimaryDSN        = "~/.local/share/fragmenter/fragments.db"
	defaultSinkTable         = "fragments_bytea"
	defaultWorkerBinary      = "node"
	defaultWorkerScript      = "convert_ifc_to_fragments.js"
	defaultMemoryFlag        = "--max-old-space-size={memory_mb}"
	defaultKillGraceSeconds  = 5
	defaultOutputTailBytes   = 4096
	defaultExcerptBytes      = 1024
	defaultAPIBind           = "127.0.0.1:8111"
	defaultMaxUploadMB       = 512
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultLogRetentionDays  = 60
	defaultOutputExt         = ".frag"
	defaultConverterLabel    = "external_fragments_worker"
	defaultSmallTimeout      = 600
	defaultMediumTimeout     = 1800
	defaultLargeTimeout      = 3600
	defaultMediumThresholdMB = 20
	defaultLargeThresholdMB  = 50
	defaultMediumMemoryMB    = 4096
	defaultLargeMemoryMB     = 8192

	// DriverSQLite selects the modernc SQLite sink backend.
	DriverSQLite = "sqlite"
	// DriverPostgres selects the lib/pq PostgreSQL sink backend.
	DriverPostgres = "postgres"
)

// DefaultTiers returns the small/medium/large ladder used when a config file
// does not declare its own.
func DefaultTiers() []Tier {
	return []Tier{
		{Name: "small", MinSizeMB: 0, TimeoutSeconds: defaultSmallTimeout},
		{Name: "medium", MinSizeMB: defaultMediumThresholdMB, TimeoutSeconds: defaultMediumTimeout, MemoryMB: defaultMediumMemoryMB, ExtraFlags: []string{"--expose-gc"}},
		{Name: "large", MinSizeMB: defaultLargeThresholdMB, TimeoutSeconds: defaultLargeTimeout, MemoryMB: defaultLargeMemoryMB, ExtraFlags: []string{"--max-semi-space-size=1024", "--expose-gc"}},
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Project: Project{
			Name: defaultProjectName,
		},
		Paths: Paths{
			SourceDir: defaultSourceDir,
			LogDir:    defaultLogDir,
			UploadDir: defaultUploadDir,
		},
		Worker: Worker{
			Binary:           defaultWorkerBinary,
			Args:             []string{defaultWorkerScript, "{input}", "{output}"},
			MemoryFlag:       defaultMemoryFlag,
			KillGraceSeconds: defaultKillGraceSeconds,
			OutputTailBytes:  defaultOutputTailBytes,
		},
		Fallback: Fallback{
			Enabled:      true,
			ExcerptBytes: defaultExcerptBytes,
		},
		Sinks: Sinks{
			Primary: Sink{
				Enabled: true,
				Driver:  DriverSQLite,
				DSN:     defaultPrimaryDSN,
				Table:   defaultSinkTable,
			},
		},
		API: API{
			Bind:        defaultAPIBind,
			MaxUploadMB: defaultMaxUploadMB,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		Conversion: Conversion{
			Extensions:     []string{".ifc"},
			OutputExt:      defaultOutputExt,
			ConverterLabel: defaultConverterLabel,
		},
	}
}
