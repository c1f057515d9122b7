package version

// CLIName is the binary name used in user agents and envelope metadata.
const CLIName = "lenderctl"

// Version is stamped at build time via -ldflags.
var Version = "dev"

type Info struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

func Get() Info {
	return Info{Name: CLIName, Version: Version}
}
