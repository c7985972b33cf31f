package version

import "strings"

// Version is the chunkup release, overridden at link time by release builds.
var Version = "0.3.0.dev1"

// Commit is the git commit the binary was built from, set at link time.
var Commit string

var Environment string

func init() {
	if strings.Contains(Version, "dev") {
		Environment = "development"
	} else {
		Environment = "production"
	}
}

// UserAgent is the User-Agent header sent on HTTP requests.
func UserAgent() string {
	return "chunkup/" + Version
}
