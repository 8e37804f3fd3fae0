package buildinfo

import "time"

// Set via -ldflags at build time
var (
	BuildTime  string // when the binary was compiled
	CommitTime string // last git commit time (last code edit)
	CommitHash string // short git commit hash
)

// StartTime is recorded when the process starts
var StartTime = time.Now().UTC().Format(time.RFC3339)

// Info is the build metadata reported by the status endpoint
type Info struct {
	BuildTime  string `json:"buildTime"`
	CommitTime string `json:"commitTime"`
	CommitHash string `json:"commitHash"`
	StartTime  string `json:"startTime"`
}

// Current returns the metadata of the running binary
func Current() Info {
	return Info{
		BuildTime:  BuildTime,
		CommitTime: CommitTime,
		CommitHash: CommitHash,
		StartTime:  StartTime,
	}
}
