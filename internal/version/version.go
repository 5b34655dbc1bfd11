package version

// Build metadata, overridden at link time:
//
//	go build -ldflags "-X github.com/doeshing/hookgate/internal/version.Version=v0.3.0"
var (
	Version   = "dev"
	Commit    = ""
	BuildDate = ""
)
