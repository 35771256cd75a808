package cortex

// Version is the release of the module. It is overridden at build time with
// -ldflags "-X github.com/aretw0/cortex.Version=...".
var Version = "0.1.0-dev"
