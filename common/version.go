package common

// Version is the service version. Overridden at build time via
// -ldflags "-X github.com/kingG4e/web-control-panel/common.Version=...".
var Version = "dev"
