package types

// Version is the application version. It is overwritten at build time with -ldflags.
var Version = "dev"
