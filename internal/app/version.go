package app

import (
	"fmt"
	"io"

	"gqrxscan/internal/remote"
)

// Version information (set by build flags)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// ShowVersion writes the build details and the receiver protocol this build
// speaks.
func ShowVersion(w io.Writer) {
	receiver := remote.Address{Host: DefaultHostname, Port: DefaultPort}

	fmt.Fprintf(w, "gqrxscan %s (commit %s, built %s)\n", Version, GitCommit, BuildTime)
	fmt.Fprintf(w, "Protocol: gqrx remote control, one TCP connection per command\n")
	fmt.Fprintf(w, "Default receiver: %s\n", receiver)
}
