//go:build statsview

package statsview

import (
	"fmt"
	"io"
	"time"

	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"
)

const (
	ADDRESS  = "localhost:12600"
	PATH     = "/debug/statsview"
	INTERVAL = time.Second // Graph sampling period.
)

// Launch serves the runtime statistics in the background. The returned
// function shuts the server down.
func Launch(output io.Writer) (stop func()) {
	viewer.SetConfiguration(
		viewer.WithAddr(ADDRESS),
		viewer.WithInterval(int(INTERVAL/time.Millisecond)),
	)

	mgr := statsview.New()
	go mgr.Start()

	fmt.Fprintf(output, "msp430sim: runtime statistics on http://%s%s\n", ADDRESS, PATH)

	stop = mgr.Stop
	return
}

// Available returns true when built with the statsview tag.
func Available() bool {
	return true
}
