// Command beaconctl manages minion beacons over the event bus.
//
// Usage:
//
//	beaconctl serve [--store beacons.db] [--watch /etc/salt/minion.d/beacons.conf]
//	beaconctl list
//	beaconctl add ps "[{processes: {salt-master: stopped}}]"
//	beaconctl --test delete ps
//
// serve runs the event hub and a beacon manager until interrupted. Every
// other command publishes one request to a running hub and prints the
// outcome as YAML. The exit status is 1 when the outcome is a failure.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		if !errors.Is(err, errOutcomeFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
