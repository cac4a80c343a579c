/*
Package beaconbus performs correlated request/response calls over a tagged
event bus, and reports every call as a uniform Outcome.

# Overview

A caller cannot invoke the remote side directly. Instead it publishes a
request on the bus and waits for a completion event under a well-known
tag. Client.Call runs that exchange:

 1. Connect a scoped handle. The handle is listening before anything is
    published, so the reply cannot be missed.
 2. Publish the request with its func discriminator and parameters. The
    request's envelope ID is carried as its correlation ID.
 3. Wait for the completion tag, up to the configured timeout. Other
    traffic stays queued on the handle.
 4. Interpret the reply.

The handle is closed on every exit path.

# Basic Usage

	bus := event.NewBus(event.DefaultBusConfig)
	defer bus.Close()

	client := beaconbus.NewClient(bus,
	    beaconbus.WithSettings(settings),
	    beaconbus.WithLogger(logger))

	out := client.Call(ctx, beaconbus.Request{
	    Operation:     "list",
	    Label:         "Beacon list",
	    Completion:    "/salt/minion/minion_beacons_list_complete",
	    DryRunComment: "Would list beacons.",
	})
	if !out.Success {
	    log.Println(out.Comment)
	}

Any event.Transport works, including the socket transport in package ipc.

# Failure Modes

Call never returns an error. Failures are encoded in the Outcome:

	Connect fails           KindBusUnavailable  "Event module not available. <Label> failed."
	Publish not accepted    KindBusUnavailable  "Event module not available. <Label> event was not sent."
	No reply in time        KindTimeout         "Did not receive the <event> complete event before the timeout of <N>s"
	Reply has complete=false KindRemoteRejected the reply's comment

A reply without a complete key is handed to the request's Interpreter.

# Dry Runs

When Request.DryRun or Settings.Test is set, Call returns a successful
Outcome with Request.DryRunComment before touching the bus.

# Correlation

Replies whose correlation ID matches the request are accepted. Replies
carrying no correlation ID are accepted too, unless
Settings.StrictCorrelation is set. Replies for other requests are left
queued.
*/
package beaconbus
