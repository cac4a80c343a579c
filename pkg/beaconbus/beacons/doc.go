// Package beacons manages the beacons configured on a minion.
//
// Each operation publishes a manage_beacons request through a
// beaconbus.Client and checks the completion event with its own reply
// interpreter:
//
//	module := beacons.New(client)
//	out := module.Add(ctx, "ps", []any{
//	    map[string]any{"processes": map[string]any{"salt-master": "stopped"}},
//	})
//	fmt.Println(out.Success, out.Comment)
//
// Dry runs (WithTest, or Settings.Test on the client) are answered before
// any bus traffic. Add, Modify, Delete and the per-beacon toggles list the
// configured beacons first and skip the request when the beacon is already
// in the wanted state or cannot be acted on.
//
// Modify reports the change as a unified diff of "key:value" lines under
// Outcome.Changes["diff"].
package beacons
