// Package manager is a beacon manager answering manage_beacons requests.
//
// It keeps the runtime beacon configuration of one minion, persists every
// change through a store.Store and publishes the completion event each
// request waits for. Beacons configured in pillar are listed but read-only.
//
//	mgr, err := manager.New(manager.WithStore(st))
//	if err != nil {
//	    return err
//	}
//	sub := mgr.Attach(bus)
//	defer sub.Unsubscribe()
//
// Watch keeps the configuration in step with a beacons.conf file.
package manager
