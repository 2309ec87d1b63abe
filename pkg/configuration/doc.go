// Package configuration defines the configuration snapshot an activity is
// resolved against, the change mask computed between two snapshots, and
// the size buckets used to ignore insignificant resizes.
//
// A Configuration uses zero values for "undefined", so the same type serves
// as a full snapshot and as an override delta:
//
//	full := parent.Merge(override)
//	changes := lastReported.Diff(full)
//	if changes.Without(handled) != 0 {
//	    // relaunch
//	}
package configuration
