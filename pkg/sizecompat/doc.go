// Package sizecompat decides whether an activity that cannot handle runtime
// resizing has to run in size-compatibility mode, and if so resolves its
// configuration against geometry frozen at launch.
//
// The frozen geometry is a DisplayInsets snapshot taken from the parent
// the first time ShouldCreate reports true. Every later resolution uses
// that snapshot to keep the activity's logical window constant, then
// scales and positions the result inside the live parent:
//
//	insets, err := sizecompat.NewDisplayInsets(geometry, displayID, parent, traits)
//	res := sizecompat.Resolve(insets, sizecompat.Request{Parent: parent, Traits: traits})
//	if res.CompatBounds != nil {
//	    // draw scaled at *res.CompatBounds
//	}
//
// Resolve is a pure function: the same inputs always produce the same
// bounds and scale.
package sizecompat
