// Package persist stores the durable part of the activity hierarchy so
// tasks can be restored after a restart.
//
// The engine only produces and consumes the in-memory shapes defined here;
// FileRepository serializes them as JSON:
//
//	repo := persist.NewFileRepository("/var/lib/actlife")
//
//	st, err := repo.Load(ctx)
//	if err != nil {
//	    return err
//	}
//	// ... restore tasks, run ...
//	if err := repo.Save(ctx, engine.PersistState()); err != nil {
//	    return err
//	}
//
// # Version
//
// State files carry a version number. Files written by a newer major
// version are rejected with ErrIncompatibleVersion.
package persist
