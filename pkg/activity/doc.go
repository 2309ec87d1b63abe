// Package activity implements the activity lifecycle engine.
//
// An Engine owns tasks, activity records and client processes. Every
// mutation runs under one lock. Lifecycle requests (launch, resume, pause,
// stop, destroy, relaunch, configuration updates) are sent to client
// processes through a client.Transport. Clients answer asynchronously
// with OnClientAcknowledged; every round trip is guarded by a timeout that
// forces the same transition the acknowledgement would have.
//
//	eng, err := activity.New(activity.DefaultConfig(),
//	    activity.WithTransport(transport),
//	    activity.WithLogger(logger),
//	)
//	_ = eng.SetDisplayConfiguration(0, displayCfg)
//	_ = eng.AttachProcess("com.example", "http://127.0.0.1:9000", false)
//	tok, err := eng.StartActivity(activity.StartRequest{Info: info})
//	...
//	res, err := eng.RequestFinish(tok, activity.ResultOK, "", "done")
//
// Timeouts and acknowledgements are both Events. Without a running event
// loop they are handled on the goroutine that posts them; Run moves them
// onto a single loop goroutine.
//
// Dispatch failures never reach the caller of a request. A client that
// cannot be reached is treated as dead and the affected activity moves to
// a safe state (paused, stopped, destroyed) instead.
package activity
