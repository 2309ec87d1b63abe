// Package scenario runs scripted activity lifecycles against an engine.
//
// A scenario is a TOML file declaring displays, processes and activity
// components, followed by steps. Each step drives the engine, lets a
// simulated client acknowledge every lifecycle message it receives, and
// optionally checks expectations. Time only moves on "advance" steps,
// so runs are deterministic.
package scenario
