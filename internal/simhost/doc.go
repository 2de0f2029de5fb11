// Package simhost is an in-process implementation of the host boundary:
// an in-memory DOM plus an embedded JavaScript runtime standing in for the
// target application's reactive layer.
//
// Elements carry attributes, visibility, and an owning scope. Scopes live
// inside a goja runtime and optionally expose a native $eval entry point, so
// both evaluation branches of the scope reader are reachable. Probe function
// sources sent through Element.Evaluate execute inside that runtime against
// a live element wrapper, exactly as they would against a real browser.
//
// The conformance harness, the CLI demo, and the probe package tests all run
// against simhost.
package simhost
