// Package workspace provides an in-memory chat workspace that scenarios run
// against. Users receive events in delivery order; steps consume them by
// marking them processed, which is what portals observe when they build
// call-stack traces.
package workspace
