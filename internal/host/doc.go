// Package host connects the engine to the process hosting it.
//
// Lifecycle is the window-close hook: the first close request starts the
// shutdown and closes the window itself, later ones are let through. Bridge
// is the invoke channel used by "diary serve", reading one JSON command per
// line and writing one JSON reply per line.
package host
