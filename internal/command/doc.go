// Package command is the caller-facing side of the engine.
//
// Service exposes one method per diary operation. Each call builds a request
// with a fresh reply channel, waits for its single reply and folds the
// outcome into a Response with exactly one of Data and Error set. Failures
// caused by the engine having stopped all read "no response received".
package command
