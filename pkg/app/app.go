// Package app holds the contract between the cobra commands and the processes
// they start: `serve` runs the controller API and `relay` the conversion relay.
package app

// Runner is a process started by a command. Run blocks until the process
// stops on a signal or fails.
type Runner interface {
	Run() error
}
