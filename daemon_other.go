//go:build !linux
// +build !linux

package main

// RunAsBackgroundService is a no-op outside Linux; the agent stays in the
// foreground and relies on the service manager to detach it.
func RunAsBackgroundService(foreground bool, args []string) error {
	return nil
}
