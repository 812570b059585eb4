// Package provision installs packages, creates the vagrant account and
// slims down a container, dispatching on the OS family.
package provision
