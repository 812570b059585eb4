// Package setup prepares the host and the settings a build runs with: layered
// configuration, host tool checks and installation, and the lxcbr0 bridge.
//
// This package is essentially a collection of scripts and constants, and is therefore the only package that is
// allowed to call a global logger.
package setup
