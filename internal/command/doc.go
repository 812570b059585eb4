// Package command runs host shell commands on behalf of the build pipeline.
//
// Every external process the tool starts goes through a Runner: container
// runtime calls, chroot edits of a stopped root filesystem, archive creation
// and publishing. The Runner logs each dispatch, streams output line by line,
// optionally enforces a deadline and can be switched into a dry-run mode in
// which nothing is executed.
package command
