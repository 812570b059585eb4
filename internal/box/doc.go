// Package box packages a provisioned container into a vagrant-lxc box.
//
// A box is a gzipped tarball holding rootfs.tar.gz, the container's lxc
// configuration file and metadata.json.
package box
