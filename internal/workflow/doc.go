// Package workflow sequences the installer: download, verify, unpack, then
// flash or wipe.
//
// A Manager holds a fixed registry of named steps. Every transition and every
// keyed update is checked against the target step's predecessor set, so a
// step can only be reached from the steps that precede it. All Manager
// methods run on the event loop; background work posts back to it.
package workflow
