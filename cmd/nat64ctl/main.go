// nat64ctl -- offline inspection and validation tool for nat64d
// configuration.
//
// Unlike gobfdctl, nat64ctl does not talk to a running daemon over the
// network: nat64d's admin surface (Core.CloneConfig/SetConfig/ForEachBIB/
// ForEachSession) is an in-process API, and wiring it onto a remote
// transport is explicitly out of scope (see SPEC_FULL.md §4.6). nat64ctl
// instead loads a configuration file, builds a throwaway Core from it, and
// reports what that configuration would produce -- the registered pool4
// addresses, effective filtering timeouts -- which is exactly what an operator needs
// before rolling a config out to the real daemon.
package main

import "github.com/anthropic-labs/nat64core/cmd/nat64ctl/commands"

func main() {
	commands.Execute()
}
