// Package shell provides an interactive console for driving one scenario's
// portal by hand.
//
// A Session owns the portal and simulated workspace built from a scenario and
// executes text commands against them; the REPL reads those commands through
// readline with history and tab completion. Keeping the two apart lets the
// command set be exercised without a terminal.
//
// Commands:
//
//	step                          poll the portal once
//	run                           poll until the chain terminates
//	deliver <user> <json>         load an event into a user's queue
//	post <user> <channel> <text>  post a message as a user
//	status                        show the portal state
//	stack                         show the call stack so far
//	data                          show the data store
//	users                         list users and their pending events
//	restart                       return the portal to idle
//	help                          list commands
//	exit                          leave the shell
package shell
