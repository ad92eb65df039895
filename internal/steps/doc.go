// Package steps implements the actions scenario files chain onto a portal.
//
// A Registry maps action names to bodies. Registry.Build wraps an action and
// its arguments into a portal.Step; on every poll the arguments are rendered
// against the portal's data store before the body runs, so a step can use
// values stored by earlier ones:
//
//	- id: ask
//	  action: post_message
//	  args: {as: alice, channel: support, text: "order {{ .order_id }}"}
//	- id: reply
//	  action: await_event
//	  args: {as: alice, type: message, contains: "{{ .order_id }}", store_as: reply}
//
// Built-in actions are post_message, await_event, store, expect_data, wait
// and fail.
package steps
