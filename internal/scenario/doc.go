// Package scenario loads, validates and builds YAML test scenarios.
//
// A scenario describes a simulated chat workspace and a chain of steps run
// against it:
//
//	name: refund-request
//	description: Support bot answers a refund question
//	tags: [support, smoke]
//	timeout: 5s
//	observe: bot
//	users:
//	  - username: alice
//	    token: xoxp-alice
//	  - username: bot
//	    token: xoxb-bot
//	data:
//	  order_id: "1234"
//	steps:
//	  - id: ask
//	    action: post_message
//	    args: {as: alice, channel: support, text: "refund for {{ .order_id }}?"}
//	  - id: bot-receives
//	    action: await_event
//	    args: {as: bot, type: message, contains: refund, store_as: question}
//	cleanup:
//	  - action: post_message
//	    args: {as: bot, channel: support, text: "sorry, something went wrong"}
//
// Build turns a scenario into a portal and a freshly populated workspace.
// Timeouts apply to each step. Clean-up steps run only when the chain fails.
package scenario
