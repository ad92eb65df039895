// Package portal implements the TestPortal, a sequential and resumable
// test-step orchestrator driven by cooperative polling.
//
// A portal owns a chain of steps. The first unit of work is the portal's own
// root step, which succeeds unless replaced with SetRootStep. Every chained
// step follows in the order it was added with Then:
//
//	p := portal.New(portal.WithName("greeting"), portal.WithTimeout(30*time.Second)).
//	    Then("post_hello", postHello).
//	    Then("await_reply", awaitReply).
//	    SetCleanUp(resetWorkspace)
//
//	for {
//	    result := p.Test(ws)
//	    if result.IsTerminal() {
//	        break
//	    }
//	    time.Sleep(pollInterval)
//	}
//
// # Polling
//
// Test never blocks. Each call runs at most one invocation of the current
// step and returns:
//   - pending, when the step asked to be polled again or when it succeeded and
//     another step follows it;
//   - success, when the last step of the chain succeeded;
//   - failure, when any step failed, timed out or panicked.
//
// Once a terminal result has been returned, later calls return the same
// result until Restart is called.
//
// # Timeouts
//
// Each unit of work has its own budget measured from its first invocation.
// When a live step exceeds it, the next poll does not invoke the step again
// and fails with a message starting with "Time out occurred when calling ".
//
// # Call stack
//
// Failures carry a readable trace headed by the portal name, one line per
// chained step that terminated:
//
//	greeting
//	.then(post_hello)
//	.then(await_reply) - {"id": "1", "text": "hi"}
//
// A step that marked one of the observed user's events as processed gets the
// compact rendering of the first such event appended to its line.
//
// # Concurrency
//
// A portal is owned by a single driver and is not safe for concurrent use.
// Run several portals in parallel instead.
package portal
