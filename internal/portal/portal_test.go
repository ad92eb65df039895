package portal_test

import (
	"strings"
	"testing"
	"time"

	"coherence/internal/portal"
	"coherence/internal/testing/mock"
	"coherence/internal/workspace"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestPortal_SimpleExpectSuccess(t *testing.T) {
	p := portal.New()

	result := p.Test(nil)

	assert.Equal(t, portal.ResultSuccess, result.Code)
	assert.Equal(t, "success", result.Result())
	assert.Empty(t, result.CallStack)
	assert.False(t, p.IsLive())
	assert.True(t, p.Done())
}

func TestTestPortal_SimpleExpectFailure(t *testing.T) {
	p := portal.New()
	p.SetRootStep(func(portal.Workspace, portal.DataStore) portal.TestResult {
		return portal.Failure("FAILURE")
	})

	result := p.Test(nil)

	assert.Equal(t, portal.ResultFailure, result.Code)
	assert.Equal(t, "failure", result.Result())
	assert.Equal(t, "FAILURE", result.Message)
	assert.Equal(t, portal.DefaultName, result.CallStack)
	assert.False(t, p.IsLive())
}

func TestTestPortal_WithChildExpectFailure(t *testing.T) {
	p := portal.New().Then("fail", func(portal.Workspace, portal.DataStore) portal.TestResult {
		return portal.Failure("FAILURE")
	})
	ws := workspace.NewSlackUserWorkspace()

	result := p.Test(ws)
	assert.Equal(t, portal.ResultPending, result.Code)
	assert.True(t, p.IsLive())

	result = p.Test(ws)
	assert.Equal(t, portal.ResultFailure, result.Code)
	assert.Equal(t, "failure", result.Result())
	assert.Equal(t, "FAILURE", result.Message)
	assert.False(t, p.IsLive())
}

func TestTestPortal_TimeoutExpectFailure(t *testing.T) {
	clock := mock.NewMockClock(time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC))
	p := portal.New(portal.WithTimeout(10*time.Millisecond), portal.WithClock(clock))
	p.SetRootStep(func(portal.Workspace, portal.DataStore) portal.TestResult {
		return portal.Pending()
	})
	ws := workspace.NewSlackUserWorkspace()

	result := p.Test(ws)
	assert.Equal(t, portal.ResultPending, result.Code)
	assert.True(t, p.IsLive())

	clock.Advance(5 * time.Millisecond)
	result = p.Test(ws)
	assert.Equal(t, portal.ResultPending, result.Code, "still within budget")

	clock.Advance(10 * time.Millisecond)
	result = p.Test(ws)
	assert.Equal(t, portal.ResultFailure, result.Code)
	assert.False(t, p.IsLive())
	assert.True(t, strings.HasPrefix(result.Message, "Time out occurred when calling "))
	assert.Equal(t, "Time out occurred when calling TestPortal", result.Message)
}

func TestTestPortal_TimeoutWithWallClock(t *testing.T) {
	p := portal.New(portal.WithTimeout(10 * time.Millisecond))
	p.SetRootStep(func(portal.Workspace, portal.DataStore) portal.TestResult {
		return portal.Pending()
	})

	result := p.Test(nil)
	require.Equal(t, portal.ResultPending, result.Code)

	time.Sleep(15 * time.Millisecond)

	result = p.Test(nil)
	assert.Equal(t, portal.ResultFailure, result.Code)
	assert.False(t, p.IsLive())
	assert.True(t, strings.HasPrefix(result.Message, portal.TimeoutMessagePrefix))
}

func TestTestPortal_TimeoutOfChainedStepIsRecorded(t *testing.T) {
	clock := mock.NewMockClock(time.Time{})
	invocations := 0
	p := portal.New(portal.WithName("portal"), portal.WithTimeout(time.Second), portal.WithClock(clock)).
		Then("await_reply", func(portal.Workspace, portal.DataStore) portal.TestResult {
			invocations++
			return portal.Pending()
		})

	p.Test(nil) // root
	p.Test(nil) // await_reply, first poll
	clock.Advance(2 * time.Second)
	result := p.Test(nil)

	assert.Equal(t, portal.ResultFailure, result.Code)
	assert.Equal(t, "Time out occurred when calling await_reply", result.Message)
	assert.Equal(t, "portal\n.then(await_reply)", result.CallStack)
	assert.Equal(t, 1, invocations, "timed-out step must not be invoked again")
}

func TestTestPortal_DataStorePersistedBetweenSteps(t *testing.T) {
	mockAction1 := func(ws portal.Workspace, data portal.DataStore) portal.TestResult {
		data["action1"] = "value1"
		return portal.Success()
	}
	mockAction2 := func(ws portal.Workspace, data portal.DataStore) portal.TestResult {
		data["action2"] = "value2"
		return portal.Success()
	}

	p := portal.New()
	p.Then("mock_action1", mockAction1).Then("mock_action2", mockAction2)
	ws := workspace.NewSlackUserWorkspace()

	// Run TestPortal initial run element
	p.Test(ws)
	// Run mock_action1
	p.Test(ws)
	assert.Equal(t, "value1", p.DataStore()["action1"])
	// Run mock_action2
	result := p.Test(ws)
	assert.Equal(t, "value1", p.DataStore()["action1"])
	assert.Equal(t, "value2", p.DataStore()["action2"])
	assert.Equal(t, portal.ResultSuccess, result.Code)
}

func TestTestPortal_FailedTestCallStack(t *testing.T) {
	p := portal.New()
	p.Then("mock_action1", func(portal.Workspace, portal.DataStore) portal.TestResult {
		return portal.Success()
	}).Then("mock_action2", func(portal.Workspace, portal.DataStore) portal.TestResult {
		return portal.Failure()
	})
	p.SetName("portal")
	ws := workspace.NewSlackUserWorkspace()

	p.Test(ws)
	p.Test(ws)
	result := p.Test(ws)

	assert.Equal(t, "portal\n.then(mock_action1)\n.then(mock_action2)", result.CallStack)
	assert.Len(t, p.SimpleCallStack(), 2)
}

func TestTestPortal_FailedTestWithProcessedEventCallStack(t *testing.T) {
	mockAction1 := func(ws portal.Workspace, data portal.DataStore) portal.TestResult {
		user, _ := ws.(*workspace.SlackUserWorkspace).User("")
		user.NextEvent()
		return portal.Success()
	}
	mockAction2 := func(portal.Workspace, portal.DataStore) portal.TestResult {
		return portal.Failure()
	}

	user1 := workspace.NewSlackUser("user1", "token")
	user1.LoadEvents(map[string]interface{}{"id": "1"})

	p := portal.New()
	p.Then("mock_action1", mockAction1).Then("mock_action2", mockAction2)
	p.SetName("portal")
	ws := workspace.NewSlackUserWorkspace()
	require.NoError(t, ws.AddSlackUserClient(user1))

	p.Test(ws)
	p.Test(ws)
	result := p.Test(ws)

	assert.Equal(t, "portal\n.then(mock_action1) - {\"id\": \"1\"}\n.then(mock_action2)", result.CallStack)
}

func TestTestPortal_ObservedUserSelectsEventSource(t *testing.T) {
	alice := workspace.NewSlackUser("alice", "a")
	bob := workspace.NewSlackUser("bob", "b")
	alice.LoadEvents(map[string]interface{}{"id": "alice-event"})
	bob.LoadEvents(map[string]interface{}{"id": "bob-event"})
	ws := workspace.NewSlackUserWorkspace()
	require.NoError(t, ws.AddSlackUserClient(alice))
	require.NoError(t, ws.AddSlackUserClient(bob))

	p := portal.New(portal.WithName("portal"), portal.WithObservedUser("bob")).
		Then("consume_all", func(portal.Workspace, portal.DataStore) portal.TestResult {
			alice.NextEvent()
			bob.NextEvent()
			return portal.Success()
		}).
		Then("fail", func(portal.Workspace, portal.DataStore) portal.TestResult {
			return portal.Failure()
		})

	var result portal.TestResult
	for !p.Done() {
		result = p.Test(ws)
	}

	assert.Equal(t, "portal\n.then(consume_all) - {\"id\": \"bob-event\"}\n.then(fail)", result.CallStack)
}

func TestTestPortal_FailedTestWithRuntimeError(t *testing.T) {
	mockAction1 := func(portal.Workspace, portal.DataStore) portal.TestResult {
		var message []string
		return portal.Success(message[10]) // index out of range
	}

	p := portal.New()
	p.Then("mock_action1", mockAction1)
	p.SetName("portal")

	p.Test(nil)
	result := p.Test(nil)

	assert.Equal(t, portal.ResultFailure, result.Code)
	assert.Contains(t, result.Message, "mock_action1 panicked")
	assert.Equal(t, "portal\n.then(mock_action1)", result.CallStack)
	assert.False(t, p.IsLive())
}

func TestTestPortal_ErrorStep(t *testing.T) {
	p := portal.New(portal.WithName("portal")).
		ThenStep(portal.ErrorStep("lookup", func(portal.Workspace, portal.DataStore) (portal.TestResult, error) {
			return portal.Success(), assert.AnError
		}))

	p.Test(nil)
	result := p.Test(nil)

	assert.Equal(t, portal.ResultFailure, result.Code)
	assert.Equal(t, "lookup: "+assert.AnError.Error(), result.Message)
}

func TestTestPortal_BuildSimpleStackMessage(t *testing.T) {
	p := portal.New(portal.WithName("portal")).
		Then("mock1", nil).
		Then("mock2", nil)

	p.PushActionOntoStack(p.Head().Next())
	p.PushActionOntoStack(p.Head().Next().Next())

	assert.Equal(t, "portal\n.then(mock1)\n.then(mock2)", p.BuildSimpleStackMessage())
}

func TestTestPortal_PushActionOntoStack(t *testing.T) {
	p := portal.New().Then("some_function", nil)

	p.PushActionOntoStack(p.Head().Next())

	require.Len(t, p.SimpleCallStack(), 1)
	assert.Equal(t, "some_function", p.SimpleCallStack()[0].Name)
	assert.Empty(t, p.SimpleCallStack()[0].Data)
}

func TestTestPortal_SetCleanUp(t *testing.T) {
	called := 0
	cleanUp := func(portal.Workspace) { called++ }

	p := portal.New().SetCleanUp(cleanUp)

	require.NotNil(t, p.CleanUp())
	p.CleanUp()(nil)
	assert.Equal(t, 1, called)
}

func TestTestPortal_CleanUpRunsOnceOnFailure(t *testing.T) {
	var cleanedWith portal.Workspace
	calls := 0
	ws := workspace.NewSlackUserWorkspace()

	p := portal.New().
		Then("fail", func(portal.Workspace, portal.DataStore) portal.TestResult {
			return portal.Failure("boom")
		}).
		SetCleanUp(func(w portal.Workspace) {
			calls++
			cleanedWith = w
		})

	p.Test(ws)
	assert.Equal(t, 0, calls, "clean-up must not run before a failure")

	result := p.Test(ws)
	assert.Equal(t, portal.ResultFailure, result.Code)
	assert.Equal(t, 1, calls)
	assert.Same(t, ws, cleanedWith)

	again := p.Test(ws)
	assert.Equal(t, result, again, "terminal failure is sticky")
	assert.Equal(t, 1, calls, "clean-up runs exactly once")
}

func TestTestPortal_CleanUpNotRunOnSuccess(t *testing.T) {
	calls := 0
	p := portal.New().
		Then("ok", func(portal.Workspace, portal.DataStore) portal.TestResult { return portal.Success() }).
		SetCleanUp(func(portal.Workspace) { calls++ })

	for !p.Done() {
		p.Test(nil)
	}
	assert.Equal(t, 0, calls)
}

func TestTestPortal_CleanUpPanicIsContained(t *testing.T) {
	p := portal.New().
		SetRootStep(func(portal.Workspace, portal.DataStore) portal.TestResult { return portal.Failure("root failed") }).
		SetCleanUp(func(portal.Workspace) { panic("clean-up exploded") })

	var result portal.TestResult
	assert.NotPanics(t, func() { result = p.Test(nil) })
	assert.Equal(t, "root failed", result.Message)
}

func TestTestPortal_CompletedChainIsIdempotent(t *testing.T) {
	runs := 0
	p := portal.New().Then("count", func(portal.Workspace, portal.DataStore) portal.TestResult {
		runs++
		return portal.Success("counted")
	})

	p.Test(nil)
	first := p.Test(nil)
	require.Equal(t, portal.ResultSuccess, first.Code)

	for i := 0; i < 3; i++ {
		again := p.Test(nil)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, 1, runs)
	assert.False(t, p.IsLive())

	last, ok := p.LastResult()
	require.True(t, ok)
	assert.Equal(t, "counted", last.Message)
}

func TestTestPortal_PendingStepIsReinvoked(t *testing.T) {
	polls := 0
	p := portal.New().Then("poll_three_times", func(portal.Workspace, portal.DataStore) portal.TestResult {
		polls++
		if polls < 3 {
			return portal.Pending()
		}
		return portal.Success()
	})

	codes := []portal.ResultCode{}
	for !p.Done() {
		codes = append(codes, p.Test(nil).Code)
	}

	assert.Equal(t, []portal.ResultCode{
		portal.ResultPending, // root succeeded, chain continues
		portal.ResultPending,
		portal.ResultPending,
		portal.ResultSuccess,
	}, codes)
	assert.Equal(t, 3, polls)
}

func TestTestPortal_Restart(t *testing.T) {
	attempts := 0
	p := portal.New(portal.WithName("portal")).Then("flaky", func(ws portal.Workspace, data portal.DataStore) portal.TestResult {
		attempts++
		data["attempts"] = attempts
		if attempts == 1 {
			return portal.Failure("first attempt")
		}
		return portal.Success()
	})

	p.Test(nil)
	result := p.Test(nil)
	require.Equal(t, portal.ResultFailure, result.Code)
	require.Len(t, p.SimpleCallStack(), 1)

	p.Restart()
	assert.False(t, p.IsLive())
	assert.False(t, p.Done())
	assert.Empty(t, p.SimpleCallStack())
	assert.Equal(t, 1, p.DataStore()["attempts"], "data store survives restart")

	p.Test(nil)
	result = p.Test(nil)
	assert.Equal(t, portal.ResultSuccess, result.Code)
	assert.Equal(t, 2, p.DataStore()["attempts"])
}

func TestTestPortal_StepObserver(t *testing.T) {
	clock := mock.NewMockClock(time.Time{})
	var reports []portal.StepReport
	polls := 0

	p := portal.New(
		portal.WithName("portal"),
		portal.WithClock(clock),
		portal.WithStepObserver(func(r portal.StepReport) { reports = append(reports, r) }),
	).Then("slow", func(portal.Workspace, portal.DataStore) portal.TestResult {
		polls++
		clock.Advance(time.Second)
		if polls < 2 {
			return portal.Pending()
		}
		return portal.Success()
	})

	for !p.Done() {
		p.Test(nil)
	}

	require.Len(t, reports, 2)
	assert.Equal(t, "portal", reports[0].Name)
	assert.True(t, reports[0].Root)
	assert.Equal(t, "slow", reports[1].Name)
	assert.False(t, reports[1].Root)
	assert.Equal(t, 2, reports[1].Polls)
	assert.Equal(t, 2*time.Second, reports[1].Elapsed)
	assert.Equal(t, portal.ResultSuccess, reports[1].Result.Code)
}

func TestTestPortal_Accessors(t *testing.T) {
	p := portal.New(portal.WithName("greeting"), portal.WithTimeout(time.Minute))

	assert.Equal(t, "greeting", p.Name())
	assert.Equal(t, time.Minute, p.Timeout())
	assert.False(t, p.IsLive())
	assert.NotNil(t, p.DataStore())
	assert.Empty(t, p.SimpleCallStack())
	assert.Empty(t, p.CurrentStepName())

	assert.Equal(t, portal.NoTimeout, portal.New().Timeout())
}

func TestTestPortal_FluentConfiguration(t *testing.T) {
	clock := mock.NewMockClock(time.Time{})
	bob := workspace.NewSlackUser("bob", "b")
	bob.LoadEvents(map[string]interface{}{"id": "2"})
	ws := workspace.NewSlackUserWorkspace()
	require.NoError(t, ws.AddSlackUserClient(workspace.NewSlackUser("alice", "a")))
	require.NoError(t, ws.AddSlackUserClient(bob))

	p := portal.New(portal.WithClock(clock)).
		SetName("fluent").
		SetTimeout(time.Second).
		SetObservedUser("bob").
		Then("consume", func(portal.Workspace, portal.DataStore) portal.TestResult {
			bob.NextEvent()
			return portal.Success()
		}).
		Then("stall", func(portal.Workspace, portal.DataStore) portal.TestResult {
			return portal.Pending()
		})

	assert.Equal(t, time.Second, p.Timeout())

	p.Test(ws) // root
	p.Test(ws) // consume
	p.Test(ws) // stall, first poll
	clock.Advance(2 * time.Second)
	result := p.Test(ws)

	assert.Equal(t, "Time out occurred when calling stall", result.Message)
	assert.Equal(t, "fluent\n.then(consume) - {\"id\": \"2\"}\n.then(stall)", result.CallStack)
}

func TestTestPortal_SnapshotKeptAcrossPolls(t *testing.T) {
	user := workspace.NewSlackUser("user1", "token")
	user.LoadEvents(map[string]interface{}{"id": "1"}, map[string]interface{}{"id": "2"})
	ws := workspace.NewSlackUserWorkspace()
	require.NoError(t, ws.AddSlackUserClient(user))

	polls := 0
	p := portal.New(portal.WithName("portal")).
		Then("consume_then_wait", func(portal.Workspace, portal.DataStore) portal.TestResult {
			polls++
			if polls == 1 {
				user.NextEvent()
				return portal.Pending()
			}
			return portal.Success()
		}).
		Then("fail", func(portal.Workspace, portal.DataStore) portal.TestResult {
			return portal.Failure()
		})

	var result portal.TestResult
	for !p.Done() {
		result = p.Test(ws)
	}

	assert.Equal(t, "portal\n.then(consume_then_wait) - {\"id\": \"1\"}\n.then(fail)", result.CallStack)
}

type countingStep struct {
	resets int
	polls  int
}

func (s *countingStep) Name() string { return "counting" }

func (s *countingStep) Run(portal.Workspace, portal.DataStore) portal.TestResult {
	s.polls++
	return portal.Pending()
}

func (s *countingStep) Reset() { s.resets++ }

func TestTestPortal_ResetCalledWhenStepBegins(t *testing.T) {
	clock := mock.NewMockClock(time.Time{})
	step := &countingStep{}
	p := portal.New(portal.WithTimeout(time.Second), portal.WithClock(clock)).ThenStep(step)

	p.Test(nil)
	p.Test(nil)
	p.Test(nil)
	assert.Equal(t, 1, step.resets, "reset once when the step starts, not on every poll")

	clock.Advance(2 * time.Second)
	require.Equal(t, portal.ResultFailure, p.Test(nil).Code)

	p.Restart()
	p.Test(nil)
	p.Test(nil)
	assert.Equal(t, 2, step.resets)
}
