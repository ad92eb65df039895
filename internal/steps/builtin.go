package steps

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"coherence/internal/portal"
	"coherence/internal/workspace"
	"coherence/pkg/logging"
)

// Built-in action names.
const (
	ActionPostMessage = "post_message"
	ActionAwaitEvent  = "await_event"
	ActionStore       = "store"
	ActionExpectData  = "expect_data"
	ActionWait        = "wait"
	ActionFail        = "fail"
)

const waitStartedKey = "started"

func builtins() []Action {
	return []Action{
		{
			Name:        ActionPostMessage,
			Description: "Post a message to a channel as a workspace user",
			Required:    []string{"channel", "text"},
			Run:         postMessage,
		},
		{
			Name:        ActionAwaitEvent,
			Description: "Wait until a user receives a matching event and consume it",
			Run:         awaitEvent,
		},
		{
			Name:        ActionStore,
			Description: "Write a value to the data store",
			Required:    []string{"key", "value"},
			Run:         store,
		},
		{
			Name:        ActionExpectData,
			Description: "Fail unless a data store value equals the expected one",
			Required:    []string{"key", "equals"},
			Run:         expectData,
		},
		{
			Name:        ActionWait,
			Description: "Stay pending until a duration has elapsed",
			Required:    []string{"duration"},
			Run:         wait,
		},
		{
			Name:        ActionFail,
			Description: "Fail immediately with a message",
			Run:         fail,
		},
	}
}

// post_message {as, channel, text, store_as}
func postMessage(ctx *Context, args Args) portal.TestResult {
	chat, err := ctx.Chat()
	if err != nil {
		return portal.Failure(err.Error())
	}
	channel, err := requiredString(args, "channel")
	if err != nil {
		return portal.Failure(err.Error())
	}
	text, _, err := stringArg(args, "text")
	if err != nil {
		return portal.Failure(err.Error())
	}

	sender, err := resolveUser(chat, args)
	if err != nil {
		return portal.Failure(err.Error())
	}

	resp, err := chat.PostMessage(sender.Username(), channel, text)
	if err != nil {
		return portal.Failuref("post_message: %v", err)
	}
	if key, ok, _ := stringArg(args, "store_as"); ok && key != "" {
		ctx.Data[key] = resp
	}

	logging.Debug(subsystem, "%s posted to %s as %s", ctx.Step, channel, sender.Username())
	return portal.Success(fmt.Sprintf("posted to %s", channel))
}

// await_event {as, type, contains, match, store_as}
func awaitEvent(ctx *Context, args Args) portal.TestResult {
	chat, err := ctx.Chat()
	if err != nil {
		return portal.Failure(err.Error())
	}
	user, err := resolveUser(chat, args)
	if err != nil {
		return portal.Failure(err.Error())
	}

	eventType, _, err := stringArg(args, "type")
	if err != nil {
		return portal.Failure(err.Error())
	}
	contains, _, err := stringArg(args, "contains")
	if err != nil {
		return portal.Failure(err.Error())
	}
	match, err := mapArg(args, "match")
	if err != nil {
		return portal.Failure(err.Error())
	}

	event, found := user.FindEvent(func(e *workspace.Event) bool {
		if eventType != "" && e.Type() != eventType {
			return false
		}
		if contains != "" {
			text, _ := e.Field("text")
			if !strings.Contains(text, contains) {
				return false
			}
		}
		for key, want := range match {
			got, ok := e.Field(key)
			if !ok || !valuesEqual(got, want) {
				return false
			}
		}
		return true
	})
	if !found {
		return portal.Pending()
	}

	if key, ok, _ := stringArg(args, "store_as"); ok && key != "" {
		ctx.Data[key] = event.Payload
	}
	return portal.Success()
}

// store {key, value}
func store(ctx *Context, args Args) portal.TestResult {
	key, err := requiredString(args, "key")
	if err != nil {
		return portal.Failure(err.Error())
	}
	ctx.Data[key] = args["value"]
	return portal.Success()
}

// expect_data {key, equals}
func expectData(ctx *Context, args Args) portal.TestResult {
	key, err := requiredString(args, "key")
	if err != nil {
		return portal.Failure(err.Error())
	}
	got, ok := ctx.Data[key]
	if !ok {
		return portal.Failuref("expected %s in data store", key)
	}
	want := args["equals"]
	if !valuesEqual(got, want) {
		return portal.Failuref("expected %s to equal %v, got %v", key, want, got)
	}
	return portal.Success()
}

// wait {duration}
func wait(ctx *Context, args Args) portal.TestResult {
	raw, err := requiredString(args, "duration")
	if err != nil {
		return portal.Failure(err.Error())
	}
	duration, err := time.ParseDuration(raw)
	if err != nil {
		return portal.Failuref("invalid duration %q: %v", raw, err)
	}

	now := ctx.Clock.Now()
	started, ok := ctx.State[waitStartedKey].(time.Time)
	if !ok {
		started = now
		ctx.State[waitStartedKey] = started
	}
	if now.Sub(started) < duration {
		return portal.Pending()
	}
	return portal.Success()
}

// fail {message}
func fail(ctx *Context, args Args) portal.TestResult {
	message, _, err := stringArg(args, "message")
	if err != nil {
		return portal.Failure(err.Error())
	}
	if message == "" {
		message = fmt.Sprintf("%s failed", ctx.Step)
	}
	return portal.Failure(message)
}

func resolveUser(chat Chat, args Args) (*workspace.SlackUser, error) {
	username, _, err := stringArg(args, "as")
	if err != nil {
		return nil, err
	}
	user, ok := chat.User(username)
	if !ok {
		if username == "" {
			return nil, fmt.Errorf("workspace has no users")
		}
		return nil, fmt.Errorf("%w: %s", workspace.ErrUserNotFound, username)
	}
	return user, nil
}

// valuesEqual compares YAML-decoded and templated values, which may differ
// in representation but not in meaning (3 and "3").
func valuesEqual(a, b interface{}) bool {
	if reflect.DeepEqual(a, b) {
		return true
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}
