// Package mock provides test doubles shared across coherence packages.
//
// MockClock drives portal timeouts and wait steps without sleeping.
// WebhookServer records the notifications posted to an incoming webhook:
//
//	hook := mock.NewWebhookServer()
//	defer hook.Close()
//	notifier := notify.NewWebhook(hook.URL())
//	...
//	texts := hook.Texts()
package mock
