// Package events carries the session's observability events and the
// asynchronous dispatcher that delivers them to a configured sink.
//
// Events are advisory: nothing in the request pipeline or the toggle
// reconciler blocks on a slow sink, and a full buffer drops events rather
// than stalling a request. The drop count is observable through
// [Dispatcher.Dropped].
package events
