// Package credential provides reusable "ensure credential" capabilities:
// presence checks for configured secrets, chaining, and a TTL cache around a
// transport's live verification.
package credential
