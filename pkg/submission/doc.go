// Package submission coordinates a single bulk send attempt. The Orchestrator
// drives a small state machine (Idle, ValidatingLocally, AcquiringCredential,
// Dispatching, then Succeeded or Failed) over two external capabilities: a
// CredentialProvider that must confirm a sending credential, and a Dispatcher
// that delivers the batch. The phases run strictly in order and a second
// Submit is rejected with ErrInFlight while one attempt is running.
//
// Collaborator failures are caught and converted into *Error values carrying
// a kind and a human-readable message; partial delivery is reported entry by
// entry through Outcome rather than collapsed into one flag. Completed outcomes
// are handed to a Reporter for presentation.
package submission
