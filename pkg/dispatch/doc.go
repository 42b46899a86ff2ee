// Package dispatch delivers rendered messages. A Transport wraps one provider
// (see the resend and smtp subpackages, plus the DryRun transport here) and a
// Service adapts it to the submission capabilities so an orchestrator can
// verify the credential and send a batch without knowing the provider.
package dispatch
