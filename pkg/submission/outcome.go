package submission

// EntryResult is the delivery result for one recipient, in submission order.
type EntryResult struct {
	Email     string `json:"email"`
	Succeeded bool   `json:"succeeded"`
	Message   string `json:"message,omitempty"`
	// MessageID is the provider's identifier when one was returned.
	MessageID string `json:"message_id,omitempty"`
}

// Outcome aggregates the results of one completed attempt.
type Outcome struct {
	Results   []EntryResult `json:"results"`
	Succeeded bool          `json:"succeeded"`
}

// NewOutcome builds an outcome whose overall flag is true only when there is
// at least one result and every result succeeded.
func NewOutcome(results []EntryResult) Outcome {
	out := Outcome{Results: append([]EntryResult(nil), results...)}
	out.Succeeded = len(out.Results) > 0
	for _, result := range out.Results {
		if !result.Succeeded {
			out.Succeeded = false
			break
		}
	}
	return out
}

// Failed returns the results that did not succeed.
func (o Outcome) Failed() []EntryResult {
	var out []EntryResult
	for _, result := range o.Results {
		if !result.Succeeded {
			out = append(out, result)
		}
	}
	return out
}

// Counts returns the number of succeeded and failed results.
func (o Outcome) Counts() (succeeded, failed int) {
	for _, result := range o.Results {
		if result.Succeeded {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed
}

// Clone returns an independent copy.
func (o Outcome) Clone() Outcome {
	return Outcome{Results: append([]EntryResult(nil), o.Results...), Succeeded: o.Succeeded}
}
