package tickets

import "fmt"

// MalformedResponseError reports a backend result whose shape breaks the
// contract, such as a success without a ticket id or an empty search with
// no explanation.
type MalformedResponseError struct {
	Op     string
	Reason string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed %s response: %s", e.Op, e.Reason)
}

func malformed(op, format string, args ...any) error {
	return &MalformedResponseError{Op: op, Reason: fmt.Sprintf(format, args...)}
}

// ValidateCreation checks that r is a well-formed creation result.
func ValidateCreation(r *CreationResult) error {
	const op = "create"
	if r == nil {
		return malformed(op, "nil result")
	}
	if !r.Success {
		if r.Error == "" {
			return malformed(op, "failure without error text")
		}
		return nil
	}
	if r.TicketID == "" {
		return malformed(op, "success without ticket id")
	}
	return nil
}

// ValidateQuery checks that r is a well-formed query result. Empty search
// results must carry a message explaining that nothing matched.
func ValidateQuery(r *QueryResult) error {
	const op = "query"
	if r == nil {
		return malformed(op, "nil result")
	}
	if !r.Success {
		if r.Error == "" {
			return malformed(op, "failure without error text")
		}
		return nil
	}
	if r.Data == nil {
		return nil
	}
	if !r.Data.IsList() {
		rec := r.Data.Record()
		if rec == nil {
			return malformed(op, "single-record data without a record")
		}
		if rec.ID == "" {
			return malformed(op, "record without id")
		}
		return nil
	}
	records := r.Data.Records()
	if len(records) == 0 && r.Message == "" {
		return malformed(op, "empty result set without a message")
	}
	for i, rec := range records {
		if rec.ID == "" {
			return malformed(op, "record %d without id", i)
		}
	}
	return nil
}
