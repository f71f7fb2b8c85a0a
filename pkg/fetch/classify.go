package fetch

import "fmt"

// Status is the three-way classification of an Outcome.
type Status string

const (
	// StatusOK is a fetched and delivered payload.
	StatusOK Status = "ok"

	// StatusNotFound is a resource the remote side does not have.
	StatusNotFound Status = "not_found"

	// StatusError is any other failure.
	StatusError Status = "error"
)

// Statuses returns every status in report order.
func Statuses() []Status {
	return []Status{StatusOK, StatusNotFound, StatusError}
}

// Classify maps an outcome to its status. It is pure and total over the
// outcomes produced by Ok, NotFound and Failed.
func Classify(o Outcome) Status {
	switch o.kind {
	case kindOK:
		return StatusOK
	case kindNotFound:
		return StatusNotFound
	case kindTransportError:
		return StatusError
	default:
		panic(fmt.Sprintf("fetch: unclassifiable outcome kind %d", o.kind))
	}
}
