// Package batch reduces per-item update results into the single status a
// bulk endpoint reports.
package batch

import "net/http"

// Outcome accumulates per-item results while a bulk operation walks its
// input. One item's failure never stops the walk.
type Outcome struct {
	Success []string `json:"success"`
	Fail    []string `json:"fail"`

	// skipped holds IDs that resolved to no entity. They count toward
	// neither list: a batch of only-unknown IDs classifies as 304, the
	// same as an empty batch.
	skipped []string
}

func (o *Outcome) Succeed(id string) { o.Success = append(o.Success, id) }
func (o *Outcome) Failed(id string)  { o.Fail = append(o.Fail, id) }
func (o *Outcome) Skip(id string)    { o.skipped = append(o.skipped, id) }

// Skipped returns the not-found IDs, for logging.
func (o *Outcome) Skipped() []string { return o.skipped }

// Response is the wire body of a bulk endpoint, with both lists non-nil so
// clients always see arrays.
func (o *Outcome) Response() map[string]any {
	success, fail := o.Success, o.Fail
	if success == nil {
		success = []string{}
	}
	if fail == nil {
		fail = []string{}
	}
	return map[string]any{"success": success, "fail": fail}
}

// Status classifies the outcome. Precedence:
//
//	some succeeded, none failed  -> 200
//	none succeeded, some failed  -> 403
//	both populated               -> 405 (partial batch failure)
//	both empty                   -> 304 (nothing to do)
func (o *Outcome) Status() int {
	switch {
	case len(o.Success) >= 1 && len(o.Fail) == 0:
		return http.StatusOK
	case len(o.Success) == 0 && len(o.Fail) >= 1:
		return http.StatusForbidden
	case len(o.Success) >= 1 && len(o.Fail) >= 1:
		return http.StatusMethodNotAllowed
	default:
		return http.StatusNotModified
	}
}
