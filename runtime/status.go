package runtime

// StatusCode maps a Result onto the HTTP status a host adapter should
// report (spec §7): 500 for a fatal context-level trap, 400 for a
// guest-surfaced validation error, 200 otherwise. mtperr.Error already
// carries this distinction; StatusCode just exposes it at the Result
// level so a host never needs to import mtperr itself to pick a status.
func (r *Result) StatusCode() int {
	if r.Error == nil {
		return 200
	}
	return r.Error.StatusCode()
}
