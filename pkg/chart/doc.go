// Package chart holds the state of an open pedigree chart and applies user
// events to it.
//
// A chart is a [State]: the merged payload, the selection, the current view
// and a status line. Events arrive from the embedded chart script as JSON
// and are decoded into typed values with [DecodeEvent]:
//
//	ev, err := chart.DecodeEvent(body)
//	up, err := dispatcher.Dispatch(ctx, st, ev)
//	if errors.Is(err, errors.ErrCodeBusy) {
//	    // an expansion is still running
//	}
//
// Selecting only restyles the chart. Expanding fetches a delta from the
// [source.Source], merges it, lays the chart out again and pans so the
// clicked element stays where the user saw it.
package chart
