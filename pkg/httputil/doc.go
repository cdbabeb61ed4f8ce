// Package httputil provides the retry policy used by the family tree
// service client.
//
// # Retry
//
// [Retry] runs an operation with exponential backoff, retrying only errors
// wrapped in [RetryableError]. [CheckResponse] classifies HTTP responses:
//
//   - 2xx: success
//   - 429 and 5xx: [StatusError] wrapped in [RetryableError]
//   - other 4xx: [StatusError], returned immediately
//
// Network errors should be wrapped by the caller:
//
//	err := httputil.Retry(ctx, 3, time.Second, func() error {
//	    resp, err := client.Do(req)
//	    if err != nil {
//	        return &httputil.RetryableError{Err: err}
//	    }
//	    defer resp.Body.Close()
//	    return httputil.CheckResponse(resp)
//	})
package httputil
