package transport

import (
	"fmt"

	"github.com/nativecql/cqldriver/frame"
)

// responseAsError converts a server ERROR response into a Go error; any
// other response type is wrapped as an unexpected-response error.
func responseAsError(res frame.Response) error {
	if v, ok := res.(frame.CodedError); ok {
		return v
	}
	return fmt.Errorf("unexpected response %T, %+v", res, res)
}
