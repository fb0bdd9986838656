package discovery

import "fmt"

func errEmptyResponse(method string) error {
	return fmt.Errorf("%s: empty response", method)
}

func errUnexpectedShape(method string, got interface{}) error {
	return fmt.Errorf("%s: unexpected result shape %T", method, got)
}
