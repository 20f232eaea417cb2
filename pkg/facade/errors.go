package facade

import "fmt"

// MissingResponseError means the device never answered a request within
// its timeout.
type MissingResponseError struct {
	Request string
}

func (e *MissingResponseError) Error() string {
	return fmt.Sprintf("facade: no response to %s", e.Request)
}

// NackResponseCode identifies why the device rejected a request.
type NackResponseCode = byte

// NackError means the device answered with an explicit NACK instead of
// the expected response type.
type NackError struct {
	Request      string
	ResponseCode NackResponseCode
}

func (e *NackError) Error() string {
	return fmt.Sprintf("facade: %s was nacked (code 0x%02x)", e.Request, e.ResponseCode)
}

// UnexpectedResponseTypeError means the device answered with a response
// message that was neither the expected type nor a NACK.
type UnexpectedResponseTypeError struct {
	Request string
	Got     interface{}
}

func (e *UnexpectedResponseTypeError) Error() string {
	return fmt.Sprintf("facade: %s got unexpected response %T", e.Request, e.Got)
}
