package ipc

import (
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// encMode writes Core Deterministic CBOR (sorted map keys, smallest
// integer encoding). Timestamps go out as RFC 3339 text so nanoseconds
// survive the trip.
var encMode cbor.EncMode

// decMode decodes any-typed values into map[string]any and int64 so
// payloads look the same on both sides of the socket.
var decMode cbor.DecMode

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	encOptions.Time = cbor.TimeRFC3339Nano
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("ipc: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
		IntDec:         cbor.IntDecConvertSigned,
	}.DecMode()
	if err != nil {
		panic("ipc: CBOR decoder initialization failed: " + err.Error())
	}
}

func marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

func unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// CBOR is self-delimiting, so frames are written back to back with no
// length prefix.
func newEncoder(w io.Writer) *cbor.Encoder {
	return encMode.NewEncoder(w)
}

func newDecoder(r io.Reader) *cbor.Decoder {
	return decMode.NewDecoder(r)
}
