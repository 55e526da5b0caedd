// Package contract exposes the engine through the DSCEngine contract ABI:
// calldata in, return data or revert data out, and event logs encoded the
// way the contract emits them. Clients written against the on-chain engine
// can talk to this service without changes to their encoding layer.
package contract

import (
	"bytes"
	_ "embed"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

//go:embed dscengine.abi.json
var abiJSON []byte

var parsedABI = mustParseABI()

func mustParseABI() abi.ABI {
	parsed, err := abi.JSON(bytes.NewReader(abiJSON))
	if err != nil {
		panic(fmt.Sprintf("parse embedded DSCEngine ABI: %v", err))
	}
	return parsed
}

// ABI returns the parsed DSCEngine ABI.
func ABI() abi.ABI {
	return parsedABI
}

// RawABI is the embedded ABI JSON, served to clients that want to build
// their own bindings.
func RawABI() []byte {
	out := make([]byte, len(abiJSON))
	copy(out, abiJSON)
	return out
}

// Pack encodes a call to method, selector included. Amount arguments must
// be *big.Int, as with any go-ethereum binding.
func Pack(method string, args ...interface{}) ([]byte, error) {
	return parsedABI.Pack(method, args...)
}

// Unpack decodes return data for method.
func Unpack(method string, data []byte) ([]interface{}, error) {
	return parsedABI.Unpack(method, data)
}
