package hashfunction

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/go-faster/city"
	"github.com/google/uuid"
	"github.com/spaolacci/murmur3"
)

type HashFunctionType int

/* Pre-defined hash functions */
const (
	HashFunctionIdent  = HashFunctionType(0)
	HashFunctionMurmur = HashFunctionType(1)
	HashFunctionCity   = HashFunctionType(2)
)

var (
	errUnknownValueType = func(v any, hf HashFunctionType) error {
		return fmt.Errorf("unknown type of value that the hash will be calculated from: %T for %s hash type", v, ToString(hf))
	}
)

// EncodeUInt64 encodes the input as uvarint into a fixed 8 byte buffer
// (10 bytes for values that do not fit into 56 bits).
func EncodeUInt64(input uint64) []byte {
	const ENCODING_BYTES_BIG = binary.MaxVarintLen64
	const ENCODING_BYTES = 8
	const BOUND = 1 << 56 /* 72057594037927936 */

	sz := ENCODING_BYTES
	if input >= BOUND {
		sz = ENCODING_BYTES_BIG
	}

	buf := make([]byte, sz)
	binary.PutUvarint(buf, input)
	return buf
}

func toBytes(input any, hf HashFunctionType) ([]byte, error) {
	switch v := input.(type) {
	case int:
		return EncodeUInt64(uint64(v)), nil
	case int32:
		return EncodeUInt64(uint64(v)), nil
	case int64:
		return EncodeUInt64(uint64(v)), nil
	case uint32:
		return EncodeUInt64(uint64(v)), nil
	case uint64:
		return EncodeUInt64(v), nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, errUnknownValueType(input, hf)
	}
}

func ApplyMurmurHashFunction(input any) (uint32, error) {
	buf, err := toBytes(input, HashFunctionMurmur)
	if err != nil {
		return 0, err
	}
	return murmur3.Sum32(buf), nil
}

func ApplyCityHashFunction(input any) (uint32, error) {
	buf, err := toBytes(input, HashFunctionCity)
	if err != nil {
		return 0, err
	}
	return city.Hash32(buf), nil
}

/*
* ApplyHashFunction maps a sharding value onto a non-negative integer
* suitable for modulo sharding. Identity keeps integers as is, strings
* that look like UUIDs are validated and hashed by their canonical form.
 */
func ApplyHashFunction(input any, hf HashFunctionType) (uint64, error) {
	switch hf {
	case HashFunctionIdent:
		switch v := input.(type) {
		case int:
			return absInt(int64(v)), nil
		case int32:
			return absInt(int64(v)), nil
		case int64:
			return absInt(v), nil
		case uint32:
			return uint64(v), nil
		case uint64:
			return v, nil
		case string:
			if len(v) == 36 && strings.Count(v, "-") == 4 {
				if err := uuid.Validate(strings.ToLower(v)); err != nil {
					return 0, err
				}
				return uint64(murmur3.Sum32([]byte(strings.ToLower(v)))), nil
			}
			return uint64(murmur3.Sum32([]byte(v))), nil
		case []byte:
			return uint64(murmur3.Sum32(v)), nil
		default:
			return 0, errUnknownValueType(input, hf)
		}
	case HashFunctionMurmur:
		v, err := ApplyMurmurHashFunction(input)
		return uint64(v), err
	case HashFunctionCity:
		v, err := ApplyCityHashFunction(input)
		return uint64(v), err
	default:
		return 0, fmt.Errorf("unknown hash function type: %d", hf)
	}
}

func absInt(v int64) uint64 {
	if v < 0 {
		return uint64(-v)
	}
	return uint64(v)
}

// HashFunctionByName returns the corresponding HashFunctionType based on the given hash function name.
func HashFunctionByName(hfn string) (HashFunctionType, error) {
	switch hfn {
	case "identity", "ident", "":
		return HashFunctionIdent, nil
	case "murmur":
		return HashFunctionMurmur, nil
	case "city":
		return HashFunctionCity, nil
	default:
		return 0, fmt.Errorf("unknown hash function type: %s", hfn)
	}
}

// ToString converts a HashFunctionType to its corresponding string representation.
// If the input HashFunctionType is not recognized, an empty string is returned.
func ToString(hf HashFunctionType) string {
	switch hf {
	case HashFunctionIdent:
		return "identity"
	case HashFunctionMurmur:
		return "murmur"
	case HashFunctionCity:
		return "city"
	}
	return ""
}
