package keygen

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/pg-sharding/spqrkernel/pkg/models/shrule"
	"github.com/pg-sharding/spqrkernel/pkg/models/spqrerror"
	"github.com/samborkent/uuidv7"
)

const (
	TypeUUID     = "UUID"
	TypeUUIDV7   = "UUIDV7"
	TypeSequence = "SEQUENCE"

	PropStart     = "start"
	PropRangeSize = "range-size"
)

type UUIDGenerator struct{}

var _ shrule.KeyGenerator = UUIDGenerator{}

func (UUIDGenerator) Type() string {
	return TypeUUID
}

func (UUIDGenerator) NextKey() (any, error) {
	return uuid.NewString(), nil
}

// UUIDV7Generator yields time ordered identifiers, which keeps inserted
// keys roughly ascending inside every shard.
type UUIDV7Generator struct{}

var _ shrule.KeyGenerator = UUIDV7Generator{}

func (UUIDV7Generator) Type() string {
	return TypeUUIDV7
}

func (UUIDV7Generator) NextKey() (any, error) {
	return uuidv7.New().String(), nil
}

// New creates a generator of the given type. name identifies the sequence
// for SEQUENCE generators.
func New(typ, name string, props map[string]string) (shrule.KeyGenerator, error) {
	switch strings.ToUpper(typ) {
	case TypeUUID:
		return UUIDGenerator{}, nil
	case TypeUUIDV7:
		return UUIDV7Generator{}, nil
	case TypeSequence:
		start, err := intProp(props, PropStart, 1)
		if err != nil {
			return nil, err
		}
		size, err := intProp(props, PropRangeSize, int64(DEFAULT_ID_RANGE_SIZE))
		if err != nil {
			return nil, err
		}
		if size <= 0 {
			return nil, spqrerror.Newf(spqrerror.SPQR_INVALID_RULE, "%s must be positive", PropRangeSize)
		}
		return NewSequenceGenerator(name, uint64(size), NewLocalRangeSource(start)), nil
	default:
		return nil, spqrerror.Newf(spqrerror.SPQR_INVALID_RULE, "unknown key generator type %q", typ)
	}
}

func intProp(props map[string]string, key string, def int64) (int64, error) {
	raw, ok := props[key]
	if !ok {
		return def, nil
	}
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, spqrerror.Newf(spqrerror.SPQR_INVALID_RULE, "key generator property %q is not an integer: %q", key, raw)
	}
	return v, nil
}
