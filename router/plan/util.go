package plan

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
)

const (
	FormatCodeText   = int16(0)
	FormatCodeBinary = int16(1)
)

const (
	ColumnTypeVarchar  = "varchar"
	ColumnTypeInteger  = "integer"
	ColumnTypeUinteger = "uinteger"
	ColumnTypeUUID     = "uuid"
)

var ErrResolvingValue = fmt.Errorf("error while resolving parameter value")

// ParseResolveParamValue decodes one bind parameter given in text or
// binary format into the Go value sharding algorithms compare.
func ParseResolveParamValue(paramCode int16, tp string, raw []byte) (any, error) {
	switch paramCode {
	case FormatCodeBinary:
		switch tp {
		case ColumnTypeUUID, ColumnTypeVarchar:
			return string(raw), nil
		case ColumnTypeInteger:
			buf := bytes.NewBuffer(raw)
			if len(raw) == 4 {
				var tmpnum int32
				if err := binary.Read(buf, binary.BigEndian, &tmpnum); err != nil {
					return nil, ErrResolvingValue
				}
				return int64(tmpnum), nil
			}
			var num int64
			if err := binary.Read(buf, binary.BigEndian, &num); err != nil {
				return nil, ErrResolvingValue
			}
			return num, nil
		case ColumnTypeUinteger:
			buf := bytes.NewBuffer(raw)
			if len(raw) == 4 {
				var tmpnum uint32
				if err := binary.Read(buf, binary.BigEndian, &tmpnum); err != nil {
					return nil, ErrResolvingValue
				}
				return uint64(tmpnum), nil
			}
			var num uint64
			if err := binary.Read(buf, binary.BigEndian, &num); err != nil {
				return nil, ErrResolvingValue
			}
			return num, nil
		}
	case FormatCodeText:
		switch tp {
		case ColumnTypeUUID, ColumnTypeVarchar:
			return string(raw), nil
		case ColumnTypeInteger:
			return strconv.ParseInt(string(raw), 10, 64)
		case ColumnTypeUinteger:
			return strconv.ParseUint(string(raw), 10, 64)
		}
	}

	return nil, ErrResolvingValue
}
