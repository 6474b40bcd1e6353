package spqrerror

import (
	"errors"
	"fmt"
)

const (
	SPQR_UNEXPECTED               = "SPQRU"
	SPQR_UNEXPECTED_VALUE_TYPE    = "SPQRV"
	SPQR_TARGET_OUT_OF_RANGE      = "SPQRT"
	SPQR_OVERLAPPING_TOKENS       = "SPQRW"
	SPQR_BINDING_DECISION_MISSING = "SPQRB"
	SPQR_INVALID_RULE             = "SPQRI"
	SPQR_UNKNOWN_ALGORITHM        = "SPQRA"
	SPQR_NO_PARTITION             = "SPQRP"
	SPQR_NO_DATASHARD             = "SPQRD"
	SPQR_PARAMETER_MISSING        = "SPQRM"
	SPQR_HAVING_EVAL              = "SPQRH"
	SPQR_MERGE_ERROR              = "SPQRG"
	SPQR_NOT_IMPLEMENTED          = "SPQRN"
)

var existingErrorCodeMap = map[string]string{
	SPQR_UNEXPECTED_VALUE_TYPE:    "UnexpectedShardingValueType",
	SPQR_TARGET_OUT_OF_RANGE:      "TargetOutOfRange",
	SPQR_OVERLAPPING_TOKENS:       "OverlappingRewriteTokens",
	SPQR_BINDING_DECISION_MISSING: "BindingDecisionMissing",
	SPQR_INVALID_RULE:             "InvalidShardingRule",
	SPQR_UNKNOWN_ALGORITHM:        "UnknownShardingAlgorithm",
	SPQR_NO_PARTITION:             "NoMatchingPartition",
	SPQR_NO_DATASHARD:             "failed to match any datashard",
	SPQR_PARAMETER_MISSING:        "ParameterMissing",
	SPQR_HAVING_EVAL:              "HavingEvaluationFailed",
	SPQR_MERGE_ERROR:              "MergeError",
	SPQR_NOT_IMPLEMENTED:          "NotImplemented",
}

// configuration class errors are fatal and never retried; everything
// else is fatal to the current statement only.
var configurationCodes = map[string]struct{}{
	SPQR_UNEXPECTED_VALUE_TYPE:    {},
	SPQR_TARGET_OUT_OF_RANGE:      {},
	SPQR_OVERLAPPING_TOKENS:       {},
	SPQR_BINDING_DECISION_MISSING: {},
	SPQR_INVALID_RULE:             {},
	SPQR_UNKNOWN_ALGORITHM:        {},
}

func GetMessageByCode(errorCode string) string {
	rep, ok := existingErrorCodeMap[errorCode]
	if ok {
		return rep
	}
	return "Unexpected error"
}

var _ error = &SpqrError{}

type SpqrError struct {
	Err error

	ErrorCode string
}

// New creates a new SpqrError with the given error code and message.
func New(errorCode string, msg string) *SpqrError {
	return &SpqrError{
		Err:       errors.New(msg),
		ErrorCode: errorCode,
	}
}

// Newf is New with fmt.Sprintf formatting of the message.
func Newf(errorCode string, format string, a ...any) *SpqrError {
	return &SpqrError{
		Err:       fmt.Errorf(format, a...),
		ErrorCode: errorCode,
	}
}

// NewByCode creates a new SpqrError carrying the default message of the code.
func NewByCode(errorCode string) *SpqrError {
	return New(errorCode, GetMessageByCode(errorCode))
}

func (er *SpqrError) Error() string {
	return er.Err.Error()
}

func (er *SpqrError) Unwrap() error {
	return er.Err
}

// Code extracts the SPQR error code from err, if any.
func Code(err error) (string, bool) {
	var se *SpqrError
	if errors.As(err, &se) {
		return se.ErrorCode, true
	}
	return "", false
}

// IsConfigurationError reports whether err is a configuration class error.
func IsConfigurationError(err error) bool {
	code, ok := Code(err)
	if !ok {
		return false
	}
	_, ok = configurationCodes[code]
	return ok
}
