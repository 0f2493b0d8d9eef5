package types

import (
	"errors"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "with position",
			err:  NewError(ErrSyntaxError, "unexpected token", 12),
			want: "S0201 @ position 12: unexpected token",
		},
		{
			name: "dynamic error has no position",
			err:  NewDynamicError(ErrZeroLengthMatch, "regex matched zero-width"),
			want: "D1004 @ regex matched zero-width",
		},
		{
			name: "position zero is still a real position",
			err:  NewError(ErrBadEscape, "bad escape", 0),
			want: "S0103 @ position 0: bad escape",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorWithTokenAndCause(t *testing.T) {
	cause := errors.New("underlying failure")
	err := NewError(ErrBadSignature, "bad signature", 5).
		WithToken("<s:s>").
		WithCause(cause)

	if err.Token != "<s:s>" {
		t.Errorf("Token = %q, want %q", err.Token, "<s:s>")
	}
	if !errors.Is(err, cause) {
		t.Errorf("errors.Is(err, cause) = false, want true")
	}
	if got := err.Unwrap(); got != cause {
		t.Errorf("Unwrap() = %v, want %v", got, cause)
	}
}

func TestNewDynamicErrorHasNegativePosition(t *testing.T) {
	err := NewDynamicError(ErrStackOverflow, "too deep")
	if err.Position >= 0 {
		t.Errorf("Position = %d, want negative", err.Position)
	}
}

func TestErrorCodesAreUnique(t *testing.T) {
	codes := []ErrorCode{
		ErrStringNotClosed, ErrNumberOutOfRange, ErrBadEscape, ErrBadUnicodeEscape,
		ErrNameNotClosed, ErrCommentNotClosed,
		ErrSyntaxError, ErrExpectedToken, ErrExpectedEOF, ErrInvalidFuncParam,
		ErrBindToNonVar, ErrInvalidPathStep, ErrContextVarIllegal, ErrFocusAfterFilter,
		ErrIndexAfterSort, ErrInvalidParentUse, ErrPredicateAfterGrp, ErrDuplicateGroupBy,
		ErrInvalidUnary, ErrBadSignature,
		ErrArgumentCountMismatch, ErrArgumentTypeMismatch, ErrNotAFunction,
		ErrVarNotAFunction, ErrPartialNonFunction, ErrPartialUnknownFunc,
		ErrCannotConvertNumber, ErrCannotConvertString, ErrInvalidTypeOperation,
		ErrArithmeticLHSType, ErrArithmeticRHSType, ErrRangeStartNotInteger,
		ErrRangeEndNotInteger, ErrSortNotComparable, ErrSortMixedTypes, ErrCompareType,
		ErrCompareMixed, ErrTransformUpdateNotObj, ErrTransformDeleteNotArr,
		ErrNumberTooLarge, ErrInvokeNonFunction, ErrRangeNotInteger, ErrZeroLengthMatch,
		ErrGroupKeyConflict, ErrRangeTooLarge, ErrStackOverflow,
		ErrSerializeNonFinite, ErrNumberParse, ErrReduceInsufficientArgs, ErrSqrtNegative,
		ErrPowerNonFinite, ErrTypeMismatch, ErrReplacementNotString,
		ErrSingleMultipleMatches, ErrSingleNoMatch, ErrAssertFailed, ErrUserRaised,
	}

	seen := make(map[ErrorCode]bool, len(codes))
	for _, c := range codes {
		if seen[c] {
			t.Errorf("duplicate error code: %s", c)
		}
		seen[c] = true
	}
}
