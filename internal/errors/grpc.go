package errors

import (
	"encoding/json"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ToGRPCError converts an error to a gRPC status error.
// Metadata travels as a google.protobuf.Struct detail so clients can read
// field-level reasons (invalid target ids, missing items) without parsing text.
func ToGRPCError(err error) error {
	if err == nil {
		return nil
	}

	if _, ok := status.FromError(err); ok {
		return err
	}

	st := status.New(GetCode(err).GRPCCode(), GetMessage(err))

	if meta := GetMeta(err); len(meta) > 0 {
		details, convErr := metaToStruct(meta)
		if convErr != nil {
			slog.Warn("dropping error metadata that cannot be encoded",
				"code", GetCode(err),
				"error", convErr.Error())
			return st.Err()
		}
		if withDetails, detailErr := st.WithDetails(details); detailErr == nil {
			st = withDetails
		}
	}

	return st.Err()
}

// metaToStruct normalizes typed slices and structs through JSON so that
// structpb only sees the value kinds it accepts.
func metaToStruct(meta map[string]any) (*structpb.Struct, error) {
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return structpb.NewStruct(generic)
}

// FromGRPCError converts a gRPC error back into our error type
func FromGRPCError(err error) error {
	if err == nil {
		return nil
	}

	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	customErr := &Error{
		Code:    grpcCodeToCode(st.Code()),
		Message: st.Message(),
	}

	for _, detail := range st.Details() {
		if s, ok := detail.(*structpb.Struct); ok {
			customErr.Meta = s.AsMap()
			break
		}
	}

	return customErr
}

// GRPCCode returns the corresponding gRPC code
func (c Code) GRPCCode() codes.Code {
	switch c {
	case CodeOK:
		return codes.OK
	case CodeCanceled:
		return codes.Canceled
	case CodeInvalidArgument:
		return codes.InvalidArgument
	case CodeDeadlineExceeded:
		return codes.DeadlineExceeded
	case CodeNotFound:
		return codes.NotFound
	case CodeAlreadyExists:
		return codes.AlreadyExists
	case CodeResourceExhausted:
		return codes.ResourceExhausted
	case CodeFailedPrecondition:
		return codes.FailedPrecondition
	case CodeAborted:
		return codes.Aborted
	case CodeInternal:
		return codes.Internal
	case CodeUnavailable:
		return codes.Unavailable
	default:
		return codes.Unknown
	}
}

func grpcCodeToCode(grpcCode codes.Code) Code {
	switch grpcCode {
	case codes.OK:
		return CodeOK
	case codes.Canceled:
		return CodeCanceled
	case codes.InvalidArgument:
		return CodeInvalidArgument
	case codes.DeadlineExceeded:
		return CodeDeadlineExceeded
	case codes.NotFound:
		return CodeNotFound
	case codes.AlreadyExists:
		return CodeAlreadyExists
	case codes.ResourceExhausted:
		return CodeResourceExhausted
	case codes.FailedPrecondition:
		return CodeFailedPrecondition
	case codes.Aborted:
		return CodeAborted
	case codes.Unavailable:
		return CodeUnavailable
	default:
		return CodeInternal
	}
}
