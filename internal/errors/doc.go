// Package errors is the error vocabulary shared by every layer of the game engine.
//
// Errors carry a Code, a player- or operator-facing Message, an optional Cause
// and Meta. The codes line up with how the action pipeline treats failures:
//
//   - InvalidArgument: the request itself is wrong (unknown target id, item not
//     in inventory, malformed combat action). Raised before any state changes.
//   - FailedPrecondition: the request is well formed but the session is not in
//     a state that accepts it (combat action outside combat, ended session).
//   - ResourceExhausted: a hard limit such as concurrent sessions per user.
//     Token budget exhaustion is NOT an error; it is a distinct outcome.
//   - Unavailable: the narrator failed after its retry. Safe to retry.
//   - Aborted: a concurrent write won the optimistic version check. Safe to retry.
//   - Internal: everything else.
//
// Creating and wrapping:
//
//	err := errors.InvalidArgumentf("target %q is not a valid target", id).
//	    WithMeta("valid_targets", targets)
//
//	if err := repo.Save(ctx, input); err != nil {
//	    return errors.Wrap(err, "failed to persist game state")
//	}
//
// Handlers convert to gRPC with ToGRPCError; metadata is attached as a
// google.protobuf.Struct status detail and recovered by FromGRPCError.
package errors
