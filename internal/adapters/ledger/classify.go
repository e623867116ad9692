package ledger

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/okian/vouchbase/internal/domain/failure"
)

// EIP-1193 code for a request the user declined in the wallet.
const codeUserRejected = 4001

// classify tags a raw go-ethereum error. It is the only place in the module
// that looks at error text.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var fe *failure.Error
	if errors.As(err, &fe) {
		return err
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == codeUserRejected {
		return failure.Cancelled(err)
	}

	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if reason, ok := revertReason(dataErr.ErrorData()); ok {
			return failure.Rejected(reason, err)
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "user rejected"), strings.Contains(msg, "user denied"):
		return failure.Cancelled(err)
	case strings.Contains(msg, "insufficient funds"):
		return failure.Insufficient(err)
	case strings.Contains(msg, "execution reverted"):
		return failure.Rejected(reasonFromMessage(err.Error()), err)
	}
	return failure.Wrap(err)
}

// revertReason decodes Error(string) revert data carried by an RPC error.
func revertReason(data any) (string, bool) {
	s, ok := data.(string)
	if !ok {
		return "", false
	}
	raw, err := hexutil.Decode(s)
	if err != nil {
		return "", false
	}
	reason, err := abi.UnpackRevert(raw)
	if err != nil || reason == "" {
		return "", false
	}
	return reason, true
}

// reasonFromMessage extracts "X" from "...execution reverted: X".
func reasonFromMessage(msg string) string {
	const marker = "execution reverted"
	i := strings.Index(strings.ToLower(msg), marker)
	if i < 0 {
		return ""
	}
	rest := strings.TrimSpace(msg[i+len(marker):])
	return strings.TrimSpace(strings.TrimPrefix(rest, ":"))
}
