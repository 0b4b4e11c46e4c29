package ledger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	kind, err := ParseKind("RECEIPT")
	require.NoError(t, err)
	require.Equal(t, KindReceipt, kind)

	kind, err = ParseKind("ISSUE")
	require.NoError(t, err)
	require.Equal(t, KindIssue, kind)

	for _, raw := range []string{"", "receipt", "NONE", "TRANSFER", "0"} {
		_, err := ParseKind(raw)
		require.Error(t, err, "raw=%q", raw)
	}
}

func TestSignedChange(t *testing.T) {
	require.Equal(t, int64(1), KindReceipt.Sign())
	require.Equal(t, int64(-1), KindIssue.Sign())

	receipt := Movement{Kind: KindReceipt, Quantity: 7}
	require.Equal(t, int64(7), receipt.SignedChange())

	issue := Movement{Kind: KindIssue, Quantity: 7}
	require.Equal(t, int64(-7), issue.SignedChange())
}

func TestInsufficientStockErrorMessage(t *testing.T) {
	err := &InsufficientStockError{ProductID: "p1", Available: 2, Requested: 5}
	require.Contains(t, err.Error(), "2")
	require.Contains(t, err.Error(), "5")
}
