package order

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ethernity-cloud/mvp-pox-node/internal/types"
)

func TestBuildJobParsesSpec(t *testing.T) {
	do := types.DORequest{Metadata: types.Metadata{Spec: "v3:imgcid:imgname:composecid:challengecid:pubkey"}}
	job, err := BuildJob(do, 9, "0xresult", "0xkey", "/tmp/registry")
	require.NoError(t, err)
	require.Equal(t, "9", job.OrderID)
	require.Equal(t, "composecid", job.ComposeCID)
	require.Equal(t, "challengecid", job.ChallengeCID)
}

func TestBuildJobRejectsMalformedSpec(t *testing.T) {
	do := types.DORequest{Metadata: types.Metadata{Spec: "not-a-valid-spec"}}
	_, err := BuildJob(do, 1, "0xa", "0xb", "/tmp")
	require.Error(t, err)
}

type fakeCaller struct {
	order types.Order
}

func (f *fakeCaller) Call(ctx context.Context, results *[]interface{}, method string, args ...interface{}) error {
	*results = []interface{}{f.order}
	return nil
}

func TestGetOrder(t *testing.T) {
	caller := &fakeCaller{order: types.Order{ID: 5, Status: types.OrderProcessing}}
	order, err := GetOrder(context.Background(), caller, 5)
	require.NoError(t, err)
	require.Equal(t, types.OrderProcessing, order.Status)
}

func TestAwaitApprovalSucceedsImmediately(t *testing.T) {
	approved, err := AwaitApproval(context.Background(), 1, 10*time.Millisecond, func(ctx context.Context) (types.OrderStatus, error) {
		return types.OrderProcessing, nil
	})
	require.NoError(t, err)
	require.True(t, approved)
}

func TestAwaitApprovalTimesOut(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	approved, err := AwaitApproval(ctx, 1, 5*time.Millisecond, func(ctx context.Context) (types.OrderStatus, error) {
		return types.OrderOpen, nil
	})
	require.Error(t, err)
	require.False(t, approved)
}

func TestRetryLedgerCountsAndExhausts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "process_order_data.json")
	ledger, err := OpenRetryLedger(path)
	require.NoError(t, err)

	require.Equal(t, 0, ledger.Count(42))
	require.False(t, ledger.Exhausted(42))

	for i := 0; i < MaxRetries; i++ {
		_, err := ledger.RecordAttempt(42)
		require.NoError(t, err)
	}
	require.False(t, ledger.Exhausted(42), "exactly MaxRetries attempts must not yet be exhausted")

	_, err = ledger.RecordAttempt(42)
	require.NoError(t, err)
	require.True(t, ledger.Exhausted(42))

	require.NoError(t, ledger.Forget(42))
	require.Equal(t, 0, ledger.Count(42))
}
